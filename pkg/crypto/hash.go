package crypto

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// canonicalMode is the CBOR encoding mode used everywhere a byte-stable
// representation is required: wire messages, hash input, and persisted
// snapshots all share this mode so that Hash.Of and the network codec never
// disagree on how a value serializes.
var canonicalMode cbor.EncMode

func init() {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("crypto: building canonical CBOR mode: %v", err))
	}
	canonicalMode = m
}

// Marshal canonically CBOR-encodes v using the same deterministic field
// ordering used for Hash.Of, so that encode-then-decode is the identity and
// hash input matches wire-format bytes for the same value.
func Marshal(v interface{}) ([]byte, error) {
	return canonicalMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes produced by Marshal.
func Unmarshal(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}

// Hash is a 256-bit unsigned integer, interpreted big-endianly. It is used
// both as the output of a cryptographic digest and as a proof-of-work
// target; the two uses share one representation because they are compared
// against each other (hash <= target).
type Hash [32]byte

// ZeroHash is the all-zero hash used as the previous-block-hash of genesis.
var ZeroHash = Hash{}

// Of canonically encodes value and returns the SHA-256 digest of the
// resulting bytes as a Hash.
func Of(value interface{}) (Hash, error) {
	data, err := Marshal(value)
	if err != nil {
		return Hash{}, fmt.Errorf("crypto: encoding value for hashing: %w", err)
	}
	return Hash(sha256.Sum256(data)), nil
}

// MustOf is Of but panics on encode failure; used in contexts (tests,
// already-validated in-memory structures) where encoding cannot fail.
func MustOf(value interface{}) Hash {
	h, err := Of(value)
	if err != nil {
		panic(err)
	}
	return h
}

// Bytes returns the big-endian byte representation of h.
func (h Hash) Bytes() []byte {
	b := make([]byte, 32)
	copy(b, h[:])
	return b
}

// Big returns h as an arbitrary-precision unsigned integer.
func (h Hash) Big() *big.Int {
	return new(big.Int).SetBytes(h[:])
}

// Cmp compares h and other as unsigned 256-bit integers: -1, 0, or 1.
func (h Hash) Cmp(other Hash) int {
	return h.Big().Cmp(other.Big())
}

// MatchesTarget reports whether h, read as a number, is at most target —
// the proof-of-work acceptance test.
func (h Hash) MatchesTarget(target Hash) bool {
	return h.Cmp(target) <= 0
}

// IsZero reports whether h is the all-zero hash (the genesis previous-hash
// sentinel).
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// String renders h as a lowercase hex string.
func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:])
}

// HashFromBig converts an arbitrary-precision unsigned integer into a Hash,
// left-padding with zero bytes. It panics if v does not fit in 256 bits.
func HashFromBig(v *big.Int) Hash {
	b := v.Bytes()
	if len(b) > 32 {
		panic("crypto: value does not fit in 256 bits")
	}
	var h Hash
	copy(h[32-len(b):], b)
	return h
}

// MarshalCBOR implements cbor.Marshaler so a Hash is encoded as a 32-byte
// string, not as an array of 32 integers.
func (h Hash) MarshalCBOR() ([]byte, error) {
	return canonicalMode.Marshal(h[:])
}

// UnmarshalCBOR implements cbor.Unmarshaler, the inverse of MarshalCBOR.
func (h *Hash) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return err
	}
	if len(b) != 32 {
		return fmt.Errorf("crypto: hash must be 32 bytes, got %d", len(b))
	}
	copy(h[:], b)
	return nil
}

// MinTarget is the easiest (largest) permitted proof-of-work target: the
// high 48 bits are 0x0000FFFFFFFF and every bit below that is set. No
// retargeting step may ever move the current target past this value.
var MinTarget = func() Hash {
	hexLiteral := "0000ffffffff" + strings.Repeat("ff", 26)
	v, ok := new(big.Int).SetString(hexLiteral, 16)
	if !ok {
		panic("crypto: bad MinTarget literal")
	}
	return HashFromBig(v)
}()
