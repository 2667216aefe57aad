package crypto

import (
	stdecdsa "crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/fxamacker/cbor/v2"
	"github.com/mr-tron/base58"
)

// PrivateKey holds the secp256k1 scalar controlling one keypair.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// PublicKey is serializable (compressed SEC1 form) and comparable by its
// encoded bytes, matching spec.md's requirement that a PublicKey be
// comparable and hashable as part of a TransactionOutput.
type PublicKey struct {
	key *btcec.PublicKey
}

// Signature is an ECDSA signature over a Hash, canonicalized to low-S per
// BIP-62 so that the same logical signature always serializes identically —
// adopted from the teacher wallet's hand-rolled canonicalization, here
// provided natively by btcec/v2's ecdsa package.
type Signature struct {
	sig *ecdsa.Signature
}

// GenerateKeypair creates a fresh secp256k1 keypair.
func GenerateKeypair() (PrivateKey, PublicKey, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return PrivateKey{}, PublicKey{}, fmt.Errorf("crypto: generating keypair: %w", err)
	}
	return PrivateKey{key: priv}, PublicKey{key: priv.PubKey()}, nil
}

// Public returns the public key corresponding to p.
func (p PrivateKey) Public() PublicKey {
	return PublicKey{key: p.key.PubKey()}
}

// Sign computes an ECDSA signature over h using p's scalar.
func (p PrivateKey) Sign(h Hash) (Signature, error) {
	if p.key == nil {
		return Signature{}, fmt.Errorf("crypto: nil private key")
	}
	sig := ecdsa.Sign(p.key, h[:])
	return Signature{sig: sig}, nil
}

// Verify reports whether sig is a valid signature by pub over h.
func Verify(pub PublicKey, h Hash, sig Signature) bool {
	if pub.key == nil || sig.sig == nil {
		return false
	}
	return sig.sig.Verify(h[:], pub.key)
}

// Bytes returns the 33-byte compressed SEC1 encoding of pub.
func (pub PublicKey) Bytes() []byte {
	if pub.key == nil {
		return nil
	}
	return pub.key.SerializeCompressed()
}

// Equal reports whether pub and other encode the same point.
func (pub PublicKey) Equal(other PublicKey) bool {
	if pub.key == nil || other.key == nil {
		return pub.key == other.key
	}
	return pub.key.IsEqual(other.key)
}

// String renders pub as a base58-encoded display form, grounded on the
// teacher wallet's address-style encoding; used only for logs and CLI
// banners, never as the on-chain identity (the wire identity is the raw
// public key itself, per spec.md).
func (pub PublicKey) String() string {
	if pub.key == nil {
		return ""
	}
	return base58.Encode(pub.Bytes())
}

// PublicKeyFromBytes decodes the compressed SEC1 encoding produced by
// PublicKey.Bytes.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	key, err := btcec.ParsePubKey(b)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidPublicKeyEncoding, err)
	}
	return PublicKey{key: key}, nil
}

// ErrInvalidPublicKeyEncoding is returned by PublicKeyFromBytes when the
// input is not a valid compressed secp256k1 point.
var ErrInvalidPublicKeyEncoding = fmt.Errorf("crypto: invalid public key encoding")

// MarshalCBOR encodes pub as its compressed byte form, used both for wire
// messages and as part of a TransactionOutput's hash input.
func (pub PublicKey) MarshalCBOR() ([]byte, error) {
	return canonicalMode.Marshal(pub.Bytes())
}

// UnmarshalCBOR decodes the compressed byte form written by MarshalCBOR.
func (pub *PublicKey) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return err
	}
	key, err := btcec.ParsePubKey(b)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPublicKeyEncoding, err)
	}
	pub.key = key
	return nil
}

// MarshalCBOR encodes sig in DER form (as used for both wire transport and
// transaction-hash input).
func (s Signature) MarshalCBOR() ([]byte, error) {
	if s.sig == nil {
		return canonicalMode.Marshal([]byte{})
	}
	return canonicalMode.Marshal(s.sig.Serialize())
}

// UnmarshalCBOR decodes the DER form written by MarshalCBOR.
func (s *Signature) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return err
	}
	sig, err := ecdsa.ParseDERSignature(b)
	if err != nil {
		return fmt.Errorf("crypto: parsing DER signature: %w", err)
	}
	s.sig = sig
	return nil
}

// SavePEM returns pub in PEM-encoded SPKI form, matching spec.md §6's
// requirement that public keys are persisted as PEM.
func (pub PublicKey) SavePEM() ([]byte, error) {
	derBytes, err := x509.MarshalPKIXPublicKey(pub.key.ToECDSA())
	if err != nil {
		return nil, fmt.Errorf("crypto: marshaling SPKI public key: %w", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: derBytes}
	return pem.EncodeToMemory(block), nil
}

// LoadPublicKeyPEM parses the PEM-encoded SPKI form written by SavePEM.
func LoadPublicKeyPEM(data []byte) (PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return PublicKey{}, fmt.Errorf("crypto: no PEM block found")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return PublicKey{}, fmt.Errorf("crypto: parsing SPKI public key: %w", err)
	}
	ecdsaPub, ok := parsed.(*stdecdsa.PublicKey)
	if !ok {
		return PublicKey{}, fmt.Errorf("crypto: SPKI key is not an EC public key")
	}
	compressed := elliptic.MarshalCompressed(btcec.S256(), ecdsaPub.X, ecdsaPub.Y)
	return PublicKeyFromBytes(compressed)
}

// MarshalCBOR for PrivateKey is intentionally unexported from the public
// API: private key persistence goes through SaveCBOR/LoadPrivateKeyCBOR
// below so callers cannot accidentally embed a private scalar inside a
// larger CBOR document (e.g. a gossip message).

// SaveCBOR serializes p's raw 32-byte scalar as CBOR, matching spec.md §6's
// requirement that private keys are persisted as CBOR.
func (p PrivateKey) SaveCBOR() ([]byte, error) {
	return canonicalMode.Marshal(p.key.Serialize())
}

// LoadPrivateKeyCBOR parses the CBOR form written by SaveCBOR.
func LoadPrivateKeyCBOR(data []byte) (PrivateKey, error) {
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return PrivateKey{}, fmt.Errorf("crypto: decoding private key CBOR: %w", err)
	}
	priv, _ := btcec.PrivKeyFromBytes(b)
	return PrivateKey{key: priv}, nil
}

// NewKeypairForRandSource is a test seam allowing deterministic key
// generation given an explicit entropy source, used by tests that need
// reproducible keys.
func NewKeypairForRandSource(seed []byte) (PrivateKey, PublicKey, error) {
	if len(seed) != 32 {
		return PrivateKey{}, PublicKey{}, fmt.Errorf("crypto: seed must be 32 bytes")
	}
	priv, pub := btcec.PrivKeyFromBytes(seed)
	return PrivateKey{key: priv}, PublicKey{key: pub}, nil
}
