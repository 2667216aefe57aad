package ledger

import (
	"time"

	"github.com/gochain/gochain/pkg/crypto"
)

// BlockHeader commits to the previous block, the block's transaction set,
// and the proof-of-work nonce.
type BlockHeader struct {
	_             struct{} `cbor:",toarray"`
	Timestamp     time.Time
	Nonce         uint64
	PrevBlockHash crypto.Hash
	MerkleRoot    crypto.Hash
	Target        crypto.Hash
}

// Hash returns the canonical hash of h — the value proof-of-work is mined
// against and the linkage value the next block's PrevBlockHash must equal.
func (h BlockHeader) Hash() (crypto.Hash, error) {
	return crypto.Of(h)
}

// MatchesTarget reports whether h's hash satisfies its own target.
func (h BlockHeader) MatchesTarget() (bool, error) {
	hash, err := h.Hash()
	if err != nil {
		return false, err
	}
	return hash.MatchesTarget(h.Target), nil
}

// Block is a header plus its ordered transaction list; Transactions[0] is
// always the coinbase.
type Block struct {
	_            struct{} `cbor:",toarray"`
	Header       BlockHeader
	Transactions []Transaction
}

// Coinbase returns the block's first (coinbase) transaction.
func (b Block) Coinbase() Transaction {
	return b.Transactions[0]
}

// CalculateMinerFees sums, over every non-coinbase transaction in b, the
// difference between its input value (looked up in utxos) and its output
// value.
func (b Block) CalculateMinerFees(utxos map[crypto.Hash]UTXOEntry) (uint64, error) {
	var fees uint64
	for _, tx := range b.Transactions[1:] {
		in, err := tx.InputValue(utxos)
		if err != nil {
			return 0, err
		}
		out := tx.OutputValue()
		if in < out {
			return 0, errInsufficientInputs
		}
		fees += in - out
	}
	return fees, nil
}
