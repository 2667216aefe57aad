package ledger

import (
	"fmt"

	"github.com/gochain/gochain/pkg/crypto"
)

// merklePair is hashed as a length-2 sequence, not as concatenated bytes —
// spec.md is explicit that pairing must hash a 2-element sequence so that
// (a, b) cannot collide with the flat byte concatenation of some other
// (a', b') of different lengths.
type merklePair struct {
	_    struct{} `cbor:",toarray"`
	A, B crypto.Hash
}

// CalculateMerkleRoot computes the Merkle root over transactions. Callers
// must never invoke this with an empty slice; block validation rejects
// empty blocks independently before this is ever called.
func CalculateMerkleRoot(transactions []Transaction) (crypto.Hash, error) {
	if len(transactions) == 0 {
		return crypto.Hash{}, fmt.Errorf("ledger: cannot compute merkle root of zero transactions")
	}

	layer := make([]crypto.Hash, len(transactions))
	for i, tx := range transactions {
		h, err := tx.Hash()
		if err != nil {
			return crypto.Hash{}, fmt.Errorf("ledger: hashing transaction %d: %w", i, err)
		}
		layer[i] = h
	}

	for len(layer) > 1 {
		if len(layer)%2 != 0 {
			layer = append(layer, layer[len(layer)-1])
		}
		next := make([]crypto.Hash, len(layer)/2)
		for i := 0; i < len(layer); i += 2 {
			h, err := crypto.Of(merklePair{A: layer[i], B: layer[i+1]})
			if err != nil {
				return crypto.Hash{}, fmt.Errorf("ledger: hashing merkle pair: %w", err)
			}
			next[i/2] = h
		}
		layer = next
	}
	return layer[0], nil
}
