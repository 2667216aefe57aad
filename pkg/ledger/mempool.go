package ledger

import (
	"sort"
	"time"

	"github.com/gochain/gochain/pkg/crypto"
)

// MempoolEntry is an admitted-but-unconfirmed transaction together with its
// admission time, used both for fee ordering and for age-based eviction.
type MempoolEntry struct {
	AdmittedAt  time.Time
	Transaction Transaction
}

// sortMempoolByFeeDescending stable-sorts entries by descending miner fee,
// computed against the current utxo set; ties keep insertion order (a
// stable sort), per spec.md §4.4 and the fee-ordering scenario in §8.
func sortMempoolByFeeDescending(entries []MempoolEntry, utxos map[crypto.Hash]UTXOEntry) {
	fee := func(tx Transaction) uint64 {
		in, err := tx.InputValue(utxos)
		if err != nil {
			return 0
		}
		out := tx.OutputValue()
		if in < out {
			return 0
		}
		return in - out
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return fee(entries[i].Transaction) > fee(entries[j].Transaction)
	})
}
