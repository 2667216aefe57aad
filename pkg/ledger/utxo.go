package ledger

import "github.com/gochain/gochain/pkg/crypto"

// UTXOEntry pairs a still-unspent output with its mempool-reservation flag.
// Marked is never persisted across a snapshot save/load — it is
// reconstructed purely from mempool state.
type UTXOEntry struct {
	Marked bool
	Output TransactionOutput
}

// AddressBalance sums the value of every unmarked-or-marked UTXO owned by
// pubKey, used by wallet balance queries and FetchUTXOs responses.
func AddressBalance(utxos map[crypto.Hash]UTXOEntry, pubKey crypto.PublicKey) uint64 {
	var total uint64
	for _, entry := range utxos {
		if entry.Output.PubKey.Equal(pubKey) {
			total += entry.Output.Value
		}
	}
	return total
}

// UTXOsForKey returns every (marked, output) pair owned by pubKey, the
// payload of a FetchUTXOs reply.
func UTXOsForKey(utxos map[crypto.Hash]UTXOEntry, pubKey crypto.PublicKey) []UTXOEntry {
	var out []UTXOEntry
	for _, entry := range utxos {
		if entry.Output.PubKey.Equal(pubKey) {
			out = append(out, entry)
		}
	}
	return out
}
