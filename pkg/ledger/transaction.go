// Package ledger implements the blockchain state machine: transactions,
// blocks, the UTXO index, the mempool, and dynamic difficulty retargeting.
// It is the consensus-adjacent core shared by the node, miner, and wallet
// processes.
package ledger

import (
	"fmt"

	"github.com/gochain/gochain/pkg/chainerr"
	"github.com/gochain/gochain/pkg/crypto"
	"github.com/google/uuid"
)

// TransactionOutput is a spendable coin. UniqueID guarantees that two
// outputs sharing a (Value, PubKey) pair still hash distinctly, which
// matters because outputs are indexed in the UTXO map by their own hash.
type TransactionOutput struct {
	_        struct{}         `cbor:",toarray"`
	Value    uint64           // satoshis
	UniqueID uuid.UUID        // disambiguates otherwise-identical outputs
	PubKey   crypto.PublicKey // owner
}

// Hash returns the canonical hash of o, used both as its UTXO map key and
// as the value a spending TransactionInput signs over.
func (o TransactionOutput) Hash() (crypto.Hash, error) {
	return crypto.Of(o)
}

// NewTransactionOutput builds an output with a fresh UniqueID.
func NewTransactionOutput(value uint64, pubKey crypto.PublicKey) (TransactionOutput, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return TransactionOutput{}, fmt.Errorf("ledger: generating output id: %w", err)
	}
	return TransactionOutput{Value: value, UniqueID: id, PubKey: pubKey}, nil
}

// TransactionInput references a prior output by hash and proves ownership
// of it via a signature over that hash.
type TransactionInput struct {
	_                         struct{}       `cbor:",toarray"`
	PrevTransactionOutputHash crypto.Hash    // the spent output's hash
	Signature                 crypto.Signature // signs PrevTransactionOutputHash
}

// Transaction is a set of inputs spending prior outputs into a new set of
// outputs. A coinbase transaction has zero inputs.
type Transaction struct {
	_       struct{} `cbor:",toarray"`
	Inputs  []TransactionInput
	Outputs []TransactionOutput
}

// Hash returns the canonical hash of tx, used as its mempool/block identity.
func (tx Transaction) Hash() (crypto.Hash, error) {
	return crypto.Of(tx)
}

// IsCoinbase reports whether tx has no inputs — the defining property of
// the first transaction of a block.
func (tx Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 0
}

// OutputValue sums tx's output values.
func (tx Transaction) OutputValue() uint64 {
	var total uint64
	for _, o := range tx.Outputs {
		total += o.Value
	}
	return total
}

// InputValue sums the value of the UTXOs tx's inputs reference, looked up
// in utxos. It returns an error wrapping chainerr.ErrInvalidTransactionInput
// if any referenced UTXO is absent.
func (tx Transaction) InputValue(utxos map[crypto.Hash]UTXOEntry) (uint64, error) {
	var total uint64
	for _, in := range tx.Inputs {
		entry, ok := utxos[in.PrevTransactionOutputHash]
		if !ok {
			return 0, fmt.Errorf("%w: referenced output %s not found", chainerr.ErrInvalidTransactionInput, in.PrevTransactionOutputHash)
		}
		total += entry.Output.Value
	}
	return total, nil
}
