package ledger

import "time"

// Consensus-binding constants (spec.md §6).
const (
	// InitialReward is the block reward at height 0, in whole coin units
	// before the 10^8 satoshi scaling.
	InitialReward = 50
	// SatoshisPerCoin scales InitialReward into the satoshi units Value
	// fields are denominated in.
	SatoshisPerCoin = 100_000_000

	// HalvingInterval is the number of blocks between reward halvings.
	HalvingInterval = 210
	// MaxHalvings bounds the reward-halving shift so it never becomes a
	// shift of 64 or more bits, which would be undefined behavior.
	MaxHalvings = 64

	// IdealBlockTime is the target average time between blocks.
	IdealBlockTime = 10 * time.Second

	// DifficultyUpdateInterval is the number of blocks between retargets.
	DifficultyUpdateInterval = 50

	// MaxMempoolTransactionAge bounds how long an unconfirmed transaction
	// may sit in the mempool before cleanup evicts it.
	MaxMempoolTransactionAge = 600 * time.Second

	// BlockTransactionCap bounds how many mempool transactions a node will
	// include when assembling a template; the coinbase comes on top of them.
	BlockTransactionCap = 20
)

// BlockReward returns the coinbase value, in satoshis, for a block at the
// given height: (InitialReward * SatoshisPerCoin) >> (height / HalvingInterval),
// zero once the halving count reaches MaxHalvings.
func BlockReward(height uint64) uint64 {
	halvings := height / HalvingInterval
	if halvings >= MaxHalvings {
		return 0
	}
	return (InitialReward * SatoshisPerCoin) >> halvings
}
