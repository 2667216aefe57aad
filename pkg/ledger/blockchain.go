package ledger

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/gochain/gochain/pkg/chainerr"
	"github.com/gochain/gochain/pkg/crypto"
)

// Blockchain is the core aggregate: the accepted block history, the UTXO
// index, the current proof-of-work target, and the mempool. All mutation
// goes through its exported methods, each of which holds the appropriate
// side of mu for its duration.
type Blockchain struct {
	mu sync.RWMutex

	blocks  []Block
	utxos   map[crypto.Hash]UTXOEntry
	target  crypto.Hash
	mempool []MempoolEntry
}

// New creates an empty blockchain with target set to the easiest permitted
// difficulty, ready to accept a genesis block.
func New() *Blockchain {
	return &Blockchain{
		utxos:  make(map[crypto.Hash]UTXOEntry),
		target: crypto.MinTarget,
	}
}

// Height returns the number of accepted blocks.
func (bc *Blockchain) Height() uint64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return uint64(len(bc.blocks))
}

// Target returns the current proof-of-work target.
func (bc *Blockchain) Target() crypto.Hash {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.target
}

// BlockAt returns the accepted block at height h.
func (bc *Blockchain) BlockAt(h uint64) (Block, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if h >= uint64(len(bc.blocks)) {
		return Block{}, false
	}
	return bc.blocks[h], true
}

// Tip returns the most recently accepted block's header hash, or the zero
// hash if the chain is empty.
func (bc *Blockchain) Tip() (crypto.Hash, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.tipLocked()
}

func (bc *Blockchain) tipLocked() (crypto.Hash, error) {
	if len(bc.blocks) == 0 {
		return crypto.ZeroHash, nil
	}
	return bc.blocks[len(bc.blocks)-1].Header.Hash()
}

// UTXOsForKey returns every (marked, output) pair owned by pubKey.
func (bc *Blockchain) UTXOsForKey(pubKey crypto.PublicKey) []UTXOEntry {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return UTXOsForKey(bc.utxos, pubKey)
}

// Balance returns the total value of UTXOs owned by pubKey, marked or not.
func (bc *Blockchain) Balance(pubKey crypto.PublicKey) uint64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return AddressBalance(bc.utxos, pubKey)
}

// AddBlock appends block to the chain iff it satisfies every validation
// rule in spec.md §4.2. State mutation is all-or-nothing: on rejection, no
// field of bc changes.
//
// As documented in spec.md §9, this does NOT update utxos; callers that
// need an up-to-date UTXO index must call RebuildUTXOs afterward. This
// decoupling is a faithfully-reproduced quirk of the source system, not an
// oversight.
func (bc *Blockchain) AddBlock(block Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if len(bc.blocks) == 0 {
		if !block.Header.PrevBlockHash.IsZero() {
			return fmt.Errorf("%w: genesis block must reference the zero hash", chainerr.ErrInvalidBlockHeader)
		}
		bc.blocks = append(bc.blocks, block)
		bc.evictMinedFromMempoolLocked(block)
		bc.tryAdjustTargetLocked()
		return nil
	}

	prevHeader := bc.blocks[len(bc.blocks)-1].Header
	prevHash, err := prevHeader.Hash()
	if err != nil {
		return fmt.Errorf("ledger: hashing previous header: %w", err)
	}
	if block.Header.PrevBlockHash != prevHash {
		return fmt.Errorf("%w: prev_block_hash does not match chain tip", chainerr.ErrInvalidBlockHeader)
	}

	matches, err := block.Header.MatchesTarget()
	if err != nil {
		return fmt.Errorf("ledger: hashing header: %w", err)
	}
	if !matches {
		return fmt.Errorf("%w: header hash exceeds target", chainerr.ErrInvalidBlockHeader)
	}

	if len(block.Transactions) == 0 {
		return fmt.Errorf("%w: block has no transactions", chainerr.ErrInvalidBlock)
	}
	merkle, err := CalculateMerkleRoot(block.Transactions)
	if err != nil {
		return fmt.Errorf("ledger: computing merkle root: %w", err)
	}
	if merkle != block.Header.MerkleRoot {
		return fmt.Errorf("%w: merkle root does not match transactions", chainerr.ErrInvalidMerkleRoot)
	}

	if !block.Header.Timestamp.After(prevHeader.Timestamp) {
		return fmt.Errorf("%w: timestamp does not strictly increase", chainerr.ErrInvalidBlockHeader)
	}

	height := uint64(len(bc.blocks))
	if err := verifyTransactions(block, height, bc.utxos); err != nil {
		return err
	}

	bc.blocks = append(bc.blocks, block)
	bc.evictMinedFromMempoolLocked(block)
	bc.tryAdjustTargetLocked()
	return nil
}

// evictMinedFromMempoolLocked removes every mempool entry whose transaction
// hash appears among block's transactions. Caller holds mu.
func (bc *Blockchain) evictMinedFromMempoolLocked(block Block) {
	mined := make(map[crypto.Hash]struct{}, len(block.Transactions))
	for _, tx := range block.Transactions {
		if h, err := tx.Hash(); err == nil {
			mined[h] = struct{}{}
		}
	}
	kept := bc.mempool[:0]
	for _, entry := range bc.mempool {
		h, err := entry.Transaction.Hash()
		if err != nil {
			continue
		}
		if _, isMined := mined[h]; !isMined {
			kept = append(kept, entry)
		}
	}
	bc.mempool = kept
}

// verifyTransactions checks the coinbase and non-coinbase validation rules
// of spec.md §4.2 step 2.
func verifyTransactions(block Block, height uint64, utxos map[crypto.Hash]UTXOEntry) error {
	coinbase := block.Transactions[0]
	if !coinbase.IsCoinbase() {
		return fmt.Errorf("%w: first transaction must be coinbase", chainerr.ErrInvalidTransaction)
	}
	if len(coinbase.Outputs) == 0 {
		return fmt.Errorf("%w: coinbase must have at least one output", chainerr.ErrInvalidTransaction)
	}

	fees, err := block.CalculateMinerFees(utxos)
	if err != nil {
		return fmt.Errorf("%w: %w", chainerr.ErrInvalidTransaction, err)
	}
	expected := BlockReward(height) + fees
	if coinbase.OutputValue() != expected {
		return fmt.Errorf("%w: coinbase value %d does not equal reward+fees %d", chainerr.ErrInvalidTransaction, coinbase.OutputValue(), expected)
	}

	seenInputs := make(map[crypto.Hash]struct{})
	for i, tx := range block.Transactions[1:] {
		if tx.IsCoinbase() {
			return fmt.Errorf("%w: transaction %d has no inputs", chainerr.ErrInvalidTransaction, i+1)
		}
		for _, in := range tx.Inputs {
			if _, dup := seenInputs[in.PrevTransactionOutputHash]; dup {
				return fmt.Errorf("%w: input %s spent twice in block", chainerr.ErrInvalidTransaction, in.PrevTransactionOutputHash)
			}
			seenInputs[in.PrevTransactionOutputHash] = struct{}{}

			entry, ok := utxos[in.PrevTransactionOutputHash]
			if !ok {
				return fmt.Errorf("%w: referenced output %s not found", chainerr.ErrInvalidTransaction, in.PrevTransactionOutputHash)
			}
			if !crypto.Verify(entry.Output.PubKey, in.PrevTransactionOutputHash, in.Signature) {
				return fmt.Errorf("%w: input %s", chainerr.ErrInvalidSignature, in.PrevTransactionOutputHash)
			}
		}
		inVal, err := tx.InputValue(utxos)
		if err != nil {
			return err
		}
		if inVal < tx.OutputValue() {
			return fmt.Errorf("%w: inputs %d less than outputs %d", chainerr.ErrInvalidTransaction, inVal, tx.OutputValue())
		}
	}
	return nil
}

// TryAdjustTarget re-evaluates the difficulty target against the current
// chain height. AddBlock already calls this after every accepted block;
// node bootstrap calls it again explicitly after loading a snapshot or
// replaying a peer's chain, per spec.md §4.8.
func (bc *Blockchain) TryAdjustTarget() {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.tryAdjustTargetLocked()
}

// tryAdjustTargetLocked is called at the end of every AddBlock. It is a
// no-op unless the chain height is a positive multiple of
// DifficultyUpdateInterval. Caller holds mu.
func (bc *Blockchain) tryAdjustTargetLocked() {
	n := uint64(len(bc.blocks))
	if n < DifficultyUpdateInterval || n%DifficultyUpdateInterval != 0 {
		return
	}

	last := bc.blocks[n-1].Header.Timestamp
	first := bc.blocks[n-DifficultyUpdateInterval].Header.Timestamp
	elapsed := last.Sub(first)
	if elapsed < 0 {
		elapsed = 0
	}
	ideal := IdealBlockTime * DifficultyUpdateInterval

	current := bc.target.Big()
	newTarget := new(big.Int).Mul(current, big.NewInt(int64(elapsed/time.Second)))
	newTarget.Div(newTarget, big.NewInt(int64(ideal/time.Second)))

	minBound := new(big.Int).Div(current, big.NewInt(4))
	maxBound := new(big.Int).Mul(current, big.NewInt(4))
	if newTarget.Cmp(minBound) < 0 {
		newTarget = minBound
	}
	if newTarget.Cmp(maxBound) > 0 {
		newTarget = maxBound
	}

	newHash := crypto.HashFromBig(newTarget)
	if newHash.Cmp(crypto.MinTarget) > 0 {
		newHash = crypto.MinTarget
	}
	bc.target = newHash
}

// AddToMempool validates tx for mempool admission and, on success, marks
// its inputs as reserved and inserts it, re-sorting the mempool by
// descending miner fee. See spec.md §4.4 for the conflict-resolution
// algorithm this faithfully reproduces, quirk included.
func (bc *Blockchain) AddToMempool(tx Transaction) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	seen := make(map[crypto.Hash]struct{}, len(tx.Inputs))
	var inputSum uint64
	for _, in := range tx.Inputs {
		if _, dup := seen[in.PrevTransactionOutputHash]; dup {
			return fmt.Errorf("%w: duplicate input within transaction", chainerr.ErrInvalidTransaction)
		}
		seen[in.PrevTransactionOutputHash] = struct{}{}

		entry, ok := bc.utxos[in.PrevTransactionOutputHash]
		if !ok {
			return fmt.Errorf("%w: referenced output %s not found", chainerr.ErrInvalidTransaction, in.PrevTransactionOutputHash)
		}
		inputSum += entry.Output.Value
	}
	if inputSum < tx.OutputValue() {
		return fmt.Errorf("%w: inputs %d less than outputs %d", chainerr.ErrInvalidTransaction, inputSum, tx.OutputValue())
	}

	for _, in := range tx.Inputs {
		entry := bc.utxos[in.PrevTransactionOutputHash]
		if entry.Marked {
			bc.resolveMarkedConflictLocked(in.PrevTransactionOutputHash)
		}
	}

	for _, in := range tx.Inputs {
		entry := bc.utxos[in.PrevTransactionOutputHash]
		entry.Marked = true
		bc.utxos[in.PrevTransactionOutputHash] = entry
	}

	bc.mempool = append(bc.mempool, MempoolEntry{AdmittedAt: time.Now(), Transaction: tx})
	sortMempoolByFeeDescending(bc.mempool, bc.utxos)
	return nil
}

// resolveMarkedConflictLocked implements spec.md §4.4's conflict
// resolution. It searches the mempool for a transaction that produced an
// OUTPUT with the given hash — not for the transaction whose INPUT
// reserved it. This conflates two different populations (UTXOs originate
// from accepted blocks, not mempool outputs) and is documented in spec.md
// §9 as a known source quirk to reproduce faithfully rather than "fix".
// When no match is found (the common case), it falls back to simply
// unmarking the contested UTXO. Caller holds mu.
func (bc *Blockchain) resolveMarkedConflictLocked(contested crypto.Hash) {
	for i, entry := range bc.mempool {
		for _, out := range entry.Transaction.Outputs {
			outHash, err := out.Hash()
			if err != nil {
				continue
			}
			if outHash == contested {
				for _, in := range entry.Transaction.Inputs {
					if u, ok := bc.utxos[in.PrevTransactionOutputHash]; ok {
						u.Marked = false
						bc.utxos[in.PrevTransactionOutputHash] = u
					}
				}
				bc.mempool = append(bc.mempool[:i], bc.mempool[i+1:]...)
				return
			}
		}
	}
	if u, ok := bc.utxos[contested]; ok {
		u.Marked = false
		bc.utxos[contested] = u
	}
}

// CleanupMempool evicts every mempool entry older than
// MaxMempoolTransactionAge, unmarking the UTXOs each eviction had reserved.
func (bc *Blockchain) CleanupMempool() {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	now := time.Now()
	kept := bc.mempool[:0]
	for _, entry := range bc.mempool {
		if now.Sub(entry.AdmittedAt) > MaxMempoolTransactionAge {
			for _, in := range entry.Transaction.Inputs {
				if u, ok := bc.utxos[in.PrevTransactionOutputHash]; ok {
					u.Marked = false
					bc.utxos[in.PrevTransactionOutputHash] = u
				}
			}
			continue
		}
		kept = append(kept, entry)
	}
	bc.mempool = kept
}

// RebuildUTXOs replays the accepted chain from scratch, reconciling the
// UTXO index with block history. It is the only routine that does so;
// AddBlock deliberately leaves utxos untouched (spec.md §9).
func (bc *Blockchain) RebuildUTXOs() error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	utxos := make(map[crypto.Hash]UTXOEntry)
	for _, block := range bc.blocks {
		for _, tx := range block.Transactions {
			for _, in := range tx.Inputs {
				delete(utxos, in.PrevTransactionOutputHash)
			}
			for _, out := range tx.Outputs {
				h, err := out.Hash()
				if err != nil {
					return fmt.Errorf("ledger: hashing output during rebuild: %w", err)
				}
				utxos[h] = UTXOEntry{Marked: false, Output: out}
			}
		}
	}
	bc.utxos = utxos
	return nil
}

// MempoolSnapshot returns a copy of the current mempool, already sorted by
// descending miner fee.
func (bc *Blockchain) MempoolSnapshot() []MempoolEntry {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	out := make([]MempoolEntry, len(bc.mempool))
	copy(out, bc.mempool)
	return out
}

// BuildTemplate assembles a prospective block paying reward+fees to
// minerKey, per spec.md §4.7's FetchTemplate algorithm.
func (bc *Blockchain) BuildTemplate(minerKey crypto.PublicKey) (Block, error) {
	bc.mu.RLock()
	mempool := make([]MempoolEntry, len(bc.mempool))
	copy(mempool, bc.mempool)
	utxos := bc.utxos
	target := bc.target
	tip, err := bc.tipLocked()
	height := uint64(len(bc.blocks))
	bc.mu.RUnlock()
	if err != nil {
		return Block{}, err
	}

	coinbaseOut, err := NewTransactionOutput(0, minerKey)
	if err != nil {
		return Block{}, err
	}
	coinbase := Transaction{Outputs: []TransactionOutput{coinbaseOut}}

	txs := make([]Transaction, 0, BlockTransactionCap+1)
	txs = append(txs, coinbase)
	for _, entry := range mempool {
		if len(txs)-1 >= BlockTransactionCap {
			break
		}
		txs = append(txs, entry.Transaction)
	}

	block := Block{
		Header: BlockHeader{
			Timestamp:     time.Now().UTC(),
			Nonce:         0,
			PrevBlockHash: tip,
			Target:        target,
		},
		Transactions: txs,
	}

	fees, err := block.CalculateMinerFees(utxos)
	if err != nil {
		return Block{}, err
	}
	block.Transactions[0].Outputs[0].Value = BlockReward(height) + fees

	root, err := CalculateMerkleRoot(block.Transactions)
	if err != nil {
		return Block{}, err
	}
	block.Header.MerkleRoot = root
	return block, nil
}

// ValidateTemplate reports whether candidate's prev-block-hash still
// matches the chain tip, per spec.md §4.7's ValidateTemplate handler.
func (bc *Blockchain) ValidateTemplate(candidate Block) (bool, error) {
	tip, err := bc.Tip()
	if err != nil {
		return false, err
	}
	return candidate.Header.PrevBlockHash == tip, nil
}

// snapshot is the CBOR-persisted form of a Blockchain: blocks and target,
// but never the mempool (spec.md §6: "mempool is marked non-persistent").
type snapshot struct {
	_      struct{} `cbor:",toarray"`
	Blocks []Block
	Target crypto.Hash
}

// MarshalSnapshot encodes bc's persisted state (blocks + target, no
// mempool, no marked flags) as CBOR.
func (bc *Blockchain) MarshalSnapshot() ([]byte, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return crypto.Marshal(snapshot{Blocks: bc.blocks, Target: bc.target})
}

// LoadSnapshot replaces bc's blocks and target from CBOR bytes written by
// MarshalSnapshot. The mempool and UTXO index are left untouched; callers
// should call RebuildUTXOs afterward, matching node bootstrap (spec.md
// §4.8).
func (bc *Blockchain) LoadSnapshot(data []byte) error {
	var s snapshot
	if err := crypto.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("ledger: decoding snapshot: %w", err)
	}
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.blocks = s.Blocks
	bc.target = s.Target
	return nil
}
