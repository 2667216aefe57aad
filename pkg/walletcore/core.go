package walletcore

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gochain/gochain/pkg/chainerr"
	"github.com/gochain/gochain/pkg/crypto"
	"github.com/gochain/gochain/pkg/ledger"
	"github.com/gochain/gochain/pkg/logger"
	"github.com/gochain/gochain/pkg/netwire"
)

// UTXORefreshInterval is how often the wallet re-fetches its UTXO set from
// the node.
const UTXORefreshInterval = 20 * time.Second

// keyEntry is one locally-held keypair and its last-known UTXO set.
type keyEntry struct {
	priv  crypto.PrivateKey
	pub   crypto.PublicKey
	utxos []ledger.UTXOEntry
}

// Core holds the wallet's keypairs, its cached view of each key's UTXOs,
// and the fee policy used to assemble outgoing transactions.
type Core struct {
	mu         sync.RWMutex
	nodeAddr   string
	fee        FeePolicy
	keys       []*keyEntry
	log        *logger.Logger
	outgoing   chan ledger.Transaction
}

// New creates a Core for the given keypairs, talking to the node at
// nodeAddr.
func New(nodeAddr string, fee FeePolicy, keypairs []crypto.PrivateKey, log *logger.Logger) *Core {
	if log == nil {
		log = logger.NewLogger(logger.DefaultConfig())
	}
	keys := make([]*keyEntry, len(keypairs))
	for i, priv := range keypairs {
		keys[i] = &keyEntry{priv: priv, pub: priv.Public()}
	}
	return &Core{
		nodeAddr: nodeAddr,
		fee:      fee,
		keys:     keys,
		log:      log,
		outgoing: make(chan ledger.Transaction, 16),
	}
}

// Balance returns the sum of every key's cached UTXO value, marked or not.
func (c *Core) Balance() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total uint64
	for _, k := range c.keys {
		for _, u := range k.utxos {
			total += u.Output.Value
		}
	}
	return total
}

// RunBackgroundTasks starts the UTXO-refresh ticker and the outgoing
// transaction submitter, per spec.md §4's wallet background tasks
// (supplemented from the original wallet's task set, not excluded by any
// Non-goal). Blocks until stop is closed.
func (c *Core) RunBackgroundTasks(stop <-chan struct{}) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.runUTXORefresh(stop)
	}()
	go func() {
		defer wg.Done()
		c.runOutgoingSubmitter(stop)
	}()
	wg.Wait()
}

func (c *Core) runUTXORefresh(stop <-chan struct{}) {
	ticker := time.NewTicker(UTXORefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.refreshUTXOs(); err != nil {
				c.log.Warn("refreshing utxos: %v", err)
			}
		}
	}
}

func (c *Core) refreshUTXOs() error {
	c.mu.RLock()
	keys := append([]*keyEntry(nil), c.keys...)
	c.mu.RUnlock()

	for _, k := range keys {
		entries, err := c.fetchUTXOs(k.pub)
		if err != nil {
			return err
		}
		c.mu.Lock()
		k.utxos = entries
		c.mu.Unlock()
	}
	return nil
}

func (c *Core) fetchUTXOs(pub crypto.PublicKey) ([]ledger.UTXOEntry, error) {
	conn, err := net.Dial("tcp", c.nodeAddr)
	if err != nil {
		return nil, fmt.Errorf("walletcore: dialing node: %w", err)
	}
	defer conn.Close()
	if err := netwire.Send(conn, netwire.MsgFetchUTXOs(pub)); err != nil {
		return nil, fmt.Errorf("walletcore: sending FetchUTXOs: %w", err)
	}
	reply, err := netwire.Receive(conn)
	if err != nil {
		return nil, fmt.Errorf("walletcore: receiving UTXOs: %w", err)
	}
	if reply.Kind != netwire.KindUTXOs {
		return nil, fmt.Errorf("walletcore: expected UTXOs, got %s", reply.Kind)
	}
	entries := make([]ledger.UTXOEntry, len(reply.UTXOs))
	for i, w := range reply.UTXOs {
		entries[i] = ledger.UTXOEntry{Output: w.Output, Marked: w.Marked}
	}
	return entries, nil
}

// runOutgoingSubmitter drains c.outgoing, submitting each transaction to
// the node.
func (c *Core) runOutgoingSubmitter(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case tx := <-c.outgoing:
			if err := c.submitTransaction(tx); err != nil {
				c.log.Warn("submitting transaction: %v", err)
			}
		}
	}
}

func (c *Core) submitTransaction(tx ledger.Transaction) error {
	conn, err := net.Dial("tcp", c.nodeAddr)
	if err != nil {
		return fmt.Errorf("walletcore: dialing node: %w", err)
	}
	defer conn.Close()
	return netwire.Send(conn, netwire.MsgSubmitTransaction(tx))
}

// Send assembles a transaction paying amount satoshis to recipient, per
// spec.md §4.10, and queues it for background submission.
func (c *Core) Send(recipient crypto.PublicKey, amount uint64) (ledger.Transaction, error) {
	tx, err := c.assembleTransaction(recipient, amount)
	if err != nil {
		return ledger.Transaction{}, err
	}

	select {
	case c.outgoing <- tx:
	default:
		c.log.Warn("outgoing transaction queue full, submitting inline")
		if err := c.submitTransaction(tx); err != nil {
			return ledger.Transaction{}, err
		}
	}
	return tx, nil
}

// assembleTransaction builds and signs a transaction paying amount to
// recipient from the wallet's cached UTXOs, per spec.md §4.10.
func (c *Core) assembleTransaction(recipient crypto.PublicKey, amount uint64) (ledger.Transaction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.keys) == 0 {
		return ledger.Transaction{}, fmt.Errorf("walletcore: no local keys configured")
	}

	fee := c.fee.Fee(amount)
	needed := amount + fee

	var inputs []ledger.TransactionInput
	var sum uint64
	for _, k := range c.keys {
		for _, entry := range k.utxos {
			if entry.Marked {
				continue
			}
			if sum >= needed {
				break
			}
			outHash, err := entry.Output.Hash()
			if err != nil {
				return ledger.Transaction{}, err
			}
			sig, err := k.priv.Sign(outHash)
			if err != nil {
				return ledger.Transaction{}, err
			}
			inputs = append(inputs, ledger.TransactionInput{
				PrevTransactionOutputHash: outHash,
				Signature:                 sig,
			})
			sum += entry.Output.Value
		}
		if sum >= needed {
			break
		}
	}
	if sum < needed {
		return ledger.Transaction{}, fmt.Errorf("%w: have %d, need %d", chainerr.ErrInsufficientFunds, sum, needed)
	}

	recipientOut, err := ledger.NewTransactionOutput(amount, recipient)
	if err != nil {
		return ledger.Transaction{}, err
	}
	outputs := []ledger.TransactionOutput{recipientOut}

	if sum > needed {
		changeOut, err := ledger.NewTransactionOutput(sum-needed, c.keys[0].pub)
		if err != nil {
			return ledger.Transaction{}, err
		}
		outputs = append(outputs, changeOut)
	}

	return ledger.Transaction{Inputs: inputs, Outputs: outputs}, nil
}
