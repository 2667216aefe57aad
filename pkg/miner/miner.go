// Package miner implements the stateless polling miner: it pulls a block
// template from one node, grinds a nonce sweep on a dedicated goroutine,
// re-validates its candidate against the node between sweep windows, and
// submits whatever it finds. See spec.md §4.9.
package miner

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/gochain/gochain/pkg/crypto"
	"github.com/gochain/gochain/pkg/ledger"
	"github.com/gochain/gochain/pkg/logger"
	"github.com/gochain/gochain/pkg/netwire"
)

// PollInterval is the controller tick rate.
const PollInterval = 5 * time.Second

// NonceSweepWindow is the maximum number of nonce increments a single sweep
// performs before yielding back to the controller.
const NonceSweepWindow = 2_000_000

// Miner polls nodeAddr for work and mines on behalf of pubKey.
type Miner struct {
	nodeAddr string
	pubKey   crypto.PublicKey
	log      *logger.Logger

	mining  atomic.Bool
	current ledger.Block
	found   chan ledger.Block
}

// New creates a Miner targeting the node listening at nodeAddr.
func New(nodeAddr string, pubKey crypto.PublicKey, log *logger.Logger) *Miner {
	if log == nil {
		log = logger.NewLogger(logger.DefaultConfig())
	}
	return &Miner{
		nodeAddr: nodeAddr,
		pubKey:   pubKey,
		log:      log,
		found:    make(chan ledger.Block, 1),
	}
}

// Run drives the controller loop until stop is closed.
func (m *Miner) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case block := <-m.found:
			if err := m.submitTemplate(block); err != nil {
				m.log.Warn("submitting mined block: %v", err)
			}
			m.mining.Store(false)
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick implements spec.md §4.9's controller step: fetch a fresh template
// when idle, or re-validate the in-flight one against the node.
func (m *Miner) tick() {
	if !m.mining.Load() {
		block, err := m.fetchTemplate()
		if err != nil {
			m.log.Warn("fetching template: %v", err)
			return
		}
		m.current = block
		m.mining.Store(true)
		go m.sweep(block)
		return
	}

	valid, err := m.validateTemplate(m.current)
	if err != nil {
		m.log.Warn("validating template: %v", err)
		return
	}
	if !valid {
		m.log.Debug("template invalidated by new tip, dropping")
		m.mining.Store(false)
	}
}

// sweep grinds block's header in windows of NonceSweepWindow nonces, one
// window after another for as long as the mining flag stays set, per
// spec.md §4.9's background worker. This is the miner's hashing inner
// loop, a trivial sweep explicitly carved out of the core spec's
// invariants; its only contract with the rest of the system is the
// template it started from and the block it may deliver on m.found.
func (m *Miner) sweep(block ledger.Block) {
	for m.mining.Load() {
		for i := 0; i < NonceSweepWindow; i++ {
			if !m.mining.Load() {
				return
			}
			block.Header.Nonce++
			if block.Header.Nonce == 0 {
				block.Header.Timestamp = time.Now().UTC()
			}
			matches, err := block.Header.MatchesTarget()
			if err != nil {
				m.log.Error("hashing candidate header: %v", err)
				return
			}
			if matches {
				select {
				case m.found <- block:
				default:
				}
				return
			}
		}
	}
}

func (m *Miner) fetchTemplate() (ledger.Block, error) {
	conn, err := net.Dial("tcp", m.nodeAddr)
	if err != nil {
		return ledger.Block{}, fmt.Errorf("miner: dialing node: %w", err)
	}
	defer conn.Close()
	if err := netwire.Send(conn, netwire.MsgFetchTemplate(m.pubKey)); err != nil {
		return ledger.Block{}, fmt.Errorf("miner: sending FetchTemplate: %w", err)
	}
	reply, err := netwire.Receive(conn)
	if err != nil {
		return ledger.Block{}, fmt.Errorf("miner: receiving Template: %w", err)
	}
	if reply.Kind != netwire.KindTemplate {
		return ledger.Block{}, fmt.Errorf("miner: expected Template, got %s", reply.Kind)
	}
	return reply.Block, nil
}

func (m *Miner) validateTemplate(block ledger.Block) (bool, error) {
	conn, err := net.Dial("tcp", m.nodeAddr)
	if err != nil {
		return false, fmt.Errorf("miner: dialing node: %w", err)
	}
	defer conn.Close()
	if err := netwire.Send(conn, netwire.MsgValidateTemplate(block)); err != nil {
		return false, fmt.Errorf("miner: sending ValidateTemplate: %w", err)
	}
	reply, err := netwire.Receive(conn)
	if err != nil {
		return false, fmt.Errorf("miner: receiving TemplateValidity: %w", err)
	}
	if reply.Kind != netwire.KindTemplateValidity {
		return false, fmt.Errorf("miner: expected TemplateValidity, got %s", reply.Kind)
	}
	return reply.Valid, nil
}

func (m *Miner) submitTemplate(block ledger.Block) error {
	conn, err := net.Dial("tcp", m.nodeAddr)
	if err != nil {
		return fmt.Errorf("miner: dialing node: %w", err)
	}
	defer conn.Close()
	return netwire.Send(conn, netwire.MsgSubmitTemplate(block))
}
