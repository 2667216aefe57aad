// Package storage persists the blockchain snapshot to an embedded
// key-value store, adapted from the gochain storage layer's Storage/Config
// shape but simplified to the single-blob schema spec.md calls for: the
// snapshot is a CBOR serialization of the Blockchain minus its mempool.
package storage

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// snapshotKey is the single badger key the blockchain snapshot is stored
// under. There is exactly one logical snapshot; unlike the teacher's
// per-block schema, nothing here is indexed by height or hash.
var snapshotKey = []byte("blockchain/snapshot")

// Storage is the blockchain persistence layer.
type Storage struct {
	mu sync.Mutex
	db *badger.DB
}

// Config holds configuration for Storage.
type Config struct {
	DataDir string
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() *Config {
	return &Config{DataDir: "./data"}
}

// New opens (creating if necessary) the badger database at config.DataDir.
func New(config *Config) (*Storage, error) {
	if config == nil {
		config = DefaultConfig()
	}
	opts := badger.DefaultOptions(config.DataDir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: opening database at %s: %w", config.DataDir, err)
	}
	return &Storage{db: db}, nil
}

// SaveSnapshot writes data — the CBOR-encoded blockchain snapshot — under
// the single well-known key, overwriting any prior snapshot.
func (s *Storage) SaveSnapshot(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey, data)
	})
}

// LoadSnapshot returns the previously saved snapshot bytes, or
// (nil, badger.ErrKeyNotFound) if none has ever been saved.
func (s *Storage) LoadSnapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// HasSnapshot reports whether a snapshot has ever been saved.
func (s *Storage) HasSnapshot() bool {
	_, err := s.LoadSnapshot()
	return err == nil
}

// Close releases the underlying database handle.
func (s *Storage) Close() error {
	return s.db.Close()
}
