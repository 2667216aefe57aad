// Package walletcore implements the wallet process's non-UI core: keypair
// management, a locally-cached UTXO index refreshed from one node,
// transaction assembly (spec.md §4.10), and TOML configuration.
package walletcore

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// FeePolicyKind selects how FeePolicy.Fee computes the fee that
// Core.assembleTransaction adds to a transfer.
type FeePolicyKind string

const (
	FeeFixed   FeePolicyKind = "fixed"
	FeePercent FeePolicyKind = "percent"
)

// FeePolicy is the wallet's configured fee computation.
type FeePolicy struct {
	Kind  FeePolicyKind `toml:"kind"`
	Value uint64        `toml:"value"` // Fixed: flat satoshis. Percent: whole-number percent.
}

// Fee returns the fee owed for a transfer of amount satoshis under p.
func (p FeePolicy) Fee(amount uint64) uint64 {
	switch p.Kind {
	case FeePercent:
		return (amount * p.Value) / 100
	default:
		return p.Value
	}
}

// KeyPaths names the PEM/CBOR files backing one locally-held keypair,
// mirroring the original wallet's `my_keys` config entries.
type KeyPaths struct {
	Public  string `toml:"public"`
	Private string `toml:"private"`
}

// Contact is an address-book entry: a friendly name for a recipient's
// public key file, carried over from the original wallet's `contacts`
// list though spec.md's core doesn't reference it directly.
type Contact struct {
	Name string `toml:"name"`
	Key  string `toml:"key"`
}

// Config is the wallet's on-disk TOML configuration, per spec.md §6.3's
// `--config` flag and `generate-config` subcommand.
type Config struct {
	NodeAddress string     `toml:"node_address"`
	MyKeys      []KeyPaths `toml:"my_keys"`
	Contacts    []Contact  `toml:"contacts"`
	Fee         FeePolicy  `toml:"fee"`
}

// DefaultConfig returns the dummy configuration written by
// `generate-config`, grounded on the original wallet's sample TOML.
func DefaultConfig() Config {
	return Config{
		NodeAddress: "127.0.0.1:9000",
		MyKeys: []KeyPaths{
			{Public: "wallet.pub.pem", Private: "wallet.priv.cbor"},
		},
		Contacts: []Contact{},
		Fee:      FeePolicy{Kind: FeeFixed, Value: 0},
	}
}

// LoadConfig reads and parses a TOML config file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("walletcore: reading config %s: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("walletcore: parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path in TOML form, used by `generate-config`.
func SaveConfig(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("walletcore: encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("walletcore: writing config %s: %w", path, err)
	}
	return nil
}
