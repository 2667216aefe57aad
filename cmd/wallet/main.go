// Command wallet loads a keyring from TOML config, assembles and submits
// transactions, and keeps a local UTXO cache fresh in the background. The
// interactive terminal UI of the original good-wallet binary is out of
// scope (spec.md §1); this entry point keeps everything else.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gochain/gochain/pkg/crypto"
	"github.com/gochain/gochain/pkg/logger"
	"github.com/gochain/gochain/pkg/walletcore"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	nodeOverride string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wallet",
		Short: "gochain wallet",
		RunE:  runWallet,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "wallet_config.toml", "path to wallet TOML config")
	rootCmd.PersistentFlags().StringVarP(&nodeOverride, "node", "n", "", "override the configured node address")

	rootCmd.AddCommand(generateConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wallet: %v\n", err)
		os.Exit(1)
	}
}

func generateConfigCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "generate-config",
		Short: "write a dummy wallet configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return walletcore.SaveConfig(output, walletcore.DefaultConfig())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "wallet_config.toml", "output path for the generated config")
	return cmd
}

func runWallet(cmd *cobra.Command, args []string) error {
	log := logger.NewLogger(logger.DefaultConfig())

	cfg, err := walletcore.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if nodeOverride != "" {
		log.Info("overriding configured node %s with %s", cfg.NodeAddress, nodeOverride)
		cfg.NodeAddress = nodeOverride
	}

	keypairs, err := loadKeypairs(cfg.MyKeys)
	if err != nil {
		return fmt.Errorf("loading keys: %w", err)
	}

	core := walletcore.New(cfg.NodeAddress, cfg.Fee, keypairs, log)

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	go runStatusLoop(core, stop, log)

	core.RunBackgroundTasks(stop)
	return nil
}

// runStatusLoop substitutes for the original wallet's terminal UI balance
// render, which spec.md §1 excludes from scope.
func runStatusLoop(core *walletcore.Core, stop <-chan struct{}, log *logger.Logger) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			log.Debug("balance: %d", core.Balance())
		}
	}
}

func loadKeypairs(keys []walletcore.KeyPaths) ([]crypto.PrivateKey, error) {
	out := make([]crypto.PrivateKey, 0, len(keys))
	for _, k := range keys {
		data, err := os.ReadFile(k.Private)
		if err != nil {
			return nil, fmt.Errorf("reading private key %s: %w", k.Private, err)
		}
		priv, err := crypto.LoadPrivateKeyCBOR(data)
		if err != nil {
			return nil, fmt.Errorf("parsing private key %s: %w", k.Private, err)
		}
		out = append(out, priv)
	}
	return out, nil
}
