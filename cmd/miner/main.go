// Command miner runs the stateless polling miner against one node. See
// spec.md §4.9 and §6.3.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gochain/gochain/pkg/crypto"
	"github.com/gochain/gochain/pkg/logger"
	"github.com/gochain/gochain/pkg/miner"
	"github.com/spf13/cobra"
)

var (
	nodeAddress   string
	publicKeyFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "miner",
		Short: "gochain polling miner",
		RunE:  runMiner,
	}

	rootCmd.Flags().StringVar(&nodeAddress, "address", "127.0.0.1:9000", "node TCP endpoint to mine against")
	rootCmd.Flags().StringVar(&publicKeyFile, "public-key-file", "", "PEM file holding the coinbase recipient public key")
	rootCmd.MarkFlagRequired("public-key-file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "miner: %v\n", err)
		os.Exit(1)
	}
}

func runMiner(cmd *cobra.Command, args []string) error {
	log := logger.NewLogger(logger.DefaultConfig())

	data, err := os.ReadFile(publicKeyFile)
	if err != nil {
		return fmt.Errorf("reading public key file: %w", err)
	}
	pub, err := crypto.LoadPublicKeyPEM(data)
	if err != nil {
		return fmt.Errorf("parsing public key: %w", err)
	}

	m := miner.New(nodeAddress, pub, log)
	log.Info("mining against %s for %s", nodeAddress, pub)

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	m.Run(stop)
	return nil
}
