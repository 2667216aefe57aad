// Command node runs the full node process: it serves the peer message
// table, gossips accepted blocks and transactions, and persists periodic
// blockchain snapshots. See spec.md §6.3.
package main

import (
	"fmt"
	"os"

	"github.com/gochain/gochain/pkg/logger"
	"github.com/gochain/gochain/pkg/node"
	"github.com/gochain/gochain/pkg/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	port            int
	blockchainFile  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "node [seed-address ...]",
		Short: "gochain full node",
		Long:  `node serves the peer-to-peer message table and maintains the authoritative blockchain.`,
		RunE:  runNode,
	}

	rootCmd.Flags().IntVar(&port, "port", 9000, "TCP port to listen on")
	rootCmd.Flags().StringVar(&blockchainFile, "blockchain-file", "./data", "directory backing the blockchain snapshot store")
	viper.BindPFlag("port", rootCmd.Flags().Lookup("port"))
	viper.BindPFlag("blockchain-file", rootCmd.Flags().Lookup("blockchain-file"))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "node: %v\n", err)
		os.Exit(1)
	}
}

func runNode(cmd *cobra.Command, seeds []string) error {
	log := logger.NewLogger(logger.DefaultConfig())

	store, err := storage.New(&storage.Config{DataDir: blockchainFile})
	if err != nil {
		return fmt.Errorf("opening blockchain store: %w", err)
	}
	defer store.Close()

	n := node.New(fmt.Sprintf(":%d", port), store, log)

	log.Info("bootstrapping with %d seed(s)", len(seeds))
	if err := n.Bootstrap(seeds); err != nil {
		return fmt.Errorf("bootstrapping node: %w", err)
	}

	return n.Serve()
}
