package cmd

import (
	"os"

	"github.com/rudransh-shrivastava/peer-relay/internal/logger"
	"github.com/spf13/cobra"
)

const defaultAPIAddr = "127.0.0.1:7401"

// address of the node API used by the client commands
var nodeAPI string

var rootCmd = &cobra.Command{
	Use:   `peer-relay`,
	Short: "multi-hop file relay over a peer overlay",
	Long: `peer-relay runs nodes that relay files to each other across an overlay of
direct links. Run "peer-relay node" to start a node, then use the other
commands to drive it.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.NewLogger().Error(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&nodeAPI, "node", defaultAPIAddr, "address of a running node's API")

	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(listCmd)
}
