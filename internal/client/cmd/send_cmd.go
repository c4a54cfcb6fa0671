package cmd

import (
	"context"

	"github.com/rudransh-shrivastava/peer-relay/internal/client/client"
	"github.com/rudransh-shrivastava/peer-relay/internal/logger"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send destination file",
	Short: "send a file to a node",
	Long: `sends a file from the running node's directory to the node with id
destination, relayed over intermediate nodes when it is not a neighbour`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		logger := logger.NewLogger()
		if err := client.NewClient(nodeAPI).Send(context.Background(), args[0], args[1]); err != nil {
			logger.Fatal(err)
			return
		}
		logger.Infof("Sending %s to %s", args[1], args[0])
	},
}
