package cmd

import (
	"context"

	"github.com/rudransh-shrivastava/peer-relay/internal/client/client"
	"github.com/rudransh-shrivastava/peer-relay/internal/logger"
	"github.com/spf13/cobra"
)

var requestCmd = &cobra.Command{
	Use:   "request file",
	Short: "search the network for a file",
	Long: `floods a search for file through the overlay; the closest holder of the
best matching name sends it back to the running node`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger := logger.NewLogger()
		if err := client.NewClient(nodeAPI).Request(context.Background(), args[0]); err != nil {
			logger.Fatal(err)
			return
		}
		logger.Infof("Searching for %s", args[0])
	},
}
