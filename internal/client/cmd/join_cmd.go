package cmd

import (
	"context"

	"github.com/rudransh-shrivastava/peer-relay/internal/client/client"
	"github.com/rudransh-shrivastava/peer-relay/internal/logger"
	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:   "join address",
	Short: "join another node",
	Long:  `asks the running node to open a direct link to the node listening at address`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger := logger.NewLogger()
		id, err := client.NewClient(nodeAPI).Join(context.Background(), args[0])
		if err != nil {
			logger.Fatal(err)
			return
		}
		logger.Infof("Joined %s", id)
	},
}
