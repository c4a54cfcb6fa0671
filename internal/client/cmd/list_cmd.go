package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rudransh-shrivastava/peer-relay/internal/client/client"
	"github.com/rudransh-shrivastava/peer-relay/internal/logger"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:       "list [files|neighbors|routes|transfers]",
	Short:     "show the running node's state",
	Long:      `lists the node's local files (the default), neighbours, routes or pending outbound transfers`,
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"files", "neighbors", "routes", "transfers"},
	Run: func(cmd *cobra.Command, args []string) {
		logger := logger.NewLogger()
		what := "files"
		if len(args) == 1 {
			what = args[0]
		}
		if err := list(context.Background(), client.NewClient(nodeAPI), what); err != nil {
			logger.Fatal(err)
		}
	},
}

func list(ctx context.Context, c *client.Client, what string) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	switch what {
	case "files", "neighbors":
		get := c.Files
		if what == "neighbors" {
			get = c.Neighbors
		}
		names, err := get(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(tw, name)
		}

	case "routes":
		routes, err := c.Routes(ctx)
		if err != nil {
			return err
		}
		dests := make([]string, 0, len(routes))
		for d := range routes {
			dests = append(dests, d)
		}
		sort.Strings(dests)
		fmt.Fprintln(tw, "DESTINATION\tNEXT HOP")
		for _, d := range dests {
			fmt.Fprintf(tw, "%s\t%s\n", d, routes[d])
		}

	case "transfers":
		transfers, err := c.Transfers(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "DESTINATION\tFILE\tUNACKED\tLAST SENT")
		for _, t := range transfers {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", t.Destination, t.FileName, len(t.Unacked), t.SendTime.Local().Format(time.DateTime))
		}
	}
	return nil
}
