package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rudransh-shrivastava/peer-relay/internal/config"
	"github.com/rudransh-shrivastava/peer-relay/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configFile string
	noConsole  bool
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "run a relay node",
	Long: `runs a node: it listens for neighbours, relays traffic, serves its files
and exposes an HTTP API for the other commands. Unless --no-console is given
an interactive console reads commands from stdin.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.NewLogger()

		v := config.New()
		if err := config.BindFlags(v, cmd.Flags()); err != nil {
			log.Fatal(err)
		}
		cfg, err := config.Load(v, configFile)
		if err != nil {
			log.Fatal(err)
		}
		log.SetLevel(logger.ParseLevel(cfg.Log.Level))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runNode(ctx, cfg, log, !noConsole); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	f := nodeCmd.Flags()
	f.StringVar(&configFile, "config", "", "YAML config file")
	f.BoolVar(&noConsole, "no-console", false, "do not read commands from stdin")

	f.String("listen", "", "address to accept neighbours on")
	f.String("id", "", "node id (defaults to the listen address)")
	f.StringSlice("peer", nil, "node to join at startup (repeatable)")
	f.String("dir", "", "directory of files to serve and receive into")
	f.String("ledger", "", "ledger backend: file, sqlite or redis")
	f.String("ledger-dsn", "", "ledger file or sqlite database path")
	f.String("api", "", "address of the HTTP API, empty to disable")
	f.String("log-level", "", "debug, info, warn or error")
	f.String("serial", "", "serial port of a point-to-point radio link")
	f.Int("baud", 0, "serial baud rate")
	f.Int("ttl", 0, "hop budget of originated messages")
	f.Int("block-size", 0, "frame size in bytes")
	f.Duration("ack-limit", 0, "resend a transfer after this long without acks")
}
