package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rudransh-shrivastava/peer-relay/internal/api"
	"github.com/rudransh-shrivastava/peer-relay/internal/config"
	"github.com/rudransh-shrivastava/peer-relay/internal/console"
	"github.com/rudransh-shrivastava/peer-relay/internal/files"
	"github.com/rudransh-shrivastava/peer-relay/internal/ledger"
	"github.com/rudransh-shrivastava/peer-relay/internal/node"
	"github.com/rudransh-shrivastava/peer-relay/internal/store"
	"github.com/rudransh-shrivastava/peer-relay/internal/transport"
	"github.com/sirupsen/logrus"
)

// runNode wires a node from cfg and runs it with its surfaces until ctx
// ends or the console quits.
func runNode(ctx context.Context, cfg config.Config, log *logrus.Logger, interactive bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := store.New(ctx, store.Config{
		Backend:   cfg.Ledger.Backend,
		Path:      cfg.Ledger.Path,
		RedisAddr: cfg.Ledger.RedisAddr,
		RedisDB:   cfg.Ledger.RedisDB,
		RedisPass: cfg.Ledger.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	l := ledger.Open(ctx, st, ledger.Options{Logger: log})
	defer func() {
		if err := l.Close(); err != nil {
			log.Warnf("Closing ledger: %v", err)
		}
	}()

	dir, err := files.NewDir(cfg.Files.Dir, cfg.Files.ReceivedPrefix, log)
	if err != nil {
		return err
	}

	tr, err := transport.NewTransport(cfg.Listen)
	if err != nil {
		return err
	}
	defer tr.Close()

	opts := node.Options{
		ID:               cfg.ID(),
		Listener:         tr,
		Dialer:           tr,
		Ledger:           l,
		Files:            dir,
		Logger:           log,
		BlockSize:        cfg.BlockSize,
		TTL:              cfg.TTL,
		AckLimit:         cfg.AckLimit,
		SweepInterval:    cfg.SweepInterval,
		PollInterval:     cfg.PollInterval,
		HandshakeTimeout: cfg.HandshakeTimeout,
		Similarity:       cfg.Files.Similarity,
	}
	if interactive {
		opts.Progress = console.NewProgress(os.Stdout).Observe
	}
	n, err := node.New(opts)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	goTask := func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}
	defer wg.Wait()
	// cancel runs before Wait
	defer cancel()

	goTask(func() {
		if err := dir.Watch(ctx); err != nil {
			log.Warnf("File watcher stopped: %v", err)
		}
	})

	goTask(func() {
		if err := n.Run(ctx); err != nil {
			log.Errorf("Node stopped: %v", err)
		}
		cancel()
	})

	if cfg.API.Addr != "" {
		lis, err := net.Listen("tcp", cfg.API.Addr)
		if err != nil {
			return fmt.Errorf("API listener: %w", err)
		}
		gin.SetMode(gin.ReleaseMode)
		srv := api.NewServer(n, log)
		goTask(func() {
			if err := srv.Serve(ctx, lis); err != nil {
				log.Errorf("API server stopped: %v", err)
			}
		})
	}

	if cfg.Serial.Port != "" {
		link, err := transport.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return err
		}
		if err := n.Attach(ctx, link); err != nil {
			_ = link.Close()
			return fmt.Errorf("attaching %s: %w", cfg.Serial.Port, err)
		}
		log.Infof("Serial link on %s at %d baud", cfg.Serial.Port, cfg.Serial.Baud)
	}

	for _, peer := range cfg.Peers {
		goTask(func() {
			id, err := n.Join(ctx, peer)
			if err != nil {
				log.Warnf("Could not join %s: %v", peer, err)
				return
			}
			log.Infof("Joined %s", id)
		})
	}

	if interactive {
		c := console.New(n, os.Stdin, os.Stdout, cancel)
		// EOF on stdin leaves the node running; only "quit" stops it
		goTask(func() {
			if err := c.Run(ctx); err != nil {
				log.Warnf("Console stopped: %v", err)
			}
		})
	}

	<-ctx.Done()
	return nil
}
