package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rudransh-shrivastava/peer-relay/internal/ledger"
	"github.com/rudransh-shrivastava/peer-relay/internal/routing"
	"github.com/sirupsen/logrus"
)

// ackSweeper resends transfers whose acknowledgements stopped arriving.
type ackSweeper struct {
	ledger *ledger.Ledger
	limit  time.Duration
	now    func() time.Time
	logger *logrus.Logger
	resend func(ctx context.Context, destination, fileName string) error
}

// sweep runs one pass and returns how many resends it started. Each
// expired entry is resent at most once per pass. A resend that cannot
// start leaves the entry in place with a fresh send time.
func (s *ackSweeper) sweep(ctx context.Context) int {
	started := 0
	for _, e := range s.ledger.Expired(s.limit) {
		if ctx.Err() != nil {
			return started
		}
		if err := s.resend(ctx, e.Destination, e.FileName); err != nil {
			if !errors.Is(err, ErrSendInFlight) {
				s.logger.Warnf("Resend of %s to %s failed: %v", e.FileName, e.Destination, err)
			}
			if err := s.ledger.Touch(e.Destination, e.FileName, s.now()); err != nil {
				s.logger.Errorf("Ledger write failed: %v", err)
			}
			continue
		}
		s.logger.Infof("No acks for %s from %s in %s, resending", e.FileName, e.Destination, s.limit)
		started++
	}
	return started
}

// sweepLoop resumes what a previous run left behind, then sweeps on every
// tick. Both share one goroutine so a recovery and a sweep never race on
// the same entry.
func (n *Node) sweepLoop(ctx context.Context) {
	n.recoverTransfers(ctx)

	s := &ackSweeper{
		ledger: n.ledger,
		limit:  n.opts.AckLimit,
		now:    n.opts.Now,
		logger: n.logger,
		resend: n.resend,
	}

	ticker := time.NewTicker(n.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// resend restarts a transfer from scratch, rejoining the destination first
// if it is no longer reachable.
func (n *Node) resend(ctx context.Context, destination, name string) error {
	if err := n.ensureReachable(ctx, destination); err != nil {
		return err
	}
	return n.launchSend(ctx, destination, name, func() error {
		return n.ledger.RemoveTransfer(destination, name)
	})
}

// ensureReachable joins destination directly when there is no route to
// it. Node ids default to listen addresses, so the id is dialled as is.
func (n *Node) ensureReachable(ctx context.Context, destination string) error {
	_, err := n.table.ResolveNextHop(destination)
	if err == nil {
		return nil
	}
	if !errors.Is(err, routing.ErrUnknownDestination) {
		return err
	}
	id, jerr := n.Join(ctx, destination)
	if jerr != nil {
		return fmt.Errorf("%w (rejoin failed: %v)", err, jerr)
	}
	if id != destination {
		return fmt.Errorf("%w: %s answered as %s", err, destination, id)
	}
	return nil
}

// recoverTransfers resumes every transfer left in the ledger by a previous
// run.
func (n *Node) recoverTransfers(ctx context.Context) {
	entries := n.ledger.Snapshot()
	if len(entries) == 0 {
		return
	}
	n.logger.Infof("Recovering %d unfinished transfers", len(entries))

	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		if err := n.resend(ctx, e.Destination, e.FileName); err != nil {
			// the ack sweep retries once the entry expires
			n.logger.Warnf("Could not resume %s to %s: %v", e.FileName, e.Destination, err)
			continue
		}
		n.logger.Infof("Resumed %s to %s", e.FileName, e.Destination)
	}
}
