package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/rudransh-shrivastava/peer-relay/internal/protocol"
)

type Stage int

const (
	StageSent Stage = iota
	StageAcked
	StageComplete
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageSent:
		return "sent"
	case StageAcked:
		return "acked"
	case StageComplete:
		return "complete"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProgressEvent reports the state of one outbound transfer.
type ProgressEvent struct {
	Destination string
	FileName    string
	Stage       Stage
	// Part is the fragment just sent or acknowledged.
	Part int
	// Parts is the fragment count, known to the sending side only.
	Parts int
	// Remaining is the number of unacknowledged fragments after an ack.
	Remaining int
	Err       error
}

func (n *Node) progress(ev ProgressEvent) {
	if n.opts.Progress != nil {
		n.opts.Progress(ev)
	}
}

// SendFile starts sending the local file name to destination. The transfer
// runs in the background; SendFile only checks that the destination is
// reachable and that no other send of the same file to it is running.
func (n *Node) SendFile(ctx context.Context, destination, name string) error {
	return n.launchSend(ctx, destination, name, nil)
}

// launchSend reserves the (destination, name) slot and starts the send
// task, which runs before first.
func (n *Node) launchSend(ctx context.Context, destination, name string, before func() error) error {
	if err := n.waitRunning(ctx); err != nil {
		return err
	}
	if destination == n.id {
		return fmt.Errorf("cannot send %s to self", name)
	}
	if _, err := n.table.ResolveNextHop(destination); err != nil {
		return err
	}

	key := sendKey{destination: destination, fileName: name}
	n.mu.Lock()
	if _, busy := n.sending[key]; busy {
		n.mu.Unlock()
		return ErrSendInFlight
	}
	n.sending[key] = struct{}{}
	n.mu.Unlock()

	release := func() {
		n.mu.Lock()
		delete(n.sending, key)
		n.mu.Unlock()
	}

	started := n.spawn(func() {
		defer release()
		if before != nil {
			if err := before(); err != nil {
				n.logger.Warnf("Cannot restart %s to %s: %v", name, destination, err)
				return
			}
		}
		if err := n.sendFile(n.runCtx, destination, name); err != nil {
			n.logger.Warnf("Send of %s to %s failed: %v", name, destination, err)
			n.progress(ProgressEvent{Destination: destination, FileName: name, Stage: StageFailed, Err: err})
		}
	})
	if !started {
		release()
		return ErrStopped
	}
	return nil
}

// sendFile fragments the file and writes every frame in order over the
// current next hop. On a write failure the ledger entry is left for the
// ack sweep to retry.
func (n *Node) sendFile(ctx context.Context, destination, name string) error {
	data, err := n.files.ReadWholeFile(name)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}

	header := protocol.Header{Sender: n.id, Receiver: destination, TTL: n.ttl()}
	frags, err := n.codec.Fragment(header, name, data)
	if err != nil {
		return err
	}

	link, err := n.table.ResolveNextHop(destination)
	if err != nil {
		return err
	}

	if err := n.ledger.BeginTransfer(destination, name, frags.LastPart()); err != nil {
		n.logger.Errorf("Ledger write failed for %s to %s: %v", name, destination, err)
	}

	n.logger.Infof("Sending %s (%d bytes, %d parts) to %s via %s", name, len(data), frags.Count(), destination, link)
	for part, frame := range frags.All() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := link.WriteFrame(frame); err != nil {
			_ = link.Close()
			return fmt.Errorf("part %d: %w", part, err)
		}
		n.progress(ProgressEvent{
			Destination: destination,
			FileName:    name,
			Stage:       StageSent,
			Part:        part,
			Parts:       frags.Count(),
		})
	}
	return nil
}

func (n *Node) handleAck(m *protocol.Ack) {
	done, err := n.ledger.Acknowledge(m.Sender, m.FileName, m.PartNum)
	if err != nil {
		n.logger.Errorf("Ledger write failed on ack of %s part %d: %v", m.FileName, m.PartNum, err)
	}
	if done {
		n.logger.Infof("Transfer of %s to %s complete", m.FileName, m.Sender)
		n.progress(ProgressEvent{Destination: m.Sender, FileName: m.FileName, Stage: StageComplete, Part: int(m.PartNum)})
		return
	}

	if err := n.ledger.Touch(m.Sender, m.FileName, n.opts.Now()); err != nil {
		n.logger.Errorf("Ledger write failed on ack of %s part %d: %v", m.FileName, m.PartNum, err)
	}
	remaining := 0
	if e, ok := n.ledger.Get(m.Sender, m.FileName); ok {
		remaining = len(e.Unacked)
	}
	n.progress(ProgressEvent{
		Destination: m.Sender,
		FileName:    m.FileName,
		Stage:       StageAcked,
		Part:        int(m.PartNum),
		Remaining:   remaining,
	})
}

func (n *Node) handleTransferRequest(m *protocol.TransferRequest) {
	n.logger.Infof("%s requested %s", m.Sender, m.FileName)
	err := n.SendFile(n.runCtx, m.Sender, m.FileName)
	if errors.Is(err, ErrSendInFlight) {
		n.logger.Debugf("Send of %s to %s already running", m.FileName, m.Sender)
		return
	}
	if err != nil {
		n.logger.Warnf("Cannot serve %s to %s: %v", m.FileName, m.Sender, err)
	}
}
