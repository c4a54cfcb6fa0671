package node

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rudransh-shrivastava/peer-relay/internal/protocol"
	"github.com/rudransh-shrivastava/peer-relay/internal/routing"
	"github.com/rudransh-shrivastava/peer-relay/internal/transport"
)

func (n *Node) acceptLoop(ctx context.Context) {
	for {
		conn, err := n.opts.Listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || transport.IsClosed(err) {
				return
			}
			n.logger.Warnf("Accept failed: %v", err)
			continue
		}
		link := routing.NewLink(conn, false)
		select {
		case n.accepted <- link:
		case <-ctx.Done():
			_ = conn.Close()
			return
		}
	}
}

// startLink tracks a link awaiting its Join and starts reading from it.
func (n *Node) startLink(link *routing.Link) bool {
	n.table.Add(link)
	if !n.spawn(func() { n.readLoop(link) }) {
		_ = link.Close()
		return false
	}
	n.logger.Debugf("Link opened with %s", link.RemoteAddr())
	return true
}

func (n *Node) readLoop(link *routing.Link) {
	ctx := n.runCtx
	for {
		msg, err := n.codec.Decode(link.Conn())
		if errors.Is(err, protocol.ErrMalformedFrame) {
			// frames are fixed size, so the next one is still aligned
			n.logger.Warnf("Skipping malformed frame from %s: %v", link, err)
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && link.State() != routing.Closed {
				n.logger.Debugf("Read from %s failed: %v", link, err)
			}
			select {
			case n.departed <- link:
			case <-ctx.Done():
			}
			return
		}
		select {
		case n.inbound <- inbound{link: link, msg: msg}:
		case <-ctx.Done():
			return
		}
	}
}

// Join connects to the node listening at addr and returns its id once it
// has answered the handshake.
func (n *Node) Join(ctx context.Context, addr string) (string, error) {
	if err := n.waitRunning(ctx); err != nil {
		return "", err
	}
	if n.opts.Dialer == nil {
		return "", errors.New("node has no dialer")
	}

	ctx, cancel := context.WithTimeout(ctx, n.opts.HandshakeTimeout)
	defer cancel()

	conn, err := n.opts.Dialer.Dial(ctx, addr)
	if err != nil {
		return "", err
	}
	link := routing.NewLink(conn, true)

	reply := make(chan string, 1)
	n.mu.Lock()
	n.pendingJoins[link] = reply
	n.mu.Unlock()
	defer func() {
		n.mu.Lock()
		delete(n.pendingJoins, link)
		n.mu.Unlock()
	}()

	if !n.startLink(link) {
		return "", ErrStopped
	}
	if err := n.writeTo(link, BuildJoinMessage(n.id, addr)); err != nil {
		return "", fmt.Errorf("join %s: %w", addr, err)
	}

	select {
	case id, ok := <-reply:
		if !ok {
			return "", fmt.Errorf("join %s: link closed during handshake", addr)
		}
		return id, nil
	case <-ctx.Done():
		_ = link.Close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s", ErrJoinTimeout, addr)
		}
		return "", ctx.Err()
	}
}

// Attach adopts an already connected stream, such as a serial link, and
// announces this node over it. The peer does the same from its side.
func (n *Node) Attach(ctx context.Context, conn transport.Conn) error {
	if err := n.waitRunning(ctx); err != nil {
		return err
	}
	link := routing.NewLink(conn, true)
	if !n.startLink(link) {
		return ErrStopped
	}
	return n.writeTo(link, BuildJoinMessage(n.id, protocol.Broadcast))
}

func (n *Node) handleJoin(link *routing.Link, msg *protocol.Join) {
	remote := msg.Sender
	if remote == "" || remote == n.id {
		n.logger.Warnf("Rejecting join from %s with id %q", link.RemoteAddr(), remote)
		_ = link.Close()
		return
	}
	if link.State() == routing.Established && link.RemoteID() == remote {
		return
	}

	replaced, err := n.table.Join(remote, link)
	if err != nil {
		return
	}
	if replaced != nil {
		n.logger.Infof("Neighbor %s reconnected, closing old link", remote)
		_ = replaced.Close()
	}
	n.logger.Infof("Neighbor %s joined via %s", remote, link.RemoteAddr())

	if !link.Outbound {
		if err := n.writeTo(link, BuildJoinMessage(n.id, remote)); err != nil {
			n.logger.Warnf("Failed to answer join from %s: %v", remote, err)
		}
		return
	}

	n.mu.Lock()
	reply, ok := n.pendingJoins[link]
	n.mu.Unlock()
	if ok {
		select {
		case reply <- remote:
		default:
		}
	}
}

func (n *Node) handleDeparture(link *routing.Link) {
	_ = link.Close()
	if id, ok := n.table.Remove(link); ok {
		n.logger.Infof("Neighbor %s left", id)
	}

	n.mu.Lock()
	reply, ok := n.pendingJoins[link]
	if ok {
		delete(n.pendingJoins, link)
	}
	n.mu.Unlock()
	if ok {
		close(reply)
	}
}
