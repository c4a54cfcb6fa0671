package node

import (
	"github.com/rudransh-shrivastava/peer-relay/internal/protocol"
	"github.com/rudransh-shrivastava/peer-relay/internal/routing"
)

func (n *Node) dispatch(link *routing.Link, msg protocol.Message) {
	h := msg.Head()
	if h.TTL <= 0 {
		n.logger.Debugf("Dropping expired %s from %s", msg.Kind(), h.Sender)
		return
	}

	if join, ok := msg.(*protocol.Join); ok {
		n.handleJoin(link, join)
		return
	}
	if link.State() != routing.Established {
		n.logger.Warnf("Dropping %s from %s before handshake", msg.Kind(), link.RemoteAddr())
		return
	}
	if h.Sender == n.id {
		return
	}

	n.table.RecordSighting(h.Sender, link)
	if n.opts.Observe != nil {
		n.opts.Observe(link, msg)
	}

	switch h.Receiver {
	case n.id:
		n.handleLocal(link, msg)
	case protocol.Broadcast:
		n.handleBroadcast(link, msg)
	default:
		n.relay(msg)
	}
}

func (n *Node) handleLocal(link *routing.Link, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.Fragment:
		n.handleFragment(m)
	case *protocol.Ack:
		n.handleAck(m)
	case *protocol.HasFile:
		n.handleHasFile(m)
	case *protocol.TransferRequest:
		n.handleTransferRequest(m)
	case *protocol.FileSearch:
		n.handleSearch(link, m)
	default:
		n.logger.Debugf("Ignoring %s from %s", msg.Kind(), msg.Head().Sender)
	}
}

func (n *Node) handleBroadcast(link *routing.Link, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.FileSearch:
		n.handleSearch(link, m)
	default:
		n.logger.Debugf("Ignoring broadcast %s from %s", msg.Kind(), msg.Head().Sender)
	}
}

// relay forwards a message addressed to another node one hop closer.
// Failures are expected in a changing overlay and are only logged.
func (n *Node) relay(msg protocol.Message) {
	h := msg.Head()
	h.TTL--
	if h.TTL <= 0 {
		n.logger.Debugf("Not relaying %s for %s: hop budget spent", msg.Kind(), h.Receiver)
		return
	}
	if err := n.send(msg); err != nil {
		n.logger.Warnf("Dropping %s from %s to %s: %v", msg.Kind(), h.Sender, h.Receiver, err)
	}
}
