package node

import (
	"github.com/rudransh-shrivastava/peer-relay/internal/files"
	"github.com/rudransh-shrivastava/peer-relay/internal/protocol"
	"github.com/rudransh-shrivastava/peer-relay/internal/routing"
)

// Request floods a search for name to every neighbour. Holders answer with
// HasFile and the transfer follows on its own.
func (n *Node) Request(name string) error {
	links := n.table.NeighborLinks()
	if len(links) == 0 {
		return ErrNoNeighbors
	}

	msg := BuildFileSearchMessage(n.id, name, n.ttl())
	frame, err := n.codec.EncodeToBytes(msg)
	if err != nil {
		return err
	}
	sent := 0
	for _, link := range links {
		if err := link.WriteFrame(frame); err != nil {
			n.logger.Warnf("Failed to send search to %s: %v", link, err)
			_ = link.Close()
			continue
		}
		sent++
	}
	if sent == 0 {
		return ErrNoNeighbors
	}
	n.logger.Infof("Searching for %s via %d neighbors", name, sent)
	return nil
}

// handleSearch answers a search with the best local match, or passes it on
// to every neighbour except the one it came from.
func (n *Node) handleSearch(from *routing.Link, m *protocol.FileSearch) {
	names, err := n.files.List()
	if err != nil {
		n.logger.Warnf("Failed to list local files: %v", err)
	}
	if match, ok := files.BestMatch(m.FileName, names, n.opts.Similarity); ok {
		n.logger.Infof("Search from %s for %s matched %s", m.Sender, m.FileName, match)
		reply := BuildHasFileMessage(n.id, m.Sender, match, n.ttl())
		if err := n.send(reply); err != nil {
			n.logger.Warnf("Failed to answer search from %s: %v", m.Sender, err)
		}
		return
	}

	if m.Receiver != protocol.Broadcast {
		return
	}
	fwd := *m
	fwd.TTL--
	if fwd.TTL <= 0 {
		n.logger.Debugf("Search from %s for %s ran out of hops", m.Sender, m.FileName)
		return
	}

	frame, err := n.codec.EncodeToBytes(&fwd)
	if err != nil {
		n.logger.Warnf("Failed to encode search: %v", err)
		return
	}
	for _, link := range n.table.NeighborLinks() {
		if link == from {
			continue
		}
		if err := link.WriteFrame(frame); err != nil {
			n.logger.Warnf("Failed to forward search to %s: %v", link, err)
			_ = link.Close()
		}
	}
}
