package node

import (
	"github.com/rudransh-shrivastava/peer-relay/internal/protocol"
)

func (n *Node) handleFragment(m *protocol.Fragment) {
	_, done := n.sessions.Add(m)
	if done != nil {
		if err := done.AssembleAndEmit(n.files); err != nil {
			// no ack: the sender keeps the part outstanding and resends
			n.logger.Errorf("Failed to store %s from %s: %v", m.FileName, m.Sender, err)
			return
		}
		size := done.Size()
		n.logger.Infof("Received %s (%d bytes, %d parts) from %s", m.FileName, size, done.Received(), m.Sender)
		if n.opts.Received != nil {
			n.opts.Received(m.FileName, size)
		}
	}

	ack := BuildAckMessage(n.id, m.Sender, m.FileName, m.PartNum, n.ttl())
	if err := n.send(ack); err != nil {
		n.logger.Warnf("Failed to ack part %d of %s to %s: %v", m.PartNum, m.FileName, m.Sender, err)
	}
}

func (n *Node) handleHasFile(m *protocol.HasFile) {
	if n.sessions.Open(m.FileName) {
		n.logger.Debugf("Already receiving %s, ignoring offer from %s", m.FileName, m.Sender)
		return
	}

	now := n.opts.Now()
	n.mu.Lock()
	if at, ok := n.requested[m.FileName]; ok && now.Sub(at) < n.opts.AckLimit {
		n.mu.Unlock()
		n.logger.Debugf("Already requested %s, ignoring offer from %s", m.FileName, m.Sender)
		return
	}
	n.requested[m.FileName] = now
	n.mu.Unlock()

	n.logger.Infof("%s has %s, requesting transfer", m.Sender, m.FileName)
	req := BuildTransferRequestMessage(n.id, m.Sender, m.FileName, n.ttl())
	if err := n.send(req); err != nil {
		n.logger.Warnf("Failed to request %s from %s: %v", m.FileName, m.Sender, err)
	}
}
