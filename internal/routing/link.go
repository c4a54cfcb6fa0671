package routing

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rudransh-shrivastava/peer-relay/internal/protocol"
	"github.com/rudransh-shrivastava/peer-relay/internal/transport"
)

var ErrLinkClosed = errors.New("link closed")

type State int

const (
	Connecting State = iota
	Established
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Established:
		return "established"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Link is one connection to a neighbour. Writes are serialised so frames
// from concurrent senders never interleave.
type Link struct {
	conn     transport.Conn
	Outbound bool
	Opened   time.Time

	writeMu sync.Mutex

	mu       sync.Mutex
	state    State
	remoteID string
}

func NewLink(conn transport.Conn, outbound bool) *Link {
	return &Link{
		conn:     conn,
		Outbound: outbound,
		Opened:   time.Now(),
	}
}

func (l *Link) Conn() transport.Conn {
	return l.conn
}

func (l *Link) RemoteAddr() string {
	return l.conn.RemoteAddr()
}

func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// RemoteID is the node id the peer announced in its Join, or "" before
// the handshake.
func (l *Link) RemoteID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remoteID
}

func (l *Link) establish(remoteID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Closed {
		return false
	}
	l.state = Established
	l.remoteID = remoteID
	return true
}

func (l *Link) WriteFrame(frame protocol.Frame) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if l.State() == Closed {
		return ErrLinkClosed
	}
	n, err := l.conn.Write(frame)
	if err != nil {
		return fmt.Errorf("write to %s: %w", l, err)
	}
	if n != len(frame) {
		return fmt.Errorf("write to %s: %w", l, io.ErrShortWrite)
	}
	return nil
}

// Close moves the link to Closed and closes the connection. Further calls
// are no-ops.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.state == Closed {
		l.mu.Unlock()
		return nil
	}
	l.state = Closed
	l.mu.Unlock()
	return l.conn.Close()
}

func (l *Link) String() string {
	if id := l.RemoteID(); id != "" {
		return id
	}
	return l.conn.RemoteAddr()
}
