package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rudransh-shrivastava/peer-relay/internal/ledger"
	"github.com/rudransh-shrivastava/peer-relay/internal/logger"
	"github.com/rudransh-shrivastava/peer-relay/internal/protocol"
	"github.com/rudransh-shrivastava/peer-relay/internal/reassembly"
	"github.com/rudransh-shrivastava/peer-relay/internal/routing"
	"github.com/rudransh-shrivastava/peer-relay/internal/transport"
	"github.com/sirupsen/logrus"
)

var (
	ErrSendInFlight = errors.New("a send of this file to this destination is already in progress")
	ErrNoNeighbors  = errors.New("no neighbors to search")
	ErrJoinTimeout  = errors.New("join timed out")
	ErrStopped      = errors.New("node stopped")
)

// FileStore is the node's view of its local files.
type FileStore interface {
	ReadWholeFile(name string) ([]byte, error)
	WriteWholeFile(name string, data []byte) error
	List() ([]string, error)
}

type Options struct {
	// ID defaults to the listener's address.
	ID       string
	Listener transport.Listener
	Dialer   transport.Dialer
	Ledger   *ledger.Ledger
	Files    FileStore
	Logger   *logrus.Logger

	BlockSize        int
	TTL              int
	AckLimit         time.Duration
	SweepInterval    time.Duration
	PollInterval     time.Duration
	HandshakeTimeout time.Duration
	Similarity       float64
	Now              func() time.Time

	// Progress is called from send tasks and the dispatch loop and must
	// not block.
	Progress func(ProgressEvent)
	// Received is called after an inbound file is written.
	Received func(name string, size int)
	// Observe sees every message the dispatch loop accepts.
	Observe func(from *routing.Link, msg protocol.Message)
}

type Node struct {
	id     string
	opts   Options
	codec  *protocol.Codec
	logger *logrus.Logger

	table    *routing.Table
	sessions *reassembly.Buffer
	ledger   *ledger.Ledger
	files    FileStore

	accepted chan *routing.Link
	inbound  chan inbound
	departed chan *routing.Link

	running chan struct{}
	runCtx  context.Context

	mu           sync.Mutex
	closing      bool
	pendingJoins map[*routing.Link]chan string
	sending      map[sendKey]struct{}
	requested    map[string]time.Time

	wg sync.WaitGroup
}

type inbound struct {
	link *routing.Link
	msg  protocol.Message
}

type sendKey struct {
	destination string
	fileName    string
}

func New(opts Options) (*Node, error) {
	opts.applyDefaults()

	if opts.ID == "" {
		if opts.Listener == nil {
			return nil, errors.New("node needs an ID or a listener")
		}
		opts.ID = opts.Listener.LocalAddr().String()
	}
	if opts.Ledger == nil {
		return nil, errors.New("node needs a ledger")
	}
	if opts.Files == nil {
		return nil, errors.New("node needs a file store")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewLogger()
	}

	return &Node{
		id:           opts.ID,
		opts:         opts,
		codec:        protocol.NewCodec(opts.BlockSize),
		logger:       opts.Logger,
		table:        routing.NewTable(),
		sessions:     reassembly.NewBuffer(),
		ledger:       opts.Ledger,
		files:        opts.Files,
		accepted:     make(chan *routing.Link),
		inbound:      make(chan inbound, inboundBuffer),
		departed:     make(chan *routing.Link, inboundBuffer),
		running:      make(chan struct{}),
		pendingJoins: make(map[*routing.Link]chan string),
		sending:      make(map[sendKey]struct{}),
		requested:    make(map[string]time.Time),
	}, nil
}

func (n *Node) ID() string {
	return n.id
}

// Run drives the node until ctx is cancelled. All inbound traffic is
// dispatched from this goroutine.
func (n *Node) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n.runCtx = ctx
	close(n.running)

	n.logger.Infof("Node %s starting...", n.id)

	if n.opts.Listener != nil {
		n.spawn(func() { n.acceptLoop(ctx) })
	}
	n.spawn(func() { n.sweepLoop(ctx) })

	ticker := time.NewTicker(n.opts.PollInterval)
	defer ticker.Stop()

	n.logger.Info("Node is now running...")
	for {
		select {
		case <-ctx.Done():
			n.shutdown()
			return nil
		case link := <-n.accepted:
			n.startLink(link)
		case in := <-n.inbound:
			n.dispatch(in.link, in.msg)
		case link := <-n.departed:
			n.handleDeparture(link)
		case <-ticker.C:
			n.housekeeping()
		}
	}
}

func (n *Node) shutdown() {
	n.logger.Info("Shutting down node...")

	n.mu.Lock()
	n.closing = true
	n.mu.Unlock()

	for _, link := range n.table.Links() {
		_ = link.Close()
	}
	// readers blocked on a full channel exit through ctx
	n.wg.Wait()
	n.logger.Info("Node stopped")
}

// spawn runs f in a tracked goroutine unless the node is shutting down.
func (n *Node) spawn(f func()) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closing {
		return false
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		f()
	}()
	return true
}

func (n *Node) waitRunning(ctx context.Context) error {
	select {
	case <-n.running:
	case <-ctx.Done():
		return ctx.Err()
	}
	if n.runCtx.Err() != nil {
		return ErrStopped
	}
	return nil
}

func (n *Node) housekeeping() {
	now := n.opts.Now()
	for _, link := range n.table.ExpireConnecting(now.Add(-n.opts.HandshakeTimeout)) {
		n.logger.Warnf("Link %s did not complete its handshake, closing", link.RemoteAddr())
		_ = link.Close()
	}
	for _, name := range n.sessions.Expire(now.Add(-sessionIdleFactor * n.opts.AckLimit)) {
		n.logger.Warnf("Dropping stalled incoming transfer of %s", name)
	}

	n.mu.Lock()
	for name, at := range n.requested {
		if now.Sub(at) >= n.opts.AckLimit {
			delete(n.requested, name)
		}
	}
	n.mu.Unlock()
}

// Neighbors returns the ids of directly connected nodes.
func (n *Node) Neighbors() []string {
	return n.table.Neighbors()
}

// Routes returns destination -> next hop.
func (n *Node) Routes() map[string]string {
	return n.table.Routes()
}

// Transfers returns the outbound transfers still awaiting acknowledgement.
func (n *Node) Transfers() []ledger.Entry {
	return n.ledger.Snapshot()
}

// LocalFiles lists the files this node can serve.
func (n *Node) LocalFiles() ([]string, error) {
	return n.files.List()
}

// Incoming returns the names of files currently being reassembled.
func (n *Node) Incoming() []string {
	return n.sessions.Names()
}

// send writes msg toward its receiver. A failed write closes the link so
// its reader reports the departure.
func (n *Node) send(msg protocol.Message) error {
	link, err := n.table.ResolveNextHop(msg.Head().Receiver)
	if err != nil {
		return err
	}
	return n.writeTo(link, msg)
}

func (n *Node) writeTo(link *routing.Link, msg protocol.Message) error {
	frame, err := n.codec.EncodeToBytes(msg)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", msg.Kind(), err)
	}
	if err := link.WriteFrame(frame); err != nil {
		_ = link.Close()
		return err
	}
	return nil
}

func (n *Node) ttl() int32 {
	return int32(n.opts.TTL)
}
