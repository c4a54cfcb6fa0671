package node

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rudransh-shrivastava/peer-relay/internal/files"
	"github.com/rudransh-shrivastava/peer-relay/internal/protocol"
	"github.com/rudransh-shrivastava/peer-relay/internal/routing"
	"github.com/rudransh-shrivastava/peer-relay/internal/transport"
	"github.com/stretchr/testify/require"
)

// rawPeer speaks the wire protocol by hand over a plain connection.
type rawPeer struct {
	t     *testing.T
	id    string
	conn  transport.Conn
	codec *protocol.Codec
}

func dialRaw(t *testing.T, id, addr string) *rawPeer {
	t.Helper()
	tr, err := transport.NewTransport("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	conn, err := tr.Dial(ctx, addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &rawPeer{t: t, id: id, conn: conn, codec: protocol.NewCodec(protocol.BlockSize)}
}

func (p *rawPeer) write(msg protocol.Message) {
	p.t.Helper()
	require.NoError(p.t, p.codec.Encode(p.conn, msg))
}

func (p *rawPeer) writeRaw(frame []byte) {
	p.t.Helper()
	_, err := p.conn.Write(frame)
	require.NoError(p.t, err)
}

func (p *rawPeer) read() protocol.Message {
	p.t.Helper()
	msg, err := p.codec.Decode(p.conn)
	require.NoError(p.t, err)
	return msg
}

func (p *rawPeer) join(nodeID string) {
	p.t.Helper()
	p.write(BuildJoinMessage(p.id, nodeID))
	reply, ok := p.read().(*protocol.Join)
	require.True(p.t, ok)
	require.Equal(p.t, nodeID, reply.Sender)
	require.Equal(p.t, p.id, reply.Receiver)
}

func search(sender, receiver, name string, ttl int32) *protocol.FileSearch {
	return &protocol.FileSearch{
		Header:   protocol.Header{Sender: sender, Receiver: receiver, TTL: ttl},
		FileName: name,
	}
}

func TestDispatchDropsAndSkips(t *testing.T) {
	b := startNode(t)
	b.put(t, "x.txt", []byte("hello"))

	raw := dialRaw(t, "raw", b.ID())

	// traffic before the handshake is dropped
	raw.write(search("early", b.ID(), "x.txt", 3))
	raw.join(b.ID())

	raw.write(search("expired", b.ID(), "x.txt", 0))
	raw.writeRaw(bytes.Repeat([]byte{0xff}, protocol.BlockSize))
	raw.write(search("w", b.ID(), "x.txt", 2))

	reply, ok := raw.read().(*protocol.HasFile)
	require.True(t, ok)
	require.Equal(t, b.ID(), reply.Sender)
	require.Equal(t, "w", reply.Receiver)
	require.Equal(t, "x.txt", reply.FileName)

	routes := b.Routes()
	require.Equal(t, "raw", routes["w"])
	require.Equal(t, "raw", routes["raw"])
	require.NotContains(t, routes, "early")
	require.NotContains(t, routes, "expired")
}

func TestDispatchRejectsSelfJoin(t *testing.T) {
	b := startNode(t)
	raw := dialRaw(t, b.ID(), b.ID())

	raw.write(BuildJoinMessage(b.ID(), b.ID()))
	_, err := raw.codec.Decode(raw.conn)
	require.Error(t, err)
	require.Empty(t, b.Neighbors())
}

func TestRelayDecrementsTTL(t *testing.T) {
	b := startNode(t)
	left := dialRaw(t, "left", b.ID())
	right := dialRaw(t, "right", b.ID())
	left.join(b.ID())
	right.join(b.ID())

	left.write(&protocol.TransferRequest{
		Header:   protocol.Header{Sender: "left", Receiver: "right", TTL: 4},
		FileName: "a.bin",
	})
	got, ok := right.read().(*protocol.TransferRequest)
	require.True(t, ok)
	require.Equal(t, int32(3), got.TTL)
	require.Equal(t, "left", got.Sender)

	// a message with one hop left dies at the relay
	left.write(&protocol.TransferRequest{
		Header:   protocol.Header{Sender: "left", Receiver: "right", TTL: 1},
		FileName: "b.bin",
	})
	left.write(&protocol.TransferRequest{
		Header:   protocol.Header{Sender: "left", Receiver: "right", TTL: 2},
		FileName: "c.bin",
	})
	got, ok = right.read().(*protocol.TransferRequest)
	require.True(t, ok)
	require.Equal(t, "c.bin", got.FileName)
}

type flakyFiles struct {
	*files.Dir
	fail atomic.Bool
}

func (f *flakyFiles) WriteWholeFile(name string, data []byte) error {
	if f.fail.Load() {
		return errors.New("disk full")
	}
	return f.Dir.WriteWholeFile(name, data)
}

func TestAckWithheldWhenStoreFails(t *testing.T) {
	store := &flakyFiles{Dir: mustDir(t, map[string][]byte{"x.txt": []byte("x")})}
	store.fail.Store(true)
	b := startNode(t, func(o *Options) { o.Files = store })

	raw := dialRaw(t, "raw", b.ID())
	raw.join(b.ID())

	frag := &protocol.Fragment{
		Header:   protocol.Header{Sender: "raw", Receiver: b.ID(), TTL: 5},
		FileName: "in.txt",
		PartNum:  0,
		IsLast:   true,
		Payload:  []byte("payload"),
	}
	raw.write(frag)
	raw.write(search("raw", b.ID(), "x.txt", 2))

	// the search answer is the first thing back, so no ack was sent
	_, ok := raw.read().(*protocol.HasFile)
	require.True(t, ok)

	store.fail.Store(false)
	raw.write(frag)
	ack, ok := raw.read().(*protocol.Ack)
	require.True(t, ok)
	require.Equal(t, "in.txt", ack.FileName)
	require.Equal(t, uint32(0), ack.PartNum)

	data, err := store.ReadWholeFile(files.DefaultReceivedPrefix + "in.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)
}

func TestFloodStopsAtTTL(t *testing.T) {
	const ttl = 3
	const size = ttl + 5

	var seen [size]atomic.Int32
	nodes := make([]*testNode, size)
	for i := range nodes {
		nodes[i] = startNode(t, func(o *Options) {
			o.TTL = ttl
			o.Observe = func(_ *routing.Link, msg protocol.Message) {
				if msg.Kind() == protocol.KindFileSearch {
					seen[i].Add(1)
				}
			}
		})
	}
	for i := range nodes {
		join(t, nodes[i], nodes[(i+1)%size])
	}

	require.NoError(t, nodes[0].Request("nowhere.txt"))

	require.Eventually(t, func() bool {
		return seen[ttl].Load() == 1 && seen[size-ttl].Load() == 1
	}, waitFor, tick)
	time.Sleep(200 * time.Millisecond)

	for i := range nodes {
		dist := min(i, size-i)
		want := int32(0)
		if dist > 0 && dist <= ttl {
			want = 1
		}
		require.Equal(t, want, seen[i].Load(), "node %d at distance %d", i, dist)
	}
}
