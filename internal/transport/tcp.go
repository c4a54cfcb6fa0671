package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	_ Listener = (*Transport)(nil)
	_ Dialer   = (*Transport)(nil)
)

// Transport listens for and dials TCP links.
type Transport struct {
	listener *net.TCPListener
	config   Config
}

func NewTransport(addr string) (*Transport, error) {
	return NewTransportWithConfig(addr, DefaultConfig())
}

func NewTransportWithConfig(addr string, cfg Config) (*Transport, error) {
	lc := net.ListenConfig{KeepAlive: cfg.KeepAlive}
	l, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Transport{listener: l.(*net.TCPListener), config: cfg}, nil
}

func (t *Transport) LocalAddr() net.Addr {
	return t.listener.Addr()
}

// Accept waits for the next inbound link or for ctx to end.
func (t *Transport) Accept(ctx context.Context) (Conn, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = t.listener.SetDeadline(time.Unix(1, 0))
	})

	c, err := t.listener.AcceptTCP()
	if !stop() {
		_ = t.listener.SetDeadline(time.Time{})
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return &tcpConn{TCPConn: c}, nil
}

func (t *Transport) Dial(ctx context.Context, addr string) (Conn, error) {
	d := net.Dialer{Timeout: t.config.DialTimeout, KeepAlive: t.config.KeepAlive}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &tcpConn{TCPConn: c.(*net.TCPConn)}, nil
}

func (t *Transport) Close() error {
	return t.listener.Close()
}

// IsClosed reports whether err came from using a closed listener or conn.
func IsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

type tcpConn struct {
	*net.TCPConn
}

func (c *tcpConn) RemoteAddr() string {
	return c.TCPConn.RemoteAddr().String()
}
