// Package transport provides the byte-stream links nodes talk over.
package transport

import (
	"context"
	"io"
	"net"
)

// Conn is an ordered, reliable byte stream to one remote endpoint.
type Conn interface {
	io.ReadWriteCloser
	RemoteAddr() string
}

type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	LocalAddr() net.Addr
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}
