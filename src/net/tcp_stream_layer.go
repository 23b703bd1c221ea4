package net

import (
	"context"
	"errors"
	"net"
	"time"
)

var errNotTCP = errors.New("local address is not a TCP address")

// TCPStreamLayer implements the StreamLayer interface for plain TCP.
type TCPStreamLayer struct {
	listener *net.TCPListener
}

// NewTCPStreamLayer binds a TCP listener on bindAddr. Unlike an advertised
// address, a bind address may be unspecified (0.0.0.0) or use port 0.
func NewTCPStreamLayer(bindAddr string) (*TCPStreamLayer, error) {
	list, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}

	tcpList, ok := list.(*net.TCPListener)
	if !ok {
		list.Close()
		return nil, errNotTCP
	}

	return &TCPStreamLayer{
		listener: tcpList,
	}, nil
}

// Dial implements the StreamLayer interface. The dial is abandoned when ctx is
// cancelled or the timeout expires, whichever comes first.
func (t *TCPStreamLayer) Dial(ctx context.Context, address string, timeout time.Duration) (net.Conn, error) {
	return DialTCP(ctx, address, timeout)
}

// Accept implements the net.Listener interface.
func (t *TCPStreamLayer) Accept() (c net.Conn, err error) {
	return t.listener.Accept()
}

// Close implements the net.Listener interface.
func (t *TCPStreamLayer) Close() (err error) {
	return t.listener.Close()
}

// Addr implements the net.Listener interface.
func (t *TCPStreamLayer) Addr() net.Addr {
	return t.listener.Addr()
}

// DialTCP opens an outgoing TCP connection without binding a listener.
func DialTCP(ctx context.Context, address string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, "tcp", address)
}
