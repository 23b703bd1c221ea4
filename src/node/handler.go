package node

import (
	"context"
	"errors"
	"net"
	"time"

	fnet "github.com/fractis/node/src/net"
	"github.com/fractis/node/src/peers"
	"github.com/sirupsen/logrus"
)

// PeerRecorder persists the addresses of registered peers. It is satisfied by
// *peers.BadgerBook.
type PeerRecorder interface {
	Record(info peers.PeerInfo) error
}

// Greeting is an optional protocol exchange run on a connection after the
// socket options are applied and before the peer is registered. When ctx is
// done the node moves the connection deadline to now, so pending I/O fails.
type Greeting func(ctx context.Context, conn net.Conn) error

// ConnectionHandler turns a raw connection, accepted or dialled, into a
// registered peer.
type ConnectionHandler struct {
	registry *peers.Registry
	sockOpts fnet.SocketOptions
	book     PeerRecorder
	greet    Greeting
	logger   *logrus.Entry
	metrics  *nodeMetrics
	now      func() time.Time
}

// NewConnectionHandler returns a ConnectionHandler registering peers into
// registry. book may be nil.
func NewConnectionHandler(registry *peers.Registry,
	sockOpts fnet.SocketOptions,
	book PeerRecorder,
	logger *logrus.Entry,
) *ConnectionHandler {
	return &ConnectionHandler{
		registry: registry,
		sockOpts: sockOpts,
		book:     book,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle applies the socket options, derives the remote address and registers
// a new PeerInfo. ctx is checked between steps so that a cancelled or expired
// handshake never registers the peer. On error the caller owns, and should
// close, the connection.
func (h *ConnectionHandler) Handle(ctx context.Context, conn net.Conn, direction peers.Direction) (*peers.PeerInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ConnectionSetupError{Op: "handshake", Err: err}
	}

	remote := conn.RemoteAddr()
	if remote == nil {
		return nil, &ConnectionSetupError{Op: "remote-addr", Err: errors.New("connection has no remote address")}
	}
	addr := remote.String()

	if err := fnet.ApplySocketOptions(conn, h.sockOpts); err != nil {
		return nil, &ConnectionSetupError{Addr: addr, Op: "socket-options", Err: err}
	}

	if h.greet != nil {
		if err := h.greet(ctx, conn); err != nil {
			return nil, &ConnectionSetupError{Addr: addr, Op: "greeting", Err: err}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, &ConnectionSetupError{Addr: addr, Op: "handshake", Err: err}
	}

	info := peers.NewPeerInfo(addr, direction, h.now())
	if err := h.registry.Insert(info); err != nil {
		return nil, &ConnectionSetupError{Addr: addr, Op: "register", Err: err}
	}

	h.logger.WithFields(logrus.Fields{
		"peer":      addr,
		"direction": direction,
	}).Debug("Peer registered")

	if h.book != nil {
		if err := h.book.Record(*info); err != nil {
			h.logger.WithError(err).WithField("peer", addr).Warn("Recording peer")
		}
	}

	h.metrics.setLivePeers(h.registry.Connected())

	return info, nil
}
