package node

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/fractis/node/src/peers"
	"github.com/sirupsen/logrus"
)

const sessionBufSize = 4096

// Session drives a registered connection until it fails, the peer hangs up,
// or the node shuts down. Message processing is not part of this node: bytes
// are read and discarded, and only count as activity.
type Session struct {
	conn     net.Conn
	addr     string
	registry *peers.Registry
	logger   *logrus.Entry
	metrics  *nodeMetrics
	now      func() time.Time

	closeOnce sync.Once
}

// NewSession ...
func NewSession(conn net.Conn, info *peers.PeerInfo, registry *peers.Registry, logger *logrus.Entry) *Session {
	return &Session{
		conn:     conn,
		addr:     info.Addr,
		registry: registry,
		logger:   logger.WithField("peer", info.Addr),
		now:      time.Now,
	}
}

// Run blocks until the connection ends. The peer is then marked disconnected
// so that the next sweep removes it.
func (s *Session) Run(ctx context.Context) {
	stop := context.AfterFunc(ctx, s.Close)
	defer stop()
	defer s.Close()

	buf := make([]byte, sessionBufSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.registry.Touch(s.addr, s.now())
			if s.metrics != nil {
				s.metrics.bytesReceived.Add(float64(n))
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.logger.Debug("Peer closed the connection")
			case ctx.Err() != nil || errors.Is(err, net.ErrClosed):
				s.logger.Debug("Session closed")
			default:
				s.logger.WithError(err).Debug("Session read")
			}
			break
		}
	}

	s.registry.MarkDisconnected(s.addr)
	s.metrics.setLivePeers(s.registry.Connected())
}

// Close closes the underlying connection. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
}
