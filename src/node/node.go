package node

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fractis/node/src/config"
	fnet "github.com/fractis/node/src/net"
	"github.com/fractis/node/src/peers"
	"github.com/sirupsen/logrus"
)

// Gatekeeper decides whether the node may start. It is satisfied by
// *stake.Gate.
type Gatekeeper interface {
	Verify(ctx context.Context, identity string) error
}

// Option configures optional Node collaborators.
type Option func(*Node)

// WithIdentity sets the identity checked by the Gatekeeper. It defaults to the
// configured node id.
func WithIdentity(identity string) Option {
	return func(n *Node) {
		n.identity = identity
	}
}

// WithPeerBook records every registered peer in book.
func WithPeerBook(book PeerRecorder) Option {
	return func(n *Node) {
		n.book = book
	}
}

// WithDialer replaces the TCP dialer used to reach the seeds.
func WithDialer(dial DialFunc) Option {
	return func(n *Node) {
		n.dial = dial
	}
}

// ListenFunc binds the stream layer the node accepts peers on.
type ListenFunc func(bindAddr string) (fnet.StreamLayer, error)

func listenTCP(bindAddr string) (fnet.StreamLayer, error) {
	stream, err := fnet.NewTCPStreamLayer(bindAddr)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// WithStreamLayer replaces the TCP listener.
func WithStreamLayer(listen ListenFunc) Option {
	return func(n *Node) {
		n.listen = listen
	}
}

// WithGreeting installs a protocol exchange run on every new connection
// before registration.
func WithGreeting(greet Greeting) Option {
	return func(n *Node) {
		n.greet = greet
	}
}

// Node supervises the peer-to-peer side of a fractis validator: it runs the
// stake gate, binds the listener, bootstraps towards the seeds, accepts
// inbound peers and periodically sweeps disconnected ones.
type Node struct {
	state

	conf   *config.Config
	logger *logrus.Entry

	identity string
	gate     Gatekeeper
	registry *peers.Registry
	book     PeerRecorder
	dial     DialFunc
	listen   ListenFunc
	greet    Greeting

	handler *ConnectionHandler
	metrics *nodeMetrics

	// ctx is cancelled on Shutdown; every connection task derives from it.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	stream   fnet.StreamLayer
	sessions map[string]*Session
	seeds    []SeedResult
	started  bool

	// inbound handshakes in flight, counted against MaxConnections
	pending atomic.Int32

	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	start time.Time
}

// NewNode is a factory method that returns a Node instance.
func NewNode(conf *config.Config,
	gate Gatekeeper,
	registry *peers.Registry,
	logger *logrus.Entry,
	opts ...Option,
) *Node {
	ctx, cancel := context.WithCancel(context.Background())

	node := &Node{
		conf:       conf,
		logger:     logger.WithField("node_id", conf.NodeID),
		identity:   conf.NodeID,
		gate:       gate,
		registry:   registry,
		dial:       fnet.DialTCP,
		listen:     listenTCP,
		metrics:    newNodeMetrics(),
		ctx:        ctx,
		cancel:     cancel,
		sessions:   make(map[string]*Session),
		shutdownCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(node)
	}

	node.handler = NewConnectionHandler(registry, node.socketOptions(), node.book, node.logger)
	node.handler.greet = node.greet
	node.handler.metrics = node.metrics

	return node
}

func (n *Node) socketOptions() fnet.SocketOptions {
	opts := fnet.DefaultSocketOptions()
	if n.conf.KeepAliveIdle > 0 {
		opts.KeepAliveIdle = n.conf.KeepAliveIdle
	}
	if n.conf.KeepAliveInterval > 0 {
		opts.KeepAliveInterval = n.conf.KeepAliveInterval
	}
	if n.conf.KeepAliveCount > 0 {
		opts.KeepAliveCount = n.conf.KeepAliveCount
	}
	return opts
}

// Start runs the node until Shutdown is called or ctx is cancelled. A failed
// stake check or bind is returned before any goroutine is spawned, and in the
// former case before any socket is created. After a clean shutdown Start
// waits for the connection tasks and returns nil.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return errors.New("node already started")
	}
	n.started = true
	n.mu.Unlock()

	if n.isShutdown() {
		return ErrNodeShutdown
	}

	n.setState(Gating)
	n.logger.WithField("identity", n.identity).Debug("Verifying stake")
	if err := n.gate.Verify(ctx, n.identity); err != nil {
		n.logger.WithError(err).Error("Stake gate")
		n.Shutdown()
		return err
	}

	bindAddr := n.conf.BindAddr()
	stream, err := n.listen(bindAddr)
	if err != nil {
		n.Shutdown()
		return &BindError{Addr: bindAddr, Err: err}
	}

	n.mu.Lock()
	n.stream = stream
	n.mu.Unlock()

	// Shutdown may have run between the gate and the bind
	if n.isShutdown() {
		stream.Close()
		return nil
	}

	stop := context.AfterFunc(ctx, n.Shutdown)
	defer stop()

	n.mu.Lock()
	n.start = time.Now()
	n.mu.Unlock()

	n.logger.WithField("addr", stream.Addr().String()).Info("Listening")

	n.setState(Bootstrapping)
	n.goFunc(n.sweepLoop)
	n.goFunc(n.bootstrap)

	n.acceptLoop(stream)

	n.waitRoutines()
	n.logger.Debug("Node stopped")

	return nil
}

func (n *Node) bootstrap() {
	connector := NewBootstrapConnector(
		n.conf.BootstrapNodes,
		n.conf.ReconnectAttempts,
		n.conf.ReconnectDelay,
		n.conf.DialTimeout,
		n.dial,
		func(conn net.Conn) error {
			return n.serve(conn, peers.Outbound, true)
		},
		n.logger.WithField("component", "bootstrap"),
	)
	connector.metrics = n.metrics

	results := connector.Run(n.ctx)

	n.mu.Lock()
	n.seeds = results
	n.mu.Unlock()

	if n.casState(Bootstrapping, Serving) {
		n.logger.WithField("seeds", len(results)).Debug("Bootstrap done")
	}
}

func (n *Node) acceptLoop(stream fnet.StreamLayer) {
	for {
		conn, err := stream.Accept()
		if err != nil {
			if n.isShutdown() {
				return
			}

			n.metrics.acceptErrors.Inc()
			n.logger.WithError(err).Error("Accepting connection")

			select {
			case <-time.After(n.conf.AcceptBackoff):
			case <-n.shutdownCh:
				return
			}
			continue
		}

		inbound := n.registry.ConnectedBy(peers.Inbound) + int(n.pending.Load())
		if limit := n.conf.MaxConnections; limit > 0 && inbound >= int(limit) {
			n.metrics.refused.Inc()
			n.logger.WithFields(logrus.Fields{
				"peer":            conn.RemoteAddr().String(),
				"max_connections": limit,
			}).Warn("Refusing connection, too many peers")
			conn.Close()
			continue
		}

		n.pending.Add(1)
		n.goFunc(func() {
			n.serve(conn, peers.Inbound, false)
		})
	}
}

// serve registers conn under the handshake timeout and hands it to a Session.
// When detach is true the session runs in its own goroutine and serve returns
// as soon as the peer is registered; otherwise serve blocks for the session's
// lifetime. On failure the connection is closed.
//
// When the handshake deadline passes, or the node shuts down, the connection
// deadline is moved to now so that blocked reads and writes return at once.
func (n *Node) serve(conn net.Conn, direction peers.Direction, detach bool) error {
	hctx, cancel := context.WithTimeout(n.ctx, n.conf.HandshakeTimeout)

	interrupted := make(chan struct{})
	stopInterrupt := context.AfterFunc(hctx, func() {
		conn.SetDeadline(time.Now())
		close(interrupted)
	})

	info, err := n.handler.Handle(hctx, conn, direction)

	if !stopInterrupt() {
		<-interrupted
	}
	hctxErr := hctx.Err()
	cancel()

	if direction == peers.Inbound {
		n.pending.Add(-1)
	}

	if err == nil {
		if derr := conn.SetDeadline(time.Time{}); derr != nil {
			err = &ConnectionSetupError{Addr: info.Addr, Op: "deadline", Err: derr}
			n.registry.Remove(info.Addr)
		}
	}

	if err != nil {
		conn.Close()

		entry := n.logger.WithError(err).WithField("direction", direction.String())
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(hctxErr, context.DeadlineExceeded):
			n.metrics.recordHandshake(direction.String(), "timeout")
			entry.Warn("Handshake timed out")
		case errors.Is(err, context.Canceled) || errors.Is(hctxErr, context.Canceled):
			n.metrics.recordHandshake(direction.String(), "cancelled")
			entry.Debug("Handshake cancelled")
		default:
			n.metrics.recordHandshake(direction.String(), "error")
			entry.Warn("Connection setup failed")
		}
		return err
	}

	n.metrics.recordHandshake(direction.String(), "ok")

	session := NewSession(conn, info, n.registry, n.logger)
	session.metrics = n.metrics

	n.mu.Lock()
	n.sessions[info.Addr] = session
	n.mu.Unlock()

	run := func() {
		session.Run(n.ctx)

		n.mu.Lock()
		if n.sessions[info.Addr] == session {
			delete(n.sessions, info.Addr)
		}
		n.mu.Unlock()
	}

	if detach {
		n.goFunc(run)
	} else {
		run()
	}

	return nil
}

func (n *Node) sweepLoop() {
	ticker := time.NewTicker(n.conf.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.Sweep()
		case <-n.shutdownCh:
			return
		}
	}
}

// Sweep removes disconnected peers from the registry and returns their
// addresses. It runs every SweepInterval while the node is up.
func (n *Node) Sweep() []string {
	removed := n.registry.Sweep()
	if len(removed) > 0 {
		n.metrics.swept.Add(float64(len(removed)))
		n.logger.WithField("peers", removed).Info("Swept disconnected peers")
	}
	return removed
}

// Disconnect closes the connection to addr and removes it from the registry.
// It returns false if addr is unknown.
func (n *Node) Disconnect(addr string) bool {
	n.mu.Lock()
	session, ok := n.sessions[addr]
	delete(n.sessions, addr)
	n.mu.Unlock()

	if ok {
		session.Close()
	}

	removed := n.registry.Remove(addr)
	n.metrics.setLivePeers(n.registry.Connected())

	return ok || removed
}

// Shutdown stops the accept loop and the background tasks, and closes every
// peer connection. It may be called more than once, and before Start.
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.logger.Debug("Shutdown")

		n.setState(Shutdown)
		close(n.shutdownCh)
		n.cancel()

		n.mu.Lock()
		stream := n.stream
		n.mu.Unlock()

		if stream != nil {
			if err := stream.Close(); err != nil {
				n.logger.WithError(err).Debug("Closing listener")
			}
		}
	})
}

func (n *Node) isShutdown() bool {
	select {
	case <-n.shutdownCh:
		return true
	default:
		return false
	}
}

// Addr returns the bound listener address, or nil if the node never bound.
func (n *Node) Addr() net.Addr {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stream == nil {
		return nil
	}
	return n.stream.Addr()
}

// State returns the current lifecycle state.
func (n *Node) State() State {
	return n.getState()
}

// Peers returns a snapshot of the registry.
func (n *Node) Peers() []peers.PeerInfo {
	return n.registry.Snapshot()
}

// SeedResults returns the bootstrap outcome per seed, once bootstrapping is
// over.
func (n *Node) SeedResults() []SeedResult {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]SeedResult(nil), n.seeds...)
}

// Done is closed when the node shuts down.
func (n *Node) Done() <-chan struct{} {
	return n.shutdownCh
}

// GetStats returns stats
func (n *Node) GetStats() map[string]string {
	n.mu.Lock()
	start := n.start
	n.mu.Unlock()

	var uptime time.Duration
	if !start.IsZero() {
		uptime = time.Since(start).Truncate(time.Second)
	}

	addr := ""
	if a := n.Addr(); a != nil {
		addr = a.String()
	}

	return map[string]string{
		"node_id":   n.conf.NodeID,
		"identity":  n.identity,
		"state":     n.getState().String(),
		"addr":      addr,
		"num_peers": strconv.Itoa(n.registry.Len()),
		"connected": strconv.Itoa(n.registry.Connected()),
		"uptime":    uptime.String(),
	}
}
