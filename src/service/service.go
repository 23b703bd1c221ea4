package service

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/fractis/node/src/consensus"
	"github.com/fractis/node/src/peers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Node is the part of node.Node exposed by the service.
type Node interface {
	GetStats() map[string]string
	Peers() []peers.PeerInfo
}

// PeerBook lists every peer the node ever registered.
type PeerBook interface {
	All() ([]peers.BookEntry, error)
}

// Prechecker runs the local checks of a transaction.
type Prechecker interface {
	Precheck(tx *consensus.Transaction) consensus.Decision
}

// Service is the HTTP API of a fractis node.
type Service struct {
	bindAddress string
	node        Node
	book        PeerBook
	checker     Prechecker
	extraStats  map[string]string
	logger      *logrus.Entry

	mux *http.ServeMux

	serverLock sync.Mutex
	server     *http.Server
	closed     bool
}

// NewService ... book and checker may be nil, in which case /peers/known and
// /confirm answer 404. extraStats are merged into /stats.
func NewService(bindAddress string,
	n Node,
	book PeerBook,
	checker Prechecker,
	extraStats map[string]string,
	logger *logrus.Entry,
) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		book:        book,
		checker:     checker,
		extraStats:  extraStats,
		logger:      logger,
		mux:         http.NewServeMux(),
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers on the service's own ServeMux,
// so that several nodes can run in the same process.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering fractis API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	s.mux.HandleFunc("/peers/known", s.makeHandler(s.GetKnownPeers))
	s.mux.HandleFunc(consensus.ConfirmPath, s.makeHandler(s.Confirm))
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the service's routes.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve accepts connections on the bind address until Shutdown is called.
// This is a blocking call.
func (s *Service) Serve() error {
	l, err := net.Listen("tcp", s.bindAddress)
	if err != nil {
		return err
	}
	return s.ServeListener(l)
}

// ServeListener is Serve on an existing listener.
func (s *Service) ServeListener(l net.Listener) error {
	s.serverLock.Lock()
	if s.closed {
		s.serverLock.Unlock()
		l.Close()
		return nil
	}
	if s.server != nil {
		s.serverLock.Unlock()
		l.Close()
		return errors.New("service already serving")
	}
	s.server = &http.Server{Handler: s.mux}
	server := s.server
	s.serverLock.Unlock()

	s.logger.WithField("bind_address", l.Addr().String()).Debug("Serving fractis API")

	err := server.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		s.logger.WithError(err).Error("Serving fractis API")
	}
	return err
}

// Shutdown stops the server gracefully. A service shut down before it started
// serving never serves.
func (s *Service) Shutdown(ctx context.Context) error {
	s.serverLock.Lock()
	s.closed = true
	server := s.server
	s.serverLock.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()
	for k, v := range s.extraStats {
		stats[k] = v
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetPeers returns the peer registry.
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	returnJSON(w, s.node.Peers())
}

// GetKnownPeers returns the peer book.
func (s *Service) GetKnownPeers(w http.ResponseWriter, r *http.Request) {
	if s.book == nil {
		http.NotFound(w, r)
		return
	}

	entries, err := s.book.All()
	if err != nil {
		s.logger.WithError(err).Error("Reading peer book")

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	if entries == nil {
		entries = []peers.BookEntry{}
	}

	returnJSON(w, entries)
}

// Confirm answers confirmation requests of other validators. A transaction is
// confirmed when its signature verifies and it is not stale.
func (s *Service) Confirm(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var tx consensus.Transaction
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&tx); err != nil {
		s.logger.WithError(err).Debug("Decoding confirmation request")

		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	d := s.checker.Precheck(&tx)

	res := consensus.ConfirmResponse{
		Confirmed: d.Stage != consensus.Rejected,
	}
	if !res.Confirmed {
		res.Reason = d.Reason.String()
	}

	returnJSON(w, res)
}

func returnJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)

	encoder.Encode(v)
}
