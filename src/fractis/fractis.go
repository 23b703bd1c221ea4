// Package fractis wires the components of a fractis node together: key,
// stake gate, peer registry and book, consensus manager, supervisor and HTTP
// service.
package fractis

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/fractis/node/src/address"
	"github.com/fractis/node/src/config"
	"github.com/fractis/node/src/consensus"
	"github.com/fractis/node/src/crypto/keys"
	"github.com/fractis/node/src/node"
	"github.com/fractis/node/src/peers"
	"github.com/fractis/node/src/service"
	"github.com/fractis/node/src/stake"
	"github.com/sirupsen/logrus"
)

// serviceShutdownTimeout bounds the graceful shutdown of the HTTP service.
const serviceShutdownTimeout = 5 * time.Second

// Fractis is a fractis node and its collaborators. Ledger may be set before
// Init to bypass the JSON-RPC ledger client.
type Fractis struct {
	Config    *config.Config
	Identity  string
	Address   address.Address
	Registry  *peers.Registry
	PeerBook  *peers.BadgerBook
	Ledger    stake.Ledger
	Gate      *stake.Gate
	Consensus *consensus.Manager
	Node      *node.Node
	Service   *service.Service

	logger *logrus.Entry
}

// NewFractis ...
func NewFractis(conf *config.Config) *Fractis {
	engine := &Fractis{
		Config: conf,
	}

	return engine
}

func (f *Fractis) initKey() error {
	if f.Config.Key == nil {
		keyfile := keys.NewSimpleKeyfile(f.Config.Keyfile())

		privKey, created, err := keyfile.ReadOrCreateKey()
		if err != nil {
			f.logger.WithError(err).Error("Cannot read or create private key")
			return err
		}

		if created {
			f.logger.WithField("path", keyfile.Path()).Info("Created a new key")
		}

		f.Config.Key = privKey
	}

	f.Identity = keys.LedgerIdentity(&f.Config.Key.PublicKey)

	addr, err := address.FromLedger(f.Identity)
	if err != nil {
		return fmt.Errorf("derive node address: %w", err)
	}
	f.Address = addr

	f.logger.WithFields(logrus.Fields{
		"identity": f.Identity,
		"address":  f.Address,
	}).Debug("Node identity")

	return nil
}

func (f *Fractis) initPeerBook() error {
	dir := f.Config.PeerBookDir()

	f.logger.WithField("path", dir).Debug("Opening peer book")

	book, err := peers.OpenBadgerBook(dir, f.logger)
	if err != nil {
		return err
	}

	f.PeerBook = book

	return nil
}

func (f *Fractis) initGate(ctx context.Context) error {
	if f.Ledger == nil {
		ledger, err := stake.DialRPCLedger(ctx, f.Config.LedgerURL)
		if err != nil {
			return err
		}
		f.Ledger = ledger
	}

	f.Gate = stake.NewGate(f.Ledger, *f.Config.MinStake, f.logger)

	return nil
}

func (f *Fractis) initConsensus() {
	client := &http.Client{Timeout: f.Config.ConfirmTimeout}

	f.Consensus = consensus.NewManager(
		consensus.ValidatorsFromConfig(f.Config.Validators, client),
		f.Config.ConsensusTimeoutDuration(),
		f.logger,
		consensus.WithConcurrency(f.Config.ConfirmConcurrency),
		consensus.WithConfirmTimeout(f.Config.ConfirmTimeout),
	)
}

func (f *Fractis) initNode() {
	f.Registry = peers.NewRegistry()

	f.Node = node.NewNode(
		f.Config,
		f.Gate,
		f.Registry,
		f.logger,
		node.WithIdentity(f.Identity),
		node.WithPeerBook(f.PeerBook),
	)
}

func (f *Fractis) initService() {
	if !f.Config.NoService {
		f.Service = service.NewService(
			f.Config.ServiceAddr,
			f.Node,
			f.PeerBook,
			f.Consensus,
			map[string]string{
				"address":    f.Address.String(),
				"public_key": keys.PublicKeyHex(&f.Config.Key.PublicKey),
			},
			f.logger,
		)
	}
}

// Init validates the configuration and builds every component. No socket is
// bound until Run.
func (f *Fractis) Init(ctx context.Context) error {
	f.logger = f.Config.Logger()

	if err := f.Config.Prepare(); err != nil {
		return err
	}

	if err := f.initKey(); err != nil {
		return err
	}

	if err := f.initPeerBook(); err != nil {
		return err
	}

	if err := f.initGate(ctx); err != nil {
		f.closeResources()
		return err
	}

	f.initConsensus()
	f.initNode()
	f.initService()

	return nil
}

// Run starts the node and blocks until it is shut down, through ctx or
// Shutdown. The HTTP service is only started once the stake gate passed and
// the listener is bound.
func (f *Fractis) Run(ctx context.Context) error {
	defer f.closeResources()

	serviceErr := make(chan error, 1)
	if f.Service != nil {
		go f.serveWhenBound(serviceErr)
	}

	err := f.Node.Start(ctx)

	if f.Service != nil {
		sctx, cancel := context.WithTimeout(context.Background(), serviceShutdownTimeout)
		if serr := f.Service.Shutdown(sctx); serr != nil {
			f.logger.WithError(serr).Warn("Shutting down service")
		}
		cancel()
		<-serviceErr
	}

	return err
}

func (f *Fractis) serveWhenBound(done chan<- error) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for f.Node.Addr() == nil {
		select {
		case <-f.Node.Done():
			done <- nil
			return
		case <-ticker.C:
		}
	}

	done <- f.Service.Serve()
}

// Shutdown stops the node. Run returns once everything is closed.
func (f *Fractis) Shutdown() {
	if f.Node != nil {
		f.Node.Shutdown()
	}
}

func (f *Fractis) closeResources() {
	if f.PeerBook != nil {
		if err := f.PeerBook.Close(); err != nil {
			f.logger.WithError(err).Warn("Closing peer book")
		}
		f.PeerBook = nil
	}

	if closer, ok := f.Ledger.(interface{ Close() }); ok {
		closer.Close()
	}
}

// Keygen creates a new key in the file at path. It refuses to overwrite an
// existing one.
func Keygen(path string) (*ecdsa.PrivateKey, error) {
	keyfile := keys.NewSimpleKeyfile(path)

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("another key already lives under %s", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	privKey, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	if err := keyfile.WriteKey(privKey); err != nil {
		return nil, err
	}

	return privKey, nil
}
