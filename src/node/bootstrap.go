package node

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fractis/node/src/peers"
	"github.com/sirupsen/logrus"
)

// DialFunc opens an outgoing connection.
type DialFunc func(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error)

// SeedResult is the outcome of bootstrapping towards one seed.
type SeedResult struct {
	Addr     string
	Attempts int
	Err      error
}

// BootstrapConnector dials the configured seeds. Each seed is handled by its
// own goroutine, so an unreachable seed never delays the others.
type BootstrapConnector struct {
	seeds       []string
	maxAttempts int
	delay       time.Duration
	dialTimeout time.Duration

	dial DialFunc
	// establish takes ownership of a dialled connection. A nil error means the
	// seed is registered and needs no more attempts.
	establish func(conn net.Conn) error

	logger  *logrus.Entry
	metrics *nodeMetrics
}

// NewBootstrapConnector ...
func NewBootstrapConnector(seeds []string,
	maxAttempts int,
	delay time.Duration,
	dialTimeout time.Duration,
	dial DialFunc,
	establish func(conn net.Conn) error,
	logger *logrus.Entry,
) *BootstrapConnector {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &BootstrapConnector{
		seeds:       seeds,
		maxAttempts: maxAttempts,
		delay:       delay,
		dialTimeout: dialTimeout,
		dial:        dial,
		establish:   establish,
		logger:      logger,
	}
}

// Run starts one goroutine per seed, in configuration order, and waits for all
// of them. Results are in the same order as the seeds.
func (b *BootstrapConnector) Run(ctx context.Context) []SeedResult {
	results := make([]SeedResult, len(b.seeds))

	var wg sync.WaitGroup
	for i, seed := range b.seeds {
		wg.Add(1)
		go func(i int, seed string) {
			defer wg.Done()
			results[i] = b.connectSeed(ctx, seed)
		}(i, seed)
	}
	wg.Wait()

	return results
}

func (b *BootstrapConnector) connectSeed(ctx context.Context, addr string) SeedResult {
	logger := b.logger.WithField("seed", addr)
	res := SeedResult{Addr: addr}

	op := func() error {
		res.Attempts++

		conn, err := b.dial(ctx, addr, b.dialTimeout)
		if err != nil {
			b.metrics.recordSeedAttempt("dial_error")
			return err
		}

		if err := b.establish(conn); err != nil {
			b.metrics.recordSeedAttempt("setup_error")
			if errors.Is(err, peers.ErrPeerExists) {
				return backoff.Permanent(err)
			}
			return err
		}

		b.metrics.recordSeedAttempt("ok")
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(b.delay), uint64(b.maxAttempts-1)),
		ctx,
	)

	notify := func(err error, next time.Duration) {
		logger.WithFields(logrus.Fields{
			"attempt": res.Attempts,
			"retry":   next,
		}).WithError(err).Debug("Seed connection failed")
	}

	res.Err = backoff.RetryNotify(op, policy, notify)

	if res.Err != nil {
		logger.WithFields(logrus.Fields{
			"attempts": res.Attempts,
		}).WithError(res.Err).Warn("Giving up on seed")
	} else {
		logger.WithField("attempts", res.Attempts).Info("Connected to seed")
	}

	return res
}
