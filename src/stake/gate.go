package stake

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// InsufficientStakeError is returned when the balance is below the minimum.
type InsufficientStakeError struct {
	Identity string
	Balance  uint64
	MinStake uint64
}

func (e *InsufficientStakeError) Error() string {
	return fmt.Sprintf("insufficient stake for %s: balance %d, minimum %d", e.Identity, e.Balance, e.MinStake)
}

// LedgerError wraps a failure to read the balance from the ledger service.
type LedgerError struct {
	Identity string
	Err      error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger balance of %s: %v", e.Identity, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Gate admits identities holding at least MinStake. It does not retry: a
// ledger that cannot be reached fails the check.
type Gate struct {
	ledger   Ledger
	minStake uint64
	logger   *logrus.Entry
}

// NewGate ...
func NewGate(ledger Ledger, minStake uint64, logger *logrus.Entry) *Gate {
	return &Gate{
		ledger:   ledger,
		minStake: minStake,
		logger:   logger.WithField("component", "stake"),
	}
}

// MinStake returns the configured threshold.
func (g *Gate) MinStake() uint64 {
	return g.minStake
}

// Verify returns nil if identity's balance is at least the minimum stake.
func (g *Gate) Verify(ctx context.Context, identity string) error {
	balance, err := g.ledger.GetBalance(ctx, identity)
	if err != nil {
		return &LedgerError{Identity: identity, Err: err}
	}

	logger := g.logger.WithFields(logrus.Fields{
		"identity":  identity,
		"balance":   balance,
		"min_stake": g.minStake,
	})

	if balance < g.minStake {
		logger.Error("Insufficient stake")
		return &InsufficientStakeError{
			Identity: identity,
			Balance:  balance,
			MinStake: g.minStake,
		}
	}

	logger.Info("Stake verified")
	return nil
}
