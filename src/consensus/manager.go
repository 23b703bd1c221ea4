package consensus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Validator is a member of the validator set, able to confirm transactions.
type Validator interface {
	ID() string
	Confirm(ctx context.Context, tx *Transaction) (bool, error)
}

// ConsensusState is the finality state owned by a Manager.
type ConsensusState struct {
	LastBlockHash string
	Timeout       time.Duration
	LastConsensus time.Time
}

// QuorumThreshold returns floor(2n/3). A transaction needs strictly more
// confirmations than that, so for n=0 no transaction is ever accepted and for
// n=3 all three validators must confirm.
func QuorumThreshold(n int) int {
	return n * 2 / 3
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithVerifier replaces the default SignatureVerifier.
func WithVerifier(v Verifier) ManagerOption {
	return func(m *Manager) {
		m.verifier = v
	}
}

// WithConcurrency bounds the number of validators asked at the same time.
// Zero or less means all of them.
func WithConcurrency(n int) ManagerOption {
	return func(m *Manager) {
		m.concurrency = n
	}
}

// WithConfirmTimeout bounds each validator call.
func WithConfirmTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.confirmTimeout = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager evaluates transactions against the validator set. Evaluations are
// independent of each other and may run concurrently; they only share the
// last consensus timestamp.
type Manager struct {
	validators     []Validator
	verifier       Verifier
	timeout        time.Duration
	concurrency    int
	confirmTimeout time.Duration
	now            func() time.Time

	stateLock sync.RWMutex
	state     ConsensusState

	logger  *logrus.Entry
	metrics *consensusMetrics
}

// NewManager returns a Manager rejecting transactions older than timeout.
func NewManager(validators []Validator, timeout time.Duration, logger *logrus.Entry, opts ...ManagerOption) *Manager {
	m := &Manager{
		validators: validators,
		verifier:   SignatureVerifier{},
		timeout:    timeout,
		now:        time.Now,
		state: ConsensusState{
			Timeout: timeout,
		},
		logger:  logger.WithField("component", "consensus"),
		metrics: newConsensusMetrics(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// State returns a copy of the consensus state.
func (m *Manager) State() ConsensusState {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()

	return m.state
}

// Validators returns the number of validators in the set.
func (m *Manager) Validators() int {
	return len(m.validators)
}

// Precheck runs the local checks only: signature then freshness. It stops at
// TimestampChecked when both pass.
func (m *Manager) Precheck(tx *Transaction) Decision {
	if !m.verifier.Verify(tx) {
		return reject(BadSignature)
	}

	// A timestamp in the future has a negative age and counts as fresh.
	age := m.now().Sub(tx.Timestamp)
	if age >= m.timeout {
		return reject(StaleTransaction)
	}

	return Decision{Stage: TimestampChecked}
}

// ValidateTransaction runs the full evaluation. No validator is consulted for
// a transaction that fails the local checks.
func (m *Manager) ValidateTransaction(ctx context.Context, tx *Transaction) Decision {
	start := time.Now()

	decision := m.Precheck(tx)
	if decision.Stage == Rejected {
		m.finish(tx, decision, start)
		return decision
	}

	confirmations := m.tally(ctx, tx)
	n := len(m.validators)

	decision = Decision{
		Stage:         QuorumEvaluated,
		Confirmations: confirmations,
		Threshold:     QuorumThreshold(n),
		Validators:    n,
	}

	if confirmations > decision.Threshold {
		decision.Stage = Accepted

		m.stateLock.Lock()
		m.state.LastConsensus = m.now()
		m.stateLock.Unlock()
	} else {
		decision.Stage = Rejected
		decision.Reason = QuorumNotReached
	}

	m.finish(tx, decision, start)
	return decision
}

// tally asks every validator and counts the confirmations. All answers are
// collected; errors count as refusals.
func (m *Manager) tally(ctx context.Context, tx *Transaction) int {
	var (
		g             errgroup.Group
		confirmations int64
	)

	limit := m.concurrency
	if limit <= 0 || limit > len(m.validators) {
		limit = len(m.validators)
	}
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, v := range m.validators {
		v := v
		g.Go(func() error {
			cctx := ctx
			if m.confirmTimeout > 0 {
				var cancel context.CancelFunc
				cctx, cancel = context.WithTimeout(ctx, m.confirmTimeout)
				defer cancel()
			}

			ok, err := v.Confirm(cctx, tx)
			if err != nil {
				m.metrics.recordConfirmation("error")
				m.logger.WithError(err).WithField("validator", v.ID()).Warn("Validator confirmation failed")
				return nil
			}

			if ok {
				m.metrics.recordConfirmation("confirmed")
				atomic.AddInt64(&confirmations, 1)
			} else {
				m.metrics.recordConfirmation("refused")
			}
			return nil
		})
	}

	g.Wait()

	return int(confirmations)
}

func (m *Manager) finish(tx *Transaction, d Decision, start time.Time) {
	m.metrics.recordDecision(d, time.Since(start))

	fields := logrus.Fields{
		"origin":        tx.Origin,
		"stage":         d.Stage.String(),
		"confirmations": d.Confirmations,
		"validators":    d.Validators,
	}
	if d.Stage == Rejected {
		fields["reason"] = d.Reason.String()
	}
	m.logger.WithFields(fields).Debug("Transaction evaluated")
}
