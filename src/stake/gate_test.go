package stake

import (
	"context"
	"errors"
	"testing"

	"github.com/fractis/node/src/common"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	balance uint64
	err     error
	asked   []string
}

func (l *fakeLedger) GetBalance(ctx context.Context, identity string) (uint64, error) {
	l.asked = append(l.asked, identity)
	return l.balance, l.err
}

func TestGateVerify(t *testing.T) {
	cases := []struct {
		name    string
		balance uint64
		min     uint64
		ok      bool
	}{
		{"above", 1000, 500, true},
		{"equal", 500, 500, true},
		{"below", 499, 500, false},
		{"zero minimum", 0, 0, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ledger := &fakeLedger{balance: c.balance}
			gate := NewGate(ledger, c.min, common.NewTestEntry(t, common.TestLogLevel))

			err := gate.Verify(context.Background(), "identity")
			require.Equal(t, []string{"identity"}, ledger.asked)

			if c.ok {
				require.NoError(t, err)
				return
			}

			var stakeErr *InsufficientStakeError
			require.True(t, errors.As(err, &stakeErr))
			require.Equal(t, c.balance, stakeErr.Balance)
			require.Equal(t, c.min, stakeErr.MinStake)
		})
	}
}

func TestGateLedgerFailure(t *testing.T) {
	unreachable := errors.New("connection refused")
	ledger := &fakeLedger{err: unreachable}
	gate := NewGate(ledger, 1, common.NewTestEntry(t, common.TestLogLevel))

	err := gate.Verify(context.Background(), "identity")

	var ledgerErr *LedgerError
	require.True(t, errors.As(err, &ledgerErr))
	require.ErrorIs(t, err, unreachable)
	// no retry at this layer
	require.Len(t, ledger.asked, 1)
}
