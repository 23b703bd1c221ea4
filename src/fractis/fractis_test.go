package fractis

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/fractis/node/src/common"
	"github.com/fractis/node/src/config"
	"github.com/fractis/node/src/crypto/keys"
	"github.com/fractis/node/src/stake"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	balance uint64
}

func (l *fakeLedger) GetBalance(ctx context.Context, identity string) (uint64, error) {
	return l.balance, nil
}

func newTestEngine(t *testing.T, balance, minStake uint64) *Fractis {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.MinStake = &minStake

	engine := NewFractis(conf)
	engine.Ledger = &fakeLedger{balance: balance}
	return engine
}

func TestInitCreatesKeyAndBook(t *testing.T) {
	engine := newTestEngine(t, 10, 5)
	require.NoError(t, engine.Init(context.Background()))
	defer engine.closeResources()

	require.NotNil(t, engine.Config.Key)
	require.FileExists(t, engine.Config.Keyfile())
	require.DirExists(t, engine.Config.PeerBookDir())
	require.Equal(t, keys.LedgerIdentity(&engine.Config.Key.PublicKey), engine.Identity)
	require.Len(t, engine.Address.String(), len("fractis")+64)
	require.Nil(t, engine.Service)
}

func TestRunAndShutdown(t *testing.T) {
	engine := newTestEngine(t, 10, 5)
	require.NoError(t, engine.Init(context.Background()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(context.Background())
	}()

	require.Eventually(t, func() bool { return engine.Node.Addr() != nil }, 2*time.Second, 5*time.Millisecond)

	conn, err := net.Dial("tcp", engine.Node.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return engine.Registry.Connected() == 1 }, 2*time.Second, 5*time.Millisecond)

	entries, err := engine.PeerBook.All()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, conn.LocalAddr().String(), entries[0].Addr)

	engine.Shutdown()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}

func TestRunInsufficientStake(t *testing.T) {
	engine := newTestEngine(t, 1, 5)
	require.NoError(t, engine.Init(context.Background()))

	err := engine.Run(context.Background())

	var stakeErr *stake.InsufficientStakeError
	require.True(t, errors.As(err, &stakeErr))
	require.Equal(t, engine.Identity, stakeErr.Identity)
	require.Nil(t, engine.Node.Addr())
}

func TestInitMissingMinStake(t *testing.T) {
	engine := newTestEngine(t, 1, 5)
	engine.Config.MinStake = nil

	require.ErrorIs(t, engine.Init(context.Background()), config.ErrMissingMinStake)
}

func TestKeygen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "priv_key")

	key, err := Keygen(path)
	require.NoError(t, err)

	read, err := keys.NewSimpleKeyfile(path).ReadKey()
	require.NoError(t, err)
	require.Equal(t, key.D, read.D)

	_, err = Keygen(path)
	require.Error(t, err)
}
