package node

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/fractis/node/src/common"
	fnet "github.com/fractis/node/src/net"
)

// closedAddr returns a loopback address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

type countingDialer struct {
	mu    sync.Mutex
	calls map[string]int
}

func (d *countingDialer) dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	d.mu.Lock()
	if d.calls == nil {
		d.calls = make(map[string]int)
	}
	d.calls[addr]++
	d.mu.Unlock()

	return fnet.DialTCP(ctx, addr, timeout)
}

func (d *countingDialer) count(addr string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[addr]
}

func TestBootstrapConnectorRetries(t *testing.T) {
	reachable, err := fnet.NewTCPStreamLayer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer reachable.Close()
	go func() {
		for {
			conn, err := reachable.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	unreachable := closedAddr(t)
	seeds := []string{unreachable, reachable.Addr().String()}

	dialer := &countingDialer{}
	var established []string
	var mu sync.Mutex

	connector := NewBootstrapConnector(seeds, 3, 10*time.Millisecond, time.Second,
		dialer.dial,
		func(conn net.Conn) error {
			mu.Lock()
			established = append(established, conn.RemoteAddr().String())
			mu.Unlock()
			conn.Close()
			return nil
		},
		common.NewTestEntry(t, common.TestLogLevel),
	)

	results := connector.Run(context.Background())

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	if results[0].Addr != unreachable || results[0].Err == nil || results[0].Attempts != 3 {
		t.Fatalf("unreachable seed: %+v", results[0])
	}
	if dialer.count(unreachable) != 3 {
		t.Fatalf("unreachable seed should be dialled 3 times, got %d", dialer.count(unreachable))
	}

	if results[1].Err != nil || results[1].Attempts != 1 {
		t.Fatalf("reachable seed: %+v", results[1])
	}
	if len(established) != 1 || established[0] != reachable.Addr().String() {
		t.Fatalf("unexpected established connections: %v", established)
	}
}

func TestBootstrapConnectorEstablishFailure(t *testing.T) {
	listener, err := fnet.NewTCPStreamLayer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	setupErr := errors.New("setup failed")
	calls := 0

	connector := NewBootstrapConnector([]string{listener.Addr().String()}, 2, time.Millisecond, time.Second,
		fnet.DialTCP,
		func(conn net.Conn) error {
			calls++
			conn.Close()
			return setupErr
		},
		common.NewTestEntry(t, common.TestLogLevel),
	)

	results := connector.Run(context.Background())

	if !errors.Is(results[0].Err, setupErr) || results[0].Attempts != 2 || calls != 2 {
		t.Fatalf("unexpected result %+v after %d calls", results[0], calls)
	}
}

func TestBootstrapConnectorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	connector := NewBootstrapConnector([]string{closedAddr(t)}, 100, time.Hour, time.Second,
		fnet.DialTCP,
		func(conn net.Conn) error { return nil },
		common.NewTestEntry(t, common.TestLogLevel),
	)

	done := make(chan []SeedResult)
	go func() {
		done <- connector.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case results := <-done:
		if !errors.Is(results[0].Err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", results[0].Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("bootstrap did not stop on cancellation")
	}
}
