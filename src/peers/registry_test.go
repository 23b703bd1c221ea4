package peers

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRegistryInsert(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	if err := r.Insert(NewPeerInfo("10.0.0.1:4000", Inbound, now)); err != nil {
		t.Fatalf("err: %v", err)
	}

	// a live entry is never overwritten
	if err := r.Insert(NewPeerInfo("10.0.0.1:4000", Outbound, now)); err != ErrPeerExists {
		t.Fatalf("expected ErrPeerExists, got %v", err)
	}
	p, _ := r.Get("10.0.0.1:4000")
	if p.Direction != Inbound {
		t.Fatalf("live entry was overwritten: %+v", p)
	}

	// a dead entry is replaced
	r.MarkDisconnected("10.0.0.1:4000")
	if err := r.Insert(NewPeerInfo("10.0.0.1:4000", Outbound, now)); err != nil {
		t.Fatalf("err: %v", err)
	}
	p, _ = r.Get("10.0.0.1:4000")
	if p.Direction != Outbound || !p.Connected {
		t.Fatalf("dead entry was not replaced: %+v", p)
	}

	if r.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", r.Len())
	}
}

func TestRegistryInsertCopies(t *testing.T) {
	r := NewRegistry()
	info := NewPeerInfo("10.0.0.1:4000", Inbound, time.Now())
	r.Insert(info)

	info.Connected = false
	if p, _ := r.Get(info.Addr); !p.Connected {
		t.Fatalf("registry entry should not alias the caller's PeerInfo")
	}
}

func TestRegistrySweep(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	for i := 0; i < 5; i++ {
		r.Insert(NewPeerInfo(fmt.Sprintf("10.0.0.%d:4000", i), Inbound, now))
	}
	r.MarkDisconnected("10.0.0.1:4000")
	r.MarkDisconnected("10.0.0.3:4000")

	removed := r.Sweep()
	if len(removed) != 2 || removed[0] != "10.0.0.1:4000" || removed[1] != "10.0.0.3:4000" {
		t.Fatalf("unexpected removed addresses: %v", removed)
	}

	for _, p := range r.Snapshot() {
		if !p.Connected {
			t.Fatalf("disconnected peer survived the sweep: %+v", p)
		}
	}
	if r.Len() != 3 || r.Connected() != 3 {
		t.Fatalf("expected 3 peers, got %d (%d connected)", r.Len(), r.Connected())
	}

	if removed := r.Sweep(); len(removed) != 0 {
		t.Fatalf("second sweep removed %v", removed)
	}
}

func TestRegistryRemoveAndTouch(t *testing.T) {
	r := NewRegistry()
	start := time.Now()
	r.Insert(NewPeerInfo("a:1", Outbound, start))

	later := start.Add(time.Minute)
	if !r.Touch("a:1", later) {
		t.Fatalf("Touch should find a:1")
	}
	r.Touch("a:1", start)
	if p, _ := r.Get("a:1"); !p.LastActivity.Equal(later) {
		t.Fatalf("LastActivity should not go backwards: %v", p.LastActivity)
	}

	if !r.Remove("a:1") {
		t.Fatalf("Remove should find a:1")
	}
	if r.Remove("a:1") || r.Touch("a:1", later) || r.MarkDisconnected("a:1") {
		t.Fatalf("operations on a removed peer should report false")
	}
}

func TestRegistryConcurrentInsert(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// every goroutine races for one of 5 addresses
			addr := fmt.Sprintf("10.0.0.%d:4000", i%5)
			if err := r.Insert(NewPeerInfo(addr, Inbound, now)); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if accepted != 5 {
		t.Fatalf("expected exactly one winner per address, got %d", accepted)
	}
	if r.Len() != 5 {
		t.Fatalf("expected 5 entries, got %d", r.Len())
	}
}

func TestRegistryConnectedBy(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	r.Insert(NewPeerInfo("10.0.0.1:4000", Inbound, now))
	r.Insert(NewPeerInfo("10.0.0.2:4000", Inbound, now))
	r.Insert(NewPeerInfo("10.0.0.3:4000", Outbound, now))
	r.MarkDisconnected("10.0.0.2:4000")

	if n := r.ConnectedBy(Inbound); n != 1 {
		t.Fatalf("expected 1 connected inbound peer, got %d", n)
	}
	if n := r.ConnectedBy(Outbound); n != 1 {
		t.Fatalf("expected 1 connected outbound peer, got %d", n)
	}
}
