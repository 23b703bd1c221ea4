package net

import (
	"context"
	"net"
	"time"
)

// StreamLayer provides the low level stream abstraction the node accepts and
// dials connections through.
type StreamLayer interface {
	net.Listener

	// Dial is used to create a new outgoing connection
	Dial(ctx context.Context, address string, timeout time.Duration) (net.Conn, error)
}
