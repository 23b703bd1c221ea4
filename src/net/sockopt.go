package net

import (
	"fmt"
	"net"
	"time"
)

// SocketOptions are applied to every peer connection.
type SocketOptions struct {
	NoDelay           bool
	KeepAliveIdle     time.Duration
	KeepAliveInterval time.Duration
	KeepAliveCount    int
}

// DefaultSocketOptions disables Nagle's algorithm and probes an idle
// connection after 60s, every 10s, giving up after 9 unanswered probes.
func DefaultSocketOptions() SocketOptions {
	return SocketOptions{
		NoDelay:           true,
		KeepAliveIdle:     60 * time.Second,
		KeepAliveInterval: 10 * time.Second,
		KeepAliveCount:    9,
	}
}

// tcpOptionSetter is satisfied by *net.TCPConn.
type tcpOptionSetter interface {
	SetNoDelay(noDelay bool) error
	SetKeepAliveConfig(config net.KeepAliveConfig) error
}

// ApplySocketOptions configures conn. Connections that are not TCP are
// rejected with an error, as are any failures reported by the kernel.
func ApplySocketOptions(conn net.Conn, opts SocketOptions) error {
	tc, ok := conn.(tcpOptionSetter)
	if !ok {
		return fmt.Errorf("socket options: %T is not a TCP connection", conn)
	}

	if err := tc.SetNoDelay(opts.NoDelay); err != nil {
		return fmt.Errorf("set TCP_NODELAY: %w", err)
	}

	err := tc.SetKeepAliveConfig(net.KeepAliveConfig{
		Enable:   true,
		Idle:     opts.KeepAliveIdle,
		Interval: opts.KeepAliveInterval,
		Count:    opts.KeepAliveCount,
	})
	if err != nil {
		return fmt.Errorf("set keepalive: %w", err)
	}

	return nil
}
