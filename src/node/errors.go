package node

import (
	"errors"
	"fmt"
)

// ErrNodeShutdown is returned by Start on a node that was already shut down.
var ErrNodeShutdown = errors.New("node is shut down")

// BindError is returned by Start when the listener cannot be bound. It is
// fatal.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// ConnectionSetupError reports a connection that could not be registered. It
// only ever concerns that one connection.
type ConnectionSetupError struct {
	Addr string
	Op   string
	Err  error
}

func (e *ConnectionSetupError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("connection setup (%s): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("connection setup %s (%s): %v", e.Addr, e.Op, e.Err)
}

func (e *ConnectionSetupError) Unwrap() error {
	return e.Err
}
