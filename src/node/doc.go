// Package node implements the supervisor of a fractis validator node.
//
// A Node goes through the following states:
//
// Gating: the stake gate asks the ledger for the balance of the node's
// identity. A balance below the configured minimum, or a ledger that cannot be
// reached, aborts Start before any socket is bound.
//
// Bootstrapping: the listener is bound on host:port, the accept loop runs, and
// every configured seed is dialled by its own goroutine. A seed that cannot be
// reached is retried after a fixed delay, up to a maximum number of attempts,
// then abandoned. Failing seeds never fail the node.
//
// Serving: all seeds have been tried; the node keeps accepting peers until it
// is shut down.
//
// Shutdown: the listener is closed and every connection task stops at its
// next step.
//
// Connections
//
// Accepted and dialled connections go through the same ConnectionHandler: TCP
// socket options are applied, the remote address is derived and a PeerInfo is
// inserted in the peer registry. The whole sequence runs under a handshake
// timeout (10s by default); a connection that does not complete it is closed.
// A registered connection is then driven by a Session which marks the peer as
// disconnected when the connection ends. A background task sweeps such peers
// out of the registry every minute.
package node
