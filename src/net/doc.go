// Package net holds the plain TCP plumbing of a fractis node: the stream layer
// that binds the listener and dials seeds, and the socket options applied to
// every connection before it is registered.
//
// Every connection, inbound or outbound, gets TCP_NODELAY and TCP keepalive
// probes (idle 60s, interval 10s, 9 probes by default) so that dead peers are
// detected by the kernel even when no application traffic flows.
package net
