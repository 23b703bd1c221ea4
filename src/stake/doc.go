// Package stake implements the admission check of a fractis node: before the
// node binds any socket, the ledger service is asked for the balance of the
// node's identity, which must be at least the configured minimum stake.
package stake
