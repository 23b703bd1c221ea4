// Package address derives human facing fractis addresses from ledger account
// names.
package address

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Prefix starts every fractis address.
	Prefix = "fractis"

	// rounds of chained hashing; each contributes 16 hex characters
	rounds = 4

	// Ledger account names are 32 byte values in base58. Their encoding is 44
	// characters for most values but shorter when the leading bytes are
	// small, down to 32 characters for an all-zero value. Node identities
	// (the SHA256 of the public key) hit the shorter forms regularly.
	minLedgerLength = 32
	maxLedgerLength = 44

	base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
)

var (
	// ErrInvalidLedgerAddress is returned for malformed ledger account names.
	ErrInvalidLedgerAddress = errors.New("invalid ledger address")

	// ErrInvalidAddress is returned for malformed fractis addresses.
	ErrInvalidAddress = errors.New("invalid fractis address")
)

// Address is a validated fractis address.
type Address string

// FromLedger derives the fractis address of a base58 ledger account name.
// Each round hashes the previous round's output (the account name for the
// first round) followed by the round number with DJB2 and writes the 64 bit
// result as 16 hex characters.
func FromLedger(ledgerAddr string) (Address, error) {
	if len(ledgerAddr) < minLedgerLength || len(ledgerAddr) > maxLedgerLength {
		return "", fmt.Errorf("%w: must be %d to %d characters long, got %d",
			ErrInvalidLedgerAddress, minLedgerLength, maxLedgerLength, len(ledgerAddr))
	}
	for _, c := range ledgerAddr {
		if !strings.ContainsRune(base58Alphabet, c) {
			return "", fmt.Errorf("%w: unexpected character %q", ErrInvalidLedgerAddress, c)
		}
	}

	var sb strings.Builder
	sb.WriteString(Prefix)

	prev := ledgerAddr
	for i := 0; i < rounds; i++ {
		h := djb2(fmt.Sprintf("%s%d", prev, i))
		prev = fmt.Sprintf("%016x", h)
		sb.WriteString(prev)
	}

	return Address(sb.String()), nil
}

// Parse validates s as a fractis address.
func Parse(s string) (Address, error) {
	if !strings.HasPrefix(s, Prefix) {
		return "", fmt.Errorf("%w: missing %q prefix", ErrInvalidAddress, Prefix)
	}
	body := s[len(Prefix):]
	if len(body) != rounds*16 {
		return "", fmt.Errorf("%w: must be %d characters after prefix, got %d", ErrInvalidAddress, rounds*16, len(body))
	}
	for _, c := range body {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return "", fmt.Errorf("%w: unexpected character %q", ErrInvalidAddress, c)
		}
	}
	return Address(s), nil
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return string(a)
}

// djb2 returns the DJB2 hash of s with wrapping 64 bit arithmetic.
func djb2(s string) uint64 {
	h := uint64(5381)
	for _, c := range s {
		h = h<<5 + h + uint64(c)
	}
	return h
}
