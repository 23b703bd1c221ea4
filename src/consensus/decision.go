package consensus

import "fmt"

// Stage is a step of the evaluation of a transaction. Accepted and Rejected
// are terminal.
type Stage int

const (
	// Pending is a submitted transaction not evaluated yet.
	Pending Stage = iota
	// SignatureChecked means the signature verified against the origin.
	SignatureChecked
	// TimestampChecked means the transaction is recent enough.
	TimestampChecked
	// QuorumEvaluated means the validators were asked and counted.
	QuorumEvaluated
	// Accepted is terminal.
	Accepted
	// Rejected is terminal, see Reason.
	Rejected
)

// String ...
func (s Stage) String() string {
	switch s {
	case Pending:
		return "Pending"
	case SignatureChecked:
		return "SignatureChecked"
	case TimestampChecked:
		return "TimestampChecked"
	case QuorumEvaluated:
		return "QuorumEvaluated"
	case Accepted:
		return "Accepted"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Reason explains a rejection.
type Reason int

const (
	// NoReason is the Reason of a decision that is not a rejection.
	NoReason Reason = iota
	// BadSignature: the signature does not verify against the origin.
	BadSignature
	// StaleTransaction: the transaction is older than the consensus timeout.
	StaleTransaction
	// QuorumNotReached: too few validators confirmed.
	QuorumNotReached
)

// String ...
func (r Reason) String() string {
	switch r {
	case NoReason:
		return "none"
	case BadSignature:
		return "bad_signature"
	case StaleTransaction:
		return "stale_transaction"
	case QuorumNotReached:
		return "quorum_not_reached"
	default:
		return "unknown"
	}
}

// Decision is the outcome of an evaluation. Confirmations, Threshold and
// Validators are only meaningful once the quorum was evaluated.
type Decision struct {
	Stage         Stage
	Reason        Reason
	Confirmations int
	Threshold     int
	Validators    int
}

// Accepted ...
func (d Decision) Accepted() bool {
	return d.Stage == Accepted
}

// Err returns a *RejectionError for rejected decisions and nil otherwise.
func (d Decision) Err() error {
	if d.Stage != Rejected {
		return nil
	}
	return &RejectionError{
		Reason:        d.Reason,
		Confirmations: d.Confirmations,
		Threshold:     d.Threshold,
	}
}

// RejectionError is returned to callers of a rejected transaction.
type RejectionError struct {
	Reason        Reason
	Confirmations int
	Threshold     int
}

func (e *RejectionError) Error() string {
	if e.Reason == QuorumNotReached {
		return fmt.Sprintf("transaction rejected: %s (%d confirmations, more than %d required)",
			e.Reason, e.Confirmations, e.Threshold)
	}
	return fmt.Sprintf("transaction rejected: %s", e.Reason)
}

func reject(reason Reason) Decision {
	return Decision{Stage: Rejected, Reason: reason}
}
