// Package consensus decides the finality of transactions submitted to a
// fractis node.
//
// A transaction goes through a fixed sequence of checks. Its signature must
// verify against its declared origin, then its age must be below the
// consensus timeout, and finally a strict supermajority of the validator set
// must confirm it. A transaction is accepted when the number of confirmations
// is greater than floor(2n/3), n being the number of validators. With no
// validator at all nothing is ever accepted.
//
// Validators are asked concurrently, with bounded parallelism, and every
// answer is collected before the tally. A validator that fails to answer
// counts as not confirming.
package consensus
