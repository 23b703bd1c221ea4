package stake

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// Ledger reads account balances from the ledger service.
type Ledger interface {
	GetBalance(ctx context.Context, identity string) (uint64, error)
}

// CommitmentConfirmed reads balances from blocks voted on by a supermajority.
const CommitmentConfirmed = "confirmed"

type commitmentConfig struct {
	Commitment string `json:"commitment"`
}

type balanceResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value uint64 `json:"value"`
}

// RPCLedger talks JSON-RPC 2.0 to the ledger service.
type RPCLedger struct {
	client     *rpc.Client
	commitment string
}

// DialRPCLedger connects to the ledger service at endpoint. HTTP and
// websocket URLs are accepted.
func DialRPCLedger(ctx context.Context, endpoint string) (*RPCLedger, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("ledger endpoint required")
	}
	client, err := rpc.DialContext(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("dial ledger %s: %w", trimmed, err)
	}
	return &RPCLedger{
		client:     client,
		commitment: CommitmentConfirmed,
	}, nil
}

// GetBalance implements the Ledger interface with a getBalance call at
// confirmed commitment.
func (l *RPCLedger) GetBalance(ctx context.Context, identity string) (uint64, error) {
	var res balanceResult
	err := l.client.CallContext(ctx, &res, "getBalance", identity, commitmentConfig{Commitment: l.commitment})
	if err != nil {
		return 0, err
	}
	return res.Value, nil
}

// Close ...
func (l *RPCLedger) Close() {
	l.client.Close()
}
