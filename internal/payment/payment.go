// Package payment is the boundary to the external payment executor.
//
// Handlers treat a missing or unknown transaction id as a valid degraded
// outcome: the gateway may acknowledge a transfer before it can name it, and
// the coordination layer prefers recording a pending payment over stalling a
// job on a hard failure.
package payment

import (
	"context"
	"fmt"
	"sync"
)

// Result is the outcome of a release attempt. A Pending result means the
// gateway accepted the transfer but could not yet name the transaction.
type Result struct {
	TxID    string
	Pending bool
}

// Executor moves funds to a recipient. Implementations wrap an external
// payment gateway.
type Executor interface {
	Release(ctx context.Context, recipient string, amount float64, memo string) (Result, error)
}

// Simulated is an Executor that fabricates deterministic transaction ids.
// Used in tests and offline runs.
type Simulated struct {
	mu  sync.Mutex
	seq int

	// PendingEvery makes every n-th release come back without a tx id, to
	// exercise the degraded path. Zero disables it.
	PendingEvery int
}

// Release fabricates a transaction id for the transfer.
func (s *Simulated) Release(ctx context.Context, recipient string, amount float64, memo string) (Result, error) {
	if recipient == "" {
		return Result{}, fmt.Errorf("recipient cannot be empty")
	}
	if amount <= 0 {
		return Result{}, fmt.Errorf("amount must be positive, got %v", amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++

	if s.PendingEvery > 0 && s.seq%s.PendingEvery == 0 {
		return Result{Pending: true}, nil
	}

	return Result{TxID: fmt.Sprintf("tx-sim-%06d", s.seq)}, nil
}
