// Package numerator adapts the sequence service to the ledger's entry
// numbering port. Draws run on the querier of the current transaction, so
// entry numbers commit and roll back with the entry itself.
package numerator

import (
	"context"
	"time"

	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/numerator"
)

// EntryNumbers implements stock.NumberGenerator over sys_sequences in the
// tenant's namespace.
type EntryNumbers struct {
	svc *numerator.Service
}

// NewEntryNumbers creates the ledger numbering adapter.
func NewEntryNumbers() *EntryNumbers {
	return &EntryNumbers{
		svc: numerator.NewWithProvider(func(ctx context.Context) numerator.Querier {
			return postgres.MustGetTxManager(ctx).GetQuerier(ctx)
		}),
	}
}

// Next draws the next yearly sequential number for the prefix, e.g.
// ADJ-2026-00042. Strict strategy: ledger numbers must be gap-free.
func (n *EntryNumbers) Next(ctx context.Context, prefix string) (string, error) {
	return n.svc.GetNextNumber(ctx, numerator.DefaultConfig(prefix), nil, time.Now().UTC())
}
