package services

import (
	"context"
	"fmt"

	"finances/internal/core"
	"finances/internal/ports"
)

// BalanceAggregator derives the balance from the full transaction set on
// every call.
type BalanceAggregator struct {
	repo ports.TransactionReader
}

func NewBalanceAggregator(repo ports.TransactionReader) *BalanceAggregator {
	return &BalanceAggregator{repo: repo}
}

func (a *BalanceAggregator) ComputeBalance(ctx context.Context) (core.Balance, error) {
	return computeBalanceIn(ctx, a.repo)
}

func computeBalanceIn(ctx context.Context, r ports.TransactionReader) (core.Balance, error) {
	var b core.Balance
	err := r.EachTransaction(ctx, func(t core.Transaction) error {
		b = b.Add(t)
		return nil
	})
	if err != nil {
		return core.Balance{}, fmt.Errorf("compute balance: %w", err)
	}
	return b, nil
}
