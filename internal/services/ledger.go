package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"finances/internal/core"
	"finances/internal/log"
	"finances/internal/ports"
)

// NewTransaction is the input for creating one transaction.
type NewTransaction struct {
	Title         string
	Value         decimal.Decimal
	Type          core.TransactionType
	CategoryTitle string
}

// Validate checks the input of a single create. Bulk records skip the
// category check.
func (n NewTransaction) Validate() error {
	if err := n.record().Validate(); err != nil {
		return err
	}
	if n.CategoryTitle == "" {
		return core.ErrEmptyCategory
	}
	return nil
}

func (n NewTransaction) record() core.Transaction {
	return core.Transaction{Title: n.Title, Value: n.Value, Type: n.Type}
}

// Ledger creates transactions, enforcing the non-negative balance rule on
// single outcome creates.
type Ledger struct {
	repo       ports.Repository
	categories *CategoryStore
	balance    *BalanceAggregator
}

func NewLedger(repo ports.Repository, categories *CategoryStore) *Ledger {
	if categories == nil {
		categories = NewCategoryStore(repo, nil)
	}
	return &Ledger{
		repo:       repo,
		categories: categories,
		balance:    NewBalanceAggregator(repo),
	}
}

// Balance returns the current balance.
func (l *Ledger) Balance(ctx context.Context) (core.Balance, error) {
	return l.balance.ComputeBalance(ctx)
}

// Transactions returns every stored transaction in insertion order.
func (l *Ledger) Transactions(ctx context.Context) ([]core.Transaction, error) {
	ts, err := l.repo.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return ts, nil
}

// Create validates and stores one transaction. An outcome larger than the
// current total fails with *core.InsufficientBalanceError before any
// category is created.
func (l *Ledger) Create(ctx context.Context, in NewTransaction) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if in.Type == core.Outcome {
		b, err := l.balance.ComputeBalance(ctx)
		if err != nil {
			return core.Transaction{}, err
		}
		if !b.Covers(in.Value) {
			slog.InfoContext(ctx, "Outcome rejected",
				log.FieldComponent, log.ComponentLedger,
				log.FieldValue, in.Value.String(),
				log.FieldAvailable, b.Total.String())
			return core.Transaction{}, &core.InsufficientBalanceError{Requested: in.Value, Available: b.Total}
		}
	}

	c, err := l.categories.GetOrCreate(ctx, in.CategoryTitle)
	if err != nil {
		return core.Transaction{}, err
	}

	t := core.NewTransaction(in.Title, in.Value, in.Type, c)
	if err := l.repo.InsertTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		log.FieldComponent, log.ComponentLedger,
		log.FieldTransactionID, t.ID,
		log.FieldType, t.Type.String(),
		log.FieldValue, t.Value.String(),
		log.FieldCategory, c.Title)
	return t, nil
}

// CreateMany stores the records as one unit of work: categories are
// resolved in bulk and all transactions are inserted together, or nothing is
// stored. The balance is not re-checked per record.
func (l *Ledger) CreateMany(ctx context.Context, in []NewTransaction) ([]core.Transaction, error) {
	ts, _, err := l.createMany(ctx, in)
	return ts, err
}

func (l *Ledger) createMany(ctx context.Context, in []NewTransaction) ([]core.Transaction, []core.Category, error) {
	if len(in) == 0 {
		return nil, nil, nil
	}
	for i, n := range in {
		if err := n.record().Validate(); err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", i, err)
		}
	}

	titles := make([]string, len(in))
	for i, n := range in {
		titles[i] = n.CategoryTitle
	}

	var (
		ts      []core.Transaction
		created []core.Category
		byTitle map[string]core.Category
	)
	err := l.repo.InTx(ctx, func(tx ports.Store) error {
		var err error
		byTitle, created, err = l.categories.getOrCreateManyIn(ctx, tx, titles)
		if err != nil {
			return err
		}

		ts = make([]core.Transaction, len(in))
		for i, n := range in {
			c, ok := byTitle[n.CategoryTitle]
			if !ok {
				return fmt.Errorf("category %q not resolved", n.CategoryTitle)
			}
			ts[i] = core.NewTransaction(n.Title, n.Value, n.Type, c)
		}
		if err := tx.InsertTransactions(ctx, ts); err != nil {
			return fmt.Errorf("save transactions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	l.categories.rememberAll(byTitle)
	slog.InfoContext(ctx, "Transactions created",
		log.FieldComponent, log.ComponentLedger,
		log.FieldCount, len(ts),
		log.FieldCategoriesCreated, len(created))
	return ts, created, nil
}
