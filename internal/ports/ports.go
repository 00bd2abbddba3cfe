package ports

import (
	"context"

	"finances/internal/core"
)

// Ports for the storage boundary.
type (
	TransactionReader interface {
		// ListTransactions returns every stored transaction in insertion order.
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		// EachTransaction streams every stored transaction to fn, stopping at
		// the first error fn returns.
		EachTransaction(ctx context.Context, fn func(core.Transaction) error) error
	}

	TransactionWriter interface {
		InsertTransaction(ctx context.Context, t core.Transaction) error
		// InsertTransactions persists the batch atomically.
		InsertTransactions(ctx context.Context, ts []core.Transaction) error
	}

	CategoryFinder interface {
		FindCategoryByTitle(ctx context.Context, title string) (core.Category, bool, error)
		// FindCategoriesByTitles resolves a set of titles in one query.
		FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error)
	}

	CategoryWriter interface {
		InsertCategory(ctx context.Context, c core.Category) error
		InsertCategories(ctx context.Context, cs []core.Category) error
	}

	// Store is everything the ledger needs from storage.
	Store interface {
		TransactionReader
		TransactionWriter
		CategoryFinder
		CategoryWriter
	}

	// Repository is a Store that can run a unit of work atomically. Writes
	// made through the Store passed to fn become visible together when fn
	// returns nil, and not at all otherwise.
	Repository interface {
		Store
		InTx(ctx context.Context, fn func(tx Store) error) error
		Close() error
	}
)
