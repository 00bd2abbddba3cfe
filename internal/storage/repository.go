package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finances/internal/core"
	"finances/internal/ports"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// ErrDuplicateCategory is returned when a category title is already taken.
var ErrDuplicateCategory = errors.New("duplicate category title")

type SQLiteRepository struct {
	store
	db *sql.DB
}

var _ ports.Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		store: store{queries: New(db)},
		db:    db,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InTx runs fn inside a database transaction, committing only if fn succeeds.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(tx ports.Store) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&store{queries: r.queries.WithTx(tx)}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// InsertTransactions wraps the batch in its own transaction.
func (r *SQLiteRepository) InsertTransactions(ctx context.Context, ts []core.Transaction) error {
	return r.InTx(ctx, func(tx ports.Store) error {
		return tx.InsertTransactions(ctx, ts)
	})
}

// InsertCategories wraps the batch in its own transaction.
func (r *SQLiteRepository) InsertCategories(ctx context.Context, cs []core.Category) error {
	return r.InTx(ctx, func(tx ports.Store) error {
		return tx.InsertCategories(ctx, cs)
	})
}

// CountRows reports how many categories and transactions are stored.
func (r *SQLiteRepository) CountRows(ctx context.Context) (categories, transactions int64, err error) {
	categories, err = r.queries.CountCategories(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("count categories: %w", err)
	}
	transactions, err = r.queries.CountTransactions(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("count transactions: %w", err)
	}
	return categories, transactions, nil
}

// store implements ports.Store over either the pool or a transaction.
type store struct {
	queries *Queries
}

func (s *store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	var out []core.Transaction
	err := s.EachTransaction(ctx, func(t core.Transaction) error {
		out = append(out, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *store) EachTransaction(ctx context.Context, fn func(core.Transaction) error) error {
	err := s.queries.EachTransaction(ctx, func(row Transaction) error {
		t, err := toCoreTransaction(row)
		if err != nil {
			return err
		}
		return fn(t)
	})
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	return nil
}

func (s *store) InsertTransaction(ctx context.Context, t core.Transaction) error {
	if err := s.queries.CreateTransaction(ctx, toTransactionParams(t)); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"title", t.Title,
		"value", t.Value.String(),
		"type", t.Type,
		"category_id", t.Category.ID)
	return nil
}

func (s *store) InsertTransactions(ctx context.Context, ts []core.Transaction) error {
	if len(ts) == 0 {
		return nil
	}
	params := make([]CreateTransactionParams, len(ts))
	for i, t := range ts {
		params[i] = toTransactionParams(t)
	}
	if err := s.queries.CreateTransactions(ctx, params); err != nil {
		return fmt.Errorf("create transactions: %w", err)
	}
	slog.DebugContext(ctx, "Transactions saved to SQLite", "count", len(ts))
	return nil
}

func (s *store) FindCategoryByTitle(ctx context.Context, title string) (core.Category, bool, error) {
	c, err := s.queries.GetCategoryByTitle(ctx, title)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, false, nil
	}
	if err != nil {
		return core.Category{}, false, fmt.Errorf("get category %q: %w", title, err)
	}
	return core.Category{ID: c.ID, Title: c.Title}, true, nil
}

func (s *store) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	rows, err := s.queries.GetCategoriesByTitles(ctx, distinct(titles))
	if err != nil {
		return nil, fmt.Errorf("get categories by titles: %w", err)
	}
	out := make([]core.Category, len(rows))
	for i, c := range rows {
		out[i] = core.Category{ID: c.ID, Title: c.Title}
	}
	return out, nil
}

func (s *store) InsertCategory(ctx context.Context, c core.Category) error {
	err := s.queries.CreateCategory(ctx, CreateCategoryParams{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("create category %q: %w", c.Title, mapConstraintError(err))
	}
	slog.DebugContext(ctx, "Category saved to SQLite", "id", c.ID, "title", c.Title)
	return nil
}

func (s *store) InsertCategories(ctx context.Context, cs []core.Category) error {
	for _, c := range cs {
		if err := s.InsertCategory(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func toTransactionParams(t core.Transaction) CreateTransactionParams {
	return CreateTransactionParams{
		ID:         t.ID,
		Title:      t.Title,
		Value:      t.Value.String(),
		Type:       string(t.Type),
		CategoryID: t.Category.ID,
		CreatedAt:  t.CreatedAt,
	}
}

func toCoreTransaction(row Transaction) (core.Transaction, error) {
	value, err := decimal.NewFromString(row.Value)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("decode value of transaction %s: %w", row.ID, err)
	}
	createdAt, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("decode created_at of transaction %s: %w", row.ID, err)
	}
	return core.Transaction{
		ID:        row.ID,
		Title:     row.Title,
		Value:     value,
		Type:      core.TransactionType(row.Type),
		Category:  core.Category{ID: row.CategoryID, Title: row.CategoryTitle},
		CreatedAt: createdAt,
	}, nil
}

func mapConstraintError(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed: categories.title") {
		return fmt.Errorf("%w: %v", ErrDuplicateCategory, err)
	}
	return err
}

func distinct(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
