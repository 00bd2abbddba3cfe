package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const timeLayout = time.RFC3339Nano

type Category struct {
	ID        string
	Title     string
	CreatedAt string
}

type Transaction struct {
	Seq           int64
	ID            string
	Title         string
	Value         string
	Type          string
	CategoryID    string
	CategoryTitle string
	CreatedAt     string
}

const createCategory = `INSERT INTO categories (id, title, created_at) VALUES (?, ?, ?)`

type CreateCategoryParams struct {
	ID        string
	Title     string
	CreatedAt time.Time
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) error {
	_, err := q.db.ExecContext(ctx, createCategory, arg.ID, arg.Title, arg.CreatedAt.UTC().Format(timeLayout))
	return err
}

const getCategoryByTitle = `SELECT id, title, created_at FROM categories WHERE title = ?`

func (q *Queries) GetCategoryByTitle(ctx context.Context, title string) (Category, error) {
	var c Category
	err := q.db.QueryRowContext(ctx, getCategoryByTitle, title).Scan(&c.ID, &c.Title, &c.CreatedAt)
	return c, err
}

// GetCategoriesByTitles expands the IN list to one placeholder per title.
func (q *Queries) GetCategoriesByTitles(ctx context.Context, titles []string) ([]Category, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT id, title, created_at FROM categories WHERE title IN (%s)`,
		strings.TrimSuffix(strings.Repeat("?, ", len(titles)), ", "))
	args := make([]any, len(titles))
	for i, t := range titles {
		args[i] = t
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createTransaction = `INSERT INTO transactions (id, title, value, type, category_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`

type CreateTransactionParams struct {
	ID         string
	Title      string
	Value      string
	Type       string
	CategoryID string
	CreatedAt  time.Time
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		arg.ID, arg.Title, arg.Value, arg.Type, arg.CategoryID, arg.CreatedAt.UTC().Format(timeLayout))
	return err
}

// CreateTransactions inserts the batch through one prepared statement. It is
// only atomic when q is bound to a transaction.
func (q *Queries) CreateTransactions(ctx context.Context, args []CreateTransactionParams) error {
	stmt, err := q.db.PrepareContext(ctx, createTransaction)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, arg := range args {
		if _, err := stmt.ExecContext(ctx,
			arg.ID, arg.Title, arg.Value, arg.Type, arg.CategoryID, arg.CreatedAt.UTC().Format(timeLayout)); err != nil {
			return err
		}
	}
	return nil
}

const listTransactions = `SELECT t.seq, t.id, t.title, t.value, t.type, t.category_id, c.title, t.created_at
FROM transactions t
JOIN categories c ON c.id = t.category_id
ORDER BY t.seq ASC`

// EachTransaction streams rows in insertion order without buffering them.
func (q *Queries) EachTransaction(ctx context.Context, fn func(Transaction) error) error {
	rows, err := q.db.QueryContext(ctx, listTransactions)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.Seq, &t.ID, &t.Title, &t.Value, &t.Type, &t.CategoryID, &t.CategoryTitle, &t.CreatedAt); err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return rows.Err()
}

const countTransactions = `SELECT COUNT(*) FROM transactions`

func (q *Queries) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countTransactions).Scan(&n)
	return n, err
}

const countCategories = `SELECT COUNT(*) FROM categories`

func (q *Queries) CountCategories(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countCategories).Scan(&n)
	return n, err
}
