package services

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"finances/internal/core"
	"finances/internal/ports"
	"finances/internal/storage/memory"
	"finances/internal/uploads"
)

// faultyRepo wraps the memory store, counting batch calls and injecting
// failures.
type faultyRepo struct {
	*memory.Store

	mu                 sync.Mutex
	findManyCalls      int
	insertCatsCalls    int
	insertedCategories [][]core.Category

	FindErr               error
	EachErr               error
	InsertTransactionsErr error
}

func newFaultyRepo(categories ...string) *faultyRepo {
	return &faultyRepo{Store: memory.New(categories...)}
}

func (r *faultyRepo) InTx(ctx context.Context, fn func(tx ports.Store) error) error {
	return r.Store.InTx(ctx, func(tx ports.Store) error {
		return fn(&faultyStore{Store: tx, repo: r})
	})
}

func (r *faultyRepo) FindCategoryByTitle(ctx context.Context, title string) (core.Category, bool, error) {
	if r.FindErr != nil {
		return core.Category{}, false, r.FindErr
	}
	return r.Store.FindCategoryByTitle(ctx, title)
}

func (r *faultyRepo) EachTransaction(ctx context.Context, fn func(core.Transaction) error) error {
	if r.EachErr != nil {
		return r.EachErr
	}
	return r.Store.EachTransaction(ctx, fn)
}

type faultyStore struct {
	ports.Store
	repo *faultyRepo
}

func (s *faultyStore) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	s.repo.mu.Lock()
	s.repo.findManyCalls++
	s.repo.mu.Unlock()
	if s.repo.FindErr != nil {
		return nil, s.repo.FindErr
	}
	return s.Store.FindCategoriesByTitles(ctx, titles)
}

func (s *faultyStore) InsertCategories(ctx context.Context, cs []core.Category) error {
	s.repo.mu.Lock()
	s.repo.insertCatsCalls++
	s.repo.insertedCategories = append(s.repo.insertedCategories, cs)
	s.repo.mu.Unlock()
	return s.Store.InsertCategories(ctx, cs)
}

func (s *faultyStore) InsertTransactions(ctx context.Context, ts []core.Transaction) error {
	if err := s.Store.InsertTransactions(ctx, ts); err != nil {
		return err
	}
	return s.repo.InsertTransactionsErr
}

// memSource is an in-memory uploads.Source.
type memSource struct {
	mu      sync.Mutex
	files   map[string][]byte
	deleted []string
}

func newMemSource(files map[string]string) *memSource {
	s := &memSource{files: map[string][]byte{}}
	for name, body := range files {
		s.files[name] = []byte(body)
	}
	return s
}

func (s *memSource) Save(_ context.Context, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = data
	return nil
}

func (s *memSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	if !ok {
		return nil, uploads.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memSource) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[name]; !ok {
		return uploads.ErrNotFound
	}
	delete(s.files, name)
	s.deleted = append(s.deleted, name)
	return nil
}

func (s *memSource) has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[name]
	return ok
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}
