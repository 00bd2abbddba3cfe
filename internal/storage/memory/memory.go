package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"finances/internal/core"
	"finances/internal/ports"
)

// Store keeps categories and transactions in process memory. Batches applied
// through InTx are staged on a copy and swapped in on success.
type Store struct {
	txMu sync.Mutex // serialises units of work
	mu   sync.RWMutex
	data *state
}

var _ ports.Repository = (*Store)(nil)

type state struct {
	categories   []core.Category
	byTitle      map[string]int
	transactions []core.Transaction
}

func New(categories ...string) *Store {
	s := &Store{data: &state{byTitle: map[string]int{}}}
	for _, title := range dedupe(categories) {
		s.data.addCategory(core.NewCategory(title))
	}
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt when present.
func NewFromFiles(base string) *Store {
	return New(readLines(filepath.Join(base, "seed_categories.txt"))...)
}

func (s *Store) Close() error { return nil }

func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.view().ListTransactions(ctx)
}

func (s *Store) EachTransaction(ctx context.Context, fn func(core.Transaction) error) error {
	s.mu.RLock()
	items := append([]core.Transaction(nil), s.data.transactions...)
	s.mu.RUnlock()
	for _, t := range items {
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) FindCategoryByTitle(ctx context.Context, title string) (core.Category, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.view().FindCategoryByTitle(ctx, title)
}

func (s *Store) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.view().FindCategoriesByTitles(ctx, titles)
}

func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) error {
	return s.InTx(ctx, func(tx ports.Store) error { return tx.InsertTransaction(ctx, t) })
}

func (s *Store) InsertTransactions(ctx context.Context, ts []core.Transaction) error {
	return s.InTx(ctx, func(tx ports.Store) error { return tx.InsertTransactions(ctx, ts) })
}

func (s *Store) InsertCategory(ctx context.Context, c core.Category) error {
	return s.InTx(ctx, func(tx ports.Store) error { return tx.InsertCategory(ctx, c) })
}

func (s *Store) InsertCategories(ctx context.Context, cs []core.Category) error {
	return s.InTx(ctx, func(tx ports.Store) error { return tx.InsertCategories(ctx, cs) })
}

// InTx applies fn to a staged copy; the copy replaces the live state only if
// fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx ports.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	staged := s.data.clone()
	s.mu.RUnlock()

	if err := fn(staged.view()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = staged
	s.mu.Unlock()
	return nil
}

func (st *state) clone() *state {
	c := &state{
		categories:   append([]core.Category(nil), st.categories...),
		byTitle:      make(map[string]int, len(st.byTitle)),
		transactions: append([]core.Transaction(nil), st.transactions...),
	}
	for k, v := range st.byTitle {
		c.byTitle[k] = v
	}
	return c
}

func (st *state) addCategory(c core.Category) {
	st.byTitle[c.Title] = len(st.categories)
	st.categories = append(st.categories, c)
}

func (st *state) view() *view { return &view{st: st} }

// view is the ports.Store over one state value. It does no locking.
type view struct {
	st *state
}

func (v *view) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	return append([]core.Transaction(nil), v.st.transactions...), nil
}

func (v *view) EachTransaction(_ context.Context, fn func(core.Transaction) error) error {
	for _, t := range v.st.transactions {
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

func (v *view) InsertTransaction(_ context.Context, t core.Transaction) error {
	if i, ok := v.st.byTitle[t.Category.Title]; !ok || v.st.categories[i].ID != t.Category.ID {
		return fmt.Errorf("insert transaction %s: unknown category %q", t.ID, t.Category.Title)
	}
	v.st.transactions = append(v.st.transactions, t)
	return nil
}

func (v *view) InsertTransactions(ctx context.Context, ts []core.Transaction) error {
	for _, t := range ts {
		if err := v.InsertTransaction(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (v *view) FindCategoryByTitle(_ context.Context, title string) (core.Category, bool, error) {
	i, ok := v.st.byTitle[title]
	if !ok {
		return core.Category{}, false, nil
	}
	return v.st.categories[i], true, nil
}

func (v *view) FindCategoriesByTitles(_ context.Context, titles []string) ([]core.Category, error) {
	var out []core.Category
	seen := map[string]struct{}{}
	for _, title := range titles {
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}
		if i, ok := v.st.byTitle[title]; ok {
			out = append(out, v.st.categories[i])
		}
	}
	return out, nil
}

func (v *view) InsertCategory(_ context.Context, c core.Category) error {
	if _, ok := v.st.byTitle[c.Title]; ok {
		return fmt.Errorf("insert category: title %q already exists", c.Title)
	}
	v.st.addCategory(c)
	return nil
}

func (v *view) InsertCategories(ctx context.Context, cs []core.Category) error {
	for _, c := range cs {
		if err := v.InsertCategory(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
