package services

import (
	"context"
	"fmt"
	"log/slog"

	"finances/internal/cache"
	"finances/internal/core"
	"finances/internal/ports"
)

// CategoryStore resolves category titles to categories, creating the missing
// ones on demand. Committed categories are memoised by title.
type CategoryStore struct {
	repo  ports.Repository
	cache cache.Cache[core.Category]
}

// NewCategoryStore returns a store backed by repo. A nil cache disables
// memoisation.
func NewCategoryStore(repo ports.Repository, c cache.Cache[core.Category]) *CategoryStore {
	return &CategoryStore{repo: repo, cache: c}
}

// GetOrCreate returns the category titled title, creating it if needed.
func (s *CategoryStore) GetOrCreate(ctx context.Context, title string) (core.Category, error) {
	if c, ok := s.cached(title); ok {
		return c, nil
	}

	c, err := s.getOrCreateIn(ctx, s.repo, title)
	if err != nil {
		return core.Category{}, err
	}
	s.remember(c)
	return c, nil
}

// GetOrCreateMany resolves every title in one lookup and creates the missing
// ones in one insert. The result is keyed by title.
func (s *CategoryStore) GetOrCreateMany(ctx context.Context, titles []string) (map[string]core.Category, error) {
	var (
		byTitle map[string]core.Category
		created []core.Category
	)
	err := s.repo.InTx(ctx, func(tx ports.Store) error {
		var err error
		byTitle, created, err = s.getOrCreateManyIn(ctx, tx, titles)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.rememberAll(byTitle)
	if len(created) > 0 {
		slog.InfoContext(ctx, "Categories created", "count", len(created))
	}
	return byTitle, nil
}

func (s *CategoryStore) getOrCreateIn(ctx context.Context, st ports.Store, title string) (core.Category, error) {
	c, ok, err := st.FindCategoryByTitle(ctx, title)
	if err != nil {
		return core.Category{}, fmt.Errorf("find category %q: %w", title, err)
	}
	if ok {
		return c, nil
	}

	c = core.NewCategory(title)
	if err := st.InsertCategory(ctx, c); err != nil {
		// Another writer may have created it in the meantime.
		if existing, ok, findErr := st.FindCategoryByTitle(ctx, title); findErr == nil && ok {
			return existing, nil
		}
		return core.Category{}, fmt.Errorf("create category %q: %w", title, err)
	}
	slog.DebugContext(ctx, "Category created", "category", title, "category_id", c.ID)
	return c, nil
}

// getOrCreateManyIn runs the batched lookup and insert against st, which may
// be a transaction. It reports the categories it created separately so the
// caller can account for them once the surrounding unit of work commits.
func (s *CategoryStore) getOrCreateManyIn(ctx context.Context, st ports.Store, titles []string) (map[string]core.Category, []core.Category, error) {
	wanted := distinct(titles)
	byTitle := make(map[string]core.Category, len(wanted))
	if len(wanted) == 0 {
		return byTitle, nil, nil
	}

	var lookup []string
	for _, title := range wanted {
		if c, ok := s.cached(title); ok {
			byTitle[title] = c
			continue
		}
		lookup = append(lookup, title)
	}

	if len(lookup) > 0 {
		found, err := st.FindCategoriesByTitles(ctx, lookup)
		if err != nil {
			return nil, nil, fmt.Errorf("find categories: %w", err)
		}
		for _, c := range found {
			byTitle[c.Title] = c
		}
	}

	var created []core.Category
	for _, title := range lookup {
		if _, ok := byTitle[title]; ok {
			continue
		}
		c := core.NewCategory(title)
		created = append(created, c)
		byTitle[title] = c
	}
	if len(created) > 0 {
		if err := st.InsertCategories(ctx, created); err != nil {
			return nil, nil, fmt.Errorf("create categories: %w", err)
		}
	}
	return byTitle, created, nil
}

func (s *CategoryStore) cached(title string) (core.Category, bool) {
	if s == nil || s.cache == nil {
		return core.Category{}, false
	}
	return s.cache.Get(title)
}

func (s *CategoryStore) remember(c core.Category) {
	if s.cache != nil {
		s.cache.Set(c.Title, c)
	}
}

func (s *CategoryStore) rememberAll(byTitle map[string]core.Category) {
	for _, c := range byTitle {
		s.remember(c)
	}
}

// distinct returns the titles in first-occurrence order without duplicates.
func distinct(titles []string) []string {
	seen := make(map[string]struct{}, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
