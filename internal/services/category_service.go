package services

import (
	"context"
	"fmt"
	"sync"

	"spendwise/internal/core"
	"spendwise/internal/storage"
)

// CategoryService serves the category taxonomy, seeding the defaults on
// first use.
type CategoryService struct {
	store storage.CategoryStore
	mu    sync.Mutex
}

func NewCategoryService(store storage.CategoryStore) *CategoryService {
	return &CategoryService{store: store}
}

func (s *CategoryService) List(ctx context.Context) ([]core.Category, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if len(cats) > 0 {
		return cats, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.SeedCategories(ctx, core.DefaultCategories); err != nil {
		return nil, fmt.Errorf("seed categories: %w", err)
	}
	return s.store.ListCategories(ctx)
}
