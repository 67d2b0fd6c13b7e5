package services

import (
	"context"
	"errors"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCategoryCacheSize is large enough for any realistic category list.
const DefaultCategoryCacheSize = 256

// CategoryCache keeps recently used categories in front of the store for
// transaction and budget validation.
type CategoryCache struct {
	entries *lru.Cache[string, domain.Category]
}

// NewCategoryCache creates a cache holding up to size categories.
func NewCategoryCache(size int) (*CategoryCache, error) {
	entries, err := lru.New[string, domain.Category](size)
	if err != nil {
		return nil, err
	}
	return &CategoryCache{entries: entries}, nil
}

// Resolve returns the category, reading through repo on a miss. A missing
// category is reported as a ReferentialError on field.
func (c *CategoryCache) Resolve(ctx context.Context, repo portsrepo.CategoryRepositoryFacade, field, id string) (*domain.Category, error) {
	if c != nil {
		if cat, ok := c.entries.Get(id); ok {
			return &cat, nil
		}
	}
	cat, err := repo.FindCategoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, &apperrors.ReferentialError{Field: field, Kind: "category", ID: id, Cause: "not found"}
		}
		return nil, err
	}
	c.Add(*cat)
	return cat, nil
}

// Add stores or replaces a category.
func (c *CategoryCache) Add(cat domain.Category) {
	if c != nil {
		c.entries.Add(cat.CategoryID, cat)
	}
}

// Remove evicts one category.
func (c *CategoryCache) Remove(id string) {
	if c != nil {
		c.entries.Remove(id)
	}
}

// Purge drops everything, used after the ledger is rewritten by sync.
func (c *CategoryCache) Purge() {
	if c != nil {
		c.entries.Purge()
	}
}
