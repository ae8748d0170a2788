// Package memrepo is the in-process key-value store used for local runs and tests.
// Values do not survive a restart.
package memrepo

import (
	"context"
	"fmt"
	"time"

	"RepAuthBot/internal/repositories"

	"github.com/maypok86/otter"
)

type Repository struct {
	cache otter.CacheWithVariableTTL[string, string]
}

func New(capacity int) (*Repository, error) {
	c, err := otter.MustBuilder[string, string](capacity).
		WithVariableTTL().
		Build()
	if err != nil {
		return nil, fmt.Errorf("memrepo.New: build cache with capacity %d: %w", capacity, err)
	}
	return &Repository{cache: c}, nil
}

func (r *Repository) Get(_ context.Context, key string) (string, error) {
	value, ok := r.cache.Get(key)
	if !ok {
		return "", repositories.ErrNotFound
	}
	return value, nil
}

func (r *Repository) Put(_ context.Context, key, value string, ttl time.Duration) error {
	if !r.cache.Set(key, value, ttl) {
		return fmt.Errorf("memrepo.Put: entry %q rejected", key)
	}
	return nil
}

func (r *Repository) Delete(_ context.Context, key string) error {
	r.cache.Delete(key)
	return nil
}

func (r *Repository) Shutdown(_ context.Context) error {
	r.cache.Close()
	return nil
}
