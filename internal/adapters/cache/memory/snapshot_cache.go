// Package memory holds the ranked list snapshot in process memory for
// single-instance deployments without Redis.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/vncsmyrnk/curation/internal/core/domain"
)

type SnapshotCache struct {
	mu        sync.RWMutex
	lists     []domain.List
	valid     bool
	expiresAt time.Time
	ttl       time.Duration
	now       func() time.Time
	observe   func(hit bool)
}

// NewSnapshotCache keeps a snapshot for ttl; zero means until invalidated.
func NewSnapshotCache(ttl time.Duration, observe func(hit bool)) *SnapshotCache {
	return &SnapshotCache{ttl: ttl, now: time.Now, observe: observe}
}

func (c *SnapshotCache) GetSnapshot(_ context.Context) ([]domain.List, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hit := c.valid && (c.ttl == 0 || c.now().Before(c.expiresAt))
	if c.observe != nil {
		c.observe(hit)
	}
	if !hit {
		return nil, false, nil
	}
	return slices.Clone(c.lists), true, nil
}

func (c *SnapshotCache) SetSnapshot(_ context.Context, lists []domain.List) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists = slices.Clone(lists)
	c.valid = true
	c.expiresAt = c.now().Add(c.ttl)
	return nil
}

func (c *SnapshotCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists = nil
	c.valid = false
	return nil
}
