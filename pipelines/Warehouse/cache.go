package warehouse

import (
	"context"
	"sync"
	"time"

	"github.com/OrderLens/OrderLens-Go/utils"
)

// Cache owns the in-memory warehouse snapshot. The lifetime is explicit:
// the first successful fetch is reused until process exit, Invalidate, or a
// scheduled Refresh. The warehouse is read-only, so a shared snapshot across
// sessions is safe.
type Cache struct {
	client    *Client
	mu        sync.RWMutex
	snapshot  Snapshot
	fetchedAt time.Time
}

// NewCache creates a snapshot cache over the given client
func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

// Snapshot returns the cached snapshot, fetching it on first use
func (c *Cache) Snapshot(ctx context.Context) (Snapshot, error) {
	c.mu.RLock()
	if c.snapshot != nil {
		snap := c.snapshot
		c.mu.RUnlock()
		return snap, nil
	}
	c.mu.RUnlock()

	return c.fetch(ctx)
}

// Refresh discards the cached snapshot and fetches a fresh one
func (c *Cache) Refresh(ctx context.Context) error {
	_, err := c.fetch(ctx)
	return err
}

// Invalidate drops the cached snapshot; the next Snapshot call refetches
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
	c.fetchedAt = time.Time{}
}

// FetchedAt returns when the current snapshot was fetched (zero if none)
func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

func (c *Cache) fetch(ctx context.Context) (Snapshot, error) {
	snapshot, err := c.client.FetchAll(ctx)
	if err != nil {
		utils.GetLogger().Error("Warehouse fetch failed", err, utils.Component("warehouse"))
		return nil, err
	}

	c.mu.Lock()
	c.snapshot = snapshot
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return snapshot, nil
}
