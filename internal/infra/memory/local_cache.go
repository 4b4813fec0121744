package memory

import (
	"context"
	"sync"

	"tweet-quiz-service/internal/domain"
)

// LocalCache is an in-memory implementation of app.LocalCache for one device.
type LocalCache struct {
	mu         sync.RWMutex
	identity   *domain.Identity
	aggregates map[string]domain.UserAggregate
}

func NewLocalCache() *LocalCache {
	return &LocalCache{
		aggregates: make(map[string]domain.UserAggregate),
	}
}

func (c *LocalCache) LoadIdentity(_ context.Context) (*domain.Identity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return nil, nil
	}
	id := *c.identity
	return &id, nil
}

func (c *LocalCache) SaveIdentity(_ context.Context, identity domain.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = &identity
	return nil
}

func (c *LocalCache) ClearIdentity(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = nil
	return nil
}

func (c *LocalCache) LoadAggregate(_ context.Context, userID string) (domain.UserAggregate, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	agg, ok := c.aggregates[userID]
	if !ok {
		return domain.UserAggregate{}, false, nil
	}
	return agg.Clone(), true, nil
}

func (c *LocalCache) SaveAggregate(_ context.Context, userID string, agg domain.UserAggregate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aggregates[userID] = agg.Clone()
	return nil
}

// DeviceCaches hands out one LocalCache per device id, so reconnecting tabs see
// the same cache when no shared store is configured.
type DeviceCaches struct {
	mu     sync.Mutex
	caches map[string]*LocalCache
}

func NewDeviceCaches() *DeviceCaches {
	return &DeviceCaches{caches: make(map[string]*LocalCache)}
}

func (d *DeviceCaches) For(deviceID string) *LocalCache {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.caches[deviceID]
	if !ok {
		c = NewLocalCache()
		d.caches[deviceID] = c
	}
	return c
}
