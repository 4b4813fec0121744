package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tweet-quiz-service/internal/domain"
)

// LocalCache stores one device's cached identity and per-user aggregates in Redis.
// Keys:
//
//	device:{deviceID}:user              last known identity (JSON)
//	device:{deviceID}:data:{userID}     user aggregate (JSON)
//
// The identity key expires after ttl when ttl > 0; aggregates never expire.
type LocalCache struct {
	client   *redis.Client
	deviceID string
	ttl      time.Duration
}

func NewLocalCache(client *redis.Client, deviceID string, ttl time.Duration) *LocalCache {
	return &LocalCache{client: client, deviceID: deviceID, ttl: ttl}
}

func (c *LocalCache) LoadIdentity(ctx context.Context) (*domain.Identity, error) {
	raw, err := c.client.Get(ctx, c.identityKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	var identity domain.Identity
	if err := json.Unmarshal(raw, &identity); err != nil || identity.ID == "" {
		return nil, fmt.Errorf("%w: identity for device %s", domain.ErrMalformedRecord, c.deviceID)
	}
	return &identity, nil
}

func (c *LocalCache) SaveIdentity(ctx context.Context, identity domain.Identity) error {
	raw, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	if err := c.client.Set(ctx, c.identityKey(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

func (c *LocalCache) ClearIdentity(ctx context.Context) error {
	if err := c.client.Del(ctx, c.identityKey()).Err(); err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}
	return nil
}

func (c *LocalCache) LoadAggregate(ctx context.Context, userID string) (domain.UserAggregate, bool, error) {
	raw, err := c.client.Get(ctx, c.aggregateKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.UserAggregate{}, false, nil
	}
	if err != nil {
		return domain.UserAggregate{}, false, fmt.Errorf("load aggregate: %w", err)
	}
	var agg domain.UserAggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		return domain.UserAggregate{}, false, fmt.Errorf("%w: aggregate for %s", domain.ErrMalformedRecord, userID)
	}
	return agg, true, nil
}

func (c *LocalCache) SaveAggregate(ctx context.Context, userID string, agg domain.UserAggregate) error {
	raw, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("encode aggregate: %w", err)
	}
	if err := c.client.Set(ctx, c.aggregateKey(userID), raw, 0).Err(); err != nil {
		return fmt.Errorf("save aggregate: %w", err)
	}
	return nil
}

func (c *LocalCache) identityKey() string {
	return "device:" + c.deviceID + ":user"
}

func (c *LocalCache) aggregateKey(userID string) string {
	return "device:" + c.deviceID + ":data:" + userID
}
