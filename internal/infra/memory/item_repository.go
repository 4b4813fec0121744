package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tweet-quiz-service/internal/domain"
)

// ItemLoader fetches quiz content from a backing store (embedded set, file, Postgres).
type ItemLoader interface {
	LoadItems(ctx context.Context) ([]domain.QuizItem, error)
}

const itemsKey = "items"

// ItemRepository caches the item set with a TTL to avoid repeated loads per tab.
type ItemRepository struct {
	loader ItemLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	items     []domain.QuizItem
	expiresAt time.Time
	loaded    bool
}

func NewItemRepository(loader ItemLoader, ttl time.Duration) *ItemRepository {
	return &ItemRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ItemRepository) Items(ctx context.Context) ([]domain.QuizItem, error) {
	if items, ok := r.cached(r.clock()); ok {
		return items, nil
	}

	result, err, _ := r.sf.Do(itemsKey, func() (interface{}, error) {
		now := r.clock()
		if items, ok := r.cached(now); ok {
			return items, nil
		}

		items, err := r.loader.LoadItems(ctx)
		if err != nil {
			return nil, err
		}

		expiresAt := now.Add(r.ttlWithJitter())
		r.mu.Lock()
		r.items = items
		r.loaded = true
		r.expiresAt = expiresAt
		r.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return copyItems(result.([]domain.QuizItem)), nil
}

func (r *ItemRepository) cached(now time.Time) ([]domain.QuizItem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.loaded {
		return nil, false
	}
	if r.ttl > 0 && !r.expiresAt.After(now) {
		return nil, false
	}
	return copyItems(r.items), true
}

func copyItems(items []domain.QuizItem) []domain.QuizItem {
	out := make([]domain.QuizItem, len(items))
	copy(out, items)
	return out
}

// ttlWithJitter adds up to 10% to spread expirations. Only called inside the singleflight group.
func (r *ItemRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
