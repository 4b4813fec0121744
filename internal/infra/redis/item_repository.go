package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"tweet-quiz-service/internal/domain"
)

// ItemLoader fetches quiz content from a backing store (embedded set, file, Postgres).
type ItemLoader interface {
	LoadItems(ctx context.Context) ([]domain.QuizItem, error)
}

// itemsKey holds the cached content set: HSET content:items {index} {item JSON}
const itemsKey = "content:items"

// ItemRepository caches the content set in Redis and falls back to a loader on cache miss.
type ItemRepository struct {
	client *redis.Client
	loader ItemLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewItemRepository(client *redis.Client, loader ItemLoader, ttl time.Duration) *ItemRepository {
	return &ItemRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ItemRepository) Items(ctx context.Context) ([]domain.QuizItem, error) {
	if items, ok := r.fromCache(ctx); ok {
		return items, nil
	}

	result, err, _ := r.sf.Do(itemsKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if items, ok := r.fromCache(ctx); ok {
			return items, nil
		}

		items, err := r.loader.LoadItems(ctx)
		if err != nil {
			return nil, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, itemsKey)
		for i, item := range items {
			raw, err := json.Marshal(item)
			if err != nil {
				return nil, err
			}
			pipe.HSet(ctx, itemsKey, strconv.Itoa(i), raw)
		}
		if ttl > 0 {
			pipe.Expire(ctx, itemsKey, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuizItem), nil
}

// fromCache rebuilds the ordered set from the hash. Any undecodable field is a miss.
func (r *ItemRepository) fromCache(ctx context.Context) ([]domain.QuizItem, bool) {
	fields, err := r.client.HGetAll(ctx, itemsKey).Result()
	if err != nil || len(fields) == 0 {
		return nil, false
	}
	indexes := make([]int, 0, len(fields))
	for k := range fields {
		i, err := strconv.Atoi(k)
		if err != nil {
			return nil, false
		}
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	items := make([]domain.QuizItem, 0, len(indexes))
	for _, i := range indexes {
		var item domain.QuizItem
		if err := json.Unmarshal([]byte(fields[strconv.Itoa(i)]), &item); err != nil {
			return nil, false
		}
		items = append(items, item)
	}
	return items, true
}

func (r *ItemRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
