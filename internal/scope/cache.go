package scope

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix        = "scope:categories:"
	generationPrefix = "scope:generation:"
)

// Cache keeps resolved category scopes in Redis. Entries are keyed by a
// per-actor generation; Invalidate bumps the generation so a reader that
// listed assignments before a replace can only write to a key nobody reads.
// A nil Cache is a no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(actorID string, generation int64) string {
	return keyPrefix + actorID + ":" + strconv.FormatInt(generation, 10)
}

func generationKey(actorID string) string {
	return generationPrefix + actorID
}

// Generation returns the current cache generation of actorID. A missing
// counter is generation 0.
func (c *Cache) Generation(ctx context.Context, actorID string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	gen, err := c.client.Get(ctx, generationKey(actorID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Load returns the ids cached under generation and whether an entry existed.
func (c *Cache) Load(ctx context.Context, actorID string, generation int64) ([]int64, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	payload, err := c.client.Get(ctx, cacheKey(actorID, generation)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ids []int64
	if err := json.Unmarshal(payload, &ids); err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

// Store caches ids for actorID under generation. An empty slice is cached too.
func (c *Cache) Store(ctx context.Context, actorID string, generation int64, ids []int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	if ids == nil {
		ids = []int64{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(actorID, generation), raw, c.ttl).Err()
}

// Invalidate moves actorID to a new generation and drops the entry of the
// previous one.
func (c *Cache) Invalidate(ctx context.Context, actorID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	gen, err := c.client.Incr(ctx, generationKey(actorID)).Result()
	if err != nil {
		return err
	}
	return c.client.Del(ctx, cacheKey(actorID, gen-1)).Err()
}
