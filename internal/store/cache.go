// internal/store/cache.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"loan-workers/internal/common/logger"
)

// CachedStore serves Get calls for selected kinds from Redis. Writes to a
// cached kind bump a generation counter, which orphans every key of that kind.
// Cache failures fall through to the underlying store.
type CachedStore struct {
	Store
	redis  *redis.Client
	kinds  map[Kind]bool
	ttl    time.Duration
	logger logger.Logger
}

// NewCachedStore wraps inner so that Gets of kinds are read through rdb.
func NewCachedStore(inner Store, rdb *redis.Client, ttl time.Duration, log logger.Logger, kinds ...Kind) *CachedStore {
	set := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return &CachedStore{
		Store:  inner,
		redis:  rdb,
		kinds:  set,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "store-cache"}),
	}
}

func generationKey(kind Kind) string {
	return fmt.Sprintf("loan:cache:gen:%s", kind)
}

func (c *CachedStore) cacheKey(ctx context.Context, kind Kind, filter Filter) (string, error) {
	gen, err := c.redis.Get(ctx, generationKey(kind)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	f, err := filterJSON(filter)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("loan:cache:%s:%d:%s", kind, gen, f), nil
}

func (c *CachedStore) Get(ctx context.Context, kind Kind, filter Filter) (Document, error) {
	if !c.kinds[kind] {
		return c.Store.Get(ctx, kind, filter)
	}

	key, err := c.cacheKey(ctx, kind, filter)
	if err != nil {
		c.logger.Warn("cache key lookup failed", map[string]interface{}{"kind": string(kind), "error": err.Error()})
		return c.Store.Get(ctx, kind, filter)
	}

	if val, err := c.redis.Get(ctx, key).Result(); err == nil {
		var doc Document
		if err := json.Unmarshal([]byte(val), &doc); err == nil {
			return doc, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("cache read failed", map[string]interface{}{"kind": string(kind), "error": err.Error()})
	}

	doc, err := c.Store.Get(ctx, kind, filter)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(doc); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("cache write failed", map[string]interface{}{"kind": string(kind), "error": err.Error()})
		}
	}
	return doc, nil
}

// GetForUpdate always reads through to the inner store.
func (c *CachedStore) GetForUpdate(ctx context.Context, kind Kind, filter Filter) (Document, error) {
	return c.Store.GetForUpdate(ctx, kind, filter)
}

func (c *CachedStore) Create(ctx context.Context, kind Kind, doc Document) (Document, error) {
	out, err := c.Store.Create(ctx, kind, doc)
	if err == nil {
		c.invalidate(ctx, kind)
	}
	return out, err
}

func (c *CachedStore) Update(ctx context.Context, kind Kind, filter Filter, patch Document) (Document, error) {
	out, err := c.Store.Update(ctx, kind, filter, patch)
	if err == nil {
		c.invalidate(ctx, kind)
	}
	return out, err
}

func (c *CachedStore) Delete(ctx context.Context, kind Kind, filter Filter) (int, error) {
	n, err := c.Store.Delete(ctx, kind, filter)
	if err == nil && n > 0 {
		c.invalidate(ctx, kind)
	}
	return n, err
}

// RunInTx keeps the cache in front of the transactional view.
func (c *CachedStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	return c.Store.RunInTx(ctx, func(tx Store) error {
		return fn(&CachedStore{Store: tx, redis: c.redis, kinds: c.kinds, ttl: c.ttl, logger: c.logger})
	})
}

func (c *CachedStore) invalidate(ctx context.Context, kind Kind) {
	if !c.kinds[kind] {
		return
	}
	if err := c.redis.Incr(ctx, generationKey(kind)).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", map[string]interface{}{"kind": string(kind), "error": err.Error()})
	}
}
