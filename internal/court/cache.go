package court

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const cacheKeyPrefix = "court:"

// cachedRepository serves court lookups from Redis and falls back to the wrapped repository.
// Cache errors never fail a lookup.
type cachedRepository struct {
	next   Repository
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedRepository wraps next with a Redis read-through cache.
// A nil client or non-positive ttl returns next unchanged.
func NewCachedRepository(next Repository, rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) Repository {
	if rdb == nil || ttl <= 0 {
		return next
	}
	return &cachedRepository{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (r *cachedRepository) GetByID(ctx context.Context, id string) (*Court, error) {
	var c Court
	if r.readCache(ctx, cacheKeyPrefix+id, &c) {
		return &c, nil
	}

	found, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.writeCache(ctx, cacheKeyPrefix+id, found)
	return found, nil
}

func (r *cachedRepository) readCache(ctx context.Context, key string, out any) bool {
	val, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("court cache read failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (r *cachedRepository) writeCache(ctx context.Context, key string, val any) {
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("court cache write failed")
	}
}
