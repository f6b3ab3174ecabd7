package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/zhanbolat/datecore/internal/config"
	"github.com/zhanbolat/datecore/internal/db"
)

// ScoreTTL is how long a cached rating score stays hot. Reads refresh it,
// writes invalidate it.
const ScoreTTL = time.Hour

// TopRatingsTTL bounds leaderboard staleness. Top lists are never
// invalidated on score writes, they just expire.
const TopRatingsTTL = 5 * time.Minute

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// KeyForScore generates the Redis key for a profile's rating score.
func (c *RedisCache) KeyForScore(profileID uint64) string {
	return fmt.Sprintf("rating:score:%d", profileID)
}

// GetScore reads a cached rating score. A cache miss is (0, false, nil),
// not an error. Access refreshes the TTL.
func (c *RedisCache) GetScore(ctx context.Context, profileID uint64) (float64, bool, error) {
	key := c.KeyForScore(profileID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}

	score, err := strconv.ParseFloat(val, 64)
	if err != nil {
		// poisoned entry, drop it and treat as a miss
		_ = c.Client.Del(ctx, key).Err()
		return 0, false, nil
	}

	_ = c.Client.Expire(ctx, key, ScoreTTL).Err()
	return score, true, nil
}

// SetScore caches a rating score with the standard TTL.
func (c *RedisCache) SetScore(ctx context.Context, profileID uint64, score float64) error {
	return c.Client.Set(ctx, c.KeyForScore(profileID), strconv.FormatFloat(score, 'f', 2, 64), ScoreTTL).Err()
}

// InvalidateScore drops the cached score after a write.
func (c *RedisCache) InvalidateScore(ctx context.Context, profileID uint64) error {
	return c.Client.Del(ctx, c.KeyForScore(profileID)).Err()
}

// KeyForTopRatings generates the Redis key for a leaderboard of the given size.
func (c *RedisCache) KeyForTopRatings(limit int) string {
	return fmt.Sprintf("rating:top:%d", limit)
}

// GetTopRatings reads a cached leaderboard. A miss is (nil, false, nil).
func (c *RedisCache) GetTopRatings(ctx context.Context, limit int) ([]db.ProfileRating, bool, error) {
	key := c.KeyForTopRatings(limit)
	val, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}

	var rows []db.ProfileRating
	if err := msgpack.Unmarshal(val, &rows); err != nil {
		// poisoned entry, drop it and treat as a miss
		_ = c.Client.Del(ctx, key).Err()
		return nil, false, nil
	}
	return rows, true, nil
}

// SetTopRatings caches a leaderboard with the standard TTL.
func (c *RedisCache) SetTopRatings(ctx context.Context, limit int, rows []db.ProfileRating) error {
	body, err := msgpack.Marshal(rows)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, c.KeyForTopRatings(limit), body, TopRatingsTTL).Err()
}
