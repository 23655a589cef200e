package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/m25mathews/rainger-poc/internal/logging"
)

// Cache stores vendor answers so that an address is paid for once.
type Cache interface {
	// Lookup returns the cached results for reqs keyed by Request.Key.
	Lookup(ctx context.Context, reqs []Request) (map[string]Result, error)
	Save(ctx context.Context, entries []Entry) error
}

// Entry is a cached answer.
type Entry struct {
	Request Request
	Result  Result
}

const redisKeyPrefix = "geocode:"

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	PoolSize int           `koanf:"pool_size"`
	TTL      time.Duration `koanf:"ttl"`
}

// DialRedis connects to Redis and verifies the connection with a PING.
func DialRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping failed")
	}
	return rdb, nil
}

// RedisCache keeps results as JSON strings under hashed request keys.
type RedisCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache wraps a connected client. A zero ttl keeps entries forever.
func NewRedisCache(rdb redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{
		rdb:    rdb,
		ttl:    ttl,
		logger: logging.WithComponent("geocode.redis"),
	}
}

func redisKey(r Request) string {
	sum := sha256.Sum256([]byte(r.Key()))
	return fmt.Sprintf("%s%x", redisKeyPrefix, sum[:16])
}

func (c *RedisCache) Lookup(ctx context.Context, reqs []Request) (map[string]Result, error) {
	out := make(map[string]Result)
	if len(reqs) == 0 {
		return out, nil
	}
	keys := make([]string, len(reqs))
	for i, r := range reqs {
		keys[i] = redisKey(r)
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis mget")
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var res Result
		if err := json.Unmarshal([]byte(s), &res); err != nil {
			c.logger.Warn("dropping unreadable cache entry", "key", keys[i], "error", err)
			continue
		}
		out[reqs[i].Key()] = res
	}
	return out, nil
}

func (c *RedisCache) Save(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for _, e := range entries {
		data, err := json.Marshal(e.Result)
		if err != nil {
			return errors.Wrap(err, "encode cache entry")
		}
		pipe.Set(ctx, redisKey(e.Request), data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "redis pipeline")
	}
	return nil
}
