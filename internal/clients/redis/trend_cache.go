package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aurelia-labs/companion-backend/internal/logger"
)

// TrendCache is a small read-through cache for computed emotion trends.
// The cache is optional: a nil *TrendCache is safe to call and behaves
// as a permanent miss, so the service runs without Redis configured.
type TrendCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewTrendCache(log *logger.Logger) (*TrendCache, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &TrendCache{
		log: log.With("client", "TrendCache"),
		rdb: rdb,
		ttl: 60 * time.Second,
	}, nil
}

func (c *TrendCache) key(userID uint, hours int) string {
	return fmt.Sprintf("emotion_trend:%d:%d", userID, hours)
}

// Get returns the cached JSON payload, or ok=false on miss or any
// Redis error. Cache failures never fail the request.
func (c *TrendCache) Get(ctx context.Context, userID uint, hours int) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, c.key(userID, hours)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("Trend cache read failed", "error", err)
		}
		return nil, false
	}
	return raw, true
}

func (c *TrendCache) Set(ctx context.Context, userID uint, hours int, payload []byte) {
	if c == nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(userID, hours), payload, c.ttl).Err(); err != nil {
		c.log.Warn("Trend cache write failed", "error", err)
	}
}

func (c *TrendCache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
