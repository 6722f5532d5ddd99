package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/versiond/util"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "versiond:fetch:"

// FetchCache keeps raw remote entity bodies in Redis. A nil client turns
// every lookup into a miss.
type FetchCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *log.Logger
}

// New connects to addr. An empty addr returns a cache that never hits.
func New(ctx context.Context, addr string, ttl time.Duration) (*FetchCache, error) {
	c := &FetchCache{ttl: ttl, log: util.NewLogger("FetchCache")}
	if addr == "" {
		return c, nil
	}
	if c.ttl <= 0 {
		c.ttl = 10 * time.Minute
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	c.client = client
	c.log.Info("Connected to redis", "addr", addr, "ttl", c.ttl)
	return c, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *FetchCache {
	return &FetchCache{client: client, ttl: ttl, log: util.NewLogger("FetchCache")}
}

func key(uri string) string {
	sum := sha256.Sum256([]byte(uri))
	return keyPrefix + hex.EncodeToString(sum[:])
}

func (c *FetchCache) Get(ctx context.Context, uri string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	body, err := c.client.Get(ctx, key(uri)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.Warn("Cache lookup failed", "uri", uri, "err", err)
		return nil, false
	}
	return body, true
}

func (c *FetchCache) Set(ctx context.Context, uri string, body []byte) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, key(uri), body, c.ttl).Err(); err != nil {
		c.log.Warn("Cache store failed", "uri", uri, "err", err)
	}
}

// Forget drops a cached body, used when a remote entity is deleted.
func (c *FetchCache) Forget(ctx context.Context, uri string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, key(uri)).Err(); err != nil {
		c.log.Warn("Cache delete failed", "uri", uri, "err", err)
	}
}

func (c *FetchCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
