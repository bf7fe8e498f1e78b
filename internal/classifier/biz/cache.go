package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/triplet-classifier/internal/model"
	"github.com/kart-io/triplet-classifier/pkg/utils/json"
)

// ResultCache caches classification results in Redis, keyed by a digest of
// the summary text and the threshold. The cache is transparent: every
// error degrades to a miss so Redis outages never fail a request.
type ResultCache struct {
	client *goredis.Client
	ttl    time.Duration
	prefix string
}

// NewResultCache creates a result cache on an established Redis client.
func NewResultCache(client *goredis.Client, ttl time.Duration, prefix string) *ResultCache {
	if prefix == "" {
		prefix = "classifier:result:"
	}
	return &ResultCache{
		client: client,
		ttl:    ttl,
		prefix: prefix,
	}
}

// key digests summary+threshold so arbitrarily long summaries map to a
// fixed-size key. The threshold participates because the same summary can
// legitimately resolve differently under another threshold.
func (c *ResultCache) key(summary string, threshold float64) string {
	h := sha256.New()
	h.Write([]byte(summary))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatFloat(threshold, 'f', -1, 64)))
	return c.prefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached result, or (nil, nil) on a miss. A corrupted
// entry is deleted and reported as a miss.
func (c *ResultCache) Get(ctx context.Context, summary string, threshold float64) (*model.ClassificationResult, error) {
	key := c.key(summary, threshold)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var result model.ClassificationResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("dropping corrupted cache entry", "key", key, "error", err.Error())
		c.client.Del(ctx, key)
		return nil, nil
	}
	return &result, nil
}

// Set stores a result under the cache TTL.
func (c *ResultCache) Set(ctx context.Context, summary string, threshold float64, result *model.ClassificationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, c.key(summary, threshold), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate removes every cached result. Ingesting new labeled records
// changes what any summary may classify to, so the service calls this
// after each successful ingest.
func (c *ResultCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()

	deleted := 0
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache delete %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan: %w", err)
	}

	if deleted > 0 {
		logger.Infow("invalidated cached results", "count", deleted)
	}
	return nil
}

// Stats reports the number of live cache entries.
func (c *ResultCache) Stats(ctx context.Context) (map[string]any, error) {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()

	count := 0
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("cache scan: %w", err)
	}

	return map[string]any{
		"entries": count,
		"ttl":     c.ttl.String(),
		"prefix":  c.prefix,
	}, nil
}
