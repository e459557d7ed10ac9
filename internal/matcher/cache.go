package matcher

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alakazam-audio/alakazam/pkg/metrics"
	pkgredis "github.com/alakazam-audio/alakazam/pkg/redis"
)

const cacheKeyPrefix = "matchcache:"

type cacheInfoKey struct{}

// CacheInfo reports, per request, whether the result came from the cache.
type CacheInfo struct {
	Hit bool
}

// WithCacheInfo attaches a CacheInfo to ctx for the CachedMatcher to fill
// in. Callers that do not care simply skip it.
func WithCacheInfo(ctx context.Context) (context.Context, *CacheInfo) {
	info := &CacheInfo{}
	return context.WithValue(ctx, cacheInfoKey{}, info), info
}

func markCacheHit(ctx context.Context) {
	if info, ok := ctx.Value(cacheInfoKey{}).(*CacheInfo); ok {
		info.Hit = true
	}
}

// CachedMatcher wraps a Matcher with a Redis result cache keyed by the
// query's hash sequence. Identical concurrent queries are collapsed through
// singleflight so only one of them executes the engine.
type CachedMatcher struct {
	inner   *Matcher
	client  *pkgredis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
	group   singleflight.Group
}

// NewCachedMatcher wraps inner with a match-result cache.
func NewCachedMatcher(inner *Matcher, client *pkgredis.Client, ttl time.Duration, m *metrics.Metrics) *CachedMatcher {
	return &CachedMatcher{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "match-cache"),
	}
}

// cacheKey derives a deterministic key from the ordered hash sequence. Order
// matters: duplicate positions change the score, so they change the key.
func cacheKey(queryHashes []int64) string {
	h := sha256.New()
	var buf [8]byte
	for _, v := range queryHashes {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	return fmt.Sprintf("%s%x", cacheKeyPrefix, h.Sum(nil))
}

// Match serves from the cache when possible and delegates to the engine on a
// miss. Cache failures degrade to an uncached query rather than an error.
func (c *CachedMatcher) Match(ctx context.Context, queryHashes []int64) ([]Result, error) {
	if len(queryHashes) == 0 {
		return c.inner.Match(ctx, queryHashes)
	}
	start := time.Now()
	key := cacheKey(queryHashes)

	if raw, err := c.client.Get(ctx, key); err == nil {
		var results []Result
		if err := json.Unmarshal([]byte(raw), &results); err == nil {
			markCacheHit(ctx)
			if c.metrics != nil {
				c.metrics.CacheHitsTotal.Inc()
				c.metrics.MatchLatency.WithLabelValues("hit").Observe(time.Since(start).Seconds())
			}
			return results, nil
		}
		c.logger.Warn("discarding corrupt cache entry", "key", key)
		_ = c.client.Del(ctx, key)
	} else if !pkgredis.IsNilError(err) {
		c.logger.Warn("cache read failed, querying uncached", "error", err)
	}

	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		results, err := c.inner.Match(ctx, queryHashes)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(results); err == nil {
			if err := c.client.Set(ctx, key, payload, c.ttl); err != nil {
				c.logger.Warn("cache write failed", "key", key, "error", err)
			}
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.MatchLatency.WithLabelValues("miss").Observe(time.Since(start).Seconds())
	}
	return v.([]Result), nil
}

// Invalidate drops every cached match result. The indexer calls it after a
// new song lands so stale rankings do not outlive the index change.
func (c *CachedMatcher) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, cacheKeyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating match cache: %w", err)
	}
	if deleted > 0 {
		c.logger.Info("match cache invalidated", "entries", deleted)
	}
	return nil
}
