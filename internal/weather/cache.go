package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"raincheck/internal/types"
)

// ErrCacheMiss is returned by a KV store when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

const cacheKeyPrefix = "raincheck:weather:v1"

// KV is the minimal byte store the cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CacheRecorder observes cache lookups.
type CacheRecorder interface {
	RecordWeatherCache(source types.DataSource, hit bool)
}

// CacheTTL sets per-product expiry. Archive data is immutable; forecasts
// are refreshed upstream roughly hourly.
type CacheTTL struct {
	Forecast   time.Duration
	Historical time.Duration
}

// CachedProvider serves repeated queries from a KV store. Store failures
// are logged and bypassed.
type CachedProvider struct {
	next    Provider
	kv      KV
	ttl     CacheTTL
	metrics CacheRecorder
	logger  *slog.Logger
}

// NewCachedProvider wraps next. metrics may be nil.
func NewCachedProvider(next Provider, kv KV, ttl CacheTTL, metrics CacheRecorder, logger *slog.Logger) *CachedProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{next: next, kv: kv, ttl: ttl, metrics: metrics, logger: logger}
}

// Fetch implements Provider.
func (c *CachedProvider) Fetch(ctx context.Context, source types.DataSource, q Query) (*Response, error) {
	key := CacheKey(source, q)

	if b, err := c.kv.Get(ctx, key); err == nil {
		var resp Response
		if err := json.Unmarshal(b, &resp); err == nil {
			c.record(source, true)
			return &resp, nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable weather cache entry", "key", key)
	} else if !errors.Is(err, ErrCacheMiss) {
		c.logger.WarnContext(ctx, "weather cache read failed", "key", key, "error", err)
	}
	c.record(source, false)

	resp, err := c.next.Fetch(ctx, source, q)
	if err != nil {
		return nil, err
	}

	ttl := c.ttl.Forecast
	if source == types.SourceHistorical {
		ttl = c.ttl.Historical
	}
	if ttl > 0 {
		if b, err := json.Marshal(resp); err == nil {
			if err := c.kv.Set(ctx, key, b, ttl); err != nil {
				c.logger.WarnContext(ctx, "weather cache write failed", "key", key, "error", err)
			}
		}
	}
	return resp, nil
}

func (c *CachedProvider) record(source types.DataSource, hit bool) {
	if c.metrics != nil {
		c.metrics.RecordWeatherCache(source, hit)
	}
}

// CacheKey identifies a query. Coordinates are fixed to 4 decimals.
func CacheKey(source types.DataSource, q Query) string {
	return strings.Join([]string{
		cacheKeyPrefix,
		string(source),
		strconv.FormatFloat(q.Lat, 'f', 4, 64),
		strconv.FormatFloat(q.Lon, 'f', 4, 64),
		q.StartDate,
		q.EndDate,
		strings.Join(q.Hourly, ","),
		strings.Join(q.Daily, ","),
	}, ":")
}

// RedisKV adapts a go-redis client to KV.
type RedisKV struct {
	client redis.UniversalClient
}

// NewRedisKV parses a redis:// URL and returns a KV backed by it.
func NewRedisKV(rawURL string) (*RedisKV, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing weather cache url: %w", err)
	}
	return &RedisKV{client: redis.NewClient(opts)}, nil
}

// Get implements KV.
func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

// Set implements KV.
func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Name implements core.HealthProbe.
func (r *RedisKV) Name() string { return "weather_cache" }

// Check implements core.HealthProbe.
func (r *RedisKV) Check(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (r *RedisKV) Close() error {
	return r.client.Close()
}
