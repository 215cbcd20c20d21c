package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raincheck/internal/types"
)

type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	b, ok := m.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return b, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

type cacheRecorder struct {
	hits, misses int
}

func (r *cacheRecorder) RecordWeatherCache(_ types.DataSource, hit bool) {
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

var testTTL = CacheTTL{Forecast: 15 * time.Minute, Historical: 24 * time.Hour}

func cachedQuery() Query {
	return Query{
		Lat: 35.8411, Lon: 128.6817,
		StartDate: "2025-07-15", EndDate: "2025-07-15",
		Hourly: []string{HourlyPrecip},
	}
}

func TestCachedProvider_MissThenHit(t *testing.T) {
	p := &fakeProvider{responses: map[string]*Response{
		"2025-07-15": {Hourly: Series{HourlyPrecip: {f(1.5), nil, f(0)}}},
	}}
	kv := newMemKV()
	rec := &cacheRecorder{}
	c := NewCachedProvider(p, kv, testTTL, rec, quietLogger())

	first, err := c.Fetch(context.Background(), types.SourceHistorical, cachedQuery())
	require.NoError(t, err)
	second, err := c.Fetch(context.Background(), types.SourceHistorical, cachedQuery())
	require.NoError(t, err)

	assert.Len(t, p.calls, 1)
	assert.Equal(t, 1, rec.misses)
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, first, second)

	_, ok := second.Hourly.Value(HourlyPrecip, 1)
	assert.False(t, ok, "null survives the round trip")
	v, ok := second.Hourly.Value(HourlyPrecip, 2)
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestCachedProvider_TTLBySource(t *testing.T) {
	kv := newMemKV()
	c := NewCachedProvider(&fakeProvider{}, kv, testTTL, nil, quietLogger())

	_, err := c.Fetch(context.Background(), types.SourceHistorical, cachedQuery())
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), types.SourceForecast, cachedQuery())
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, kv.ttls[CacheKey(types.SourceHistorical, cachedQuery())])
	assert.Equal(t, 15*time.Minute, kv.ttls[CacheKey(types.SourceForecast, cachedQuery())])
}

func TestCachedProvider_ZeroTTLSkipsWrite(t *testing.T) {
	kv := newMemKV()
	c := NewCachedProvider(&fakeProvider{}, kv, CacheTTL{Historical: time.Hour}, nil, quietLogger())

	_, err := c.Fetch(context.Background(), types.SourceForecast, cachedQuery())
	require.NoError(t, err)
	assert.Empty(t, kv.data)
}

func TestCachedProvider_StoreFailuresBypassed(t *testing.T) {
	p := &fakeProvider{}
	kv := newMemKV()
	kv.getErr = errors.New("connection refused")
	kv.setErr = errors.New("connection refused")
	c := NewCachedProvider(p, kv, testTTL, nil, quietLogger())

	resp, err := c.Fetch(context.Background(), types.SourceForecast, cachedQuery())
	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.Len(t, p.calls, 1)
}

func TestCachedProvider_CorruptEntryRefetched(t *testing.T) {
	p := &fakeProvider{}
	kv := newMemKV()
	kv.data[CacheKey(types.SourceForecast, cachedQuery())] = []byte("{not json")
	c := NewCachedProvider(p, kv, testTTL, nil, quietLogger())

	_, err := c.Fetch(context.Background(), types.SourceForecast, cachedQuery())
	require.NoError(t, err)
	assert.Len(t, p.calls, 1)
}

func TestCachedProvider_UpstreamErrorNotCached(t *testing.T) {
	p := &fakeProvider{errs: map[string]error{
		"2025-07-15": types.NewAppError(types.ErrCodeUpstreamWeather, "down", nil),
	}}
	kv := newMemKV()
	c := NewCachedProvider(p, kv, testTTL, nil, quietLogger())

	_, err := c.Fetch(context.Background(), types.SourceForecast, cachedQuery())
	require.Error(t, err)
	assert.Empty(t, kv.data)
}

func TestCacheKey(t *testing.T) {
	q := cachedQuery()
	q.Daily = []string{DailyPrecipSum, DailyTempMean}

	assert.Equal(t,
		"raincheck:weather:v1:forecast:35.8411:128.6817:2025-07-15:2025-07-15:precipitation:precipitation_sum,temperature_2m_mean",
		CacheKey(types.SourceForecast, q))
	assert.NotEqual(t, CacheKey(types.SourceForecast, q), CacheKey(types.SourceHistorical, q))
}

func TestNewRedisKV_InvalidURL(t *testing.T) {
	_, err := NewRedisKV("http://not-redis")
	assert.Error(t, err)
}
