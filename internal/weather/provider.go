// Package weather resolves model features and display timelines for a
// scheduled game from Open-Meteo forecast and archive data.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"raincheck/internal/external"
	"raincheck/internal/types"
)

// Open-Meteo variable names.
const (
	HourlyTemperature = "temperature_2m"
	HourlyHumidity    = "relative_humidity_2m"
	HourlyPrecip      = "precipitation"
	HourlyWind        = "wind_speed_10m"

	DailyPrecipSum   = "precipitation_sum"
	DailyPrecipHours = "precipitation_hours"
	DailyTempMean    = "temperature_2m_mean"
	DailyWindMax     = "wind_speed_10m_max"
)

// Default upstream endpoints.
const (
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	DefaultArchiveURL  = "https://archive-api.open-meteo.com/v1/archive"
)

const maxResponseSize = 4 << 20

// Query selects variables for one location over [StartDate, EndDate].
// Dates are YYYY-MM-DD in the provider timezone.
type Query struct {
	Lat       float64
	Lon       float64
	StartDate string
	EndDate   string
	Hourly    []string
	Daily     []string
}

// Series maps a variable name to its values; nil entries are missing
// readings.
type Series map[string][]*float64

// Value returns series[name][i] and whether it is present and non-null.
func (s Series) Value(name string, i int) (float64, bool) {
	vals := s[name]
	if i < 0 || i >= len(vals) || vals[i] == nil {
		return 0, false
	}
	return *vals[i], true
}

// Response holds the parsed hourly and daily series of one call.
type Response struct {
	Hourly Series `json:"hourly,omitempty"`
	Daily  Series `json:"daily,omitempty"`
}

// Provider fetches weather series from the forecast or archive product.
type Provider interface {
	Fetch(ctx context.Context, source types.DataSource, q Query) (*Response, error)
}

// OpenMeteoConfig configures OpenMeteoClient.
type OpenMeteoConfig struct {
	ForecastURL string
	ArchiveURL  string
	Timezone    string
	Timeout     time.Duration
	APIKey      types.SecretString
}

// OpenMeteoClient calls the Open-Meteo forecast and archive APIs. Each
// product has its own circuit breaker.
type OpenMeteoClient struct {
	cfg      OpenMeteoConfig
	forecast *external.BaseClient
	archive  *external.BaseClient
	logger   *slog.Logger
}

// NewOpenMeteoClient builds a client. Each fetch is a single attempt.
func NewOpenMeteoClient(cfg OpenMeteoConfig, userAgent string, logger *slog.Logger, opts ...external.BaseClientOption) *OpenMeteoClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = DefaultForecastURL
	}
	if cfg.ArchiveURL == "" {
		cfg.ArchiveURL = DefaultArchiveURL
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Seoul"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	opts = append([]external.BaseClientOption{external.WithLogger(logger)}, opts...)
	return &OpenMeteoClient{
		cfg:      cfg,
		forecast: external.NewBaseClient(httpClient, "open-meteo-forecast", userAgent, opts...),
		archive:  external.NewBaseClient(httpClient, "open-meteo-archive", userAgent, opts...),
		logger:   logger,
	}
}

// Fetch implements Provider.
func (c *OpenMeteoClient) Fetch(ctx context.Context, source types.DataSource, q Query) (*Response, error) {
	base, client := c.cfg.ForecastURL, c.forecast
	if source == types.SourceHistorical {
		base, client = c.cfg.ArchiveURL, c.archive
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+c.encode(q), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "building weather request", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, upstreamError(source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, upstreamError(source, err)
	}

	c.logger.DebugContext(ctx, "weather upstream call",
		"source", string(source),
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"start_date", q.StartDate,
	)

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamWeather,
			"weather provider rejected the request",
			fmt.Errorf("status %d: %s", resp.StatusCode, upstreamReason(body)),
			map[string]any{"source": string(source), "status": resp.StatusCode},
		)
	}

	parsed, err := ParseResponse(body, q)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamWeatherMalformed,
			"weather provider returned an unreadable payload",
			err,
			map[string]any{"source": string(source)},
		)
	}
	return parsed, nil
}

func (c *OpenMeteoClient) encode(q Query) string {
	v := url.Values{}
	v.Set("latitude", strconv.FormatFloat(q.Lat, 'f', -1, 64))
	v.Set("longitude", strconv.FormatFloat(q.Lon, 'f', -1, 64))
	if len(q.Hourly) > 0 {
		v.Set("hourly", strings.Join(q.Hourly, ","))
	}
	if len(q.Daily) > 0 {
		v.Set("daily", strings.Join(q.Daily, ","))
	}
	v.Set("timezone", c.cfg.Timezone)
	v.Set("start_date", q.StartDate)
	v.Set("end_date", q.EndDate)
	if c.cfg.APIKey.IsSet() {
		v.Set("apikey", c.cfg.APIKey.Unmask())
	}
	return v.Encode()
}

// upstreamError keeps rate limiting distinct and folds every other
// transport failure into upstream_weather_unavailable.
func upstreamError(source types.DataSource, err error) *types.AppError {
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeUpstreamRateLimited {
		return appErr.WithDetails(map[string]any{"source": string(source)})
	}
	return types.NewAppErrorWithDetails(
		types.ErrCodeUpstreamWeather,
		"weather provider is unavailable",
		err,
		map[string]any{"source": string(source)},
	)
}

func upstreamReason(body []byte) string {
	var e struct {
		Reason string `json:"reason"`
	}
	if json.Unmarshal(body, &e) == nil && e.Reason != "" {
		return e.Reason
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

// ParseResponse decodes an Open-Meteo payload, keeping only the numeric
// series requested by q. Every requested block must be present and carry at
// least one requested variable with a non-empty array; all-null arrays are
// valid readings.
func ParseResponse(body []byte, q Query) (*Response, error) {
	var raw struct {
		Hourly map[string]json.RawMessage `json:"hourly"`
		Daily  map[string]json.RawMessage `json:"daily"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding weather payload: %w", err)
	}

	hourly, err := parseBlock("hourly", raw.Hourly, q.Hourly)
	if err != nil {
		return nil, err
	}
	daily, err := parseBlock("daily", raw.Daily, q.Daily)
	if err != nil {
		return nil, err
	}
	return &Response{Hourly: hourly, Daily: daily}, nil
}

func parseBlock(name string, block map[string]json.RawMessage, wanted []string) (Series, error) {
	if len(wanted) == 0 {
		return nil, nil
	}
	if len(block) == 0 {
		return nil, fmt.Errorf("payload has no %s block", name)
	}
	out := make(Series, len(wanted))
	for _, v := range wanted {
		msg, ok := block[v]
		if !ok {
			// An absent variable reads as all-null.
			continue
		}
		var vals []*float64
		if err := json.Unmarshal(msg, &vals); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, v, err)
		}
		if len(vals) > 0 {
			out[v] = vals
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s block has no data for %s", name, strings.Join(wanted, ","))
	}
	return out, nil
}
