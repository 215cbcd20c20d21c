package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"raincheck/internal/stadiums"
	"raincheck/internal/types"
)

// DateLayout is the wire format of game dates.
const DateLayout = "2006-01-02"

// MaxWindowHours bounds each side of a timeline window.
const MaxWindowHours = 12

const preGameWindowHours = 3

// Fallbacks for missing readings.
const (
	fallbackHumidity  = 60.0
	fallbackTemp      = 20.0
	fallbackWind      = 5.0
	fallbackTempMean  = 20.0
	fallbackWindDaily = 5.0
)

var (
	featureHourly = []string{HourlyTemperature, HourlyHumidity, HourlyPrecip, HourlyWind}
	featureDaily  = []string{DailyPrecipSum, DailyPrecipHours, DailyTempMean, DailyWindMax}
)

// FetchRecorder observes primary upstream fetches.
type FetchRecorder interface {
	RecordWeatherFetch(source types.DataSource, ok bool)
}

// Aggregator turns raw provider series into model features and timelines.
// It is stateless and safe for concurrent use.
type Aggregator struct {
	catalog  *stadiums.Catalog
	provider Provider
	clock    types.Clock
	loc      *time.Location
	metrics  FetchRecorder
	logger   *slog.Logger
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithClock overrides the clock used to decide forecast vs. archive.
func WithClock(c types.Clock) AggregatorOption {
	return func(a *Aggregator) { a.clock = c }
}

// WithFetchRecorder reports primary fetch outcomes.
func WithFetchRecorder(r FetchRecorder) AggregatorOption {
	return func(a *Aggregator) { a.metrics = r }
}

// NewAggregator creates an Aggregator. loc defines the calendar day boundary
// and must match the timezone sent upstream.
func NewAggregator(catalog *stadiums.Catalog, provider Provider, loc *time.Location, logger *slog.Logger, opts ...AggregatorOption) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	a := &Aggregator{
		catalog:  catalog,
		provider: provider,
		clock:    types.RealClock{},
		loc:      loc,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ParseDate parses a YYYY-MM-DD game date in the service timezone.
func (a *Aggregator) ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, a.loc)
	if err != nil {
		return time.Time{}, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidDate,
			"game_date must be a calendar date in YYYY-MM-DD format",
			err,
			map[string]any{"game_date": s},
		)
	}
	return d, nil
}

// SourceFor returns forecast for today or later and historical for any day
// strictly before today.
func (a *Aggregator) SourceFor(date time.Time) types.DataSource {
	now := a.clock.Now().In(a.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.loc)
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, a.loc)
	if day.Before(today) {
		return types.SourceHistorical
	}
	return types.SourceForecast
}

func validateGameHour(h int) error {
	if h < 0 || h > 23 {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidGameHour,
			"game_hour must be between 0 and 23",
			nil,
			map[string]any{"game_hour": h},
		)
	}
	return nil
}

// ResolveFeatures builds the feature vector for a game at gameHour on
// gameDate. The previous day's precipitation is fetched concurrently and
// falls back to 0 on any error; a failure of the main fetch is returned.
func (a *Aggregator) ResolveFeatures(ctx context.Context, stadiumID, gameDate string, gameHour int) (*types.WeatherSnapshot, error) {
	def, err := a.catalog.Lookup(stadiumID)
	if err != nil {
		return nil, err
	}
	date, err := a.ParseDate(gameDate)
	if err != nil {
		return nil, err
	}
	if err := validateGameHour(gameHour); err != nil {
		return nil, err
	}

	source := a.SourceFor(date)
	prevDate := date.AddDate(0, 0, -1)

	var (
		main        *Response
		prevPrecip  float64
		g, groupCtx = errgroup.WithContext(ctx)
	)
	g.Go(func() error {
		resp, err := a.provider.Fetch(groupCtx, source, Query{
			Lat: def.Lat, Lon: def.Lon,
			StartDate: gameDate, EndDate: gameDate,
			Hourly: featureHourly, Daily: featureDaily,
		})
		if a.metrics != nil {
			a.metrics.RecordWeatherFetch(source, err == nil)
		}
		if err != nil {
			return err
		}
		main = resp
		return nil
	})
	g.Go(func() error {
		prevPrecip = a.previousDayPrecip(groupCtx, def, prevDate)
		return nil
	})
	if err := g.Wait(); err != nil {
		a.logger.WarnContext(ctx, "weather fetch failed",
			"stadium", stadiumID,
			"date", gameDate,
			"source", string(source),
			"error", err,
		)
		return nil, weatherStageError(stadiumID, err)
	}

	f := deriveFeatures(main, gameHour)
	f.PrevDayPrecip = round1(prevPrecip)
	f.Month = int(date.Month())
	f.DayOfWeek = mondayFirst(date.Weekday())

	snap := &types.WeatherSnapshot{
		Stadium:       def.ID,
		StadiumName:   def.Name,
		GameDate:      gameDate,
		GameHour:      gameHour,
		DataSource:    source,
		FeatureVector: f,
	}
	a.logger.InfoContext(ctx, "weather features resolved",
		"stadium", stadiumID,
		"date", gameDate,
		"game_hour", gameHour,
		"source", string(source),
		"pre_game_precip", f.PreGamePrecip,
		"daily_precip_sum", f.DailyPrecipSum,
	)
	return snap, nil
}

// weatherStageError tags a primary fetch failure with the stadium and the
// "weather" stage, keeping the provider's code and details.
func weatherStageError(stadiumID string, err error) *types.AppError {
	tags := map[string]any{"stadium": stadiumID, "stage": "weather"}
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.WithDetails(tags)
	}
	return types.NewAppErrorWithDetails(types.ErrCodeUpstreamWeather, "weather provider is unavailable", err, tags)
}

// previousDayPrecip never fails; errors are logged and read as 0.
func (a *Aggregator) previousDayPrecip(ctx context.Context, def stadiums.Definition, day time.Time) float64 {
	dayStr := day.Format(DateLayout)
	source := a.SourceFor(day)

	resp, err := a.provider.Fetch(ctx, source, Query{
		Lat: def.Lat, Lon: def.Lon,
		StartDate: dayStr, EndDate: dayStr,
		Daily: []string{DailyPrecipSum},
	})
	if err != nil {
		a.logger.WarnContext(ctx, "previous-day precipitation unavailable, using 0",
			"stadium", def.ID,
			"date", dayStr,
			"source", string(source),
			"error", err,
		)
		return 0
	}
	v, _ := resp.Daily.Value(DailyPrecipSum, 0)
	return v
}

// deriveFeatures fills the weather fields of a FeatureVector from a
// single-day response. Hourly arrays are indexed by local hour.
func deriveFeatures(r *Response, gameHour int) types.FeatureVector {
	var f types.FeatureVector

	f.DailyPrecipSum = round1(dailyOr(r, DailyPrecipSum, 0))
	f.DailyPrecipHours = round1(dailyOr(r, DailyPrecipHours, 0))
	f.DailyTempMean = round1(dailyOr(r, DailyTempMean, fallbackTempMean))
	f.DailyWindMax = round1(dailyOr(r, DailyWindMax, fallbackWindDaily))

	var pre float64
	for h := max(0, gameHour-preGameWindowHours); h < gameHour; h++ {
		if v, ok := r.Hourly.Value(HourlyPrecip, h); ok {
			pre += v
		}
	}
	f.PreGamePrecip = round1(pre)

	sample := max(0, gameHour-1)
	f.PreGameHumidity = round1(hourlyOr(r, HourlyHumidity, sample, fallbackHumidity))
	f.PreGameTemp = round1(hourlyOr(r, HourlyTemperature, sample, fallbackTemp))
	f.PreGameWind = round1(hourlyOr(r, HourlyWind, sample, fallbackWind))
	return f
}

func dailyOr(r *Response, name string, fallback float64) float64 {
	if v, ok := r.Daily.Value(name, 0); ok {
		return v
	}
	return fallback
}

func hourlyOr(r *Response, name string, hour int, fallback float64) float64 {
	if v, ok := r.Hourly.Value(name, hour); ok {
		return v
	}
	return fallback
}

// mondayFirst converts time.Weekday (Sunday = 0) to Monday = 0.
func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func validateWindow(before, after int) error {
	if before < 0 || before > MaxWindowHours || after < 0 || after > MaxWindowHours {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidWindow,
			fmt.Sprintf("hours_before and hours_after must be between 0 and %d", MaxWindowHours),
			nil,
			map[string]any{"hours_before": before, "hours_after": after},
		)
	}
	return nil
}
