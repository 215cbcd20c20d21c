package weather

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raincheck/internal/types"
)

func TestResolveTimeline_AllNullWindow(t *testing.T) {
	p := &fakeProvider{responses: map[string]*Response{
		"2025-07-15": {Hourly: Series{HourlyPrecip: hours(nil)}},
	}}
	a := newTestAggregator(p)

	tl, err := a.ResolveTimeline(context.Background(), "jamsil", "2025-07-15", 18, 3, 3)
	require.NoError(t, err)

	require.Len(t, tl.Timeline, 7)
	for i, pt := range tl.Timeline {
		assert.Equal(t, 15+i, pt.Hour)
		assert.Equal(t, 0.0, pt.Precipitation)
		assert.Equal(t, pt.Hour == 18, pt.IsGameTime)
	}
	assert.Equal(t, "15:00", tl.Timeline[0].TimeLabel)
	assert.Equal(t, "3 hours before kickoff", tl.Timeline[0].RelativeTime)
	assert.Equal(t, "game start", tl.Timeline[3].RelativeTime)
	assert.Equal(t, "3 hours after kickoff", tl.Timeline[6].RelativeTime)
	assert.Equal(t, 0.0, tl.TotalPrecipitation)
	assert.Equal(t, types.SourceHistorical, tl.DataSource)

	call, ok := p.callFor("2025-07-15")
	require.True(t, ok)
	assert.Equal(t, []string{HourlyPrecip}, call.query.Hourly)
	assert.Empty(t, call.query.Daily)
}

func TestResolveTimeline_ClampsToDay(t *testing.T) {
	a := newTestAggregator(&fakeProvider{})

	tl, err := a.ResolveTimeline(context.Background(), "jamsil", "2025-07-25", 1, 3, 2)
	require.NoError(t, err)
	require.Len(t, tl.Timeline, 4)
	assert.Equal(t, 0, tl.Timeline[0].Hour)
	assert.Equal(t, "00:00", tl.Timeline[0].TimeLabel)
	assert.Equal(t, "1 hours before kickoff", tl.Timeline[0].RelativeTime)
	assert.Equal(t, 3, tl.Timeline[3].Hour)
	assert.Equal(t, types.SourceForecast, tl.DataSource)

	tl, err = a.ResolveTimeline(context.Background(), "jamsil", "2025-07-25", 22, 0, 5)
	require.NoError(t, err)
	require.Len(t, tl.Timeline, 2)
	assert.Equal(t, 22, tl.Timeline[0].Hour)
	assert.True(t, tl.Timeline[0].IsGameTime)
	assert.Equal(t, 23, tl.Timeline[1].Hour)
}

func TestResolveTimeline_TotalsEmittedPoints(t *testing.T) {
	p := &fakeProvider{responses: map[string]*Response{
		"2025-07-15": {Hourly: Series{
			HourlyPrecip: hours(map[int]float64{10: 100, 16: 1.25, 17: 2.5, 18: 0.04, 19: 3}),
		}},
	}}
	a := newTestAggregator(p)

	tl, err := a.ResolveTimeline(context.Background(), "jamsil", "2025-07-15", 18, 2, 1)
	require.NoError(t, err)
	require.Len(t, tl.Timeline, 4)
	assert.Equal(t, 2.5, tl.Timeline[1].Precipitation)
	assert.Equal(t, 0.0, tl.Timeline[2].Precipitation)
	assert.Equal(t, 6.8, tl.TotalPrecipitation, "hour 10 lies outside the window")
}

func TestResolveTimeline_ShortSeries(t *testing.T) {
	p := &fakeProvider{responses: map[string]*Response{
		"2025-07-15": {Hourly: Series{HourlyPrecip: {f(1), f(2)}}},
	}}
	a := newTestAggregator(p)

	tl, err := a.ResolveTimeline(context.Background(), "jamsil", "2025-07-15", 1, 1, 2)
	require.NoError(t, err)
	require.Len(t, tl.Timeline, 4)
	assert.Equal(t, 0.0, tl.Timeline[2].Precipitation)
	assert.Equal(t, 3.0, tl.TotalPrecipitation)
}

func TestResolveTimeline_InvalidWindow(t *testing.T) {
	a := newTestAggregator(&fakeProvider{})

	for _, w := range [][2]int{{-1, 3}, {3, -1}, {13, 0}, {0, 13}} {
		_, err := a.ResolveTimeline(context.Background(), "jamsil", "2025-07-15", 18, w[0], w[1])
		var appErr *types.AppError
		require.True(t, errors.As(err, &appErr), "%v", w)
		assert.Equal(t, types.ErrCodeValidationInvalidWindow, appErr.Code)
	}
}

func TestResolveTimeline_UpstreamError(t *testing.T) {
	p := &fakeProvider{errs: map[string]error{
		"2025-07-15": types.NewAppError(types.ErrCodeUpstreamWeatherMalformed, "bad payload", nil),
	}}
	a := newTestAggregator(p)

	_, err := a.ResolveTimeline(context.Background(), "jamsil", "2025-07-15", 18, 3, 3)
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamWeatherMalformed, appErr.Code)
	assert.Equal(t, "jamsil", appErr.Details["stadium"])
	assert.Equal(t, "weather", appErr.Details["stage"])
}
