package weather

import (
	"context"
	"fmt"

	"raincheck/internal/types"
)

// ResolveTimeline returns hourly precipitation from gameHour-hoursBefore to
// gameHour+hoursAfter, clamped to the day.
func (a *Aggregator) ResolveTimeline(ctx context.Context, stadiumID, gameDate string, gameHour, hoursBefore, hoursAfter int) (*types.WeatherTimeline, error) {
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
	if err := validateWindow(hoursBefore, hoursAfter); err != nil {
		return nil, err
	}

	source := a.SourceFor(date)
	resp, err := a.provider.Fetch(ctx, source, Query{
		Lat: def.Lat, Lon: def.Lon,
		StartDate: gameDate, EndDate: gameDate,
		Hourly: []string{HourlyPrecip},
	})
	if a.metrics != nil {
		a.metrics.RecordWeatherFetch(source, err == nil)
	}
	if err != nil {
		a.logger.WarnContext(ctx, "weather timeline fetch failed",
			"stadium", stadiumID,
			"date", gameDate,
			"source", string(source),
			"error", err,
		)
		return nil, weatherStageError(stadiumID, err)
	}

	points, total := buildTimeline(resp.Hourly, gameHour, hoursBefore, hoursAfter)
	tl := &types.WeatherTimeline{
		Stadium:            def.ID,
		StadiumName:        def.Name,
		GameDate:           gameDate,
		GameHour:           gameHour,
		Timeline:           points,
		TotalPrecipitation: total,
		DataSource:         source,
	}
	a.logger.InfoContext(ctx, "weather timeline resolved",
		"stadium", stadiumID,
		"date", gameDate,
		"game_hour", gameHour,
		"points", len(points),
		"total_precipitation", total,
	)
	return tl, nil
}

func buildTimeline(hourly Series, gameHour, before, after int) ([]types.TimelinePoint, float64) {
	start := max(0, gameHour-before)
	end := min(23, gameHour+after)

	points := make([]types.TimelinePoint, 0, end-start+1)
	var total float64
	for h := start; h <= end; h++ {
		v, _ := hourly.Value(HourlyPrecip, h)
		total += v
		rel := h - gameHour
		points = append(points, types.TimelinePoint{
			Hour:          h,
			TimeLabel:     fmt.Sprintf("%02d:00", h),
			Precipitation: round1(v),
			IsGameTime:    rel == 0,
			RelativeTime:  relativeLabel(rel),
		})
	}
	return points, round1(total)
}

func relativeLabel(rel int) string {
	switch {
	case rel == 0:
		return "game start"
	case rel < 0:
		return fmt.Sprintf("%d hours before kickoff", -rel)
	default:
		return fmt.Sprintf("%d hours after kickoff", rel)
	}
}
