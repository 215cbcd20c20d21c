package metrics

import (
	"time"

	"raincheck/internal/types"
)

// Recorder is the full surface cmd/api wires into the server, engine,
// aggregator and cache.
type Recorder interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
	RecordPrediction(stadiumID string, confidence types.Confidence, probability float64)
	RecordWeatherFetch(source types.DataSource, ok bool)
	RecordWeatherCache(source types.DataSource, hit bool)
	SetModelsLoaded(n int)
}

var (
	_ Recorder = (*Prometheus)(nil)
	_ Recorder = (*CloudWatch)(nil)
	_ Recorder = Noop{}
)

// Noop discards everything. It is the "none" backend.
type Noop struct{}

func (Noop) RecordRequest(string, string, string, time.Duration) {}
func (Noop) RecordPrediction(string, types.Confidence, float64) {}
func (Noop) RecordWeatherFetch(types.DataSource, bool) {}
func (Noop) RecordWeatherCache(types.DataSource, bool) {}
func (Noop) SetModelsLoaded(int) {}
