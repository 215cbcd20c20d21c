// Package prediction turns feature vectors into tiered cancellation
// predictions using the per-stadium models held by the registry.
package prediction

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"raincheck/internal/models"
	"raincheck/internal/types"
)

// Verdict labels, one per confidence tier.
const (
	VerdictHigh   = "high cancellation likelihood"
	VerdictMedium = "possible cancellation"
	VerdictLow    = "expected to proceed"
)

// Thresholds are the inclusive lower bounds of the high and medium tiers.
type Thresholds struct {
	High   float64
	Medium float64
}

// DefaultThresholds returns the production tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.8, Medium: 0.5}
}

// Validate checks 0 < Medium < High <= 1.
func (t Thresholds) Validate() error {
	if !(t.Medium > 0 && t.Medium < t.High && t.High <= 1) {
		return fmt.Errorf("invalid thresholds: want 0 < medium (%v) < high (%v) <= 1", t.Medium, t.High)
	}
	return nil
}

// Classify maps a probability to its verdict and tier.
func (t Thresholds) Classify(p float64) (string, types.Confidence) {
	switch {
	case p >= t.High:
		return VerdictHigh, types.ConfidenceHigh
	case p >= t.Medium:
		return VerdictMedium, types.ConfidenceMedium
	default:
		return VerdictLow, types.ConfidenceLow
	}
}

// ModelSource resolves a stadium's loaded model.
type ModelSource interface {
	Get(stadiumID string) (*models.LoadedModel, error)
}

// FeatureResolver produces the weather features for a scheduled game.
type FeatureResolver interface {
	ResolveFeatures(ctx context.Context, stadiumID, gameDate string, gameHour int) (*types.WeatherSnapshot, error)
}

// MetricsRecorder receives one call per successful prediction.
type MetricsRecorder interface {
	RecordPrediction(stadiumID string, confidence types.Confidence, probability float64)
}

// Engine is safe for concurrent use; it holds no mutable state.
type Engine struct {
	models     ModelSource
	weather    FeatureResolver
	thresholds Thresholds
	metrics    MetricsRecorder
	logger     *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithThresholds overrides DefaultThresholds.
func WithThresholds(t Thresholds) EngineOption {
	return func(e *Engine) { e.thresholds = t }
}

// WithFeatureResolver enables PredictGame.
func WithFeatureResolver(r FeatureResolver) EngineOption {
	return func(e *Engine) { e.weather = r }
}

// WithMetrics records every prediction.
func WithMetrics(m MetricsRecorder) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an Engine backed by src.
func NewEngine(src ModelSource, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		models:     src,
		thresholds: DefaultThresholds(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Predict runs the stadium's model on f.
func (e *Engine) Predict(ctx context.Context, stadiumID string, f types.FeatureVector) (*types.PredictionResult, error) {
	m, err := e.models.Get(stadiumID)
	if err != nil {
		return nil, err
	}

	// Columns are selected by name in the model's own order.
	row, err := f.Row(m.FeatureColumns)
	if err != nil {
		return nil, inferenceError(stadiumID, err)
	}

	raw, err := m.Classifier.PredictProba(row)
	if err != nil {
		return nil, inferenceError(stadiumID, err)
	}
	if math.IsNaN(raw) || raw < 0 || raw > 1 {
		return nil, inferenceError(stadiumID, fmt.Errorf("classifier returned probability %v", raw))
	}

	p := round(raw, 3)
	verdict, confidence := e.thresholds.Classify(p)

	result := &types.PredictionResult{
		Stadium:                 stadiumID,
		StadiumName:             m.Name,
		CancellationProbability: p,
		Prediction:              verdict,
		Confidence:              confidence,
		RiskFactors:             RiskFactors(f),
	}

	e.logger.InfoContext(ctx, "prediction completed",
		"stadium", stadiumID,
		"probability", p,
		"confidence", string(confidence),
		"risk_factor_count", len(result.RiskFactors),
	)
	if e.metrics != nil {
		e.metrics.RecordPrediction(stadiumID, confidence, p)
	}
	return result, nil
}

// PredictGame resolves the weather features for a scheduled game and
// predicts on them.
func (e *Engine) PredictGame(ctx context.Context, stadiumID, gameDate string, gameHour int) (*types.GamePrediction, error) {
	if e.weather == nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "weather lookups are not configured", nil)
	}
	// Fail before calling upstream when no model exists.
	if _, err := e.models.Get(stadiumID); err != nil {
		return nil, err
	}

	snap, err := e.weather.ResolveFeatures(ctx, stadiumID, gameDate, gameHour)
	if err != nil {
		return nil, err
	}
	result, err := e.Predict(ctx, stadiumID, snap.FeatureVector)
	if err != nil {
		return nil, err
	}
	return &types.GamePrediction{Weather: snap, Prediction: result}, nil
}

func inferenceError(stadiumID string, err error) *types.AppError {
	return types.NewStadiumError(
		types.ErrCodeInternalInference, stadiumID, "inference",
		"model inference failed", err,
	)
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
