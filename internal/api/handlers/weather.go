package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"raincheck/internal/core"
	"raincheck/internal/types"
)

// DefaultWindowHours is the timeline span used on each side of kickoff when
// the request omits it.
const DefaultWindowHours = 3

// WeatherResolver is the contract of weather.Aggregator used by the handler.
type WeatherResolver interface {
	ResolveFeatures(ctx context.Context, stadiumID, gameDate string, gameHour int) (*types.WeatherSnapshot, error)
	ResolveTimeline(ctx context.Context, stadiumID, gameDate string, gameHour, hoursBefore, hoursAfter int) (*types.WeatherTimeline, error)
}

// WeatherHandler serves game-day weather features and timelines.
type WeatherHandler struct {
	weather   WeatherResolver
	validator *core.Validator
	logger    *slog.Logger
}

// NewWeatherHandler creates a WeatherHandler.
func NewWeatherHandler(weather WeatherResolver, val *core.Validator, logger *slog.Logger) *WeatherHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherHandler{weather: weather, validator: val, logger: logger}
}

// RegisterRoutes mounts the weather endpoints under /v1.
func (h *WeatherHandler) RegisterRoutes(r chi.Router) {
	r.Post("/weather", h.HandleWeather)
	r.Post("/weather/timeline", h.HandleTimeline)
}

type timelineRequest struct {
	gameRequest
	HoursBefore *int `json:"hours_before" validate:"omitempty,gte=0,lte=12"`
	HoursAfter  *int `json:"hours_after" validate:"omitempty,gte=0,lte=12"`
}

func windowOrDefault(v *int) int {
	if v == nil {
		return DefaultWindowHours
	}
	return *v
}

// HandleWeather handles POST /v1/weather.
func (h *WeatherHandler) HandleWeather(w http.ResponseWriter, r *http.Request) {
	var req gameRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	stadiumID := stadiumOrDefault(req.Stadium)
	snap, err := h.weather.ResolveFeatures(r.Context(), stadiumID, req.GameDate, req.hour())
	if err != nil {
		logServerError(h.logger, r, "weather lookup failed", stadiumID, err)
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, snap)
}

// HandleTimeline handles POST /v1/weather/timeline.
func (h *WeatherHandler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	var req timelineRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	stadiumID := stadiumOrDefault(req.Stadium)
	tl, err := h.weather.ResolveTimeline(r.Context(), stadiumID, req.GameDate, req.hour(),
		windowOrDefault(req.HoursBefore), windowOrDefault(req.HoursAfter))
	if err != nil {
		logServerError(h.logger, r, "weather timeline failed", stadiumID, err)
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, tl)
}
