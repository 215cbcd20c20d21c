package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"raincheck/internal/core"
	"raincheck/internal/stadiums"
	"raincheck/internal/types"
)

// DefaultGameHour is the kickoff hour assumed when a request omits it.
const DefaultGameHour = 18

// Predictor is the contract of prediction.Engine used by the handler.
type Predictor interface {
	Predict(ctx context.Context, stadiumID string, f types.FeatureVector) (*types.PredictionResult, error)
	PredictGame(ctx context.Context, stadiumID, gameDate string, gameHour int) (*types.GamePrediction, error)
}

// PredictionHandler maps prediction requests onto the engine.
type PredictionHandler struct {
	engine    Predictor
	catalog   StadiumCatalog
	validator *core.Validator
	logger    *slog.Logger
}

// NewPredictionHandler creates a PredictionHandler.
func NewPredictionHandler(engine Predictor, catalog StadiumCatalog, val *core.Validator, logger *slog.Logger) *PredictionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictionHandler{engine: engine, catalog: catalog, validator: val, logger: logger}
}

// RegisterRoutes mounts the prediction endpoints under /v1.
func (h *PredictionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/predict", h.HandlePredict)
	r.Post("/predict/game", h.HandlePredictGame)
}

// predictRequest uses pointers so an omitted feature is reported as
// missing rather than silently read as 0.
type predictRequest struct {
	Stadium          string   `json:"stadium"`
	DailyPrecipSum   *float64 `json:"daily_precip_sum" validate:"required,gte=0"`
	DailyPrecipHours *float64 `json:"daily_precip_hours" validate:"required,gte=0"`
	PreGamePrecip    *float64 `json:"pre_game_precip" validate:"required,gte=0"`
	PreGameHumidity  *float64 `json:"pre_game_humidity" validate:"required,gte=0,lte=100"`
	PreGameTemp      *float64 `json:"pre_game_temp" validate:"required"`
	PreGameWind      *float64 `json:"pre_game_wind" validate:"required,gte=0"`
	PrevDayPrecip    *float64 `json:"prev_day_precip" validate:"required,gte=0"`
	DailyWindMax     *float64 `json:"daily_wind_max" validate:"required,gte=0"`
	DailyTempMean    *float64 `json:"daily_temp_mean" validate:"required"`
	Month            *int     `json:"month" validate:"required,gte=1,lte=12"`
	DayOfWeek        *int     `json:"dayofweek" validate:"required,gte=0,lte=6"`
}

func (req *predictRequest) features() types.FeatureVector {
	return types.FeatureVector{
		DailyPrecipSum:   *req.DailyPrecipSum,
		DailyPrecipHours: *req.DailyPrecipHours,
		PreGamePrecip:    *req.PreGamePrecip,
		PreGameHumidity:  *req.PreGameHumidity,
		PreGameTemp:      *req.PreGameTemp,
		PreGameWind:      *req.PreGameWind,
		PrevDayPrecip:    *req.PrevDayPrecip,
		DailyWindMax:     *req.DailyWindMax,
		DailyTempMean:    *req.DailyTempMean,
		Month:            *req.Month,
		DayOfWeek:        *req.DayOfWeek,
	}
}

// gameRequest is shared by /predict/game and /weather.
type gameRequest struct {
	Stadium  string `json:"stadium"`
	GameDate string `json:"game_date" validate:"required,game_date"`
	GameHour *int   `json:"game_hour" validate:"omitempty,gte=0,lte=23"`
}

func (req *gameRequest) hour() int {
	if req.GameHour == nil {
		return DefaultGameHour
	}
	return *req.GameHour
}

func stadiumOrDefault(id string) string {
	if id == "" {
		return stadiums.DefaultStadium
	}
	return id
}

// HandlePredict handles POST /v1/predict.
func (h *PredictionHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	stadiumID := stadiumOrDefault(req.Stadium)
	if _, err := h.catalog.Lookup(stadiumID); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.engine.Predict(r.Context(), stadiumID, req.features())
	if err != nil {
		logServerError(h.logger, r, "prediction failed", stadiumID, err)
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, result)
}

// HandlePredictGame handles POST /v1/predict/game: weather lookup and
// prediction in one call.
func (h *PredictionHandler) HandlePredictGame(w http.ResponseWriter, r *http.Request) {
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
	if _, err := h.catalog.Lookup(stadiumID); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.engine.PredictGame(r.Context(), stadiumID, req.GameDate, req.hour())
	if err != nil {
		logServerError(h.logger, r, "game prediction failed", stadiumID, err)
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, result)
}

// logServerError logs 5xx outcomes; client errors are already covered by
// the request log.
func logServerError(logger *slog.Logger, r *http.Request, msg, stadiumID string, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus() < 500 {
		return
	}
	logger.ErrorContext(r.Context(), msg,
		"stadium", stadiumID,
		"error", err,
		"request_id", types.GetRequestID(r.Context()),
	)
}
