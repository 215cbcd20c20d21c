// Package handlers contains the HTTP handlers of the raincheck API. Each
// handler depends on small locally declared interfaces so tests can inject
// fakes without loading model artifacts or reaching Open-Meteo.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"raincheck/internal/core"
	"raincheck/internal/models"
	"raincheck/internal/stadiums"
)

// StadiumCatalog is the read side of stadiums.Catalog.
type StadiumCatalog interface {
	All() []stadiums.Definition
	Lookup(id string) (stadiums.Definition, error)
}

// ModelDirectory is the read side of models.Registry.
type ModelDirectory interface {
	IsAvailable(id string) bool
	Describe(id string) (models.ModelInfo, error)
	DescribeAll() map[string]models.ModelInfo
}

// StadiumHandler serves the venue list and model metadata.
type StadiumHandler struct {
	catalog StadiumCatalog
	models  ModelDirectory
	logger  *slog.Logger
}

// NewStadiumHandler creates a StadiumHandler.
func NewStadiumHandler(catalog StadiumCatalog, dir ModelDirectory, logger *slog.Logger) *StadiumHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StadiumHandler{catalog: catalog, models: dir, logger: logger}
}

// RegisterRoutes mounts the stadium endpoints under /v1.
func (h *StadiumHandler) RegisterRoutes(r chi.Router) {
	r.Get("/stadiums", h.HandleListStadiums)
	r.Get("/model-info", h.HandleModelInfo)
}

type stadiumResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Team      string  `json:"team"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Capacity  int     `json:"capacity,omitempty"`
	Dome      bool    `json:"dome"`
	Available bool    `json:"available"`
}

type stadiumListResponse struct {
	Stadiums []stadiumResponse `json:"stadiums"`
}

type allModelsResponse struct {
	Models map[string]models.ModelInfo `json:"models"`
}

// HandleListStadiums handles GET /v1/stadiums. Every catalog entry is
// listed; available tells whether its model loaded.
func (h *StadiumHandler) HandleListStadiums(w http.ResponseWriter, r *http.Request) {
	defs := h.catalog.All()
	out := stadiumListResponse{Stadiums: make([]stadiumResponse, 0, len(defs))}
	for _, d := range defs {
		out.Stadiums = append(out.Stadiums, stadiumResponse{
			ID:        d.ID,
			Name:      d.Name,
			Team:      d.Team,
			Lat:       d.Lat,
			Lon:       d.Lon,
			Capacity:  d.Capacity,
			Dome:      d.Dome,
			Available: h.models.IsAvailable(d.ID),
		})
	}
	core.Data(w, r, http.StatusOK, out)
}

// HandleModelInfo handles GET /v1/model-info. With ?stadium= it describes
// one model; without it, every loaded model keyed by stadium id.
func (h *StadiumHandler) HandleModelInfo(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("stadium")
	if id == "" {
		core.Data(w, r, http.StatusOK, allModelsResponse{Models: h.models.DescribeAll()})
		return
	}

	if _, err := h.catalog.Lookup(id); err != nil {
		core.Error(w, r, err)
		return
	}
	info, err := h.models.Describe(id)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, info)
}
