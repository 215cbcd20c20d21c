// Package models loads per-stadium rain-cancellation classifiers from their
// artifacts and serves them read-only to the prediction engine.
package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"raincheck/internal/stadiums"
	"raincheck/internal/types"
)

// ModelInfoVersion is reported by Describe for every model.
const ModelInfoVersion = "1.1.0"

// ErrNoModelsLoaded is returned by LoadAll when every stadium failed.
var ErrNoModelsLoaded = errors.New("no stadium models could be loaded")

// LoadedModel is one stadium's classifier with its column order and
// metadata. Never mutated after load.
type LoadedModel struct {
	StadiumID      string
	Name           string
	Team           string
	ModelType      string
	FeatureColumns []string
	Classifier     Classifier
}

// ModelInfo is the public description of a loaded model.
type ModelInfo struct {
	Stadium      string   `json:"stadium"`
	StadiumName  string   `json:"stadium_name"`
	ModelType    string   `json:"model_type"`
	FeatureCount int      `json:"feature_count"`
	Features     []string `json:"features"`
	Description  string   `json:"description"`
	Version      string   `json:"version"`
}

// Info describes m.
func (m *LoadedModel) Info() ModelInfo {
	features := make([]string, len(m.FeatureColumns))
	copy(features, m.FeatureColumns)
	return ModelInfo{
		Stadium:      m.StadiumID,
		StadiumName:  m.Name,
		ModelType:    m.ModelType,
		FeatureCount: len(m.FeatureColumns),
		Features:     features,
		Description:  fmt.Sprintf("KBO %s rain-cancellation model", m.Name),
		Version:      ModelInfoVersion,
	}
}

// Registry maps stadium ids to loaded models. The map is populated by
// LoadAll before the registry is shared and only read afterwards.
type Registry struct {
	catalog *stadiums.Catalog
	store   ArtifactStore
	logger  *slog.Logger

	models map[string]*LoadedModel
	order  []string
}

// NewRegistry creates an empty registry for the catalog's stadiums.
func NewRegistry(catalog *stadiums.Catalog, store ArtifactStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		catalog: catalog,
		store:   store,
		logger:  logger,
		models:  map[string]*LoadedModel{},
	}
}

// NewRegistryFromModels builds a registry directly from in-memory models.
// Stadium order follows the arguments.
func NewRegistryFromModels(models ...*LoadedModel) *Registry {
	r := &Registry{
		logger: slog.Default(),
		models: make(map[string]*LoadedModel, len(models)),
	}
	for _, m := range models {
		if _, dup := r.models[m.StadiumID]; dup {
			continue
		}
		r.models[m.StadiumID] = m
		r.order = append(r.order, m.StadiumID)
	}
	return r
}

// LoadAll loads every catalog stadium's artifact in catalog order. A stadium
// whose artifact is missing or invalid is logged and skipped; if none load,
// ErrNoModelsLoaded is returned and the registry stays empty.
func (r *Registry) LoadAll(ctx context.Context) error {
	loaded := make(map[string]*LoadedModel, r.catalog.Len())
	var order []string

	for _, def := range r.catalog.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		m, err := LoadStadium(ctx, r.store, def)
		if err != nil {
			r.logger.WarnContext(ctx, "stadium model unavailable",
				"stadium", def.ID,
				"locator", def.ModelLocator,
				"error", err,
			)
			continue
		}
		loaded[def.ID] = m
		order = append(order, def.ID)
		r.logger.InfoContext(ctx, "stadium model loaded",
			"stadium", def.ID,
			"model_type", m.ModelType,
			"feature_count", len(m.FeatureColumns),
		)
	}

	if len(loaded) == 0 {
		return ErrNoModelsLoaded
	}
	r.models = loaded
	r.order = order
	return nil
}

// LoadStadium opens, decodes and validates one stadium's artifact.
func LoadStadium(ctx context.Context, store ArtifactStore, def stadiums.Definition) (*LoadedModel, error) {
	body, err := store.Open(ctx, def.ModelLocator)
	if err != nil {
		return nil, artifactError(def, err)
	}
	defer body.Close()

	a, err := ReadArtifact(body, IsCompressed(def.ModelLocator))
	if err != nil {
		return nil, artifactError(def, err)
	}
	if a.Stadium != "" && a.Stadium != def.ID {
		return nil, artifactError(def, fmt.Errorf("artifact is for stadium %q", a.Stadium))
	}
	return NewLoadedModel(def, a)
}

// NewLoadedModel builds a LoadedModel from an already validated artifact.
func NewLoadedModel(def stadiums.Definition, a *Artifact) (*LoadedModel, error) {
	clf, err := a.Classifier.Build(len(a.FeatureCols))
	if err != nil {
		return nil, artifactError(def, err)
	}
	cols := make([]string, len(a.FeatureCols))
	copy(cols, a.FeatureCols)
	return &LoadedModel{
		StadiumID:      def.ID,
		Name:           def.Name,
		Team:           def.Team,
		ModelType:      a.ModelType,
		FeatureColumns: cols,
		Classifier:     clf,
	}, nil
}

func artifactError(def stadiums.Definition, err error) *types.AppError {
	return types.NewStadiumError(
		types.ErrCodeInternalModelArtifact, def.ID, "registry",
		"model artifact could not be loaded", err,
	).WithDetails(map[string]any{"locator": def.ModelLocator})
}

// IsAvailable reports whether a model for id was loaded.
func (r *Registry) IsAvailable(id string) bool {
	_, ok := r.models[id]
	return ok
}

// Get returns the model for id or a not_found_stadium_model error.
func (r *Registry) Get(id string) (*LoadedModel, error) {
	m, ok := r.models[id]
	if !ok {
		return nil, types.NewStadiumError(
			types.ErrCodeNotFoundStadiumModel, id, "registry",
			fmt.Sprintf("no model is available for stadium %q", id), nil,
		)
	}
	return m, nil
}

// Describe returns the ModelInfo for id.
func (r *Registry) Describe(id string) (ModelInfo, error) {
	m, err := r.Get(id)
	if err != nil {
		return ModelInfo{}, err
	}
	return m.Info(), nil
}

// DescribeAll returns ModelInfo for every loaded stadium.
func (r *Registry) DescribeAll() map[string]ModelInfo {
	out := make(map[string]ModelInfo, len(r.models))
	for id, m := range r.models {
		out[id] = m.Info()
	}
	return out
}

// LoadedStadiums returns the loaded stadium ids in load order.
func (r *Registry) LoadedStadiums() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of loaded models.
func (r *Registry) Len() int { return len(r.models) }

// Name identifies the registry in /health.
func (r *Registry) Name() string { return "models" }

// Check fails when no model is loaded.
func (r *Registry) Check(context.Context) error {
	if r.Len() == 0 {
		return ErrNoModelsLoaded
	}
	return nil
}

// HealthDetails reports which stadiums are being served.
func (r *Registry) HealthDetails() map[string]any {
	return map[string]any{
		"loaded":   r.Len(),
		"stadiums": r.LoadedStadiums(),
	}
}
