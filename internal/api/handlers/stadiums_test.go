package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raincheck/internal/models"
	"raincheck/internal/stadiums"
	"raincheck/internal/types"
)

func newTestStadiumRouter() http.Handler {
	reg := models.NewRegistryFromModels(
		&models.LoadedModel{StadiumID: "jamsil", Name: "잠실야구장", Team: "LG/두산", ModelType: "tree_ensemble", FeatureColumns: types.FeatureColumns},
		&models.LoadedModel{StadiumID: "daegu", Name: "대구삼성라이온즈파크", Team: "삼성", ModelType: "logistic", FeatureColumns: types.FeatureColumns[:9]},
	)
	h := NewStadiumHandler(stadiums.Default(), reg, quietLogger())
	return makeRouter(h.RegisterRoutes)
}

func TestHandleListStadiums(t *testing.T) {
	rec := do(t, newTestStadiumRouter(), http.MethodGet, "/v1/stadiums", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body stadiumListResponse
	decodeData(t, rec, &body)
	require.Len(t, body.Stadiums, 4)

	available := map[string]bool{}
	for _, s := range body.Stadiums {
		available[s.ID] = s.Available
	}
	assert.Equal(t, map[string]bool{"jamsil": true, "daegu": true, "suwon": false, "incheon": false}, available)

	first := body.Stadiums[0]
	assert.Equal(t, "jamsil", first.ID)
	assert.Equal(t, "잠실야구장", first.Name)
	assert.Equal(t, 25553, first.Capacity)
	assert.InDelta(t, 37.5122, first.Lat, 1e-9)
}

func TestHandleModelInfo_All(t *testing.T) {
	rec := do(t, newTestStadiumRouter(), http.MethodGet, "/v1/model-info", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body allModelsResponse
	decodeData(t, rec, &body)
	require.Len(t, body.Models, 2)
	assert.Equal(t, 11, body.Models["jamsil"].FeatureCount)
	assert.Equal(t, 9, body.Models["daegu"].FeatureCount)
	assert.Equal(t, models.ModelInfoVersion, body.Models["daegu"].Version)
}

func TestHandleModelInfo_Single(t *testing.T) {
	rec := do(t, newTestStadiumRouter(), http.MethodGet, "/v1/model-info?stadium=jamsil", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var info models.ModelInfo
	decodeData(t, rec, &info)
	assert.Equal(t, "jamsil", info.Stadium)
	assert.Equal(t, "tree_ensemble", info.ModelType)
	assert.Equal(t, types.FeatureColumns, info.Features)
}

func TestHandleModelInfo_Errors(t *testing.T) {
	router := newTestStadiumRouter()

	tests := []struct {
		name    string
		stadium string
		code    string
	}{
		{"not in catalog", "busan", "not_found_stadium"},
		{"configured without model", "suwon", "not_found_stadium_model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, "/v1/model-info?stadium="+tt.stadium, "")
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}
