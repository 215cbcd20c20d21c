package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raincheck/internal/types"
)

func scrape(t *testing.T, p *Prometheus) string {
	t.Helper()
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestPrometheus_RecordRequest(t *testing.T) {
	p := NewPrometheus("RainCheck")

	p.RecordRequest(http.MethodPost, "/v1/predict", "200", 40*time.Millisecond)
	p.RecordRequest(http.MethodPost, "/v1/predict", "200", 60*time.Millisecond)
	p.RecordRequest(http.MethodGet, "unmatched", "404", time.Millisecond)

	out := scrape(t, p)
	assert.Contains(t, out, `raincheck_api_requests_total{endpoint="/v1/predict",method="POST",status="200"} 2`)
	assert.Contains(t, out, `raincheck_api_requests_total{endpoint="unmatched",method="GET",status="404"} 1`)
	assert.Contains(t, out, `raincheck_api_request_duration_seconds_count{endpoint="/v1/predict",method="POST",status="200"} 2`)
}

func TestPrometheus_DomainMetrics(t *testing.T) {
	p := NewPrometheus("RainCheck")

	p.RecordPrediction("jamsil", types.ConfidenceHigh, 0.91)
	p.RecordWeatherFetch(types.SourceForecast, true)
	p.RecordWeatherFetch(types.SourceHistorical, false)
	p.RecordWeatherCache(types.SourceForecast, true)
	p.RecordWeatherCache(types.SourceForecast, false)
	p.SetModelsLoaded(3)

	out := scrape(t, p)
	assert.Contains(t, out, `raincheck_predictions_total{confidence="high",stadium="jamsil"} 1`)
	assert.Contains(t, out, `raincheck_prediction_probability_count{stadium="jamsil"} 1`)
	assert.Contains(t, out, `raincheck_weather_fetches_total{outcome="success",source="forecast"} 1`)
	assert.Contains(t, out, `raincheck_weather_fetches_total{outcome="failure",source="historical"} 1`)
	assert.Contains(t, out, `raincheck_weather_cache_lookups_total{outcome="hit",source="forecast"} 1`)
	assert.Contains(t, out, `raincheck_weather_cache_lookups_total{outcome="miss",source="forecast"} 1`)
	assert.Contains(t, out, "raincheck_models_loaded 3")
}

func TestPrometheus_RegistriesAreIsolated(t *testing.T) {
	a := NewPrometheus("RainCheck")
	b := NewPrometheus("RainCheck")

	a.SetModelsLoaded(5)

	assert.Contains(t, scrape(t, a), "raincheck_models_loaded 5")
	assert.Contains(t, scrape(t, b), "raincheck_models_loaded 0")
}

func TestPromNamespace(t *testing.T) {
	assert.Equal(t, "raincheck", promNamespace("RainCheck"))
	assert.Equal(t, "rain_check_dev", promNamespace("Rain-Check.dev"))
}
