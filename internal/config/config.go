// Package config defines the process configuration for the raincheck API and
// tools. Configuration is read once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Missing required values or invalid formats abort startup.
package config

import (
	"time"

	"raincheck/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers need
// not import types for redacted values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the subset they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server     ServerConfig
	Models     ModelConfig
	Weather    WeatherConfig
	Prediction PredictionConfig
	Metrics    MetricsConfig

	// Injected via ldflags, not Env.
	Build BuildInfo
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8600"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s" validate:"gt=0"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:8080,http://localhost:5173,http://127.0.0.1:8080,http://127.0.0.1:5173"`
}

// ModelConfig locates the stadium catalog and model artifacts.
type ModelConfig struct {
	// Dir is the base for relative artifact locators.
	Dir         string `envconfig:"MODEL_DIR" default:"models"`
	CatalogPath string `envconfig:"STADIUM_CATALOG_PATH"`

	Region      string `envconfig:"MODEL_AWS_REGION" default:"ap-northeast-2"`
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"` // LocalStack; empty in prod
}

// WeatherConfig configures the Open-Meteo client and the optional Redis
// response cache.
type WeatherConfig struct {
	ForecastURL string        `envconfig:"WEATHER_FORECAST_URL" default:"https://api.open-meteo.com/v1/forecast" validate:"url"`
	ArchiveURL  string        `envconfig:"WEATHER_ARCHIVE_URL" default:"https://archive-api.open-meteo.com/v1/archive" validate:"url"`
	Timezone    string        `envconfig:"WEATHER_TIMEZONE" default:"Asia/Seoul" validate:"required"`
	Timeout     time.Duration `envconfig:"WEATHER_TIMEOUT" default:"10s" validate:"gt=0"`
	APIKey      SecretString  `envconfig:"WEATHER_API_KEY"`

	CacheURL           string        `envconfig:"WEATHER_CACHE_URL"`
	CacheForecastTTL   time.Duration `envconfig:"WEATHER_CACHE_FORECAST_TTL" default:"15m"`
	CacheHistoricalTTL time.Duration `envconfig:"WEATHER_CACHE_HISTORICAL_TTL" default:"24h"`
}

// PredictionConfig holds the confidence tier cut-offs.
type PredictionConfig struct {
	ThresholdHigh   float64 `envconfig:"PREDICT_THRESHOLD_HIGH" default:"0.8" validate:"gt=0,lte=1,gtfield=ThresholdMedium"`
	ThresholdMedium float64 `envconfig:"PREDICT_THRESHOLD_MEDIUM" default:"0.5" validate:"gt=0,lt=1"`
}

// MetricsConfig selects the telemetry backend.
type MetricsConfig struct {
	Backend   string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=prometheus cloudwatch none"`
	Namespace string `envconfig:"METRIC_NAMESPACE" default:"RainCheck"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Location loads the service timezone used for date boundaries.
func (w WeatherConfig) Location() (*time.Location, error) {
	return time.LoadLocation(w.Timezone)
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates an environment value could not be parsed into its
	// target type.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrTimezone indicates WEATHER_TIMEZONE is not a known IANA zone.
	ErrTimezone ConfigErrorType = "INVALID_TIMEZONE"
)
