package types

// Telemetry metric names.
// All components MUST use these constants.
const (
	// Metric Names
	MetricAPILatency         = "APILatency"
	MetricAPIRequestCount    = "APIRequestCount"
	MetricPrediction         = "Prediction"
	MetricWeatherFetch       = "WeatherFetch"
	MetricWeatherCacheHit    = "WeatherCacheHit"
	MetricExternalAPIFailure = "ExternalAPIFailure"
	MetricModelsLoaded       = "ModelsLoaded"

	// Dimension Keys
	DimEndpoint   = "Endpoint"
	DimMethod     = "Method"
	DimStatus     = "Status"
	DimStadium    = "Stadium"
	DimConfidence = "Confidence"
	DimSource     = "Source"
	DimOutcome    = "Outcome"
)
