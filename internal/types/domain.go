package types

// Feature column names. These are both the JSON field names of the public
// API and the column names stored in model artifacts.
const (
	ColDailyPrecipSum   = "daily_precip_sum"
	ColDailyPrecipHours = "daily_precip_hours"
	ColPreGamePrecip    = "pre_game_precip"
	ColPreGameHumidity  = "pre_game_humidity"
	ColPreGameTemp      = "pre_game_temp"
	ColPreGameWind      = "pre_game_wind"
	ColPrevDayPrecip    = "prev_day_precip"
	ColDailyWindMax     = "daily_wind_max"
	ColDailyTempMean    = "daily_temp_mean"
	ColMonth            = "month"
	ColDayOfWeek        = "dayofweek"
)

// FeatureColumns is the canonical column order used at training time.
// Models may store a different order; callers must reorder by name.
var FeatureColumns = []string{
	ColDailyPrecipSum,
	ColDailyPrecipHours,
	ColPreGamePrecip,
	ColPreGameHumidity,
	ColPreGameTemp,
	ColPreGameWind,
	ColPrevDayPrecip,
	ColDailyWindMax,
	ColDailyTempMean,
	ColMonth,
	ColDayOfWeek,
}

// IsFeatureColumn reports whether name is a known FeatureVector column.
func IsFeatureColumn(name string) bool {
	for _, c := range FeatureColumns {
		if c == name {
			return true
		}
	}
	return false
}

// FeatureVector is the fixed set of model inputs for one game.
// DayOfWeek uses Monday = 0.
type FeatureVector struct {
	DailyPrecipSum   float64 `json:"daily_precip_sum" validate:"gte=0"`
	DailyPrecipHours float64 `json:"daily_precip_hours" validate:"gte=0"`
	PreGamePrecip    float64 `json:"pre_game_precip" validate:"gte=0"`
	PreGameHumidity  float64 `json:"pre_game_humidity" validate:"gte=0,lte=100"`
	PreGameTemp      float64 `json:"pre_game_temp"`
	PreGameWind      float64 `json:"pre_game_wind" validate:"gte=0"`
	PrevDayPrecip    float64 `json:"prev_day_precip" validate:"gte=0"`
	DailyWindMax     float64 `json:"daily_wind_max" validate:"gte=0"`
	DailyTempMean    float64 `json:"daily_temp_mean"`
	Month            int     `json:"month" validate:"gte=1,lte=12"`
	DayOfWeek        int     `json:"dayofweek" validate:"gte=0,lte=6"`
}

// Column returns the value of the named column.
func (f FeatureVector) Column(name string) (float64, bool) {
	switch name {
	case ColDailyPrecipSum:
		return f.DailyPrecipSum, true
	case ColDailyPrecipHours:
		return f.DailyPrecipHours, true
	case ColPreGamePrecip:
		return f.PreGamePrecip, true
	case ColPreGameHumidity:
		return f.PreGameHumidity, true
	case ColPreGameTemp:
		return f.PreGameTemp, true
	case ColPreGameWind:
		return f.PreGameWind, true
	case ColPrevDayPrecip:
		return f.PrevDayPrecip, true
	case ColDailyWindMax:
		return f.DailyWindMax, true
	case ColDailyTempMean:
		return f.DailyTempMean, true
	case ColMonth:
		return float64(f.Month), true
	case ColDayOfWeek:
		return float64(f.DayOfWeek), true
	default:
		return 0, false
	}
}

// Row builds an inference row in the given column order.
func (f FeatureVector) Row(columns []string) ([]float64, error) {
	row := make([]float64, len(columns))
	for i, c := range columns {
		v, ok := f.Column(c)
		if !ok {
			return nil, NewAppErrorWithDetails(
				ErrCodeValidationInvalidFeatures,
				"unknown feature column",
				nil,
				map[string]any{"column": c},
			)
		}
		row[i] = v
	}
	return row, nil
}

// Confidence is the coarse tier derived from the cancellation probability.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// PredictionResult is the outcome of one inference.
type PredictionResult struct {
	Stadium                 string     `json:"stadium"`
	StadiumName             string     `json:"stadium_name"`
	CancellationProbability float64    `json:"cancellation_probability"`
	Prediction              string     `json:"prediction"`
	Confidence              Confidence `json:"confidence"`
	RiskFactors             []string   `json:"risk_factors"`
}

// DataSource records which upstream weather product produced a snapshot.
type DataSource string

const (
	SourceForecast   DataSource = "forecast"
	SourceHistorical DataSource = "historical"
)

// WeatherSnapshot is the feature vector resolved for a (stadium, date, hour)
// together with its provenance.
type WeatherSnapshot struct {
	Stadium     string     `json:"stadium"`
	StadiumName string     `json:"stadium_name"`
	GameDate    string     `json:"game_date"`
	GameHour    int        `json:"game_hour"`
	DataSource  DataSource `json:"data_source"`
	FeatureVector
}

// TimelinePoint is one hour of the display timeline.
type TimelinePoint struct {
	Hour          int     `json:"hour"`
	TimeLabel     string  `json:"time_label"`
	Precipitation float64 `json:"precipitation"`
	IsGameTime    bool    `json:"is_game_time"`
	RelativeTime  string  `json:"relative_time"`
}

// WeatherTimeline is the hourly precipitation around kickoff.
type WeatherTimeline struct {
	Stadium            string          `json:"stadium"`
	StadiumName        string          `json:"stadium_name"`
	GameDate           string          `json:"game_date"`
	GameHour           int             `json:"game_hour"`
	Timeline           []TimelinePoint `json:"timeline"`
	TotalPrecipitation float64         `json:"total_precipitation"`
	DataSource         DataSource      `json:"data_source"`
}

// GamePrediction pairs a prediction with the weather it was computed from.
type GamePrediction struct {
	Weather    *WeatherSnapshot  `json:"weather"`
	Prediction *PredictionResult `json:"prediction"`
}
