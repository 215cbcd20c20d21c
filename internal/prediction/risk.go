package prediction

import (
	"fmt"

	"raincheck/internal/types"
)

// Risk thresholds used to explain a prediction. They do not feed the model.
const (
	riskPreGamePrecipMM   = 10.0
	riskDailyPrecipSumMM  = 20.0
	riskHumidityPercent   = 85.0
	riskPrevDayPrecipMM   = 15.0
	riskDailyWindMaxSpeed = 15.0
)

// rainySeasonMonths are the months of the Korean monsoon (jangma).
var rainySeasonMonths = map[int]bool{7: true, 8: true}

// RiskFactors lists the human-readable warnings raised by f, always in the
// same order.
func RiskFactors(f types.FeatureVector) []string {
	factors := []string{}
	if f.PreGamePrecip >= riskPreGamePrecipMM {
		factors = append(factors, fmt.Sprintf("pre-game precipitation high (%.1fmm)", f.PreGamePrecip))
	}
	if f.DailyPrecipSum >= riskDailyPrecipSumMM {
		factors = append(factors, fmt.Sprintf("daily precipitation high (%.1fmm)", f.DailyPrecipSum))
	}
	if f.PreGameHumidity >= riskHumidityPercent {
		factors = append(factors, fmt.Sprintf("humidity very high (%.1f%%)", f.PreGameHumidity))
	}
	if f.PrevDayPrecip >= riskPrevDayPrecipMM {
		factors = append(factors, fmt.Sprintf("previous-day precipitation high (%.1fmm)", f.PrevDayPrecip))
	}
	if f.DailyWindMax >= riskDailyWindMaxSpeed {
		factors = append(factors, fmt.Sprintf("strong wind warning (%.1fm/s)", f.DailyWindMax))
	}
	if rainySeasonMonths[f.Month] {
		factors = append(factors, fmt.Sprintf("rainy-season game (month %d)", f.Month))
	}
	return factors
}
