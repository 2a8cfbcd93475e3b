package predict

import (
	"math"

	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/stats"
)

const (
	// HistoryMonths is the length of the trailing series a forecast is fitted on.
	HistoryMonths = 6
	// DefaultDaysAhead is used when no horizon is requested.
	DefaultDaysAhead = 30
	// MinMonthsAhead keeps very short horizons from collapsing the interval.
	MinMonthsAhead = 0.1
	// LowCashflowThreshold is the predicted cash flow below which risk is medium.
	LowCashflowThreshold = 1000.0
	minConfidence        = 0.1
	maxConfidence        = 0.95
)

// Forecast is the prediction of one monthly series.
type Forecast struct {
	Predicted      float64 `json:"predicted"`
	Low            float64 `json:"low"`
	High           float64 `json:"high"`
	LastValue      float64 `json:"last_value"`
	Trend          float64 `json:"trend"`
	StdDev         float64 `json:"std_dev"`
	SeasonalFactor float64 `json:"seasonal_factor"`
	MonthsAhead    float64 `json:"months_ahead"`
	Confidence     float64 `json:"confidence"`
	Samples        int     `json:"samples"`

	// unrounded basis of the interval, set by ForecastSeries
	exact     bool
	predicted float64
	sigma     float64
}

// basis returns the predicted value and σ the interval is built from.
func (f Forecast) basis() (predicted, sigma float64) {
	if f.exact {
		return f.predicted, f.sigma
	}
	return f.Predicted, f.StdDev
}

// CashflowForecast is income minus expenses with a conservatively widened interval.
type CashflowForecast struct {
	Predicted float64        `json:"predicted"`
	Low       float64        `json:"low"`
	High      float64        `json:"high"`
	Risk      model.Severity `json:"risk"`
}

// MonthsAhead converts a horizon in days to months, at least MinMonthsAhead.
func MonthsAhead(daysAhead int) float64 {
	return math.Max(MinMonthsAhead, float64(daysAhead)/30)
}

// Interval returns predicted ± k·σ·monthsAhead with the low side clamped at zero.
func Interval(predicted, sigma, monthsAhead, k float64) (low, high float64) {
	spread := k * sigma * monthsAhead
	return math.Max(0, predicted-spread), predicted + spread
}

// Confidence is clamp(1 − coefficient of variation) scaled by how much of the
// history window is filled.
func Confidence(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	c := stats.Clamp(1-stats.CoefficientOfVariation(values), minConfidence, maxConfidence)
	return c * math.Min(1, float64(len(values))/HistoryMonths)
}

// ForecastSeries projects the last value of a monthly series daysAhead into
// the future along its normalized linear trend, scaled by the seasonal factor
// of the target month.
func ForecastSeries(values []float64, daysAhead int, seasonal, k float64) Forecast {
	m := MonthsAhead(daysAhead)
	var last float64
	if len(values) > 0 {
		last = values[len(values)-1]
	}
	trend := stats.NormalizedTrend(values)
	sigma := stats.SampleStdDev(values)

	predicted := math.Max(0, last*(1+trend*m)*seasonal)
	low, high := Interval(predicted, sigma, m, k)

	return Forecast{
		Predicted:      stats.Round2(predicted),
		Low:            stats.Round2(low),
		High:           stats.Round2(high),
		LastValue:      last,
		Trend:          trend,
		StdDev:         stats.Round2(sigma),
		SeasonalFactor: seasonal,
		MonthsAhead:    m,
		Confidence:     Confidence(values),
		Samples:        len(values),
		exact:          true,
		predicted:      predicted,
		sigma:          sigma,
	}
}

// CashflowFrom derives the cash flow forecast. The low bound pairs the lowest
// income with the highest expenses and vice versa.
func CashflowFrom(income, expenses Forecast) CashflowForecast {
	predicted := income.Predicted - expenses.Predicted
	return CashflowForecast{
		Predicted: stats.Round2(predicted),
		Low:       stats.Round2(income.Low - expenses.High),
		High:      stats.Round2(income.High - expenses.Low),
		Risk:      CashflowRisk(predicted),
	}
}

// CashflowRisk grades a predicted cash flow.
func CashflowRisk(predicted float64) model.Severity {
	switch {
	case predicted < 0:
		return model.SeverityHigh
	case predicted < LowCashflowThreshold:
		return model.SeverityMedium
	}
	return model.SeverityLow
}
