package pattern

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/castlemilk/finintel/backend/internal/aggregate"
	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/money"
	"github.com/castlemilk/finintel/backend/internal/stats"
)

const (
	// SeasonalMonths is the length of the series seasonality is computed on.
	SeasonalMonths = 12
	// SeasonalDeviation is the relative deviation from the global average that marks a seasonal month.
	SeasonalDeviation = 0.15
	// SeasonalMinMonths is the number of months with data needed for seasonality.
	SeasonalMinMonths = 6
)

// Factors are per-calendar-month multipliers, index 0 is January. A factor of
// 1 means an average month.
type Factors struct {
	Income   [12]float64 `json:"income"`
	Expenses [12]float64 `json:"expenses"`
}

// NeutralFactors returns factors that leave a forecast unchanged.
func NeutralFactors() Factors {
	var f Factors
	for i := range f.Income {
		f.Income[i] = 1
		f.Expenses[i] = 1
	}
	return f
}

// For returns the income and expense factors of t's calendar month.
func (f Factors) For(t time.Time) (income, expenses float64) {
	i := int(t.Month()) - 1
	return f.Income[i], f.Expenses[i]
}

// SeasonalFactors computes the data-driven factors from the trailing
// SeasonalMonths complete months ending at end.
func (a *Analyzer) SeasonalFactors(ctx context.Context, end time.Time) (Factors, error) {
	series, err := a.agg.MonthlySeries(ctx, SeasonalMonths, lastCompleteMonth(end), aggregate.PeriodFilter{})
	if err != nil {
		return NeutralFactors(), fmt.Errorf("seasonal factors: %w", err)
	}
	return FactorsFromSeries(series), nil
}

// FactorsFromSeries groups a monthly series by calendar month and divides each
// month's average by the global average. Series with fewer than
// SeasonalMinMonths non-zero months, and months without data, get factor 1.
func FactorsFromSeries(series []aggregate.MonthlyTrend) Factors {
	f := NeutralFactors()
	f.Income = monthFactors(series, aggregate.Incomes(series))
	f.Expenses = monthFactors(series, aggregate.Expenses(series))
	return f
}

func monthFactors(series []aggregate.MonthlyTrend, values []float64) [12]float64 {
	var out [12]float64
	for i := range out {
		out[i] = 1
	}

	nonZero := 0
	for _, v := range values {
		if v != 0 {
			nonZero++
		}
	}
	global := stats.Mean(values)
	if nonZero < SeasonalMinMonths || global == 0 {
		return out
	}

	var sums [12]float64
	var counts [12]int
	for i, m := range series {
		idx := int(m.Start.Month()) - 1
		sums[idx] += values[i]
		counts[idx]++
	}
	for i := range out {
		if counts[i] == 0 || sums[i] == 0 {
			continue
		}
		out[i] = (sums[i] / float64(counts[i])) / global
	}
	return out
}

// SeasonalPatterns flags calendar months whose income or expenses deviate more
// than SeasonalDeviation from the average month.
func (a *Analyzer) SeasonalPatterns(ctx context.Context, _, end time.Time) ([]Pattern, error) {
	series, err := a.agg.MonthlySeries(ctx, SeasonalMonths, lastCompleteMonth(end), aggregate.PeriodFilter{})
	if err != nil {
		return nil, fmt.Errorf("seasonal patterns: %w", err)
	}
	f := FactorsFromSeries(series)

	var items []Pattern
	for _, col := range []struct {
		name    string
		factors [12]float64
		values  []float64
	}{
		{SeriesIncome, f.Income, aggregate.Incomes(series)},
		{SeriesExpenses, f.Expenses, aggregate.Expenses(series)},
	} {
		global := stats.Mean(col.values)
		for month := 1; month <= 12; month++ {
			dev := col.factors[month-1] - 1
			if math.Abs(dev) <= SeasonalDeviation {
				continue
			}
			name := time.Month(month).String()
			items = append(items, Pattern{
				Type:       TypeSeasonal,
				Severity:   seasonalSeverity(col.name, dev),
				Confidence: math.Min(0.9, 0.5+math.Abs(dev)/2),
				Message: fmt.Sprintf("%s in %s run %s %s the average month (%s)",
					money.Label(col.name), name, a.money.Percent(math.Abs(dev)), aboveBelow(dev), a.money.Format(global)),
				Series:     col.name,
				Direction:  direction(dev),
				Percentage: percent(dev),
				Amount:     model.Float(stats.Round2(global * col.factors[month-1])),
				Month:      month,
			})
		}
	}
	return items, nil
}

// seasonalSeverity rates expense peaks and income troughs medium, everything else low.
func seasonalSeverity(series string, dev float64) model.Severity {
	if (series == SeriesExpenses && dev > 0) || (series == SeriesIncome && dev < 0) {
		return model.SeverityMedium
	}
	return model.SeverityLow
}

func aboveBelow(v float64) string {
	if v < 0 {
		return "below"
	}
	return "above"
}
