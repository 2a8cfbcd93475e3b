package pattern

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/castlemilk/finintel/backend/internal/aggregate"
	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/money"
	"github.com/castlemilk/finintel/backend/internal/stats"
)

const (
	// TrendMonths is the length of the series the linear trend is fitted on.
	TrendMonths = 6
	// TrendThreshold is the normalized slope (per month) above which a trend is reported.
	TrendThreshold = 0.05
	// CategoryTrendThreshold is the period-over-period variation that marks a category trend.
	CategoryTrendThreshold = 0.20
	// CategoryTrendMinAmount is the larger of the two totals needed for a category trend to matter.
	CategoryTrendMinAmount = 100.0
)

// Trend is a fitted linear trend of a monthly series.
type Trend struct {
	Slope      float64
	Intercept  float64
	RSquared   float64
	Normalized float64
}

// FitTrend fits an OLS trend and normalizes the slope by the first value.
func FitTrend(values []float64) Trend {
	slope, intercept, r2 := stats.LinearTrend(values)
	return Trend{
		Slope:      slope,
		Intercept:  intercept,
		RSquared:   r2,
		Normalized: stats.NormalizedTrend(values),
	}
}

// LinearTrends reports income and expense series whose normalized monthly
// slope exceeds TrendThreshold over the trailing TrendMonths complete months.
func (a *Analyzer) LinearTrends(ctx context.Context, _, end time.Time) ([]Pattern, error) {
	series, err := a.agg.MonthlySeries(ctx, TrendMonths, lastCompleteMonth(end), aggregate.PeriodFilter{})
	if err != nil {
		return nil, fmt.Errorf("linear trends: %w", err)
	}

	var items []Pattern
	for _, col := range []struct {
		name   string
		values []float64
	}{
		{SeriesIncome, aggregate.Incomes(series)},
		{SeriesExpenses, aggregate.Expenses(series)},
	} {
		tr := FitTrend(col.values)
		if math.Abs(tr.Normalized) <= TrendThreshold {
			continue
		}
		severity := model.SeverityLow
		if (col.name == SeriesExpenses && tr.Normalized > 0) || (col.name == SeriesIncome && tr.Normalized < 0) {
			severity = model.SeverityMedium
		}
		items = append(items, Pattern{
			Type:       TypeTrend,
			Severity:   severity,
			Confidence: stats.Clamp(tr.RSquared, 0.3, 0.9),
			Message: fmt.Sprintf("%s are trending %s by %s per month (%s/month)",
				money.Label(col.name), direction(tr.Normalized), a.money.Percent(math.Abs(tr.Normalized)), a.money.Format(tr.Slope)),
			Series:     col.name,
			Direction:  direction(tr.Normalized),
			Percentage: percent(tr.Normalized),
			Amount:     model.Float(stats.Round2(tr.Slope)),
		})
	}
	return items, nil
}

// CategoryTrends compares each category's expenses in [start, end] with the
// immediately preceding period of the same length.
func (a *Analyzer) CategoryTrends(ctx context.Context, start, end time.Time) ([]Pattern, error) {
	current, err := a.agg.Transactions(ctx, start, end, model.DirectionExpense)
	if err != nil {
		return nil, fmt.Errorf("category trends: %w", err)
	}
	ps, pe := model.PreviousPeriod(start, end, 1)
	previous, err := a.agg.Transactions(ctx, ps, pe, model.DirectionExpense)
	if err != nil {
		return nil, fmt.Errorf("category trends: %w", err)
	}
	return CompareCategories(aggregate.GroupByCategory(current), aggregate.GroupByCategory(previous), a.money), nil
}

// CategoryChange is one category's period-over-period expense change.
type CategoryChange struct {
	Category  string
	Current   float64
	Previous  float64
	Variation float64
}

// CategoryChanges pairs categories of two periods by name, sorted by
// category. Categories absent from the previous period are skipped.
func CategoryChanges(current, previous []aggregate.CategoryStats) []CategoryChange {
	prev := make(map[string]float64, len(previous))
	for _, c := range previous {
		prev[c.Category] = c.TotalExpenses
	}
	var out []CategoryChange
	for _, c := range current {
		p := prev[c.Category]
		if p == 0 {
			continue
		}
		out = append(out, CategoryChange{
			Category:  c.Category,
			Current:   c.TotalExpenses,
			Previous:  p,
			Variation: (c.TotalExpenses - p) / p,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// CompareCategories turns significant category changes into patterns.
func CompareCategories(current, previous []aggregate.CategoryStats, f *money.Formatter) []Pattern {
	var items []Pattern
	for _, ch := range CategoryChanges(current, previous) {
		if math.Abs(ch.Variation) <= CategoryTrendThreshold || math.Max(ch.Current, ch.Previous) < CategoryTrendMinAmount {
			continue
		}
		severity := model.SeverityLow
		if ch.Variation > 0 {
			severity = model.SeverityMedium
		}
		items = append(items, Pattern{
			Type:       TypeCategoryTrend,
			Severity:   severity,
			Confidence: math.Min(0.9, 0.5+math.Abs(ch.Variation)/2),
			Message: fmt.Sprintf("%s spending went %s %s (%s vs %s)",
				money.Label(ch.Category), direction(ch.Variation), f.Percent(math.Abs(ch.Variation)), f.Format(ch.Current), f.Format(ch.Previous)),
			Category:   ch.Category,
			Direction:  direction(ch.Variation),
			Percentage: percent(ch.Variation),
			Amount:     model.Float(ch.Current),
		})
	}
	return items
}
