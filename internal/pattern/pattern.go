// Package pattern finds seasonality, cycles, trends and recurring charges in
// the transaction history.
package pattern

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/castlemilk/finintel/backend/internal/aggregate"
	"github.com/castlemilk/finintel/backend/internal/config"
	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/money"
)

// Type identifies a detected pattern.
type Type string

const (
	TypeSeasonal      Type = "seasonal"
	TypeWeekdayCycle  Type = "weekday_cycle"
	TypeTrend         Type = "trend"
	TypeCategoryTrend Type = "category_trend"
	TypeDayOfMonth    Type = "day_of_month"
	TypeRecurring     Type = "recurring_transaction"
)

// Series names the income or expense column a pattern describes.
const (
	SeriesIncome   = "income"
	SeriesExpenses = "expenses"
)

// Directions of trends and deviations.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Pattern is one detected regularity. Fields that do not apply to the
// pattern type are left empty.
type Pattern struct {
	Type             Type           `json:"type"`
	Severity         model.Severity `json:"severity"`
	Confidence       float64        `json:"confidence"`
	Message          string         `json:"message"`
	Series           string         `json:"series,omitempty"`
	Category         string         `json:"category,omitempty"`
	Direction        string         `json:"direction,omitempty"`
	Percentage       *float64       `json:"percentage,omitempty"`
	Amount           *float64       `json:"amount,omitempty"`
	Month            int            `json:"month,omitempty"`
	Weekday          string         `json:"weekday,omitempty"`
	DayOfMonth       int            `json:"day_of_month,omitempty"`
	Occurrences      int            `json:"occurrences,omitempty"`
	IntervalDays     *float64       `json:"interval_days,omitempty"`
	Frequency        string         `json:"frequency,omitempty"`
	Description      string         `json:"description,omitempty"`
	LastDate         *time.Time     `json:"last_date,omitempty"`
	NextExpectedDate *time.Time     `json:"next_expected_date,omitempty"`
	TransactionIDs   []string       `json:"transaction_ids,omitempty"`
}

// Analyzer runs the pattern detections.
type Analyzer struct {
	agg    *aggregate.Aggregator
	cfg    config.IntelligenceConfig
	money  *money.Formatter
	logger *zap.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(agg *aggregate.Aggregator, cfg config.IntelligenceConfig, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		agg:    agg,
		cfg:    cfg,
		money:  money.NewFormatter(cfg.Locale, cfg.Currency),
		logger: logger.Named("pattern"),
	}
}

// AnalyzePatterns runs every detection for [start, end]. Failed detections
// are skipped and their errors joined; patterns found by the others are kept.
func (a *Analyzer) AnalyzePatterns(ctx context.Context, start, end time.Time) ([]Pattern, error) {
	detections := []struct {
		name string
		run  func(context.Context, time.Time, time.Time) ([]Pattern, error)
	}{
		{"seasonal", a.SeasonalPatterns},
		{"weekday", a.WeekdayCycles},
		{"trend", a.LinearTrends},
		{"category_trend", a.CategoryTrends},
		{"day_of_month", a.DayOfMonthClusters},
		{"recurring", a.RecurringTransactions},
	}

	var items []Pattern
	var errs []error
	for _, det := range detections {
		found, err := det.run(ctx, start, end)
		if err != nil {
			a.logger.Warn("detection failed", zap.String("detection", det.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", det.name, err))
			continue
		}
		items = append(items, found...)
	}

	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := items[i].Severity.Rank(), items[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return items[i].Confidence > items[j].Confidence
	})
	return items, errors.Join(errs...)
}

// lastCompleteMonth returns the start of the latest month fully covered by end.
func lastCompleteMonth(end time.Time) time.Time {
	if model.EndOfDay(end).Equal(model.MonthEnd(end)) {
		return model.MonthStart(end)
	}
	return model.MonthStart(end).AddDate(0, -1, 0)
}

func percent(ratio float64) *float64 {
	return model.Float(math.Round(ratio*1000) / 10)
}

func direction(v float64) string {
	if v < 0 {
		return DirectionDown
	}
	return DirectionUp
}
