// Package predict forecasts income, expenses and cash flow from the trailing
// monthly series, scaled by seasonal factors, with prediction intervals and
// optimistic/realistic/pessimistic scenarios.
package predict

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/castlemilk/finintel/backend/internal/aggregate"
	"github.com/castlemilk/finintel/backend/internal/config"
	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/money"
	"github.com/castlemilk/finintel/backend/internal/pattern"
)

// Predictions is the forecast for one horizon.
type Predictions struct {
	DaysAhead        int              `json:"days_ahead"`
	TargetDate       time.Time        `json:"target_date"`
	Income           Forecast         `json:"income"`
	Expenses         Forecast         `json:"expenses"`
	Cashflow         CashflowForecast `json:"cashflow"`
	Scenarios        Scenarios        `json:"scenarios"`
	SeasonalAdjusted bool             `json:"seasonal_adjusted"`
	Message          string           `json:"message"`
}

// Analyzer generates predictions.
type Analyzer struct {
	agg      *aggregate.Aggregator
	patterns *pattern.Analyzer
	cfg      config.IntelligenceConfig
	money    *money.Formatter
	logger   *zap.Logger
}

// NewAnalyzer creates an Analyzer. Seasonal factors come from patterns.
func NewAnalyzer(agg *aggregate.Aggregator, patterns *pattern.Analyzer, cfg config.IntelligenceConfig, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		agg:      agg,
		patterns: patterns,
		cfg:      cfg,
		money:    money.NewFormatter(cfg.Locale, cfg.Currency),
		logger:   logger.Named("predict"),
	}
}

// GeneratePredictions forecasts daysAhead days from now using the
// HistoryMonths complete months before the current one. A failure to compute
// seasonal factors degrades to neutral factors.
func (a *Analyzer) GeneratePredictions(ctx context.Context, daysAhead int) (Predictions, error) {
	if daysAhead <= 0 {
		daysAhead = DefaultDaysAhead
	}
	now := a.agg.Now()
	last := model.MonthStart(now).AddDate(0, -1, 0)

	series, err := a.agg.MonthlySeries(ctx, HistoryMonths, last, aggregate.PeriodFilter{})
	if err != nil {
		return Predictions{}, fmt.Errorf("generate predictions: %w", err)
	}

	adjusted := true
	factors, err := a.patterns.SeasonalFactors(ctx, model.MonthEnd(last))
	if err != nil {
		a.logger.Warn("seasonal factors unavailable, using neutral factors", zap.Error(err))
		factors = pattern.NeutralFactors()
		adjusted = false
	}

	target := now.AddDate(0, 0, daysAhead)
	incFactor, expFactor := factors.For(target)

	k := a.cfg.PredictionIntervalK
	income := ForecastSeries(aggregate.Incomes(series), daysAhead, incFactor, k)
	expenses := ForecastSeries(aggregate.Expenses(series), daysAhead, expFactor, k)
	cashflow := CashflowFrom(income, expenses)

	a.logger.Debug("predictions generated",
		zap.Int("days_ahead", daysAhead),
		zap.Float64("income", income.Predicted),
		zap.Float64("expenses", expenses.Predicted),
		zap.String("risk", string(cashflow.Risk)))

	return Predictions{
		DaysAhead:        daysAhead,
		TargetDate:       target,
		Income:           income,
		Expenses:         expenses,
		Cashflow:         cashflow,
		Scenarios:        BuildScenarios(income, expenses, k, a.money),
		SeasonalAdjusted: adjusted,
		Message: fmt.Sprintf("Expected cash flow over the next %d days: %s (range %s to %s), %s risk",
			daysAhead, a.money.Format(cashflow.Predicted), a.money.Format(cashflow.Low), a.money.Format(cashflow.High), cashflow.Risk),
	}, nil
}
