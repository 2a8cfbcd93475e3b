// Package recommend turns period statistics, invoices and the balance into
// prioritized action items.
package recommend

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
	"github.com/castlemilk/finintel/backend/internal/store"
)

// Type groups recommendations by the area they address.
type Type string

const (
	TypeSavings           Type = "savings_opportunity"
	TypeIncome            Type = "income"
	TypeLiquidity         Type = "liquidity"
	TypeInvoiceCollection Type = "invoice_collection"
	TypeCategoryReview    Type = "category_review"
)

// Triggers name the condition that produced a recommendation.
const (
	TriggerCategoryConcentration = "category_concentration"
	TriggerExpenseGrowth         = "expense_growth"
	TriggerUnpaidInvoices        = "unpaid_invoices"
	TriggerIncomeDecline         = "income_decline"
	TriggerLowCoverage           = "low_coverage"
	TriggerNegativeCashflow      = "negative_cash_flow"
	TriggerOverdueInvoices       = "overdue_invoices"
	TriggerCategoryGrowth        = "category_growth"
)

// Recommendation is one action item. Priority uses the severity scale.
// Impact fields that do not apply are nil.
type Recommendation struct {
	Type                Type           `json:"type"`
	TriggerType         string         `json:"trigger_type"`
	Category            string         `json:"category,omitempty"`
	Priority            model.Severity `json:"priority"`
	Title               string         `json:"title"`
	Message             string         `json:"message"`
	Impact              *float64       `json:"impact,omitempty"`
	PotentialSavings    *float64       `json:"potential_savings,omitempty"`
	TotalAmount         *float64       `json:"total_amount,omitempty"`
	Amount              *float64       `json:"amount,omitempty"`
	Cashflow            *float64       `json:"cashflow,omitempty"`
	VariationPercentage *float64       `json:"variation_percentage,omitempty"`
	CoverageMonths      *float64       `json:"coverage_months,omitempty"`
	InvoiceCount        int            `json:"invoice_count,omitempty"`
	MaxDaysOverdue      int            `json:"max_days_overdue,omitempty"`
	DSO                 *float64       `json:"dso,omitempty"`
}

// ImpactScore ranks recommendations of equal priority. The first available
// of impact, potential savings, total amount, amount, negative cash flow and
// variation percentage is used.
func (r Recommendation) ImpactScore() float64 {
	switch {
	case r.Impact != nil:
		return *r.Impact
	case r.PotentialSavings != nil:
		return *r.PotentialSavings
	case r.TotalAmount != nil:
		return *r.TotalAmount
	case r.Amount != nil:
		return *r.Amount
	case r.Cashflow != nil && *r.Cashflow < 0:
		return math.Abs(*r.Cashflow)
	case r.VariationPercentage != nil:
		return math.Abs(*r.VariationPercentage)
	}
	return 0
}

// Sort orders by priority descending, then impact score descending.
func Sort(items []Recommendation) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := items[i].Priority.Rank(), items[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return items[i].ImpactScore() > items[j].ImpactScore()
	})
}

// Engine produces recommendations.
type Engine struct {
	agg    *aggregate.Aggregator
	store  store.Store
	cfg    config.IntelligenceConfig
	money  *money.Formatter
	logger *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(agg *aggregate.Aggregator, s store.Store, cfg config.IntelligenceConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		agg:    agg,
		store:  s,
		cfg:    cfg,
		money:  money.NewFormatter(cfg.Locale, cfg.Currency),
		logger: logger.Named("recommend"),
	}
}

// periodData is what every rule reads, fetched once per run.
type periodData struct {
	start, end time.Time
	current    []*model.Transaction
	previous   []*model.Transaction
}

// GenerateRecommendations runs every rule family for [start, end]. Families
// whose data cannot be loaded are skipped and their errors joined.
func (e *Engine) GenerateRecommendations(ctx context.Context, start, end time.Time) ([]Recommendation, error) {
	current, err := e.agg.Transactions(ctx, start, end, model.DirectionAll)
	if err != nil {
		return nil, fmt.Errorf("generate recommendations: %w", err)
	}
	ps, pe := model.PreviousPeriod(start, end, 1)
	previous, err := e.agg.Transactions(ctx, ps, pe, model.DirectionAll)
	if err != nil {
		return nil, fmt.Errorf("generate recommendations: %w", err)
	}
	d := periodData{start: start, end: end, current: current, previous: previous}

	families := []struct {
		name string
		run  func(context.Context, periodData) ([]Recommendation, error)
	}{
		{"savings", e.savings},
		{"income", e.income},
		{"liquidity", e.liquidity},
		{"invoice_collection", e.invoiceCollection},
		{"category_review", e.categoryReview},
	}

	var items []Recommendation
	var errs []error
	for _, f := range families {
		found, err := f.run(ctx, d)
		if err != nil {
			e.logger.Warn("recommendation family failed", zap.String("family", f.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
			continue
		}
		items = append(items, found...)
	}
	Sort(items)
	return items, errors.Join(errs...)
}
