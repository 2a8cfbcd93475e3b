// Package insights turns period statistics into short narrative findings
// about cash flow, spending concentration and liquidity.
package insights

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

// Type identifies an insight.
type Type string

const (
	TypeCashflowSummary Type = "cash_flow_summary"
	TypeTopCategory     Type = "top_expense_category"
	TypeSpendingChange  Type = "spending_change"
	TypeBusinessShare   Type = "business_share"
	TypeUncategorized   Type = "uncategorized_transactions"
	TypeRunway          Type = "liquidity_runway"
)

const (
	// TopCategoryShare is the expense share above which the top category is rated medium.
	TopCategoryShare = 0.4
	// SpendingChangeThreshold is the period-over-period expense change that is reported.
	SpendingChangeThreshold = 0.10
	// UncategorizedShare is the fraction of uncategorized transactions that is reported.
	UncategorizedShare = 0.10
	// UncategorizedHighShare rates the uncategorized insight medium.
	UncategorizedHighShare = 0.30
	// RunwayLowMonths and RunwayCriticalMonths grade months of expenses covered by the balance.
	RunwayLowMonths      = 3.0
	RunwayCriticalMonths = 1.0
)

// Insight is one narrative finding. It shares the shape of anomalies.
type Insight struct {
	Type       Type           `json:"type"`
	Severity   model.Severity `json:"severity"`
	Confidence float64        `json:"confidence"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Category   string         `json:"category,omitempty"`
	Value      *float64       `json:"value,omitempty"`
	Percentage *float64       `json:"percentage,omitempty"`
}

// Generator derives insights for a period.
type Generator struct {
	agg    *aggregate.Aggregator
	store  store.Store
	cfg    config.IntelligenceConfig
	money  *money.Formatter
	logger *zap.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(agg *aggregate.Aggregator, s store.Store, cfg config.IntelligenceConfig, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		agg:    agg,
		store:  s,
		cfg:    cfg,
		money:  money.NewFormatter(cfg.Locale, cfg.Currency),
		logger: logger.Named("insights"),
	}
}

// Generate returns the insights for [start, end]. A failing top category or
// balance lookup drops only that insight.
func (g *Generator) Generate(ctx context.Context, start, end time.Time) ([]Insight, error) {
	txs, err := g.agg.Transactions(ctx, start, end, model.DirectionAll)
	if err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}
	if len(txs) == 0 {
		g.logger.Debug("no transactions in period", zap.Time("start", start), zap.Time("end", end))
		return nil, nil
	}
	ps, pe := model.PreviousPeriod(start, end, 1)
	prevTxs, err := g.agg.Transactions(ctx, ps, pe, model.DirectionAll)
	if err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}

	current := aggregate.Summarize(txs)
	var items []Insight
	appendIf := func(in Insight, ok bool) {
		if ok {
			items = append(items, in)
		}
	}
	var errs []error
	appendIf(g.cashflow(current))
	if top, err := g.agg.TopCategories(ctx, start, end, 1, model.DirectionExpense); err != nil {
		g.logger.Warn("top categories unavailable", zap.Error(err))
		errs = append(errs, fmt.Errorf("top category: %w", err))
	} else {
		appendIf(g.topCategory(top, current.TotalExpenses))
	}
	appendIf(g.spendingChange(current, aggregate.Summarize(prevTxs)))
	appendIf(g.businessShare(aggregate.SplitByType(txs)))
	appendIf(g.uncategorized(txs))

	balance, err := g.store.GetTotalBalance(ctx)
	if err != nil {
		g.logger.Warn("balance unavailable", zap.Error(err))
		errs = append(errs, fmt.Errorf("runway: %w", err))
	} else {
		monthly := current.TotalExpenses * 30 / float64(model.PeriodDays(start, end))
		appendIf(g.runway(balance, monthly))
	}

	Sort(items)
	return items, errors.Join(errs...)
}

// Sort orders insights by severity descending, then confidence descending.
func Sort(items []Insight) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := items[i].Severity.Rank(), items[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return items[i].Confidence > items[j].Confidence
	})
}

// AverageConfidence returns the mean confidence, 0 for no insights.
func AverageConfidence(items []Insight) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, in := range items {
		sum += in.Confidence
	}
	return sum / float64(len(items))
}

func (g *Generator) cashflow(cur aggregate.PeriodStats) (Insight, bool) {
	net := cur.Net()
	in := Insight{
		Type:       TypeCashflowSummary,
		Severity:   model.SeverityLow,
		Confidence: 0.9,
		Title:      "Cash flow",
		Value:      model.Float(net),
	}
	if net < 0 {
		in.Severity = model.SeverityMedium
	}
	in.Message = fmt.Sprintf("Net cash flow of %s: income %s, expenses %s",
		g.money.Format(net), g.money.Format(cur.TotalIncome), g.money.Format(cur.TotalExpenses))
	if cur.TotalIncome > 0 {
		rate := net / cur.TotalIncome
		in.Percentage = percent(rate)
		in.Message += fmt.Sprintf(" (savings rate %s)", g.money.Percent(rate))
	}
	return in, true
}

func (g *Generator) topCategory(ranked []aggregate.CategoryStats, totalExpenses float64) (Insight, bool) {
	if totalExpenses <= 0 || len(ranked) == 0 {
		return Insight{}, false
	}
	top := ranked[0]
	share := top.TotalExpenses / totalExpenses
	severity := model.SeverityLow
	if share > TopCategoryShare {
		severity = model.SeverityMedium
	}
	return Insight{
		Type:       TypeTopCategory,
		Severity:   severity,
		Confidence: 0.85,
		Title:      "Largest expense category",
		Message: fmt.Sprintf("%s is the largest expense category at %s, %s of all expenses",
			money.Label(top.Category), g.money.Format(top.TotalExpenses), g.money.Percent(share)),
		Category:   top.Category,
		Value:      model.Float(top.TotalExpenses),
		Percentage: percent(share),
	}, true
}

func (g *Generator) spendingChange(cur, prev aggregate.PeriodStats) (Insight, bool) {
	if prev.TotalExpenses == 0 {
		return Insight{}, false
	}
	variation := (cur.TotalExpenses - prev.TotalExpenses) / prev.TotalExpenses
	if math.Abs(variation) <= SpendingChangeThreshold {
		return Insight{}, false
	}
	severity, verb := model.SeverityLow, "decreased"
	if variation > 0 {
		severity, verb = model.SeverityMedium, "increased"
	}
	return Insight{
		Type:       TypeSpendingChange,
		Severity:   severity,
		Confidence: 0.8,
		Title:      "Spending change",
		Message: fmt.Sprintf("Expenses %s by %s compared with the previous period (%s vs %s)",
			verb, g.money.Percent(math.Abs(variation)), g.money.Format(cur.TotalExpenses), g.money.Format(prev.TotalExpenses)),
		Value:      model.Float(cur.TotalExpenses - prev.TotalExpenses),
		Percentage: percent(variation),
	}, true
}

func (g *Generator) businessShare(split aggregate.BusinessPersonalSplit) (Insight, bool) {
	total := split.Business.Expenses + split.Personal.Expenses
	if total == 0 {
		return Insight{}, false
	}
	share := split.Business.Expenses / total
	return Insight{
		Type:       TypeBusinessShare,
		Severity:   model.SeverityLow,
		Confidence: 0.75,
		Title:      "Business vs personal",
		Message: fmt.Sprintf("Business expenses are %s of classified spending (%s business, %s personal)",
			g.money.Percent(share), g.money.Format(split.Business.Expenses), g.money.Format(split.Personal.Expenses)),
		Value:      model.Float(split.Business.Expenses),
		Percentage: percent(share),
	}, true
}

func (g *Generator) uncategorized(txs []*model.Transaction) (Insight, bool) {
	var n int
	for _, tx := range txs {
		if tx.Category == "" {
			n++
		}
	}
	share := float64(n) / float64(len(txs))
	if share <= UncategorizedShare {
		return Insight{}, false
	}
	severity := model.SeverityLow
	if share > UncategorizedHighShare {
		severity = model.SeverityMedium
	}
	return Insight{
		Type:       TypeUncategorized,
		Severity:   severity,
		Confidence: 0.95,
		Title:      "Uncategorized transactions",
		Message:    fmt.Sprintf("%d of %d transactions (%s) have no category", n, len(txs), g.money.Percent(share)),
		Value:      model.Float(float64(n)),
		Percentage: percent(share),
	}, true
}

func (g *Generator) runway(balance, monthlyExpenses float64) (Insight, bool) {
	if monthlyExpenses <= 0 {
		return Insight{}, false
	}
	months := balance / monthlyExpenses
	severity := model.SeverityLow
	switch {
	case months < RunwayCriticalMonths:
		severity = model.SeverityHigh
	case months < RunwayLowMonths:
		severity = model.SeverityMedium
	}
	return Insight{
		Type:       TypeRunway,
		Severity:   severity,
		Confidence: 0.8,
		Title:      "Liquidity runway",
		Message: fmt.Sprintf("The current balance of %s covers %s months of expenses at %s per month",
			g.money.Format(balance), g.money.Number(months), g.money.Format(monthlyExpenses)),
		Value: model.Float(math.Round(months*10) / 10),
	}, true
}

func percent(ratio float64) *float64 {
	return model.Float(math.Round(ratio*1000) / 10)
}
