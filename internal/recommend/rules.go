package recommend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/castlemilk/finintel/backend/internal/aggregate"
	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/money"
	"github.com/castlemilk/finintel/backend/internal/pattern"
	"github.com/castlemilk/finintel/backend/internal/stats"
	"github.com/castlemilk/finintel/backend/internal/store"
)

const (
	// CategoryShareThreshold is the share of total expenses that makes a category a savings target.
	CategoryShareThreshold = 0.10
	// CategoryShareHigh raises a savings target to high priority.
	CategoryShareHigh = 0.25
	// CategoryMinAmount is the category total below which no savings target is raised.
	CategoryMinAmount = 200.0
	// SavingsRate is the reduction proposed for a savings target.
	SavingsRate = 0.10
	// ExpenseGrowthThreshold is the period-over-period expense growth that is flagged.
	ExpenseGrowthThreshold = 0.15
	// UnpaidHighAmount raises the unpaid invoices recommendation to high priority.
	UnpaidHighAmount = 5000.0
	// IncomeDeclineThreshold is the period-over-period income drop that is flagged.
	IncomeDeclineThreshold = 0.10
	// CoverageTargetMonths is the balance coverage, in months of expenses, aimed for.
	CoverageTargetMonths = 3.0
	// NegativeCashflowCritical makes a negative cash flow critical.
	NegativeCashflowCritical = 2000.0
	// OverdueCriticalDays makes overdue invoices critical.
	OverdueCriticalDays = 30
	// CategoryGrowthThreshold and CategoryGrowthMinAmount flag a category for review.
	CategoryGrowthThreshold = 0.30
	CategoryGrowthMinAmount = 500.0
)

func (e *Engine) savings(_ context.Context, d periodData) ([]Recommendation, error) {
	cur := aggregate.Summarize(d.current)
	var items []Recommendation

	if cur.TotalExpenses > 0 {
		cats := aggregate.GroupByCategory(d.current)
		sort.SliceStable(cats, func(i, j int) bool { return cats[i].Category < cats[j].Category })
		for _, c := range cats {
			share := c.TotalExpenses / cur.TotalExpenses
			if share <= CategoryShareThreshold || c.TotalExpenses <= CategoryMinAmount {
				continue
			}
			priority := model.SeverityMedium
			if share > CategoryShareHigh {
				priority = model.SeverityHigh
			}
			saving := stats.Round2(c.TotalExpenses * SavingsRate)
			items = append(items, Recommendation{
				Type:        TypeSavings,
				TriggerType: TriggerCategoryConcentration,
				Category:    c.Category,
				Priority:    priority,
				Title:       fmt.Sprintf("Review %s spending", money.Label(c.Category)),
				Message: fmt.Sprintf("%s accounts for %s of expenses (%s). Cutting it by %s would save %s",
					money.Label(c.Category), e.money.Percent(share), e.money.Format(c.TotalExpenses),
					e.money.Percent(SavingsRate), e.money.Format(saving)),
				PotentialSavings: model.Float(saving),
				TotalAmount:      model.Float(c.TotalExpenses),
			})
		}
	}

	prev := aggregate.Summarize(d.previous)
	if prev.TotalExpenses > 0 {
		growth := (cur.TotalExpenses - prev.TotalExpenses) / prev.TotalExpenses
		if growth > ExpenseGrowthThreshold {
			delta := cur.TotalExpenses - prev.TotalExpenses
			items = append(items, Recommendation{
				Type:        TypeSavings,
				TriggerType: TriggerExpenseGrowth,
				Priority:    model.SeverityHigh,
				Title:       "Expenses are growing",
				Message: fmt.Sprintf("Expenses rose %s over the previous period (%s more). Check which costs can be contained",
					e.money.Percent(growth), e.money.Format(delta)),
				Amount:              model.Float(stats.Round2(delta)),
				VariationPercentage: percent(growth),
			})
		}
	}
	return items, nil
}

func (e *Engine) income(ctx context.Context, d periodData) ([]Recommendation, error) {
	var items []Recommendation

	unpaid, err := e.store.ListInvoices(ctx, store.InvoiceFilter{UnpaidOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list unpaid invoices: %w", err)
	}
	if len(unpaid) > 0 {
		var total money.Accumulator
		for _, inv := range unpaid {
			total.Add(inv.Total())
		}
		priority := model.SeverityMedium
		if total.Float() > UnpaidHighAmount {
			priority = model.SeverityHigh
		}
		items = append(items, Recommendation{
			Type:        TypeIncome,
			TriggerType: TriggerUnpaidInvoices,
			Priority:    priority,
			Title:       "Follow up on unpaid invoices",
			Message: fmt.Sprintf("%d unpaid invoices total %s. Sending reminders speeds up collection",
				len(unpaid), e.money.Format(total.Float())),
			TotalAmount:  model.Float(total.Float()),
			InvoiceCount: len(unpaid),
		})
	}

	cur, prev := aggregate.Summarize(d.current), aggregate.Summarize(d.previous)
	if prev.TotalIncome > 0 {
		decline := (prev.TotalIncome - cur.TotalIncome) / prev.TotalIncome
		if decline > IncomeDeclineThreshold {
			items = append(items, Recommendation{
				Type:        TypeIncome,
				TriggerType: TriggerIncomeDecline,
				Priority:    model.SeverityHigh,
				Title:       "Income is declining",
				Message: fmt.Sprintf("Income fell %s compared with the previous period (%s vs %s)",
					e.money.Percent(decline), e.money.Format(cur.TotalIncome), e.money.Format(prev.TotalIncome)),
				Amount:              model.Float(stats.Round2(prev.TotalIncome - cur.TotalIncome)),
				VariationPercentage: percent(-decline),
			})
		}
	}
	return items, nil
}

func (e *Engine) liquidity(ctx context.Context, d periodData) ([]Recommendation, error) {
	var items []Recommendation
	cur := aggregate.Summarize(d.current)

	monthly := cur.TotalExpenses * 30 / float64(model.PeriodDays(d.start, d.end))
	if monthly > 0 {
		balance, err := e.store.GetTotalBalance(ctx)
		if err != nil {
			return nil, fmt.Errorf("total balance: %w", err)
		}
		coverage := balance / monthly
		if coverage < CoverageTargetMonths {
			priority := model.SeverityMedium
			switch {
			case coverage < 1:
				priority = model.SeverityCritical
			case coverage < 2:
				priority = model.SeverityHigh
			}
			shortfall := stats.Round2(CoverageTargetMonths*monthly - balance)
			items = append(items, Recommendation{
				Type:        TypeLiquidity,
				TriggerType: TriggerLowCoverage,
				Priority:    priority,
				Title:       "Build a liquidity buffer",
				Message: fmt.Sprintf("The balance of %s covers %s months of expenses. %s more would reach %s months",
					e.money.Format(balance), e.money.Number(coverage), e.money.Format(shortfall), e.money.Number(CoverageTargetMonths)),
				Amount:         model.Float(shortfall),
				CoverageMonths: model.Float(math.Round(coverage*10) / 10),
			})
		}
	}

	if net := cur.Net(); net < 0 {
		priority := model.SeverityHigh
		if math.Abs(net) > NegativeCashflowCritical {
			priority = model.SeverityCritical
		}
		items = append(items, Recommendation{
			Type:        TypeLiquidity,
			TriggerType: TriggerNegativeCashflow,
			Priority:    priority,
			Title:       "Cash flow is negative",
			Message:     fmt.Sprintf("Expenses exceeded income by %s in this period", e.money.Format(math.Abs(net))),
			Cashflow:    model.Float(stats.Round2(net)),
		})
	}
	return items, nil
}

func (e *Engine) invoiceCollection(ctx context.Context, _ periodData) ([]Recommendation, error) {
	asOf := e.agg.Now()
	overdue, err := e.store.ListOverdueInvoices(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("list overdue invoices: %w", err)
	}
	if len(overdue) == 0 {
		return nil, nil
	}
	unpaid, err := e.store.ListInvoices(ctx, store.InvoiceFilter{UnpaidOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list unpaid invoices: %w", err)
	}

	var total money.Accumulator
	maxDays := 0
	for _, inv := range overdue {
		total.Add(inv.Total())
		maxDays = max(maxDays, inv.DaysOverdue(asOf))
	}
	priority := model.SeverityHigh
	if maxDays > OverdueCriticalDays {
		priority = model.SeverityCritical
	}
	dso := DSO(unpaid, asOf)

	return []Recommendation{{
		Type:        TypeInvoiceCollection,
		TriggerType: TriggerOverdueInvoices,
		Priority:    priority,
		Title:       "Collect overdue invoices",
		Message: fmt.Sprintf("%d invoices are overdue for %s, the oldest by %d days. Days sales outstanding: %s",
			len(overdue), e.money.Format(total.Float()), maxDays, e.money.Number(dso)),
		TotalAmount:    model.Float(total.Float()),
		InvoiceCount:   len(overdue),
		MaxDaysOverdue: maxDays,
		DSO:            model.Float(math.Round(dso*10) / 10),
	}}, nil
}

func (e *Engine) categoryReview(_ context.Context, d periodData) ([]Recommendation, error) {
	cur := aggregate.GroupByCategory(expenses(d.current))
	prev := aggregate.GroupByCategory(expenses(d.previous))

	var items []Recommendation
	for _, ch := range pattern.CategoryChanges(cur, prev) {
		delta := ch.Current - ch.Previous
		if ch.Variation <= CategoryGrowthThreshold || delta <= CategoryGrowthMinAmount {
			continue
		}
		items = append(items, Recommendation{
			Type:        TypeCategoryReview,
			TriggerType: TriggerCategoryGrowth,
			Category:    ch.Category,
			Priority:    model.SeverityMedium,
			Title:       fmt.Sprintf("%s costs jumped", money.Label(ch.Category)),
			Message: fmt.Sprintf("%s spending grew %s (%s vs %s). Review recent charges in this category",
				money.Label(ch.Category), e.money.Percent(ch.Variation), e.money.Format(ch.Current), e.money.Format(ch.Previous)),
			Amount:              model.Float(stats.Round2(delta)),
			VariationPercentage: percent(ch.Variation),
		})
	}
	return items, nil
}

// DSO is the average age in days, since issue, of unpaid invoices as of asOf.
func DSO(unpaid []*model.Invoice, asOf time.Time) float64 {
	if len(unpaid) == 0 {
		return 0
	}
	ages := make([]float64, 0, len(unpaid))
	for _, inv := range unpaid {
		ages = append(ages, math.Max(0, asOf.Sub(inv.IssueDate).Hours()/24))
	}
	return stats.Mean(ages)
}

func expenses(txs []*model.Transaction) []*model.Transaction {
	out := make([]*model.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.IsExpense() {
			out = append(out, tx)
		}
	}
	return out
}

func percent(ratio float64) *float64 {
	return model.Float(math.Round(ratio*1000) / 10)
}
