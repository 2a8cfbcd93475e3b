package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/money"
	"github.com/castlemilk/finintel/backend/internal/store"
)

// Trend12Months returns the trailing 12 calendar months ending at the current
// month, oldest first. Months without transactions are zero-filled.
func (a *Aggregator) Trend12Months(ctx context.Context, f PeriodFilter) ([]MonthlyTrend, error) {
	return a.MonthlySeries(ctx, 12, a.now(), f)
}

// MonthlySeries returns `months` consecutive calendar months ending with the
// month containing last, oldest first, always exactly `months` entries.
func (a *Aggregator) MonthlySeries(ctx context.Context, months int, last time.Time, f PeriodFilter) ([]MonthlyTrend, error) {
	if months <= 0 {
		return []MonthlyTrend{}, nil
	}
	first := model.MonthStart(last).AddDate(0, -(months - 1), 0)
	end := model.MonthEnd(last)

	txs, err := a.store.ListTransactions(ctx, store.TransactionFilter{
		Start:     &first,
		End:       &end,
		AccountID: f.AccountID,
		Type:      f.Type,
	})
	if err != nil {
		return nil, fmt.Errorf("monthly series: %w", err)
	}

	income := make([]money.Accumulator, months)
	expenses := make([]money.Accumulator, months)
	for _, tx := range txs {
		i := monthIndex(first, tx.Date)
		if i < 0 || i >= months {
			continue
		}
		if tx.Amount > 0 {
			income[i].Add(tx.Amount)
		} else if tx.Amount < 0 {
			expenses[i].Add(-tx.Amount)
		}
	}

	series := make([]MonthlyTrend, months)
	for i := range series {
		start := first.AddDate(0, i, 0)
		in, out := income[i].Float(), expenses[i].Float()
		series[i] = MonthlyTrend{
			Month:    start.Format("2006-01"),
			Start:    start,
			Income:   in,
			Expenses: out,
			Net:      money.Sum(in, -out),
		}
	}
	return series, nil
}

// CategoryMonthlyTotals returns, per category, the expense totals of `months`
// calendar months ending with the month containing last (oldest first).
func (a *Aggregator) CategoryMonthlyTotals(ctx context.Context, months int, last time.Time) (map[string][]float64, error) {
	if months <= 0 {
		return map[string][]float64{}, nil
	}
	first := model.MonthStart(last).AddDate(0, -(months - 1), 0)
	end := model.MonthEnd(last)

	txs, err := a.store.ListTransactions(ctx, store.TransactionFilter{Start: &first, End: &end, Direction: model.DirectionExpense})
	if err != nil {
		return nil, fmt.Errorf("category monthly totals: %w", err)
	}

	totals := make(map[string][]float64)
	for _, tx := range txs {
		i := monthIndex(first, tx.Date)
		if i < 0 || i >= months {
			continue
		}
		cat := CategoryOf(tx)
		if _, ok := totals[cat]; !ok {
			totals[cat] = make([]float64, months)
		}
		totals[cat][i] = money.Sum(totals[cat][i], tx.AbsAmount())
	}
	return totals, nil
}

// Incomes returns the income column of a series.
func Incomes(series []MonthlyTrend) []float64 {
	out := make([]float64, len(series))
	for i, m := range series {
		out[i] = m.Income
	}
	return out
}

// Expenses returns the expense column of a series.
func Expenses(series []MonthlyTrend) []float64 {
	out := make([]float64, len(series))
	for i, m := range series {
		out[i] = m.Expenses
	}
	return out
}

func monthIndex(first, t time.Time) int {
	t = t.In(first.Location())
	return (t.Year()-first.Year())*12 + int(t.Month()) - int(first.Month())
}
