// Package aggregate computes period, category and monthly totals over the
// transaction store. Every analyzer builds on these aggregates.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/money"
	"github.com/castlemilk/finintel/backend/internal/store"
)

// Uncategorized labels transactions without a category.
const Uncategorized = "uncategorized"

// PeriodFilter optionally narrows period aggregates to one account or type.
type PeriodFilter struct {
	AccountID string
	Type      model.TransactionType
}

// PeriodStats are the totals for a date range. Expenses are reported unsigned.
type PeriodStats struct {
	TotalIncome      float64 `json:"total_income"`
	TotalExpenses    float64 `json:"total_expenses"`
	TransactionCount int     `json:"transaction_count"`
}

// Net returns income minus expenses.
func (p PeriodStats) Net() float64 { return p.TotalIncome - p.TotalExpenses }

// CategoryStats are the totals of one category over a date range.
type CategoryStats struct {
	Category         string  `json:"category"`
	TotalIncome      float64 `json:"total_income"`
	TotalExpenses    float64 `json:"total_expenses"`
	TransactionCount int     `json:"transaction_count"`
}

// Total returns the category total for the given direction; DirectionAll sums both.
func (c CategoryStats) Total(d model.Direction) float64 {
	switch d {
	case model.DirectionIncome:
		return c.TotalIncome
	case model.DirectionExpense:
		return c.TotalExpenses
	}
	return c.TotalIncome + c.TotalExpenses
}

// MonthlyTrend is one calendar month of a trend series.
type MonthlyTrend struct {
	Month    string    `json:"month"`
	Start    time.Time `json:"start"`
	Income   float64   `json:"income"`
	Expenses float64   `json:"expenses"`
	Net      float64   `json:"net"`
}

// TypeTotals are the totals of one business/personal flag.
type TypeTotals struct {
	Income           float64 `json:"income"`
	Expenses         float64 `json:"expenses"`
	Net              float64 `json:"net"`
	TransactionCount int     `json:"transaction_count"`
}

// BusinessPersonalSplit reports business and personal totals side by side.
type BusinessPersonalSplit struct {
	Business TypeTotals `json:"business"`
	Personal TypeTotals `json:"personal"`
}

// Aggregator computes aggregates from a Store.
type Aggregator struct {
	store store.Store
	now   func() time.Time
}

// NewAggregator creates a new Aggregator.
func NewAggregator(s store.Store) *Aggregator {
	return &Aggregator{store: s, now: time.Now}
}

// SetClock overrides the time source used for "current month".
func (a *Aggregator) SetClock(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}

// Now returns the aggregator's current time.
func (a *Aggregator) Now() time.Time { return a.now() }

// Transactions lists transactions in [start, end] for the given direction.
func (a *Aggregator) Transactions(ctx context.Context, start, end time.Time, d model.Direction) ([]*model.Transaction, error) {
	txs, err := a.store.ListTransactions(ctx, store.TransactionFilter{Start: &start, End: &end, Direction: d})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// PeriodStats sums income and expenses over [start, end].
func (a *Aggregator) PeriodStats(ctx context.Context, start, end time.Time, f PeriodFilter) (PeriodStats, error) {
	txs, err := a.store.ListTransactions(ctx, store.TransactionFilter{
		Start:     &start,
		End:       &end,
		AccountID: f.AccountID,
		Type:      f.Type,
	})
	if err != nil {
		return PeriodStats{}, fmt.Errorf("period stats: %w", err)
	}
	return Summarize(txs), nil
}

// Summarize totals a slice of transactions.
func Summarize(txs []*model.Transaction) PeriodStats {
	var income, expenses money.Accumulator
	for _, tx := range txs {
		if tx.Amount > 0 {
			income.Add(tx.Amount)
		} else if tx.Amount < 0 {
			expenses.Add(-tx.Amount)
		}
	}
	return PeriodStats{
		TotalIncome:      income.Float(),
		TotalExpenses:    expenses.Float(),
		TransactionCount: len(txs),
	}
}

// CategoryStats groups [start, end] by category, ordered by combined volume descending.
func (a *Aggregator) CategoryStats(ctx context.Context, start, end time.Time, t model.TransactionType) ([]CategoryStats, error) {
	txs, err := a.store.ListTransactions(ctx, store.TransactionFilter{Start: &start, End: &end, Type: t})
	if err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}
	result := GroupByCategory(txs)
	sortCategories(result, model.DirectionAll)
	return result, nil
}

// GroupByCategory totals transactions per category in first-seen order.
func GroupByCategory(txs []*model.Transaction) []CategoryStats {
	type acc struct {
		income, expenses money.Accumulator
		count            int
	}
	byCategory := make(map[string]*acc)
	var order []string
	for _, tx := range txs {
		cat := CategoryOf(tx)
		c, ok := byCategory[cat]
		if !ok {
			c = &acc{}
			byCategory[cat] = c
			order = append(order, cat)
		}
		if tx.Amount > 0 {
			c.income.Add(tx.Amount)
		} else if tx.Amount < 0 {
			c.expenses.Add(-tx.Amount)
		}
		c.count++
	}

	result := make([]CategoryStats, 0, len(order))
	for _, cat := range order {
		c := byCategory[cat]
		result = append(result, CategoryStats{
			Category:         cat,
			TotalIncome:      c.income.Float(),
			TotalExpenses:    c.expenses.Float(),
			TransactionCount: c.count,
		})
	}
	return result
}

// CategoryOf returns the transaction's category or Uncategorized.
func CategoryOf(tx *model.Transaction) string {
	if tx.Category == "" {
		return Uncategorized
	}
	return tx.Category
}

func sortCategories(cats []CategoryStats, d model.Direction) {
	sort.SliceStable(cats, func(i, j int) bool {
		ti, tj := cats[i].Total(d), cats[j].Total(d)
		if ti != tj {
			return ti > tj
		}
		return cats[i].Category < cats[j].Category
	})
}

// TopCategories returns up to limit categories of [start, end] ranked by their
// total in direction d.
func (a *Aggregator) TopCategories(ctx context.Context, start, end time.Time, limit int, d model.Direction) ([]CategoryStats, error) {
	cats, err := a.CategoryStats(ctx, start, end, "")
	if err != nil {
		return nil, err
	}
	return RankCategories(cats, limit, d), nil
}

// RankCategories ranks cats by their total in direction d and returns up to
// limit of them. Categories with nothing in that direction are omitted; cats
// is left untouched.
func RankCategories(cats []CategoryStats, limit int, d model.Direction) []CategoryStats {
	filtered := make([]CategoryStats, 0, len(cats))
	for _, c := range cats {
		if c.Total(d) > 0 {
			filtered = append(filtered, c)
		}
	}
	sortCategories(filtered, d)
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}

// BusinessVsPersonal splits [start, end] totals by the business/personal flags.
func (a *Aggregator) BusinessVsPersonal(ctx context.Context, start, end time.Time) (BusinessPersonalSplit, error) {
	txs, err := a.store.ListTransactions(ctx, store.TransactionFilter{Start: &start, End: &end})
	if err != nil {
		return BusinessPersonalSplit{}, fmt.Errorf("business vs personal: %w", err)
	}

	return SplitByType(txs), nil
}

// SplitByType totals business and personal transactions; untyped ones are ignored.
func SplitByType(txs []*model.Transaction) BusinessPersonalSplit {
	var business, personal []*model.Transaction
	for _, tx := range txs {
		switch {
		case tx.IsBusiness || tx.TransactionType == model.TransactionTypeBusiness:
			business = append(business, tx)
		case tx.IsPersonal || tx.TransactionType == model.TransactionTypePersonal:
			personal = append(personal, tx)
		}
	}
	return BusinessPersonalSplit{
		Business: typeTotals(business),
		Personal: typeTotals(personal),
	}
}

func typeTotals(txs []*model.Transaction) TypeTotals {
	s := Summarize(txs)
	return TypeTotals{
		Income:           s.TotalIncome,
		Expenses:         s.TotalExpenses,
		Net:              s.Net(),
		TransactionCount: s.TransactionCount,
	}
}
