package pattern

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/castlemilk/finintel/backend/internal/categorize"
	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/stats"
)

const (
	// RecurringWindowDays is how far back recurring charges are searched.
	RecurringWindowDays = 365
	// RecurringMinOccurrences is the group size needed to report a recurring charge.
	RecurringMinOccurrences = 3
	// RecurringAmountTolerance is the relative amount difference allowed within a group.
	RecurringAmountTolerance = 0.05
	// RecurringPrefixRunes is the normalized description prefix compared between charges.
	RecurringPrefixRunes = 20
	// RecurringSimilarity is the prefix similarity needed to join a group.
	RecurringSimilarity = 0.8
	// RecurringMaxConfidence caps the confidence of a recurring pattern.
	RecurringMaxConfidence = 0.9
)

// Cadence is an accepted average interval range for recurring charges.
type Cadence struct {
	Name    string
	MinDays float64
	MaxDays float64
}

// Cadences are the recognized billing frequencies.
var Cadences = []Cadence{
	{Name: "monthly", MinDays: 25, MaxDays: 35},
	{Name: "bimonthly", MinDays: 55, MaxDays: 65},
	{Name: "quarterly", MinDays: 85, MaxDays: 95},
}

// CadenceFor returns the cadence containing avgInterval.
func CadenceFor(avgInterval float64) (Cadence, bool) {
	for _, c := range Cadences {
		if avgInterval >= c.MinDays && avgInterval <= c.MaxDays {
			return c, true
		}
	}
	return Cadence{}, false
}

// RecurringTransactions finds likely subscriptions among the expenses of the
// RecurringWindowDays ending at end.
func (a *Analyzer) RecurringTransactions(ctx context.Context, _, end time.Time) ([]Pattern, error) {
	from := model.StartOfDay(end).AddDate(0, 0, -RecurringWindowDays)
	txs, err := a.agg.Transactions(ctx, from, end, model.DirectionExpense)
	if err != nil {
		return nil, fmt.Errorf("recurring transactions: %w", err)
	}
	items := DetectRecurring(txs)
	for i := range items {
		p := &items[i]
		p.Message = fmt.Sprintf("%q looks like a %s charge of about %s, next expected %s",
			p.Description, p.Frequency, a.money.Format(*p.Amount), p.NextExpectedDate.Format("2006-01-02"))
	}
	return items, nil
}

type recurringGroup struct {
	key string
	txs []*model.Transaction
}

func (g *recurringGroup) meanAmount() float64 {
	amounts := make([]float64, len(g.txs))
	for i, tx := range g.txs {
		amounts[i] = tx.AbsAmount()
	}
	return stats.Mean(amounts)
}

// DetectRecurring groups expenses by description prefix and amount and
// reports groups of at least RecurringMinOccurrences whose average interval
// matches a cadence. Messages are left for the caller to render.
func DetectRecurring(txs []*model.Transaction) []Pattern {
	sorted := make([]*model.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.IsExpense() {
			sorted = append(sorted, tx)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})

	var groups []*recurringGroup
	for _, tx := range sorted {
		key := prefix(categorize.Normalize(tx.Description), RecurringPrefixRunes)
		if key == "" {
			continue
		}
		amount := tx.AbsAmount()
		var target *recurringGroup
		for _, g := range groups {
			if categorize.Similarity(key, g.key) < RecurringSimilarity {
				continue
			}
			mean := g.meanAmount()
			if mean > 0 && math.Abs(amount-mean)/mean <= RecurringAmountTolerance {
				target = g
				break
			}
		}
		if target == nil {
			target = &recurringGroup{key: key}
			groups = append(groups, target)
		}
		target.txs = append(target.txs, tx)
	}

	var items []Pattern
	for _, g := range groups {
		if len(g.txs) < RecurringMinOccurrences {
			continue
		}
		var intervals []float64
		for i := 1; i < len(g.txs); i++ {
			intervals = append(intervals, g.txs[i].Date.Sub(g.txs[i-1].Date).Hours()/24)
		}
		avgInterval := stats.Mean(intervals)
		cadence, ok := CadenceFor(avgInterval)
		if !ok {
			continue
		}

		first, last := g.txs[0], g.txs[len(g.txs)-1]
		lastDate := last.Date
		next := lastDate.AddDate(0, 0, int(math.Round(avgInterval)))
		ids := make([]string, len(g.txs))
		for i, tx := range g.txs {
			ids[i] = tx.ID
		}

		items = append(items, Pattern{
			Type:             TypeRecurring,
			Severity:         model.SeverityLow,
			Confidence:       math.Min(RecurringMaxConfidence, 0.5+float64(len(g.txs))/10),
			Series:           SeriesExpenses,
			Category:         last.Category,
			Amount:           model.Float(stats.Round2(g.meanAmount())),
			Occurrences:      len(g.txs),
			IntervalDays:     model.Float(stats.Round2(avgInterval)),
			Frequency:        cadence.Name,
			Description:      first.Description,
			LastDate:         &lastDate,
			NextExpectedDate: &next,
			TransactionIDs:   ids,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Confidence != items[j].Confidence {
			return items[i].Confidence > items[j].Confidence
		}
		return *items[i].Amount > *items[j].Amount
	})
	return items
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
