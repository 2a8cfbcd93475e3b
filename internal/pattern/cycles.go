package pattern

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/money"
	"github.com/castlemilk/finintel/backend/internal/stats"
)

const (
	// WeekdayMinSamples is exceeded by a weekday's expense count before it is compared.
	WeekdayMinSamples = 5
	// WeekdayDeviation is the relative deviation from the cross-day average that is reported.
	WeekdayDeviation = 0.20
	// DayOfMonthMinOccurrences is the expense count a calendar day needs to be compared.
	DayOfMonthMinOccurrences = 3
	// DayOfMonthFactor is the multiple of the cross-day average that marks a cluster.
	DayOfMonthFactor = 1.4
	// minQualifyingBuckets is the number of comparable days needed for a cross-day average.
	minQualifyingBuckets = 2
)

type bucket struct {
	total money.Accumulator
	count int
}

// WeekdayCycles flags weekdays whose total expenses in [start, end] deviate
// more than WeekdayDeviation from the average of the qualifying weekdays.
func (a *Analyzer) WeekdayCycles(ctx context.Context, start, end time.Time) ([]Pattern, error) {
	txs, err := a.agg.Transactions(ctx, start, end, model.DirectionExpense)
	if err != nil {
		return nil, fmt.Errorf("weekday cycles: %w", err)
	}

	var days [7]bucket
	for _, tx := range txs {
		d := tx.Date.Weekday()
		days[d].total.Add(tx.AbsAmount())
		days[d].count++
	}

	var qualifying []time.Weekday
	var totals []float64
	for d := time.Sunday; d <= time.Saturday; d++ {
		if days[d].count > WeekdayMinSamples {
			qualifying = append(qualifying, d)
			totals = append(totals, days[d].total.Float())
		}
	}
	if len(qualifying) < minQualifyingBuckets {
		return nil, nil
	}
	avg := stats.Mean(totals)
	if avg == 0 {
		return nil, nil
	}

	var items []Pattern
	for i, d := range qualifying {
		dev := (totals[i] - avg) / avg
		if math.Abs(dev) <= WeekdayDeviation {
			continue
		}
		items = append(items, Pattern{
			Type:        TypeWeekdayCycle,
			Severity:    model.SeverityLow,
			Confidence:  math.Min(0.9, 0.5+float64(days[d].count)/50),
			Message:     fmt.Sprintf("Spending on %s is %s %s the average day", d, a.money.Percent(math.Abs(dev)), aboveBelow(dev)),
			Series:      SeriesExpenses,
			Direction:   direction(dev),
			Percentage:  percent(dev),
			Amount:      model.Float(totals[i]),
			Weekday:     d.String(),
			Occurrences: days[d].count,
		})
	}
	return items, nil
}

// DayOfMonthClusters flags calendar days whose expense total in [start, end]
// exceeds DayOfMonthFactor times the average of the qualifying days.
func (a *Analyzer) DayOfMonthClusters(ctx context.Context, start, end time.Time) ([]Pattern, error) {
	txs, err := a.agg.Transactions(ctx, start, end, model.DirectionExpense)
	if err != nil {
		return nil, fmt.Errorf("day of month clusters: %w", err)
	}

	var days [32]bucket
	for _, tx := range txs {
		d := tx.Date.Day()
		days[d].total.Add(tx.AbsAmount())
		days[d].count++
	}

	var qualifying []int
	var totals []float64
	for d := 1; d <= 31; d++ {
		if days[d].count >= DayOfMonthMinOccurrences {
			qualifying = append(qualifying, d)
			totals = append(totals, days[d].total.Float())
		}
	}
	if len(qualifying) < minQualifyingBuckets {
		return nil, nil
	}
	avg := stats.Mean(totals)

	var items []Pattern
	for i, d := range qualifying {
		if avg <= 0 || totals[i] <= DayOfMonthFactor*avg {
			continue
		}
		ratio := totals[i] / avg
		items = append(items, Pattern{
			Type:        TypeDayOfMonth,
			Severity:    model.SeverityLow,
			Confidence:  math.Min(0.9, 0.5+float64(days[d].count)/20),
			Message:     fmt.Sprintf("Expenses cluster on day %d of the month (%s, %s times the average day)", d, a.money.Format(totals[i]), a.money.Number(ratio)),
			Series:      SeriesExpenses,
			Direction:   DirectionUp,
			Percentage:  percent(ratio - 1),
			Amount:      model.Float(totals[i]),
			DayOfMonth:  d,
			Occurrences: days[d].count,
		})
	}
	return items, nil
}
