package anomaly

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
	"github.com/castlemilk/finintel/backend/internal/stats"
	"github.com/castlemilk/finintel/backend/internal/store"
)

// HistoryPeriods is the number of equal-length prior periods compared against.
const HistoryPeriods = 3

// CategoryHistoryMonths is the number of trailing months of category totals.
const CategoryHistoryMonths = 6

// Detector runs every anomaly detection over a date range.
type Detector struct {
	agg    *aggregate.Aggregator
	store  store.Store
	cfg    config.IntelligenceConfig
	money  *money.Formatter
	logger *zap.Logger
}

// NewDetector creates a Detector.
func NewDetector(agg *aggregate.Aggregator, s store.Store, cfg config.IntelligenceConfig, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		agg:    agg,
		store:  s,
		cfg:    cfg,
		money:  money.NewFormatter(cfg.Locale, cfg.Currency),
		logger: logger.Named("anomaly"),
	}
}

// periodHistory holds the current period and the prior equal-length periods.
type periodHistory struct {
	current aggregate.PeriodStats
	prior   []aggregate.PeriodStats
}

func (h periodHistory) expenses() []float64 {
	out := make([]float64, len(h.prior))
	for i, p := range h.prior {
		out[i] = p.TotalExpenses
	}
	return out
}

func (h periodHistory) incomes() []float64 {
	out := make([]float64, len(h.prior))
	for i, p := range h.prior {
		out[i] = p.TotalIncome
	}
	return out
}

func (h periodHistory) nets() []float64 {
	out := make([]float64, len(h.prior))
	for i, p := range h.prior {
		out[i] = p.Net()
	}
	return out
}

// DetectAll unions every detection over [start, end], sorted by severity and
// confidence. A failing detection is skipped; its error is joined into the
// returned error alongside whatever the other detections found.
func (d *Detector) DetectAll(ctx context.Context, start, end time.Time) ([]Anomaly, error) {
	var items []Anomaly
	var errs []error

	history, err := d.history(ctx, start, end)
	if err != nil {
		errs = append(errs, err)
	} else {
		items = append(items, d.expenseAnomalies(history)...)
		items = append(items, d.incomeAnomalies(history)...)
		items = append(items, d.cashFlowAnomalies(history)...)
	}

	detections := []struct {
		name string
		run  func(context.Context, time.Time, time.Time) ([]Anomaly, error)
	}{
		{"category", d.CategoryAnomalies},
		{"invoices", d.InvoiceAnomalies},
		{"outliers", d.TransactionOutliers},
	}
	for _, det := range detections {
		found, err := det.run(ctx, start, end)
		if err != nil {
			d.logger.Warn("detection failed", zap.String("detection", det.name), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		items = append(items, found...)
	}

	Sort(items)
	return items, errors.Join(errs...)
}

func (d *Detector) history(ctx context.Context, start, end time.Time) (periodHistory, error) {
	var h periodHistory
	cur, err := d.agg.PeriodStats(ctx, start, end, aggregate.PeriodFilter{})
	if err != nil {
		return h, fmt.Errorf("current period: %w", err)
	}
	h.current = cur
	for k := 1; k <= HistoryPeriods; k++ {
		ps, pe := model.PreviousPeriod(start, end, k)
		prev, err := d.agg.PeriodStats(ctx, ps, pe, aggregate.PeriodFilter{})
		if err != nil {
			return h, fmt.Errorf("prior period %d: %w", k, err)
		}
		h.prior = append(h.prior, prev)
	}
	return h, nil
}

// ExpenseAnomalies flags a period whose total expenses sit far above the prior periods.
func (d *Detector) ExpenseAnomalies(ctx context.Context, start, end time.Time) ([]Anomaly, error) {
	h, err := d.history(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return d.expenseAnomalies(h), nil
}

func (d *Detector) expenseAnomalies(h periodHistory) []Anomaly {
	history := h.expenses()
	current := h.current.TotalExpenses
	ev := Evaluate(current, history, d.cfg.ZScoreThreshold, d.cfg.IQRFactor)
	if !ev.High {
		return nil
	}
	return []Anomaly{{
		Type:             TypeExpense,
		Severity:         ev.Severity,
		Confidence:       Confidence(ev.Z, len(history)),
		Message:          fmt.Sprintf("Expenses are well above their usual level for the period: %s against a usual %s (z-score %s)", d.money.Format(current), d.money.Format(ev.Mean), d.money.Number(ev.Z)),
		Method:           ev.Method,
		CurrentValue:     current,
		HistoricalMean:   model.Float(ev.Mean),
		HistoricalStdDev: model.Float(ev.StdDev),
		ZScore:           model.Float(ev.Z),
	}}
}

// IncomeAnomalies flags income far above the prior periods, and shortfalls
// below mean - threshold*stddev.
func (d *Detector) IncomeAnomalies(ctx context.Context, start, end time.Time) ([]Anomaly, error) {
	h, err := d.history(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return d.incomeAnomalies(h), nil
}

func (d *Detector) incomeAnomalies(h periodHistory) []Anomaly {
	history := h.incomes()
	current := h.current.TotalIncome
	ev := Evaluate(current, history, d.cfg.ZScoreThreshold, d.cfg.IQRFactor)

	a := Anomaly{
		Severity:         ev.Severity,
		Confidence:       Confidence(ev.Z, len(history)),
		Method:           MethodZScore,
		CurrentValue:     current,
		HistoricalMean:   model.Float(ev.Mean),
		HistoricalStdDev: model.Float(ev.StdDev),
		ZScore:           model.Float(ev.Z),
	}
	switch {
	case ev.Z >= d.cfg.ZScoreThreshold:
		a.Type = TypeIncome
		a.Message = fmt.Sprintf("Income is unusually high compared to previous periods: %s against a usual %s", d.money.Format(current), d.money.Format(ev.Mean))
	case current < ev.Mean-d.cfg.ZScoreThreshold*ev.StdDev && ev.StdDev > 0:
		a.Type = TypeIncomeShortfall
		a.Message = fmt.Sprintf("Income fell short of its usual level for the period: %s against a usual %s", d.money.Format(current), d.money.Format(ev.Mean))
	default:
		return nil
	}
	return []Anomaly{a}
}

// CashFlowAnomalies flags a negative net when prior periods were positive on average.
func (d *Detector) CashFlowAnomalies(ctx context.Context, start, end time.Time) ([]Anomaly, error) {
	h, err := d.history(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return d.cashFlowAnomalies(h), nil
}

func (d *Detector) cashFlowAnomalies(h periodHistory) []Anomaly {
	current := h.current.Net()
	mean := stats.Mean(h.nets())
	if current >= 0 || mean <= 0 {
		return nil
	}
	severity := model.SeverityMedium
	if math.Abs(current) > math.Abs(mean) {
		severity = model.SeverityHigh
	}
	return []Anomaly{{
		Type:           TypeCashFlowNegative,
		Severity:       severity,
		Confidence:     cashFlowConfidence,
		Message:        fmt.Sprintf("Cash flow turned negative after a positive average before: %s against an average of %s", d.money.Format(current), d.money.Format(mean)),
		Method:         MethodThreshold,
		CurrentValue:   current,
		HistoricalMean: model.Float(mean),
	}}
}

// CategoryAnomalies compares each category's spending in [start, end] with
// its trailing monthly totals scaled to the period length.
func (d *Detector) CategoryAnomalies(ctx context.Context, start, end time.Time) ([]Anomaly, error) {
	current, err := d.agg.Transactions(ctx, start, end, model.DirectionExpense)
	if err != nil {
		return nil, fmt.Errorf("category anomalies: %w", err)
	}
	lastMonth := model.MonthStart(start).AddDate(0, -1, 0)
	monthly, err := d.agg.CategoryMonthlyTotals(ctx, CategoryHistoryMonths, lastMonth)
	if err != nil {
		return nil, fmt.Errorf("category anomalies: %w", err)
	}

	scale := float64(model.PeriodDays(start, end)) / 30.0
	cats := aggregate.GroupByCategory(current)
	sort.Slice(cats, func(i, j int) bool { return cats[i].Category < cats[j].Category })

	var items []Anomaly
	for _, c := range cats {
		totals, ok := monthly[c.Category]
		if !ok || stats.Mean(totals) <= 0 {
			continue
		}
		history := make([]float64, len(totals))
		for i, v := range totals {
			history[i] = v * scale
		}
		ev := Evaluate(c.TotalExpenses, history, d.cfg.ZScoreThreshold, d.cfg.IQRFactor)
		expected := ev.Mean
		ratio := c.TotalExpenses / expected

		severity := ev.Severity
		method := ev.Method
		if ratio > CategoryRatioLimit {
			severity = model.MaxSeverity(severity, model.SeverityMedium)
			if !ev.High {
				method = MethodRatio
			}
		} else if !ev.High {
			continue
		}

		confidence := Confidence(ev.Z, len(history))
		if method == MethodRatio {
			confidence = math.Max(confidence, math.Min(maxConfidence, ratio/(2*CategoryRatioLimit)))
		}
		items = append(items, Anomaly{
			Type:             TypeCategoryExpense,
			Category:         c.Category,
			Severity:         severity,
			Confidence:       confidence,
			Message:          fmt.Sprintf("Unusual spending in %s compared to its monthly history: %s against an expected %s", money.Label(c.Category), d.money.Format(c.TotalExpenses), d.money.Format(expected)),
			Method:           method,
			CurrentValue:     c.TotalExpenses,
			HistoricalMean:   model.Float(ev.Mean),
			HistoricalStdDev: model.Float(ev.StdDev),
			ZScore:           model.Float(ev.Z),
			ExpectedValue:    model.Float(expected),
		})
	}
	return items, nil
}

// InvoiceAnomalies reports the total of currently overdue unpaid invoices.
func (d *Detector) InvoiceAnomalies(ctx context.Context, _, _ time.Time) ([]Anomaly, error) {
	overdue, err := d.store.ListOverdueInvoices(ctx, d.agg.Now())
	if err != nil {
		return nil, fmt.Errorf("overdue invoices: %w", err)
	}
	var total money.Accumulator
	for _, inv := range overdue {
		total.Add(inv.Total())
	}
	sum := total.Float()
	if sum <= 0 {
		return nil, nil
	}
	severity := model.SeverityMedium
	if sum > OverdueHighAmount {
		severity = model.SeverityHigh
	}
	return []Anomaly{{
		Type:         TypeOverdueInvoices,
		Severity:     severity,
		Confidence:   invoiceConfidence,
		Message:      fmt.Sprintf("Overdue invoices are outstanding and need follow-up: %d invoices total %s", len(overdue), d.money.Format(sum)),
		Method:       MethodThreshold,
		CurrentValue: sum,
		InvoiceCount: len(overdue),
	}}, nil
}

// TransactionOutliers flags single expenses of at least max(500, 3×median).
func (d *Detector) TransactionOutliers(ctx context.Context, start, end time.Time) ([]Anomaly, error) {
	txs, err := d.agg.Transactions(ctx, start, end, model.DirectionExpense)
	if err != nil {
		return nil, fmt.Errorf("transaction outliers: %w", err)
	}
	if len(txs) == 0 {
		return nil, nil
	}

	amounts := make([]float64, len(txs))
	for i, tx := range txs {
		amounts[i] = tx.AbsAmount()
	}
	median := stats.Median(amounts)
	if median <= 0 {
		return nil, nil
	}
	threshold := math.Max(OutlierMinAmount, OutlierMedianFactor*median)

	var items []Anomaly
	for _, tx := range txs {
		amount := tx.AbsAmount()
		if amount < threshold {
			continue
		}
		ratio := amount / median
		severity := model.SeverityMedium
		if ratio >= OutlierHighFactor {
			severity = model.SeverityHigh
		}
		date := tx.Date
		items = append(items, Anomaly{
			Type:          TypeTransactionOutlier,
			Category:      tx.Category,
			Severity:      severity,
			Confidence:    math.Min(maxConfidence, 0.5+ratio/20),
			Message:       fmt.Sprintf("Unusually large expense %q on %s: %s is %s times the typical expense", tx.Description, tx.Date.Format(time.DateOnly), d.money.Format(amount), d.money.Number(ratio)),
			Method:        MethodRatio,
			CurrentValue:  amount,
			ExpectedValue: model.Float(median),
			TransactionID: tx.ID,
			Date:          &date,
		})
	}
	return items, nil
}
