package anomaly

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/castlemilk/finintel/backend/internal/aggregate"
	"github.com/castlemilk/finintel/backend/internal/config"
	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/store"
)

var (
	now         = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	periodStart = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
)

func day(m time.Month, d int) time.Time {
	return time.Date(2026, m, d, 10, 0, 0, 0, time.UTC)
}

func newDetector(t *testing.T, s store.Store) *Detector {
	t.Helper()
	agg := aggregate.NewAggregator(s)
	agg.SetClock(func() time.Time { return now })
	return NewDetector(agg, s, config.DefaultIntelligenceConfig(), nil)
}

func seeded(t *testing.T, txs ...*model.Transaction) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	for _, tx := range txs {
		require.NoError(t, s.CreateTransaction(context.Background(), tx))
	}
	return s
}

func find(items []Anomaly, typ Type) (Anomaly, bool) {
	for _, a := range items {
		if a.Type == typ {
			return a, true
		}
	}
	return Anomaly{}, false
}

func TestSeverityForZIsMonotonic(t *testing.T) {
	prev := 0
	for z := 0.0; z <= 6; z += 0.05 {
		rank := SeverityForZ(z).Rank()
		assert.GreaterOrEqual(t, rank, prev, "z=%.2f", z)
		assert.Equal(t, rank, SeverityForZ(-z).Rank())
		prev = rank
	}
	assert.Equal(t, model.SeverityLow, SeverityForZ(1.99))
	assert.Equal(t, model.SeverityMedium, SeverityForZ(2))
	assert.Equal(t, model.SeverityHigh, SeverityForZ(2.5))
	assert.Equal(t, model.SeverityCritical, SeverityForZ(3))
}

func TestConfidence(t *testing.T) {
	assert.InDelta(t, 0.95, Confidence(9, 10), 1e-9)
	assert.InDelta(t, 0.2, Confidence(2, 3), 1e-9)
	assert.Zero(t, Confidence(0, 20))
}

func TestEvaluate(t *testing.T) {
	t.Run("expense spike is critical", func(t *testing.T) {
		ev := Evaluate(3000, []float64{1000, 1050, 980}, 2, 1.5)
		assert.True(t, ev.High)
		assert.Equal(t, MethodZScore, ev.Method)
		assert.Greater(t, ev.Z, 2.5)
		assert.True(t, ev.Severity.AtLeast(model.SeverityHigh))
	})

	t.Run("zero variance is neutral", func(t *testing.T) {
		ev := Evaluate(5000, []float64{100, 100, 100}, 2, 1.5)
		assert.Zero(t, ev.Z)
		assert.False(t, ev.High)
		assert.Equal(t, model.SeverityLow, ev.Severity)
	})

	t.Run("iqr needs four points", func(t *testing.T) {
		history := []float64{100, 100, 100, 100, 110, 90}
		ev := Evaluate(130, history, 10, 1.5)
		assert.True(t, ev.High)
		assert.Equal(t, MethodIQR, ev.Method)

		ev = Evaluate(130, history[:3], 10, 1.5)
		assert.False(t, ev.High)
	})

	t.Run("low side", func(t *testing.T) {
		ev := Evaluate(0, []float64{1000, 1100, 900}, 2, 1.5)
		assert.True(t, ev.Low)
		assert.False(t, ev.High)
	})
}

func TestDetectAll(t *testing.T) {
	ctx := context.Background()

	t.Run("expense spike against three prior months", func(t *testing.T) {
		s := seeded(t,
			&model.Transaction{Date: day(time.March, 15), Amount: -1000},
			&model.Transaction{Date: day(time.April, 15), Amount: -1050},
			&model.Transaction{Date: day(time.May, 15), Amount: -980},
			&model.Transaction{Date: day(time.June, 10), Amount: -3000},
		)
		items, err := newDetector(t, s).DetectAll(ctx, periodStart, periodEnd)
		require.NoError(t, err)

		a, ok := find(items, TypeExpense)
		require.True(t, ok)
		assert.True(t, a.Severity.AtLeast(model.SeverityHigh))
		assert.Equal(t, 3000.0, a.CurrentValue)
		require.NotNil(t, a.HistoricalMean)
		assert.InDelta(t, 1010, *a.HistoricalMean, 1e-9)
		assert.Contains(t, a.Message, "€")

		c, ok := find(items, TypeCategoryExpense)
		require.True(t, ok)
		assert.Equal(t, aggregate.Uncategorized, c.Category)
		assert.True(t, strings.HasPrefix(c.Message, "Unusual spending in Uncategorized compared to its monthly history"), c.Message)

		for i := 1; i < len(items); i++ {
			prev, cur := items[i-1], items[i]
			require.GreaterOrEqual(t, prev.Severity.Rank(), cur.Severity.Rank())
			if prev.Severity == cur.Severity {
				require.GreaterOrEqual(t, prev.Confidence, cur.Confidence)
			}
		}
	})

	t.Run("quiet period has no anomalies", func(t *testing.T) {
		s := seeded(t,
			&model.Transaction{Date: time.Date(2025, time.December, 15, 10, 0, 0, 0, time.UTC), Amount: -990},
			&model.Transaction{Date: day(time.January, 15), Amount: -1010},
			&model.Transaction{Date: day(time.February, 15), Amount: -1030},
			&model.Transaction{Date: day(time.March, 15), Amount: -1000},
			&model.Transaction{Date: day(time.April, 15), Amount: -1050},
			&model.Transaction{Date: day(time.May, 15), Amount: -980},
			&model.Transaction{Date: day(time.June, 15), Amount: -1020},
		)
		items, err := newDetector(t, s).DetectAll(ctx, periodStart, periodEnd)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("empty store", func(t *testing.T) {
		items, err := newDetector(t, store.NewMemoryStore()).DetectAll(ctx, periodStart, periodEnd)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestIncomeAndCashFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("income shortfall is one-sided", func(t *testing.T) {
		s := seeded(t,
			&model.Transaction{Date: day(time.March, 10), Amount: 2000},
			&model.Transaction{Date: day(time.April, 10), Amount: 2100},
			&model.Transaction{Date: day(time.May, 10), Amount: 1900},
			&model.Transaction{Date: day(time.June, 10), Amount: 500},
		)
		items, err := newDetector(t, s).IncomeAnomalies(ctx, periodStart, periodEnd)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, TypeIncomeShortfall, items[0].Type)
		assert.Equal(t, model.SeverityCritical, items[0].Severity)
	})

	t.Run("income spike is an income anomaly", func(t *testing.T) {
		s := seeded(t,
			&model.Transaction{Date: day(time.March, 10), Amount: 2000},
			&model.Transaction{Date: day(time.April, 10), Amount: 2100},
			&model.Transaction{Date: day(time.May, 10), Amount: 1900},
			&model.Transaction{Date: day(time.June, 10), Amount: 9000},
		)
		items, err := newDetector(t, s).IncomeAnomalies(ctx, periodStart, periodEnd)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, TypeIncome, items[0].Type)
	})

	t.Run("negative cash flow after positive history", func(t *testing.T) {
		var txs []*model.Transaction
		for _, m := range []time.Month{time.March, time.April, time.May} {
			txs = append(txs,
				&model.Transaction{Date: day(m, 10), Amount: 2000},
				&model.Transaction{Date: day(m, 20), Amount: -1000},
			)
		}
		txs = append(txs, &model.Transaction{Date: day(time.June, 20), Amount: -1500})
		items, err := newDetector(t, seeded(t, txs...)).CashFlowAnomalies(ctx, periodStart, periodEnd)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, TypeCashFlowNegative, items[0].Type)
		assert.Equal(t, model.SeverityHigh, items[0].Severity)
		assert.Equal(t, -1500.0, items[0].CurrentValue)
	})
}

func TestCategoryAnomalies(t *testing.T) {
	ctx := context.Background()
	var txs []*model.Transaction
	for m := time.January; m <= time.May; m++ {
		txs = append(txs,
			&model.Transaction{Date: day(m, 5), Amount: -100, Category: "utilities"},
			&model.Transaction{Date: day(m, 6), Amount: -400, Category: "groceries"},
		)
	}
	txs = append(txs,
		&model.Transaction{Date: day(time.June, 5), Amount: -260, Category: "utilities"},
		&model.Transaction{Date: day(time.June, 6), Amount: -400, Category: "groceries"},
		&model.Transaction{Date: day(time.June, 7), Amount: -90, Category: "travel"},
	)
	items, err := newDetector(t, seeded(t, txs...)).CategoryAnomalies(ctx, periodStart, periodEnd)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "utilities", items[0].Category)
	assert.True(t, items[0].Severity.AtLeast(model.SeverityMedium))
	require.NotNil(t, items[0].ExpectedValue)
	assert.Greater(t, items[0].CurrentValue, 2*(*items[0].ExpectedValue))
}

func TestInvoiceAnomalies(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	due := now.AddDate(0, 0, -20)
	require.NoError(t, s.UpsertInvoice(ctx, &model.Invoice{ID: "a", InvoiceNumber: "1", Amount: 3000, TaxAmount: 660, Status: model.InvoiceStatusSent, DueDate: &due}))
	require.NoError(t, s.UpsertInvoice(ctx, &model.Invoice{ID: "b", InvoiceNumber: "2", TotalAmount: 2500, Status: model.InvoiceStatusPending, DueDate: &due}))
	require.NoError(t, s.UpsertInvoice(ctx, &model.Invoice{ID: "c", InvoiceNumber: "3", TotalAmount: 9000, Status: model.InvoiceStatusPaid, DueDate: &due}))

	items, err := newDetector(t, s).InvoiceAnomalies(ctx, periodStart, periodEnd)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.SeverityHigh, items[0].Severity)
	assert.Equal(t, 0.9, items[0].Confidence)
	assert.InDelta(t, 6160, items[0].CurrentValue, 1e-9)
	assert.Equal(t, 2, items[0].InvoiceCount)
}

func TestTransactionOutliers(t *testing.T) {
	ctx := context.Background()

	t.Run("flags large single expenses", func(t *testing.T) {
		s := seeded(t,
			&model.Transaction{ID: "1", Date: day(time.June, 1), Amount: -50},
			&model.Transaction{ID: "2", Date: day(time.June, 2), Amount: -60},
			&model.Transaction{ID: "3", Date: day(time.June, 3), Amount: -40},
			&model.Transaction{ID: "4", Date: day(time.June, 4), Amount: -55},
			&model.Transaction{ID: "5", Date: day(time.June, 5), Amount: -2000},
		)
		items, err := newDetector(t, s).TransactionOutliers(ctx, periodStart, periodEnd)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "5", items[0].TransactionID)
		assert.Equal(t, model.SeverityHigh, items[0].Severity)
		assert.Equal(t, 0.95, items[0].Confidence)
	})

	t.Run("floor of 500 applies to small ledgers", func(t *testing.T) {
		s := seeded(t,
			&model.Transaction{Date: day(time.June, 1), Amount: -10},
			&model.Transaction{Date: day(time.June, 2), Amount: -12},
			&model.Transaction{Date: day(time.June, 3), Amount: -11},
			&model.Transaction{Date: day(time.June, 4), Amount: -9},
			&model.Transaction{Date: day(time.June, 5), Amount: -400},
		)
		items, err := newDetector(t, s).TransactionOutliers(ctx, periodStart, periodEnd)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("three expenses are enough", func(t *testing.T) {
		s := seeded(t,
			&model.Transaction{ID: "a", Date: day(time.June, 1), Amount: -20},
			&model.Transaction{ID: "b", Date: day(time.June, 2), Amount: -30},
			&model.Transaction{ID: "c", Date: day(time.June, 3), Amount: -2000, Description: "Laptop"},
		)
		items, err := newDetector(t, s).TransactionOutliers(ctx, periodStart, periodEnd)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "c", items[0].TransactionID)
		assert.Equal(t, model.SeverityHigh, items[0].Severity)
		require.NotNil(t, items[0].ExpectedValue)
		assert.Equal(t, 30.0, *items[0].ExpectedValue)
	})

	t.Run("single expense is its own median", func(t *testing.T) {
		s := seeded(t, &model.Transaction{Date: day(time.June, 1), Amount: -5000})
		items, err := newDetector(t, s).TransactionOutliers(ctx, periodStart, periodEnd)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("no expenses", func(t *testing.T) {
		s := seeded(t, &model.Transaction{Date: day(time.June, 1), Amount: 5000})
		items, err := newDetector(t, s).TransactionOutliers(ctx, periodStart, periodEnd)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestDetectAllPartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := store.NewMockStore(ctrl)
	due := now.AddDate(0, 0, -3)
	mockStore.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).Return(nil, errors.New("deadline exceeded")).AnyTimes()
	mockStore.EXPECT().ListOverdueInvoices(gomock.Any(), now).Return([]*model.Invoice{
		{ID: "x", TotalAmount: 1200, Status: model.InvoiceStatusSent, DueDate: &due},
	}, nil)

	items, err := newDetector(t, mockStore).DetectAll(context.Background(), periodStart, periodEnd)
	assert.ErrorContains(t, err, "deadline exceeded")
	require.Len(t, items, 1)
	assert.Equal(t, TypeOverdueInvoices, items[0].Type)
	assert.Equal(t, model.SeverityMedium, items[0].Severity)
}

func TestSort(t *testing.T) {
	items := []Anomaly{
		{Type: "a", Severity: model.SeverityLow, Confidence: 0.9},
		{Type: "b", Severity: model.SeverityCritical, Confidence: 0.1},
		{Type: "c", Severity: model.SeverityHigh, Confidence: 0.5},
		{Type: "d", Severity: model.SeverityHigh, Confidence: 0.8},
	}
	Sort(items)
	got := make([]Type, len(items))
	for i, a := range items {
		got[i] = a.Type
	}
	assert.Equal(t, []Type{"b", "d", "c", "a"}, got)
}
