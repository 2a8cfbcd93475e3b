package recommend

import (
	"context"
	"errors"
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
	now   = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	start = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
)

func day(m time.Month, d int) time.Time {
	return time.Date(2026, m, d, 10, 0, 0, 0, time.UTC)
}

func dayPtr(m time.Month, d int) *time.Time {
	t := time.Date(2026, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func newEngine(t *testing.T, s store.Store) *Engine {
	t.Helper()
	agg := aggregate.NewAggregator(s)
	agg.SetClock(func() time.Time { return now })
	return NewEngine(agg, s, config.DefaultIntelligenceConfig(), nil)
}

func seededStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	txs := []*model.Transaction{
		{Date: day(time.May, 5), Amount: 5000, Category: "salary"},
		{Date: day(time.May, 10), Amount: -1000, Category: "rent"},
		{Date: day(time.May, 12), Amount: -400, Category: "groceries"},
		{Date: day(time.May, 20), Amount: -200, Category: "travel"},
		{Date: day(time.June, 5), Amount: 4000, Category: "salary"},
		{Date: day(time.June, 10), Amount: -1000, Category: "rent"},
		{Date: day(time.June, 12), Amount: -1000, Category: "groceries"},
		{Date: day(time.June, 20), Amount: -250, Category: "travel"},
		{Date: day(time.June, 21), Amount: -50, Category: "bank_fees"},
	}
	for _, tx := range txs {
		require.NoError(t, s.CreateTransaction(ctx, tx))
	}
	invoices := []*model.Invoice{
		{ID: "a", InvoiceNumber: "2026/010", IssueDate: *dayPtr(time.April, 1), DueDate: dayPtr(time.May, 1), TotalAmount: 3000, Status: model.InvoiceStatusPending},
		{ID: "b", InvoiceNumber: "2026/021", IssueDate: *dayPtr(time.June, 15), DueDate: dayPtr(time.July, 15), Amount: 1250, TaxAmount: 250, Status: model.InvoiceStatusSent},
		{ID: "c", InvoiceNumber: "2026/005", IssueDate: *dayPtr(time.March, 1), DueDate: dayPtr(time.April, 1), TotalAmount: 900, Status: model.InvoiceStatusPaid},
	}
	for _, inv := range invoices {
		require.NoError(t, s.UpsertInvoice(ctx, inv))
	}
	return s
}

func TestGenerateRecommendations(t *testing.T) {
	ctx := context.Background()

	t.Run("every family fires", func(t *testing.T) {
		items, err := newEngine(t, seededStore(t)).GenerateRecommendations(ctx, start, end)
		require.NoError(t, err)

		type key struct {
			trigger  string
			category string
			priority model.Severity
		}
		var got []key
		for _, r := range items {
			got = append(got, key{r.TriggerType, r.Category, r.Priority})
		}
		assert.Equal(t, []key{
			{TriggerOverdueInvoices, "", model.SeverityCritical},
			{TriggerIncomeDecline, "", model.SeverityHigh},
			{TriggerExpenseGrowth, "", model.SeverityHigh},
			{TriggerCategoryConcentration, "groceries", model.SeverityHigh},
			{TriggerCategoryConcentration, "rent", model.SeverityHigh},
			{TriggerUnpaidInvoices, "", model.SeverityMedium},
			{TriggerLowCoverage, "", model.SeverityMedium},
			{TriggerCategoryGrowth, "groceries", model.SeverityMedium},
			{TriggerCategoryConcentration, "travel", model.SeverityMedium},
		}, got)

		collection := items[0]
		assert.Equal(t, 3000.0, *collection.TotalAmount)
		assert.Equal(t, 61, collection.MaxDaysOverdue)
		assert.Equal(t, 54.0, *collection.DSO)

		assert.Equal(t, 1000.0, *items[1].Amount)
		assert.Equal(t, -20.0, *items[1].VariationPercentage)
		assert.Equal(t, 43.8, *items[2].VariationPercentage)
		assert.Equal(t, 100.0, *items[3].PotentialSavings)
		assert.Equal(t, 4500.0, *items[5].TotalAmount)
		assert.Equal(t, 2, items[5].InvoiceCount)
		assert.Equal(t, 1800.0, *items[6].Amount)
		assert.Equal(t, 2.2, *items[6].CoverageMonths)
		assert.Equal(t, 600.0, *items[7].Amount)
		assert.Equal(t, 25.0, *items[8].PotentialSavings)
	})

	t.Run("negative cash flow with no buffer", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.CreateTransaction(ctx, &model.Transaction{Date: day(time.June, 3), Amount: -3000, Category: "taxes"}))

		items, err := newEngine(t, s).GenerateRecommendations(ctx, start, end)
		require.NoError(t, err)
		require.Len(t, items, 3)
		for _, r := range items[:2] {
			assert.Equal(t, model.SeverityCritical, r.Priority)
		}
		assert.Equal(t, TriggerLowCoverage, items[0].TriggerType, "shortfall 12000 outranks cash flow 3000")
		assert.Equal(t, TriggerNegativeCashflow, items[1].TriggerType)
		assert.Equal(t, -3000.0, *items[1].Cashflow)
	})

	t.Run("empty ledger", func(t *testing.T) {
		items, err := newEngine(t, store.NewMemoryStore()).GenerateRecommendations(ctx, start, end)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("invoice failure skips the families that need invoices", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockStore := store.NewMockStore(ctrl)
		mockStore.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).Return([]*model.Transaction{
			{ID: "x", Date: day(time.June, 3), Amount: -500, Category: "rent"},
		}, nil).Times(2)
		mockStore.EXPECT().ListInvoices(gomock.Any(), gomock.Any()).Return(nil, errors.New("quota exceeded"))
		mockStore.EXPECT().ListOverdueInvoices(gomock.Any(), now).Return(nil, nil)
		mockStore.EXPECT().GetTotalBalance(gomock.Any()).Return(10000.0, nil)

		items, err := newEngine(t, mockStore).GenerateRecommendations(ctx, start, end)
		assert.ErrorContains(t, err, "income")
		assert.ErrorContains(t, err, "quota exceeded")
		require.NotEmpty(t, items)
		for _, r := range items {
			assert.NotEqual(t, TypeIncome, r.Type)
		}
	})
}

func TestImpactScore(t *testing.T) {
	f := model.Float
	tests := []struct {
		name string
		r    Recommendation
		want float64
	}{
		{"explicit impact wins", Recommendation{Impact: f(5), PotentialSavings: f(50)}, 5},
		{"potential savings", Recommendation{PotentialSavings: f(50), TotalAmount: f(500)}, 50},
		{"total amount", Recommendation{TotalAmount: f(500), Amount: f(70)}, 500},
		{"amount", Recommendation{Amount: f(70), Cashflow: f(-900)}, 70},
		{"negative cash flow", Recommendation{Cashflow: f(-900), VariationPercentage: f(12)}, 900},
		{"positive cash flow falls through", Recommendation{Cashflow: f(900), VariationPercentage: f(-12)}, 12},
		{"nothing", Recommendation{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.ImpactScore())
		})
	}
}

func TestSortIsNonIncreasing(t *testing.T) {
	f := model.Float
	items := []Recommendation{
		{Priority: model.SeverityLow, Amount: f(10000)},
		{Priority: model.SeverityHigh, Amount: f(10)},
		{Priority: model.SeverityCritical, Cashflow: f(-50)},
		{Priority: model.SeverityHigh, PotentialSavings: f(300)},
		{Priority: model.SeverityMedium},
	}
	Sort(items)
	for i := 1; i < len(items); i++ {
		prev, cur := items[i-1], items[i]
		require.GreaterOrEqual(t, prev.Priority.Rank(), cur.Priority.Rank())
		if prev.Priority == cur.Priority {
			assert.GreaterOrEqual(t, prev.ImpactScore(), cur.ImpactScore())
		}
	}
	assert.Equal(t, 300.0, *items[1].PotentialSavings)
}

func TestDSO(t *testing.T) {
	asOf := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	invoices := []*model.Invoice{
		{IssueDate: asOf.AddDate(0, 0, -60)},
		{IssueDate: asOf.AddDate(0, 0, -20)},
	}
	assert.Equal(t, 40.0, DSO(invoices, asOf))
	assert.Zero(t, DSO(nil, asOf))
}
