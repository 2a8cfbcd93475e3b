package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/castlemilk/finintel/backend/internal/aggregate"
	"github.com/castlemilk/finintel/backend/internal/alerts"
	"github.com/castlemilk/finintel/backend/internal/anomaly"
	"github.com/castlemilk/finintel/backend/internal/auth"
	"github.com/castlemilk/finintel/backend/internal/categorize"
	"github.com/castlemilk/finintel/backend/internal/config"
	"github.com/castlemilk/finintel/backend/internal/insights"
	"github.com/castlemilk/finintel/backend/internal/intelligence"
	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/pattern"
	"github.com/castlemilk/finintel/backend/internal/predict"
	"github.com/castlemilk/finintel/backend/internal/recommend"
	"github.com/castlemilk/finintel/backend/internal/store"
)

var now = time.Date(2026, 7, 15, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func newTestService(t *testing.T, s store.Store) *IntelligenceService {
	t.Helper()
	cfg := config.DefaultIntelligenceConfig()
	agg := aggregate.NewAggregator(s)
	agg.SetClock(clock)
	patterns := pattern.NewAnalyzer(agg, cfg, nil)
	predictions := predict.NewAnalyzer(agg, patterns, cfg, nil)
	alertManager := alerts.NewManager(s, cfg, nil)
	alertManager.SetClock(clock)
	engine := categorize.NewEngine(s, nil)
	engine.SetClock(clock)

	orchestrator, err := intelligence.NewOrchestrator(intelligence.Components{
		Aggregator:      agg,
		Anomalies:       anomaly.NewDetector(agg, s, cfg, nil),
		Patterns:        patterns,
		Insights:        insights.NewGenerator(agg, s, cfg, nil),
		Recommendations: recommend.NewEngine(agg, s, cfg, nil),
		Predictions:     predictions,
		Alerts:          alertManager,
	}, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(orchestrator.Close)

	return NewIntelligenceService(Deps{
		Store:        s,
		Aggregator:   agg,
		Orchestrator: orchestrator,
		Engine:       engine,
		Predictions:  predictions,
		Alerts:       alertManager,
	}, nil)
}

func juneLedger(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	txs := []struct {
		day      int
		amount   float64
		desc     string
		category string
		txType   model.TransactionType
	}{
		{5, 3000, "STIPENDIO GIUGNO", "salary", model.TransactionTypePersonal},
		{10, -800, "AFFITTO GIUGNO", "rent", model.TransactionTypePersonal},
		{20, -200, "CANCELLERIA UFFICIO", "office", model.TransactionTypeBusiness},
	}
	for _, tt := range txs {
		tx := &model.Transaction{
			Date:        time.Date(2026, 6, tt.day, 10, 0, 0, 0, time.UTC),
			Amount:      tt.amount,
			Description: tt.desc,
			Category:    tt.category,
		}
		tx.SetType(tt.txType)
		require.NoError(t, s.CreateTransaction(context.Background(), tx))
	}
	return s
}

func TestHandlerOverHTTP(t *testing.T) {
	svc := newTestService(t, juneLedger(t))
	path, handler := NewHandler(svc, connect.WithInterceptors(auth.OperatorInterceptor("s3cret", nil)))

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	defer server.Close()

	client := connect.NewClient[GetReportRequest, intelligence.Report](
		http.DefaultClient,
		server.URL+GetReportProcedure,
		connect.WithCodec(Codec()),
	)

	t.Run("requires the operator token", func(t *testing.T) {
		_, err := client.CallUnary(context.Background(), connect.NewRequest(&GetReportRequest{PeriodDays: 30}))
		require.Error(t, err)
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("returns the report", func(t *testing.T) {
		req := connect.NewRequest(&GetReportRequest{PeriodDays: 60})
		req.Header().Set("Authorization", "Bearer s3cret")
		resp, err := client.CallUnary(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 60, resp.Msg.PeriodDays)
		assert.Equal(t, 3000.0, resp.Msg.Summary.TotalIncome)
		assert.Equal(t, 1000.0, resp.Msg.Summary.TotalExpenses)
		assert.Len(t, resp.Msg.Sections, 6)
		assert.False(t, resp.Msg.Cached)
	})

	t.Run("invalid period", func(t *testing.T) {
		req := connect.NewRequest(&GetReportRequest{PeriodDays: -1})
		req.Header().Set("Authorization", "Bearer s3cret")
		_, err := client.CallUnary(context.Background(), req)
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})
}

func TestReportCacheLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, juneLedger(t))

	first, err := svc.GetReport(ctx, connect.NewRequest(&GetReportRequest{PeriodDays: 30}))
	require.NoError(t, err)
	assert.False(t, first.Msg.Cached)

	second, err := svc.GetReport(ctx, connect.NewRequest(&GetReportRequest{PeriodDays: 30}))
	require.NoError(t, err)
	assert.True(t, second.Msg.Cached)

	forced, err := svc.GetReport(ctx, connect.NewRequest(&GetReportRequest{PeriodDays: 30, ForceRefresh: true}))
	require.NoError(t, err)
	assert.False(t, forced.Msg.Cached)

	_, err = svc.InvalidateCache(ctx, connect.NewRequest(&InvalidateCacheRequest{}))
	require.NoError(t, err)
	after, err := svc.GetReport(ctx, connect.NewRequest(&GetReportRequest{PeriodDays: 30}))
	require.NoError(t, err)
	assert.False(t, after.Msg.Cached)
}

func TestCategorize(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	svc := newTestService(t, s)

	stored := &model.Transaction{Description: "ADDEBITO SDD ENEL ENERGIA BOLLETTA", Amount: -80, Date: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, s.CreateTransaction(ctx, stored))

	tests := []struct {
		name     string
		req      *CategorizeRequest
		wantCode connect.Code
		wantCat  string
	}{
		{
			name:    "inline transaction",
			req:     &CategorizeRequest{Transaction: &model.Transaction{Description: "ADDEBITO SDD ENEL ENERGIA BOLLETTA", Amount: -80, Date: stored.Date}},
			wantCat: "utilities",
		},
		{
			name:    "stored transaction",
			req:     &CategorizeRequest{TransactionID: stored.ID},
			wantCat: "utilities",
		},
		{
			name:     "unknown transaction",
			req:      &CategorizeRequest{TransactionID: "missing"},
			wantCode: connect.CodeNotFound,
		},
		{
			name:     "nothing to categorize",
			req:      &CategorizeRequest{},
			wantCode: connect.CodeInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Categorize(ctx, connect.NewRequest(tt.req))
			if tt.wantCode != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, connect.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCat, resp.Msg.Category)
		})
	}

	got, err := s.GetTransaction(ctx, stored.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Category, "categorize does not persist")
}

func TestApplyCategorization(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	svc := newTestService(t, s)

	tx := &model.Transaction{Description: "ADDEBITO SDD ENEL ENERGIA BOLLETTA", Amount: -80, Date: time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, s.CreateTransaction(ctx, tx))

	resp, err := svc.ApplyCategorization(ctx, connect.NewRequest(&ApplyCategorizationRequest{
		Range: DateRange{Start: "2026-06-01", End: "2026-06-30"},
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Msg.Processed)
	assert.Equal(t, 1, resp.Msg.Categorized)

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "utilities", got.Category)

	for _, r := range []DateRange{
		{Start: "01/06/2026"},
		{End: "2026-13-01"},
		{Start: "2026-07-01", End: "2026-06-01"},
	} {
		_, err := svc.ApplyCategorization(ctx, connect.NewRequest(&ApplyCategorizationRequest{Range: r}))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err), "%+v", r)
	}
}

func TestLearning(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	svc := newTestService(t, s)

	tx := &model.Transaction{Description: "BONIFICO STUDIO ROSSI CONSULENZA FISCALE", Amount: -610, Date: time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC)}
	require.NoError(t, s.CreateTransaction(ctx, tx))

	t.Run("learn from stored transaction", func(t *testing.T) {
		resp, err := svc.LearnFromTransaction(ctx, connect.NewRequest(&LearnFromTransactionRequest{
			TransactionID: tx.ID,
			CategoryID:    "professional_services",
			IsBusiness:    true,
		}))
		require.NoError(t, err)
		require.NotNil(t, resp.Msg.Record)
		assert.Equal(t, "professional_services", resp.Msg.Record.AssignedCategoryID)
		assert.Equal(t, model.AssignedByManual, resp.Msg.Record.AssignedBy)
	})

	t.Run("category is required", func(t *testing.T) {
		_, err := svc.LearnFromTransaction(ctx, connect.NewRequest(&LearnFromTransactionRequest{TransactionID: tx.ID}))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})

	t.Run("correction", func(t *testing.T) {
		resp, err := svc.LearnFromCorrection(ctx, connect.NewRequest(&LearnFromCorrectionRequest{
			TransactionID: tx.ID,
			OldCategory:   "professional_services",
			NewCategory:   "accounting",
		}))
		require.NoError(t, err)
		assert.Equal(t, "accounting", resp.Msg.Record.AssignedCategoryID)
		assert.Equal(t, 1, resp.Msg.Penalized)
	})

	t.Run("correction of unknown transaction", func(t *testing.T) {
		_, err := svc.LearnFromCorrection(ctx, connect.NewRequest(&LearnFromCorrectionRequest{
			TransactionID: "missing",
			NewCategory:   "accounting",
		}))
		assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
	})
}

func TestGetPeriodStats(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, juneLedger(t))

	resp, err := svc.GetPeriodStats(ctx, connect.NewRequest(&GetPeriodStatsRequest{
		Range: DateRange{Start: "2026-06-01", End: "2026-06-30"},
	}))
	require.NoError(t, err)
	assert.Equal(t, "2026-06-01", resp.Msg.Start)
	assert.Equal(t, "2026-06-30", resp.Msg.End)
	assert.Equal(t, 3000.0, resp.Msg.Stats.TotalIncome)
	assert.Equal(t, 1000.0, resp.Msg.Stats.TotalExpenses)
	assert.Equal(t, 3, resp.Msg.Stats.TransactionCount)
	assert.Equal(t, 2000.0, resp.Msg.NetCashflow)
	require.Len(t, resp.Msg.Categories, 3)
	assert.Equal(t, "salary", resp.Msg.Categories[0].Category)
	require.Len(t, resp.Msg.TopExpenses, 2)
	assert.Equal(t, "rent", resp.Msg.TopExpenses[0].Category)
	assert.Equal(t, "office", resp.Msg.TopExpenses[1].Category)
	assert.Equal(t, 200.0, resp.Msg.BusinessVsPersonal.Business.Expenses)
	assert.Equal(t, 800.0, resp.Msg.BusinessVsPersonal.Personal.Expenses)

	business, err := svc.GetPeriodStats(ctx, connect.NewRequest(&GetPeriodStatsRequest{
		Range: DateRange{Start: "2026-06-01", End: "2026-06-30"},
		Type:  model.TransactionTypeBusiness,
	}))
	require.NoError(t, err)
	assert.Equal(t, 200.0, business.Msg.Stats.TotalExpenses)
	assert.Equal(t, 1, business.Msg.Stats.TransactionCount)
	require.Len(t, business.Msg.TopExpenses, 1)
	assert.Equal(t, "office", business.Msg.TopExpenses[0].Category)

	_, err = svc.GetPeriodStats(ctx, connect.NewRequest(&GetPeriodStatsRequest{Type: "corporate"}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestGetTrendAndPredictions(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, juneLedger(t))

	trend, err := svc.GetTrend(ctx, connect.NewRequest(&GetTrendRequest{}))
	require.NoError(t, err)
	require.Len(t, trend.Msg.Months, 12)
	assert.Equal(t, 3000.0, trend.Msg.Months[10].Income)

	preds, err := svc.GetPredictions(ctx, connect.NewRequest(&GetPredictionsRequest{}))
	require.NoError(t, err)
	assert.Equal(t, predict.DefaultDaysAhead, preds.Msg.DaysAhead)

	_, err = svc.GetPredictions(ctx, connect.NewRequest(&GetPredictionsRequest{DaysAhead: 1000}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestAlerts(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	svc := newTestService(t, s)

	alert, created, err := svc.alerts.Create(ctx, alerts.Request{Type: alerts.TypeLowBalance, Severity: model.SeverityHigh, Message: "Total balance is below threshold"})
	require.NoError(t, err)
	require.True(t, created)

	open, err := svc.ListAlerts(ctx, connect.NewRequest(&ListAlertsRequest{UnacknowledgedOnly: true}))
	require.NoError(t, err)
	require.Len(t, open.Msg.Alerts, 1)

	_, err = svc.AcknowledgeAlert(ctx, connect.NewRequest(&AcknowledgeAlertRequest{ID: alert.ID}))
	require.NoError(t, err)

	open, err = svc.ListAlerts(ctx, connect.NewRequest(&ListAlertsRequest{UnacknowledgedOnly: true}))
	require.NoError(t, err)
	assert.NotNil(t, open.Msg.Alerts)
	assert.Empty(t, open.Msg.Alerts)

	_, err = svc.AcknowledgeAlert(ctx, connect.NewRequest(&AcknowledgeAlertRequest{ID: "missing"}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
	_, err = svc.AcknowledgeAlert(ctx, connect.NewRequest(&AcknowledgeAlertRequest{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestStoreFailuresAreInternal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := store.NewMockStore(ctrl)
	svc := newTestService(t, mockStore)
	ctx := context.Background()

	mockStore.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))
	_, err := svc.GetTrend(ctx, connect.NewRequest(&GetTrendRequest{}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInternal, connect.CodeOf(err))
	assert.Contains(t, err.Error(), "connection refused")

	mockStore.EXPECT().ListAlerts(gomock.Any(), gomock.Any()).Return(nil, context.DeadlineExceeded)
	_, err = svc.ListAlerts(ctx, connect.NewRequest(&ListAlertsRequest{}))
	assert.Equal(t, connect.CodeDeadlineExceeded, connect.CodeOf(err))
}
