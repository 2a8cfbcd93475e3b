package alerts

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
	"github.com/castlemilk/finintel/backend/internal/anomaly"
	"github.com/castlemilk/finintel/backend/internal/config"
	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/store"
)

var now = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

func newManager(s store.Store, cfg config.IntelligenceConfig) *Manager {
	m := NewManager(s, cfg, nil)
	m.SetClock(func() time.Time { return now })
	return m
}

func TestCreateDeduplicates(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	m := newManager(s, config.DefaultIntelligenceConfig())

	base := strings.Repeat("x", DedupPrefixRunes)
	first, created, err := m.Create(ctx, Request{Type: TypeCriticalAnomaly, Severity: model.SeverityCritical, Message: base + " first"})
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, now, first.CreatedAt)
	assert.True(t, first.IsActive)

	again, created, err := m.Create(ctx, Request{Type: TypeCriticalAnomaly, Severity: model.SeverityCritical, Message: base + " second"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	_, created, err = m.Create(ctx, Request{Type: TypeLowBalance, Severity: model.SeverityHigh, Message: base + " second"})
	require.NoError(t, err)
	assert.True(t, created, "other alert types do not dedup")

	require.NoError(t, m.Acknowledge(ctx, first.ID))
	_, created, err = m.Create(ctx, Request{Type: TypeCriticalAnomaly, Severity: model.SeverityCritical, Message: base + " third"})
	require.NoError(t, err)
	assert.True(t, created, "acknowledged alerts no longer block")

	all, err := m.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	open, err := m.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

func TestCreateStoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := store.NewMockStore(ctrl)
	m := newManager(mockStore, config.DefaultIntelligenceConfig())

	tests := []struct {
		name      string
		setupMock func()
		wantErr   string
	}{
		{
			name: "list fails",
			setupMock: func() {
				mockStore.EXPECT().
					ListAlerts(gomock.Any(), store.AlertFilter{AlertType: TypeLowScore, UnacknowledgedOnly: true}).
					Return(nil, errors.New("unavailable"))
			},
			wantErr: "list open alerts",
		},
		{
			name: "create fails",
			setupMock: func() {
				mockStore.EXPECT().ListAlerts(gomock.Any(), gomock.Any()).Return(nil, nil)
				mockStore.EXPECT().CreateAlert(gomock.Any(), gomock.Any()).Return(errors.New("permission denied"))
			},
			wantErr: "create alert",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()
			_, created, err := m.Create(context.Background(), Request{Type: TypeLowScore, Message: "score"})
			assert.False(t, created)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	t.Run("acknowledge unknown alert", func(t *testing.T) {
		mockStore.EXPECT().AcknowledgeAlert(gomock.Any(), "missing").Return(store.ErrNotFound)
		err := m.Acknowledge(context.Background(), "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestCheckCriticalAnomalies(t *testing.T) {
	ctx := context.Background()
	items := []anomaly.Anomaly{
		{Type: anomaly.TypeExpense, Severity: model.SeverityCritical, Message: "Expenses are well above their usual level for the period: € 3.000,00 against a usual € 1.010,00", CurrentValue: 3000},
		{Type: anomaly.TypeTransactionOutlier, Severity: model.SeverityHigh, Message: "Large transaction", CurrentValue: 900},
		{Type: anomaly.TypeExpense, Severity: model.SeverityCritical, Message: "Expenses are well above their usual level for the period: € 3.000,00 against a usual € 1.010,00", CurrentValue: 3000},
	}

	t.Run("enabled", func(t *testing.T) {
		s := store.NewMemoryStore()
		n, err := newManager(s, config.DefaultIntelligenceConfig()).CheckCriticalAnomalies(ctx, items)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		stored, err := s.ListAlerts(ctx, store.AlertFilter{AlertType: TypeCriticalAnomaly})
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, 3000.0, *stored[0].CurrentValue)
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := config.DefaultIntelligenceConfig()
		cfg.AlertOnCriticalAnomalies = false
		s := store.NewMemoryStore()
		n, err := newManager(s, cfg).CheckCriticalAnomalies(ctx, items)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestCheckCriticalAnomaliesAcrossRuns(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	for _, tx := range []*model.Transaction{
		{Date: time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC), Amount: -1000},
		{Date: time.Date(2026, time.April, 15, 10, 0, 0, 0, time.UTC), Amount: -1050},
		{Date: time.Date(2026, time.May, 15, 10, 0, 0, 0, time.UTC), Amount: -980},
		{Date: time.Date(2026, time.June, 10, 10, 0, 0, 0, time.UTC), Amount: -3000},
	} {
		require.NoError(t, s.CreateTransaction(ctx, tx))
	}

	cfg := config.DefaultIntelligenceConfig()
	agg := aggregate.NewAggregator(s)
	agg.SetClock(func() time.Time { return now })
	detector := anomaly.NewDetector(agg, s, cfg, nil)
	m := newManager(s, cfg)
	start := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC)

	openCritical := func() int {
		alerts, err := s.ListAlerts(ctx, store.AlertFilter{AlertType: TypeCriticalAnomaly, UnacknowledgedOnly: true})
		require.NoError(t, err)
		return len(alerts)
	}

	var first int
	for run := 0; run < 3; run++ {
		if run > 0 {
			require.NoError(t, s.CreateTransaction(ctx, &model.Transaction{
				Date:   time.Date(2026, time.June, 12+run, 10, 0, 0, 0, time.UTC),
				Amount: -12.50,
			}))
		}
		items, err := detector.DetectAll(ctx, start, end)
		require.NoError(t, err)
		_, err = m.CheckCriticalAnomalies(ctx, items)
		require.NoError(t, err)
		if run == 0 {
			first = openCritical()
			require.Equal(t, 2, first, "expense spike and uncategorized spending")
			continue
		}
		assert.Equal(t, first, openCritical(), "run %d", run)
	}
}

func TestCheckIntelligenceScore(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	m := newManager(s, config.DefaultIntelligenceConfig())

	created, err := m.CheckIntelligenceScore(ctx, 40)
	require.NoError(t, err)
	assert.False(t, created)

	created, err = m.CheckIntelligenceScore(ctx, 30)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = m.CheckIntelligenceScore(ctx, 12)
	require.NoError(t, err)
	assert.False(t, created, "same open alert, score not repeated")

	stored, err := s.ListAlerts(ctx, store.AlertFilter{AlertType: TypeLowScore})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, model.SeverityMedium, stored[0].Severity)
	assert.Equal(t, 40.0, *stored[0].ThresholdValue)
}

func TestCheckBalance(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		amount   float64
		created  bool
		severity model.Severity
	}{
		{"healthy", 2500, false, ""},
		{"low", 400, true, model.SeverityHigh},
		{"negative", -120, true, model.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()
			require.NoError(t, s.CreateTransaction(ctx, &model.Transaction{Date: now, Amount: tt.amount}))

			created, err := newManager(s, config.DefaultIntelligenceConfig()).CheckBalance(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.created, created)
			if !tt.created {
				return
			}
			stored, err := s.ListAlerts(ctx, store.AlertFilter{AlertType: TypeLowBalance})
			require.NoError(t, err)
			require.Len(t, stored, 1)
			assert.Equal(t, tt.severity, stored[0].Severity)
			assert.Equal(t, tt.amount, *stored[0].CurrentValue)
		})
	}
}
