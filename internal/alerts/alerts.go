// Package alerts persists threshold alerts with message-prefix deduplication.
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/castlemilk/finintel/backend/internal/config"
	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/money"
	"github.com/castlemilk/finintel/backend/internal/store"
)

// DedupPrefixRunes is the message prefix compared against open alerts.
const DedupPrefixRunes = 50

// Alert types raised by the threshold checks.
const (
	TypeCriticalAnomaly = "critical_anomaly"
	TypeLowScore        = "low_intelligence_score"
	TypeLowBalance      = "low_balance"
)

// Request describes an alert to raise.
type Request struct {
	Type           string
	Severity       model.Severity
	Message        string
	CurrentValue   *float64
	ThresholdValue *float64
}

// Manager creates, lists and acknowledges alerts.
type Manager struct {
	store  store.Store
	cfg    config.IntelligenceConfig
	money  *money.Formatter
	logger *zap.Logger
	now    func() time.Time
}

// NewManager creates a Manager.
func NewManager(s store.Store, cfg config.IntelligenceConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  s,
		cfg:    cfg,
		money:  money.NewFormatter(cfg.Locale, cfg.Currency),
		logger: logger.Named("alerts"),
		now:    time.Now,
	}
}

// SetClock overrides the creation timestamp source.
func (m *Manager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Create stores a new alert unless an unacknowledged alert of the same type
// shares the first DedupPrefixRunes of its message. It returns the stored or
// the already open alert and whether a new one was created.
func (m *Manager) Create(ctx context.Context, req Request) (*model.Alert, bool, error) {
	open, err := m.store.ListAlerts(ctx, store.AlertFilter{AlertType: req.Type, UnacknowledgedOnly: true})
	if err != nil {
		return nil, false, fmt.Errorf("list open alerts: %w", err)
	}
	key := prefix(req.Message)
	for _, a := range open {
		if prefix(a.Message) == key {
			m.logger.Debug("alert deduplicated", zap.String("type", req.Type), zap.String("existing_id", a.ID))
			return a, false, nil
		}
	}

	alert := &model.Alert{
		ID:             uuid.New().String(),
		AlertType:      req.Type,
		Severity:       req.Severity,
		Message:        req.Message,
		CurrentValue:   req.CurrentValue,
		ThresholdValue: req.ThresholdValue,
		IsActive:       true,
		CreatedAt:      m.now(),
	}
	if err := m.store.CreateAlert(ctx, alert); err != nil {
		return nil, false, fmt.Errorf("create alert: %w", err)
	}
	m.logger.Info("alert created",
		zap.String("id", alert.ID),
		zap.String("type", alert.AlertType),
		zap.String("severity", string(alert.Severity)))
	return alert, true, nil
}

// List returns alerts, newest first.
func (m *Manager) List(ctx context.Context, unacknowledgedOnly bool) ([]*model.Alert, error) {
	alerts, err := m.store.ListAlerts(ctx, store.AlertFilter{UnacknowledgedOnly: unacknowledgedOnly})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// Acknowledge marks an alert as seen; it no longer blocks new alerts with the same message.
func (m *Manager) Acknowledge(ctx context.Context, id string) error {
	if err := m.store.AcknowledgeAlert(ctx, id); err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	return nil
}

func prefix(msg string) string {
	r := []rune(msg)
	if len(r) > DedupPrefixRunes {
		r = r[:DedupPrefixRunes]
	}
	return string(r)
}
