package alerts

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/castlemilk/finintel/backend/internal/anomaly"
	"github.com/castlemilk/finintel/backend/internal/model"
)

// CheckCriticalAnomalies raises one alert per critical anomaly when critical
// anomaly alerting is enabled. It returns the number of new alerts.
func (m *Manager) CheckCriticalAnomalies(ctx context.Context, items []anomaly.Anomaly) (int, error) {
	if !m.cfg.AlertOnCriticalAnomalies {
		return 0, nil
	}
	created := 0
	var errs []error
	for _, a := range items {
		if a.Severity != model.SeverityCritical {
			continue
		}
		_, ok, err := m.Create(ctx, Request{
			Type:         TypeCriticalAnomaly,
			Severity:     model.SeverityCritical,
			Message:      a.Message,
			CurrentValue: model.Float(a.CurrentValue),
		})
		if err != nil {
			m.logger.Warn("failed to raise anomaly alert", zap.String("anomaly", string(a.Type)), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if ok {
			created++
		}
	}
	return created, errors.Join(errs...)
}

// CheckIntelligenceScore raises an alert when score is below the configured
// threshold; high when it is under half of it.
func (m *Manager) CheckIntelligenceScore(ctx context.Context, score int) (bool, error) {
	threshold := m.cfg.ScoreAlertThreshold
	if float64(score) >= threshold {
		return false, nil
	}
	severity := model.SeverityMedium
	if float64(score) < threshold/2 {
		severity = model.SeverityHigh
	}
	_, created, err := m.Create(ctx, Request{
		Type:           TypeLowScore,
		Severity:       severity,
		Message:        fmt.Sprintf("Financial intelligence score below alert threshold of %.0f: current score %d", threshold, score),
		CurrentValue:   model.Float(float64(score)),
		ThresholdValue: model.Float(threshold),
	})
	if err != nil {
		m.logger.Warn("failed to raise score alert", zap.Int("score", score), zap.Error(err))
	}
	return created, err
}

// CheckBalance raises an alert when the total balance is below the low balance
// threshold; critical when it is negative.
func (m *Manager) CheckBalance(ctx context.Context) (bool, error) {
	balance, err := m.store.GetTotalBalance(ctx)
	if err != nil {
		return false, fmt.Errorf("total balance: %w", err)
	}
	threshold := m.cfg.LowBalanceThreshold
	if balance >= threshold {
		return false, nil
	}
	severity, msg := model.SeverityHigh, "Total balance is below the low balance threshold of"
	if balance < 0 {
		severity, msg = model.SeverityCritical, "Total balance is negative and below the low balance threshold of"
	}
	_, created, err := m.Create(ctx, Request{
		Type:           TypeLowBalance,
		Severity:       severity,
		Message:        fmt.Sprintf("%s %s: currently %s", msg, m.money.Format(threshold), m.money.Format(balance)),
		CurrentValue:   model.Float(balance),
		ThresholdValue: model.Float(threshold),
	})
	if err != nil {
		m.logger.Warn("failed to raise balance alert", zap.Float64("balance", balance), zap.Error(err))
	}
	return created, err
}
