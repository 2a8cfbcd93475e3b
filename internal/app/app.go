// Package app wires the store, analyzers and RPC service together for the
// binaries under cmd/.
package app

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/castlemilk/finintel/backend/internal/aggregate"
	"github.com/castlemilk/finintel/backend/internal/alerts"
	"github.com/castlemilk/finintel/backend/internal/anomaly"
	"github.com/castlemilk/finintel/backend/internal/categorize"
	"github.com/castlemilk/finintel/backend/internal/config"
	"github.com/castlemilk/finintel/backend/internal/insights"
	"github.com/castlemilk/finintel/backend/internal/intelligence"
	"github.com/castlemilk/finintel/backend/internal/pattern"
	"github.com/castlemilk/finintel/backend/internal/predict"
	"github.com/castlemilk/finintel/backend/internal/recommend"
	"github.com/castlemilk/finintel/backend/internal/service"
	"github.com/castlemilk/finintel/backend/internal/store"
)

// App is the fully wired intelligence core.
type App struct {
	Store        store.Store
	Aggregator   *aggregate.Aggregator
	Engine       *categorize.Engine
	Predictions  *predict.Analyzer
	Alerts       *alerts.Manager
	Orchestrator *intelligence.Orchestrator
	Service      *service.IntelligenceService

	closers []func() error
}

// Build constructs every component over s.
func Build(s store.Store, cfg config.IntelligenceConfig, logger *zap.Logger, opts ...intelligence.Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	agg := aggregate.NewAggregator(s)
	patterns := pattern.NewAnalyzer(agg, cfg, logger)
	predictions := predict.NewAnalyzer(agg, patterns, cfg, logger)
	alertManager := alerts.NewManager(s, cfg, logger)

	orchestrator, err := intelligence.NewOrchestrator(intelligence.Components{
		Aggregator:      agg,
		Anomalies:       anomaly.NewDetector(agg, s, cfg, logger),
		Patterns:        patterns,
		Insights:        insights.NewGenerator(agg, s, cfg, logger),
		Recommendations: recommend.NewEngine(agg, s, cfg, logger),
		Predictions:     predictions,
		Alerts:          alertManager,
	}, cfg, logger, opts...)
	if err != nil {
		return nil, err
	}

	engine := categorize.NewEngine(s, logger)
	a := &App{
		Store:        s,
		Aggregator:   agg,
		Engine:       engine,
		Predictions:  predictions,
		Alerts:       alertManager,
		Orchestrator: orchestrator,
	}
	a.Service = service.NewIntelligenceService(service.Deps{
		Store:        s,
		Aggregator:   agg,
		Orchestrator: orchestrator,
		Engine:       engine,
		Predictions:  predictions,
		Alerts:       alertManager,
	}, logger)
	a.OnClose(func() error {
		orchestrator.Close()
		return nil
	})
	return a, nil
}

// SetClock overrides the time source of every component.
func (a *App) SetClock(now func() time.Time) {
	a.Aggregator.SetClock(now)
	a.Engine.SetClock(now)
	a.Alerts.SetClock(now)
}

// OnClose registers fn to run on Close, in reverse registration order.
func (a *App) OnClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases everything registered with OnClose.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
