// Package intelligence composes the detectors into a single cached report,
// scores it and raises alerts when thresholds are crossed.
package intelligence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/castlemilk/finintel/backend/internal/aggregate"
	"github.com/castlemilk/finintel/backend/internal/alerts"
	"github.com/castlemilk/finintel/backend/internal/anomaly"
	"github.com/castlemilk/finintel/backend/internal/config"
	"github.com/castlemilk/finintel/backend/internal/insights"
	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/pattern"
	"github.com/castlemilk/finintel/backend/internal/predict"
	"github.com/castlemilk/finintel/backend/internal/recommend"
)

// DefaultPeriodDays is used when no period length is requested.
const DefaultPeriodDays = 30

// Archiver stores freshly generated reports.
type Archiver interface {
	Archive(ctx context.Context, periodDays int, generatedAt time.Time, report any) error
}

// Components are the analyzers a report is built from.
type Components struct {
	Aggregator      *aggregate.Aggregator
	Anomalies       *anomaly.Detector
	Patterns        *pattern.Analyzer
	Insights        *insights.Generator
	Recommendations *recommend.Engine
	Predictions     *predict.Analyzer
	Alerts          *alerts.Manager
}

// Orchestrator generates intelligence reports.
type Orchestrator struct {
	c        Components
	cache    *ReportCache
	archiver Archiver
	cfg      config.IntelligenceConfig
	logger   *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithArchiver stores every freshly generated report with a.
func WithArchiver(a Archiver) Option {
	return func(o *Orchestrator) { o.archiver = a }
}

// NewOrchestrator creates an Orchestrator with a report cache of cfg.CacheTTL.
func NewOrchestrator(c Components, cfg config.IntelligenceConfig, logger *zap.Logger, opts ...Option) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := NewReportCache(cfg.CacheTTL)
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{
		c:      c,
		cache:  cache,
		cfg:    cfg,
		logger: logger.Named("intelligence"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Close releases the report cache.
func (o *Orchestrator) Close() {
	o.cache.Close()
}

// InvalidateCache drops cached reports so the next request recomputes them.
func (o *Orchestrator) InvalidateCache() {
	o.cache.Invalidate()
	o.logger.Info("report cache invalidated")
}

// GenerateReport returns the report for the last periodDays days. A cached
// report is returned unless forceRefresh is set. It never fails: sections
// that cannot be computed are empty and marked failed, and when every section
// fails the last good report (or an empty one) is returned instead.
func (o *Orchestrator) GenerateReport(ctx context.Context, periodDays int, forceRefresh bool) *Report {
	if periodDays <= 0 {
		periodDays = DefaultPeriodDays
	}
	if !forceRefresh {
		if r, ok := o.cache.Get(periodDays); ok {
			r.Cached = true
			return r
		}
	}

	now := o.c.Aggregator.Now()
	start := model.StartOfDay(now).AddDate(0, 0, -periodDays)
	end := now
	r := emptyReport(periodDays, start, end, now)
	timeout := o.cfg.SectionTimeout

	stats := run(ctx, o.logger, SectionStats, timeout, func(ctx context.Context) (aggregate.PeriodStats, error) {
		return o.c.Aggregator.PeriodStats(ctx, start, end, aggregate.PeriodFilter{})
	})
	r.Sections[SectionStats] = stats.SectionInfo
	r.Summary.TotalIncome = stats.Value.TotalIncome
	r.Summary.TotalExpenses = stats.Value.TotalExpenses
	r.Summary.NetCashflow = stats.Value.Net()
	r.Summary.TransactionCount = stats.Value.TransactionCount

	anomalies := runList(ctx, o.logger, SectionAnomalies, timeout, func(ctx context.Context) ([]anomaly.Anomaly, error) {
		return o.c.Anomalies.DetectAll(ctx, start, end)
	})
	r.Anomalies, r.Sections[SectionAnomalies] = anomalies.Value, anomalies.SectionInfo

	patterns := runList(ctx, o.logger, SectionPatterns, timeout, func(ctx context.Context) ([]pattern.Pattern, error) {
		return o.c.Patterns.AnalyzePatterns(ctx, start, end)
	})
	r.Patterns, r.Sections[SectionPatterns] = patterns.Value, patterns.SectionInfo

	ins := runList(ctx, o.logger, SectionInsights, timeout, func(ctx context.Context) ([]insights.Insight, error) {
		return o.c.Insights.Generate(ctx, start, end)
	})
	r.Insights, r.Sections[SectionInsights] = ins.Value, ins.SectionInfo

	recs := runList(ctx, o.logger, SectionRecommendations, timeout, func(ctx context.Context) ([]recommend.Recommendation, error) {
		return o.c.Recommendations.GenerateRecommendations(ctx, start, end)
	})
	r.Recommendations, r.Sections[SectionRecommendations] = recs.Value, recs.SectionInfo

	preds := run(ctx, o.logger, SectionPredictions, timeout, func(ctx context.Context) (*predict.Predictions, error) {
		p, err := o.c.Predictions.GeneratePredictions(ctx, periodDays)
		if err != nil {
			return nil, err
		}
		return &p, nil
	})
	r.Predictions, r.Sections[SectionPredictions] = preds.Value, preds.SectionInfo

	if allFailed(r.Sections) {
		o.logger.Error("report generation failed", zap.Int("period_days", periodDays))
		if last, ok := o.cache.LastGood(periodDays); ok {
			last.Stale = true
			return last
		}
		return r
	}

	r.Summary = summarize(r)
	o.raiseAlerts(ctx, r)
	o.cache.Set(r)
	o.archive(ctx, r)

	o.logger.Info("report generated",
		zap.Int("period_days", periodDays),
		zap.Int("score", r.Summary.IntelligenceScore),
		zap.Int("anomalies", r.Summary.AnomalyCount),
		zap.Int("recommendations", r.Summary.RecommendationCount))
	return r
}

func allFailed(sections map[string]SectionInfo) bool {
	for _, s := range sections {
		if s.Status != StatusFailed {
			return false
		}
	}
	return len(sections) > 0
}

// raiseAlerts runs the threshold checks; failures are logged only.
func (o *Orchestrator) raiseAlerts(ctx context.Context, r *Report) {
	if o.c.Alerts == nil {
		return
	}
	if _, err := o.c.Alerts.CheckCriticalAnomalies(ctx, r.Anomalies); err != nil {
		o.logger.Warn("critical anomaly alerts failed", zap.Error(err))
	}
	if _, err := o.c.Alerts.CheckIntelligenceScore(ctx, r.Summary.IntelligenceScore); err != nil {
		o.logger.Warn("score alert failed", zap.Error(err))
	}
	if _, err := o.c.Alerts.CheckBalance(ctx); err != nil {
		o.logger.Warn("balance alert failed", zap.Error(err))
	}
}

func (o *Orchestrator) archive(ctx context.Context, r *Report) {
	if o.archiver == nil {
		return
	}
	if err := o.archiver.Archive(ctx, r.PeriodDays, r.GeneratedAt, r); err != nil {
		o.logger.Warn("report archive failed", zap.Int("period_days", r.PeriodDays), zap.Error(err))
	}
}
