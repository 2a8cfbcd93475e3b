package intelligence

import (
	"math"
	"time"

	"github.com/castlemilk/finintel/backend/internal/anomaly"
	"github.com/castlemilk/finintel/backend/internal/insights"
	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/pattern"
	"github.com/castlemilk/finintel/backend/internal/predict"
	"github.com/castlemilk/finintel/backend/internal/recommend"
)

// Section names used in Report.Sections.
const (
	SectionStats           = "stats"
	SectionAnomalies       = "anomalies"
	SectionPatterns        = "patterns"
	SectionInsights        = "insights"
	SectionRecommendations = "recommendations"
	SectionPredictions     = "predictions"
)

// Summary holds the headline numbers of a report.
type Summary struct {
	IntelligenceScore        int     `json:"intelligence_score"`
	AnomalyCount             int     `json:"anomaly_count"`
	CriticalAnomalies        int     `json:"critical_anomalies"`
	PatternCount             int     `json:"pattern_count"`
	InsightCount             int     `json:"insight_count"`
	RecommendationCount      int     `json:"recommendation_count"`
	UrgentRecommendations    int     `json:"urgent_recommendations"`
	AverageInsightConfidence float64 `json:"average_insight_confidence"`
	TotalIncome              float64 `json:"total_income"`
	TotalExpenses            float64 `json:"total_expenses"`
	NetCashflow              float64 `json:"net_cashflow"`
	TransactionCount         int     `json:"transaction_count"`
}

// Report is the composed intelligence report of one period.
type Report struct {
	PeriodDays      int                        `json:"period_days"`
	PeriodStart     time.Time                  `json:"period_start"`
	PeriodEnd       time.Time                  `json:"period_end"`
	GeneratedAt     time.Time                  `json:"generated_at"`
	Summary         Summary                    `json:"summary"`
	Anomalies       []anomaly.Anomaly          `json:"anomalies"`
	Patterns        []pattern.Pattern          `json:"patterns"`
	Insights        []insights.Insight         `json:"insights"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
	Predictions     *predict.Predictions       `json:"predictions"`
	Sections        map[string]SectionInfo     `json:"sections"`
	Cached          bool                       `json:"cached"`
	Stale           bool                       `json:"stale"`
}

// emptyReport is the well-shaped report returned when nothing could be computed.
func emptyReport(days int, start, end, now time.Time) *Report {
	return &Report{
		PeriodDays:      days,
		PeriodStart:     start,
		PeriodEnd:       end,
		GeneratedAt:     now,
		Anomalies:       []anomaly.Anomaly{},
		Patterns:        []pattern.Pattern{},
		Insights:        []insights.Insight{},
		Recommendations: []recommend.Recommendation{},
		Sections:        map[string]SectionInfo{},
	}
}

// clone copies the report header and slices so callers cannot mutate a cached value.
func (r *Report) clone() *Report {
	cp := *r
	cp.Anomalies = append([]anomaly.Anomaly{}, r.Anomalies...)
	cp.Patterns = append([]pattern.Pattern{}, r.Patterns...)
	cp.Insights = append([]insights.Insight{}, r.Insights...)
	cp.Recommendations = append([]recommend.Recommendation{}, r.Recommendations...)
	cp.Sections = make(map[string]SectionInfo, len(r.Sections))
	for k, v := range r.Sections {
		cp.Sections[k] = v
	}
	if r.Predictions != nil {
		p := *r.Predictions
		cp.Predictions = &p
	}
	return &cp
}

// Score is round(100 × (avgInsightConfidence×0.6 + (1 − penalty)×0.4)) where
// penalty = min(1, (anomalies×0.5 + critical×0.5)/5), clamped to [0, 100].
func Score(avgInsightConfidence float64, anomalies, critical int) int {
	penalty := math.Min(1, (float64(anomalies)*0.5+float64(critical)*0.5)/5)
	score := math.Round(100 * (avgInsightConfidence*0.6 + (1-penalty)*0.4))
	return int(math.Max(0, math.Min(100, score)))
}

func summarize(r *Report) Summary {
	s := r.Summary
	s.AnomalyCount = len(r.Anomalies)
	s.CriticalAnomalies = 0
	for _, a := range r.Anomalies {
		if a.Severity == model.SeverityCritical {
			s.CriticalAnomalies++
		}
	}
	s.PatternCount = len(r.Patterns)
	s.InsightCount = len(r.Insights)
	s.RecommendationCount = len(r.Recommendations)
	s.UrgentRecommendations = 0
	for _, rec := range r.Recommendations {
		if rec.Priority.AtLeast(model.SeverityHigh) {
			s.UrgentRecommendations++
		}
	}
	s.AverageInsightConfidence = math.Round(insights.AverageConfidence(r.Insights)*1000) / 1000
	s.IntelligenceScore = Score(insights.AverageConfidence(r.Insights), s.AnomalyCount, s.CriticalAnomalies)
	return s
}
