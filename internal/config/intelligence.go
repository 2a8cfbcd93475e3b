package config

import (
	"fmt"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

// IntelligenceConfig carries the tunables shared by the detectors and the
// orchestrator. It is built once by the composition root.
type IntelligenceConfig struct {
	ZScoreThreshold          float64
	IQRFactor                float64
	ScoreAlertThreshold      float64
	CacheTTL                 time.Duration
	AlertOnCriticalAnomalies bool
	PredictionIntervalK      float64
	SectionTimeout           time.Duration
	LowBalanceThreshold      float64
	Locale                   string
	Currency                 string
}

// DefaultIntelligenceConfig returns the documented defaults.
func DefaultIntelligenceConfig() IntelligenceConfig {
	return IntelligenceConfig{
		ZScoreThreshold:          2.0,
		IQRFactor:                1.5,
		ScoreAlertThreshold:      40,
		CacheTTL:                 2 * time.Hour,
		AlertOnCriticalAnomalies: true,
		PredictionIntervalK:      1.5,
		SectionTimeout:           30 * time.Second,
		LowBalanceThreshold:      1000,
		Locale:                   "it",
		Currency:                 "EUR",
	}
}

// Sanitize replaces out-of-range values with defaults and reports each replacement.
// A zero-valued IntelligenceConfig sanitizes to the defaults, except for the
// boolean toggle which keeps its zero value.
func (c IntelligenceConfig) Sanitize() (IntelligenceConfig, []string) {
	d := DefaultIntelligenceConfig()
	var warnings []string
	fix := func(name string, bad bool, reset func()) {
		if bad {
			warnings = append(warnings, fmt.Sprintf("intelligence.%s: %v, using default", name, ErrInvalidValue))
			reset()
		}
	}

	fix("zscore_threshold", c.ZScoreThreshold <= 0, func() { c.ZScoreThreshold = d.ZScoreThreshold })
	fix("iqr_factor", c.IQRFactor <= 0, func() { c.IQRFactor = d.IQRFactor })
	fix("score_alert_threshold", c.ScoreAlertThreshold < 0 || c.ScoreAlertThreshold > 100, func() { c.ScoreAlertThreshold = d.ScoreAlertThreshold })
	fix("cache_ttl", c.CacheTTL <= 0, func() { c.CacheTTL = d.CacheTTL })
	fix("prediction_interval_k", c.PredictionIntervalK <= 0, func() { c.PredictionIntervalK = d.PredictionIntervalK })
	fix("section_timeout", c.SectionTimeout <= 0, func() { c.SectionTimeout = d.SectionTimeout })
	fix("low_balance_threshold", c.LowBalanceThreshold < 0, func() { c.LowBalanceThreshold = d.LowBalanceThreshold })

	if _, err := language.Parse(c.Locale); err != nil || c.Locale == "" {
		fix("locale", true, func() { c.Locale = d.Locale })
	}
	if _, err := currency.ParseISO(c.Currency); err != nil || c.Currency == "" {
		fix("currency", true, func() { c.Currency = d.Currency })
	}
	return c, warnings
}
