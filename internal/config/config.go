// Package config loads runtime settings from an optional config file, a .env
// file and FININTEL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ErrInvalidValue marks a tunable that could not be parsed or is out of range.
var ErrInvalidValue = errors.New("invalid config value")

// Store backends.
const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
)

// Config holds application configuration.
type Config struct {
	Server       ServerConfig
	Store        StoreConfig
	Archive      ArchiveConfig
	Log          LogConfig
	Intelligence IntelligenceConfig

	// Warnings lists tunables that fell back to defaults.
	Warnings []string
}

// ServerConfig holds the RPC listener settings.
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	OperatorToken  string
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend         string
	ProjectID       string
	CredentialsFile string
	PostgresURL     string
	AutoMigrate     bool
}

// ArchiveConfig enables report snapshots in a GCS bucket when Bucket is set.
type ArchiveConfig struct {
	Bucket string
	Prefix string
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Development bool
	Level       string
}

// Load reads configuration from file and env. Env var overrides use prefix FININTEL_.
// An empty path looks for finintel.{yaml,toml} in the working directory.
func Load(path string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("finintel")
	}

	v.SetEnvPrefix("FININTEL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// plain names used by the hosting platform
	_ = v.BindEnv("server.port", "FININTEL_SERVER_PORT", "PORT")
	_ = v.BindEnv("store.project_id", "FININTEL_STORE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT")
	_ = v.BindEnv("store.credentials_file", "FININTEL_STORE_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS")
	_ = v.BindEnv("store.postgres_url", "FININTEL_STORE_POSTGRES_URL", "DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	c := Config{
		Server: ServerConfig{
			Port:           v.GetString("server.port"),
			AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
			OperatorToken:  v.GetString("server.operator_token"),
		},
		Store: StoreConfig{
			Backend:         strings.ToLower(v.GetString("store.backend")),
			ProjectID:       v.GetString("store.project_id"),
			CredentialsFile: v.GetString("store.credentials_file"),
			PostgresURL:     v.GetString("store.postgres_url"),
			AutoMigrate:     v.GetBool("store.auto_migrate"),
		},
		Archive: ArchiveConfig{
			Bucket: v.GetString("archive.bucket"),
			Prefix: v.GetString("archive.prefix"),
		},
		Log: LogConfig{
			Development: v.GetBool("log.development"),
			Level:       v.GetString("log.level"),
		},
	}

	switch c.Store.Backend {
	case BackendMemory, BackendFirestore, BackendPostgres:
	default:
		c.Warnings = append(c.Warnings, fmt.Sprintf("store.backend %q: %v, using %s", c.Store.Backend, ErrInvalidValue, BackendMemory))
		c.Store.Backend = BackendMemory
	}

	var warnings []string
	c.Intelligence, warnings = loadIntelligence(v)
	c.Warnings = append(c.Warnings, warnings...)
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8111")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:1234", "http://127.0.0.1:1234"})
	v.SetDefault("server.operator_token", "")
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.project_id", "")
	v.SetDefault("store.credentials_file", "")
	v.SetDefault("store.postgres_url", "")
	v.SetDefault("store.auto_migrate", true)
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "reports")
	v.SetDefault("log.development", false)
	v.SetDefault("log.level", "info")

	d := DefaultIntelligenceConfig()
	v.SetDefault("intelligence.zscore_threshold", d.ZScoreThreshold)
	v.SetDefault("intelligence.iqr_factor", d.IQRFactor)
	v.SetDefault("intelligence.score_alert_threshold", d.ScoreAlertThreshold)
	v.SetDefault("intelligence.cache_ttl", d.CacheTTL.String())
	v.SetDefault("intelligence.alert_on_critical_anomalies", d.AlertOnCriticalAnomalies)
	v.SetDefault("intelligence.prediction_interval_k", d.PredictionIntervalK)
	v.SetDefault("intelligence.section_timeout", d.SectionTimeout.String())
	v.SetDefault("intelligence.low_balance_threshold", d.LowBalanceThreshold)
	v.SetDefault("intelligence.locale", d.Locale)
	v.SetDefault("intelligence.currency", d.Currency)
}

// loadIntelligence reads each tunable independently so one malformed value
// only resets itself to its default.
func loadIntelligence(v *viper.Viper) (IntelligenceConfig, []string) {
	d := DefaultIntelligenceConfig()
	var warnings []string
	warn := func(key string, raw any, err error) {
		warnings = append(warnings, fmt.Sprintf("intelligence.%s=%v: %v, using default", key, raw, err))
	}

	float := func(key string, def float64) float64 {
		raw := v.Get("intelligence." + key)
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			warn(key, raw, fmt.Errorf("%w: %v", ErrInvalidValue, err))
			return def
		}
		return f
	}
	duration := func(key string, def time.Duration) time.Duration {
		raw := v.Get("intelligence." + key)
		dur, err := cast.ToDurationE(raw)
		if err != nil {
			warn(key, raw, fmt.Errorf("%w: %v", ErrInvalidValue, err))
			return def
		}
		return dur
	}
	boolean := func(key string, def bool) bool {
		raw := v.Get("intelligence." + key)
		b, err := cast.ToBoolE(raw)
		if err != nil {
			warn(key, raw, fmt.Errorf("%w: %v", ErrInvalidValue, err))
			return def
		}
		return b
	}

	c := IntelligenceConfig{
		ZScoreThreshold:          float("zscore_threshold", d.ZScoreThreshold),
		IQRFactor:                float("iqr_factor", d.IQRFactor),
		ScoreAlertThreshold:      float("score_alert_threshold", d.ScoreAlertThreshold),
		CacheTTL:                 duration("cache_ttl", d.CacheTTL),
		AlertOnCriticalAnomalies: boolean("alert_on_critical_anomalies", d.AlertOnCriticalAnomalies),
		PredictionIntervalK:      float("prediction_interval_k", d.PredictionIntervalK),
		SectionTimeout:           duration("section_timeout", d.SectionTimeout),
		LowBalanceThreshold:      float("low_balance_threshold", d.LowBalanceThreshold),
		Locale:                   v.GetString("intelligence.locale"),
		Currency:                 v.GetString("intelligence.currency"),
	}

	c, rangeWarnings := c.Sanitize()
	return c, append(warnings, rangeWarnings...)
}
