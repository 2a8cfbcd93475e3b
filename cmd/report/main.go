// Command report generates one intelligence report and prints it as JSON.
// It is meant to be run from cron or a scheduler, which also raises the
// configured alerts and archives the report when a bucket is set.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/castlemilk/finintel/backend/internal/app"
	"github.com/castlemilk/finintel/backend/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to a finintel config file")
	days := flag.Int("days", 30, "report period in days")
	force := flag.Bool("force", true, "ignore any cached report")
	categorize := flag.Bool("categorize", false, "categorize uncategorized transactions of the period first")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	if *categorize {
		end := a.Aggregator.Now()
		start := end.AddDate(0, 0, -*days)
		res, err := a.Engine.ApplyToUncategorized(ctx, start, end)
		if err != nil {
			logger.Error("categorization failed", zap.Error(err))
		} else {
			logger.Info("categorized",
				zap.Int("processed", res.Processed),
				zap.Int("categorized", res.Categorized),
				zap.Int("failed", res.Failed))
		}
	}

	report := a.Orchestrator.GenerateReport(ctx, *days, *force)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Fatal("failed to write report", zap.Error(err))
	}
}
