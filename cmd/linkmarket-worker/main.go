package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linkmarket/internal/agents"
	"linkmarket/internal/config"
	"linkmarket/internal/db"
	"linkmarket/internal/ingest"
	"linkmarket/internal/jobs"
	"linkmarket/internal/market"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Error("schema init failed", "err", err)
		os.Exit(1)
	}

	marketSvc := market.NewService(pool, logger, market.WithCurationCurve(cfg.CurationCurve))
	agentRunner, err := agents.NewRunner(marketSvc, logger, cfg.ModelConfigPath)
	if err != nil {
		logger.Error("model roster load failed", "err", err)
		os.Exit(1)
	}
	ingestor := ingest.New(marketSvc, logger, cfg.FeedURL)
	runner := jobs.NewRunner(marketSvc, agentRunner, ingestor, logger)

	if cfg.RunOnce {
		runPass(ctx, cfg, runner, logger)
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	logger.Info("worker started", "interval", cfg.Interval.String(), "feed", cfg.FeedURL)
	runPass(ctx, cfg, runner, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			runPass(ctx, cfg, runner, logger)
		}
	}
}

// runPass does one sweep of all scheduled work. Each job claims its
// own run key, so a sweep that fires early or twice is harmless.
func runPass(ctx context.Context, cfg config.WorkerConfig, runner *jobs.Runner, logger *slog.Logger) {
	if _, err := runner.DailyFaucet(ctx, time.Now(), false); err != nil {
		logger.Error("faucet job failed", "err", err)
	}
	if _, err := runner.SyncLinks(ctx, cfg.IngestLimit, false); err != nil {
		logger.Error("sync job failed", "err", err)
	}
	if _, err := runner.RunModels(ctx, "", false); err != nil {
		logger.Error("model job failed", "err", err)
	}
	if _, err := runner.CurationAwards(ctx, "", cfg.CurationMinAge, false); err != nil {
		logger.Error("curation job failed", "err", err)
	}
}
