package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linkmarket/internal/agents"
	"linkmarket/internal/api"
	"linkmarket/internal/auth"
	"linkmarket/internal/config"
	"linkmarket/internal/db"
	"linkmarket/internal/ingest"
	"linkmarket/internal/jobs"
	"linkmarket/internal/market"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
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
	sessions := auth.NewStore(pool, logger)

	var google *auth.GoogleClient
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" && cfg.GoogleRedirectURI != "" {
		google = auth.NewGoogleClient(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI)
	}
	var twilio *auth.TwilioClient
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioVerifySID != "" {
		twilio = auth.NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioVerifySID)
	}

	agentRunner, err := agents.NewRunner(marketSvc, logger, cfg.ModelConfigPath)
	if err != nil {
		logger.Error("model roster load failed", "err", err)
		os.Exit(1)
	}
	ingestor := ingest.New(marketSvc, logger, cfg.FeedURL)
	jobRunner := jobs.NewRunner(marketSvc, agentRunner, ingestor, logger)

	server := api.New(cfg, logger, marketSvc, sessions, google, twilio, agentRunner, jobRunner)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("linkmarket api listening", "addr", cfg.Addr, "google_login", google != nil, "twilio", twilio != nil)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
