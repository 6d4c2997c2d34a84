// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"thewell-curation/internal/config"
	pg "thewell-curation/internal/infra/db/postgres"
	"thewell-curation/internal/infra/logging"
	"thewell-curation/internal/infra/metrics"
	red "thewell-curation/internal/infra/redis"
	"thewell-curation/internal/infra/web"
	"thewell-curation/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logging)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	// ---- Repositories ----
	jobStore := red.NewJobStore(redisClient)
	locker := red.NewLocker(redisClient)
	auditSink := pg.NewAuditRepo(pool)

	// ---- Use cases ----
	queues := usecase.Queues{
		Review:     cfg.Review.Queue,
		Processing: cfg.Review.ProcessingQueue,
		Rejected:   cfg.Review.RejectedQueue,
	}
	reviewUC := usecase.NewReviewUseCase(jobStore, auditSink, locker, queues, logger)
	bulkUC := usecase.NewBulkUseCase(reviewUC, logger)
	statsUC := usecase.NewStatsUseCase(jobStore, queues, logger)

	// ---- HTTP server ----
	metrics.MustRegister()
	server := web.NewServer(reviewUC, bulkUC, statsUC, cfg.Server.APIKey, logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(),
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("review API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}
