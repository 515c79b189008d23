package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"billpos/internal/clock"
	"billpos/internal/config"
	"billpos/internal/handler"
	"billpos/internal/infra"
	"billpos/internal/repository"
	"billpos/internal/router"
	"billpos/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty console in development, JSON in production
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL, cfg.WorkerPoolSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Printing ─────────────────────────────────────────────────────────────
	// Worker handlers are wired here (composition root) so that the pool has
	// full access to all infrastructure dependencies.
	var (
		transport worker.Transport
		breakers  handler.BreakerReporter
	)
	switch cfg.PrinterMode {
	case "log":
		transport = infra.LogPrinter{}
	default:
		np := infra.NewNetworkPrinter(infra.CircuitBreakerConfig{
			FailureThreshold: cfg.CBFailureThreshold,
			OpenTimeout:      time.Duration(cfg.CBOpenTimeoutSeconds) * time.Second,
		})
		transport, breakers = np, np
	}

	clk := clock.System{}
	dispatcher := worker.NewDispatcher(rdb)
	printLogs := repository.NewPrintLogRepository(db, clk)
	printWorker := worker.NewPrintWorker(worker.PrintWorkerConfig{
		Bills: repository.NewBillRepository(db),
		Logs:  printLogs,
		Catalog: repository.NewCachedCatalog(
			repository.NewCatalogRepository(db), rdb,
			time.Duration(cfg.CatalogCacheTTLSecond)*time.Second,
		),
		Store:     repository.NewStore(db),
		Transport: transport,
		Clock:     clk,
		Timeout:   time.Duration(cfg.PrinterTimeoutSeconds) * time.Second,
		PrepTime:  time.Duration(cfg.PrepMinutes) * time.Minute,
		Requeue:   dispatcher.EnqueuePrint,
	})

	pool := worker.NewPool(rdb, cfg.WorkerPoolSize)
	pool.Handle(worker.QueuePrint, worker.JobPrint, printWorker.Process)
	mailer := infra.NewMailer(cfg)
	if mailer.Configured() {
		pool.Handle(worker.QueueEmail, worker.JobEmail, worker.NewEmailWorker(mailer).Process)
	} else {
		log.Warn().Msg("SMTP_HOST not set: receipt emails stay queued")
	}
	pool.Start(ctx)

	worker.StartSweeper(ctx, worker.SweeperConfig{
		Logs:       printLogs,
		Clock:      clk,
		StaleAfter: time.Duration(cfg.StaleProcessingMinutes) * time.Minute,
	})

	r := router.New(ctx, cfg, db, rdb, breakers)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("printer_mode", cfg.PrinterMode).Msgf("billpos listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	// stop consuming; in-flight deliveries finish and record their outcome
	cancel()
	pool.Wait()
	log.Info().Msg("server exited")
}
