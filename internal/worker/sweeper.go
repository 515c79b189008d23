package worker

// sweeper.go
// Background goroutine that errors print logs stuck in processing, e.g. after
// the server died mid-delivery. A stale log is never retried: it becomes
// errored so the operator sees it and can resend.

import (
	"context"
	"time"

	"billpos/internal/clock"
	"billpos/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	sweepTickInterval = 30 * time.Second
	staleProcessing   = "delivery did not complete"
)

// SweeperConfig holds all dependencies for the stale-processing sweeper.
type SweeperConfig struct {
	Logs  repository.PrintLogRepository
	Clock clock.Clock
	// StaleAfter is how long a log may stay processing before it is errored.
	StaleAfter time.Duration
	// Interval defaults to 30s.
	Interval time.Duration
}

// StartSweeper launches the sweeper and returns immediately. It respects the
// context for graceful shutdown.
func StartSweeper(ctx context.Context, cfg SweeperConfig) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = sweepTickInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("stale_after", cfg.StaleAfter).Msg("sweeper: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("sweeper: shutting down")
				return
			case <-ticker.C:
				SweepStale(ctx, cfg)
			}
		}
	}()
}

// SweepStale runs one pass and returns the number of logs errored.
func SweepStale(ctx context.Context, cfg SweeperConfig) int {
	cutoff := cfg.Clock.Now().Add(-cfg.StaleAfter)
	stale, err := cfg.Logs.FailStale(ctx, cutoff, staleProcessing)
	if err != nil {
		log.Error().Err(err).Msg("sweeper: failed to error stale print logs")
		return 0
	}
	for _, l := range stale {
		log.Warn().
			Str("log_id", l.ID.String()).
			Str("bill_id", l.BillID.String()).
			Str("printer_id", l.PrinterID.String()).
			Msg("sweeper: print log stuck in processing, errored")
	}
	return len(stale)
}
