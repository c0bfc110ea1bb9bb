package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"payment-reconciler/internal/domain"
)

// ExpiryWorker periodically expires stale pending payments via the sweep runner.
type ExpiryWorker struct {
	interval time.Duration
	cutoff   time.Duration
	runner   *SweepRunner
	log      *zerolog.Logger
}

func NewExpiryWorker(interval, cutoff time.Duration, runner *SweepRunner, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if cutoff <= 0 {
		cutoff = 30 * time.Minute
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		cutoff:   cutoff,
		runner:   runner,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("cutoff", w.cutoff).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ExpiryWorker) tick(ctx context.Context) {
	res, err := w.runner.Run(ctx, w.cutoff, "timer")
	if err != nil {
		if !errors.Is(err, domain.ErrLockNotAcquired) && !errors.Is(err, context.Canceled) {
			w.log.Error().Err(err).Msg("expiry worker error")
		}
		return
	}
	if res.Expired > 0 {
		w.log.Info().Int("scanned", res.Scanned).Int("expired", res.Expired).Msg("stale payments expired")
	}
}
