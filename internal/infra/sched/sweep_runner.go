package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"payment-reconciler/internal/domain"
	"payment-reconciler/internal/domain/ports/adapter"
	"payment-reconciler/internal/infra/metrics"
	"payment-reconciler/internal/usecase"
)

const sweepLockKey = "lock:payment-sweep"

// SweepRunner is the single entry point for every sweep trigger (timer, admin
// endpoint, CLI). It serializes runs across replicas when a Locker is set.
type SweepRunner struct {
	sweeper usecase.SweepUseCase
	locker  adapter.Locker
	log     *zerolog.Logger
}

// NewSweepRunner builds a runner; locker may be nil for single-instance deployments.
func NewSweepRunner(sweeper usecase.SweepUseCase, locker adapter.Locker, logger *zerolog.Logger) *SweepRunner {
	l := logger.With().Str("component", "SweepRunner").Logger()
	return &SweepRunner{sweeper: sweeper, locker: locker, log: &l}
}

// Run performs one sweep. It returns domain.ErrLockNotAcquired when another
// replica is already sweeping.
func (r *SweepRunner) Run(ctx context.Context, cutoff time.Duration, trigger string) (usecase.SweepResult, error) {
	if r.locker != nil {
		token, ok, err := r.locker.TryLock(ctx, sweepLockKey)
		if err != nil {
			// Redis trouble must not stop expiry; the sweep is safe to overlap.
			r.log.Warn().Err(err).Msg("sweep lock unavailable; running unlocked")
		} else if !ok {
			metrics.IncSweepSkipped(trigger)
			r.log.Debug().Str("trigger", trigger).Msg("sweep already running elsewhere")
			return usecase.SweepResult{}, domain.ErrLockNotAcquired
		} else {
			defer func() {
				if err := r.locker.Unlock(context.WithoutCancel(ctx), sweepLockKey, token); err != nil {
					r.log.Warn().Err(err).Msg("failed to release sweep lock")
				}
			}()
		}
	}

	start := time.Now()
	res, err := r.sweeper.Sweep(ctx, cutoff)
	metrics.ObserveSweep(trigger, res.Scanned, res.Expired, time.Since(start), err)
	metrics.AddTransitions("expired", "sweep", res.Expired)
	if err != nil {
		r.log.Error().Err(err).Str("trigger", trigger).Int("expired", res.Expired).Msg("sweep failed")
		return res, err
	}
	return res, nil
}
