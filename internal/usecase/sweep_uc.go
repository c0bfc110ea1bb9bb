// File: internal/usecase/sweep_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"payment-reconciler/internal/domain"
	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/domain/ports/repository"
)

// Compile-time check
var _ SweepUseCase = (*sweepUC)(nil)

const DefaultSweepBatchSize = 200

// SweepResult counts one expiry pass.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Expired int `json:"expired"`
}

type SweepUseCase interface {
	// Sweep expires every pending record created before now-cutoff.
	Sweep(ctx context.Context, cutoff time.Duration) (SweepResult, error)
}

type sweepUC struct {
	payments   repository.PaymentRepository
	tm         repository.TransactionManager
	dispatcher SideEffectDispatcher
	batchSize  int
	log        *zerolog.Logger
	now        func() time.Time
}

func NewSweepUseCase(payments repository.PaymentRepository, tm repository.TransactionManager, dispatcher SideEffectDispatcher, batchSize int, logger *zerolog.Logger) *sweepUC {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	l := logger.With().Str("component", "SweepUseCase").Logger()
	return &sweepUC{
		payments:   payments,
		tm:         tm,
		dispatcher: dispatcher,
		batchSize:  batchSize,
		log:        &l,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (uc *sweepUC) WithClock(now func() time.Time) *sweepUC {
	uc.now = now
	return uc
}

// Sweep works in batches. Each batch commits on its own, so a crash part way
// leaves the remaining records pending for the next run.
func (uc *sweepUC) Sweep(ctx context.Context, cutoff time.Duration) (SweepResult, error) {
	var res SweepResult
	if cutoff <= 0 {
		return res, fmt.Errorf("%w: cutoff must be positive, got %s", domain.ErrInvalidArgument, cutoff)
	}
	at := uc.now()
	deadline := at.Add(-cutoff)

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		batch, err := uc.payments.ListPendingOlderThan(ctx, repository.NoTX, deadline, uc.batchSize)
		if err != nil {
			return res, fmt.Errorf("list stale payments: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		res.Scanned += len(batch)

		ids := make([]string, len(batch))
		byID := make(map[string]*model.PaymentRecord, len(batch))
		for i, p := range batch {
			ids[i] = p.ID
			byID[p.ID] = p
		}

		var expired []string
		err = uc.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
			var err error
			expired, err = uc.payments.ExpirePending(ctx, tx, ids, deadline, at)
			return err
		})
		if err != nil {
			return res, fmt.Errorf("expire batch: %w", err)
		}
		res.Expired += len(expired)

		for _, id := range expired {
			p, ok := byID[id]
			if !ok {
				continue
			}
			next, err := p.Transition(model.PaymentStatusExpired, at, nil)
			if err != nil {
				continue
			}
			uc.dispatcher.Dispatch(ctx, next, p.Status, model.AuditSourceSweep)
		}

		if len(batch) < uc.batchSize || len(expired) == 0 {
			break
		}
	}

	uc.log.Info().
		Dur("cutoff", cutoff).
		Int("scanned", res.Scanned).
		Int("expired", res.Expired).
		Msg("expiry sweep finished")
	return res, nil
}
