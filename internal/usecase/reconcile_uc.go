// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"payment-reconciler/internal/domain"
	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/domain/ports/repository"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconciliationResult reports what a single event did to local state.
type ReconciliationResult struct {
	RecordID       string
	Transitioned   bool
	PreviousStatus model.PaymentStatus
	NewStatus      model.PaymentStatus
}

type ReconcileUseCase interface {
	// Reconcile applies ev to its payment record. Replays, unknown statuses and
	// attempts to leave a terminal state succeed with Transitioned=false.
	Reconcile(ctx context.Context, ev model.PaymentEvent) (ReconciliationResult, error)
}

type reconcileUC struct {
	payments    repository.PaymentRepository
	enrollments repository.EnrollmentRepository
	tm          repository.TransactionManager
	dispatcher  SideEffectDispatcher
	log         *zerolog.Logger
	now         func() time.Time
}

func NewReconcileUseCase(
	payments repository.PaymentRepository,
	enrollments repository.EnrollmentRepository,
	tm repository.TransactionManager,
	dispatcher SideEffectDispatcher,
	logger *zerolog.Logger,
) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUseCase").Logger()
	return &reconcileUC{
		payments:    payments,
		enrollments: enrollments,
		tm:          tm,
		dispatcher:  dispatcher,
		log:         &l,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Used by tests and the CLI.
func (uc *reconcileUC) WithClock(now func() time.Time) *reconcileUC {
	uc.now = now
	return uc
}

func (uc *reconcileUC) Reconcile(ctx context.Context, ev model.PaymentEvent) (ReconciliationResult, error) {
	providerID := strings.TrimSpace(ev.ProviderPaymentID)
	if providerID == "" {
		return ReconciliationResult{}, &domain.MalformedEventError{Reason: "missing provider payment id"}
	}
	target, known := ev.Status.Classify()

	var (
		res     ReconciliationResult
		applied *model.PaymentRecord
	)
	err := uc.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		res = ReconciliationResult{}
		applied = nil

		recs, err := uc.payments.FindByProviderPaymentID(ctx, tx, providerID)
		if err != nil {
			return fmt.Errorf("lookup payment %s: %w", providerID, err)
		}
		switch len(recs) {
		case 0:
			return &domain.RecordNotFoundError{ProviderPaymentID: providerID}
		case 1:
		default:
			return &domain.DuplicateRecordError{ProviderPaymentID: providerID, Count: len(recs)}
		}
		rec := recs[0]
		res.RecordID = rec.ID
		res.PreviousStatus = rec.Status
		res.NewStatus = rec.Status

		if !known {
			uc.log.Info().
				Str("provider_payment_id", providerID).
				Str("reported_status", ev.Status.String()).
				Msg("unrecognized provider status; ignoring")
			return nil
		}
		if target == rec.Status {
			uc.log.Info().Err(&domain.TransitionConflictError{
				RecordID: rec.ID, Current: string(rec.Status), Requested: string(target), Replay: true,
			}).Str("provider_payment_id", providerID).Msg("duplicate delivery")
			return nil
		}
		if rec.Status.IsTerminal() {
			uc.log.Warn().Err(&domain.TransitionConflictError{
				RecordID: rec.ID, Current: string(rec.Status), Requested: string(target),
			}).Str("provider_payment_id", providerID).Msg("terminal status kept")
			return nil
		}

		at := uc.now()
		next, err := rec.Transition(target, at, ev.Details)
		if err != nil {
			return fmt.Errorf("transition %s: %w", rec.ID, err)
		}
		ok, err := uc.payments.ApplyTransition(ctx, tx, rec.Status, next)
		if err != nil {
			return fmt.Errorf("write status for %s: %w", rec.ID, err)
		}
		if !ok {
			// Another writer moved the record between read and write.
			uc.log.Warn().Str("record_id", rec.ID).Msg("status changed concurrently; skipping")
			return nil
		}

		if target == model.PaymentStatusPaid {
			if err := uc.grantEnrollment(ctx, tx, next, at); err != nil {
				return err
			}
		}

		applied = next
		res.Transitioned = true
		res.NewStatus = target
		return nil
	})
	if err != nil {
		return ReconciliationResult{}, err
	}

	if applied != nil {
		uc.log.Info().
			Str("provider_payment_id", providerID).
			Str("record_id", applied.ID).
			Str("from", string(res.PreviousStatus)).
			Str("to", string(res.NewStatus)).
			Str("source", string(ev.Origin())).
			Msg("payment transitioned")
		uc.dispatcher.Dispatch(ctx, applied, res.PreviousStatus, ev.Origin())
	}
	return res, nil
}

func (uc *reconcileUC) grantEnrollment(ctx context.Context, tx repository.Tx, p *model.PaymentRecord, at time.Time) error {
	inserted, err := uc.enrollments.Upsert(ctx, tx, model.NewEnrollment(p, at))
	if err != nil {
		return fmt.Errorf("upsert enrollment for %s: %w", p.ID, err)
	}
	if !inserted {
		return nil
	}
	if err := uc.enrollments.IncrementUserEnrollments(ctx, tx, p.UserID); err != nil {
		return fmt.Errorf("increment enrollments for user: %w", err)
	}
	return nil
}
