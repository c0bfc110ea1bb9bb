// File: internal/usecase/dispatcher.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"payment-reconciler/internal/domain"
	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/domain/ports/adapter"
)

// SideEffectDispatcher runs the post-commit effects of an applied transition.
// Dispatch never blocks on the effects and never reports their failure.
type SideEffectDispatcher interface {
	Dispatch(ctx context.Context, p *model.PaymentRecord, from model.PaymentStatus, source model.AuditSource)
}

// PaymentNotifier sends the buyer-facing messages for final outcomes.
type PaymentNotifier interface {
	OnPaid(ctx context.Context, p *model.PaymentRecord) error
	OnFailed(ctx context.Context, p *model.PaymentRecord) error
}

const defaultEffectTimeout = 30 * time.Second

type dispatcher struct {
	runner   adapter.TaskRunner
	audit    adapter.AuditSink
	notifier PaymentNotifier
	timeout  time.Duration
	log      *zerolog.Logger
}

func NewSideEffectDispatcher(runner adapter.TaskRunner, audit adapter.AuditSink, notifier PaymentNotifier, timeout time.Duration, logger *zerolog.Logger) *dispatcher {
	if timeout <= 0 {
		timeout = defaultEffectTimeout
	}
	l := logger.With().Str("component", "SideEffectDispatcher").Logger()
	return &dispatcher{runner: runner, audit: audit, notifier: notifier, timeout: timeout, log: &l}
}

func (d *dispatcher) Dispatch(_ context.Context, p *model.PaymentRecord, from model.PaymentStatus, source model.AuditSource) {
	rec := *p
	entry := model.NewStatusChangedEntry(&rec, from, source, rec.UpdatedAt)

	err := d.runner.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		return d.run(ctx, &rec, &entry)
	})
	if err != nil {
		d.log.Error().
			Err(&domain.SideEffectError{Effect: "dispatch", RecordID: rec.ID, Err: err}).
			Str("provider_payment_id", rec.ProviderPaymentID).
			Msg("side effects dropped")
	}
}

// run executes each effect independently; one failing does not skip the rest.
func (d *dispatcher) run(ctx context.Context, p *model.PaymentRecord, entry *model.AuditLogEntry) error {
	var errs []error
	if d.audit != nil {
		if err := d.audit.Append(ctx, entry); err != nil {
			errs = append(errs, &domain.SideEffectError{Effect: "audit", RecordID: p.ID, Err: err})
		}
	}
	if d.notifier != nil {
		switch p.Status {
		case model.PaymentStatusPaid:
			if err := d.notifier.OnPaid(ctx, p); err != nil {
				errs = append(errs, &domain.SideEffectError{Effect: "on_paid", RecordID: p.ID, Err: err})
			}
		case model.PaymentStatusFailed, model.PaymentStatusCanceled:
			if err := d.notifier.OnFailed(ctx, p); err != nil {
				errs = append(errs, &domain.SideEffectError{Effect: "on_failed", RecordID: p.ID, Err: err})
			}
		}
	}
	for _, err := range errs {
		d.log.Error().Err(err).Str("provider_payment_id", p.ProviderPaymentID).Msg("side effect failed")
	}
	return errors.Join(errs...)
}
