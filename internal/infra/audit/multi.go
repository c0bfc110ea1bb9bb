package audit

import (
	"context"
	"errors"

	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.AuditSink = Multi(nil)

// Multi appends to every sink in order. A failing sink does not stop the
// others; all failures are joined.
type Multi []adapter.AuditSink

func (m Multi) Append(ctx context.Context, e *model.AuditLogEntry) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
