package audit

import (
	"context"
	"fmt"

	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/domain/ports/adapter"
	"payment-reconciler/internal/domain/ports/repository"
	"payment-reconciler/internal/infra/metrics"
)

// Compile-time check
var _ adapter.AuditSink = (*PostgresSink)(nil)

// PostgresSink appends entries to the audit_log table outside any transaction.
type PostgresSink struct {
	repo repository.AuditRepository
}

func NewPostgresSink(repo repository.AuditRepository) *PostgresSink {
	return &PostgresSink{repo: repo}
}

func (s *PostgresSink) Append(ctx context.Context, e *model.AuditLogEntry) error {
	if err := s.repo.Append(ctx, repository.NoTX, e); err != nil {
		metrics.IncAuditAppend("postgres", "error")
		return fmt.Errorf("append audit %s: %w", e.ID, err)
	}
	metrics.IncAuditAppend("postgres", "ok")
	return nil
}
