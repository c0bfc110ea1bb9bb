package mail

import (
	"context"

	"github.com/rs/zerolog"

	"payment-reconciler/internal/config"
	"payment-reconciler/internal/domain/ports/adapter"
	"payment-reconciler/internal/infra/logging"
	"payment-reconciler/internal/infra/metrics"
)

// Compile-time check
var _ adapter.Mailer = (*NoopMailer)(nil)

// NoopMailer logs instead of sending. Used in development.
type NoopMailer struct {
	log *zerolog.Logger
}

func NewNoopMailer(logger *zerolog.Logger) *NoopMailer {
	l := logger.With().Str("component", "NoopMailer").Logger()
	return &NoopMailer{log: &l}
}

func (m *NoopMailer) Send(_ context.Context, to, subject, _, _ string) error {
	metrics.IncMail("noop", "ok")
	m.log.Info().Str("to", logging.Redact(to, false)).Str("subject", subject).Msg("mail suppressed")
	return nil
}

// New picks the mailer for cfg.Driver.
func New(cfg config.MailConfig, logger *zerolog.Logger) adapter.Mailer {
	if cfg.Driver == "smtp" {
		return NewSMTPMailer(cfg, logger)
	}
	return NewNoopMailer(logger)
}
