package adapter

import (
	"context"
	"net/http"

	"payment-reconciler/internal/domain/model"
)

// Normalizer turns a raw provider notification into a PaymentEvent.
// Implementations perform no I/O and return *domain.MalformedEventError for
// unusable payloads.
type Normalizer interface {
	Provider() string
	Normalize(header http.Header, body []byte) (model.PaymentEvent, error)
}

// Mailer sends a single transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// AuditSink receives every applied status change.
type AuditSink interface {
	Append(ctx context.Context, e *model.AuditLogEntry) error
}

// TaskRunner runs work off the caller's goroutine.
type TaskRunner interface {
	Submit(task func(ctx context.Context) error) error
}

// Locker guards singleton background jobs across replicas.
type Locker interface {
	TryLock(ctx context.Context, key string) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}
