package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"payment-reconciler/internal/config"
	"payment-reconciler/internal/domain/ports/adapter"
	"payment-reconciler/internal/domain/ports/repository"
	"payment-reconciler/internal/infra/api"
	"payment-reconciler/internal/infra/audit"
	pg "payment-reconciler/internal/infra/db/postgres"
	"payment-reconciler/internal/infra/i18n"
	"payment-reconciler/internal/infra/mail"
	"payment-reconciler/internal/infra/normalizer"
	red "payment-reconciler/internal/infra/redis"
	"payment-reconciler/internal/infra/sched"
	"payment-reconciler/internal/infra/worker"
	"payment-reconciler/internal/usecase"
)

// UserDirectory stores the contact data used for notifications.
type UserDirectory interface {
	repository.UserContactRepository
	Upsert(ctx context.Context, tx repository.Tx, id, email, name string) error
}

// Container owns every long-lived dependency of the service. Both the server
// and the CLI build one, so a sweep or a replayed event behaves identically
// whichever entry point triggered it.
type Container struct {
	Cfg  *config.Config
	Log  *zerolog.Logger
	Pool *pgxpool.Pool

	Payments    usecase.PaymentUseCase
	Reconciler  usecase.ReconcileUseCase
	Sweeper     usecase.SweepUseCase
	SweepRunner *sched.SweepRunner
	Normalizers *normalizer.Registry
	Users       UserDirectory
	Audit       repository.AuditRepository
	Enrollments repository.EnrollmentRepository

	Auth    *api.AuthManager
	Limiter *red.RateLimiter

	workers *worker.Pool
	closers []func() error
}

// Build connects to Postgres (and Redis, Kafka when configured) and wires the use cases.
// The dispatch pool runs until Close.
func Build(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (_ *Container, err error) {
	c := &Container{Cfg: cfg, Log: logger}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	c.Pool = pool
	c.closers = append(c.closers, func() error { pool.Close(); return nil })
	if cfg.Database.Migrate {
		if err := pg.Migrate(ctx, pool); err != nil {
			return nil, err
		}
	}

	tm := pg.NewTxManager(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	c.Enrollments = pg.NewEnrollmentRepo(pool)
	c.Audit = pg.NewAuditRepo(pool)
	users := pg.NewUserRepo(pool)
	c.Users = users
	var contacts repository.UserContactRepository = users

	// ---- Redis (optional) ----
	var locker adapter.Locker
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		c.closers = append(c.closers, rc.Close)
		locker = red.NewLocker(rc, cfg.Sweep.LockTTL)
		c.Limiter = red.NewRateLimiter(rc)
		contacts = pg.NewUserContactCacheDecorator(users, rc, cfg.Redis.TTL)
	} else {
		logger.Warn().Msg("redis not configured: sweeps run unlocked and admin calls are not throttled")
	}

	// ---- Side effects ----
	sinks := audit.Multi{audit.NewPostgresSink(c.Audit)}
	if len(cfg.Audit.KafkaBrokers) > 0 {
		ks := audit.NewKafkaSink(audit.NewKafkaWriter(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic))
		c.closers = append(c.closers, ks.Close)
		sinks = append(sinks, ks)
	}

	c.workers = worker.NewPool(cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, logger)
	c.workers.Start(ctx)

	mailCopy, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Mail.Language)
	if err != nil {
		return nil, err
	}
	notifier := usecase.NewNotificationUseCase(mail.New(cfg.Mail, logger), contacts, mailCopy, logger)
	dispatcher := usecase.NewSideEffectDispatcher(c.workers, sinks, notifier, cfg.Dispatch.EffectTimeout, logger)

	// ---- Use cases ----
	c.Payments = usecase.NewPaymentUseCase(paymentRepo)
	c.Reconciler = usecase.NewReconcileUseCase(paymentRepo, c.Enrollments, tm, dispatcher, logger)
	c.Sweeper = usecase.NewSweepUseCase(paymentRepo, tm, dispatcher, cfg.Sweep.BatchSize, logger)
	c.SweepRunner = sched.NewSweepRunner(c.Sweeper, locker, logger)
	c.Normalizers = normalizer.FromConfig(cfg.Provider)

	if cfg.Admin.JWTSecret != "" {
		c.Auth = api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	}
	return c, nil
}

// Server builds the HTTP surface over the container's use cases.
func (c *Container) Server() *api.Server {
	var limiter api.RateLimiter
	if c.Limiter != nil {
		limiter = c.Limiter
	}
	return api.NewServer(c.Cfg, c.Reconciler, c.Normalizers, c.SweepRunner, c.Auth, limiter, c.Log)
}

// Close drains pending side effects, then releases connections in reverse order.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.workers != nil {
		c.workers.Stop()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
