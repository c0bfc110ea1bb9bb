package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"payment-reconciler/internal/config"
	"payment-reconciler/internal/domain"
	"payment-reconciler/internal/domain/ports/adapter"
	"payment-reconciler/internal/infra/logging"
	"payment-reconciler/internal/infra/metrics"
	"payment-reconciler/internal/usecase"
)

// NormalizerLookup resolves the normalizer for the {provider} path segment.
type NormalizerLookup interface {
	Lookup(provider string) (adapter.Normalizer, bool)
}

// SweepTrigger runs one expiry sweep under the cross-replica lock.
type SweepTrigger interface {
	Run(ctx context.Context, cutoff time.Duration, trigger string) (usecase.SweepResult, error)
}

// RateLimiter throttles admin commands per subject.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type webhookResponse struct {
	Transitioned bool   `json:"transitioned"`
	Status       string `json:"status"`
	RecordID     string `json:"record_id"`
}

type Server struct {
	reconciler  usecase.ReconcileUseCase
	normalizers NormalizerLookup
	sweeps      SweepTrigger
	auth        *AuthManager
	limiter     RateLimiter

	maxBody        int64
	reconcileLimit time.Duration
	defaultCutoff  time.Duration
	sweepPerMin    int

	srv *http.Server
	log *zerolog.Logger
}

// NewServer wires the HTTP surface. auth nil disables /admin; limiter nil disables throttling.
func NewServer(
	cfg *config.Config,
	reconciler usecase.ReconcileUseCase,
	normalizers NormalizerLookup,
	sweeps SweepTrigger,
	auth *AuthManager,
	limiter RateLimiter,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	s := &Server{
		reconciler:     reconciler,
		normalizers:    normalizers,
		sweeps:         sweeps,
		auth:           auth,
		limiter:        limiter,
		maxBody:        cfg.HTTP.MaxBodyBytes,
		reconcileLimit: cfg.Reconcile.Timeout,
		defaultCutoff:  cfg.Sweep.Cutoff,
		sweepPerMin:    cfg.Admin.SweepPerMin,
		log:            &l,
	}
	s.srv = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           s.Routes(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
	return s
}

// Routes builds the chi router with the middleware chain applied.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		if provider := chi.URLParam(r, "provider"); provider != "" {
			metrics.IncWebhook(provider, strconv.Itoa(http.StatusMethodNotAllowed))
		}
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.reconcileLimit > 0 {
			r.Use(Timeout(s.reconcileLimit))
		}
		r.Post("/webhooks", s.handleWebhook)
		r.Post("/webhooks/{provider}", s.handleWebhook)
	})

	if s.auth != nil && s.sweeps != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/sweep", s.handleSweep)
		})
	}

	return Chain(r, TraceID(), RequestLog(s.log), Recover(s.log))
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	n, ok := s.normalizers.Lookup(provider)
	if !ok {
		metrics.IncWebhook(provider, strconv.Itoa(http.StatusNotFound))
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}
	provider = n.Provider()
	ctx := logging.WithProvider(r.Context(), provider)
	log := logging.With(ctx, s.log)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		code := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		metrics.IncWebhook(provider, strconv.Itoa(code))
		writeError(w, code, "cannot read body")
		return
	}

	ev, err := n.Normalize(r.Header, body)
	if err != nil {
		s.fail(w, log, provider, err)
		return
	}
	ctx = logging.WithProviderPaymentID(ctx, ev.ProviderPaymentID)
	log = logging.With(ctx, s.log)

	start := time.Now()
	res, err := s.reconciler.Reconcile(ctx, ev)
	metrics.ObserveReconcile(provider, time.Since(start))
	if err != nil {
		s.fail(w, log, provider, err)
		return
	}

	if res.Transitioned {
		metrics.IncReconcile(provider, "transitioned")
		metrics.IncTransition(string(res.NewStatus), string(ev.Origin()))
	} else {
		metrics.IncReconcile(provider, "noop")
	}
	metrics.IncWebhook(provider, strconv.Itoa(http.StatusOK))
	writeJSON(w, http.StatusOK, webhookResponse{
		Transitioned: res.Transitioned,
		Status:       string(res.NewStatus),
		RecordID:     res.RecordID,
	})
}

// fail maps the reconciliation error taxonomy onto a status code.
func (s *Server) fail(w http.ResponseWriter, log *zerolog.Logger, provider string, err error) {
	var (
		malformed *domain.MalformedEventError
		notFound  *domain.RecordNotFoundError
		duplicate *domain.DuplicateRecordError

		code    int
		outcome string
		msg     string
	)
	switch {
	case errors.As(err, &malformed):
		code, outcome, msg = http.StatusBadRequest, "malformed", malformed.Error()
		log.Info().Err(err).Msg("rejected malformed webhook")
	case errors.As(err, &notFound):
		code, outcome, msg = http.StatusNotFound, "not_found", "payment not found"
		log.Warn().Err(err).Msg("webhook for unknown payment")
	case errors.As(err, &duplicate):
		code, outcome, msg = http.StatusInternalServerError, "duplicate", "internal error"
		log.Error().Err(err).Bool("alert", true).Msg("provider payment id bound to several records")
	case errors.Is(err, context.DeadlineExceeded):
		code, outcome, msg = http.StatusInternalServerError, "timeout", "internal error"
		log.Error().Err(err).Msg("reconcile timed out")
	default:
		code, outcome, msg = http.StatusInternalServerError, "error", "internal error"
		log.Error().Err(err).Msg("reconcile failed")
	}
	metrics.IncReconcile(provider, outcome)
	metrics.IncWebhook(provider, strconv.Itoa(code))
	writeError(w, code, msg)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
