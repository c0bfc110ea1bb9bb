package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"payment-reconciler/internal/domain"
	"payment-reconciler/internal/infra/logging"
	"payment-reconciler/internal/infra/metrics"
	"payment-reconciler/internal/infra/redis"
)

type ctxAdminKey struct{}

const sweepCommand = "sweep"

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			metrics.IncAdminCommand(sweepCommand, "unauthorized")
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), ctxAdminKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func adminSubject(ctx context.Context) string {
	s, _ := ctx.Value(ctxAdminKey{}).(string)
	return s
}

// handleSweep runs one expiry pass. ?cutoff= accepts a Go duration and defaults to the configured cutoff.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.With(ctx, s.log)
	subject := adminSubject(ctx)

	cutoff := s.defaultCutoff
	if raw := r.URL.Query().Get("cutoff"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "cutoff must be a positive duration")
			return
		}
		cutoff = d
	}

	if s.limiter != nil && s.sweepPerMin > 0 {
		ok, err := s.limiter.Allow(ctx, redis.AdminCommandKey(subject, sweepCommand), s.sweepPerMin, time.Minute)
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable; allowing admin sweep")
		} else if !ok {
			metrics.IncAdminCommand(sweepCommand, "throttled")
			writeError(w, http.StatusTooManyRequests, "too many sweeps")
			return
		}
	}
	metrics.IncAdminCommand(sweepCommand, "authorized")

	res, err := s.sweeps.Run(ctx, cutoff, "admin")
	switch {
	case errors.Is(err, domain.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "sweep already running")
		return
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Str("subject", subject).Msg("admin sweep failed")
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}

	log.Info().Str("subject", subject).Dur("cutoff", cutoff).
		Int("scanned", res.Scanned).Int("expired", res.Expired).Msg("admin sweep finished")
	writeJSON(w, http.StatusOK, res)
}
