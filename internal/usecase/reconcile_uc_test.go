//go:build !integration

package usecase_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"payment-reconciler/internal/domain"
	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/domain/ports/repository"
	"payment-reconciler/internal/usecase"
)

type reconcileTestDeps struct {
	payments    *MockPaymentRepo
	enrollments *MockEnrollmentRepo
	tm          *MockTxManager
	dispatcher  *MockDispatcher
	now         time.Time
}

func newReconcileDeps(recs ...*model.PaymentRecord) *reconcileTestDeps {
	return &reconcileTestDeps{
		payments:    NewMockPaymentRepo(recs...),
		enrollments: NewMockEnrollmentRepo(),
		tm:          NewMockTxManager(),
		dispatcher:  &MockDispatcher{},
		now:         time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (d *reconcileTestDeps) uc() usecase.ReconcileUseCase {
	return usecase.NewReconcileUseCase(d.payments, d.enrollments, d.tm, d.dispatcher, newTestLogger()).
		WithClock(fixedClock(d.now))
}

func event(id string, status model.ReportedStatus) model.PaymentEvent {
	return model.PaymentEvent{ProviderPaymentID: id, Status: status, Provider: "generic"}
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func TestReconcileUseCase_Reconcile(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("should mark paid, enroll, and ignore the replay", func(t *testing.T) {
		// --- Arrange ---
		deps := newReconcileDeps(pendingRecord("R1", "tr_123", created))
		uc := deps.uc()

		// --- Act ---
		first, err := uc.Reconcile(ctx, event("tr_123", model.ReportedPaid))
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		second, err := uc.Reconcile(ctx, event("tr_123", model.ReportedPaid))
		if err != nil {
			t.Fatalf("expected no error on replay, but got: %v", err)
		}

		// --- Assert ---
		want := usecase.ReconciliationResult{RecordID: "R1", Transitioned: true, PreviousStatus: model.PaymentStatusPending, NewStatus: model.PaymentStatusPaid}
		if diff := cmp.Diff(want, first); diff != "" {
			t.Errorf("first result mismatch (-want +got):\n%s", diff)
		}
		if second.Transitioned {
			t.Error("expected replay to report transitioned=false")
		}
		rec := deps.payments.Get("R1")
		if rec.Status != model.PaymentStatusPaid {
			t.Errorf("expected status paid, but got %s", rec.Status)
		}
		if rec.CompletedAt == nil || !rec.CompletedAt.Equal(deps.now) {
			t.Errorf("expected completedAt %v, but got %v", deps.now, rec.CompletedAt)
		}
		if _, err := deps.enrollments.FindByUserAndProduct(ctx, nil, rec.UserID, rec.ProductID); err != nil {
			t.Errorf("expected enrollment to exist, but got: %v", err)
		}
		if n, _ := deps.enrollments.CountForUser(ctx, nil, rec.UserID); n != 1 {
			t.Errorf("expected enrollment counter 1, but got %d", n)
		}
		if deps.dispatcher.Len() != 1 {
			t.Errorf("expected one dispatch, but got %d", deps.dispatcher.Len())
		}
	})

	t.Run("should keep a terminal status when a different one arrives", func(t *testing.T) {
		// --- Arrange ---
		paidAt := created.Add(time.Minute)
		r2 := pendingRecord("R2", "tr_200", created)
		r2.Status = model.PaymentStatusPaid
		r2.CompletedAt = &paidAt
		deps := newReconcileDeps(r2)
		uc := deps.uc()

		for _, s := range []model.ReportedStatus{model.ReportedFailed, model.ReportedExpired, model.ReportedCanceled, model.ReportedPending} {
			// --- Act ---
			res, err := uc.Reconcile(ctx, event("tr_200", s))

			// --- Assert ---
			if err != nil {
				t.Fatalf("expected no error for %s, but got: %v", s, err)
			}
			if res.Transitioned || res.NewStatus != model.PaymentStatusPaid {
				t.Errorf("expected paid to stick for %s, but got %+v", s, res)
			}
		}
		rec := deps.payments.Get("R2")
		if rec.Status != model.PaymentStatusPaid || !rec.CompletedAt.Equal(paidAt) || rec.FailedAt != nil || rec.ExpiredAt != nil {
			t.Errorf("expected record untouched, but got %+v", rec)
		}
		if deps.dispatcher.Len() != 0 {
			t.Errorf("expected no dispatch, but got %d", deps.dispatcher.Len())
		}
	})

	t.Run("should keep every terminal status and its timestamps", func(t *testing.T) {
		stamped := created.Add(2 * time.Minute)
		cases := []struct {
			status model.PaymentStatus
			stamp  func(r *model.PaymentRecord)
		}{
			{model.PaymentStatusFailed, func(r *model.PaymentRecord) { r.FailedAt = &stamped }},
			{model.PaymentStatusCanceled, func(r *model.PaymentRecord) { r.FailedAt = &stamped }},
			{model.PaymentStatusExpired, func(r *model.PaymentRecord) { r.ExpiredAt = &stamped }},
		}
		for _, tc := range cases {
			// --- Arrange ---
			rec := pendingRecord("R-"+string(tc.status), "tr_"+string(tc.status), created)
			rec.Status = tc.status
			tc.stamp(rec)
			want := *rec
			deps := newReconcileDeps(rec)
			uc := deps.uc()

			for _, s := range []model.ReportedStatus{
				model.ReportedPaid, model.ReportedFailed, model.ReportedCanceled,
				model.ReportedExpired, model.ReportedPending, model.ReportedAuthorized,
			} {
				// --- Act ---
				res, err := uc.Reconcile(ctx, event(rec.ProviderPaymentID, s))

				// --- Assert ---
				if err != nil {
					t.Fatalf("%s <- %s: expected no error, but got: %v", tc.status, s, err)
				}
				if res.Transitioned || res.NewStatus != tc.status {
					t.Errorf("%s <- %s: expected status to stick, but got %+v", tc.status, s, res)
				}
			}
			got := deps.payments.Get(rec.ID)
			if got.Status != tc.status || !sameTime(got.CompletedAt, want.CompletedAt) ||
				!sameTime(got.FailedAt, want.FailedAt) || !sameTime(got.ExpiredAt, want.ExpiredAt) {
				t.Errorf("%s: expected terminal timestamps untouched, but got %+v", tc.status, got)
			}
			if n, _ := deps.enrollments.CountForUser(ctx, nil, rec.UserID); n != 0 {
				t.Errorf("%s: expected no enrollment, but got %d", tc.status, n)
			}
			if deps.dispatcher.Len() != 0 {
				t.Errorf("%s: expected no dispatch, but got %d", tc.status, deps.dispatcher.Len())
			}
		}
	})

	t.Run("should log a duplicate delivery at info level", func(t *testing.T) {
		// --- Arrange ---
		var buf bytes.Buffer
		logger := zerolog.New(&buf).Level(zerolog.InfoLevel)
		deps := newReconcileDeps(pendingRecord("R7", "tr_700", created))
		uc := usecase.NewReconcileUseCase(deps.payments, deps.enrollments, deps.tm, deps.dispatcher, &logger).
			WithClock(fixedClock(deps.now))
		if _, err := uc.Reconcile(ctx, event("tr_700", model.ReportedPaid)); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		buf.Reset()

		// --- Act ---
		res, err := uc.Reconcile(ctx, event("tr_700", model.ReportedPaid))

		// --- Assert ---
		if err != nil || res.Transitioned {
			t.Fatalf("expected a no-op replay, but got %+v, %v", res, err)
		}
		out := buf.String()
		if !strings.Contains(out, `"level":"info"`) || !strings.Contains(out, "duplicate delivery") {
			t.Errorf("expected an info line for the replay, but got %q", out)
		}
	})

	t.Run("should tag the audit source with the event origin", func(t *testing.T) {
		// --- Arrange ---
		deps := newReconcileDeps(pendingRecord("R5", "tr_500", created), pendingRecord("R6", "tr_600", created))
		uc := deps.uc()
		manual := event("tr_500", model.ReportedPaid)
		manual.Source = model.AuditSourceAdmin

		// --- Act ---
		if _, err := uc.Reconcile(ctx, manual); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if _, err := uc.Reconcile(ctx, event("tr_600", model.ReportedFailed)); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}

		// --- Assert ---
		if deps.dispatcher.Len() != 2 {
			t.Fatalf("expected two dispatches, but got %d", deps.dispatcher.Len())
		}
		if got := deps.dispatcher.Calls[0]; got.RecordID != "R5" || got.Source != model.AuditSourceAdmin {
			t.Errorf("expected R5 dispatched as admin, but got %+v", got)
		}
		if got := deps.dispatcher.Calls[1]; got.RecordID != "R6" || got.Source != model.AuditSourceWebhook {
			t.Errorf("expected R6 dispatched as webhook, but got %+v", got)
		}
	})

	t.Run("should fail with RecordNotFoundError for unknown ids", func(t *testing.T) {
		deps := newReconcileDeps()
		_, err := deps.uc().Reconcile(ctx, event("tr_missing", model.ReportedPaid))

		var nf *domain.RecordNotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("expected RecordNotFoundError, but got: %v", err)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			t.Error("expected error to unwrap to ErrNotFound")
		}
	})

	t.Run("should fail with DuplicateRecordError when the id is bound twice", func(t *testing.T) {
		deps := newReconcileDeps(pendingRecord("A", "tr_dup", created), pendingRecord("B", "tr_dup", created))
		_, err := deps.uc().Reconcile(ctx, event("tr_dup", model.ReportedPaid))

		var dup *domain.DuplicateRecordError
		if !errors.As(err, &dup) || dup.Count != 2 {
			t.Fatalf("expected DuplicateRecordError with count 2, but got: %v", err)
		}
	})

	t.Run("should reject an empty provider id as malformed", func(t *testing.T) {
		deps := newReconcileDeps()
		_, err := deps.uc().Reconcile(ctx, event("  ", model.ReportedPaid))

		var mal *domain.MalformedEventError
		if !errors.As(err, &mal) {
			t.Fatalf("expected MalformedEventError, but got: %v", err)
		}
	})

	t.Run("should treat unknown statuses as a no-op", func(t *testing.T) {
		deps := newReconcileDeps(pendingRecord("R1", "tr_1", created))
		res, err := deps.uc().Reconcile(ctx, event("tr_1", model.Unknown("chargeback")))

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if res.Transitioned || res.RecordID != "R1" {
			t.Errorf("expected no-op on R1, but got %+v", res)
		}
		if deps.payments.Get("R1").Status != model.PaymentStatusPending {
			t.Error("expected record to stay pending")
		}
	})

	t.Run("should not enroll on failed, canceled or expired", func(t *testing.T) {
		for i, s := range []model.ReportedStatus{model.ReportedFailed, model.ReportedCanceled, model.ReportedExpired} {
			id := string(rune('a' + i))
			deps := newReconcileDeps(pendingRecord(id, "tr_"+id, created))
			res, err := deps.uc().Reconcile(ctx, event("tr_"+id, s))
			if err != nil || !res.Transitioned {
				t.Fatalf("expected transition for %s, but got %+v / %v", s, res, err)
			}
			if deps.enrollments.Len() != 0 {
				t.Errorf("expected no enrollment for %s", s)
			}
			rec := deps.payments.Get(id)
			if rec.TerminalAt() == nil || rec.CompletedAt != nil {
				t.Errorf("expected only the matching terminal timestamp for %s, but got %+v", s, rec)
			}
		}
	})

	t.Run("should attach provider details", func(t *testing.T) {
		deps := newReconcileDeps(pendingRecord("R1", "tr_1", created))
		ev := event("tr_1", model.ReportedFailed)
		ev.Details = json.RawMessage(`{"reason":"insufficient_funds"}`)

		if _, err := deps.uc().Reconcile(ctx, ev); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if got := string(deps.payments.Get("R1").ProviderDetails); got != `{"reason":"insufficient_funds"}` {
			t.Errorf("expected details to be stored, but got %s", got)
		}
	})

	t.Run("should roll back the status when the enrollment write fails", func(t *testing.T) {
		// --- Arrange ---
		deps := newReconcileDeps(pendingRecord("R1", "tr_1", created))
		staged := map[string]*model.PaymentRecord{}
		deps.payments.ApplyTransitionFunc = func(ctx context.Context, tx repository.Tx, from model.PaymentStatus, next *model.PaymentRecord) (bool, error) {
			staged[next.ID] = next
			return true, nil
		}
		deps.enrollments.UpsertFunc = func(ctx context.Context, tx repository.Tx, e *model.EnrollmentRecord) (bool, error) {
			return false, errors.New("connection reset")
		}

		// --- Act ---
		_, err := deps.uc().Reconcile(ctx, event("tr_1", model.ReportedPaid))

		// --- Assert ---
		if err == nil {
			t.Fatal("expected an error, but got nil")
		}
		if deps.payments.Get("R1").Status != model.PaymentStatusPending {
			t.Error("expected stored status to remain pending")
		}
		if deps.dispatcher.Len() != 0 {
			t.Error("expected no side effects for a failed transaction")
		}
	})

	t.Run("should treat a lost write race as a no-op", func(t *testing.T) {
		deps := newReconcileDeps(pendingRecord("R1", "tr_1", created))
		deps.payments.ApplyTransitionFunc = func(ctx context.Context, tx repository.Tx, from model.PaymentStatus, next *model.PaymentRecord) (bool, error) {
			return false, nil
		}
		res, err := deps.uc().Reconcile(ctx, event("tr_1", model.ReportedPaid))
		if err != nil || res.Transitioned {
			t.Fatalf("expected silent no-op, but got %+v / %v", res, err)
		}
		if deps.enrollments.Len() != 0 {
			t.Error("expected no enrollment when the write lost")
		}
	})
}

func TestReconcileUseCase_ConcurrentPaid(t *testing.T) {
	// --- Arrange ---
	deps := newReconcileDeps(pendingRecord("R1", "tr_1", time.Now().Add(-time.Hour)))
	uc := deps.uc()
	const n = 16

	// --- Act ---
	var wg sync.WaitGroup
	results := make([]usecase.ReconciliationResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = uc.Reconcile(context.Background(), event("tr_1", model.ReportedPaid))
		}(i)
	}
	wg.Wait()

	// --- Assert ---
	transitioned := 0
	for _, r := range results {
		if r.Transitioned {
			transitioned++
		}
	}
	if transitioned != 1 {
		t.Errorf("expected exactly one transition, but got %d", transitioned)
	}
	if deps.enrollments.Len() != 1 {
		t.Errorf("expected one enrollment, but got %d", deps.enrollments.Len())
	}
	if c, _ := deps.enrollments.CountForUser(context.Background(), nil, "user-R1"); c != 1 {
		t.Errorf("expected counter 1, but got %d", c)
	}
}
