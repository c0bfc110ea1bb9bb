//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"payment-reconciler/internal/domain"
	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/domain/ports/adapter"
	"payment-reconciler/internal/domain/ports/repository"
	"payment-reconciler/internal/usecase"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func pendingRecord(id, providerID string, createdAt time.Time) *model.PaymentRecord {
	return &model.PaymentRecord{
		ID:                id,
		ProviderPaymentID: providerID,
		Provider:          "generic",
		Status:            model.PaymentStatusPending,
		UserID:            "user-" + id,
		ProductID:         "course-1",
		Amount:            4900,
		Currency:          "EUR",
		BillingDetails:    model.BillingDetails{Name: "Ada", Email: id + "@example.com"},
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
}

// =============================
// Repositories
// =============================

// ---- In-memory PaymentRepository ----

type MockPaymentRepo struct {
	mu   sync.Mutex
	byID map[string]*model.PaymentRecord

	FindByProviderPaymentIDFunc func(ctx context.Context, tx repository.Tx, providerPaymentID string) ([]*model.PaymentRecord, error)
	ApplyTransitionFunc         func(ctx context.Context, tx repository.Tx, from model.PaymentStatus, next *model.PaymentRecord) (bool, error)
	ExpirePendingFunc           func(ctx context.Context, tx repository.Tx, ids []string, deadline, at time.Time) ([]string, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo(recs ...*model.PaymentRecord) *MockPaymentRepo {
	m := &MockPaymentRepo{byID: make(map[string]*model.PaymentRecord)}
	for _, r := range recs {
		cp := *r
		m.byID[r.ID] = &cp
	}
	return m
}

func (m *MockPaymentRepo) Get(id string) *model.PaymentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (m *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRecord, error) {
	if p := m.Get(id); p != nil {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) FindByProviderPaymentID(ctx context.Context, tx repository.Tx, providerPaymentID string) ([]*model.PaymentRecord, error) {
	if m.FindByProviderPaymentIDFunc != nil {
		return m.FindByProviderPaymentIDFunc(ctx, tx, providerPaymentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentRecord
	for _, p := range m.byID {
		if p.ProviderPaymentID == providerPaymentID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPaymentRepo) ApplyTransition(ctx context.Context, tx repository.Tx, from model.PaymentStatus, next *model.PaymentRecord) (bool, error) {
	if m.ApplyTransitionFunc != nil {
		return m.ApplyTransitionFunc(ctx, tx, from, next)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[next.ID]
	if !ok || cur.Status != from {
		return false, nil
	}
	cp := *next
	m.byID[next.ID] = &cp
	return true, nil
}

func (m *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, deadline time.Time, limit int) ([]*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentRecord
	for _, p := range m.byID {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(deadline) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockPaymentRepo) ExpirePending(ctx context.Context, tx repository.Tx, ids []string, deadline, at time.Time) ([]string, error) {
	if m.ExpirePendingFunc != nil {
		return m.ExpirePendingFunc(ctx, tx, ids, deadline, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, id := range ids {
		p, ok := m.byID[id]
		if !ok || p.Status != model.PaymentStatusPending || !p.CreatedAt.Before(deadline) {
			continue
		}
		ts := at
		p.Status = model.PaymentStatusExpired
		p.ExpiredAt = &ts
		p.UpdatedAt = at
		out = append(out, id)
	}
	return out, nil
}

// ---- In-memory EnrollmentRepository ----

type MockEnrollmentRepo struct {
	mu       sync.Mutex
	byKey    map[string]*model.EnrollmentRecord
	counters map[string]int

	UpsertFunc func(ctx context.Context, tx repository.Tx, e *model.EnrollmentRecord) (bool, error)
}

var _ repository.EnrollmentRepository = (*MockEnrollmentRepo)(nil)

func NewMockEnrollmentRepo() *MockEnrollmentRepo {
	return &MockEnrollmentRepo{byKey: make(map[string]*model.EnrollmentRecord), counters: make(map[string]int)}
}

func (m *MockEnrollmentRepo) Upsert(ctx context.Context, tx repository.Tx, e *model.EnrollmentRecord) (bool, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, tx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := e.UserID + "/" + e.ProductID
	if cur, ok := m.byKey[key]; ok {
		cur.PaymentID = e.PaymentID
		cur.EnrolledAt = e.EnrolledAt
		return false, nil
	}
	cp := *e
	m.byKey[key] = &cp
	return true, nil
}

func (m *MockEnrollmentRepo) FindByUserAndProduct(ctx context.Context, tx repository.Tx, userID, productID string) (*model.EnrollmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.byKey[userID+"/"+productID]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockEnrollmentRepo) IncrementUserEnrollments(ctx context.Context, tx repository.Tx, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[userID]++
	return nil
}

func (m *MockEnrollmentRepo) CountForUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[userID], nil
}

func (m *MockEnrollmentRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byKey)
}

// ---- UserContactRepository ----

type MockContactRepo struct {
	EmailForFunc func(ctx context.Context, tx repository.Tx, userID string) (string, error)
}

func (m *MockContactRepo) EmailFor(ctx context.Context, tx repository.Tx, userID string) (string, error) {
	if m.EmailForFunc != nil {
		return m.EmailForFunc(ctx, tx, userID)
	}
	return "", domain.ErrNotFound
}

// ---- TransactionManager ----

// MockTxManager serializes transactions, which is what row locks give the
// real store for a single record.
type MockTxManager struct {
	mu         sync.Mutex
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- Synchronous TaskRunner ----

type MockRunner struct {
	SubmitErr error
	mu        sync.Mutex
	Errs      []error
}

var _ adapter.TaskRunner = (*MockRunner)(nil)

func (r *MockRunner) Submit(task func(ctx context.Context) error) error {
	if r.SubmitErr != nil {
		return r.SubmitErr
	}
	err := task(context.Background())
	r.mu.Lock()
	r.Errs = append(r.Errs, err)
	r.mu.Unlock()
	return nil
}

// ---- AuditSink ----

type MockAuditSink struct {
	mu      sync.Mutex
	Entries []model.AuditLogEntry
	Err     error
}

var _ adapter.AuditSink = (*MockAuditSink)(nil)

func (s *MockAuditSink) Append(ctx context.Context, e *model.AuditLogEntry) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Entries = append(s.Entries, *e)
	return nil
}

func (s *MockAuditSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Entries)
}

// ---- Mailer ----

type sentMail struct {
	To, Subject, HTML, Text string
}

type MockMailer struct {
	mu   sync.Mutex
	Sent []sentMail
	Err  error
}

var _ adapter.Mailer = (*MockMailer)(nil)

func (m *MockMailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentMail{To: to, Subject: subject, HTML: htmlBody, Text: textBody})
	return nil
}

// ---- PaymentNotifier ----

type MockNotifier struct {
	mu     sync.Mutex
	Paid   []string
	Failed []string
	Err    error
}

var _ usecase.PaymentNotifier = (*MockNotifier)(nil)

func (n *MockNotifier) OnPaid(ctx context.Context, p *model.PaymentRecord) error {
	n.mu.Lock()
	n.Paid = append(n.Paid, p.ID)
	n.mu.Unlock()
	return n.Err
}

func (n *MockNotifier) OnFailed(ctx context.Context, p *model.PaymentRecord) error {
	n.mu.Lock()
	n.Failed = append(n.Failed, p.ID)
	n.mu.Unlock()
	return n.Err
}

// ---- SideEffectDispatcher ----

type dispatched struct {
	RecordID string
	From, To model.PaymentStatus
	Source   model.AuditSource
}

type MockDispatcher struct {
	mu    sync.Mutex
	Calls []dispatched
}

var _ usecase.SideEffectDispatcher = (*MockDispatcher)(nil)

func (d *MockDispatcher) Dispatch(ctx context.Context, p *model.PaymentRecord, from model.PaymentStatus, source model.AuditSource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, dispatched{RecordID: p.ID, From: from, To: p.Status, Source: source})
}

func (d *MockDispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Calls)
}
