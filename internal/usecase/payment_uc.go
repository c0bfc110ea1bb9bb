// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"

	"github.com/google/uuid"

	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/domain/ports/repository"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// NewOrder carries what checkout knows when it registers a payment with the provider.
type NewOrder struct {
	ProviderPaymentID string
	Provider          string
	UserID            string
	ProductID         string
	Amount            int64
	Currency          string
	Billing           model.BillingDetails
}

type PaymentUseCase interface {
	// RegisterPending stores the pending record that later webhooks correlate against.
	RegisterPending(ctx context.Context, o NewOrder) (*model.PaymentRecord, error)
	Get(ctx context.Context, id string) (*model.PaymentRecord, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
}

func NewPaymentUseCase(payments repository.PaymentRepository) *paymentUC {
	return &paymentUC{payments: payments}
}

func (u *paymentUC) RegisterPending(ctx context.Context, o NewOrder) (*model.PaymentRecord, error) {
	p, err := model.NewPaymentRecord(uuid.NewString(), o.ProviderPaymentID, o.Provider, o.UserID, o.ProductID, o.Amount, o.Currency, o.Billing)
	if err != nil {
		return nil, err
	}
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (u *paymentUC) Get(ctx context.Context, id string) (*model.PaymentRecord, error) {
	return u.payments.FindByID(ctx, repository.NoTX, id)
}
