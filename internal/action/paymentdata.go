package action

import (
	"context"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/savedstate"
)

// PaymentDataRepository stashes the tokens that must survive a redirect.
type PaymentDataRepository struct {
	handle *savedstate.Handle
}

func NewPaymentDataRepository(handle *savedstate.Handle) *PaymentDataRepository {
	return &PaymentDataRepository{handle: handle}
}

func (r *PaymentDataRepository) PaymentData(ctx context.Context) (string, error) {
	v, _, err := savedstate.Load[string](ctx, r.handle, savedstate.KeyPaymentData)
	return v, err
}

func (r *PaymentDataRepository) SetPaymentData(ctx context.Context, paymentData string) error {
	return savedstate.Save(ctx, r.handle, savedstate.KeyPaymentData, paymentData)
}

func (r *PaymentDataRepository) NativeRedirectData(ctx context.Context) (string, error) {
	v, _, err := savedstate.Load[string](ctx, r.handle, savedstate.KeyNativeRedirectData)
	return v, err
}

func (r *PaymentDataRepository) SetNativeRedirectData(ctx context.Context, data string) error {
	return savedstate.Save(ctx, r.handle, savedstate.KeyNativeRedirectData, data)
}
