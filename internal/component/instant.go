package component

import (
	"github.com/google/uuid"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/scope"
)

// InstantDelegate pays with a method that collects no shopper input, such as Pix
// or iDEAL. The shopper finishes the payment in the action that follows.
type InstantDelegate struct {
	*base
}

func NewInstantDelegate(paymentMethodType string, params Params) (*InstantDelegate, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if paymentMethodType == "" {
		return nil, apperr.New(apperr.ErrConfiguration, "instant component", "payment method type is required")
	}
	d := &InstantDelegate{base: newBase(paymentMethodType, params, model.ComponentState{})}
	d.state.Set(model.ComponentState{
		Data: d.paymentData(&model.PaymentMethodDetails{
			Type:              paymentMethodType,
			CheckoutAttemptID: uuid.NewString(),
		}),
		IsInputValid: true,
		IsReady:      true,
	})
	return d, nil
}

func (d *InstantDelegate) Initialize(s *scope.Scope) {
	d.bind(s)
}
