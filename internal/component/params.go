// Package component implements the payment method delegates: each owns the shopper
// input of one payment method, validates it on every change and derives the state
// that can be submitted to the backend.
package component

import (
	"github.com/go-playground/validator/v10"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/validation"
)

var validate = validator.New()

// Params configures a payment component.
type Params struct {
	ClientKey     string `validate:"required"`
	Amount        *model.Amount
	Order         *model.Order
	ShopperLocale string `validate:"omitempty,bcp47_language_tag"`

	// ConfirmationRequired makes the component wait for OnSubmit instead of
	// submitting as soon as its state is valid.
	ConfirmationRequired       bool
	IsSubmitButtonVisible      bool
	IsStorePaymentFieldVisible bool
	AddressMode                validation.AddressMode `validate:"omitempty,oneof=none postalCode full"`
}

// Validate reports missing or malformed configuration.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return apperr.Wrap(apperr.ErrConfiguration, "component params", "invalid component configuration", err)
	}
	return nil
}

func (p Params) addressMode() validation.AddressMode {
	if p.AddressMode == "" {
		return validation.AddressNone
	}
	return p.AddressMode
}

// ShouldShowSubmitButton reports whether the host should render a pay button.
func (p Params) ShouldShowSubmitButton() bool {
	return p.ConfirmationRequired && p.IsSubmitButtonVisible
}
