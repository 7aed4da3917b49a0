// Package validation maps raw shopper input to validated field states. Every function
// is pure: it never fails, it reports invalid input through model.Validation.
package validation

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

var validate = validator.New()

const (
	bankAccountNumberRule = "required,number,min=4,max=17"
	bankLocationIDRule    = "required,number,len=9"
	blikCodeRule          = "required,number,len=6"
)

func check(value, rule string, reason model.ReasonCode) model.FieldState[string] {
	if err := validate.Var(value, rule); err != nil {
		return model.FieldState[string]{Value: value, Validation: model.Invalid(reason)}
	}
	return model.FieldState[string]{Value: value, Validation: model.Valid}
}

// BankAccountNumber accepts 4 to 17 digits.
func BankAccountNumber(value string) model.FieldState[string] {
	return check(value, bankAccountNumberRule, model.ReasonBankAccountNumberInvalid)
}

// BankLocationID accepts a 9 digit ABA routing number.
func BankLocationID(value string) model.FieldState[string] {
	return check(value, bankLocationIDRule, model.ReasonBankLocationIDInvalid)
}

// OwnerName accepts any non-blank name.
func OwnerName(value string) model.FieldState[string] {
	state := check(strings.TrimSpace(value), "required", model.ReasonOwnerNameInvalid)
	state.Value = value
	return state
}

// BlikCode accepts a 6 digit code.
func BlikCode(value string) model.FieldState[string] {
	return check(value, blikCodeRule, model.ReasonBlikCodeInvalid)
}
