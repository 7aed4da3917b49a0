package validation

import (
	"strings"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// AddressMode selects which billing address fields a component collects.
type AddressMode string

const (
	AddressNone       AddressMode = "none"
	AddressPostalCode AddressMode = "postalCode"
	AddressFull       AddressMode = "full"
)

// countriesRequiringState lists countries whose full address needs a state or province.
var countriesRequiringState = map[string]bool{"US": true, "CA": true, "BR": true, "AU": true}

// AddressInput is the shopper-entered billing address.
type AddressInput struct {
	PostalCode        string
	Street            string
	HouseNumberOrName string
	City              string
	StateOrProvince   string
	Country           string
}

// IsEmpty reports whether the shopper has not entered anything.
func (a AddressInput) IsEmpty() bool {
	return a == AddressInput{}
}

// AddressOutput is the validated billing address.
type AddressOutput struct {
	Mode              AddressMode
	PostalCode        model.FieldState[string]
	Street            model.FieldState[string]
	HouseNumberOrName model.FieldState[string]
	City              model.FieldState[string]
	StateOrProvince   model.FieldState[string]
	Country           model.FieldState[string]
}

// IsValid is the conjunction of every field validation.
func (a AddressOutput) IsValid() bool {
	return a.PostalCode.IsValid() &&
		a.Street.IsValid() &&
		a.HouseNumberOrName.IsValid() &&
		a.City.IsValid() &&
		a.StateOrProvince.IsValid() &&
		a.Country.IsValid()
}

// IsRequired reports whether the address is part of the payment payload.
func (a AddressOutput) IsRequired() bool {
	return a.Mode == AddressPostalCode || a.Mode == AddressFull
}

// ToModel converts a validated address into its backend representation.
func (a AddressOutput) ToModel() *model.Address {
	if !a.IsRequired() {
		return nil
	}
	return &model.Address{
		PostalCode:        a.PostalCode.Value,
		Street:            a.Street.Value,
		HouseNumberOrName: a.HouseNumberOrName.Value,
		City:              a.City.Value,
		StateOrProvince:   a.StateOrProvince.Value,
		Country:           a.Country.Value,
	}
}

func optional(value string) model.FieldState[string] {
	return model.FieldState[string]{Value: value, Validation: model.Valid}
}

func required(value string, reason model.ReasonCode) model.FieldState[string] {
	state := check(strings.TrimSpace(value), "required", reason)
	state.Value = value
	return state
}

// Address validates in according to mode.
func Address(in AddressInput, mode AddressMode) AddressOutput {
	country := strings.ToUpper(strings.TrimSpace(in.Country))
	out := AddressOutput{
		Mode:              mode,
		PostalCode:        optional(in.PostalCode),
		Street:            optional(in.Street),
		HouseNumberOrName: optional(in.HouseNumberOrName),
		City:              optional(in.City),
		StateOrProvince:   optional(in.StateOrProvince),
		Country:           optional(country),
	}

	switch mode {
	case AddressPostalCode:
		out.PostalCode = required(in.PostalCode, model.ReasonPostalCodeInvalid)
	case AddressFull:
		out.PostalCode = required(in.PostalCode, model.ReasonPostalCodeInvalid)
		out.Street = required(in.Street, model.ReasonStreetInvalid)
		out.HouseNumberOrName = required(in.HouseNumberOrName, model.ReasonHouseNumberInvalid)
		out.City = required(in.City, model.ReasonCityInvalid)
		out.Country = check(country, "required,iso3166_1_alpha2", model.ReasonCountryInvalid)
		if countriesRequiringState[country] {
			out.StateOrProvince = required(in.StateOrProvince, model.ReasonStateInvalid)
		}
	}
	return out
}
