package model

// ReasonCode is a stable, localizable identifier for a failed field validation.
type ReasonCode string

const (
	ReasonBankAccountNumberInvalid ReasonCode = "ach_bank_account_number_invalid"
	ReasonBankLocationIDInvalid    ReasonCode = "ach_bank_account_location_invalid"
	ReasonOwnerNameInvalid         ReasonCode = "ach_bank_account_holder_name_invalid"
	ReasonPostalCodeInvalid        ReasonCode = "address_postal_code_invalid"
	ReasonStreetInvalid            ReasonCode = "address_street_invalid"
	ReasonHouseNumberInvalid       ReasonCode = "address_house_number_invalid"
	ReasonCityInvalid              ReasonCode = "address_city_invalid"
	ReasonStateInvalid             ReasonCode = "address_state_invalid"
	ReasonCountryInvalid           ReasonCode = "address_country_invalid"
	ReasonBlikCodeInvalid          ReasonCode = "blik_code_invalid"
)

// Validation is the outcome of validating one field.
type Validation struct {
	Valid  bool       `json:"valid"`
	Reason ReasonCode `json:"reason,omitempty"`
}

// Valid is the successful Validation.
var Valid = Validation{Valid: true}

// Invalid returns a failed Validation carrying reason.
func Invalid(reason ReasonCode) Validation {
	return Validation{Reason: reason}
}

// FieldState pairs a field value with its validation result.
type FieldState[T any] struct {
	Value      T          `json:"value"`
	Validation Validation `json:"validation"`
}

// IsValid reports the field's validation result.
func (f FieldState[T]) IsValid() bool {
	return f.Validation.Valid
}
