package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amount represents a monetary value in minor units of its currency.
type Amount struct {
	Currency string `json:"currency" validate:"required,len=3"`
	Value    int64  `json:"value" validate:"gte=0"`
}

// currencyExponents lists currencies whose minor unit is not 1/100.
var currencyExponents = map[string]int32{
	"JPY": 0, "KRW": 0, "CLP": 0, "ISK": 0, "VND": 0,
	"BHD": 3, "KWD": 3, "OMR": 3, "JOD": 3, "TND": 3,
}

// Exponent returns the number of decimal digits of the amount's currency.
func (a Amount) Exponent() int32 {
	if exp, ok := currencyExponents[strings.ToUpper(a.Currency)]; ok {
		return exp
	}
	return 2
}

// Major returns the amount expressed in major units (e.g. 12.34 EUR for 1234).
func (a Amount) Major() decimal.Decimal {
	return decimal.New(a.Value, -a.Exponent())
}

// AmountFromMajor converts a major-unit decimal into a minor-unit Amount, rounding half away from zero.
func AmountFromMajor(currency string, major decimal.Decimal) Amount {
	a := Amount{Currency: currency}
	a.Value = major.Shift(a.Exponent()).Round(0).IntPart()
	return a
}

// Order identifies a partial-payment order the payment belongs to.
type Order struct {
	PspReference string `json:"pspReference"`
	OrderData    string `json:"orderData"`
}

// OrderResponse is the backend's view of an order after a payment or status call.
type OrderResponse struct {
	PspReference    string  `json:"pspReference"`
	OrderData       string  `json:"orderData"`
	Amount          *Amount `json:"amount,omitempty"`
	RemainingAmount *Amount `json:"remainingAmount,omitempty"`
}

// IsNonFullyPaid returns true if the order still has an outstanding balance.
func (o *OrderResponse) IsNonFullyPaid() bool {
	return o != nil && o.RemainingAmount != nil && o.RemainingAmount.Value > 0
}

// Address represents a billing address as submitted to the backend.
type Address struct {
	PostalCode        string `json:"postalCode,omitempty"`
	Street            string `json:"street,omitempty"`
	HouseNumberOrName string `json:"houseNumberOrName,omitempty"`
	City              string `json:"city,omitempty"`
	StateOrProvince   string `json:"stateOrProvince,omitempty"`
	Country           string `json:"country,omitempty"`
}

// PaymentMethodDetails holds the payment-method specific fields of a payment request.
type PaymentMethodDetails struct {
	Type                       string `json:"type"`
	CheckoutAttemptID          string `json:"checkoutAttemptId,omitempty"`
	EncryptedBankAccountNumber string `json:"encryptedBankAccountNumber,omitempty"`
	EncryptedBankLocationID    string `json:"encryptedBankLocationId,omitempty"`
	OwnerName                  string `json:"ownerName,omitempty"`
	BlikCode                   string `json:"blikCode,omitempty"`
	StoredPaymentMethodID      string `json:"storedPaymentMethodId,omitempty"`
}

// PaymentComponentData is the payload a component hands over for the payments call.
type PaymentComponentData struct {
	PaymentMethod      *PaymentMethodDetails `json:"paymentMethod,omitempty"`
	Amount             *Amount               `json:"amount,omitempty"`
	Order              *Order                `json:"order,omitempty"`
	StorePaymentMethod *bool                 `json:"storePaymentMethod,omitempty"`
	BillingAddress     *Address              `json:"billingAddress,omitempty"`
}

// ComponentState is the submittable snapshot of a payment component.
type ComponentState struct {
	Data         PaymentComponentData `json:"data"`
	IsInputValid bool                 `json:"isInputValid"`
	IsReady      bool                 `json:"isReady"`
}

// IsValid returns true if the state can be submitted.
func (s ComponentState) IsValid() bool {
	return s.IsInputValid && s.IsReady
}

// ActionComponentData is returned to the backend once an action has completed.
type ActionComponentData struct {
	Details     map[string]any `json:"details"`
	PaymentData string         `json:"paymentData,omitempty"`
}

// ResultCode is the outcome reported by the payment backend.
type ResultCode string

const (
	ResultAuthorised          ResultCode = "authorised"
	ResultRefused             ResultCode = "refused"
	ResultCancelled           ResultCode = "cancelled"
	ResultError               ResultCode = "error"
	ResultPending             ResultCode = "pending"
	ResultReceived            ResultCode = "received"
	ResultPresentToShopper    ResultCode = "presentToShopper"
	ResultRedirectShopper     ResultCode = "redirectShopper"
	ResultPartiallyAuthorised ResultCode = "partiallyAuthorised"
)

// IsFinal returns true if the result code ends status polling.
func (rc ResultCode) IsFinal() bool {
	switch ResultCode(strings.ToLower(string(rc))) {
	case ResultAuthorised, "authorized", ResultRefused, ResultCancelled, "canceled", ResultError:
		return true
	default:
		return false
	}
}

// Is compares result codes case-insensitively.
func (rc ResultCode) Is(other ResultCode) bool {
	return strings.EqualFold(string(rc), string(other))
}

// StatusResponse is one answer of the status polling endpoint.
type StatusResponse struct {
	Type       string     `json:"type,omitempty"`
	Payload    string     `json:"payload,omitempty"`
	ResultCode ResultCode `json:"resultCode"`
}

// IsFinal returns true if the response carries a terminal result code.
func (r StatusResponse) IsFinal() bool {
	return r.ResultCode.IsFinal()
}

// SessionModel identifies a checkout session and carries its rotating token.
type SessionModel struct {
	ID          string `json:"id"`
	SessionData string `json:"sessionData"`
}

// SessionPaymentResult is handed to the host application when a sessions flow finishes.
type SessionPaymentResult struct {
	SessionID     string         `json:"sessionId"`
	SessionResult string         `json:"sessionResult,omitempty"`
	SessionData   string         `json:"sessionData,omitempty"`
	ResultCode    ResultCode     `json:"resultCode,omitempty"`
	Order         *OrderResponse `json:"order,omitempty"`
}
