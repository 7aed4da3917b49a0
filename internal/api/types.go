package api

import (
	"encoding/json"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// StatusRequest polls the payment status of a pending action.
type StatusRequest struct {
	PaymentData string `json:"paymentData" validate:"required"`
}

// NativeRedirectRequest exchanges a native redirect return for its result.
type NativeRedirectRequest struct {
	RedirectData      string `json:"redirectData" validate:"required"`
	ReturnQueryString string `json:"returnQueryString" validate:"required"`
}

// NativeRedirectResponse carries the structured details of a native redirect.
type NativeRedirectResponse struct {
	RedirectResult string `json:"redirectResult,omitempty"`
	Payload        string `json:"payload,omitempty"`
}

// Details converts the response to the details object of an ActionComponentData.
func (r NativeRedirectResponse) Details() map[string]any {
	details := make(map[string]any)
	if r.RedirectResult != "" {
		details["redirectResult"] = r.RedirectResult
	}
	if r.Payload != "" {
		details["payload"] = r.Payload
	}
	return details
}

// PublicKeyResponse holds the client-side encryption key of a client key.
type PublicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// OrderStatusRequest asks for the remaining balance of a partial-payment order.
type OrderStatusRequest struct {
	OrderData string `json:"orderData" validate:"required"`
}

// PaymentMethod is one entry of the payment methods list.
type PaymentMethod struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// OrderStatusResponse is the state of a partial-payment order.
type OrderStatusResponse struct {
	PaymentMethods  []PaymentMethod `json:"paymentMethods"`
	RemainingAmount model.Amount    `json:"remainingAmount"`
}

// SessionPaymentsRequest is the payment payload enriched with the session token.
type SessionPaymentsRequest struct {
	model.PaymentComponentData
	SessionData string `json:"sessionData" validate:"required"`
}

// SessionPaymentsResponse is the answer of the sessions payments call.
type SessionPaymentsResponse struct {
	SessionData   string               `json:"sessionData"`
	SessionResult string               `json:"sessionResult,omitempty"`
	Status        string               `json:"status,omitempty"`
	ResultCode    model.ResultCode     `json:"resultCode,omitempty"`
	Action        *model.Action        `json:"action,omitempty"`
	Order         *model.OrderResponse `json:"order,omitempty"`
}

// SessionDetailsRequest submits action details within a session.
type SessionDetailsRequest struct {
	SessionData string         `json:"sessionData" validate:"required"`
	PaymentData string         `json:"paymentData,omitempty"`
	Details     map[string]any `json:"details"`
}

// SessionDetailsResponse is the answer of the sessions details call.
type SessionDetailsResponse = SessionPaymentsResponse

// SessionSetupRequest refreshes the session, optionally for an order.
type SessionSetupRequest struct {
	SessionData string       `json:"sessionData" validate:"required"`
	Order       *model.Order `json:"order,omitempty"`
}

// SessionSetupResponse returns the payment methods available to the session.
type SessionSetupResponse struct {
	ID             string          `json:"id"`
	SessionData    string          `json:"sessionData"`
	Amount         *model.Amount   `json:"amount,omitempty"`
	PaymentMethods []PaymentMethod `json:"paymentMethods,omitempty"`
}

// SessionBalanceRequest checks the balance of a gift card within a session.
type SessionBalanceRequest struct {
	SessionData   string                      `json:"sessionData" validate:"required"`
	PaymentMethod *model.PaymentMethodDetails `json:"paymentMethod,omitempty"`
	Amount        *model.Amount               `json:"amount,omitempty"`
}

// SessionBalanceResponse returns the available balance.
type SessionBalanceResponse struct {
	SessionData      string        `json:"sessionData"`
	Balance          model.Amount  `json:"balance"`
	TransactionLimit *model.Amount `json:"transactionLimit,omitempty"`
}

// SessionOrderRequest creates an order within a session.
type SessionOrderRequest struct {
	SessionData string `json:"sessionData" validate:"required"`
}

// SessionOrderResponse is a newly created order.
type SessionOrderResponse struct {
	SessionData  string `json:"sessionData"`
	PspReference string `json:"pspReference"`
	OrderData    string `json:"orderData"`
}

// SessionCancelOrderRequest cancels an order within a session.
type SessionCancelOrderRequest struct {
	SessionData string      `json:"sessionData" validate:"required"`
	Order       model.Order `json:"order"`
}

// SessionCancelOrderResponse confirms a cancellation.
type SessionCancelOrderResponse struct {
	SessionData string `json:"sessionData"`
	Status      string `json:"status"`
}

// SessionDisableTokenRequest removes a stored payment method.
type SessionDisableTokenRequest struct {
	SessionData           string `json:"sessionData" validate:"required"`
	StoredPaymentMethodID string `json:"storedPaymentMethodId" validate:"required"`
}

// SessionDisableTokenResponse confirms a removal.
type SessionDisableTokenResponse struct {
	SessionData string `json:"sessionData"`
}

// errorResponse is the error body returned by the backend.
type errorResponse struct {
	Status    int             `json:"status"`
	ErrorCode string          `json:"errorCode"`
	Message   string          `json:"message"`
	ErrorType string          `json:"errorType"`
	Extra     json.RawMessage `json:"extra,omitempty"`
}
