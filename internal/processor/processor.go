// Package processor simulates the payment service provider behind the sandbox backend.
package processor

import (
	"context"
	"time"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// Outcome is the simulated answer of a provider to a payment.
type Outcome string

const (
	OutcomeAuthorised Outcome = "authorised"
	OutcomeRefused    Outcome = "refused"
	OutcomeError      Outcome = "error"
	OutcomeRedirect   Outcome = "redirect"
	OutcomeAwait      Outcome = "await"
	OutcomeQRCode     Outcome = "qrCode"
)

// IsFinal returns true if the outcome completes the payment without a shopper action.
func (o Outcome) IsFinal() bool {
	switch o {
	case OutcomeAuthorised, OutcomeRefused, OutcomeError:
		return true
	default:
		return false
	}
}

// ResultCode maps the outcome to the result code reported to the client.
func (o Outcome) ResultCode() model.ResultCode {
	switch o {
	case OutcomeAuthorised:
		return model.ResultAuthorised
	case OutcomeRefused:
		return model.ResultRefused
	case OutcomeRedirect:
		return model.ResultRedirectShopper
	case OutcomeAwait:
		return model.ResultPending
	case OutcomeQRCode:
		return model.ResultPresentToShopper
	default:
		return model.ResultError
	}
}

// Request is a payment as seen by a provider.
type Request struct {
	Reference     string
	PaymentMethod string
	Amount        model.Amount
}

// Response is the provider's answer to a Request.
type Response struct {
	ProcessorName string        `json:"processor"`
	Outcome       Outcome       `json:"outcome"`
	Message       string        `json:"message"`
	Timestamp     time.Time     `json:"timestamp"`
	Latency       time.Duration `json:"latency"`
}

// Processor defines the interface for simulated payment providers.
type Processor interface {
	// Name returns the processor's unique identifier.
	Name() string
	// Process answers a new payment, possibly with an action outcome.
	Process(ctx context.Context, req Request) Response
	// Settle answers a payment whose shopper action completed. It only returns final outcomes.
	Settle(ctx context.Context, req Request) Response
	// SupportedMethods returns the payment method types this processor can handle.
	SupportedMethods() []string
}

// SupportsMethod checks if a processor supports the given payment method.
func SupportsMethod(p Processor, method string) bool {
	for _, m := range p.SupportedMethods() {
		if m == method {
			return true
		}
	}
	return false
}

// Select returns the first processor supporting method.
func Select(processors []Processor, method string) (Processor, bool) {
	for _, p := range processors {
		if SupportsMethod(p, method) {
			return p, true
		}
	}
	return nil, false
}
