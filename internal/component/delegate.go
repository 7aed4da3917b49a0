package component

import (
	"log/slog"
	"sync"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/scope"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/stream"
)

// Delegate is the lifecycle every payment component exposes to its host.
type Delegate interface {
	PaymentMethodType() string
	Initialize(s *scope.Scope)
	ComponentState() *stream.State[model.ComponentState]
	Submits() *stream.Queue[model.ComponentState]
	Errors() *stream.Queue[error]
	UIEvents() *stream.Queue[UIEvent]
	SetInteractionBlocked(blocked bool)
	OnSubmit()
	OnCleared()
}

// base holds what all payment delegates share: the component state stream, the
// submit handler, the error queue and the scope binding.
type base struct {
	paymentMethodType string
	params            Params
	state             *stream.State[model.ComponentState]
	submit            *SubmitHandler
	errs              *stream.Queue[error]

	lifeMu  sync.Mutex
	scope   *scope.Scope
	cleared bool
}

func newBase(paymentMethodType string, params Params, initial model.ComponentState) *base {
	return &base{
		paymentMethodType: paymentMethodType,
		params:            params,
		state:             stream.NewState(initial),
		submit:            NewSubmitHandler(params.ConfirmationRequired),
		errs:              stream.NewQueue[error](config.QueueBuffer),
	}
}

func (b *base) PaymentMethodType() string { return b.paymentMethodType }

func (b *base) ComponentState() *stream.State[model.ComponentState] { return b.state }

func (b *base) Submits() *stream.Queue[model.ComponentState] { return b.submit.Submits() }

func (b *base) Errors() *stream.Queue[error] { return b.errs }

func (b *base) UIEvents() *stream.Queue[UIEvent] { return b.submit.UIEvents() }

func (b *base) UIState() *stream.State[UIState] { return b.submit.UIState() }

func (b *base) SetInteractionBlocked(blocked bool) { b.submit.SetInteractionBlocked(blocked) }

// bind attaches s and starts the submit handler. It returns false when the delegate
// was already initialized or has been cleared.
func (b *base) bind(s *scope.Scope) bool {
	b.lifeMu.Lock()
	defer b.lifeMu.Unlock()
	if b.cleared || b.scope != nil {
		return false
	}
	b.scope = s
	b.submit.Initialize(s, b.state)
	slog.Debug("component_initialized", "payment_method", b.paymentMethodType)
	return true
}

// OnSubmit hands the latest component state to the submit handler.
func (b *base) OnSubmit() {
	b.submit.OnSubmit(b.state.Value())
}

// OnCleared cancels the delegate's scope. Safe to call repeatedly.
func (b *base) OnCleared() {
	b.lifeMu.Lock()
	if b.cleared {
		b.lifeMu.Unlock()
		return
	}
	b.cleared = true
	s := b.scope
	b.lifeMu.Unlock()

	if s != nil {
		s.Cancel()
	}
	slog.Debug("component_cleared", "payment_method", b.paymentMethodType)
}

func (b *base) fail(err error) {
	slog.Error("component_error", "payment_method", b.paymentMethodType, "error", err, "kind", apperr.Kind(err))
	b.errs.Send(err)
}

// paymentData fills the fields every payment payload carries.
func (b *base) paymentData(method *model.PaymentMethodDetails) model.PaymentComponentData {
	return model.PaymentComponentData{
		PaymentMethod: method,
		Amount:        b.params.Amount,
		Order:         b.params.Order,
	}
}
