// Package orchestrator runs the sessions checkout of one payment attempt: it observes
// the payment component and the action dispatcher and routes their events through
// the session interactor.
package orchestrator

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/action"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/api"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/component"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/observer"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/scope"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/session"
)

// Callbacks are the host's view of the checkout. Every field is optional. They are
// invoked from the orchestrator's relay goroutines, one at a time per source.
type Callbacks struct {
	OnLoading               func(loading bool)
	OnAction                func(model.Action)
	OnPaymentMethodsUpdated func(methods []api.PaymentMethod, order *model.OrderResponse)
	OnFinished              func(model.SessionPaymentResult)
	OnError                 func(error)
}

// Orchestrator wires one payment component, one action dispatcher and one session
// interactor together.
type Orchestrator struct {
	interactor *session.Interactor
	component  component.Delegate
	dispatcher *action.Dispatcher
	callbacks  Callbacks
	store      *AttemptStore

	componentObservers *observer.Repository
	actionObservers    *observer.Repository

	mu        sync.Mutex
	scope     *scope.Scope
	attemptID string
}

// New creates an Orchestrator. It does nothing until Start is called. A nil comp
// resumes an attempt whose payment was already submitted: only action events are
// relayed.
func New(interactor *session.Interactor, comp component.Delegate, dispatcher *action.Dispatcher, callbacks Callbacks) *Orchestrator {
	return &Orchestrator{
		interactor:         interactor,
		component:          comp,
		dispatcher:         dispatcher,
		callbacks:          callbacks,
		store:              NewAttemptStore(),
		componentObservers: observer.NewRepository(),
		actionObservers:    observer.NewRepository(),
	}
}

// Start initializes the component and the dispatcher in a scope derived from ctx and
// begins relaying their events. A dispatcher with a saved action resumes it.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.scope != nil {
		o.mu.Unlock()
		return
	}
	s := scope.New(ctx)
	o.scope = s
	o.mu.Unlock()

	o.dispatcher.Initialize(s)
	if o.component != nil {
		o.component.Initialize(s)
		o.componentObservers.AddPaymentObservers(s.Context(), observer.PaymentStreams{
			States:  o.component.ComponentState(),
			Submits: o.component.Submits(),
			Errors:  o.component.Errors(),
		}, o.onComponentEvent)
	}
	o.actionObservers.AddActionObservers(s.Context(), observer.ActionStreams{
		Details: o.dispatcher.Details(),
		Errors:  o.dispatcher.Errors(),
	}, o.onActionEvent)

	slog.Info("checkout_started",
		"payment_method", o.paymentMethodType(),
		"session_id", o.interactor.Session().Value().ID,
	)
}

// Stop cancels in-flight calls, detaches every observer and clears the delegates.
// Saved state is kept so a new Orchestrator can resume the attempt.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	s := o.scope
	o.mu.Unlock()
	if s == nil || !s.Cancel() {
		return
	}
	o.componentObservers.RemoveObservers()
	o.actionObservers.RemoveObservers()
	if o.component != nil {
		o.component.OnCleared()
	}
	o.dispatcher.OnCleared()
	slog.Info("checkout_stopped", "payment_method", o.paymentMethodType())
}

// HandleIntent hands a redirect return URL to the active action.
func (o *Orchestrator) HandleIntent(u *url.URL) {
	o.dispatcher.HandleIntent(u)
}

// RefreshStatus asks the active action, if it polls, for an immediate status check.
func (o *Orchestrator) RefreshStatus() {
	o.dispatcher.RefreshStatus()
}

// CurrentAttempt returns the latest submitted attempt.
func (o *Orchestrator) CurrentAttempt() (Attempt, bool) {
	o.mu.Lock()
	id := o.attemptID
	o.mu.Unlock()
	return o.store.Get(id)
}

// GetAttempt returns the attempt with id.
func (o *Orchestrator) GetAttempt(id string) (Attempt, bool) {
	return o.store.Get(id)
}

func (o *Orchestrator) context() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.scope.Context()
}

func (o *Orchestrator) onComponentEvent(e observer.Event) {
	switch e.Kind {
	case observer.EventStateChanged:
		slog.Debug("component_state_changed",
			"payment_method", o.paymentMethodType(),
			"input_valid", e.State.IsInputValid,
			"ready", e.State.IsReady,
		)
	case observer.EventSubmit:
		o.submit(e.State)
	case observer.EventError:
		o.fail("component", e.Err)
	}
}

func (o *Orchestrator) onActionEvent(e observer.Event) {
	switch e.Kind {
	case observer.EventActionDetails:
		o.loading(true)
		res := o.interactor.SubmitDetails(o.context(), e.Details)
		o.handleResult("payments/details", res)
	case observer.EventError:
		o.fail("action", e.Err)
	}
}

func (o *Orchestrator) submit(state model.ComponentState) {
	id := uuid.NewString()
	o.store.Save(Attempt{
		ID:                id,
		PaymentMethodType: o.paymentMethodType(),
		Status:            StatusInProgress,
		StartedAt:         time.Now(),
	})
	o.mu.Lock()
	o.attemptID = id
	o.mu.Unlock()

	slog.Info("payment_submitted", "attempt_id", id, "payment_method", o.paymentMethodType())

	o.setBlocked(true)
	o.loading(true)
	res := o.interactor.SubmitPayment(o.context(), state)
	o.handleResult("payments", res)
}

func (o *Orchestrator) handleResult(call string, res session.Result) {
	step := Step{Call: call, Kind: res.Kind, ResultCode: res.ResultCode, Timestamp: time.Now()}
	if res.Action != nil {
		step.ActionType = res.Action.Type
	}
	if res.Err != nil {
		step.Error = res.Err.Error()
	}

	switch res.Kind {
	case session.KindAction:
		o.record(step, "")
		slog.Info("action_received", "attempt_id", o.currentID(), "call", call, "type", res.Action.Type)
		o.loading(false)
		if o.callbacks.OnAction != nil {
			o.callbacks.OnAction(*res.Action)
		}
		o.dispatcher.HandleAction(*res.Action)

	case session.KindNotFullyPaidOrder:
		o.record(step, "")
		slog.Info("order_not_fully_paid", "attempt_id", o.currentID(), "result_code", res.ResultCode)
		o.updatePaymentMethods(res.Order)

	case session.KindFinished:
		o.record(step, StatusFinished)
		o.finish(res)

	case session.KindTakenOver:
		o.record(step, StatusTakenOver)
		slog.Info("flow_taken_over", "attempt_id", o.currentID(), "call", call)
		o.loading(false)

	case session.KindError:
		o.record(step, StatusFailed)
		o.fail(call, res.Err)

	default:
		o.record(step, "")
		o.loading(false)
	}
}

func (o *Orchestrator) updatePaymentMethods(order *model.OrderResponse) {
	res := o.interactor.UpdatePaymentMethods(o.context(), order)
	if res.Kind == session.KindError {
		o.record(Step{Call: "setup", Kind: res.Kind, Error: res.Err.Error(), Timestamp: time.Now()}, StatusFailed)
		o.fail("setup", res.Err)
		return
	}
	o.record(Step{Call: "setup", Kind: res.Kind, Timestamp: time.Now()}, "")
	o.loading(false)
	o.setBlocked(false)
	if o.callbacks.OnPaymentMethodsUpdated != nil {
		o.callbacks.OnPaymentMethodsUpdated(res.PaymentMethods, res.Order)
	}
}

func (o *Orchestrator) finish(res session.Result) {
	sess := o.interactor.Session().Value()
	result := model.SessionPaymentResult{
		SessionID:   sess.ID,
		SessionData: sess.SessionData,
		ResultCode:  res.ResultCode,
		Order:       res.Order,
	}
	slog.Info("payment_finished",
		"attempt_id", o.currentID(),
		"session_id", sess.ID,
		"result_code", res.ResultCode,
	)
	o.loading(false)
	if o.callbacks.OnFinished != nil {
		o.callbacks.OnFinished(result)
	}
}

func (o *Orchestrator) fail(source string, err error) {
	if o.context().Err() != nil {
		return
	}
	slog.Error("checkout_failed",
		"attempt_id", o.currentID(),
		"source", source,
		"kind", apperr.Kind(err),
		"error", err,
	)
	o.loading(false)
	o.setBlocked(false)
	if o.callbacks.OnError != nil {
		o.callbacks.OnError(err)
	}
}

func (o *Orchestrator) loading(v bool) {
	if o.callbacks.OnLoading != nil {
		o.callbacks.OnLoading(v)
	}
}

func (o *Orchestrator) paymentMethodType() string {
	if o.component == nil {
		return ""
	}
	return o.component.PaymentMethodType()
}

func (o *Orchestrator) setBlocked(blocked bool) {
	if o.component != nil {
		o.component.SetInteractionBlocked(blocked)
	}
}

func (o *Orchestrator) currentID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attemptID
}

func (o *Orchestrator) record(step Step, status Status) {
	if id := o.currentID(); id != "" {
		o.store.Record(id, step, status)
	}
}
