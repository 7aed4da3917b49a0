// Package session drives the sessions flow: every call carries the latest
// sessionData and stores whatever sessionData the backend returns. Calls for one
// payment attempt are serialized.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/api"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/savedstate"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/stream"
)

var (
	ErrPartialPaymentRefused = errors.New("payment is refused while making a partial payment")
	ErrNotEnoughBalance      = errors.New("not enough balance")
	ErrNoPaymentMethods      = errors.New("payment methods should not be null")
)

// Service is the sessions backend.
type Service interface {
	SessionSetup(ctx context.Context, session model.SessionModel, order *model.Order) (api.SessionSetupResponse, error)
	SessionPayments(ctx context.Context, session model.SessionModel, data model.PaymentComponentData) (api.SessionPaymentsResponse, error)
	SessionDetails(ctx context.Context, session model.SessionModel, data model.ActionComponentData) (api.SessionDetailsResponse, error)
	SessionBalance(ctx context.Context, session model.SessionModel, data model.PaymentComponentData) (api.SessionBalanceResponse, error)
	SessionCreateOrder(ctx context.Context, session model.SessionModel) (api.SessionOrderResponse, error)
	SessionCancelOrder(ctx context.Context, session model.SessionModel, order model.Order) (api.SessionCancelOrderResponse, error)
	SessionDisableToken(ctx context.Context, session model.SessionModel, storedPaymentMethodID string) (api.SessionDisableTokenResponse, error)
}

// MerchantCalls let the merchant handle a call on its own server. A call that
// returns true takes the flow over; nil calls are never handled.
type MerchantCalls struct {
	OnSubmit                    func(model.ComponentState) bool
	OnAdditionalDetails         func(model.ActionComponentData) bool
	OnBalanceCheck              func(model.PaymentComponentData) bool
	OnOrderRequest              func() bool
	OnOrderCancel               func(model.Order) bool
	OnRemoveStoredPaymentMethod func(storedPaymentMethodID string) bool
}

// Kind classifies the outcome of a session call.
type Kind string

const (
	KindAction            Kind = "action"
	KindFinished          Kind = "finished"
	KindNotFullyPaidOrder Kind = "not_fully_paid_order"
	KindSuccessful        Kind = "successful"
	KindTakenOver         Kind = "taken_over"
	KindError             Kind = "error"
)

// Result is the outcome of a session call. Fields beyond Kind are set according
// to the call and the Kind.
type Result struct {
	Kind             Kind
	ResultCode       model.ResultCode
	Action           *model.Action
	Order            *model.OrderResponse
	Balance          *model.Amount
	TransactionLimit *model.Amount
	PaymentMethods   []api.PaymentMethod
	Err              error
}

func errorResult(err error) Result {
	return Result{Kind: KindError, Err: err}
}

// Interactor owns the session model of one payment attempt.
type Interactor struct {
	service Service
	handle  *savedstate.Handle
	calls   MerchantCalls
	session *stream.State[model.SessionModel]

	callMu    sync.Mutex
	takenOver bool
}

// New returns an Interactor for session and persists it.
func New(ctx context.Context, service Service, handle *savedstate.Handle, session model.SessionModel, calls MerchantCalls) (*Interactor, error) {
	if session.ID == "" || session.SessionData == "" {
		return nil, apperr.New(apperr.ErrConfiguration, "session", "session id and sessionData are required")
	}
	i := &Interactor{
		service: service,
		handle:  handle,
		calls:   calls,
		session: stream.NewState(session),
	}
	if err := savedstate.Save(ctx, handle, savedstate.KeySessionModel, session); err != nil {
		return nil, apperr.Wrap(apperr.ErrConfiguration, "session", "could not save session", err)
	}
	return i, nil
}

// Restore rebuilds an Interactor from saved state after the process was recreated.
func Restore(ctx context.Context, service Service, handle *savedstate.Handle, calls MerchantCalls) (*Interactor, error) {
	session, ok, err := savedstate.Load[model.SessionModel](ctx, handle, savedstate.KeySessionModel)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrConfiguration, "session", "could not restore session", err)
	}
	if !ok {
		return nil, apperr.New(apperr.ErrConfiguration, "session", "no saved session")
	}
	takenOver, _, err := savedstate.Load[bool](ctx, handle, savedstate.KeyFlowTakenOver)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrConfiguration, "session", "could not restore session", err)
	}
	slog.Debug("session_restored", "session_id", session.ID, "taken_over", takenOver)
	return &Interactor{
		service:   service,
		handle:    handle,
		calls:     calls,
		session:   stream.NewState(session),
		takenOver: takenOver,
	}, nil
}

// Session exposes the session model stream.
func (i *Interactor) Session() *stream.State[model.SessionModel] {
	return i.session
}

// IsFlowTakenOver reports whether the merchant has handled a call itself.
func (i *Interactor) IsFlowTakenOver() bool {
	i.callMu.Lock()
	defer i.callMu.Unlock()
	return i.takenOver
}

// run serializes one call: the merchant gets the first chance to handle it; once the
// merchant has handled any call, unhandled calls fail with ErrMethodNotImplemented.
func (i *Interactor) run(name string, handled func() bool, internal func() Result) Result {
	i.callMu.Lock()
	defer i.callMu.Unlock()

	if handled() {
		if !i.takenOver {
			i.takenOver = true
			slog.Info("session_flow_taken_over", "call", name)
			i.persist(savedstate.KeyFlowTakenOver, true)
		}
		return Result{Kind: KindTakenOver}
	}
	if i.takenOver {
		return errorResult(apperr.New(apperr.ErrMethodNotImplemented, name,
			"sessions flow was already taken over in a previous call, "+name+" should be implemented"))
	}
	res := internal()
	slog.Info("session_call_completed", "call", name, "kind", res.Kind, "result_code", res.ResultCode)
	return res
}

// updateSessionData replaces the held sessionData with the backend's.
func (i *Interactor) updateSessionData(sessionData string) {
	updated := i.session.Update(func(s model.SessionModel) model.SessionModel {
		s.SessionData = sessionData
		return s
	})
	i.persist(savedstate.KeySessionModel, updated)
}

func (i *Interactor) persist(key string, v any) {
	ctx, cancel := context.WithTimeout(context.Background(), config.StoreTimeout)
	defer cancel()
	if err := savedstate.Save(ctx, i.handle, key, v); err != nil {
		slog.Warn("saved_state_write_failed", "key", key, "error", err)
	}
}

func handledBy[T any](fn func(T) bool, v T) func() bool {
	return func() bool { return fn != nil && fn(v) }
}

// SubmitPayment makes the payments call for state.
func (i *Interactor) SubmitPayment(ctx context.Context, state model.ComponentState) Result {
	return i.run("onSubmit", handledBy(i.calls.OnSubmit, state), func() Result {
		resp, err := i.service.SessionPayments(ctx, i.session.Value(), state.Data)
		if err != nil {
			return errorResult(err)
		}
		i.updateSessionData(resp.SessionData)
		return paymentsResult(resp)
	})
}

func paymentsResult(resp api.SessionPaymentsResponse) Result {
	switch {
	case resp.ResultCode.Is(model.ResultRefused) && resp.Order.IsNonFullyPaid():
		return errorResult(apperr.Wrap(apperr.ErrProtocol, "onSubmit", "partial payment refused", ErrPartialPaymentRefused))
	case resp.Action != nil:
		return Result{Kind: KindAction, Action: resp.Action}
	case resp.Order.IsNonFullyPaid():
		return Result{Kind: KindNotFullyPaidOrder, Order: resp.Order, ResultCode: resp.ResultCode}
	default:
		return Result{Kind: KindFinished, ResultCode: resp.ResultCode, Order: resp.Order}
	}
}

// SubmitDetails makes the payment details call for data.
func (i *Interactor) SubmitDetails(ctx context.Context, data model.ActionComponentData) Result {
	return i.run("onAdditionalDetails", handledBy(i.calls.OnAdditionalDetails, data), func() Result {
		resp, err := i.service.SessionDetails(ctx, i.session.Value(), data)
		if err != nil {
			return errorResult(err)
		}
		i.updateSessionData(resp.SessionData)
		if resp.Action != nil {
			return Result{Kind: KindAction, Action: resp.Action}
		}
		return Result{Kind: KindFinished, ResultCode: resp.ResultCode, Order: resp.Order}
	})
}

// CheckBalance asks for the balance of a gift card style payment method.
func (i *Interactor) CheckBalance(ctx context.Context, data model.PaymentComponentData) Result {
	return i.run("onBalanceCheck", handledBy(i.calls.OnBalanceCheck, data), func() Result {
		resp, err := i.service.SessionBalance(ctx, i.session.Value(), data)
		if err != nil {
			return errorResult(err)
		}
		i.updateSessionData(resp.SessionData)
		if resp.Balance.Value <= 0 {
			return errorResult(apperr.Wrap(apperr.ErrProtocol, "onBalanceCheck", "balance check failed", ErrNotEnoughBalance))
		}
		balance := resp.Balance
		return Result{Kind: KindSuccessful, Balance: &balance, TransactionLimit: resp.TransactionLimit}
	})
}

// CreateOrder creates a partial-payment order.
func (i *Interactor) CreateOrder(ctx context.Context) Result {
	handled := func() bool { return i.calls.OnOrderRequest != nil && i.calls.OnOrderRequest() }
	return i.run("onOrderRequest", handled, func() Result {
		resp, err := i.service.SessionCreateOrder(ctx, i.session.Value())
		if err != nil {
			return errorResult(err)
		}
		i.updateSessionData(resp.SessionData)
		return Result{Kind: KindSuccessful, Order: &model.OrderResponse{PspReference: resp.PspReference, OrderData: resp.OrderData}}
	})
}

// CancelOrder cancels a partial-payment order.
func (i *Interactor) CancelOrder(ctx context.Context, order model.Order) Result {
	return i.run("onOrderCancel", handledBy(i.calls.OnOrderCancel, order), func() Result {
		resp, err := i.service.SessionCancelOrder(ctx, i.session.Value(), order)
		if err != nil {
			return errorResult(err)
		}
		i.updateSessionData(resp.SessionData)
		return Result{Kind: KindSuccessful}
	})
}

// RemoveStoredPaymentMethod disables a stored payment method.
func (i *Interactor) RemoveStoredPaymentMethod(ctx context.Context, storedPaymentMethodID string) Result {
	return i.run("onRemoveStoredPaymentMethod", handledBy(i.calls.OnRemoveStoredPaymentMethod, storedPaymentMethodID), func() Result {
		resp, err := i.service.SessionDisableToken(ctx, i.session.Value(), storedPaymentMethodID)
		if err != nil {
			return errorResult(err)
		}
		i.updateSessionData(resp.SessionData)
		return Result{Kind: KindSuccessful}
	})
}

// UpdatePaymentMethods refreshes the session's payment methods, optionally for the
// remaining amount of order. The merchant cannot take this call over.
func (i *Interactor) UpdatePaymentMethods(ctx context.Context, order *model.OrderResponse) Result {
	i.callMu.Lock()
	defer i.callMu.Unlock()

	var req *model.Order
	if order != nil {
		req = &model.Order{PspReference: order.PspReference, OrderData: order.OrderData}
	}
	resp, err := i.service.SessionSetup(ctx, i.session.Value(), req)
	if err != nil {
		return errorResult(err)
	}
	i.updateSessionData(resp.SessionData)
	if resp.PaymentMethods == nil {
		return errorResult(apperr.Wrap(apperr.ErrProtocol, "updatePaymentMethods", "setup returned no payment methods", ErrNoPaymentMethods))
	}
	return Result{Kind: KindSuccessful, PaymentMethods: resp.PaymentMethods, Order: order}
}
