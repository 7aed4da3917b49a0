// Package action handles backend-issued follow-up actions: polling the payment
// status, redirecting the shopper, and exchanging native redirect results.
package action

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/savedstate"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/scope"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/status"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/stream"
)

// PayloadDetailsKey is the details key carrying the status payload.
const PayloadDetailsKey = "payload"

// Delegate drives one action to completion and reports the outcome through its
// Details and Errors queues.
type Delegate interface {
	Initialize(s *scope.Scope)
	HandleAction(a model.Action)
	Details() *stream.Queue[model.ActionComponentData]
	Errors() *stream.Queue[error]
	OnCleared()
}

// IntentHandler is implemented by delegates that complete on a redirect return.
type IntentHandler interface {
	HandleIntent(u *url.URL)
}

// StatusRefresher is implemented by delegates that poll the payment status.
type StatusRefresher interface {
	RefreshStatus()
}

// StatusPoller is the polling engine used by the await and QR code delegates.
type StatusPoller interface {
	Poll(ctx context.Context, paymentData string, maxDuration time.Duration) <-chan status.Result
	RefreshStatus(paymentData string) bool
	Interval() time.Duration
}

// core carries the plumbing every action delegate shares: the saved-state handle,
// the outbound queues and the scope binding.
type core struct {
	name        string
	handle      *savedstate.Handle
	paymentData *PaymentDataRepository
	details     *stream.Queue[model.ActionComponentData]
	errs        *stream.Queue[error]

	mu      sync.Mutex
	scope   *scope.Scope
	cleared bool
}

func newCore(name string, handle *savedstate.Handle) *core {
	return &core{
		name:        name,
		handle:      handle,
		paymentData: NewPaymentDataRepository(handle),
		details:     stream.NewQueue[model.ActionComponentData](config.QueueBuffer),
		errs:        stream.NewQueue[error](config.QueueBuffer),
	}
}

func (c *core) Details() *stream.Queue[model.ActionComponentData] { return c.details }

func (c *core) Errors() *stream.Queue[error] { return c.errs }

// bind attaches the scope. It returns false once the delegate has been cleared.
func (c *core) bind(s *scope.Scope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleared {
		return false
	}
	c.scope = s
	return true
}

// active returns the bound scope, or reports a configuration error when the
// delegate is not initialized.
func (c *core) active(op string) (*scope.Scope, bool) {
	c.mu.Lock()
	s, cleared := c.scope, c.cleared
	c.mu.Unlock()
	if cleared {
		return nil, false
	}
	if s == nil {
		c.errs.Send(apperr.New(apperr.ErrConfiguration, op, c.name+" delegate is not initialized"))
		return nil, false
	}
	return s, true
}

// clear marks the delegate cleared and cancels its scope. It reports whether this
// call did the clearing.
func (c *core) clear() bool {
	c.mu.Lock()
	if c.cleared {
		c.mu.Unlock()
		return false
	}
	c.cleared = true
	s := c.scope
	c.mu.Unlock()

	if s != nil {
		s.Cancel()
	}
	slog.Debug("action_delegate_cleared", "delegate", c.name)
	return true
}

// storeContext bounds a saved-state call. Persistence must outlive the delegate's
// own cancellation so that final state is always written.
func (c *core) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), config.StoreTimeout)
}

func (c *core) saveAction(a model.Action) error {
	ctx, cancel := c.storeContext()
	defer cancel()
	return savedstate.Save(ctx, c.handle, savedstate.KeyAction, a)
}

func (c *core) savedAction() (model.Action, bool) {
	ctx, cancel := c.storeContext()
	defer cancel()
	a, ok, err := savedstate.Load[model.Action](ctx, c.handle, savedstate.KeyAction)
	if err != nil {
		slog.Warn("action_restore_failed", "delegate", c.name, "error", err)
		return model.Action{}, false
	}
	return a, ok
}

func (c *core) setPolling(polling bool) {
	ctx, cancel := c.storeContext()
	defer cancel()
	if err := savedstate.Save(ctx, c.handle, savedstate.KeyIsPolling, polling); err != nil {
		slog.Warn("saved_state_write_failed", "key", savedstate.KeyIsPolling, "error", err)
	}
}

func (c *core) isPolling() bool {
	ctx, cancel := c.storeContext()
	defer cancel()
	polling, _, err := savedstate.Load[bool](ctx, c.handle, savedstate.KeyIsPolling)
	if err != nil {
		slog.Warn("saved_state_read_failed", "key", savedstate.KeyIsPolling, "error", err)
	}
	return polling
}

// clearState forgets the saved action once it has reached an outcome.
func (c *core) clearState() {
	ctx, cancel := c.storeContext()
	defer cancel()
	for _, key := range []string{savedstate.KeyAction, savedstate.KeyIsPolling} {
		if err := c.handle.Remove(ctx, key); err != nil {
			slog.Warn("saved_state_clear_failed", "key", key, "error", err)
		}
	}
}

// emitDetails completes the action with details and the stashed payment data.
func (c *core) emitDetails(details map[string]any) {
	ctx, cancel := c.storeContext()
	paymentData, err := c.paymentData.PaymentData(ctx)
	cancel()
	if err != nil {
		slog.Warn("payment_data_read_failed", "delegate", c.name, "error", err)
	}
	c.details.Send(model.ActionComponentData{Details: details, PaymentData: paymentData})
	c.clearState()
	slog.Info("action_details_emitted", "delegate", c.name)
}

// report surfaces err but keeps the saved action, so a later intent or poll can
// still complete it.
func (c *core) report(err error) {
	slog.Warn("action_error_reported", "delegate", c.name, "error", err, "kind", apperr.Kind(err))
	c.errs.Send(err)
}

// fail reports a terminal error and forgets the saved action.
func (c *core) fail(err error) {
	slog.Error("action_failed", "delegate", c.name, "error", err, "kind", apperr.Kind(err))
	c.errs.Send(err)
	c.clearState()
}

// onStatus applies one poll result. It returns true once the action has reached an
// outcome and polling is over.
func (c *core) onStatus(res status.Result) bool {
	if res.Err != nil {
		if errors.Is(res.Err, apperr.ErrTimeout) {
			c.fail(res.Err)
			return true
		}
		c.errs.Send(res.Err)
		return false
	}
	if !res.Response.IsFinal() {
		return false
	}
	if res.Response.Payload == "" {
		c.fail(apperr.New(apperr.ErrProtocol, "status poll", "Payment was not completed. - "+string(res.Response.ResultCode)))
		return true
	}
	c.emitDetails(map[string]any{PayloadDetailsKey: res.Response.Payload})
	return true
}

// poller keeps at most one status poll running.
type poller struct {
	repo StatusPoller

	mu          sync.Mutex
	job         *scope.Job
	paymentData string
}

// start cancels any running poll and launches a new one in s. onResult returns true
// to stop consuming.
func (p *poller) start(s *scope.Scope, paymentData string, maxDuration time.Duration, onResult func(status.Result) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.job.Cancel()
	p.paymentData = paymentData
	p.job = s.Launch(func(ctx context.Context) {
		for res := range p.repo.Poll(ctx, paymentData, maxDuration) {
			if ctx.Err() != nil {
				return
			}
			if onResult(res) {
				return
			}
		}
	})
}

func (p *poller) refresh() {
	p.mu.Lock()
	paymentData := p.paymentData
	p.mu.Unlock()
	if paymentData == "" {
		return
	}
	p.repo.RefreshStatus(paymentData)
}

func (p *poller) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.job.Cancel()
	p.job = nil
}
