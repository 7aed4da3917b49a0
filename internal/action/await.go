package action

import (
	"log/slog"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/redirect"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/savedstate"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/scope"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/status"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/stream"
)

// AwaitOutputData is the observable state of an await action.
type AwaitOutputData struct {
	IsValid           bool   `json:"isValid"`
	PaymentMethodType string `json:"paymentMethodType,omitempty"`
}

// AwaitDelegate waits for the shopper to approve a payment elsewhere, optionally
// after opening a URL, by polling the payment status.
type AwaitDelegate struct {
	*core
	poller   poller
	launcher redirect.Launcher
	output   *stream.State[AwaitOutputData]
}

func NewAwaitDelegate(handle *savedstate.Handle, repo StatusPoller, launcher redirect.Launcher) *AwaitDelegate {
	return &AwaitDelegate{
		core:     newCore("await", handle),
		poller:   poller{repo: repo},
		launcher: launcher,
		output:   stream.NewState(AwaitOutputData{}),
	}
}

// Output exposes the await state stream.
func (d *AwaitDelegate) Output() *stream.State[AwaitOutputData] {
	return d.output
}

// Initialize binds the delegate to s and resumes a saved await action.
func (d *AwaitDelegate) Initialize(s *scope.Scope) {
	if !d.bind(s) {
		return
	}
	a, ok := d.savedAction()
	if !ok || a.Type != model.ActionAwait {
		return
	}
	slog.Debug("action_restored", "delegate", d.name, "payment_method", a.PaymentMethodType)
	// A redirecting await only polls once its URL has been opened.
	if a.URL == "" || d.isPolling() {
		d.startPolling(s, a)
	}
}

func (d *AwaitDelegate) HandleAction(a model.Action) {
	s, ok := d.active("handle await action")
	if !ok {
		return
	}
	if a.Type != model.ActionAwait {
		d.errs.Send(apperr.New(apperr.ErrUnsupportedAction, "handle await action", "unsupported action "+string(a.Type)))
		return
	}
	if a.PaymentData == "" {
		d.fail(apperr.New(apperr.ErrProtocol, "handle await action", "payment data is missing"))
		return
	}
	if err := d.persist(a); err != nil {
		d.fail(err)
		return
	}
	slog.Info("action_handled", "delegate", d.name, "payment_method", a.PaymentMethodType)

	if a.URL != "" {
		if err := d.launcher.Launch(a.URL); err != nil {
			d.fail(err)
			return
		}
	}
	d.startPolling(s, a)
}

func (d *AwaitDelegate) persist(a model.Action) error {
	if err := d.saveAction(a); err != nil {
		return apperr.Wrap(apperr.ErrConfiguration, "handle await action", "could not save action", err)
	}
	ctx, cancel := d.storeContext()
	defer cancel()
	if err := d.paymentData.SetPaymentData(ctx, a.PaymentData); err != nil {
		return apperr.Wrap(apperr.ErrConfiguration, "handle await action", "could not save payment data", err)
	}
	return nil
}

func (d *AwaitDelegate) startPolling(s *scope.Scope, a model.Action) {
	d.output.Set(AwaitOutputData{PaymentMethodType: a.PaymentMethodType})
	d.setPolling(true)
	d.poller.start(s, a.PaymentData, config.DefaultMaxPollingDuration, func(res status.Result) bool {
		if res.Err == nil {
			d.output.Set(AwaitOutputData{IsValid: res.Response.IsFinal(), PaymentMethodType: a.PaymentMethodType})
		}
		return d.onStatus(res)
	})
}

// RefreshStatus asks the running poll for an immediate status.
func (d *AwaitDelegate) RefreshStatus() {
	d.poller.refresh()
}

// OnCleared stops polling and cancels the scope. Safe to call repeatedly.
func (d *AwaitDelegate) OnCleared() {
	if d.clear() {
		d.poller.stop()
	}
}
