package action

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/api"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/redirect"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/savedstate"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/scope"
)

// NativeRedirectExchanger trades a native redirect return for its result.
type NativeRedirectExchanger interface {
	NativeRedirect(ctx context.Context, req api.NativeRedirectRequest) (api.NativeRedirectResponse, error)
}

// RedirectDelegate sends the shopper to an external URL and completes the action
// from the return URL.
type RedirectDelegate struct {
	*core
	launcher  redirect.Launcher
	exchanger NativeRedirectExchanger
}

func NewRedirectDelegate(handle *savedstate.Handle, launcher redirect.Launcher, exchanger NativeRedirectExchanger) *RedirectDelegate {
	return &RedirectDelegate{
		core:      newCore("redirect", handle),
		launcher:  launcher,
		exchanger: exchanger,
	}
}

func (d *RedirectDelegate) Initialize(s *scope.Scope) {
	if !d.bind(s) {
		return
	}
	if a, ok := d.savedAction(); ok {
		slog.Debug("action_restored", "delegate", d.name, "type", a.Type)
	}
}

// HandleAction stashes the token the return will need, then launches the URL.
func (d *RedirectDelegate) HandleAction(a model.Action) {
	if _, ok := d.active("handle redirect action"); !ok {
		return
	}
	if a.Type != model.ActionRedirect && a.Type != model.ActionNativeRedirect {
		d.errs.Send(apperr.New(apperr.ErrUnsupportedAction, "handle redirect action", "unsupported action "+string(a.Type)))
		return
	}
	if err := d.stash(a); err != nil {
		d.fail(err)
		return
	}
	slog.Info("redirect_launched", "type", a.Type, "payment_method", a.PaymentMethodType)
	if err := d.launcher.Launch(a.URL); err != nil {
		d.fail(err)
	}
}

func (d *RedirectDelegate) stash(a model.Action) error {
	if err := d.saveAction(a); err != nil {
		return apperr.Wrap(apperr.ErrConfiguration, "handle redirect action", "could not save action", err)
	}
	ctx, cancel := d.storeContext()
	defer cancel()
	var err error
	if a.Type == model.ActionNativeRedirect {
		err = d.paymentData.SetNativeRedirectData(ctx, a.NativeRedirectData)
	} else {
		err = d.paymentData.SetPaymentData(ctx, a.PaymentData)
	}
	if err != nil {
		return apperr.Wrap(apperr.ErrConfiguration, "handle redirect action", "could not save payment data", err)
	}
	return nil
}

// HandleIntent parses the return URL. Native redirects exchange the result with the
// backend before completing.
func (d *RedirectDelegate) HandleIntent(u *url.URL) {
	s, ok := d.active("handle redirect intent")
	if !ok {
		return
	}
	details, err := redirect.ParseResult(u)
	if err != nil {
		d.report(err)
		return
	}
	a, _ := d.savedAction()
	if a.Type != model.ActionNativeRedirect {
		d.emitDetails(details)
		return
	}
	s.Launch(func(ctx context.Context) {
		d.exchangeNativeRedirect(ctx, details)
	})
}

func (d *RedirectDelegate) exchangeNativeRedirect(ctx context.Context, details map[string]any) {
	redirectData, err := d.paymentData.NativeRedirectData(ctx)
	if err != nil {
		d.fail(apperr.Wrap(apperr.ErrConfiguration, "native redirect", "could not read redirect data", err))
		return
	}
	queryString, _ := details[redirect.ParamReturnQueryString].(string)
	resp, err := d.exchanger.NativeRedirect(ctx, api.NativeRedirectRequest{
		RedirectData:      redirectData,
		ReturnQueryString: queryString,
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		d.fail(err)
		return
	}
	d.emitDetails(resp.Details())
}

// OnCleared cancels any pending exchange. Safe to call repeatedly.
func (d *RedirectDelegate) OnCleared() {
	d.clear()
}
