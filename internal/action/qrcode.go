package action

import (
	"log/slog"
	"net/url"
	"time"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/redirect"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/savedstate"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/scope"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/status"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/stream"
)

// QRCodeView tells the host what to render for a QR code action.
type QRCodeView string

const (
	QRCodeViewNone     QRCodeView = ""
	QRCodeViewQRCode   QRCodeView = "qr_code"
	QRCodeViewRedirect QRCodeView = "redirect"
)

// QRCodeOutputData is the observable state of a QR code action.
type QRCodeOutputData struct {
	IsValid           bool   `json:"isValid"`
	PaymentMethodType string `json:"paymentMethodType,omitempty"`
	QRCodeData        string `json:"qrCodeData,omitempty"`
}

var viewableQRCodeMethods = map[string]bool{
	model.MethodPix:    true,
	model.MethodPayNow: true,
	model.MethodUPIQR:  true,
}

// MaxPollingDuration returns the polling ceiling of a QR payment method.
func MaxPollingDuration(paymentMethodType string) time.Duration {
	switch paymentMethodType {
	case model.MethodPayNow:
		return config.PayNowMaxPollingDuration
	case model.MethodUPIQR:
		return config.UPIMaxPollingDuration
	default:
		return config.DefaultMaxPollingDuration
	}
}

// QRCodeDelegate shows a QR code and polls until the shopper has paid. Methods
// whose QR code cannot be shown in-app are redirected instead.
type QRCodeDelegate struct {
	*core
	poller    poller
	launcher  redirect.Launcher
	output    *stream.State[QRCodeOutputData]
	view      *stream.State[QRCodeView]
	countdown *status.Countdown
}

func NewQRCodeDelegate(handle *savedstate.Handle, repo StatusPoller, launcher redirect.Launcher) *QRCodeDelegate {
	return &QRCodeDelegate{
		core:      newCore("qr_code", handle),
		poller:    poller{repo: repo},
		launcher:  launcher,
		output:    stream.NewState(QRCodeOutputData{}),
		view:      stream.NewState(QRCodeViewNone),
		countdown: status.NewCountdown(),
	}
}

func (d *QRCodeDelegate) Output() *stream.State[QRCodeOutputData] { return d.output }

func (d *QRCodeDelegate) View() *stream.State[QRCodeView] { return d.view }

// Timer exposes the countdown to the polling ceiling.
func (d *QRCodeDelegate) Timer() *stream.State[status.TimerData] { return d.countdown.State() }

// Initialize binds the delegate to s and resumes polling for a saved QR code.
func (d *QRCodeDelegate) Initialize(s *scope.Scope) {
	if !d.bind(s) {
		return
	}
	a, ok := d.savedAction()
	if !ok || a.Type != model.ActionQRCode {
		return
	}
	slog.Debug("action_restored", "delegate", d.name, "payment_method", a.PaymentMethodType)
	if viewableQRCodeMethods[a.PaymentMethodType] {
		d.view.Set(QRCodeViewQRCode)
		if d.isPolling() {
			d.startPolling(s, a)
		}
		return
	}
	d.view.Set(QRCodeViewRedirect)
}

func (d *QRCodeDelegate) HandleAction(a model.Action) {
	s, ok := d.active("handle qr code action")
	if !ok {
		return
	}
	if a.Type != model.ActionQRCode {
		d.errs.Send(apperr.New(apperr.ErrUnsupportedAction, "handle qr code action", "unsupported action "+string(a.Type)))
		return
	}
	if a.PaymentData == "" {
		d.fail(apperr.New(apperr.ErrProtocol, "handle qr code action", "payment data is missing"))
		return
	}
	if err := d.saveAction(a); err != nil {
		d.fail(apperr.Wrap(apperr.ErrConfiguration, "handle qr code action", "could not save action", err))
		return
	}
	ctx, cancel := d.storeContext()
	err := d.paymentData.SetPaymentData(ctx, a.PaymentData)
	cancel()
	if err != nil {
		d.fail(apperr.Wrap(apperr.ErrConfiguration, "handle qr code action", "could not save payment data", err))
		return
	}

	if !viewableQRCodeMethods[a.PaymentMethodType] {
		slog.Info("qr_code_redirect", "payment_method", a.PaymentMethodType)
		d.view.Set(QRCodeViewRedirect)
		if err := d.launcher.Launch(a.URL); err != nil {
			d.fail(err)
		}
		return
	}

	slog.Info("action_handled", "delegate", d.name, "payment_method", a.PaymentMethodType)
	d.view.Set(QRCodeViewQRCode)
	d.startPolling(s, a)
}

func (d *QRCodeDelegate) startPolling(s *scope.Scope, a model.Action) {
	maxDuration := MaxPollingDuration(a.PaymentMethodType)
	d.output.Set(QRCodeOutputData{PaymentMethodType: a.PaymentMethodType, QRCodeData: a.QRCodeData})
	d.setPolling(true)
	d.poller.start(s, a.PaymentData, maxDuration, func(res status.Result) bool {
		if res.Err == nil {
			d.output.Set(QRCodeOutputData{
				IsValid:           res.Response.IsFinal(),
				PaymentMethodType: a.PaymentMethodType,
				QRCodeData:        a.QRCodeData,
			})
		}
		done := d.onStatus(res)
		if done {
			d.countdown.Cancel()
		}
		return done
	})
	d.countdown.Start(s.Context(), maxDuration, d.poller.repo.Interval())
}

// HandleIntent completes a redirected QR code payment from its return URL.
func (d *QRCodeDelegate) HandleIntent(u *url.URL) {
	if _, ok := d.active("handle qr code intent"); !ok {
		return
	}
	details, err := redirect.ParseResult(u)
	if err != nil {
		d.report(err)
		return
	}
	d.emitDetails(details)
}

// RefreshStatus asks the running poll for an immediate status.
func (d *QRCodeDelegate) RefreshStatus() {
	d.poller.refresh()
}

// OnCleared stops polling and the countdown. Safe to call repeatedly.
func (d *QRCodeDelegate) OnCleared() {
	if d.clear() {
		d.poller.stop()
		d.countdown.Cancel()
	}
}
