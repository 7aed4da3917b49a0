package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/action"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/api"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/component"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/orchestrator"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/redirect"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/savedstate"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/session"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/status"
)

const defaultTimeout = 2 * time.Minute

// environment is what every command builds before running a checkout.
type environment struct {
	ctx       context.Context
	settings  *config.Settings
	client    *api.Client
	store     savedstate.Store
	handle    *savedstate.Handle
	attemptID string
	params    component.Params
	qrOut     string
	// components builds every payment component the CLI submits.
	components *component.Registry
	deps       component.Dependencies
}

func newEnvironment(cmd *cobra.Command) (*environment, context.CancelFunc, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: settings.SlogLevel()})))

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)

	store, err := savedstate.Open(ctx, settings)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	qrOut, _ := cmd.Flags().GetString("qr-out")
	attemptID, _ := cmd.Flags().GetString("attempt")
	if attemptID == "" {
		attemptID = uuid.NewString()
	}

	client := api.NewClient(settings.BaseURL, settings.ClientKey, nil)
	env := &environment{
		ctx:        ctx,
		settings:   settings,
		client:     client,
		store:      store,
		handle:     savedstate.NewHandle(store, attemptID),
		attemptID:  attemptID,
		qrOut:      qrOut,
		params:     component.Params{ClientKey: settings.ClientKey, ConfirmationRequired: true, IsSubmitButtonVisible: true},
		components: component.DefaultRegistry(),
		deps: component.Dependencies{
			PublicKeys: component.NewPublicKeyRepository(client),
			Encryptor:  encryptorFor(settings),
		},
	}
	return env, func() {
		store.Close()
		cancel()
	}, nil
}

// encryptorFor seals ACH fields in live environments and sends test values otherwise.
func encryptorFor(settings *config.Settings) component.Encryptor {
	if settings.Environment == "live" {
		return component.SealedBoxEncryptor{}
	}
	return component.TestEncryptor{}
}

// outcome is printed when a checkout ends.
type outcome struct {
	AttemptID string                      `json:"attemptId"`
	Result    *model.SessionPaymentResult `json:"result,omitempty"`
	Action    *model.Action               `json:"pendingAction,omitempty"`
	Order     *orderReport                `json:"order,omitempty"`
	Error     string                      `json:"error,omitempty"`
}

// orderReport describes a partially paid order and the methods that can pay the rest.
type orderReport struct {
	OrderData       string       `json:"orderData"`
	RemainingAmount model.Amount `json:"remainingAmount"`
	PaymentMethods  []string     `json:"paymentMethods"`
	Supported       []string     `json:"supportedByCli"`
}

// reportOrder refreshes order from the backend so the remaining amount reflects
// every payment made so far.
func (env *environment) reportOrder(order model.OrderResponse) (*orderReport, error) {
	st, err := env.client.OrderStatus(env.ctx, order.OrderData)
	if err != nil {
		return nil, err
	}
	r := &orderReport{OrderData: order.OrderData, RemainingAmount: st.RemainingAmount}
	for _, pm := range st.PaymentMethods {
		r.PaymentMethods = append(r.PaymentMethods, pm.Type)
		if env.components.IsSupported(pm.Type) {
			r.Supported = append(r.Supported, pm.Type)
		}
	}
	return r, nil
}

// runCheckout wires the checkout packages for env and waits until the payment
// finishes, fails or env's deadline passes. start runs once observers are attached.
func runCheckout(env *environment, interactor *session.Interactor, comp component.Delegate, start func(*orchestrator.Orchestrator)) error {
	done := make(chan outcome, 1)
	report := func(o outcome) {
		select {
		case done <- o:
		default:
		}
	}

	var orch *orchestrator.Orchestrator
	launcher := &redirect.HTTPLauncher{
		ReturnURL: env.settings.ReturnURL,
		OnReturn:  func(u *url.URL) { orch.HandleIntent(u) },
	}
	dispatcher := action.NewDispatcher(action.DefaultRegistry(), action.Dependencies{
		Handle:    env.handle,
		Poller:    status.NewRepository(env.client),
		Launcher:  launcher,
		Exchanger: env.client,
	})

	var lastAction atomic.Pointer[model.Action]
	orch = orchestrator.New(interactor, comp, dispatcher, orchestrator.Callbacks{
		OnAction: func(a model.Action) {
			lastAction.Store(&a)
			slog.Info("action_started", "type", a.Type, "payment_method", a.PaymentMethodType)
			if a.Type == model.ActionQRCode && a.QRCodeData != "" && env.qrOut != "" {
				if err := writeQRCode(env.qrOut, a.QRCodeData); err != nil {
					slog.Warn("qr_code_write_failed", "path", env.qrOut, "error", err)
					return
				}
				fmt.Fprintln(os.Stderr, "QR code written to", env.qrOut)
			}
		},
		OnPaymentMethodsUpdated: func(methods []api.PaymentMethod, order *model.OrderResponse) {
			out := outcome{AttemptID: env.attemptID, Error: fmt.Sprintf("order not fully paid, %d payment methods left", len(methods))}
			if order != nil {
				r, err := env.reportOrder(*order)
				if err != nil {
					slog.Warn("order_status_failed", "error", err, "kind", apperr.Kind(err))
				}
				out.Order = r
			}
			report(out)
		},
		OnFinished: func(r model.SessionPaymentResult) { report(outcome{AttemptID: env.attemptID, Result: &r}) },
		OnError:    func(err error) { report(outcome{AttemptID: env.attemptID, Error: err.Error()}) },
	})
	orch.Start(env.ctx)
	defer orch.Stop()

	if start != nil {
		start(orch)
	}

	var out outcome
	select {
	case out = <-done:
	case <-env.ctx.Done():
		out = outcome{AttemptID: env.attemptID, Action: lastAction.Load(), Error: "timed out; resume with: checkout details --attempt " + env.attemptID}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if out.Error != "" {
		return fmt.Errorf("checkout did not finish")
	}
	return nil
}

// runPayment creates or joins a session and submits the component build returns.
func runPayment(cmd *cobra.Command, build func(env *environment) (component.Delegate, func(), error)) error {
	env, closeEnv, err := newEnvironment(cmd)
	if err != nil {
		return err
	}
	defer closeEnv()

	amount := amountFlag(cmd)
	sess, err := sessionFromFlags(cmd, env, amount)
	if err != nil {
		return err
	}
	env.params.Amount = &amount

	interactor, err := session.New(env.ctx, env.client, env.handle, sess, session.MerchantCalls{})
	if err != nil {
		return err
	}
	comp, submit, err := build(env)
	if err != nil {
		return err
	}
	slog.Info("checkout_attempt", "attempt_id", env.attemptID, "session_id", sess.ID)
	return runCheckout(env, interactor, comp, func(*orchestrator.Orchestrator) { submit() })
}

func sessionFromFlags(cmd *cobra.Command, env *environment, amount model.Amount) (model.SessionModel, error) {
	id, _ := cmd.Flags().GetString("session-id")
	data, _ := cmd.Flags().GetString("session-data")
	if id != "" {
		return model.SessionModel{ID: id, SessionData: data}, nil
	}
	return createSandboxSession(env.ctx, env.settings, amount)
}

// createSandboxSession asks the sandbox backend for a new session.
func createSandboxSession(ctx context.Context, settings *config.Settings, amount model.Amount) (model.SessionModel, error) {
	body, err := json.Marshal(map[string]any{"amount": amount, "returnUrl": settings.ReturnURL})
	if err != nil {
		return model.SessionModel{}, err
	}
	endpoint := strings.TrimRight(settings.BaseURL, "/") + "/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return model.SessionModel{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&http.Client{Timeout: config.HTTPTimeout}).Do(req)
	if err != nil {
		return model.SessionModel{}, fmt.Errorf("create sandbox session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return model.SessionModel{}, fmt.Errorf("create sandbox session: unexpected status %d", resp.StatusCode)
	}

	var setup api.SessionSetupResponse
	if err := json.NewDecoder(resp.Body).Decode(&setup); err != nil {
		return model.SessionModel{}, fmt.Errorf("decode sandbox session: %w", err)
	}
	return model.SessionModel{ID: setup.ID, SessionData: setup.SessionData}, nil
}

// waitReady blocks until d's state is ready or ctx is done.
func waitReady(ctx context.Context, d component.Delegate) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for state := range d.ComponentState().Subscribe(ctx) {
		if state.IsReady {
			return
		}
	}
}
