package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/api"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/component"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/health"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/processor"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrStaleSession = errors.New("stale sessionData")
)

// SandboxConfig configures the simulated backend.
type SandboxConfig struct {
	// BaseURL is the externally reachable address used to build redirect URLs.
	BaseURL string
	// ClientKeys maps accepted client keys to their public keys.
	ClientKeys map[string]string
	// SettleAfterPolls is the number of status polls an await or QR payment stays pending.
	SettleAfterPolls int
	// DecryptionKey opens sealed ACH fields. Without it only test fields are accepted.
	DecryptionKey *component.SealedBoxKey
}

type sandboxSession struct {
	id          string
	sessionData string
	amount      model.Amount
	returnURL   string
	tokens      map[string]bool
}

type sandboxOrder struct {
	sessionID string
	order     model.OrderResponse
	cancelled bool
}

// pendingPayment is a payment waiting for its shopper action.
type pendingPayment struct {
	pspReference string
	sessionID    string
	request      processor.Request
	processor    processor.Processor
	action       model.Action
	order        *model.Order
	polls        int
	settled      *processor.Response
	payload      string
	returnURL    string
}

// PaymentRecord is the history of one sandbox payment.
type PaymentRecord struct {
	PspReference  string               `json:"psp_reference"`
	SessionID     string               `json:"session_id"`
	PaymentMethod string               `json:"payment_method"`
	Amount        model.Amount         `json:"amount"`
	ResultCode    model.ResultCode     `json:"result_code"`
	Responses     []processor.Response `json:"responses"`
}

// Sandbox is an in-memory checkout backend driven by simulated providers.
type Sandbox struct {
	cfg        SandboxConfig
	processors []processor.Processor
	monitor    *health.Monitor

	mu        sync.Mutex
	sessions  map[string]*sandboxSession
	orders    map[string]*sandboxOrder
	pending   map[string]*pendingPayment // by paymentData
	redirects map[string]*pendingPayment // by pspReference
	results   map[string]*pendingPayment // by payload, redirectResult or native redirect data
	payments  map[string]*PaymentRecord
}

// NewSandbox creates an empty sandbox backed by processors.
func NewSandbox(cfg SandboxConfig, processors []processor.Processor) *Sandbox {
	if cfg.SettleAfterPolls <= 0 {
		cfg.SettleAfterPolls = 3
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Sandbox{
		cfg:        cfg,
		processors: processors,
		monitor:    health.NewMonitor(),
		sessions:   make(map[string]*sandboxSession),
		orders:     make(map[string]*sandboxOrder),
		pending:    make(map[string]*pendingPayment),
		redirects:  make(map[string]*pendingPayment),
		results:    make(map[string]*pendingPayment),
		payments:   make(map[string]*PaymentRecord),
	}
}

// Processors returns the simulated providers.
func (s *Sandbox) Processors() []processor.Processor {
	return s.processors
}

// Health returns the health of every provider that has responded.
func (s *Sandbox) Health() []health.ProviderHealth {
	return s.monitor.All()
}

// route sends req to the healthiest provider supporting its method and fails over
// to the next one when a provider errors. Every response is recorded.
func (s *Sandbox) route(ctx context.Context, sessionID string, req processor.Request) (processor.Processor, processor.Response, error) {
	if _, ok := processor.Select(s.processors, req.PaymentMethod); !ok {
		return nil, processor.Response{}, apperr.New(apperr.ErrProtocol, "payments", "unsupported payment method "+req.PaymentMethod)
	}
	ranked := s.monitor.Rank(s.processors, req.PaymentMethod)
	if len(ranked) == 0 {
		slog.Warn("no_eligible_processors", "psp_reference", req.Reference, "payment_method", req.PaymentMethod)
		return nil, processor.Response{}, apperr.New(apperr.ErrTransport, "payments", "no healthy provider for "+req.PaymentMethod)
	}

	var resp processor.Response
	for i, p := range ranked {
		resp = p.Process(ctx, req)
		s.record(req, sessionID, resp)
		if resp.Outcome != processor.OutcomeError || i == len(ranked)-1 || ctx.Err() != nil {
			return p, resp, nil
		}
		slog.Warn("payment_failover",
			"psp_reference", req.Reference,
			"processor", p.Name(),
			"next_processor", ranked[i+1].Name(),
			"attempt", i+1,
		)
	}
	return ranked[len(ranked)-1], resp, nil
}

// PublicKey returns the public key bound to clientKey.
func (s *Sandbox) PublicKey(clientKey string) (string, bool) {
	key, ok := s.cfg.ClientKeys[clientKey]
	return key, ok
}

// PaymentMethods lists every method some provider supports.
func (s *Sandbox) PaymentMethods() []api.PaymentMethod {
	var methods []api.PaymentMethod
	seen := make(map[string]bool)
	for _, p := range s.processors {
		for _, m := range p.SupportedMethods() {
			if !seen[m] {
				seen[m] = true
				methods = append(methods, api.PaymentMethod{Type: m, Name: m})
			}
		}
	}
	return methods
}

// CreateSession opens a session for amount. Shoppers return to returnURL after redirects.
func (s *Sandbox) CreateSession(amount model.Amount, returnURL string, storedTokens []string) (model.SessionModel, error) {
	if _, err := url.Parse(returnURL); err != nil {
		return model.SessionModel{}, apperr.Wrap(apperr.ErrConfiguration, "create session", "invalid return url", err)
	}
	sess := &sandboxSession{
		id:          "CS" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16],
		sessionData: uuid.NewString(),
		amount:      amount,
		returnURL:   returnURL,
		tokens:      make(map[string]bool),
	}
	for _, t := range storedTokens {
		sess.tokens[t] = true
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	slog.Info("sandbox_session_created", "session_id", sess.id, "currency", amount.Currency, "value", amount.Value)
	return model.SessionModel{ID: sess.id, SessionData: sess.sessionData}, nil
}

// session checks sessionData against the latest token of session id. Callers hold
// s.mu and call next once the request has succeeded, so a rejected request leaves
// the shopper's sessionData valid.
func (s *Sandbox) session(id, sessionData string) (*sandboxSession, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, apperr.Wrap(apperr.ErrConfiguration, "session", "unknown session "+id, ErrNotFound)
	}
	if sess.sessionData != sessionData {
		return nil, apperr.Wrap(apperr.ErrProtocol, "session", "sessionData is not the latest issued", ErrStaleSession)
	}
	return sess, nil
}

// next issues the following sessionData of sess. Callers hold s.mu.
func (sess *sandboxSession) next() model.SessionModel {
	sess.sessionData = uuid.NewString()
	return model.SessionModel{ID: sess.id, SessionData: sess.sessionData}
}

// Setup refreshes a session and lists its payment methods.
func (s *Sandbox) Setup(id, sessionData string, order *model.Order) (model.SessionModel, model.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.session(id, sessionData)
	if err != nil {
		return model.SessionModel{}, model.Amount{}, err
	}
	amount := sess.amount
	if order != nil {
		if o, ok := s.orders[order.OrderData]; ok && o.order.RemainingAmount != nil {
			amount = *o.order.RemainingAmount
		}
	}
	return sess.next(), amount, nil
}

// PaymentOutcome is the answer to a payments or details call.
type PaymentOutcome struct {
	Session    model.SessionModel
	ResultCode model.ResultCode
	Action     *model.Action
	Order      *model.OrderResponse
}

// Pay submits data to the provider of its payment method.
func (s *Sandbox) Pay(ctx context.Context, id, sessionData string, data model.PaymentComponentData) (PaymentOutcome, error) {
	if data.PaymentMethod == nil || data.PaymentMethod.Type == "" {
		return PaymentOutcome{}, apperr.New(apperr.ErrConfiguration, "payments", "paymentMethod.type is required")
	}
	if _, ok := processor.Select(s.processors, data.PaymentMethod.Type); !ok {
		return PaymentOutcome{}, apperr.New(apperr.ErrProtocol, "payments", "unsupported payment method "+data.PaymentMethod.Type)
	}
	if err := s.checkEncryptedFields(data.PaymentMethod); err != nil {
		return PaymentOutcome{}, err
	}

	s.mu.Lock()
	sess, err := s.session(id, sessionData)
	if err != nil {
		s.mu.Unlock()
		return PaymentOutcome{}, err
	}
	amount := sess.amount
	if data.Amount != nil {
		amount = *data.Amount
	}
	returnURL := sess.returnURL
	s.mu.Unlock()

	req := processor.Request{Reference: uuid.NewString(), PaymentMethod: data.PaymentMethod.Type, Amount: amount}
	p, resp, err := s.route(ctx, id, req)
	if err != nil {
		return PaymentOutcome{}, err
	}

	s.mu.Lock()
	out := PaymentOutcome{Session: sess.next()}
	s.mu.Unlock()

	slog.Info("sandbox_payment_processed",
		"psp_reference", req.Reference,
		"processor", resp.ProcessorName,
		"payment_method", req.PaymentMethod,
		"outcome", resp.Outcome,
	)

	out.ResultCode = resp.Outcome.ResultCode()
	if resp.Outcome.IsFinal() {
		out.Order = s.applyToOrder(data.Order, amount, resp.Outcome)
		return out, nil
	}

	pp := &pendingPayment{
		pspReference: req.Reference,
		sessionID:    id,
		request:      req,
		processor:    p,
		order:        data.Order,
		returnURL:    returnURL,
	}
	pp.action = s.actionFor(pp, resp.Outcome)

	s.mu.Lock()
	if pp.action.PaymentData != "" {
		s.pending[pp.action.PaymentData] = pp
	}
	if pp.action.NativeRedirectData != "" {
		s.results[pp.action.NativeRedirectData] = pp
	}
	if resp.Outcome == processor.OutcomeRedirect {
		s.redirects[req.Reference] = pp
	}
	s.mu.Unlock()

	a := pp.action
	out.Action = &a
	return out, nil
}

// checkEncryptedFields rejects bank details that are neither test values nor
// sealed to the sandbox key.
func (s *Sandbox) checkEncryptedFields(pm *model.PaymentMethodDetails) error {
	for _, field := range []string{pm.EncryptedBankAccountNumber, pm.EncryptedBankLocationID} {
		switch {
		case field == "", strings.HasPrefix(field, component.TestFieldPrefix):
			continue
		case s.cfg.DecryptionKey == nil:
			return apperr.New(apperr.ErrEncryption, "payments", "sealed field sent to a sandbox without a decryption key")
		}
		if _, err := s.cfg.DecryptionKey.Open(field); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sandbox) actionFor(pp *pendingPayment, outcome processor.Outcome) model.Action {
	method := pp.request.PaymentMethod
	a := model.Action{PaymentMethodType: method, PaymentData: uuid.NewString()}
	switch outcome {
	case processor.OutcomeAwait:
		a.Type = model.ActionAwait
	case processor.OutcomeQRCode:
		a.Type = model.ActionQRCode
		a.QRCodeData = "00020101021226" + strings.ReplaceAll(pp.pspReference, "-", "")
	default:
		a.Type = model.ActionRedirect
		a.Method = "GET"
		a.URL = s.cfg.BaseURL + redirectPath + pp.pspReference
		if method == model.MethodTwint {
			a.Type = model.ActionNativeRedirect
			a.PaymentData = ""
			a.NativeRedirectData = uuid.NewString()
		}
	}
	return a
}

// Status answers one status poll. Payments settle once they were polled
// SettleAfterPolls times.
func (s *Sandbox) Status(ctx context.Context, paymentData string) (model.StatusResponse, error) {
	s.mu.Lock()
	pp, ok := s.pending[paymentData]
	if !ok {
		s.mu.Unlock()
		return model.StatusResponse{}, apperr.Wrap(apperr.ErrProtocol, "status", "unknown paymentData", ErrNotFound)
	}
	pp.polls++
	due := pp.settled == nil && pp.polls >= s.cfg.SettleAfterPolls && pp.action.Type != model.ActionRedirect
	s.mu.Unlock()

	if due {
		s.settle(ctx, pp)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if pp.settled == nil {
		return model.StatusResponse{Type: "pending", ResultCode: model.ResultPending}, nil
	}
	return model.StatusResponse{Type: "complete", ResultCode: pp.settled.Outcome.ResultCode(), Payload: pp.payload}, nil
}

// settle asks the provider for the final outcome of pp once.
func (s *Sandbox) settle(ctx context.Context, pp *pendingPayment) {
	s.mu.Lock()
	if pp.settled != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	resp := pp.processor.Settle(ctx, pp.request)

	s.mu.Lock()
	if pp.settled == nil {
		pp.settled = &resp
		pp.payload = uuid.NewString()
		s.results[pp.payload] = pp
	}
	s.mu.Unlock()

	s.record(pp.request, pp.sessionID, resp)
	slog.Info("sandbox_payment_settled", "psp_reference", pp.pspReference, "outcome", resp.Outcome)
}

// CompleteRedirect settles the redirect payment ref and returns the shopper's
// return URL.
func (s *Sandbox) CompleteRedirect(ctx context.Context, ref string) (string, error) {
	s.mu.Lock()
	pp, ok := s.redirects[ref]
	s.mu.Unlock()
	if !ok {
		return "", apperr.Wrap(apperr.ErrRedirect, "redirect", "unknown payment "+ref, ErrNotFound)
	}
	s.settle(ctx, pp)

	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := url.Parse(pp.returnURL)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrConfiguration, "redirect", "invalid return url", err)
	}
	q := u.Query()
	if pp.action.Type == model.ActionNativeRedirect {
		q.Set("sandboxReference", ref)
	} else {
		q.Set("redirectResult", pp.payload)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExchangeNativeRedirect turns the return of a native redirect into a redirectResult.
func (s *Sandbox) ExchangeNativeRedirect(redirectData, returnQueryString string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pp, ok := s.results[redirectData]
	if !ok || pp.action.NativeRedirectData != redirectData {
		return "", apperr.Wrap(apperr.ErrProtocol, "native redirect", "unknown redirectData", ErrNotFound)
	}
	q, err := url.ParseQuery(returnQueryString)
	if err != nil || q.Get("sandboxReference") != pp.pspReference || pp.settled == nil {
		return "", apperr.New(apperr.ErrProtocol, "native redirect", "return query does not match the payment")
	}
	return pp.payload, nil
}

// Details completes a payment from the details of its action.
func (s *Sandbox) Details(id, sessionData string, details map[string]any) (PaymentOutcome, error) {
	var key string
	for _, k := range []string{"payload", "redirectResult"} {
		if v, ok := details[k].(string); ok && v != "" {
			key = v
			break
		}
	}

	s.mu.Lock()
	sess, err := s.session(id, sessionData)
	if err != nil {
		s.mu.Unlock()
		return PaymentOutcome{}, err
	}
	pp, ok := s.results[key]
	if !ok || pp.settled == nil || pp.sessionID != id || pp.payload != key {
		s.mu.Unlock()
		return PaymentOutcome{}, apperr.New(apperr.ErrProtocol, "payments/details", "details do not match a completed payment")
	}
	delete(s.results, key)
	delete(s.pending, pp.action.PaymentData)
	delete(s.redirects, pp.pspReference)
	if pp.action.NativeRedirectData != "" {
		delete(s.results, pp.action.NativeRedirectData)
	}
	outcome := pp.settled.Outcome
	out := PaymentOutcome{Session: sess.next()}
	s.mu.Unlock()

	out.ResultCode = outcome.ResultCode()
	out.Order = s.applyToOrder(pp.order, pp.request.Amount, outcome)
	return out, nil
}

// applyToOrder deducts an authorised amount from order and returns its new state.
func (s *Sandbox) applyToOrder(order *model.Order, amount model.Amount, outcome processor.Outcome) *model.OrderResponse {
	if order == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[order.OrderData]
	if !ok || o.cancelled {
		return nil
	}
	if outcome == processor.OutcomeAuthorised && o.order.RemainingAmount != nil {
		remaining := decimal.Max(o.order.RemainingAmount.Major().Sub(amount.Major()), decimal.Zero)
		r := model.AmountFromMajor(o.order.RemainingAmount.Currency, remaining)
		o.order.RemainingAmount = &r
	}
	resp := o.order
	return &resp
}

// Balance reports the sandbox gift card balance: half the session amount.
func (s *Sandbox) Balance(id, sessionData string) (model.SessionModel, model.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.session(id, sessionData)
	if err != nil {
		return model.SessionModel{}, model.Amount{}, err
	}
	half := sess.amount.Major().Div(decimal.NewFromInt(2))
	return sess.next(), model.AmountFromMajor(sess.amount.Currency, half), nil
}

// CreateOrder opens a partial-payment order for the whole session amount.
func (s *Sandbox) CreateOrder(id, sessionData string) (model.SessionModel, model.OrderResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.session(id, sessionData)
	if err != nil {
		return model.SessionModel{}, model.OrderResponse{}, err
	}
	amount, remaining := sess.amount, sess.amount
	o := &sandboxOrder{
		sessionID: id,
		order: model.OrderResponse{
			PspReference:    uuid.NewString(),
			OrderData:       uuid.NewString(),
			Amount:          &amount,
			RemainingAmount: &remaining,
		},
	}
	s.orders[o.order.OrderData] = o
	return sess.next(), o.order, nil
}

// CancelOrder cancels an order of the session.
func (s *Sandbox) CancelOrder(id, sessionData string, order model.Order) (model.SessionModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.session(id, sessionData)
	if err != nil {
		return model.SessionModel{}, err
	}
	o, ok := s.orders[order.OrderData]
	if !ok || o.sessionID != id {
		return model.SessionModel{}, apperr.Wrap(apperr.ErrProtocol, "orders/cancel", "unknown order", ErrNotFound)
	}
	o.cancelled = true
	return sess.next(), nil
}

// OrderStatus returns the remaining amount of an order.
func (s *Sandbox) OrderStatus(orderData string) (model.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderData]
	if !ok || o.order.RemainingAmount == nil {
		return model.Amount{}, apperr.Wrap(apperr.ErrProtocol, "order status", "unknown order", ErrNotFound)
	}
	return *o.order.RemainingAmount, nil
}

// DisableToken removes a stored payment method of the session.
func (s *Sandbox) DisableToken(id, sessionData, token string) (model.SessionModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.session(id, sessionData)
	if err != nil {
		return model.SessionModel{}, err
	}
	if !sess.tokens[token] {
		return model.SessionModel{}, apperr.Wrap(apperr.ErrProtocol, "disableToken", "unknown stored payment method", ErrNotFound)
	}
	delete(sess.tokens, token)
	return sess.next(), nil
}

// Payment returns the history of a payment.
func (s *Sandbox) Payment(pspReference string) (PaymentRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.payments[pspReference]
	if !ok {
		return PaymentRecord{}, false
	}
	out := *r
	out.Responses = append([]processor.Response(nil), r.Responses...)
	return out, true
}

func (s *Sandbox) record(req processor.Request, sessionID string, resp processor.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.payments[req.Reference]
	if !ok {
		r = &PaymentRecord{
			PspReference:  req.Reference,
			SessionID:     sessionID,
			PaymentMethod: req.PaymentMethod,
			Amount:        req.Amount,
		}
		s.payments[req.Reference] = r
	}
	r.ResultCode = resp.Outcome.ResultCode()
	r.Responses = append(r.Responses, resp)
	s.monitor.Record(resp)
}
