package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/action"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/api"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/component"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/savedstate"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/session"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/status"
)

const waitFor = 2 * time.Second

// scriptedService answers session calls from fixed responses and counts the calls.
type scriptedService struct {
	mu          sync.Mutex
	payments    api.SessionPaymentsResponse
	paymentsErr error
	details     api.SessionDetailsResponse
	setup       api.SessionSetupResponse
	calls       []string
	detailsReqs []model.ActionComponentData
}

func (s *scriptedService) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *scriptedService) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *scriptedService) SessionSetup(context.Context, model.SessionModel, *model.Order) (api.SessionSetupResponse, error) {
	s.record("setup")
	return s.setup, nil
}

func (s *scriptedService) SessionPayments(context.Context, model.SessionModel, model.PaymentComponentData) (api.SessionPaymentsResponse, error) {
	s.record("payments")
	return s.payments, s.paymentsErr
}

func (s *scriptedService) SessionDetails(_ context.Context, _ model.SessionModel, data model.ActionComponentData) (api.SessionDetailsResponse, error) {
	s.record("details")
	s.mu.Lock()
	s.detailsReqs = append(s.detailsReqs, data)
	s.mu.Unlock()
	return s.details, nil
}

func (s *scriptedService) SessionBalance(context.Context, model.SessionModel, model.PaymentComponentData) (api.SessionBalanceResponse, error) {
	return api.SessionBalanceResponse{}, errors.New("not scripted")
}

func (s *scriptedService) SessionCreateOrder(context.Context, model.SessionModel) (api.SessionOrderResponse, error) {
	return api.SessionOrderResponse{}, errors.New("not scripted")
}

func (s *scriptedService) SessionCancelOrder(context.Context, model.SessionModel, model.Order) (api.SessionCancelOrderResponse, error) {
	return api.SessionCancelOrderResponse{}, errors.New("not scripted")
}

func (s *scriptedService) SessionDisableToken(context.Context, model.SessionModel, string) (api.SessionDisableTokenResponse, error) {
	return api.SessionDisableTokenResponse{}, errors.New("not scripted")
}

// finalStatus always reports a final status carrying payload.
type finalStatus struct{ payload string }

func (f finalStatus) Status(context.Context, string) (model.StatusResponse, error) {
	return model.StatusResponse{ResultCode: model.ResultAuthorised, Payload: f.payload}, nil
}

// host collects callbacks.
type host struct {
	mu       sync.Mutex
	loading  []bool
	actions  []model.Action
	finished chan model.SessionPaymentResult
	errs     chan error
	methods  chan []api.PaymentMethod
}

func newHost() *host {
	return &host{
		finished: make(chan model.SessionPaymentResult, 4),
		errs:     make(chan error, 4),
		methods:  make(chan []api.PaymentMethod, 4),
	}
}

func (h *host) callbacks() Callbacks {
	return Callbacks{
		OnLoading: func(v bool) {
			h.mu.Lock()
			h.loading = append(h.loading, v)
			h.mu.Unlock()
		},
		OnAction: func(a model.Action) {
			h.mu.Lock()
			h.actions = append(h.actions, a)
			h.mu.Unlock()
		},
		OnPaymentMethodsUpdated: func(m []api.PaymentMethod, _ *model.OrderResponse) { h.methods <- m },
		OnFinished:              func(r model.SessionPaymentResult) { h.finished <- r },
		OnError:                 func(err error) { h.errs <- err },
	}
}

func (h *host) Loading() []bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bool(nil), h.loading...)
}

func (h *host) Actions() []model.Action {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.Action(nil), h.actions...)
}

func waitValue[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitFor):
		require.FailNow(t, "timed out waiting for callback")
		var zero T
		return zero
	}
}

type fixture struct {
	orch *Orchestrator
	blik *component.BlikDelegate
	svc  *scriptedService
	host *host
}

func setup(t *testing.T, svc *scriptedService, calls session.MerchantCalls) fixture {
	t.Helper()
	handle := savedstate.NewHandle(savedstate.NewMemoryStore(), "attempt-1")
	interactor, err := session.New(context.Background(), svc, handle, model.SessionModel{ID: "CS1", SessionData: "sd-0"}, calls)
	require.NoError(t, err)

	blik, err := component.NewBlikDelegate(component.Params{ClientKey: "test_key", ConfirmationRequired: true})
	require.NoError(t, err)

	poller := status.NewRepository(finalStatus{payload: "p-1"}, status.WithInterval(5*time.Millisecond))
	dispatcher := action.NewDispatcher(action.DefaultRegistry(), action.Dependencies{Handle: handle, Poller: poller})

	h := newHost()
	orch := New(interactor, blik, dispatcher, h.callbacks())
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)
	return fixture{orch: orch, blik: blik, svc: svc, host: h}
}

func (f fixture) pay(code string) {
	f.blik.UpdateInputData(func(in *component.BlikInputData) { in.BlikCode = code })
	f.blik.OnSubmit()
}

func TestCheckout_FinishedWithoutAction(t *testing.T) {
	svc := &scriptedService{payments: api.SessionPaymentsResponse{SessionData: "sd-1", ResultCode: model.ResultAuthorised}}
	f := setup(t, svc, session.MerchantCalls{})

	f.pay("777777")

	result := waitValue(t, f.host.finished)
	assert.Equal(t, "CS1", result.SessionID)
	assert.Equal(t, "sd-1", result.SessionData)
	assert.Equal(t, model.ResultAuthorised, result.ResultCode)
	assert.Equal(t, []bool{true, false}, f.host.Loading())

	attempt, ok := f.orch.CurrentAttempt()
	require.True(t, ok)
	assert.Equal(t, StatusFinished, attempt.Status)
	assert.Equal(t, model.MethodBlik, attempt.PaymentMethodType)
	require.Len(t, attempt.Steps, 1)
	assert.Equal(t, "payments", attempt.Steps[0].Call)
	assert.Equal(t, model.ResultAuthorised, attempt.ResultCode)
}

func TestCheckout_AwaitActionSubmitsDetails(t *testing.T) {
	svc := &scriptedService{
		payments: api.SessionPaymentsResponse{
			SessionData: "sd-1",
			ResultCode:  model.ResultPending,
			Action:      &model.Action{Type: model.ActionAwait, PaymentMethodType: model.MethodBlik, PaymentData: "pd-1"},
		},
		details: api.SessionDetailsResponse{SessionData: "sd-2", ResultCode: model.ResultAuthorised},
	}
	f := setup(t, svc, session.MerchantCalls{})

	f.pay("777777")

	result := waitValue(t, f.host.finished)
	assert.Equal(t, "sd-2", result.SessionData)
	assert.Equal(t, []string{"payments", "details"}, svc.Calls())

	svc.mu.Lock()
	require.Len(t, svc.detailsReqs, 1)
	assert.Equal(t, "p-1", svc.detailsReqs[0].Details[action.PayloadDetailsKey])
	assert.Equal(t, "pd-1", svc.detailsReqs[0].PaymentData)
	svc.mu.Unlock()

	require.Len(t, f.host.Actions(), 1)
	assert.Equal(t, model.ActionAwait, f.host.Actions()[0].Type)

	attempt, ok := f.orch.CurrentAttempt()
	require.True(t, ok)
	require.Len(t, attempt.Steps, 2)
	assert.Equal(t, model.ActionAwait, attempt.Steps[0].ActionType)
	assert.Equal(t, "payments/details", attempt.Steps[1].Call)
	assert.Equal(t, StatusFinished, attempt.Status)
}

func TestCheckout_ErrorUnblocksComponent(t *testing.T) {
	svc := &scriptedService{paymentsErr: apperr.New(apperr.ErrTransport, "payments", "connection refused")}
	f := setup(t, svc, session.MerchantCalls{})

	f.pay("777777")

	err := waitValue(t, f.host.errs)
	assert.ErrorIs(t, err, apperr.ErrTransport)
	assert.Equal(t, component.UIStateIdle, f.blik.UIState().Value())

	attempt, ok := f.orch.CurrentAttempt()
	require.True(t, ok)
	assert.Equal(t, StatusFailed, attempt.Status)
	assert.NotEmpty(t, attempt.Steps[0].Error)
}

func TestCheckout_MerchantTakesOver(t *testing.T) {
	svc := &scriptedService{}
	submitted := make(chan model.ComponentState, 1)
	f := setup(t, svc, session.MerchantCalls{
		OnSubmit: func(s model.ComponentState) bool {
			submitted <- s
			return true
		},
	})

	f.pay("777777")

	state := waitValue(t, submitted)
	assert.Equal(t, "777777", state.Data.PaymentMethod.BlikCode)

	require.Eventually(t, func() bool {
		a, ok := f.orch.CurrentAttempt()
		return ok && a.Status == StatusTakenOver
	}, waitFor, 5*time.Millisecond)
	assert.Empty(t, svc.Calls())
}

func TestCheckout_NotFullyPaidOrderRefreshesPaymentMethods(t *testing.T) {
	svc := &scriptedService{
		payments: api.SessionPaymentsResponse{
			SessionData: "sd-1",
			ResultCode:  model.ResultAuthorised,
			Order: &model.OrderResponse{
				PspReference:    "order-1",
				OrderData:       "od-1",
				RemainingAmount: &model.Amount{Currency: "PLN", Value: 500},
			},
		},
		setup: api.SessionSetupResponse{SessionData: "sd-2", PaymentMethods: []api.PaymentMethod{{Type: "blik", Name: "BLIK"}}},
	}
	f := setup(t, svc, session.MerchantCalls{})

	f.pay("777777")

	methods := waitValue(t, f.host.methods)
	assert.Equal(t, "blik", methods[0].Type)
	assert.Equal(t, []string{"payments", "setup"}, svc.Calls())
	assert.Equal(t, component.UIStateIdle, f.blik.UIState().Value())

	attempt, ok := f.orch.CurrentAttempt()
	require.True(t, ok)
	assert.Equal(t, StatusInProgress, attempt.Status)
	require.Len(t, attempt.Steps, 2)
	assert.Equal(t, session.KindNotFullyPaidOrder, attempt.Steps[0].Kind)
}

func TestCheckout_StopDetachesEverything(t *testing.T) {
	svc := &scriptedService{payments: api.SessionPaymentsResponse{SessionData: "sd-1", ResultCode: model.ResultAuthorised}}
	f := setup(t, svc, session.MerchantCalls{})

	f.orch.Stop()
	f.orch.Stop()

	f.pay("777777")
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, svc.Calls())
	_, ok := f.orch.CurrentAttempt()
	assert.False(t, ok)
}

func TestCheckout_ResumesSavedActionWithoutComponent(t *testing.T) {
	ctx := context.Background()
	svc := &scriptedService{details: api.SessionDetailsResponse{SessionData: "sd-2", ResultCode: model.ResultAuthorised}}
	handle := savedstate.NewHandle(savedstate.NewMemoryStore(), "attempt-1")

	_, err := session.New(ctx, svc, handle, model.SessionModel{ID: "CS1", SessionData: "sd-1"}, session.MerchantCalls{})
	require.NoError(t, err)
	saved := model.Action{Type: model.ActionAwait, PaymentMethodType: model.MethodBlik, PaymentData: "pd-1"}
	require.NoError(t, savedstate.Save(ctx, handle, savedstate.KeyAction, saved))
	require.NoError(t, savedstate.Save(ctx, handle, savedstate.KeyPaymentData, "pd-1"))

	interactor, err := session.Restore(ctx, svc, handle, session.MerchantCalls{})
	require.NoError(t, err)
	poller := status.NewRepository(finalStatus{payload: "p-9"}, status.WithInterval(5*time.Millisecond))
	dispatcher := action.NewDispatcher(action.DefaultRegistry(), action.Dependencies{Handle: handle, Poller: poller})

	h := newHost()
	orch := New(interactor, nil, dispatcher, h.callbacks())
	orch.Start(ctx)
	t.Cleanup(orch.Stop)

	result := waitValue(t, h.finished)
	assert.Equal(t, "sd-2", result.SessionData)
	assert.Equal(t, []string{"details"}, svc.Calls())

	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Len(t, svc.detailsReqs, 1)
	assert.Equal(t, "pd-1", svc.detailsReqs[0].PaymentData)
	assert.Equal(t, "p-9", svc.detailsReqs[0].Details[action.PayloadDetailsKey])
}

func TestAttemptStore_RecordUnknownAttempt(t *testing.T) {
	s := NewAttemptStore()
	assert.False(t, s.Record("missing", Step{Call: "payments"}, StatusFailed))
}

func TestAttemptStore_RecordKeepsSnapshotsIndependent(t *testing.T) {
	s := NewAttemptStore()
	s.Save(Attempt{ID: "a1", Status: StatusInProgress})
	require.True(t, s.Record("a1", Step{Call: "payments", Kind: session.KindAction}, ""))

	before, _ := s.Get("a1")
	require.True(t, s.Record("a1", Step{Call: "payments/details", ResultCode: model.ResultRefused}, StatusFinished))

	after, _ := s.Get("a1")
	assert.Len(t, before.Steps, 1)
	assert.Len(t, after.Steps, 2)
	assert.Equal(t, StatusFinished, after.Status)
	assert.Equal(t, model.ResultRefused, after.ResultCode)
}

func TestAttemptStore_ConcurrentAccess(t *testing.T) {
	store := NewAttemptStore()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("attempt-%d", n)
			store.Save(Attempt{ID: id, Status: StatusInProgress})
			store.Record(id, Step{Call: "payments"}, StatusFinished)
		}(i)
	}

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.Get(fmt.Sprintf("attempt-%d", n))
		}(i)
	}

	wg.Wait()

	for i := 0; i < 100; i++ {
		a, ok := store.Get(fmt.Sprintf("attempt-%d", i))
		assert.True(t, ok)
		assert.Equal(t, StatusFinished, a.Status)
	}
}
