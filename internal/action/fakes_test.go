package action

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/api"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/savedstate"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/scope"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/status"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/stream"
)

const testInterval = 5 * time.Millisecond

// sequenceFetcher answers status calls from a script, repeating the last entry.
type sequenceFetcher struct {
	mu      sync.Mutex
	results []status.Result
	calls   int
}

func (f *sequenceFetcher) Status(ctx context.Context, paymentData string) (model.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := min(f.calls, len(f.results)-1)
	f.calls++
	return f.results[i].Response, f.results[i].Err
}

func (f *sequenceFetcher) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newPoller(results ...status.Result) (*status.Repository, *sequenceFetcher) {
	f := &sequenceFetcher{results: results}
	return status.NewRepository(f, status.WithInterval(testInterval)), f
}

func pending() status.Result {
	return status.Result{Response: model.StatusResponse{ResultCode: model.ResultPending}}
}

func final(code model.ResultCode, payload string) status.Result {
	return status.Result{Response: model.StatusResponse{ResultCode: code, Payload: payload}}
}

// recordingLauncher records launched URLs and optionally inspects saved state at
// launch time.
type recordingLauncher struct {
	mu       sync.Mutex
	urls     []string
	err      error
	onLaunch func(rawURL string)
}

func (l *recordingLauncher) Launch(rawURL string) error {
	l.mu.Lock()
	l.urls = append(l.urls, rawURL)
	l.mu.Unlock()
	if l.onLaunch != nil {
		l.onLaunch(rawURL)
	}
	return l.err
}

func (l *recordingLauncher) URLs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.urls...)
}

type fakeExchanger struct {
	mu   sync.Mutex
	reqs []api.NativeRedirectRequest
	resp api.NativeRedirectResponse
	err  error
}

func (e *fakeExchanger) NativeRedirect(ctx context.Context, req api.NativeRedirectRequest) (api.NativeRedirectResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reqs = append(e.reqs, req)
	return e.resp, e.err
}

func (e *fakeExchanger) Requests() []api.NativeRedirectRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]api.NativeRedirectRequest(nil), e.reqs...)
}

func newHandle(store savedstate.Store) *savedstate.Handle {
	return savedstate.NewHandle(store, "attempt-1")
}

func newScope(t *testing.T) *scope.Scope {
	s := scope.New(context.Background())
	t.Cleanup(func() { s.Cancel() })
	return s
}

func receive[T any](t *testing.T, q *stream.Queue[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, ok := q.Receive(ctx)
	require.True(t, ok, "timed out waiting for an event")
	return v
}

// settle gives background polling a few intervals to misbehave.
func settle() {
	time.Sleep(10 * testInterval)
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func savedAction(t *testing.T, h *savedstate.Handle) (model.Action, bool) {
	t.Helper()
	a, ok, err := savedstate.Load[model.Action](context.Background(), h, savedstate.KeyAction)
	require.NoError(t, err)
	return a, ok
}

// tokenFetcher answers status calls per paymentData and counts them. onStatus runs
// before each answer is returned.
type tokenFetcher struct {
	mu       sync.Mutex
	answers  map[string]status.Result
	calls    map[string]int
	onStatus func(paymentData string)
}

func newTokenFetcher() *tokenFetcher {
	return &tokenFetcher{answers: make(map[string]status.Result), calls: make(map[string]int)}
}

func (f *tokenFetcher) Status(ctx context.Context, paymentData string) (model.StatusResponse, error) {
	f.mu.Lock()
	f.calls[paymentData]++
	res, ok := f.answers[paymentData]
	hook := f.onStatus
	f.mu.Unlock()
	if !ok {
		res = pending()
	}
	if hook != nil {
		hook(paymentData)
	}
	return res.Response, res.Err
}

func (f *tokenFetcher) Answer(paymentData string, res status.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers[paymentData] = res
}

func (f *tokenFetcher) Calls(paymentData string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[paymentData]
}
