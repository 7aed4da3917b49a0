package action

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/savedstate"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/status"
)

func newDispatcher(t *testing.T, store savedstate.Store, deps Dependencies) *Dispatcher {
	t.Helper()
	deps.Handle = newHandle(store)
	if deps.Launcher == nil {
		deps.Launcher = &recordingLauncher{}
	}
	if deps.Exchanger == nil {
		deps.Exchanger = &fakeExchanger{}
	}
	if deps.Poller == nil {
		deps.Poller, _ = newPoller(pending())
	}
	d := NewDispatcher(DefaultRegistry(), deps)
	d.Initialize(newScope(t))
	return d
}

func TestRegistry_UnknownTypeIsConfigurationError(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.Lookup(model.ActionSDK)

	assert.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.ErrorIs(t, err, apperr.ErrUnsupportedAction)
	assert.Equal(t, "configuration", apperr.Kind(err))
	_, err = r.Lookup(model.ActionVoucher)
	assert.ErrorIs(t, err, apperr.ErrUnsupportedAction)
	_, err = r.Lookup(model.ActionQRCode)
	assert.NoError(t, err)
}

func TestDispatcher_UnknownActionSurfacesOnce(t *testing.T) {
	d := newDispatcher(t, savedstate.NewMemoryStore(), Dependencies{})

	d.HandleAction(model.Action{Type: model.ActionSDK})

	assert.ErrorIs(t, receive(t, d.Errors()), apperr.ErrConfiguration)
	settle()
	assert.Equal(t, 0, d.Errors().Len())
}

func TestDispatcher_IntentBeforeAction(t *testing.T) {
	d := newDispatcher(t, savedstate.NewMemoryStore(), Dependencies{})

	d.HandleIntent(mustParse(t, "myapp://return?redirectResult=x"))

	assert.ErrorIs(t, receive(t, d.Errors()), apperr.ErrConfiguration)
}

func TestDispatcher_RoutesRedirectAndRelaysDetails(t *testing.T) {
	launcher := &recordingLauncher{}
	d := newDispatcher(t, savedstate.NewMemoryStore(), Dependencies{Launcher: launcher})

	d.HandleAction(model.Action{Type: model.ActionRedirect, URL: "https://issuer.example", PaymentData: "pd"})
	d.HandleIntent(mustParse(t, "myapp://return?redirectResult=ok"))

	got := receive(t, d.Details())
	assert.Equal(t, "ok", got.Details["redirectResult"])
	assert.Equal(t, "pd", got.PaymentData)
	assert.Equal(t, []string{"https://issuer.example"}, launcher.URLs())
}

func TestDispatcher_IntentOnPollingActionIsRejected(t *testing.T) {
	d := newDispatcher(t, savedstate.NewMemoryStore(), Dependencies{})

	d.HandleAction(model.Action{Type: model.ActionAwait, PaymentData: "pd"})
	d.HandleIntent(mustParse(t, "myapp://return?redirectResult=x"))

	assert.ErrorIs(t, receive(t, d.Errors()), apperr.ErrConfiguration)
}

func TestDispatcher_RelaysPollingOutcome(t *testing.T) {
	repo, _ := newPoller(final(model.ResultAuthorised, "await-payload"))
	d := newDispatcher(t, savedstate.NewMemoryStore(), Dependencies{Poller: repo})

	d.HandleAction(model.Action{Type: model.ActionAwait, PaymentData: "pd"})

	assert.Equal(t, "await-payload", receive(t, d.Details()).Details["payload"])
}

func TestDispatcher_RefreshStatusForwards(t *testing.T) {
	fetcher := &sequenceFetcher{results: []status.Result{pending()}}
	repo := status.NewRepository(fetcher, status.WithInterval(time.Hour))
	d := newDispatcher(t, savedstate.NewMemoryStore(), Dependencies{Poller: repo})
	d.RefreshStatus()

	d.HandleAction(model.Action{Type: model.ActionAwait, PaymentData: "pd"})
	require.Eventually(t, func() bool { return fetcher.CallCount() > 0 }, time.Second, time.Millisecond)
	before := fetcher.CallCount()

	d.RefreshStatus()

	assert.Eventually(t, func() bool { return fetcher.CallCount() > before }, time.Second, time.Millisecond)
}

func TestDispatcher_RestoresSavedAction(t *testing.T) {
	store := savedstate.NewMemoryStore()
	first := newDispatcher(t, store, Dependencies{})
	first.HandleAction(model.Action{Type: model.ActionRedirect, URL: "https://issuer.example", PaymentData: "pd-restored"})

	second := newDispatcher(t, store, Dependencies{})
	second.HandleIntent(mustParse(t, "myapp://return?redirectResult=back"))

	got := receive(t, second.Details())
	assert.Equal(t, "pd-restored", got.PaymentData)
	assert.Equal(t, "back", got.Details["redirectResult"])
}

func TestDispatcher_OnClearedIsIdempotent(t *testing.T) {
	d := newDispatcher(t, savedstate.NewMemoryStore(), Dependencies{})
	d.HandleAction(model.Action{Type: model.ActionAwait, PaymentData: "pd"})

	assert.NotPanics(t, func() {
		d.OnCleared()
		d.OnCleared()
	})
	d.HandleAction(model.Action{Type: model.ActionAwait, PaymentData: "pd"})
	settle()
	assert.Equal(t, 0, d.Errors().Len(), "a cleared dispatcher ignores new actions")
}
