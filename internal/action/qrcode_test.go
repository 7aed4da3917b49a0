package action

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/savedstate"
)

func TestMaxPollingDuration(t *testing.T) {
	tests := []struct {
		method string
		want   time.Duration
	}{
		{model.MethodPayNow, config.PayNowMaxPollingDuration},
		{model.MethodUPIQR, config.UPIMaxPollingDuration},
		{model.MethodPix, config.DefaultMaxPollingDuration},
		{"", config.DefaultMaxPollingDuration},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			assert.Equal(t, tt.want, MaxPollingDuration(tt.method))
		})
	}
}

func TestQRCode_ViewablePollsAndCountsDown(t *testing.T) {
	repo, _ := newPoller(pending(), pending(), final(model.ResultAuthorised, "qr-payload"))
	launcher := &recordingLauncher{}
	d := NewQRCodeDelegate(newHandle(savedstate.NewMemoryStore()), repo, launcher)
	d.Initialize(newScope(t))

	d.HandleAction(model.Action{
		Type:              model.ActionQRCode,
		PaymentMethodType: model.MethodPix,
		PaymentData:       "pd-qr",
		QRCodeData:        "000201010212",
	})

	assert.Equal(t, QRCodeViewQRCode, d.View().Value())
	timer := d.Timer().Value()
	assert.Positive(t, timer.MillisUntilFinished)
	assert.LessOrEqual(t, timer.Progress, 100)

	got := receive(t, d.Details())
	assert.Equal(t, "qr-payload", got.Details["payload"])
	assert.Equal(t, "pd-qr", got.PaymentData)
	assert.Empty(t, launcher.URLs())
	assert.Equal(t, "000201010212", d.Output().Value().QRCodeData)
}

func TestQRCode_NonViewableRedirects(t *testing.T) {
	repo, fetcher := newPoller(pending())
	launcher := &recordingLauncher{}
	d := NewQRCodeDelegate(newHandle(savedstate.NewMemoryStore()), repo, launcher)
	d.Initialize(newScope(t))

	d.HandleAction(model.Action{
		Type:              model.ActionQRCode,
		PaymentMethodType: model.MethodTwint,
		PaymentData:       "pd-twint",
		URL:               "https://pay.example/twint",
	})

	assert.Equal(t, QRCodeViewRedirect, d.View().Value())
	assert.Equal(t, []string{"https://pay.example/twint"}, launcher.URLs())
	assert.Equal(t, 0, fetcher.CallCount())

	d.HandleIntent(mustParse(t, "myapp://return?redirectResult=done"))

	got := receive(t, d.Details())
	assert.Equal(t, model.ActionComponentData{
		Details:     map[string]any{"redirectResult": "done"},
		PaymentData: "pd-twint",
	}, got)
}

func TestQRCode_TimeoutIsTerminal(t *testing.T) {
	repo, _ := newPoller(pending())
	d := NewQRCodeDelegate(newHandle(savedstate.NewMemoryStore()), repo, &recordingLauncher{})
	s := newScope(t)
	d.Initialize(s)

	// Drive the poll directly with a tiny ceiling.
	a := model.Action{Type: model.ActionQRCode, PaymentMethodType: model.MethodPix, PaymentData: "pd"}
	require.NoError(t, d.saveAction(a))
	d.poller.start(s, a.PaymentData, 3*testInterval, d.onStatus)

	assert.ErrorIs(t, receive(t, d.Errors()), apperr.ErrTimeout)
	settle()
	assert.Equal(t, 0, d.Errors().Len())
	assert.Equal(t, 0, d.Details().Len())
}

func TestQRCode_BadIntentIsReported(t *testing.T) {
	repo, _ := newPoller(pending())
	d := NewQRCodeDelegate(newHandle(savedstate.NewMemoryStore()), repo, &recordingLauncher{})
	d.Initialize(newScope(t))

	d.HandleIntent(mustParse(t, "myapp://return"))

	assert.ErrorIs(t, receive(t, d.Errors()), apperr.ErrRedirect)
}

func TestQRCode_OnClearedStopsCountdown(t *testing.T) {
	repo, _ := newPoller(pending())
	d := NewQRCodeDelegate(newHandle(savedstate.NewMemoryStore()), repo, &recordingLauncher{})
	d.Initialize(newScope(t))
	d.HandleAction(model.Action{Type: model.ActionQRCode, PaymentMethodType: model.MethodPayNow, PaymentData: "pd"})

	d.OnCleared()
	d.OnCleared()
	settle()

	before := d.Timer().Value()
	settle()
	assert.Equal(t, before, d.Timer().Value())
}
