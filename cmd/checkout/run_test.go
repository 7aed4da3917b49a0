package main

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/api"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/component"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/handler"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/processor"
)

const testClientKey = "test_key"

func testEnvironment(t *testing.T, client *api.Client) *environment {
	t.Helper()
	if client == nil {
		client = api.NewClient("http://sandbox.invalid", testClientKey, nil)
	}
	return &environment{
		ctx:        context.Background(),
		client:     client,
		params:     component.Params{ClientKey: testClientKey, ConfirmationRequired: true},
		components: component.DefaultRegistry(),
		deps: component.Dependencies{
			PublicKeys: component.NewPublicKeyRepository(client),
			Encryptor:  component.TestEncryptor{},
		},
	}
}

func TestReportOrder_ListsRemainingAmountAndSupportedMethods(t *testing.T) {
	sb := handler.NewSandbox(handler.SandboxConfig{
		BaseURL:    "http://sandbox.test",
		ClientKeys: map[string]string{testClientKey: "pk-test"},
	}, []processor.Processor{
		processor.NewMockProcessor(processor.MockConfig{ProcessorName: "Direct", Methods: []string{"blik", "giftcard"}, Seed: 1}),
	})
	e := echo.New()
	handler.New(sb).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	sess, err := sb.CreateSession(model.Amount{Currency: "PLN", Value: 2000}, "nimbus-checkout://return", nil)
	require.NoError(t, err)
	_, order, err := sb.CreateOrder(sess.ID, sess.SessionData)
	require.NoError(t, err)

	env := testEnvironment(t, api.NewClient(srv.URL, testClientKey, nil))
	r, err := env.reportOrder(order)

	require.NoError(t, err)
	assert.Equal(t, order.OrderData, r.OrderData)
	assert.Equal(t, model.Amount{Currency: "PLN", Value: 2000}, r.RemainingAmount)
	assert.Equal(t, []string{"blik", "giftcard"}, r.PaymentMethods)
	assert.Equal(t, []string{"blik"}, r.Supported)
}

func TestReportOrder_UnknownOrder(t *testing.T) {
	sb := handler.NewSandbox(handler.SandboxConfig{
		BaseURL:    "http://sandbox.test",
		ClientKeys: map[string]string{testClientKey: "pk-test"},
	}, nil)
	e := echo.New()
	handler.New(sb).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	env := testEnvironment(t, api.NewClient(srv.URL, testClientKey, nil))
	_, err := env.reportOrder(model.OrderResponse{OrderData: "missing"})

	assert.Error(t, err)
}

func TestCreate_BuildsRegisteredComponents(t *testing.T) {
	env := testEnvironment(t, nil)

	blik, err := create[*component.BlikDelegate](env, model.MethodBlik, env.params)
	require.NoError(t, err)
	assert.Equal(t, model.MethodBlik, blik.PaymentMethodType())

	ach, err := create[*component.ACHDelegate](env, model.MethodACH, env.params)
	require.NoError(t, err)
	assert.Equal(t, model.MethodACH, ach.PaymentMethodType())

	stored, err := env.components.CreateStored(model.MethodBlik, "sp-1", env.params)
	require.NoError(t, err)
	assert.True(t, stored.ComponentState().Value().IsInputValid)
}

func TestCreate_RejectsMismatchedOrUnknownMethods(t *testing.T) {
	env := testEnvironment(t, nil)

	_, err := create[*component.ACHDelegate](env, model.MethodBlik, env.params)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)

	_, err = create[*component.BlikDelegate](env, model.MethodUnknown, env.params)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestEncryptorFor(t *testing.T) {
	assert.IsType(t, component.SealedBoxEncryptor{}, encryptorFor(&config.Settings{Environment: "live"}))
	assert.IsType(t, component.TestEncryptor{}, encryptorFor(&config.Settings{Environment: "test"}))
}
