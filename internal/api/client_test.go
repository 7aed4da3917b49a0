package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "test_key", srv.Client())
}

func TestClient_Status(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, statusPath, r.URL.Path)
		assert.Equal(t, "test_key", r.URL.Query().Get("token"))

		var req StatusRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "pd-1", req.PaymentData)

		w.Write([]byte(`{"type":"complete","resultCode":"authorised","payload":"p-1"}`))
	})

	resp, err := c.Status(context.Background(), "pd-1")
	require.NoError(t, err)
	assert.Equal(t, model.ResultAuthorised, resp.ResultCode)
	assert.Equal(t, "p-1", resp.Payload)
	assert.True(t, resp.IsFinal())
}

func TestClient_HTTPErrorIsTransport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status":500,"errorCode":"905","message":"backend down"}`))
	})

	_, err := c.Status(context.Background(), "pd")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrTransport)
	assert.Contains(t, err.Error(), "backend down")
}

func TestClient_MalformedBodyIsSerialization(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"redirectResult":`))
	})

	_, err := c.NativeRedirect(context.Background(), NativeRedirectRequest{RedirectData: "rd", ReturnQueryString: "a=b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrSerialization)
}

func TestClient_UnreachableIsTransport(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "k", nil)
	_, err := c.Status(context.Background(), "pd")
	assert.ErrorIs(t, err, apperr.ErrTransport)
}

func TestClient_PublicKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, publicKeyPath+"test_key", r.URL.Path)
		w.Write([]byte(`{"publicKey":"10001|ABCDEF"}`))
	})

	key, err := c.PublicKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10001|ABCDEF", key)
}

func TestClient_EmptyPublicKeyIsProtocolError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := c.PublicKey(context.Background())
	assert.ErrorIs(t, err, apperr.ErrProtocol)
}

func TestClient_SessionPaymentsSendsSessionData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, sessionsPath+"CS123/payments", r.URL.Path)
		assert.Equal(t, "test_key", r.URL.Query().Get("clientKey"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "token-1", body["sessionData"])
		pm := body["paymentMethod"].(map[string]any)
		assert.Equal(t, "blik", pm["type"])

		w.Write([]byte(`{"sessionData":"token-2","resultCode":"Authorised"}`))
	})

	data := model.PaymentComponentData{PaymentMethod: &model.PaymentMethodDetails{Type: "blik", BlikCode: "123456"}}
	resp, err := c.SessionPayments(context.Background(), model.SessionModel{ID: "CS123", SessionData: "token-1"}, data)
	require.NoError(t, err)
	assert.Equal(t, "token-2", resp.SessionData)
	assert.Nil(t, resp.Action)
}

func TestClient_SessionDetails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, sessionsPath+"CS1/paymentDetails", r.URL.Path)

		var req SessionDetailsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sd", req.SessionData)
		assert.Equal(t, "pd", req.PaymentData)
		assert.Equal(t, "abc", req.Details["redirectResult"])

		w.Write([]byte(`{"sessionData":"sd2","resultCode":"Authorised"}`))
	})

	data := model.ActionComponentData{PaymentData: "pd", Details: map[string]any{"redirectResult": "abc"}}
	resp, err := c.SessionDetails(context.Background(), model.SessionModel{ID: "CS1", SessionData: "sd"}, data)
	require.NoError(t, err)
	assert.Equal(t, "sd2", resp.SessionData)
}

func TestClient_OrderStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"paymentMethods":[{"type":"giftcard","name":"Gift card"}],"remainingAmount":{"currency":"EUR","value":500}}`))
	})

	resp, err := c.OrderStatus(context.Background(), "od")
	require.NoError(t, err)
	require.Len(t, resp.PaymentMethods, 1)
	assert.Equal(t, int64(500), resp.RemainingAmount.Value)
}

func TestNativeRedirectResponse_Details(t *testing.T) {
	d := NativeRedirectResponse{RedirectResult: "rr"}.Details()
	assert.Equal(t, map[string]any{"redirectResult": "rr"}, d)
	assert.Empty(t, NativeRedirectResponse{}.Details())
}
