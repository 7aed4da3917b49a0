// Package api is the JSON-over-HTTPS client of the checkout backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

const (
	statusPath         = "/checkoutshopper/services/PaymentInitiation/v1/status"
	nativeRedirectPath = "/checkoutshopper/v1/nativeRedirect/redirectResult"
	publicKeyPath      = "/checkoutshopper/v1/clientKeys/"
	orderStatusPath    = "/checkoutshopper/v1/order/status"
	sessionsPath       = "/checkoutshopper/v1/sessions/"
)

// Client calls the checkout backend on behalf of one client key.
type Client struct {
	baseURL   string
	clientKey string
	http      *http.Client
}

// NewClient returns a Client for baseURL. A nil httpClient uses a client with the
// default timeout.
func NewClient(baseURL, clientKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.HTTPTimeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		clientKey: clientKey,
		http:      httpClient,
	}
}

// ClientKey returns the client key the client authenticates with.
func (c *Client) ClientKey() string {
	return c.clientKey
}

// do sends payload as JSON and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	op := method + " " + path
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return apperr.Wrap(apperr.ErrSerialization, op, "failed to marshal request", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return apperr.Wrap(apperr.ErrConfiguration, op, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return apperr.Wrap(apperr.ErrTransport, op, "failed to send request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.ErrTransport, op, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		msg := fmt.Sprintf("unexpected status %d", resp.StatusCode)
		if json.Unmarshal(respBody, &er) == nil && er.Message != "" {
			msg = fmt.Sprintf("%s: %s (%s)", msg, er.Message, er.ErrorCode)
		}
		slog.Debug("backend_error_response", "op", op, "status", resp.StatusCode)
		return apperr.New(apperr.ErrTransport, op, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return apperr.Wrap(apperr.ErrSerialization, op, "failed to parse response", err)
	}
	return nil
}

func (c *Client) tokenQuery() url.Values {
	return url.Values{"token": {c.clientKey}}
}

// Status fetches the current status of a pending action.
func (c *Client) Status(ctx context.Context, paymentData string) (model.StatusResponse, error) {
	var resp model.StatusResponse
	err := c.do(ctx, http.MethodPost, statusPath, c.tokenQuery(), StatusRequest{PaymentData: paymentData}, &resp)
	return resp, err
}

// NativeRedirect exchanges the return query string of a native redirect for its details.
func (c *Client) NativeRedirect(ctx context.Context, req NativeRedirectRequest) (NativeRedirectResponse, error) {
	var resp NativeRedirectResponse
	err := c.do(ctx, http.MethodPost, nativeRedirectPath, c.tokenQuery(), req, &resp)
	return resp, err
}

// PublicKey fetches the encryption key bound to the client key.
func (c *Client) PublicKey(ctx context.Context) (string, error) {
	var resp PublicKeyResponse
	if err := c.do(ctx, http.MethodGet, publicKeyPath+url.PathEscape(c.clientKey), nil, nil, &resp); err != nil {
		return "", err
	}
	if resp.PublicKey == "" {
		return "", apperr.New(apperr.ErrProtocol, "public key", "empty public key")
	}
	return resp.PublicKey, nil
}

// OrderStatus fetches the remaining amount and methods of a partial-payment order.
func (c *Client) OrderStatus(ctx context.Context, orderData string) (OrderStatusResponse, error) {
	var resp OrderStatusResponse
	err := c.do(ctx, http.MethodPost, orderStatusPath, c.tokenQuery(), OrderStatusRequest{OrderData: orderData}, &resp)
	return resp, err
}
