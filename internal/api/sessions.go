package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

func (c *Client) sessionCall(ctx context.Context, session model.SessionModel, action string, payload, out any) error {
	query := url.Values{"clientKey": {c.clientKey}}
	return c.do(ctx, http.MethodPost, sessionsPath+url.PathEscape(session.ID)+action, query, payload, out)
}

// SessionSetup refreshes a session and its payment methods.
func (c *Client) SessionSetup(ctx context.Context, session model.SessionModel, order *model.Order) (SessionSetupResponse, error) {
	var resp SessionSetupResponse
	err := c.sessionCall(ctx, session, "/setup", SessionSetupRequest{SessionData: session.SessionData, Order: order}, &resp)
	return resp, err
}

// SessionPayments submits a payment within a session.
func (c *Client) SessionPayments(ctx context.Context, session model.SessionModel, data model.PaymentComponentData) (SessionPaymentsResponse, error) {
	var resp SessionPaymentsResponse
	req := SessionPaymentsRequest{PaymentComponentData: data, SessionData: session.SessionData}
	err := c.sessionCall(ctx, session, "/payments", req, &resp)
	return resp, err
}

// SessionDetails submits action details within a session.
func (c *Client) SessionDetails(ctx context.Context, session model.SessionModel, data model.ActionComponentData) (SessionDetailsResponse, error) {
	var resp SessionDetailsResponse
	req := SessionDetailsRequest{SessionData: session.SessionData, PaymentData: data.PaymentData, Details: data.Details}
	err := c.sessionCall(ctx, session, "/paymentDetails", req, &resp)
	return resp, err
}

// SessionBalance checks the balance of a payment method within a session.
func (c *Client) SessionBalance(ctx context.Context, session model.SessionModel, data model.PaymentComponentData) (SessionBalanceResponse, error) {
	var resp SessionBalanceResponse
	req := SessionBalanceRequest{SessionData: session.SessionData, PaymentMethod: data.PaymentMethod, Amount: data.Amount}
	err := c.sessionCall(ctx, session, "/paymentMethodBalance", req, &resp)
	return resp, err
}

// SessionCreateOrder creates a partial-payment order within a session.
func (c *Client) SessionCreateOrder(ctx context.Context, session model.SessionModel) (SessionOrderResponse, error) {
	var resp SessionOrderResponse
	err := c.sessionCall(ctx, session, "/orders", SessionOrderRequest{SessionData: session.SessionData}, &resp)
	return resp, err
}

// SessionCancelOrder cancels a partial-payment order within a session.
func (c *Client) SessionCancelOrder(ctx context.Context, session model.SessionModel, order model.Order) (SessionCancelOrderResponse, error) {
	var resp SessionCancelOrderResponse
	req := SessionCancelOrderRequest{SessionData: session.SessionData, Order: order}
	err := c.sessionCall(ctx, session, "/orders/cancel", req, &resp)
	return resp, err
}

// SessionDisableToken removes a stored payment method within a session.
func (c *Client) SessionDisableToken(ctx context.Context, session model.SessionModel, storedPaymentMethodID string) (SessionDisableTokenResponse, error) {
	var resp SessionDisableTokenResponse
	req := SessionDisableTokenRequest{SessionData: session.SessionData, StoredPaymentMethodID: storedPaymentMethodID}
	err := c.sessionCall(ctx, session, "/disableToken", req, &resp)
	return resp, err
}
