// Package handler serves the sandbox checkout backend over echo.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/api"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/processor"
)

const (
	redirectPath = "/sandbox/redirect/"
)

// CustomValidator plugs go-playground/validator into echo.
type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// Handler holds HTTP handler dependencies.
type Handler struct {
	sandbox *Sandbox
}

// New creates a new Handler.
func New(sandbox *Sandbox) *Handler {
	return &Handler{sandbox: sandbox}
}

// RegisterRoutes registers the checkout API and the sandbox controls on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	if e.Validator == nil {
		e.Validator = NewValidator()
	}

	shopper := e.Group("/checkoutshopper")
	shopper.GET("/v1/clientKeys/:key", h.GetPublicKey)

	sessions := shopper.Group("/v1/sessions/:id", h.requireClientKey("clientKey"))
	sessions.POST("/setup", h.SessionSetup)
	sessions.POST("/payments", h.SessionPayments)
	sessions.POST("/paymentDetails", h.SessionDetails)
	sessions.POST("/paymentMethodBalance", h.SessionBalance)
	sessions.POST("/orders", h.SessionCreateOrder)
	sessions.POST("/orders/cancel", h.SessionCancelOrder)
	sessions.POST("/disableToken", h.SessionDisableToken)

	token := h.requireClientKey("token")
	shopper.POST("/services/PaymentInitiation/v1/status", h.Status, token)
	shopper.POST("/v1/nativeRedirect/redirectResult", h.NativeRedirect, token)
	shopper.POST("/v1/order/status", h.OrderStatus, token)

	e.POST("/sessions", h.CreateSession)
	e.GET(redirectPath+":ref", h.CompleteRedirect)
	e.GET("/payments/:ref", h.GetPayment)
	e.POST("/simulate/degrade", h.SimulateDegrade)
	e.POST("/simulate/batch", h.SimulateBatch)
	e.GET("/health", h.Health)
}

// requireClientKey rejects requests whose query parameter param is not a known client key.
func (h *Handler) requireClientKey(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := h.sandbox.PublicKey(c.QueryParam(param)); !ok {
				return writeError(c, http.StatusUnauthorized, "unauthorized", "invalid client key")
			}
			return next(c)
		}
	}
}

// bind decodes and validates the request body into req.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "validation failed: "+err.Error())
	}
	return nil
}

// errorBody matches the error shape the checkout client decodes.
type errorBody struct {
	Status    int    `json:"status"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	ErrorType string `json:"errorType"`
}

func writeError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, errorBody{Status: status, ErrorCode: code, Message: message, ErrorType: "validation"})
}

func writeAppError(c echo.Context, err error) error {
	status := apperr.HTTPStatus(err)
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrStaleSession):
		status = http.StatusUnprocessableEntity
	}
	slog.Warn("sandbox_request_failed", "path", c.Path(), "status", status, "error", err)
	return c.JSON(status, errorBody{Status: status, ErrorCode: apperr.Kind(err), Message: err.Error(), ErrorType: "sandbox"})
}

// createSessionRequest is the request body for POST /sessions
type createSessionRequest struct {
	Amount                 model.Amount `json:"amount" validate:"required"`
	ReturnURL              string       `json:"returnUrl" validate:"required"`
	StoredPaymentMethodIDs []string     `json:"storedPaymentMethodIds,omitempty"`
}

// CreateSession handles POST /sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sess, err := h.sandbox.CreateSession(req.Amount, req.ReturnURL, req.StoredPaymentMethodIDs)
	if err != nil {
		return writeAppError(c, err)
	}
	amount := req.Amount
	return c.JSON(http.StatusCreated, api.SessionSetupResponse{
		ID:             sess.ID,
		SessionData:    sess.SessionData,
		Amount:         &amount,
		PaymentMethods: h.sandbox.PaymentMethods(),
	})
}

// SessionSetup handles POST /checkoutshopper/v1/sessions/:id/setup
func (h *Handler) SessionSetup(c echo.Context) error {
	var req api.SessionSetupRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sess, amount, err := h.sandbox.Setup(c.Param("id"), req.SessionData, req.Order)
	if err != nil {
		return writeAppError(c, err)
	}
	return c.JSON(http.StatusOK, api.SessionSetupResponse{
		ID:             sess.ID,
		SessionData:    sess.SessionData,
		Amount:         &amount,
		PaymentMethods: h.sandbox.PaymentMethods(),
	})
}

// SessionPayments handles POST /checkoutshopper/v1/sessions/:id/payments
func (h *Handler) SessionPayments(c echo.Context) error {
	var req api.SessionPaymentsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	out, err := h.sandbox.Pay(c.Request().Context(), c.Param("id"), req.SessionData, req.PaymentComponentData)
	if err != nil {
		return writeAppError(c, err)
	}
	return c.JSON(http.StatusOK, paymentsResponse(out))
}

// SessionDetails handles POST /checkoutshopper/v1/sessions/:id/paymentDetails
func (h *Handler) SessionDetails(c echo.Context) error {
	var req api.SessionDetailsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	out, err := h.sandbox.Details(c.Param("id"), req.SessionData, req.Details)
	if err != nil {
		return writeAppError(c, err)
	}
	return c.JSON(http.StatusOK, paymentsResponse(out))
}

func paymentsResponse(out PaymentOutcome) api.SessionPaymentsResponse {
	resp := api.SessionPaymentsResponse{
		SessionData: out.Session.SessionData,
		ResultCode:  out.ResultCode,
		Action:      out.Action,
		Order:       out.Order,
	}
	if out.ResultCode.IsFinal() {
		resp.SessionResult = "sandbox-" + string(out.ResultCode)
		resp.Status = "completed"
	}
	return resp
}

// SessionBalance handles POST /checkoutshopper/v1/sessions/:id/paymentMethodBalance
func (h *Handler) SessionBalance(c echo.Context) error {
	var req api.SessionBalanceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sess, balance, err := h.sandbox.Balance(c.Param("id"), req.SessionData)
	if err != nil {
		return writeAppError(c, err)
	}
	return c.JSON(http.StatusOK, api.SessionBalanceResponse{SessionData: sess.SessionData, Balance: balance})
}

// SessionCreateOrder handles POST /checkoutshopper/v1/sessions/:id/orders
func (h *Handler) SessionCreateOrder(c echo.Context) error {
	var req api.SessionOrderRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sess, order, err := h.sandbox.CreateOrder(c.Param("id"), req.SessionData)
	if err != nil {
		return writeAppError(c, err)
	}
	return c.JSON(http.StatusOK, api.SessionOrderResponse{
		SessionData:  sess.SessionData,
		PspReference: order.PspReference,
		OrderData:    order.OrderData,
	})
}

// SessionCancelOrder handles POST /checkoutshopper/v1/sessions/:id/orders/cancel
func (h *Handler) SessionCancelOrder(c echo.Context) error {
	var req api.SessionCancelOrderRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sess, err := h.sandbox.CancelOrder(c.Param("id"), req.SessionData, req.Order)
	if err != nil {
		return writeAppError(c, err)
	}
	return c.JSON(http.StatusOK, api.SessionCancelOrderResponse{SessionData: sess.SessionData, Status: "Received"})
}

// SessionDisableToken handles POST /checkoutshopper/v1/sessions/:id/disableToken
func (h *Handler) SessionDisableToken(c echo.Context) error {
	var req api.SessionDisableTokenRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sess, err := h.sandbox.DisableToken(c.Param("id"), req.SessionData, req.StoredPaymentMethodID)
	if err != nil {
		return writeAppError(c, err)
	}
	return c.JSON(http.StatusOK, api.SessionDisableTokenResponse{SessionData: sess.SessionData})
}

// Status handles POST /checkoutshopper/services/PaymentInitiation/v1/status
func (h *Handler) Status(c echo.Context) error {
	var req api.StatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.sandbox.Status(c.Request().Context(), req.PaymentData)
	if err != nil {
		return writeAppError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// NativeRedirect handles POST /checkoutshopper/v1/nativeRedirect/redirectResult
func (h *Handler) NativeRedirect(c echo.Context) error {
	var req api.NativeRedirectRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	result, err := h.sandbox.ExchangeNativeRedirect(req.RedirectData, req.ReturnQueryString)
	if err != nil {
		return writeAppError(c, err)
	}
	return c.JSON(http.StatusOK, api.NativeRedirectResponse{RedirectResult: result})
}

// OrderStatus handles POST /checkoutshopper/v1/order/status
func (h *Handler) OrderStatus(c echo.Context) error {
	var req api.OrderStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	remaining, err := h.sandbox.OrderStatus(req.OrderData)
	if err != nil {
		return writeAppError(c, err)
	}
	return c.JSON(http.StatusOK, api.OrderStatusResponse{
		PaymentMethods:  h.sandbox.PaymentMethods(),
		RemainingAmount: remaining,
	})
}

// GetPublicKey handles GET /checkoutshopper/v1/clientKeys/:key
func (h *Handler) GetPublicKey(c echo.Context) error {
	key, ok := h.sandbox.PublicKey(c.Param("key"))
	if !ok {
		return writeError(c, http.StatusNotFound, "not_found", "unknown client key")
	}
	return c.JSON(http.StatusOK, api.PublicKeyResponse{PublicKey: key})
}

// CompleteRedirect handles GET /sandbox/redirect/:ref by sending the shopper back to
// the session's return URL.
func (h *Handler) CompleteRedirect(c echo.Context) error {
	target, err := h.sandbox.CompleteRedirect(c.Request().Context(), c.Param("ref"))
	if err != nil {
		return writeAppError(c, err)
	}
	return c.Redirect(http.StatusFound, target)
}

// GetPayment handles GET /payments/:ref
func (h *Handler) GetPayment(c echo.Context) error {
	ref := c.Param("ref")
	record, ok := h.sandbox.Payment(ref)
	if !ok {
		return writeError(c, http.StatusNotFound, "not_found", "payment not found: "+ref)
	}
	return c.JSON(http.StatusOK, record)
}

// degradeRequest is the request body for POST /simulate/degrade
type degradeRequest struct {
	ProcessorName string `json:"processor_name" validate:"required"`
	Degraded      bool   `json:"degraded"`
}

// SimulateDegrade handles POST /simulate/degrade
func (h *Handler) SimulateDegrade(c echo.Context) error {
	var req degradeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	for _, p := range h.sandbox.Processors() {
		if p.Name() != req.ProcessorName {
			continue
		}
		if mp, ok := p.(*processor.MockProcessor); ok {
			mp.SetDegraded(req.Degraded)
			slog.Info("processor_degradation_toggled",
				"processor", req.ProcessorName,
				"degraded", req.Degraded,
			)
			return c.JSON(http.StatusOK, map[string]interface{}{
				"processor": req.ProcessorName,
				"degraded":  req.Degraded,
				"message":   "degradation mode updated",
			})
		}
	}
	return writeError(c, http.StatusNotFound, "not_found", "processor not found: "+req.ProcessorName)
}

// Health handles GET /health with the routing state of every provider.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"providers": h.sandbox.Health()})
}

// batchRequest is the request body for POST /simulate/batch
type batchRequest struct {
	Count  int          `json:"count" validate:"min=1,max=1000"`
	Method string       `json:"method" validate:"required"`
	Amount model.Amount `json:"amount"`
}

// SimulateBatch handles POST /simulate/batch by sending count payments straight to
// the provider of method.
func (h *Handler) SimulateBatch(c echo.Context) error {
	var req batchRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if _, ok := processor.Select(h.sandbox.Processors(), req.Method); !ok {
		return writeError(c, http.StatusBadRequest, "unsupported_method", "no processor supports "+req.Method)
	}

	responses := make([]processor.Response, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		_, resp, err := h.sandbox.route(c.Request().Context(), "", processor.Request{
			Reference:     newReference(),
			PaymentMethod: req.Method,
			Amount:        req.Amount,
		})
		if err != nil {
			slog.Warn("batch_stopped", "method", req.Method, "completed", len(responses), "error", err)
			break
		}
		responses = append(responses, resp)
	}
	return c.JSON(http.StatusOK, summarizeBatch(responses))
}
