package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"buyone/internal/pkg/logger"
	"buyone/internal/service/checkout/application"
	"buyone/internal/service/checkout/port"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type orderLine struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

type placeOrderRequest struct {
	OrderNumber string      `json:"orderNumber"`
	Lines       []orderLine `json:"lines"`
}

type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// CheckoutHandler 暴露下单、支付确认与取消接口
type CheckoutHandler struct {
	svc     *application.CheckoutService
	timeout time.Duration
}

func NewCheckoutHandler(svc *application.CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, timeout: timeout}
}

func (h *CheckoutHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.handlePlaceOrder)
	mux.HandleFunc("POST /orders/{orderNumber}/pay", h.handlePay)
	mux.HandleFunc("POST /orders/{orderNumber}/cancel", h.handleCancel)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{Success: true, Message: "ok"})
	})
}

func (h *CheckoutHandler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	if h.timeout > 0 {
		return context.WithTimeout(ctx, h.timeout)
	}
	return context.WithCancel(ctx)
}

func (h *CheckoutHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "Invalid request body", Code: "INVALID_ARGUMENT"})
		return
	}
	lines := make([]application.OrderLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, application.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	ids, err := h.svc.PlaceOrder(ctx, req.OrderNumber, lines)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, response{
		Success: true,
		Message: "Order placed",
		Data:    map[string]interface{}{"orderNumber": req.OrderNumber, "reservationIds": ids},
	})
}

func (h *CheckoutHandler) handlePay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.svc.ConfirmPayment(ctx, r.PathValue("orderNumber")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Payment confirmed"})
}

func (h *CheckoutHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.svc.Cancel(ctx, r.PathValue("orderNumber")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Order cancelled"})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, port.ErrOutOfStock):
		writeJSON(w, http.StatusConflict, response{Message: err.Error(), Code: "OUT_OF_STOCK"})
	case errors.Is(err, port.ErrUnknownProduct):
		writeJSON(w, http.StatusNotFound, response{Message: err.Error(), Code: "PRODUCT_NOT_FOUND"})
	case errors.Is(err, application.ErrInvalidOrder):
		writeJSON(w, http.StatusBadRequest, response{Message: err.Error(), Code: "INVALID_ARGUMENT"})
	default:
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("checkout request failed")
		writeJSON(w, http.StatusBadGateway, response{Message: "inventory unavailable", Code: "UPSTREAM"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
