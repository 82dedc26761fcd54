package interfaces

import (
	"encoding/json"
	"net/http"
	"time"

	"buyone/internal/pkg/logger"
	"buyone/internal/service/inventory/application"
	"buyone/internal/service/inventory/domain"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const maxBodyBytes = 1 << 20

// 错误码，与 HTTP 状态码一起返回给调用方
const (
	CodeOutOfStock           = "OUT_OF_STOCK"
	CodeInvalidArgument      = "INVALID_ARGUMENT"
	CodeProductNotFound      = "PRODUCT_NOT_FOUND"
	CodeReservationRejected  = "RESERVATION_REJECTED"
	CodeDuplicateReservation = "DUPLICATE_RESERVATION"
	CodeProductExists        = "PRODUCT_EXISTS"
	CodeInternal             = "INTERNAL"
)

// Response 是所有接口统一的响应体
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// InventoryHandler 封装了库存相关的 HTTP 处理器
type InventoryHandler struct {
	engine  *application.ReservationService
	catalog *application.CatalogService
	lease   time.Duration
}

func NewInventoryHandler(engine *application.ReservationService, catalog *application.CatalogService, lease time.Duration) *InventoryHandler {
	return &InventoryHandler{engine: engine, catalog: catalog, lease: lease}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /products/stock/reserve", h.handleReserve)
	mux.HandleFunc("POST /products/stock/release", h.handleRelease)
	mux.HandleFunc("POST /products/stock/commit/{orderNumber}", h.handleCommit)
	mux.HandleFunc("POST /products/stock/release-order/{orderNumber}", h.handleReleaseOrder)

	mux.HandleFunc("POST /products", h.handleCreateProduct)
	mux.HandleFunc("PUT /products/{id}/stock", h.handleAdjustStock)
	mux.HandleFunc("GET /products/{id}/stock", h.handleGetStock)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Response{Success: true, Message: "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
}

func (h *InventoryHandler) handleReserve(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req application.ReserveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.engine.Reserve(ctx, req.ProductID, req.Quantity, req.OrderNumber)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Stock reserved",
		Data: application.ReservationView{
			ReservationID: res.ID,
			ProductID:     res.ProductID,
			Quantity:      res.Quantity,
			OrderNumber:   res.OrderNumber,
			ExpiresAt:     res.CreatedAt.Add(h.lease).Format(time.RFC3339),
		},
	})
}

// handleRelease 支持按 reservationId 释放，或按 (productId, quantity, orderNumber) 释放。
func (h *InventoryHandler) handleRelease(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req application.ReleaseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.ReservationID != "" {
		removed, err := h.engine.Release(ctx, req.ReservationID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, Response{
			Success: true,
			Message: "Stock released",
			Data:    map[string]interface{}{"reservationId": req.ReservationID, "released": removed},
		})
		return
	}

	released, err := h.engine.ReleaseStock(ctx, req.ProductID, req.Quantity, req.OrderNumber)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Stock released",
		Data:    map[string]interface{}{"productId": req.ProductID, "releasedQuantity": released},
	})
}

func (h *InventoryHandler) handleCommit(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	orderNumber := r.PathValue("orderNumber")

	n, err := h.engine.CommitReservations(ctx, orderNumber)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Reservations committed",
		Data:    map[string]interface{}{"orderNumber": orderNumber, "committed": n},
	})
}

func (h *InventoryHandler) handleReleaseOrder(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	orderNumber := r.PathValue("orderNumber")

	released, err := h.engine.ReleaseOrder(ctx, orderNumber)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Order reservations released",
		Data:    map[string]interface{}{"orderNumber": orderNumber, "releasedQuantity": released},
	})
}

func (h *InventoryHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req application.CreateProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.catalog.CreateProduct(ctx, req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Product created",
		Data:    application.StockView{ProductID: req.ProductID, AvailableQuantity: req.Quantity},
	})
}

func (h *InventoryHandler) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	productID := r.PathValue("id")

	var req application.AdjustStockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.catalog.AdjustStock(ctx, productID, req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Stock adjusted",
		Data:    application.StockView{ProductID: productID, AvailableQuantity: req.Quantity},
	})
}

func (h *InventoryHandler) handleGetStock(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	productID := r.PathValue("id")

	n, err := h.catalog.GetStock(ctx, productID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "ok",
		Data:    application.StockView{ProductID: productID, AvailableQuantity: n},
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid request body", Code: CodeInvalidArgument})
		return false
	}
	return true
}

// writeError 根据错误类型返回不同的 HTTP 状态码
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := http.StatusInternalServerError, CodeInternal, "internal error"
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		status, code, message = http.StatusConflict, CodeOutOfStock, "out of stock"
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrInvalidArgument):
		status, code, message = http.StatusBadRequest, CodeInvalidArgument, err.Error()
	case errors.Is(err, domain.ErrProductNotFound):
		status, code, message = http.StatusNotFound, CodeProductNotFound, err.Error()
	case errors.Is(err, domain.ErrReservationRejected):
		status, code, message = http.StatusUnprocessableEntity, CodeReservationRejected, err.Error()
	case errors.Is(err, domain.ErrDuplicateReservation):
		status, code, message = http.StatusConflict, CodeDuplicateReservation, err.Error()
	case errors.Is(err, domain.ErrProductExists):
		status, code, message = http.StatusConflict, CodeProductExists, err.Error()
	default:
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, Response{Message: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
