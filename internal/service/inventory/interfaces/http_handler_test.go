package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"buyone/internal/service/inventory/application"
	"buyone/internal/service/inventory/domain/port"
	"buyone/internal/service/inventory/infrastructure/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type maxQuantityPolicy int64

func (m maxQuantityPolicy) Admit(_ context.Context, req port.AdmissionRequest) (bool, error) {
	return req.Quantity <= int64(m), nil
}

type testServer struct {
	mux    *http.ServeMux
	ledger *memory.StockLedger
	store  *memory.ReservationStore
	engine *application.ReservationService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ledger := memory.NewStockLedger()
	store := memory.NewReservationStore()
	engine := application.NewReservationService(ledger, store, application.WithAdmissionPolicy(maxQuantityPolicy(50)))
	catalog := application.NewCatalogService(ledger, nil)

	mux := http.NewServeMux()
	NewInventoryHandler(engine, catalog, time.Minute).RegisterRoutes(mux)
	return &testServer{mux: mux, ledger: ledger, store: store, engine: engine}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	var resp Response
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestReserveCommitFlow(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/products", application.CreateProductRequest{ProductID: "p-1", Name: "Mug", Quantity: 5})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := s.do(t, http.MethodPost, "/products/stock/reserve", application.ReserveRequest{ProductID: "p-1", Quantity: 3, OrderNumber: "o-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.NotEmpty(t, data["reservationId"])
	assert.NotEmpty(t, data["expiresAt"])

	rec, resp = s.do(t, http.MethodPost, "/products/stock/commit/o-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), resp.Data.(map[string]interface{})["committed"])

	rec, resp = s.do(t, http.MethodGet, "/products/p-1/stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), resp.Data.(map[string]interface{})["availableQuantity"])
}

func TestReserveErrorMapping(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.ledger.Seed(context.Background(), "p-1", 100))
	require.NoError(t, s.ledger.Seed(context.Background(), "p-low", 1))

	cases := []struct {
		name   string
		req    application.ReserveRequest
		status int
		code   string
	}{
		{"out of stock", application.ReserveRequest{ProductID: "p-low", Quantity: 2, OrderNumber: "o-1"}, http.StatusConflict, CodeOutOfStock},
		{"zero quantity", application.ReserveRequest{ProductID: "p-1", Quantity: 0, OrderNumber: "o-1"}, http.StatusBadRequest, CodeInvalidArgument},
		{"missing order", application.ReserveRequest{ProductID: "p-1", Quantity: 1}, http.StatusBadRequest, CodeInvalidArgument},
		{"unknown product", application.ReserveRequest{ProductID: "p-404", Quantity: 1, OrderNumber: "o-1"}, http.StatusNotFound, CodeProductNotFound},
		{"rejected", application.ReserveRequest{ProductID: "p-1", Quantity: 51, OrderNumber: "o-1"}, http.StatusUnprocessableEntity, CodeReservationRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, resp := s.do(t, http.MethodPost, "/products/stock/reserve", tc.req)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, resp.Code)
			assert.False(t, resp.Success)
		})
	}
	assert.Equal(t, 0, s.store.Len())
}

func TestReleaseEndpoints(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.ledger.Seed(ctx, "p-1", 10))

	res, err := s.engine.Reserve(ctx, "p-1", 4, "o-1")
	require.NoError(t, err)
	_, err = s.engine.Reserve(ctx, "p-1", 2, "o-2")
	require.NoError(t, err)
	_, err = s.engine.Reserve(ctx, "p-1", 1, "o-3")
	require.NoError(t, err)

	rec, resp := s.do(t, http.MethodPost, "/products/stock/release", application.ReleaseRequest{ReservationID: res.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["released"])

	// 重复释放是 no-op
	rec, resp = s.do(t, http.MethodPost, "/products/stock/release", application.ReleaseRequest{ReservationID: res.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, resp.Data.(map[string]interface{})["released"])

	rec, resp = s.do(t, http.MethodPost, "/products/stock/release", application.ReleaseRequest{ProductID: "p-1", Quantity: 2, OrderNumber: "o-2"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), resp.Data.(map[string]interface{})["releasedQuantity"])

	rec, _ = s.do(t, http.MethodPost, "/products/stock/release-order/o-3", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got, _ := s.ledger.Get(ctx, "p-1")
	assert.Equal(t, int64(10), got)
}

func TestCatalogEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/products", application.CreateProductRequest{ProductID: "p-1", Quantity: 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, resp := s.do(t, http.MethodPost, "/products", application.CreateProductRequest{ProductID: "p-1", Quantity: 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeProductExists, resp.Code)

	rec, _ = s.do(t, http.MethodPut, "/products/p-1/stock", application.AdjustStockRequest{Quantity: 8})
	require.Equal(t, http.StatusOK, rec.Code)
	got, _ := s.ledger.Get(context.Background(), "p-1")
	assert.Equal(t, int64(8), got)

	rec, _ = s.do(t, http.MethodGet, "/products/p-404/stock", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidBodyAndHealth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/products/stock/reserve", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	rec, _ = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
