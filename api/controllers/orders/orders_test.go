package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/counterpos-backend/api/middleware"
	internalorders "github.com/angelmondragon/counterpos-backend/internal/orders"
	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/counterpos-backend/pkg/errors"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
)

type stubOrdersService struct {
	place  func(ctx context.Context, input internalorders.PlaceOrderInput) (*internalorders.OrderSummary, error)
	get    func(ctx context.Context, id string) (*internalorders.OrderSummary, error)
	sales  func(ctx context.Context, window internalorders.SalesWindow) ([]internalorders.SalesRow, error)
	purge  func(ctx context.Context, id string) error
	unlink func(ctx context.Context, productID uuid.UUID) (int64, error)
}

func (s *stubOrdersService) PlaceOrder(ctx context.Context, input internalorders.PlaceOrderInput) (*internalorders.OrderSummary, error) {
	return s.place(ctx, input)
}

func (s *stubOrdersService) GetOrder(ctx context.Context, id string) (*internalorders.OrderSummary, error) {
	return s.get(ctx, id)
}

func (s *stubOrdersService) GetSalesData(ctx context.Context, window internalorders.SalesWindow) ([]internalorders.SalesRow, error) {
	return s.sales(ctx, window)
}

func (s *stubOrdersService) PurgeOrder(ctx context.Context, id string) error {
	return s.purge(ctx, id)
}

func (s *stubOrdersService) PurgeProductReferences(ctx context.Context, productID uuid.UUID) (int64, error) {
	return s.unlink(ctx, productID)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestPlaceMapsRequest(t *testing.T) {
	productID := uuid.New()
	var got internalorders.PlaceOrderInput
	svc := &stubOrdersService{
		place: func(_ context.Context, input internalorders.PlaceOrderInput) (*internalorders.OrderSummary, error) {
			got = input
			return &internalorders.OrderSummary{
				Order:      models.Order{ID: "ORD-2026-000001", Total: decimal.NewFromInt(150)},
				AmountPaid: decimal.NewFromInt(200),
				Change:     decimal.NewFromInt(50),
			}, nil
		},
	}

	body := `{"lines":[{"product_id":"` + productID.String() + `","quantity":1,"price":"150.00"}],"amount_paid":200}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), "cashier-1"))
	resp := httptest.NewRecorder()
	Place(svc, logger.Nop()).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, productID, got.Lines[0].ProductID)
	assert.Equal(t, 1, got.Lines[0].Quantity)
	assert.True(t, got.Lines[0].Price.Equal(decimal.NewFromInt(150)))
	assert.True(t, got.AmountPaid.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "cashier-1", got.UserID)

	var payload struct {
		Data struct {
			Order  models.Order    `json:"order"`
			Change decimal.Decimal `json:"change"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.Equal(t, "ORD-2026-000001", payload.Data.Order.ID)
	assert.True(t, payload.Data.Change.Equal(decimal.NewFromInt(50)))
}

func TestPlaceRejectsMalformedProductID(t *testing.T) {
	svc := &stubOrdersService{
		place: func(context.Context, internalorders.PlaceOrderInput) (*internalorders.OrderSummary, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"lines":[{"product_id":"latte","quantity":1,"price":"1"}],"amount_paid":"1"}`))
	resp := httptest.NewRecorder()
	Place(svc, logger.Nop()).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), decodeError(t, resp))
}

func TestPlaceSurfacesInsufficientPayment(t *testing.T) {
	svc := &stubOrdersService{
		place: func(context.Context, internalorders.PlaceOrderInput) (*internalorders.OrderSummary, error) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientPayment, "amount paid is less than the order total")
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"lines":[],"amount_paid":"1"}`))
	resp := httptest.NewRecorder()
	Place(svc, logger.Nop()).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeInsufficientPayment), decodeError(t, resp))
}

func TestDetailNotFound(t *testing.T) {
	svc := &stubOrdersService{
		get: func(_ context.Context, id string) (*internalorders.OrderSummary, error) {
			assert.Equal(t, "ORD-2026-000009", id)
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		},
	}
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/orders/ORD-2026-000009", nil), "orderId", "ORD-2026-000009")
	resp := httptest.NewRecorder()
	Detail(svc, logger.Nop()).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSalesParsesWindow(t *testing.T) {
	var window internalorders.SalesWindow
	svc := &stubOrdersService{
		sales: func(_ context.Context, w internalorders.SalesWindow) ([]internalorders.SalesRow, error) {
			window = w
			return []internalorders.SalesRow{{ProductName: "Latte", Volume: 3, Price: decimal.NewFromInt(150), TotalSales: decimal.NewFromInt(450)}}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales?from=2026-03-01&to=2026-03-14", nil)
	resp := httptest.NewRecorder()
	Sales(svc, logger.Nop()).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, window.From)
	require.NotNil(t, window.To)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *window.From)
	assert.Equal(t, 14, window.To.Day())
	assert.Equal(t, 23, window.To.Hour())

	bad := httptest.NewRequest(http.MethodGet, "/api/v1/sales?from=yesterday", nil)
	resp = httptest.NewRecorder()
	Sales(svc, logger.Nop()).ServeHTTP(resp, bad)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestPurge(t *testing.T) {
	svc := &stubOrdersService{
		purge: func(_ context.Context, id string) error {
			if id == "ORD-2026-000001" {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeForbidden, "order purge is disabled")
		},
	}

	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/", nil), "orderId", "ORD-2026-000001")
	resp := httptest.NewRecorder()
	Purge(svc, logger.Nop()).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	req = withURLParam(httptest.NewRequest(http.MethodDelete, "/", nil), "orderId", "ORD-2026-000002")
	resp = httptest.NewRecorder()
	Purge(svc, logger.Nop()).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestUnlinkProduct(t *testing.T) {
	productID := uuid.New()
	svc := &stubOrdersService{
		unlink: func(_ context.Context, id uuid.UUID) (int64, error) {
			assert.Equal(t, productID, id)
			return 4, nil
		},
	}
	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/", nil), "productId", productID.String())
	resp := httptest.NewRecorder()
	UnlinkProduct(svc, logger.Nop()).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"data":{"unlinked_items":4}}`, resp.Body.String())
}
