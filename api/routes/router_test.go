package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/counterpos-backend/api/controllers"
	internalinventory "github.com/angelmondragon/counterpos-backend/internal/inventory"
	"github.com/angelmondragon/counterpos-backend/internal/orders"
	"github.com/angelmondragon/counterpos-backend/internal/recipes"
	"github.com/angelmondragon/counterpos-backend/internal/signals"
	"github.com/angelmondragon/counterpos-backend/internal/storesync"
	"github.com/angelmondragon/counterpos-backend/pkg/config"
	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
	"github.com/angelmondragon/counterpos-backend/pkg/enums"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubMode struct{}

func (stubMode) Current() enums.ConnectivityMode { return enums.ModeOnline }

type stubStatus struct{}

func (stubStatus) Status(context.Context) (*storesync.Status, error) {
	return &storesync.Status{Mode: enums.ModeOnline}, nil
}

type stubOrders struct {
	mu     sync.Mutex
	placed int
}

func (s *stubOrders) PlaceOrder(_ context.Context, input orders.PlaceOrderInput) (*orders.OrderSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placed++
	return &orders.OrderSummary{Order: models.Order{ID: fmt.Sprintf("ORD-2026-%06d", s.placed), UserID: input.UserID}}, nil
}

func (s *stubOrders) GetOrder(_ context.Context, id string) (*orders.OrderSummary, error) {
	return &orders.OrderSummary{Order: models.Order{ID: id}}, nil
}

func (s *stubOrders) GetSalesData(context.Context, orders.SalesWindow) ([]orders.SalesRow, error) {
	return []orders.SalesRow{}, nil
}

func (s *stubOrders) PurgeOrder(context.Context, string) error { return nil }

func (s *stubOrders) PurgeProductReferences(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

type stubInventory struct{}

func (stubInventory) GetAll(context.Context) ([]models.InventoryItem, error) {
	return []models.InventoryItem{{Name: "Milk"}}, nil
}

func (stubInventory) GetLowStock(context.Context) ([]models.InventoryItem, error) {
	return []models.InventoryItem{}, nil
}

func (stubInventory) Get(_ context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	return &models.InventoryItem{ID: id}, nil
}

func (stubInventory) Create(_ context.Context, in internalinventory.CreateInput) (*models.InventoryItem, error) {
	return &models.InventoryItem{Name: in.Name}, nil
}

func (stubInventory) Update(_ context.Context, id uuid.UUID, _ internalinventory.UpdateInput) (*models.InventoryItem, error) {
	return &models.InventoryItem{ID: id}, nil
}

func (stubInventory) Delete(context.Context, uuid.UUID) error { return nil }

func (stubInventory) Adjust(_ context.Context, id uuid.UUID, _ decimal.Decimal) (*models.InventoryItem, error) {
	return &models.InventoryItem{ID: id}, nil
}

func (stubInventory) Restock(_ context.Context, id uuid.UUID, _ decimal.Decimal) (*models.InventoryItem, error) {
	return &models.InventoryItem{ID: id}, nil
}

type stubRecipes struct{}

func (stubRecipes) IngredientsFor(context.Context, uuid.UUID) ([]recipes.Ingredient, error) {
	return []recipes.Ingredient{}, nil
}

func (stubRecipes) SetIngredientsFor(context.Context, uuid.UUID, []recipes.LineInput) ([]recipes.Ingredient, error) {
	return []recipes.Ingredient{}, nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, key string) string {
	return scope + ":" + key
}

func newTestRouter(t *testing.T, ordersSvc *stubOrders) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "router_test_total", Help: "test"}))
	cfg := &config.Config{
		App:     config.AppConfig{Env: "dev"},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	return NewRouter(RouterParams{
		Config:      cfg,
		Logger:      logger.Nop(),
		Readiness:   []controllers.ReadinessCheck{{Name: "local", Pinger: stubPinger{}, Required: true}},
		Mode:        stubMode{},
		SyncStatus:  stubStatus{},
		Views:       signals.NewHub(),
		Inventory:   stubInventory{},
		Recipes:     stubRecipes{},
		Orders:      ordersSvc,
		Idempotency: &memoryIdempotency{data: map[string]string{}},
		Gatherer:    reg,
	})
}

func TestRoutesAreMounted(t *testing.T) {
	router := newTestRouter(t, &stubOrders{})
	id := uuid.NewString()

	cases := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/health/live", "", http.StatusOK},
		{http.MethodGet, "/health/ready", "", http.StatusOK},
		{http.MethodGet, "/api/v1/orders/ORD-2026-000001", "", http.StatusOK},
		{http.MethodGet, "/api/v1/sales?from=2026-01-01", "", http.StatusOK},
		{http.MethodGet, "/api/v1/inventory", "", http.StatusOK},
		{http.MethodGet, "/api/v1/inventory/low-stock", "", http.StatusOK},
		{http.MethodGet, "/api/v1/inventory/" + id, "", http.StatusOK},
		{http.MethodPatch, "/api/v1/inventory/" + id, `{"name":"Oat milk"}`, http.StatusOK},
		{http.MethodDelete, "/api/v1/inventory/" + id, "", http.StatusNoContent},
		{http.MethodGet, "/api/v1/products/" + id + "/recipe", "", http.StatusOK},
		{http.MethodPut, "/api/v1/products/" + id + "/recipe", `{"ingredients":[]}`, http.StatusOK},
		{http.MethodGet, "/api/v1/sync/status", "", http.StatusOK},
		{http.MethodGet, "/api/v1/views", "", http.StatusOK},
		{http.MethodDelete, "/api/admin/v1/orders/ORD-2026-000001", "", http.StatusNoContent},
		{http.MethodDelete, "/api/admin/v1/products/" + id + "/order-references", "", http.StatusOK},
		{http.MethodGet, "/api/v1/unknown", "", http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, httptest.NewRequest(tc.method, tc.path, body))
			assert.Equal(t, tc.want, resp.Code, resp.Body.String())
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubOrders{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "router_test_total")
}

func TestPlaceOrderReplaysIdempotentRequest(t *testing.T) {
	svc := &stubOrders{}
	router := newTestRouter(t, svc)
	body := `{"lines":[{"product_id":"` + uuid.NewString() + `","quantity":1,"price":"150"}],"amount_paid":"200"}`

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "register-1-sale-42")
		req.Header.Set("X-User-Id", "cashier-1")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	first := send()
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := send()
	require.Equal(t, http.StatusCreated, second.Code)

	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Contains(t, first.Body.String(), `"user_id":"cashier-1"`)
	assert.Equal(t, 1, svc.placed)
	assert.NotEmpty(t, first.Header().Get("X-Request-Id"))
}
