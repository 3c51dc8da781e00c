package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalinventory "github.com/angelmondragon/counterpos-backend/internal/inventory"
	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
	"github.com/angelmondragon/counterpos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/counterpos-backend/pkg/errors"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
)

type stubService struct {
	items      []models.InventoryItem
	created    internalinventory.CreateInput
	updated    internalinventory.UpdateInput
	adjusted   decimal.Decimal
	restocked  decimal.Decimal
	deleted    uuid.UUID
	err        error
	lastLookup uuid.UUID
}

func (s *stubService) GetAll(context.Context) ([]models.InventoryItem, error) {
	return s.items, s.err
}

func (s *stubService) GetLowStock(context.Context) ([]models.InventoryItem, error) {
	var out []models.InventoryItem
	for _, item := range s.items {
		if item.IsLowStock() {
			out = append(out, item)
		}
	}
	return out, s.err
}

func (s *stubService) Get(_ context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	s.lastLookup = id
	if s.err != nil {
		return nil, s.err
	}
	return &models.InventoryItem{ID: id, Name: "Milk"}, nil
}

func (s *stubService) Create(_ context.Context, input internalinventory.CreateInput) (*models.InventoryItem, error) {
	s.created = input
	if s.err != nil {
		return nil, s.err
	}
	return &models.InventoryItem{ID: uuid.New(), Name: input.Name, Unit: input.Unit}, nil
}

func (s *stubService) Update(_ context.Context, id uuid.UUID, input internalinventory.UpdateInput) (*models.InventoryItem, error) {
	s.updated = input
	if s.err != nil {
		return nil, s.err
	}
	return &models.InventoryItem{ID: id}, nil
}

func (s *stubService) Delete(_ context.Context, id uuid.UUID) error {
	s.deleted = id
	return s.err
}

func (s *stubService) Adjust(_ context.Context, id uuid.UUID, delta decimal.Decimal) (*models.InventoryItem, error) {
	s.adjusted = delta
	if s.err != nil {
		return nil, s.err
	}
	return &models.InventoryItem{ID: id}, nil
}

func (s *stubService) Restock(_ context.Context, id uuid.UUID, containers decimal.Decimal) (*models.InventoryItem, error) {
	s.restocked = containers
	if s.err != nil {
		return nil, s.err
	}
	return &models.InventoryItem{ID: id}, nil
}

func withID(req *http.Request, id string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("inventoryId", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestLowStockFiltersThreshold(t *testing.T) {
	svc := &stubService{items: []models.InventoryItem{
		{Name: "Milk", CurrentStock: decimal.NewFromInt(500), MinimumThreshold: decimal.NewFromInt(500)},
		{Name: "Sugar", CurrentStock: decimal.NewFromInt(900), MinimumThreshold: decimal.NewFromInt(100)},
	}}
	resp := httptest.NewRecorder()
	LowStock(svc, logger.Nop()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/low-stock", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	var payload struct {
		Data []models.InventoryItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	require.Len(t, payload.Data, 1)
	assert.Equal(t, "Milk", payload.Data[0].Name)
}

func TestCreateMapsContainerFields(t *testing.T) {
	svc := &stubService{}
	body := `{"name":"  Whole milk ","unit":"ml","container_type":"box","number_of_containers":2,"container_quantity":"5","quantity_per_unit":1000,"minimum_threshold":"2000"}`
	resp := httptest.NewRecorder()
	Create(svc, logger.Nop()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/inventory", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "Whole milk", svc.created.Name)
	assert.Equal(t, enums.ContainerBox, svc.created.ContainerType)
	assert.True(t, svc.created.NumberOfContainers.Valid)
	assert.True(t, svc.created.ContainerQuantity.Decimal.Equal(decimal.NewFromInt(5)))
	assert.True(t, svc.created.QuantityPerUnit.Decimal.Equal(decimal.NewFromInt(1000)))
	assert.Nil(t, svc.created.SecondaryUnit)
}

func TestCreateDefaultsToDirect(t *testing.T) {
	svc := &stubService{}
	resp := httptest.NewRecorder()
	Create(svc, logger.Nop()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/inventory", strings.NewReader(`{"name":"Sugar","unit":"g","current_stock":5000}`)))

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, enums.ContainerDirect, svc.created.ContainerType)
	assert.False(t, svc.created.NumberOfContainers.Valid)
}

func TestCreateRejectsUnknownContainerType(t *testing.T) {
	svc := &stubService{}
	resp := httptest.NewRecorder()
	Create(svc, logger.Nop()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/inventory", strings.NewReader(`{"name":"Sugar","unit":"g","container_type":"crate"}`)))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, svc.created.Name)
}

func TestUpdatePassesOnlyProvidedFields(t *testing.T) {
	svc := &stubService{}
	id := uuid.New()
	req := withID(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"current_stock":"4700","container_type":"pack"}`)), id.String())
	resp := httptest.NewRecorder()
	Update(svc, logger.Nop()).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, svc.updated.CurrentStock)
	assert.True(t, svc.updated.CurrentStock.Equal(decimal.NewFromInt(4700)))
	require.NotNil(t, svc.updated.ContainerType)
	assert.Equal(t, enums.ContainerPack, *svc.updated.ContainerType)
	assert.Nil(t, svc.updated.Name)
	assert.Nil(t, svc.updated.MinimumThreshold)
}

func TestAdjustAndRestock(t *testing.T) {
	svc := &stubService{}
	id := uuid.New().String()

	resp := httptest.NewRecorder()
	Adjust(svc, logger.Nop()).ServeHTTP(resp, withID(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"delta":"-150.5"}`)), id))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "-150.5", svc.adjusted.String())

	resp = httptest.NewRecorder()
	Restock(svc, logger.Nop()).ServeHTTP(resp, withID(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"containers":3}`)), id))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "3", svc.restocked.String())
}

func TestDeleteAndNotFound(t *testing.T) {
	svc := &stubService{}
	id := uuid.New()

	resp := httptest.NewRecorder()
	Delete(svc, logger.Nop()).ServeHTTP(resp, withID(httptest.NewRequest(http.MethodDelete, "/", nil), id.String()))
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, id, svc.deleted)

	svc.err = pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
	resp = httptest.NewRecorder()
	Detail(svc, logger.Nop()).ServeHTTP(resp, withID(httptest.NewRequest(http.MethodGet, "/", nil), id.String()))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = httptest.NewRecorder()
	Detail(svc, logger.Nop()).ServeHTTP(resp, withID(httptest.NewRequest(http.MethodGet, "/", nil), "milk"))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListAddsDisplayQuantities(t *testing.T) {
	svc := &stubService{items: []models.InventoryItem{
		{Name: "Milk", Unit: "ml", CurrentStock: decimal.NewFromInt(2500), MinimumThreshold: decimal.NewFromInt(500)},
	}}
	resp := httptest.NewRecorder()
	List(svc, logger.Nop()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	var payload struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	require.Len(t, payload.Data, 1)
	assert.Equal(t, "Milk", payload.Data[0]["name"])
	assert.Equal(t, "2.5 L", payload.Data[0]["stock_display"])
	assert.Equal(t, "500 ml", payload.Data[0]["threshold_display"])
}
