package recipes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalrecipes "github.com/angelmondragon/counterpos-backend/internal/recipes"
	pkgerrors "github.com/angelmondragon/counterpos-backend/pkg/errors"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
)

type stubService struct {
	lines []internalrecipes.LineInput
	err   error
}

func (s *stubService) IngredientsFor(_ context.Context, productID uuid.UUID) ([]internalrecipes.Ingredient, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []internalrecipes.Ingredient{{InventoryName: "Milk", QuantityUsed: decimal.NewFromInt(150), Unit: "ml"}}, nil
}

func (s *stubService) SetIngredientsFor(_ context.Context, productID uuid.UUID, lines []internalrecipes.LineInput) ([]internalrecipes.Ingredient, error) {
	s.lines = lines
	if s.err != nil {
		return nil, s.err
	}
	return []internalrecipes.Ingredient{}, nil
}

func withProduct(req *http.Request, id string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("productId", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestGetRecipe(t *testing.T) {
	resp := httptest.NewRecorder()
	Get(&stubService{}, logger.Nop()).ServeHTTP(resp, withProduct(httptest.NewRequest(http.MethodGet, "/", nil), uuid.NewString()))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"inventory_name":"Milk"`)

	resp = httptest.NewRecorder()
	Get(&stubService{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}, logger.Nop()).
		ServeHTTP(resp, withProduct(httptest.NewRequest(http.MethodGet, "/", nil), uuid.NewString()))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestReplaceRecipe(t *testing.T) {
	milk := uuid.New()
	svc := &stubService{}
	body := `{"ingredients":[{"inventory_id":"` + milk.String() + `","quantity_used":"150"}]}`
	resp := httptest.NewRecorder()
	Replace(svc, logger.Nop()).ServeHTTP(resp, withProduct(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body)), uuid.NewString()))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, svc.lines, 1)
	assert.Equal(t, milk, svc.lines[0].InventoryID)
	assert.True(t, svc.lines[0].QuantityUsed.Equal(decimal.NewFromInt(150)))
}

func TestReplaceRecipeEmptyClears(t *testing.T) {
	svc := &stubService{}
	resp := httptest.NewRecorder()
	Replace(svc, logger.Nop()).ServeHTTP(resp, withProduct(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"ingredients":[]}`)), uuid.NewString()))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, svc.lines)
	assert.JSONEq(t, `{"data":[]}`, resp.Body.String())
}

func TestReplaceRecipeRejectsBadInventoryID(t *testing.T) {
	svc := &stubService{}
	resp := httptest.NewRecorder()
	Replace(svc, logger.Nop()).ServeHTTP(resp, withProduct(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"ingredients":[{"inventory_id":"milk","quantity_used":1}]}`)), uuid.NewString()))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Nil(t, svc.lines)
}
