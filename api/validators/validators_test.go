package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/counterpos-backend/pkg/errors"
)

type sampleBody struct {
	InventoryID string `json:"inventory_id" validate:"required,uuid"`
	Quantity    int    `json:"quantity" validate:"gt=0"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"inventory_id":"6f1c2d3e-4b5a-4c6d-8e7f-8091a2b3c4d5","quantity":2}`))
	var body sampleBody
	require.NoError(t, DecodeJSONBody(req, &body))
	assert.Equal(t, 2, body.Quantity)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"inventory_id":"nope","quantity":0}`))
	err := DecodeJSONBody(req, &sampleBody{})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid uuid", details["inventory_id"])
	assert.Equal(t, "must be greater than 0", details["quantity"])

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":1,"extra":true}`))
	assert.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &sampleBody{}), pkgerrors.CodeValidation))
}

type cartBody struct {
	Lines []sampleBody `json:"lines" validate:"dive"`
}

func TestDecodeJSONBodyReportsLinePaths(t *testing.T) {
	body := `{"lines":[{"inventory_id":"6f1c2d3e-4b5a-4c6d-8e7f-8091a2b3c4d5","quantity":1},{"inventory_id":"6f1c2d3e-4b5a-4c6d-8e7f-8091a2b3c4d5","quantity":0}]}`
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &cartBody{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"lines[1].quantity": "must be greater than 0"}, details)
}

type amountBody struct {
	Containers decimal.Decimal `json:"containers" validate:"gt=0"`
	Paid       decimal.Decimal `json:"amount_paid" validate:"gte=0"`
}

func TestDecodeJSONBodyDecimalRules(t *testing.T) {
	var ok amountBody
	require.NoError(t, DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"containers":"0.5","amount_paid":0}`)), &ok))
	assert.Equal(t, "0.5", ok.Containers.String())

	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"containers":"0","amount_paid":"-1"}`)), &amountBody{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, isMap := typed.Details().(map[string]string)
	require.True(t, isMap)
	assert.Equal(t, "must be greater than 0", details["containers"])
	assert.Equal(t, "must be at least 0", details["amount_paid"])
}

func TestDecodeJSONBodyRejectsMalformedEnvelopes(t *testing.T) {
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", nil), &sampleBody{})
	require.Error(t, err)
	assert.Equal(t, "request body is required", pkgerrors.As(err).Message())

	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("   ")), &sampleBody{})
	require.Error(t, err)
	assert.Equal(t, "request body is required", pkgerrors.As(err).Message())

	twoObjects := `{"inventory_id":"6f1c2d3e-4b5a-4c6d-8e7f-8091a2b3c4d5","quantity":1}{"quantity":2}`
	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(twoObjects)), &sampleBody{})
	require.Error(t, err)
	assert.Contains(t, pkgerrors.As(err).Message(), "single JSON object")

	huge := `{"inventory_id":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge)), &sampleBody{})
	require.Error(t, err)
	assert.Equal(t, "request body too large", pkgerrors.As(err).Message())
}

func TestParseQueryTime(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?from=2026-03-01&to=2026-03-31&at=2026-03-14T10:00:00%2B02:00&bad=march", nil)

	from, err := ParseQueryTime(req, "from", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *from)

	to, err := ParseQueryTime(req, "to", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 31, 23, 59, 59, 999999999, time.UTC), *to)

	at, err := ParseQueryTime(req, "at", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC), *at)

	missing, err := ParseQueryTime(req, "missing", false)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = ParseQueryTime(req, "bad", false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseUUIDParam(t *testing.T) {
	withParam := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("inventoryId", value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	}

	id, err := ParseUUIDParam(withParam("6f1c2d3e-4b5a-4c6d-8e7f-8091a2b3c4d5"), "inventoryId")
	require.NoError(t, err)
	assert.Equal(t, "6f1c2d3e-4b5a-4c6d-8e7f-8091a2b3c4d5", id.String())

	_, err = ParseUUIDParam(withParam("42"), "inventoryId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Whole milk", SanitizeString("  Whole milk  ", 0))
	assert.Equal(t, "Whole", SanitizeString("Whole milk", 5))
	assert.Equal(t, "Whole", SanitizeString("Whole milk", 6))
	assert.Equal(t, "Oat milk 1L", SanitizeString("Oat \t milk\n  1L", 0))
	assert.Equal(t, "Azúcar", SanitizeString("Azúcar morena", 6))
	assert.Equal(t, "Cacao", SanitizeString("Ca\x00cao", 0))
}
