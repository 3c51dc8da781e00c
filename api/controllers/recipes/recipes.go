package recipes

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/counterpos-backend/api/responses"
	"github.com/angelmondragon/counterpos-backend/api/validators"
	internalrecipes "github.com/angelmondragon/counterpos-backend/internal/recipes"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
)

type Service interface {
	IngredientsFor(ctx context.Context, productID uuid.UUID) ([]internalrecipes.Ingredient, error)
	SetIngredientsFor(ctx context.Context, productID uuid.UUID, lines []internalrecipes.LineInput) ([]internalrecipes.Ingredient, error)
}

type lineRequest struct {
	InventoryID  string          `json:"inventory_id" validate:"required,uuid"`
	QuantityUsed decimal.Decimal `json:"quantity_used" validate:"gt=0"`
}

type replaceRequest struct {
	Ingredients []lineRequest `json:"ingredients" validate:"dive"`
}

// Get returns the recipe lines of a product with ingredient names and units.
func Get(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lines, err := svc.IngredientsFor(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, lines)
	}
}

// Replace swaps the full recipe of a product. An empty list clears it.
func Replace(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req replaceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]internalrecipes.LineInput, 0, len(req.Ingredients))
		for _, line := range req.Ingredients {
			lines = append(lines, internalrecipes.LineInput{
				// validated by the uuid tag
				InventoryID:  uuid.MustParse(line.InventoryID),
				QuantityUsed: line.QuantityUsed,
			})
		}

		out, err := svc.SetIngredientsFor(r.Context(), productID, lines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
