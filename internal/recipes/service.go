// Package recipes resolves which ingredients, and how much of each, a product consumes.
package recipes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/counterpos-backend/internal/storesync"
	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
	"github.com/angelmondragon/counterpos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/counterpos-backend/pkg/errors"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
	"github.com/angelmondragon/counterpos-backend/pkg/units"
)

// Ingredient is one resolved recipe line.
type Ingredient struct {
	InventoryID   uuid.UUID       `json:"inventory_id"`
	InventoryName string          `json:"inventory_name"`
	QuantityUsed  decimal.Decimal `json:"quantity_used"`
	Unit          string          `json:"unit"`
}

// LineInput is a requested recipe line.
type LineInput struct {
	InventoryID  uuid.UUID
	QuantityUsed decimal.Decimal
}

type ServiceParams struct {
	Repository *Repository
	Dispatcher *storesync.Dispatcher
	Logger     *logger.Logger
}

type Service struct {
	repo       *Repository
	dispatcher *storesync.Dispatcher
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, errors.New("recipe repository required")
	}
	if params.Dispatcher == nil {
		return nil, errors.New("sync dispatcher required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Service{repo: params.Repository, dispatcher: params.Dispatcher, logg: params.Logger}, nil
}

// IngredientsFor returns the product's recipe. A product without one yields an empty slice.
func (s *Service) IngredientsFor(ctx context.Context, productID uuid.UUID) ([]Ingredient, error) {
	ingredients, err := storesync.Query(ctx, s.dispatcher, "recipes.get", func(ctx context.Context, tx *gorm.DB) ([]Ingredient, error) {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindProduct(ctx, productID); err != nil {
			return nil, err
		}
		return repo.Ingredients(ctx, productID)
	})
	if err != nil {
		return nil, mapError(err, "load recipe")
	}
	return ingredients, nil
}

// SetIngredientsFor replaces the product's recipe with lines.
func (s *Service) SetIngredientsFor(ctx context.Context, productID uuid.UUID, lines []LineInput) ([]Ingredient, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	op := func(ctx context.Context, tx *gorm.DB) ([]Ingredient, []storesync.Write, error) {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindProduct(ctx, productID)
		if err != nil {
			return nil, nil, err
		}

		ids := make([]uuid.UUID, 0, len(lines))
		rows := make([]models.RecipeLine, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.InventoryID)
			rows = append(rows, models.RecipeLine{
				ProductID:    product.ID,
				InventoryID:  line.InventoryID,
				QuantityUsed: units.Normalize(line.QuantityUsed),
				Size:         product.Size,
			})
		}
		found, err := repo.CountInventory(ctx, ids)
		if err != nil {
			return nil, nil, err
		}
		if found != int64(len(ids)) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "recipe references an unknown ingredient")
		}

		if err := repo.Replace(ctx, product.ID, rows); err != nil {
			return nil, nil, err
		}
		ingredients, err := repo.Ingredients(ctx, product.ID)
		if err != nil {
			return nil, nil, err
		}
		write := storesync.NewWrite("recipe_lines", enums.SyncUpdate, KindReplace, ReplacePayload{ProductID: product.ID, Lines: rows})
		return ingredients, []storesync.Write{write}, nil
	}

	ingredients, res, err := storesync.Run(ctx, s.dispatcher, KindReplace, op, nil)
	if err != nil {
		return nil, mapError(err, "replace recipe")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"product_id": productID.String(),
		"lines":      len(lines),
		"store":      res.Store,
	}), "recipe.replaced")
	return ingredients, nil
}

func validateLines(lines []LineInput) error {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for i, line := range lines {
		if line.InventoryID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "ingredient id is required").
				WithDetails(map[string]any{"line": i})
		}
		if !line.QuantityUsed.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity used must be greater than zero").
				WithDetails(map[string]any{"line": i})
		}
		if _, dup := seen[line.InventoryID]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "ingredient listed more than once").
				WithDetails(map[string]any{"inventory_id": line.InventoryID.String()})
		}
		seen[line.InventoryID] = struct{}{}
	}
	return nil
}

func mapError(err error, action string) error {
	switch {
	case pkgerrors.As(err) != nil:
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("recipes: %s", action))
	}
}
