package inventory

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/counterpos-backend/api/responses"
	"github.com/angelmondragon/counterpos-backend/api/validators"
	internalinventory "github.com/angelmondragon/counterpos-backend/internal/inventory"
	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
	"github.com/angelmondragon/counterpos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/counterpos-backend/pkg/errors"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
	"github.com/angelmondragon/counterpos-backend/pkg/units"
)

const maxNameLength = 120

// Service is the ledger surface the handlers depend on.
type Service interface {
	GetAll(ctx context.Context) ([]models.InventoryItem, error)
	GetLowStock(ctx context.Context) ([]models.InventoryItem, error)
	Get(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	Create(ctx context.Context, input internalinventory.CreateInput) (*models.InventoryItem, error)
	Update(ctx context.Context, id uuid.UUID, input internalinventory.UpdateInput) (*models.InventoryItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Adjust(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (*models.InventoryItem, error)
	Restock(ctx context.Context, id uuid.UUID, containers decimal.Decimal) (*models.InventoryItem, error)
}

type createRequest struct {
	Name               string              `json:"name" validate:"required"`
	CurrentStock       decimal.Decimal     `json:"current_stock" validate:"gte=0"`
	MinimumThreshold   decimal.Decimal     `json:"minimum_threshold" validate:"gte=0"`
	Unit               string              `json:"unit" validate:"required"`
	ContainerType      string              `json:"container_type"`
	NumberOfContainers decimal.NullDecimal `json:"number_of_containers"`
	ContainerQuantity  decimal.NullDecimal `json:"container_quantity"`
	SecondaryUnit      *string             `json:"secondary_unit"`
	QuantityPerUnit    decimal.NullDecimal `json:"quantity_per_unit"`
}

type updateRequest struct {
	Name               *string          `json:"name"`
	CurrentStock       *decimal.Decimal `json:"current_stock"`
	MinimumThreshold   *decimal.Decimal `json:"minimum_threshold"`
	Unit               *string          `json:"unit"`
	ContainerType      *string          `json:"container_type"`
	NumberOfContainers *decimal.Decimal `json:"number_of_containers"`
	ContainerQuantity  *decimal.Decimal `json:"container_quantity"`
	SecondaryUnit      *string          `json:"secondary_unit"`
	QuantityPerUnit    *decimal.Decimal `json:"quantity_per_unit"`
}

type adjustRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

type restockRequest struct {
	Containers decimal.Decimal `json:"containers" validate:"gt=0"`
}

// itemView adds human-scaled quantities to the stored row.
type itemView struct {
	models.InventoryItem
	StockDisplay     string `json:"stock_display"`
	ThresholdDisplay string `json:"threshold_display"`
}

func viewOf(item models.InventoryItem) itemView {
	return itemView{
		InventoryItem:    item,
		StockDisplay:     units.FormatForDisplay(item.CurrentStock, item.Unit).String(),
		ThresholdDisplay: units.FormatForDisplay(item.MinimumThreshold, item.Unit).String(),
	}
}

func viewsOf(items []models.InventoryItem) []itemView {
	out := make([]itemView, 0, len(items))
	for _, item := range items {
		out = append(out, viewOf(item))
	}
	return out
}

// List returns every ingredient sorted by name.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.GetAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewsOf(items))
	}
}

// LowStock returns ingredients at or below their minimum threshold.
func LowStock(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.GetLowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewsOf(items))
	}
}

func Detail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "inventoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewOf(*item))
	}
}

func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		containerType, err := parseContainerType(req.ContainerType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Create(r.Context(), internalinventory.CreateInput{
			Name:               validators.SanitizeString(req.Name, maxNameLength),
			CurrentStock:       req.CurrentStock,
			MinimumThreshold:   req.MinimumThreshold,
			Unit:               req.Unit,
			ContainerType:      containerType,
			NumberOfContainers: req.NumberOfContainers,
			ContainerQuantity:  req.ContainerQuantity,
			SecondaryUnit:      req.SecondaryUnit,
			QuantityPerUnit:    req.QuantityPerUnit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, viewOf(*item))
	}
}

func Update(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "inventoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalinventory.UpdateInput{
			CurrentStock:       req.CurrentStock,
			MinimumThreshold:   req.MinimumThreshold,
			Unit:               req.Unit,
			NumberOfContainers: req.NumberOfContainers,
			ContainerQuantity:  req.ContainerQuantity,
			SecondaryUnit:      req.SecondaryUnit,
			QuantityPerUnit:    req.QuantityPerUnit,
		}
		if req.Name != nil {
			name := validators.SanitizeString(*req.Name, maxNameLength)
			input.Name = &name
		}
		if req.ContainerType != nil {
			ct, err := parseContainerType(*req.ContainerType)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.ContainerType = &ct
		}

		item, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewOf(*item))
	}
}

func Delete(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "inventoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// Adjust applies a signed delta in base units, e.g. a waste correction.
func Adjust(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "inventoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req adjustRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Adjust(r.Context(), id, req.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewOf(*item))
	}
}

// Restock receives whole containers for a container-tracked ingredient.
func Restock(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "inventoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req restockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Restock(r.Context(), id, req.Containers)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewOf(*item))
	}
}

func parseContainerType(raw string) (enums.ContainerType, error) {
	if raw == "" {
		return enums.ContainerDirect, nil
	}
	ct, err := enums.ParseContainerType(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid container_type").
			WithDetails(map[string]any{"field": "container_type"})
	}
	return ct, nil
}
