package inventory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/counterpos-backend/internal/signals"
	"github.com/angelmondragon/counterpos-backend/internal/storesync"
	"github.com/angelmondragon/counterpos-backend/pkg/db"
	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
	"github.com/angelmondragon/counterpos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/counterpos-backend/pkg/errors"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
	"github.com/angelmondragon/counterpos-backend/pkg/units"
)

// CreateInput holds the validated payload to create an ingredient.
type CreateInput struct {
	Name               string
	CurrentStock       decimal.Decimal
	MinimumThreshold   decimal.Decimal
	Unit               string
	ContainerType      enums.ContainerType
	NumberOfContainers decimal.NullDecimal
	ContainerQuantity  decimal.NullDecimal
	SecondaryUnit      *string
	QuantityPerUnit    decimal.NullDecimal
}

// UpdateInput holds optional mutation values. Nil fields are left untouched.
type UpdateInput struct {
	Name               *string
	CurrentStock       *decimal.Decimal
	MinimumThreshold   *decimal.Decimal
	Unit               *string
	ContainerType      *enums.ContainerType
	NumberOfContainers *decimal.Decimal
	ContainerQuantity  *decimal.Decimal
	SecondaryUnit      *string
	QuantityPerUnit    *decimal.Decimal
}

type ServiceParams struct {
	Repository *Repository
	Dispatcher *storesync.Dispatcher
	Signals    signals.Notifier
	Logger     *logger.Logger
}

// Service is the inventory ledger.
type Service struct {
	repo       *Repository
	dispatcher *storesync.Dispatcher
	signals    signals.Notifier
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, errors.New("inventory repository required")
	}
	if params.Dispatcher == nil {
		return nil, errors.New("sync dispatcher required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Service{
		repo:       params.Repository,
		dispatcher: params.Dispatcher,
		signals:    params.Signals,
		logg:       params.Logger,
	}, nil
}

func (s *Service) GetAll(ctx context.Context) ([]models.InventoryItem, error) {
	items, err := storesync.Query(ctx, s.dispatcher, "inventory.list", func(ctx context.Context, tx *gorm.DB) ([]models.InventoryItem, error) {
		return s.repo.WithTx(tx).List(ctx)
	})
	if err != nil {
		return nil, mapError(err, "list inventory")
	}
	return items, nil
}

func (s *Service) GetLowStock(ctx context.Context) ([]models.InventoryItem, error) {
	items, err := storesync.Query(ctx, s.dispatcher, "inventory.low_stock", func(ctx context.Context, tx *gorm.DB) ([]models.InventoryItem, error) {
		return s.repo.WithTx(tx).ListLowStock(ctx)
	})
	if err != nil {
		return nil, mapError(err, "list low stock")
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	item, err := storesync.Query(ctx, s.dispatcher, "inventory.get", func(ctx context.Context, tx *gorm.DB) (*models.InventoryItem, error) {
		return s.repo.WithTx(tx).FindByID(ctx, id)
	})
	if err != nil {
		return nil, mapError(err, "load inventory item")
	}
	return item, nil
}

// Adjust applies a relative stock delta: negative consumes, positive restocks.
func (s *Service) Adjust(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (*models.InventoryItem, error) {
	delta = units.Normalize(delta)
	if delta.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must not be zero")
	}

	op := func(ctx context.Context, tx *gorm.DB) (*models.InventoryItem, []storesync.Write, error) {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Adjust(ctx, id, delta); err != nil {
			return nil, nil, err
		}
		item, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		return item, []storesync.Write{AdjustWrite(id, delta)}, nil
	}
	item, res, err := storesync.Run(ctx, s.dispatcher, KindAdjust, op, nil)
	if err != nil {
		return nil, mapError(err, "adjust inventory")
	}

	s.logg.Info(s.logg.WithFields(s.logg.WithInventoryID(ctx, id.String()), map[string]any{
		"delta": delta.String(),
		"store": res.Store,
	}), "inventory.adjusted")
	signals.Emit(ctx, s.logg, s.signals, signals.ViewInventory, signals.ViewLowStock)
	return item, nil
}

// Restock adds whole containers: containers × containerQuantity × quantityPerUnit base units.
func (s *Service) Restock(ctx context.Context, id uuid.UUID, containers decimal.Decimal) (*models.InventoryItem, error) {
	// rounded first: a count below the persisted scale would add nothing
	containers = units.Normalize(containers)
	if !containers.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "containers must be greater than zero")
	}

	op := func(ctx context.Context, tx *gorm.DB) (*models.InventoryItem, []storesync.Write, error) {
		txRepo := s.repo.WithTx(tx)
		item, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if item.ContainerType.IsDirect() {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "direct items are restocked with an adjustment")
		}
		added, err := units.ComputeTotalFromContainers(units.Known(containers), item.ContainerQuantity, item.QuantityPerUnit)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "item has incomplete container metadata").
				WithDetails(map[string]any{"inventory_id": id.String()})
		}
		added = units.Normalize(added)
		if err := txRepo.Adjust(ctx, id, added); err != nil {
			return nil, nil, err
		}
		if err := txRepo.AddContainers(ctx, id, containers); err != nil {
			return nil, nil, err
		}
		updated, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		write := storesync.NewWrite(tableName, enums.SyncUpdate, KindAdjust, AdjustPayload{
			InventoryID:     id,
			Delta:           added,
			ContainersDelta: units.Known(containers),
		})
		return updated, []storesync.Write{write}, nil
	}
	item, res, err := storesync.Run(ctx, s.dispatcher, "inventory.restock", op, nil)
	if err != nil {
		return nil, mapError(err, "restock inventory")
	}
	s.logg.Info(s.logg.WithFields(s.logg.WithInventoryID(ctx, id.String()), map[string]any{
		"containers": containers.String(),
		"store":      res.Store,
	}), "inventory.restocked")
	signals.Emit(ctx, s.logg, s.signals, signals.ViewInventory, signals.ViewLowStock)
	return item, nil
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*models.InventoryItem, error) {
	item, err := buildItem(input)
	if err != nil {
		return nil, err
	}
	item.ID = uuid.New()

	op := func(ctx context.Context, tx *gorm.DB) (*models.InventoryItem, []storesync.Write, error) {
		row := *item
		if err := s.repo.WithTx(tx).Create(ctx, &row); err != nil {
			return nil, nil, err
		}
		return &row, []storesync.Write{storesync.NewWrite(tableName, enums.SyncInsert, KindCreate, row)}, nil
	}
	created, _, err := storesync.Run(ctx, s.dispatcher, KindCreate, op, nil)
	if err != nil {
		return nil, mapError(err, "create inventory item")
	}
	signals.Emit(ctx, s.logg, s.signals, signals.ViewInventory, signals.ViewLowStock)
	return created, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.InventoryItem, error) {
	op := func(ctx context.Context, tx *gorm.DB) (*models.InventoryItem, []storesync.Write, error) {
		txRepo := s.repo.WithTx(tx)
		item, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		columns, err := planUpdate(item, input, time.Now().UTC())
		if err != nil {
			return nil, nil, err
		}
		if len(columns) == 0 {
			return item, nil, nil
		}
		if err := txRepo.UpdateColumns(ctx, item, columns); err != nil {
			return nil, nil, err
		}
		write := storesync.NewWrite(tableName, enums.SyncUpdate, KindUpdate, UpdatePayload{Item: *item, Columns: columns})
		return item, []storesync.Write{write}, nil
	}
	item, _, err := storesync.Run(ctx, s.dispatcher, KindUpdate, op, nil)
	if err != nil {
		return nil, mapError(err, "update inventory item")
	}
	signals.Emit(ctx, s.logg, s.signals, signals.ViewInventory, signals.ViewLowStock)
	return item, nil
}

// Delete removes the item after the recipe lines that reference it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	op := func(ctx context.Context, tx *gorm.DB) ([]storesync.Write, error) {
		deleted, err := s.repo.WithTx(tx).Delete(ctx, id)
		if err != nil {
			return nil, err
		}
		if deleted == 0 {
			return nil, gorm.ErrRecordNotFound
		}
		return []storesync.Write{storesync.NewWrite(tableName, enums.SyncDelete, KindDelete, DeletePayload{InventoryID: id})}, nil
	}
	if _, err := s.dispatcher.Execute(ctx, storesync.Call{Name: KindDelete, Remote: op}); err != nil {
		return mapError(err, "delete inventory item")
	}
	s.logg.Info(s.logg.WithInventoryID(ctx, id.String()), "inventory.deleted")
	signals.Emit(ctx, s.logg, s.signals, signals.ViewInventory, signals.ViewLowStock)
	return nil
}

func buildItem(input CreateInput) (*models.InventoryItem, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !units.IsKnown(input.Unit) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit is not supported").
			WithDetails(map[string]any{"unit": input.Unit})
	}
	containerType := input.ContainerType
	if containerType == "" {
		containerType = enums.ContainerDirect
	}
	if !containerType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "container type is not supported").
			WithDetails(map[string]any{"container_type": string(containerType)})
	}
	if input.CurrentStock.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "current stock must not be negative")
	}
	if input.MinimumThreshold.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum threshold must not be negative")
	}

	containers := decimal.NewFromInt(1)
	if input.NumberOfContainers.Valid {
		containers = input.NumberOfContainers.Decimal
	}
	if err := validateContainers(containers); err != nil {
		return nil, err
	}
	if err := validatePositive("container quantity", input.ContainerQuantity); err != nil {
		return nil, err
	}
	if err := validatePositive("quantity per unit", input.QuantityPerUnit); err != nil {
		return nil, err
	}

	item := &models.InventoryItem{
		Name:               name,
		CurrentStock:       units.Normalize(input.CurrentStock),
		MinimumThreshold:   units.Normalize(input.MinimumThreshold),
		Unit:               input.Unit,
		ContainerType:      containerType,
		NumberOfContainers: units.Normalize(containers),
		ContainerQuantity:  normalizeNull(input.ContainerQuantity),
		SecondaryUnit:      input.SecondaryUnit,
		QuantityPerUnit:    normalizeNull(input.QuantityPerUnit),
	}
	if !containerType.IsDirect() {
		if total, err := units.ComputeTotalFromContainers(units.Known(item.NumberOfContainers), item.ContainerQuantity, item.QuantityPerUnit); err == nil {
			item.CurrentStock = units.Normalize(total)
		}
	}
	return item, nil
}

// planUpdate applies input to item and returns the columns that changed.
//
// Container fields on a non-direct item recompute the stock. A stock edit on its own
// back-derives the container quantity instead.
func planUpdate(item *models.InventoryItem, input UpdateInput, now time.Time) ([]string, error) {
	var columns []string
	set := func(column string) { columns = append(columns, column) }

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
		}
		item.Name = name
		set("name")
	}
	if input.Unit != nil {
		if !units.IsKnown(*input.Unit) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit is not supported").
				WithDetails(map[string]any{"unit": *input.Unit})
		}
		item.Unit = *input.Unit
		set("unit")
	}
	if input.MinimumThreshold != nil {
		if input.MinimumThreshold.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum threshold must not be negative")
		}
		item.MinimumThreshold = units.Normalize(*input.MinimumThreshold)
		set("minimum_threshold")
	}
	if input.ContainerType != nil {
		if !input.ContainerType.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "container type is not supported").
				WithDetails(map[string]any{"container_type": string(*input.ContainerType)})
		}
		item.ContainerType = *input.ContainerType
		set("container_type")
	}
	if input.NumberOfContainers != nil {
		if err := validateContainers(*input.NumberOfContainers); err != nil {
			return nil, err
		}
		item.NumberOfContainers = units.Normalize(*input.NumberOfContainers)
		set("number_of_containers")
	}
	if input.ContainerQuantity != nil {
		if err := validatePositive("container quantity", units.Known(*input.ContainerQuantity)); err != nil {
			return nil, err
		}
		item.ContainerQuantity = units.Known(units.Normalize(*input.ContainerQuantity))
		set("container_quantity")
	}
	if input.SecondaryUnit != nil {
		item.SecondaryUnit = input.SecondaryUnit
		set("secondary_unit")
	}
	if input.QuantityPerUnit != nil {
		if err := validatePositive("quantity per unit", units.Known(*input.QuantityPerUnit)); err != nil {
			return nil, err
		}
		item.QuantityPerUnit = units.Known(units.Normalize(*input.QuantityPerUnit))
		set("quantity_per_unit")
	}
	if input.CurrentStock != nil && input.CurrentStock.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "current stock must not be negative")
	}

	stockChanged := input.CurrentStock != nil && !units.Normalize(*input.CurrentStock).Equal(item.CurrentStock)
	containerFields := input.ContainerType != nil || input.NumberOfContainers != nil ||
		input.ContainerQuantity != nil || input.QuantityPerUnit != nil

	switch {
	case containerFields && !item.ContainerType.IsDirect():
		total, err := units.ComputeTotalFromContainers(units.Known(item.NumberOfContainers), item.ContainerQuantity, item.QuantityPerUnit)
		switch {
		case err == nil:
			item.CurrentStock = units.Normalize(total)
			set("current_stock")
		case stockChanged:
			item.CurrentStock = units.Normalize(*input.CurrentStock)
			set("current_stock")
		}
	case stockChanged:
		item.CurrentStock = units.Normalize(*input.CurrentStock)
		set("current_stock")
		if !item.ContainerType.IsDirect() {
			perContainer, err := units.ComputeSecondaryUnitsFromStock(units.Known(item.CurrentStock), item.QuantityPerUnit, units.Known(item.NumberOfContainers))
			if err == nil {
				item.ContainerQuantity = units.Known(units.Normalize(perContainer))
				set("container_quantity")
			}
		}
	}

	if len(columns) > 0 {
		item.UpdatedAt = now
		set("updated_at")
	}
	return columns, nil
}

func validateContainers(n decimal.Decimal) error {
	if n.LessThan(decimal.NewFromInt(1)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "number of containers must be at least 1")
	}
	return nil
}

func validatePositive(field string, value decimal.NullDecimal) error {
	if value.Valid && !value.Decimal.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, field+" must be greater than zero")
	}
	return nil
}

func normalizeNull(value decimal.NullDecimal) decimal.NullDecimal {
	if !value.Valid {
		return value
	}
	return units.Known(units.Normalize(value.Decimal))
}

func mapError(err error, action string) error {
	switch {
	case err == nil:
		return nil
	case pkgerrors.As(err) != nil:
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
	case db.IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "an inventory item with this name already exists")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
	}
}
