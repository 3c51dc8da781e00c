package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
	"github.com/angelmondragon/counterpos-backend/pkg/units"
)

// thousandths scales quantities to integers at units.QuantityScale.
const thousandths = 1000

// Repository persists inventory items. Stock only moves through store-evaluated deltas.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) List(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).Order("name ASC").Find(&items).Error
	return items, err
}

// ListLowStock compares the decimal columns in the store, never formatted values.
func (r *Repository) ListLowStock(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("current_stock <= minimum_threshold").
		Order("name ASC").
		Find(&items).Error
	return items, err
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// Adjust applies current_stock = current_stock + delta in the store, never read-modify-write.
// Unknown ids return gorm.ErrRecordNotFound.
func (r *Repository) Adjust(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"current_stock": increment(r.db, "current_stock", delta),
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AdjustTx is Adjust bound to tx, for callers composing their own unit of work.
func (r *Repository) AdjustTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) error {
	return r.WithTx(tx).Adjust(ctx, id, delta)
}

// AddContainers applies number_of_containers = number_of_containers + delta.
func (r *Repository) AddContainers(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("id = ?", id).
		UpdateColumn("number_of_containers", increment(r.db, "number_of_containers", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// increment builds "column + delta" for the store's dialect. SQLite keeps numeric(14,3)
// columns as REAL, so there the sum is taken over whole thousandths and divided once, which
// always lands on the double nearest the exact decimal. Postgres adds numerics directly.
func increment(db *gorm.DB, column string, delta decimal.Decimal) clause.Expr {
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		scaled := units.Normalize(delta).Shift(units.QuantityScale).IntPart()
		return gorm.Expr(fmt.Sprintf("(ROUND(%s * %d) + ?) / %d.0", column, thousandths, thousandths), scaled)
	}
	return gorm.Expr(column+" + ?", delta)
}

func (r *Repository) Create(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// UpdateColumns writes only the named columns from item, zero values included.
func (r *Repository) UpdateColumns(ctx context.Context, item *models.InventoryItem, columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{ID: item.ID}).
		Select(columns).
		Updates(item)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the item and the recipe lines that reference it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("inventory_id = ?", id).Delete(&models.RecipeLine{}).Error; err != nil {
		return 0, err
	}
	res := tx.Where("id = ?", id).Delete(&models.InventoryItem{})
	return res.RowsAffected, res.Error
}
