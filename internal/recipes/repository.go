package recipes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
)

// Repository reads and replaces product recipes.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// Ingredients joins a product's recipe lines with the ingredient name and unit.
func (r *Repository) Ingredients(ctx context.Context, productID uuid.UUID) ([]Ingredient, error) {
	ingredients := make([]Ingredient, 0)
	err := r.db.WithContext(ctx).
		Table("recipe_lines").
		Select("recipe_lines.inventory_id, inventory_items.name AS inventory_name, recipe_lines.quantity_used, inventory_items.unit").
		Joins("JOIN inventory_items ON inventory_items.id = recipe_lines.inventory_id").
		Where("recipe_lines.product_id = ?", productID).
		Order("inventory_items.name ASC").
		Scan(&ingredients).Error
	return ingredients, err
}

// LinesFor returns the recipe lines of every product in ids.
func (r *Repository) LinesFor(ctx context.Context, productIDs []uuid.UUID) ([]models.RecipeLine, error) {
	var lines []models.RecipeLine
	if len(productIDs) == 0 {
		return lines, nil
	}
	err := r.db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Order("product_id, inventory_id").
		Find(&lines).Error
	return lines, err
}

// CountInventory counts how many of ids exist.
func (r *Repository) CountInventory(ctx context.Context, ids []uuid.UUID) (int64, error) {
	var count int64
	if len(ids) == 0 {
		return 0, nil
	}
	err := r.db.WithContext(ctx).Model(&models.InventoryItem{}).Where("id IN ?", ids).Count(&count).Error
	return count, err
}

// Replace swaps the product's recipe for lines. Callers provide the transaction.
func (r *Repository) Replace(ctx context.Context, productID uuid.UUID, lines []models.RecipeLine) error {
	conn := r.db.WithContext(ctx)
	if err := conn.Where("product_id = ?", productID).Delete(&models.RecipeLine{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return conn.Create(&lines).Error
}

// LinesForTx is LinesFor bound to tx, for callers composing their own unit of work.
func (r *Repository) LinesForTx(ctx context.Context, tx *gorm.DB, productIDs []uuid.UUID) ([]models.RecipeLine, error) {
	return r.WithTx(tx).LinesFor(ctx, productIDs)
}
