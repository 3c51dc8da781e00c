package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// NextSequence bumps and returns the counter for (prefix, year). The UPDATE row lock
// serializes concurrent callers until their transaction ends.
func (r *repository) NextSequence(ctx context.Context, prefix string, year int) (int64, error) {
	conn := r.db.WithContext(ctx)
	seed := models.OrderSequence{Prefix: prefix, Year: year}
	if err := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, err
	}
	if err := conn.Model(&models.OrderSequence{}).
		Where("prefix = ? AND year = ?", prefix, year).
		UpdateColumn("last_value", gorm.Expr("last_value + 1")).Error; err != nil {
		return 0, err
	}
	var value int64
	err := conn.Model(&models.OrderSequence{}).
		Select("last_value").
		Where("prefix = ? AND year = ?", prefix, year).
		Scan(&value).Error
	return value, err
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

func (r *repository) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	if len(ids) == 0 {
		return products, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error
	return products, err
}

// SalesData groups sold lines by product and sale-time price inside window.
func (r *repository) SalesData(ctx context.Context, window SalesWindow) ([]SalesRow, error) {
	query := r.db.WithContext(ctx).
		Table("order_items").
		Select(`order_items.product_id,
			COALESCE(products.name, '') AS product_name,
			order_items.price,
			SUM(order_items.quantity) AS volume,
			SUM(order_items.quantity * order_items.price) AS total_sales`).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Joins("LEFT JOIN products ON products.id = order_items.product_id")
	if window.From != nil {
		query = query.Where("orders.created_at >= ?", window.From.UTC())
	}
	if window.To != nil {
		query = query.Where("orders.created_at <= ?", window.To.UTC())
	}

	rows := make([]SalesRow, 0)
	err := query.
		Group("order_items.product_id, products.name, order_items.price").
		Order("product_name ASC, order_items.price ASC").
		Scan(&rows).Error
	return rows, err
}

// DeleteOrder removes the order and its items. Stock is not restored.
func (r *repository) DeleteOrder(ctx context.Context, id string) (int64, error) {
	conn := r.db.WithContext(ctx)
	if err := conn.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return 0, err
	}
	res := conn.Where("id = ?", id).Delete(&models.Order{})
	return res.RowsAffected, res.Error
}

// UnlinkProduct nulls order_items.product_id so the product can be deleted.
func (r *repository) UnlinkProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("product_id = ?", productID).
		UpdateColumn("product_id", nil)
	return res.RowsAffected, res.Error
}
