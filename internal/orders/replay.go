package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/counterpos-backend/internal/storesync"
	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
)

const (
	KindInsert        = "orders.insert"
	KindPurge         = "orders.purge"
	KindUnlinkProduct = "orders.unlink_product"
)

// InsertPayload replays an order with its items.
type InsertPayload struct {
	Order models.Order       `json:"order"`
	Items []models.OrderItem `json:"items"`
}

type PurgePayload struct {
	OrderID string `json:"order_id"`
}

type UnlinkPayload struct {
	ProductID uuid.UUID `json:"product_id"`
}

// RegisterReplayHandlers installs the order handlers on reg.
func RegisterReplayHandlers(reg *storesync.Registry, repo Repository) {
	reg.Register(KindInsert, func(ctx context.Context, tx *gorm.DB, payload json.RawMessage) error {
		var p InsertPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", KindInsert, err)
		}
		txRepo := repo.WithTx(tx)
		order := p.Order
		order.Items = nil
		if err := txRepo.CreateOrder(ctx, &order); err != nil {
			return fmt.Errorf("insert order %s: %w", order.ID, err)
		}
		return txRepo.CreateOrderItems(ctx, p.Items)
	})

	reg.Register(KindPurge, func(ctx context.Context, tx *gorm.DB, payload json.RawMessage) error {
		var p PurgePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", KindPurge, err)
		}
		_, err := repo.WithTx(tx).DeleteOrder(ctx, p.OrderID)
		return err
	})

	reg.Register(KindUnlinkProduct, func(ctx context.Context, tx *gorm.DB, payload json.RawMessage) error {
		var p UnlinkPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", KindUnlinkProduct, err)
		}
		_, err := repo.WithTx(tx).UnlinkProduct(ctx, p.ProductID)
		return err
	})
}
