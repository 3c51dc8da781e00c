package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/counterpos-backend/internal/storesync"
	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
	"github.com/angelmondragon/counterpos-backend/pkg/enums"
)

const (
	tableName = "inventory_items"

	KindCreate = "inventory.create"
	KindUpdate = "inventory.update"
	KindAdjust = "inventory.adjust"
	KindDelete = "inventory.delete"
)

// AdjustPayload replays a relative stock change. ContainersDelta is set by restocks.
type AdjustPayload struct {
	InventoryID     uuid.UUID           `json:"inventory_id"`
	Delta           decimal.Decimal     `json:"delta"`
	ContainersDelta decimal.NullDecimal `json:"containers_delta"`
}

// UpdatePayload replays an edit. Only Columns are written so untouched stock is never
// overwritten with a stale absolute value.
type UpdatePayload struct {
	Item    models.InventoryItem `json:"item"`
	Columns []string             `json:"columns"`
}

type DeletePayload struct {
	InventoryID uuid.UUID `json:"inventory_id"`
}

// AdjustWrite describes a stock delta for replay on the other store.
func AdjustWrite(id uuid.UUID, delta decimal.Decimal) storesync.Write {
	return storesync.NewWrite(tableName, enums.SyncUpdate, KindAdjust, AdjustPayload{InventoryID: id, Delta: delta})
}

// RegisterReplayHandlers installs the inventory handlers on reg.
func RegisterReplayHandlers(reg *storesync.Registry, repo *Repository) {
	reg.Register(KindCreate, func(ctx context.Context, tx *gorm.DB, payload json.RawMessage) error {
		var item models.InventoryItem
		if err := json.Unmarshal(payload, &item); err != nil {
			return fmt.Errorf("decode %s: %w", KindCreate, err)
		}
		return repo.WithTx(tx).Create(ctx, &item)
	})

	reg.Register(KindUpdate, func(ctx context.Context, tx *gorm.DB, payload json.RawMessage) error {
		var p UpdatePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", KindUpdate, err)
		}
		return repo.WithTx(tx).UpdateColumns(ctx, &p.Item, p.Columns)
	})

	reg.Register(KindAdjust, func(ctx context.Context, tx *gorm.DB, payload json.RawMessage) error {
		var p AdjustPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", KindAdjust, err)
		}
		txRepo := repo.WithTx(tx)
		if err := txRepo.Adjust(ctx, p.InventoryID, p.Delta); err != nil {
			return fmt.Errorf("adjust %s: %w", p.InventoryID, err)
		}
		if p.ContainersDelta.Valid {
			return txRepo.AddContainers(ctx, p.InventoryID, p.ContainersDelta.Decimal)
		}
		return nil
	})

	reg.Register(KindDelete, func(ctx context.Context, tx *gorm.DB, payload json.RawMessage) error {
		var p DeletePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", KindDelete, err)
		}
		// already gone on the target is the desired end state
		if _, err := repo.WithTx(tx).Delete(ctx, p.InventoryID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return nil
	})
}
