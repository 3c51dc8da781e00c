package storesync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
	"github.com/angelmondragon/counterpos-backend/pkg/enums"
)

// the snapshot reads whole tables, so it gets several remote timeouts
const pullTimeoutFactor = 6

type snapshot struct {
	categories []models.Category
	products   []models.Product
	inventory  []models.InventoryItem
	recipes    []models.RecipeLine
}

// snapshotTables are the tables a pull copies wholesale. Mirror entries on any other table,
// orders in particular, still have to be applied.
var snapshotTables = []string{
	models.Category{}.TableName(),
	models.Product{}.TableName(),
	models.InventoryItem{}.TableName(),
	models.RecipeLine{}.TableName(),
}

// Pull replaces the cached catalog, inventory and recipes with the authoritative copy and
// retires the mirror entries on those tables. Callers hold the gate exclusively.
func (w *Worker) Pull(ctx context.Context) error {
	start := time.Now()
	defer func() { w.metrics.ObserveJob("pull", time.Since(start)) }()

	d := w.dispatcher
	var snap snapshot
	err := d.remoteTx(ctx, pullTimeoutFactor*d.remoteTimeout, func(_ context.Context, tx *gorm.DB) error {
		return w.readSnapshot(tx, &snap)
	})
	if err != nil {
		return fmt.Errorf("read remote snapshot: %w", err)
	}

	retired := int64(0)
	err = d.local.WithTx(ctx, func(tx *gorm.DB) error {
		maxID, err := d.queue.MaxID(tx)
		if err != nil {
			return err
		}
		if err := w.writeSnapshot(tx, snap); err != nil {
			return err
		}
		retired, err = d.queue.RetireThrough(tx, enums.SyncTargetLocal, maxID, snapshotTables, w.now())
		return err
	})
	if err != nil {
		return fmt.Errorf("write local snapshot: %w", err)
	}

	w.logg.Info(w.logg.WithFields(ctx, map[string]any{
		"categories":      len(snap.categories),
		"products":        len(snap.products),
		"inventory_items": len(snap.inventory),
		"recipe_lines":    len(snap.recipes),
		"mirror_retired":  retired,
	}), "sync.pulled")
	return nil
}

// Refresh pulls outside a mode transition, holding requests off for the duration.
func (w *Worker) Refresh(ctx context.Context) error {
	d := w.dispatcher
	d.gate.Lock()
	defer d.gate.Unlock()
	return w.Pull(ctx)
}

func (w *Worker) readSnapshot(tx *gorm.DB, snap *snapshot) error {
	var batch []models.Category
	if err := tx.FindInBatches(&batch, w.pullBatchSize, func(*gorm.DB, int) error {
		snap.categories = append(snap.categories, batch...)
		return nil
	}).Error; err != nil {
		return fmt.Errorf("categories: %w", err)
	}

	var products []models.Product
	if err := tx.FindInBatches(&products, w.pullBatchSize, func(*gorm.DB, int) error {
		snap.products = append(snap.products, products...)
		return nil
	}).Error; err != nil {
		return fmt.Errorf("products: %w", err)
	}

	var items []models.InventoryItem
	if err := tx.FindInBatches(&items, w.pullBatchSize, func(*gorm.DB, int) error {
		snap.inventory = append(snap.inventory, items...)
		return nil
	}).Error; err != nil {
		return fmt.Errorf("inventory items: %w", err)
	}

	if err := tx.Order("product_id").Order("inventory_id").Find(&snap.recipes).Error; err != nil {
		return fmt.Errorf("recipe lines: %w", err)
	}
	return nil
}

func (w *Worker) writeSnapshot(tx *gorm.DB, snap snapshot) error {
	if err := tx.Where("1 = 1").Delete(&models.RecipeLine{}).Error; err != nil {
		return fmt.Errorf("clear recipe lines: %w", err)
	}

	// prune first so a remote row may reuse the unique name of a cache-only row
	if err := deleteMissing(tx, &models.InventoryItem{}, inventoryIDs(snap.inventory)); err != nil {
		return fmt.Errorf("prune inventory items: %w", err)
	}
	if err := deleteMissing(tx, &models.Product{}, productIDs(snap.products)); err != nil {
		return fmt.Errorf("prune products: %w", err)
	}
	if err := deleteMissing(tx, &models.Category{}, categoryIDs(snap.categories)); err != nil {
		return fmt.Errorf("prune categories: %w", err)
	}

	if err := w.upsert(tx, &snap.categories, len(snap.categories)); err != nil {
		return fmt.Errorf("upsert categories: %w", err)
	}
	if err := w.upsert(tx, &snap.products, len(snap.products)); err != nil {
		return fmt.Errorf("upsert products: %w", err)
	}
	if err := w.upsert(tx, &snap.inventory, len(snap.inventory)); err != nil {
		return fmt.Errorf("upsert inventory items: %w", err)
	}

	if len(snap.recipes) > 0 {
		if err := tx.CreateInBatches(&snap.recipes, w.pullBatchSize).Error; err != nil {
			return fmt.Errorf("insert recipe lines: %w", err)
		}
	}
	return nil
}

func (w *Worker) upsert(tx *gorm.DB, rows any, n int) error {
	if n == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(rows, w.pullBatchSize).Error
}

func deleteMissing(tx *gorm.DB, model any, keep []uuid.UUID) error {
	if len(keep) == 0 {
		return tx.Where("1 = 1").Delete(model).Error
	}
	return tx.Where("id NOT IN ?", keep).Delete(model).Error
}

func categoryIDs(rows []models.Category) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

func productIDs(rows []models.Product) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

func inventoryIDs(rows []models.InventoryItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}
