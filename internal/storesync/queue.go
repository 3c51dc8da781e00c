package storesync

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
	"github.com/angelmondragon/counterpos-backend/pkg/enums"
)

// Queue is the repository over sync_queue_entries in the local cache.
type Queue struct {
	db *gorm.DB
}

func NewQueue(db *gorm.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue appends writes as one replay group.
func (q *Queue) Enqueue(tx *gorm.DB, target enums.SyncTarget, writes []Write) ([]models.SyncQueueEntry, error) {
	return q.EnqueueGroup(tx, uuid.New(), target, writes)
}

// EnqueueGroup appends writes under groupID. The group id doubles as the replay key of the
// whole group in the target store.
func (q *Queue) EnqueueGroup(tx *gorm.DB, groupID uuid.UUID, target enums.SyncTarget, writes []Write) ([]models.SyncQueueEntry, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if groupID == uuid.Nil {
		return nil, errors.New("group id required")
	}
	if len(writes) == 0 {
		return nil, nil
	}
	rows := make([]models.SyncQueueEntry, 0, len(writes))
	for _, w := range writes {
		if !w.Operation.IsValid() {
			return nil, fmt.Errorf("invalid sync operation %q for %s", w.Operation, w.Kind)
		}
		payload, err := json.Marshal(w.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", w.Kind, err)
		}
		rows = append(rows, models.SyncQueueEntry{
			GroupID:   groupID,
			Target:    target,
			Status:    enums.SyncStatusPending,
			Table:     w.Table,
			Operation: w.Operation,
			Kind:      w.Kind,
			Payload:   string(payload),
		})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FetchPending returns pending entries for target with id > afterID, oldest first.
// maxAttempts <= 0 disables the attempt filter.
func (q *Queue) FetchPending(tx *gorm.DB, target enums.SyncTarget, afterID uint64, limit, maxAttempts int) ([]models.SyncQueueEntry, error) {
	query := q.conn(tx).
		Where("target = ? AND status = ? AND id > ?", target, enums.SyncStatusPending, afterID)
	if maxAttempts > 0 {
		query = query.Where("attempt_count < ?", maxAttempts)
	}
	var rows []models.SyncQueueEntry
	err := query.Order("id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

// FetchGroup returns the pending entries of one group in queue order.
func (q *Queue) FetchGroup(tx *gorm.DB, groupID uuid.UUID) ([]models.SyncQueueEntry, error) {
	var rows []models.SyncQueueEntry
	err := q.conn(tx).
		Where("group_id = ? AND status = ?", groupID, enums.SyncStatusPending).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (q *Queue) MarkSynced(tx *gorm.DB, ids []uint64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return q.conn(tx).Model(&models.SyncQueueEntry{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"status":    enums.SyncStatusSynced,
			"synced_at": at,
		}).Error
}

func (q *Queue) MarkFailed(tx *gorm.DB, ids []uint64, cause error) error {
	if len(ids) == 0 || cause == nil {
		return nil
	}
	return q.conn(tx).Model(&models.SyncQueueEntry{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"last_error":    cause.Error(),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// RetireThrough marks pending entries for target on the given tables, up to and including
// maxID, as synced. Entries on other tables stay pending.
func (q *Queue) RetireThrough(tx *gorm.DB, target enums.SyncTarget, maxID uint64, tables []string, at time.Time) (int64, error) {
	if len(tables) == 0 {
		return 0, nil
	}
	res := q.conn(tx).Model(&models.SyncQueueEntry{}).
		Where("target = ? AND status = ? AND id <= ?", target, enums.SyncStatusPending, maxID).
		Where("table_name IN ?", tables).
		Updates(map[string]any{
			"status":    enums.SyncStatusSynced,
			"synced_at": at,
		})
	return res.RowsAffected, res.Error
}

// MaxID returns the highest queue id, zero for an empty queue.
func (q *Queue) MaxID(tx *gorm.DB) (uint64, error) {
	var maxID sql.NullInt64
	if err := q.conn(tx).Model(&models.SyncQueueEntry{}).Select("MAX(id)").Row().Scan(&maxID); err != nil {
		return 0, err
	}
	if !maxID.Valid {
		return 0, nil
	}
	return uint64(maxID.Int64), nil
}

type PendingCounts struct {
	Total  int64
	Failed int64
}

func (q *Queue) CountPending(tx *gorm.DB, target enums.SyncTarget) (PendingCounts, error) {
	var counts PendingCounts
	base := func() *gorm.DB {
		return q.conn(tx).Model(&models.SyncQueueEntry{}).
			Where("target = ? AND status = ?", target, enums.SyncStatusPending)
	}
	if err := base().Count(&counts.Total).Error; err != nil {
		return counts, err
	}
	if err := base().Where("attempt_count > 0").Count(&counts.Failed).Error; err != nil {
		return counts, err
	}
	return counts, nil
}

func (q *Queue) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

// markApplied records key in the target store. It reports false when the key was already
// applied, which makes redelivery a no-op.
func markApplied(tx *gorm.DB, key uuid.UUID, at time.Time) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.SyncAppliedEntry{Key: key, AppliedAt: at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// groupEntries splits rows into replay groups preserving queue order.
func groupEntries(rows []models.SyncQueueEntry) [][]models.SyncQueueEntry {
	var groups [][]models.SyncQueueEntry
	index := map[uuid.UUID]int{}
	for _, row := range rows {
		if i, ok := index[row.GroupID]; ok {
			groups[i] = append(groups[i], row)
			continue
		}
		index[row.GroupID] = len(groups)
		groups = append(groups, []models.SyncQueueEntry{row})
	}
	return groups
}

func entryIDs(rows []models.SyncQueueEntry) []uint64 {
	ids := make([]uint64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}
