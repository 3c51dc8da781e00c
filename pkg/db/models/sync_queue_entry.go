package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/counterpos-backend/pkg/enums"
)

// SyncQueueEntry is a write waiting to be replayed against the other store. Entries only
// live in the local cache. ID orders the queue; Key identifies the write across stores.
type SyncQueueEntry struct {
	ID           uint64              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Key          uuid.UUID           `gorm:"column:key;type:uuid;not null;uniqueIndex" json:"key"`
	GroupID      uuid.UUID           `gorm:"column:group_id;type:uuid;not null;index" json:"group_id"`
	Target       enums.SyncTarget    `gorm:"column:target;not null;index:idx_sync_queue_pending,priority:1" json:"target"`
	Status       enums.SyncStatus    `gorm:"column:status;not null;default:'pending';index:idx_sync_queue_pending,priority:2" json:"status"`
	Table        string              `gorm:"column:table_name;not null" json:"table_name"`
	Operation    enums.SyncOperation `gorm:"column:operation;not null" json:"operation"`
	Kind         string              `gorm:"column:kind;not null" json:"kind"`
	Payload      string              `gorm:"column:payload;type:text;not null" json:"payload"`
	AttemptCount int                 `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	LastError    *string             `gorm:"column:last_error" json:"last_error,omitempty"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	SyncedAt     *time.Time          `gorm:"column:synced_at" json:"synced_at,omitempty"`
}

func (SyncQueueEntry) TableName() string { return "sync_queue_entries" }

func (e *SyncQueueEntry) BeforeCreate(*gorm.DB) error {
	if e.Key == uuid.Nil {
		e.Key = uuid.New()
	}
	if e.Status == "" {
		e.Status = enums.SyncStatusPending
	}
	return nil
}
