package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncAppliedEntry records a replayed queue key so redelivery is a no-op.
type SyncAppliedEntry struct {
	Key       uuid.UUID `gorm:"column:key;type:uuid;primaryKey"`
	AppliedAt time.Time `gorm:"column:applied_at;not null"`
}

func (SyncAppliedEntry) TableName() string { return "sync_applied_entries" }
