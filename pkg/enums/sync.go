package enums

import "fmt"

// SyncOperation is the write kind recorded on a queue entry.
type SyncOperation string

const (
	SyncInsert SyncOperation = "INSERT"
	SyncUpdate SyncOperation = "UPDATE"
	SyncDelete SyncOperation = "DELETE"
)

var validSyncOperations = []SyncOperation{SyncInsert, SyncUpdate, SyncDelete}

// IsValid reports whether the value is a known operation.
func (o SyncOperation) IsValid() bool {
	for _, candidate := range validSyncOperations {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseSyncOperation converts raw input into a SyncOperation.
func ParseSyncOperation(value string) (SyncOperation, error) {
	for _, candidate := range validSyncOperations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync operation %q", value)
}

// SyncStatus tracks queue entry progress. pending -> synced is the only transition.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
)

// IsValid reports whether the value is a known status.
func (s SyncStatus) IsValid() bool {
	return s == SyncStatusPending || s == SyncStatusSynced
}

// SyncTarget names the store a queue entry must be replayed against.
type SyncTarget string

const (
	SyncTargetRemote SyncTarget = "remote"
	SyncTargetLocal  SyncTarget = "local"
)

// IsValid reports whether the value is a known target.
func (t SyncTarget) IsValid() bool {
	return t == SyncTargetRemote || t == SyncTargetLocal
}

// ConnectivityMode is the process-wide view of the system of record.
type ConnectivityMode string

const (
	ModeOnline  ConnectivityMode = "ONLINE"
	ModeOffline ConnectivityMode = "OFFLINE"
)

// String implements fmt.Stringer.
func (m ConnectivityMode) String() string {
	return string(m)
}
