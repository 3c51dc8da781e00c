package storesync

import (
	"github.com/angelmondragon/counterpos-backend/pkg/enums"
)

// Write describes one replayable change produced by a dispatched call. Payload is encoded
// as JSON when queued and handed back to the handler registered for Kind.
type Write struct {
	Table     string
	Operation enums.SyncOperation
	Kind      string
	Payload   any
}

// NewWrite is a convenience constructor used by the domain packages.
func NewWrite(table string, op enums.SyncOperation, kind string, payload any) Write {
	return Write{Table: table, Operation: op, Kind: kind, Payload: payload}
}
