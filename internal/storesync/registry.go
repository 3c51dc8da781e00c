package storesync

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"
)

// Handler applies one queued write inside the target store's transaction. Handlers must
// produce the same end state on either store.
type Handler func(ctx context.Context, tx *gorm.DB, payload json.RawMessage) error

type Registry struct {
	mtx      sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(kind string, handler Handler) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.handlers[kind] = handler
}

func (r *Registry) Apply(ctx context.Context, tx *gorm.DB, kind string, payload json.RawMessage) error {
	r.mtx.RLock()
	handler, ok := r.handlers[kind]
	r.mtx.RUnlock()
	if !ok {
		return fmt.Errorf("replay handler not registered for %s", kind)
	}
	return handler(ctx, tx, payload)
}

// Kinds lists the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	kinds := make([]string, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
