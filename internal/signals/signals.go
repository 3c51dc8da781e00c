// Package signals tells view consumers that cached data changed. Every invalidation bumps a
// per-view version; clients compare versions and refetch.
package signals

import (
	"context"
	"sync"

	"github.com/angelmondragon/counterpos-backend/pkg/logger"
)

type View string

const (
	ViewInventory View = "inventory"
	ViewLowStock  View = "low_stock"
	ViewSales     View = "sales"
)

// AllViews lists every view in a stable order.
var AllViews = []View{ViewInventory, ViewLowStock, ViewSales}

// ParseView accepts only the known views.
func ParseView(raw string) (View, bool) {
	for _, view := range AllViews {
		if string(view) == raw {
			return view, true
		}
	}
	return "", false
}

// Event is delivered to in-process subscribers.
type Event struct {
	View    View  `json:"view"`
	Version int64 `json:"version"`
}

// Notifier invalidates views and reports their current versions.
type Notifier interface {
	Invalidate(ctx context.Context, views ...View) error
	Versions(ctx context.Context) (map[View]int64, error)
}

// Emit invalidates views and only logs failures; a stale view never fails a write.
func Emit(ctx context.Context, logg *logger.Logger, n Notifier, views ...View) {
	if n == nil || len(views) == 0 {
		return
	}
	if err := n.Invalidate(ctx, views...); err != nil && logg != nil {
		logg.WarnErr(ctx, "signals.invalidate_failed", err)
	}
}

// Hub keeps versions in memory and fans events out to subscribers. Slow subscribers drop
// events rather than block writers.
type Hub struct {
	mu       sync.Mutex
	versions map[View]int64
	subs     map[int]chan Event
	nextID   int
	closed   bool
}

func NewHub() *Hub {
	return &Hub{
		versions: make(map[View]int64),
		subs:     make(map[int]chan Event),
	}
}

func (h *Hub) Invalidate(_ context.Context, views ...View) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, view := range views {
		h.versions[view]++
		h.publishLocked(Event{View: view, Version: h.versions[view]})
	}
	return nil
}

// set records an externally assigned version.
func (h *Hub) set(view View, version int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if version <= h.versions[view] {
		return
	}
	h.versions[view] = version
	h.publishLocked(Event{View: view, Version: version})
}

func (h *Hub) publishLocked(evt Event) {
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (h *Hub) Versions(context.Context) (map[View]int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[View]int64, len(AllViews))
	for _, view := range AllViews {
		out[view] = h.versions[view]
	}
	return out, nil
}

// Subscribe returns a channel of events and a cancel func that closes it.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
		})
	}
}

// Close ends every subscription so streaming handlers return during shutdown. Versions keep
// counting afterwards; later subscribers get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
