package signals

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	pkgredis "github.com/angelmondragon/counterpos-backend/pkg/redis"
)

type versionStore interface {
	BumpViewVersion(ctx context.Context, view string) (int64, error)
	ViewVersion(ctx context.Context, view string) (int64, error)
}

type announcementSource interface {
	Listen(ctx context.Context, fn func(pkgredis.Announcement)) error
}

// RedisNotifier shares view versions across terminals through Redis and mirrors them into
// a local Hub for in-process subscribers.
type RedisNotifier struct {
	store versionStore
	hub   *Hub
}

func NewRedisNotifier(store versionStore, hub *Hub) (*RedisNotifier, error) {
	if store == nil {
		return nil, errors.New("redis version store is required")
	}
	if hub == nil {
		hub = NewHub()
	}
	return &RedisNotifier{store: store, hub: hub}, nil
}

func (n *RedisNotifier) Invalidate(ctx context.Context, views ...View) error {
	var errs error
	for _, view := range views {
		version, err := n.store.BumpViewVersion(ctx, string(view))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("bump %s: %w", view, err))
			// local subscribers still learn about the change
			_ = n.hub.Invalidate(ctx, view)
			continue
		}
		n.hub.set(view, version)
	}
	return errs
}

func (n *RedisNotifier) Versions(ctx context.Context) (map[View]int64, error) {
	out := make(map[View]int64, len(AllViews))
	for _, view := range AllViews {
		version, err := n.store.ViewVersion(ctx, string(view))
		if err != nil {
			return nil, fmt.Errorf("read %s version: %w", view, err)
		}
		out[view] = version
	}
	return out, nil
}

// Follow applies versions announced by other terminals to the local hub, so their sales
// reach this terminal's event streams. It blocks until ctx ends or the source stops.
func (n *RedisNotifier) Follow(ctx context.Context, src announcementSource) error {
	return src.Listen(ctx, func(a pkgredis.Announcement) {
		if view, ok := ParseView(a.View); ok {
			n.hub.set(view, a.Version)
		}
	})
}
