package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/angelmondragon/counterpos-backend/api/responses"
	"github.com/angelmondragon/counterpos-backend/internal/signals"
	"github.com/angelmondragon/counterpos-backend/internal/storesync"
	pkgerrors "github.com/angelmondragon/counterpos-backend/pkg/errors"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
)

type StatusSource interface {
	Status(ctx context.Context) (*storesync.Status, error)
}

type VersionSource interface {
	Versions(ctx context.Context) (map[signals.View]int64, error)
}

// SyncStatus reports the connectivity mode and queue backlog of this terminal.
func SyncStatus(src StatusSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := src.Status(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read sync status"))
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// ViewVersions returns the invalidation counter of every cached view. Clients refetch a
// view when its version moved.
func ViewVersions(src VersionSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		versions, err := src.Versions(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read view versions"))
			return
		}
		responses.WriteSuccess(w, versions)
	}
}

type EventSource interface {
	Subscribe(buffer int) (<-chan signals.Event, func())
}

const (
	eventBuffer    = 32
	eventKeepAlive = 25 * time.Second
)

// ViewEvents streams invalidations as server-sent events so register screens refetch
// without polling /views. The stream ends when the client leaves or the source closes.
func ViewEvents(src EventSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		events, cancel := src.Subscribe(eventBuffer)
		defer cancel()

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		keepAlive := time.NewTicker(eventKeepAlive)
		defer keepAlive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, open := <-events:
				if !open {
					return
				}
				payload, err := json.Marshal(evt)
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "id: %s-%d\nevent: invalidate\ndata: %s\n\n", evt.View, evt.Version, payload); err != nil {
					return
				}
				flusher.Flush()
			case <-keepAlive.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
