package storesync

import (
	"context"
	"time"

	"github.com/angelmondragon/counterpos-backend/pkg/enums"
)

// Status is the operator view of the sync layer.
type Status struct {
	Mode             enums.ConnectivityMode `json:"mode"`
	PendingRemote    int64                  `json:"pending_remote"`
	FailedRemote     int64                  `json:"failed_remote"`
	PendingLocal     int64                  `json:"pending_local"`
	LastProbeAt      *time.Time             `json:"last_probe_at,omitempty"`
	LastProbeError   string                 `json:"last_probe_error,omitempty"`
	LastTransitionAt *time.Time             `json:"last_transition_at,omitempty"`
}

func (d *Dispatcher) Status(ctx context.Context) (*Status, error) {
	remote, err := d.queue.CountPending(d.local.DB().WithContext(ctx), enums.SyncTargetRemote)
	if err != nil {
		return nil, err
	}
	local, err := d.queue.CountPending(d.local.DB().WithContext(ctx), enums.SyncTargetLocal)
	if err != nil {
		return nil, err
	}

	probeAt, probeErr, transitionAt := d.state.probeInfo()
	status := &Status{
		Mode:           d.state.Current(),
		PendingRemote:  remote.Total,
		FailedRemote:   remote.Failed,
		PendingLocal:   local.Total,
		LastProbeError: probeErr,
	}
	if !probeAt.IsZero() {
		status.LastProbeAt = &probeAt
	}
	if !transitionAt.IsZero() {
		status.LastTransitionAt = &transitionAt
	}
	return status, nil
}
