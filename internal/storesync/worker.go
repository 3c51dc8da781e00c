package storesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/counterpos-backend/pkg/config"
	dbpkg "github.com/angelmondragon/counterpos-backend/pkg/db"
	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
	"github.com/angelmondragon/counterpos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/counterpos-backend/pkg/errors"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
	"github.com/angelmondragon/counterpos-backend/pkg/metrics"
)

const (
	defaultProbeInterval = 10 * time.Second
	defaultProbeTimeout  = 3 * time.Second
	defaultBatchSize     = 200
	defaultPullBatchSize = 500
	maxBackoff           = time.Minute
	jitterWindow         = 250 * time.Millisecond

	// mirror entries that keep failing wait for the next pull instead of retrying every tick
	maxMirrorAttempts = 5
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

// Prober checks whether the system of record is reachable.
type Prober interface {
	Ping(ctx context.Context) error
}

type WorkerParams struct {
	Config     config.SyncConfig
	Logger     *logger.Logger
	Dispatcher *Dispatcher
	Registry   *Registry
	Prober     Prober
	Metrics    *metrics.SyncMetrics
	Now        func() time.Time
}

// Worker owns the connectivity probe, queue replay and cache refresh. Exactly one Worker
// runs per process.
type Worker struct {
	logg          *logger.Logger
	dispatcher    *Dispatcher
	registry      *Registry
	prober        Prober
	metrics       *metrics.SyncMetrics
	now           func() time.Time
	probeInterval time.Duration
	probeTimeout  time.Duration
	batchSize     int
	pullBatchSize int
}

func NewWorker(params WorkerParams) (*Worker, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if params.Registry == nil {
		return nil, errors.New("replay registry is required")
	}
	prober := params.Prober
	if prober == nil {
		prober = params.Dispatcher.remote
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	w := &Worker{
		logg:          params.Logger,
		dispatcher:    params.Dispatcher,
		registry:      params.Registry,
		prober:        prober,
		metrics:       params.Metrics,
		now:           now,
		probeInterval: params.Config.ProbeInterval,
		probeTimeout:  params.Config.ProbeTimeout,
		batchSize:     params.Config.BatchSize,
		pullBatchSize: params.Config.PullBatchSize,
	}
	if w.probeInterval <= 0 {
		w.probeInterval = defaultProbeInterval
	}
	if w.probeTimeout <= 0 {
		w.probeTimeout = defaultProbeTimeout
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.pullBatchSize <= 0 {
		w.pullBatchSize = defaultPullBatchSize
	}
	return w, nil
}

// Run ticks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	w.logg.Info(w.logg.WithField(ctx, "replay_kinds", w.registry.Kinds()), "sync.worker_started")
	backoff := w.probeInterval
	for {
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "sync worker context canceled")
			return ctx.Err()
		default:
		}

		wait := w.probeInterval
		if err := w.Tick(ctx); err != nil {
			w.logg.Error(ctx, "sync.tick_failed", err)
			backoff = nextBackoff(backoff, w.probeInterval, maxBackoff)
			wait = backoff
		} else {
			backoff = w.probeInterval
		}

		if err := w.sleep(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
}

// Tick probes once, performs any transition, then applies pending mirror entries.
func (w *Worker) Tick(ctx context.Context) error {
	reachable := w.probe(ctx)
	state := w.dispatcher.state

	var transitionErr error
	switch {
	case reachable && !state.IsOnline():
		transitionErr = w.goOnline(ctx)
	case !reachable && state.IsOnline():
		w.goOffline(ctx)
	}

	_, mirrorErr := w.ApplyMirrors(ctx)
	w.refreshPendingGauge(ctx)
	return multierr.Combine(transitionErr, mirrorErr)
}

func (w *Worker) probe(ctx context.Context) bool {
	start := time.Now()
	probeCtx, cancel := context.WithTimeout(ctx, w.probeTimeout)
	defer cancel()

	err := w.prober.Ping(probeCtx)
	w.dispatcher.state.recordProbe(w.now(), err)
	w.metrics.ObserveJob("probe", time.Since(start))
	if err != nil {
		w.logg.Debug(w.logg.WithField(ctx, "error", err.Error()), "sync.probe_failed")
		return false
	}
	return true
}

func (w *Worker) goOffline(ctx context.Context) {
	d := w.dispatcher
	d.gate.Lock()
	defer d.gate.Unlock()
	if d.state.set(enums.ModeOffline, w.now()) {
		w.metrics.SetOnline(false)
		w.logg.Warn(w.logg.WithSyncMode(ctx, enums.ModeOffline.String()), "sync.transition")
	}
}

// goOnline replays the backlog, then drains the remainder and refreshes the cache with
// requests held off, and only then flips the mode.
func (w *Worker) goOnline(ctx context.Context) error {
	_, cursor, err := w.drainRemote(ctx, 0)
	if err != nil {
		return err
	}

	d := w.dispatcher
	d.gate.Lock()
	defer d.gate.Unlock()

	// only entries queued since the first pass; failures wait for the next transition
	if _, _, err := w.drainRemote(ctx, cursor); err != nil {
		return err
	}
	if err := w.Pull(ctx); err != nil {
		return fmt.Errorf("refresh local cache: %w", err)
	}
	if d.state.set(enums.ModeOnline, w.now()) {
		w.metrics.SetOnline(true)
		w.logg.Info(w.logg.WithSyncMode(ctx, enums.ModeOnline.String()), "sync.transition")
	}
	return nil
}

// DrainSummary counts the outcome of one drain pass. Duplicates are groups the target had
// already committed; they are marked synced without being applied again.
type DrainSummary struct {
	Replayed   int
	Failed     int
	Duplicates int
}

// DrainRemote replays pending remote-target entries, oldest first, one remote transaction
// per group. Groups that fail stay pending. A connectivity failure aborts the pass.
func (w *Worker) DrainRemote(ctx context.Context) (DrainSummary, error) {
	summary, _, err := w.drainRemote(ctx, 0)
	return summary, err
}

func (w *Worker) drainRemote(ctx context.Context, cursor uint64) (DrainSummary, uint64, error) {
	start := time.Now()
	defer func() { w.metrics.ObserveJob("drain", time.Since(start)) }()

	d := w.dispatcher
	var summary DrainSummary
	var failures error
	for {
		groups, err := w.nextGroups(enums.SyncTargetRemote, cursor, 0)
		if err != nil {
			return summary, cursor, fmt.Errorf("fetch pending entries: %w", err)
		}
		if len(groups) == 0 {
			break
		}

		for _, group := range groups {
			cursor = group[len(group)-1].ID
			applied := false
			err := d.remoteTx(ctx, d.remoteTimeout, func(ctx context.Context, tx *gorm.DB) error {
				var err error
				applied, err = w.applyGroup(ctx, tx, group)
				return err
			})
			if err != nil {
				if dbpkg.IsConnectivityError(err) {
					w.metrics.AddReplayed(StoreRemote, "failure", len(group))
					return summary, cursor, multierr.Append(failures, fmt.Errorf("remote unreachable during drain: %w", err))
				}
				summary.Failed += len(group)
				failures = multierr.Append(failures, w.recordFailure(ctx, enums.SyncTargetRemote, group, err))
				continue
			}
			if err := d.queue.MarkSynced(nil, entryIDs(group), w.now()); err != nil {
				return summary, cursor, fmt.Errorf("mark synced: %w", err)
			}
			if !applied {
				summary.Duplicates += len(group)
				continue
			}
			summary.Replayed += len(group)
		}
	}

	w.metrics.AddReplayed(StoreRemote, "success", summary.Replayed)
	w.metrics.AddReplayed(StoreRemote, "failure", summary.Failed)
	if summary.Replayed > 0 || summary.Failed > 0 || summary.Duplicates > 0 {
		w.logg.Info(w.logg.WithFields(ctx, map[string]any{
			"replayed":   summary.Replayed,
			"failed":     summary.Failed,
			"duplicates": summary.Duplicates,
		}), "sync.drained")
	}
	// replay failures stay pending and never fail the transition
	if failures != nil {
		w.logg.Warn(w.logg.WithField(ctx, "failures", len(multierr.Errors(failures))), "sync.drain_incomplete")
	}
	return summary, cursor, nil
}

// ApplyMirrors applies pending local-target entries to the cache. Each group commits in the
// same local transaction that marks it synced.
func (w *Worker) ApplyMirrors(ctx context.Context) (DrainSummary, error) {
	d := w.dispatcher
	var summary DrainSummary
	cursor := uint64(0)
	for {
		groups, err := w.nextGroups(enums.SyncTargetLocal, cursor, maxMirrorAttempts)
		if err != nil {
			return summary, fmt.Errorf("fetch mirror entries: %w", err)
		}
		if len(groups) == 0 {
			break
		}
		for _, group := range groups {
			cursor = group[len(group)-1].ID
			err := d.local.WithTx(ctx, func(tx *gorm.DB) error {
				if _, err := w.applyGroup(ctx, tx, group); err != nil {
					return err
				}
				return d.queue.MarkSynced(tx, entryIDs(group), w.now())
			})
			if err != nil {
				summary.Failed += len(group)
				if recErr := w.recordFailure(ctx, enums.SyncTargetLocal, group, err); recErr != nil && !pkgerrors.IsCode(recErr, pkgerrors.CodeSyncReplay) {
					return summary, recErr
				}
				continue
			}
			summary.Replayed += len(group)
		}
	}
	w.metrics.AddReplayed(StoreLocal, "success", summary.Replayed)
	w.metrics.AddReplayed(StoreLocal, "failure", summary.Failed)
	return summary, nil
}

// nextGroups fetches the next batch after cursor as complete replay groups.
func (w *Worker) nextGroups(target enums.SyncTarget, cursor uint64, maxAttempts int) ([][]models.SyncQueueEntry, error) {
	queue := w.dispatcher.queue
	rows, err := queue.FetchPending(nil, target, cursor, w.batchSize, maxAttempts)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	groups := groupEntries(rows)
	if len(rows) < w.batchSize {
		return groups, nil
	}
	// a full batch may end mid-group
	if len(groups) > 1 {
		return groups[:len(groups)-1], nil
	}
	whole, err := queue.FetchGroup(nil, groups[0][0].GroupID)
	if err != nil {
		return nil, err
	}
	return [][]models.SyncQueueEntry{whole}, nil
}

// applyGroup reports false when the target already holds the group's key, either from an
// earlier replay or from the remote attempt of the call that queued it.
func (w *Worker) applyGroup(ctx context.Context, tx *gorm.DB, group []models.SyncQueueEntry) (bool, error) {
	fresh, err := markApplied(tx, group[0].GroupID, w.now())
	if err != nil {
		return false, fmt.Errorf("record applied group %s: %w", group[0].GroupID, err)
	}
	if !fresh {
		return false, nil
	}
	for _, entry := range group {
		fresh, err := markApplied(tx, entry.Key, w.now())
		if err != nil {
			return false, fmt.Errorf("record applied %s: %w", entry.Key, err)
		}
		if !fresh {
			continue
		}
		if err := w.registry.Apply(ctx, tx, entry.Kind, json.RawMessage(entry.Payload)); err != nil {
			return false, fmt.Errorf("%s %s: %w", entry.Kind, entry.Key, err)
		}
	}
	return true, nil
}

// recordFailure logs a replay failure and bumps the attempt counters. The returned error
// carries CodeSyncReplay unless the bookkeeping itself failed.
func (w *Worker) recordFailure(ctx context.Context, target enums.SyncTarget, group []models.SyncQueueEntry, cause error) error {
	replayErr := pkgerrors.Wrap(pkgerrors.CodeSyncReplay, cause, "queue replay failed")
	fields := map[string]any{
		"target":        string(target),
		"group_id":      group[0].GroupID.String(),
		"entries":       len(group),
		"first_kind":    group[0].Kind,
		"attempt_count": group[0].AttemptCount + 1,
	}
	for k, v := range pkgerrors.Dump(replayErr).Fields() {
		fields[k] = v
	}
	w.logg.Error(w.logg.WithFields(ctx, fields), "sync.replay_failed", replayErr)

	if err := w.dispatcher.queue.MarkFailed(nil, entryIDs(group), cause); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return replayErr
}

func (w *Worker) refreshPendingGauge(ctx context.Context) {
	for _, target := range []enums.SyncTarget{enums.SyncTargetRemote, enums.SyncTargetLocal} {
		counts, err := w.dispatcher.queue.CountPending(nil, target)
		if err != nil {
			w.logg.WarnErr(ctx, "sync.count_pending_failed", err)
			return
		}
		w.metrics.SetPending(string(target), counts.Total)
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}
