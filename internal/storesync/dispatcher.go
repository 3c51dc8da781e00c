package storesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/counterpos-backend/pkg/db"
	"github.com/angelmondragon/counterpos-backend/pkg/enums"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
)

const (
	StoreRemote = "remote"
	StoreLocal  = "local"

	defaultRemoteTimeout = 5 * time.Second
)

// Store is the surface the sync layer needs from a database client.
type Store interface {
	Name() string
	DB() *gorm.DB
	Ping(ctx context.Context) error
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Op runs one unit of work against whichever store was chosen and returns the writes to
// replay against the other one.
type Op func(ctx context.Context, tx *gorm.DB) ([]Write, error)

// Call is one dispatched operation. Local defaults to Remote.
type Call struct {
	Name     string
	Remote   Op
	Local    Op
	ReadOnly bool
}

// Result reports which store served a call.
type Result struct {
	Store    string
	Fallback bool
	Queued   int
}

type DispatcherParams struct {
	Remote        Store
	Local         Store
	State         *State
	Queue         *Queue
	Logger        *logger.Logger
	RemoteTimeout time.Duration
}

// Dispatcher is the single chokepoint for reads and writes that must survive an outage of
// the system of record. Calls hold the gate shared; mode transitions hold it exclusively, so
// a call never observes a transition halfway through.
type Dispatcher struct {
	remote        Store
	local         Store
	state         *State
	queue         *Queue
	logg          *logger.Logger
	remoteTimeout time.Duration
	gate          sync.RWMutex
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Remote == nil {
		return nil, errors.New("remote store is required")
	}
	if params.Local == nil {
		return nil, errors.New("local store is required")
	}
	if params.State == nil {
		return nil, errors.New("connectivity state is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	queue := params.Queue
	if queue == nil {
		queue = NewQueue(params.Local.DB())
	}
	timeout := params.RemoteTimeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &Dispatcher{
		remote:        params.Remote,
		local:         params.Local,
		state:         params.State,
		queue:         queue,
		logg:          params.Logger,
		remoteTimeout: timeout,
	}, nil
}

func (d *Dispatcher) Queue() *Queue {
	return d.queue
}

// Execute runs call against the system of record when online, falling back to the local
// cache on connectivity failures or when offline. Business errors are returned unchanged.
//
// A write call gets one key up front. The remote transaction records it, and a fallback
// queues its replay group under the same key, so a remote commit whose acknowledgement was
// lost is skipped by the drain instead of applied twice.
func (d *Dispatcher) Execute(ctx context.Context, call Call) (Result, error) {
	if call.Remote == nil {
		return Result{}, errors.New("remote op is required")
	}
	local := call.Local
	if local == nil {
		local = call.Remote
	}

	d.gate.RLock()
	defer d.gate.RUnlock()

	ctx = d.logg.WithField(ctx, "sync_call", call.Name)

	callKey := uuid.Nil
	if !call.ReadOnly {
		callKey = uuid.New()
	}

	fallback := false
	if d.state.Current() == enums.ModeOnline {
		writes, err := d.runRemote(ctx, call.Remote, callKey)
		if err == nil {
			result := Result{Store: StoreRemote}
			if !call.ReadOnly {
				result.Queued = d.mirror(ctx, writes)
			}
			return result, nil
		}
		if !dbpkg.IsConnectivityError(err) {
			return Result{}, err
		}
		d.logg.WarnErr(ctx, "sync.remote_unreachable", err)
		fallback = true
	}

	queued := 0
	err := d.local.WithTx(ctx, func(tx *gorm.DB) error {
		writes, err := local(ctx, tx)
		if err != nil {
			return err
		}
		if call.ReadOnly {
			return nil
		}
		rows, err := d.queue.EnqueueGroup(tx, callKey, enums.SyncTargetRemote, writes)
		queued = len(rows)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Store: StoreLocal, Fallback: fallback, Queued: queued}, nil
}

// runRemote runs op in one remote transaction. A non-nil callKey is recorded as applied in
// the same transaction.
func (d *Dispatcher) runRemote(ctx context.Context, op Op, callKey uuid.UUID) ([]Write, error) {
	var writes []Write
	err := d.remoteTx(ctx, d.remoteTimeout, func(ctx context.Context, tx *gorm.DB) error {
		w, err := op(ctx, tx)
		if err != nil {
			return err
		}
		writes = w
		if callKey == uuid.Nil {
			return nil
		}
		if _, err := markApplied(tx, callKey, time.Now().UTC()); err != nil {
			return fmt.Errorf("record call key: %w", err)
		}
		return nil
	})
	return writes, err
}

// remoteTx runs fn in one remote transaction that gives up after timeout. A link that goes
// silent mid-statement then surfaces as context.DeadlineExceeded, which callers treat as
// unreachable, instead of holding the gate indefinitely.
func (d *Dispatcher) remoteTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx *gorm.DB) error) error {
	bounded, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.remote.WithTx(bounded, func(tx *gorm.DB) error {
		return fn(bounded, tx)
	})
}

// mirror queues remote writes for the local cache. Failures only cost cache freshness,
// which the next pull restores.
func (d *Dispatcher) mirror(ctx context.Context, writes []Write) int {
	if len(writes) == 0 {
		return 0
	}
	queued := 0
	err := d.local.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := d.queue.EnqueueGroup(tx, uuid.New(), enums.SyncTargetLocal, writes)
		queued = len(rows)
		return err
	})
	if err != nil {
		d.logg.WarnErr(ctx, "sync.mirror_enqueue_failed", err)
		return 0
	}
	return queued
}

// Run dispatches a write and returns its typed result. A nil local runs remote against the
// local cache too.
func Run[T any](ctx context.Context, d *Dispatcher, name string, remote, local func(ctx context.Context, tx *gorm.DB) (T, []Write, error)) (T, Result, error) {
	var out T
	wrap := func(fn func(ctx context.Context, tx *gorm.DB) (T, []Write, error)) Op {
		if fn == nil {
			return nil
		}
		return func(ctx context.Context, tx *gorm.DB) ([]Write, error) {
			value, writes, err := fn(ctx, tx)
			if err != nil {
				return nil, err
			}
			out = value
			return writes, nil
		}
	}
	res, err := d.Execute(ctx, Call{Name: name, Remote: wrap(remote), Local: wrap(local)})
	if err != nil {
		var zero T
		return zero, res, err
	}
	return out, res, nil
}

// Query dispatches a read. The same function serves both stores.
func Query[T any](ctx context.Context, d *Dispatcher, name string, fn func(ctx context.Context, tx *gorm.DB) (T, error)) (T, error) {
	var out T
	op := func(ctx context.Context, tx *gorm.DB) ([]Write, error) {
		value, err := fn(ctx, tx)
		if err != nil {
			return nil, err
		}
		out = value
		return nil, nil
	}
	if _, err := d.Execute(ctx, Call{Name: name, Remote: op, ReadOnly: true}); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
