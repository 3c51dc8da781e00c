// Package storesynctest wires in-memory stores and a dispatcher for package tests.
package storesynctest

import (
	"context"
	"database/sql/driver"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/counterpos-backend/internal/storesync"
	"github.com/angelmondragon/counterpos-backend/pkg/config"
	"github.com/angelmondragon/counterpos-backend/pkg/db"
	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
	"github.com/angelmondragon/counterpos-backend/pkg/enums"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
)

// OpenSQLite opens a private in-memory database limited to one connection, so concurrent
// transactions queue instead of failing with table locks.
func OpenSQLite(t *testing.T, name string, schema ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_foreign_keys=on", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if len(schema) > 0 {
		if err := conn.AutoMigrate(schema...); err != nil {
			t.Fatalf("migrate sqlite: %v", err)
		}
	}
	return conn
}

// FlakyStore simulates an unreachable or stalled system of record.
type FlakyStore struct {
	*db.Client
	down    atomic.Bool
	stalled atomic.Bool
	ackLost atomic.Bool
}

func NewFlakyStore(client *db.Client) *FlakyStore {
	return &FlakyStore{Client: client}
}

func (s *FlakyStore) SetDown(down bool) {
	s.down.Store(down)
}

// SetStalled makes every call hang until its context ends, like a link that went silent
// mid-statement.
func (s *FlakyStore) SetStalled(stalled bool) {
	s.stalled.Store(stalled)
}

// SetAckLost makes transactions commit and then report a dropped connection, like a link
// that fails before the COMMIT acknowledgement arrives.
func (s *FlakyStore) SetAckLost(lost bool) {
	s.ackLost.Store(lost)
}

func (s *FlakyStore) Ping(ctx context.Context) error {
	if err := s.fault(ctx); err != nil {
		return err
	}
	return s.Client.Ping(ctx)
}

func (s *FlakyStore) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := s.fault(ctx); err != nil {
		return err
	}
	if err := s.Client.WithTx(ctx, fn); err != nil {
		return err
	}
	if s.ackLost.Load() {
		return s.unreachable()
	}
	return nil
}

func (s *FlakyStore) fault(ctx context.Context) error {
	if s.stalled.Load() {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.down.Load() {
		return s.unreachable()
	}
	return nil
}

func (s *FlakyStore) unreachable() error {
	return fmt.Errorf("dial tcp 10.20.0.4:5432: %w", driver.ErrBadConn)
}

// Env is a complete sync setup over two in-memory stores.
type Env struct {
	Remote     *FlakyStore
	Local      *db.Client
	State      *storesync.State
	Registry   *storesync.Registry
	Dispatcher *storesync.Dispatcher
	Logger     *logger.Logger
}

// New builds an Env in the given mode.
func New(t *testing.T, mode enums.ConnectivityMode) *Env {
	t.Helper()
	remote := NewFlakyStore(db.Wrap(OpenSQLite(t, "remote", models.DomainModels()...), storesync.StoreRemote))
	local := db.Wrap(OpenSQLite(t, "local", models.LocalModels()...), storesync.StoreLocal)
	state := storesync.NewState(mode)
	logg := logger.Nop()

	dispatcher, err := storesync.NewDispatcher(storesync.DispatcherParams{
		Remote: remote,
		Local:  local,
		State:  state,
		Logger: logg,
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return &Env{
		Remote:     remote,
		Local:      local,
		State:      state,
		Registry:   storesync.NewRegistry(),
		Dispatcher: dispatcher,
		Logger:     logg,
	}
}

// Worker builds a worker over the Env with a small batch size.
func (e *Env) Worker(t *testing.T) *storesync.Worker {
	t.Helper()
	worker, err := storesync.NewWorker(storesync.WorkerParams{
		Config:     config.SyncConfig{BatchSize: 50, PullBatchSize: 50},
		Logger:     e.Logger,
		Dispatcher: e.Dispatcher,
		Registry:   e.Registry,
	})
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	return worker
}

// Seed inserts rows into both stores so they start identical.
func (e *Env) Seed(t *testing.T, rows ...any) {
	t.Helper()
	for _, conn := range []*gorm.DB{e.Remote.DB(), e.Local.DB()} {
		for _, row := range rows {
			if err := conn.Create(row).Error; err != nil {
				t.Fatalf("seed %T: %v", row, err)
			}
		}
	}
}
