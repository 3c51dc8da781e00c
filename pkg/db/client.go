package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/counterpos-backend/pkg/config"
	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
)

// Client wraps one GORM connection pool. The remote system of record and the local cache
// each get their own Client.
type Client struct {
	conn *gorm.DB
	name string
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New boots the remote client. Postgres by default, a SQLite file when the feature flag
// is on (single-machine installs and development).
func New(ctx context.Context, cfg config.DBConfig, useSQLite bool, logg *logger.Logger) (*Client, error) {
	var dialector gorm.Dialector
	switch {
	case useSQLite:
		if err := ensureDir(cfg.SQLitePath); err != nil {
			return nil, err
		}
		dialector = gormsqlite.Open(cfg.SQLitePath + "?_busy_timeout=5000&_foreign_keys=on")
	case cfg.DSN != "":
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		})
	default:
		return nil, fmt.Errorf("database DSN is required")
	}

	conn, err := gorm.Open(dialector, gormConfig(logg, "remote"))
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	applyPoolSettings(sqlDB, cfg)

	if logg != nil {
		logg.Info(logg.WithField(ctx, "sqlite", useSQLite), "remote database handle ready")
	}

	return &Client{conn: conn, name: "remote"}, nil
}

// NewLocal opens the terminal cache with the pure-Go SQLite driver. One connection
// serializes writers so SQLite never reports SQLITE_BUSY to a request.
func NewLocal(ctx context.Context, cfg config.LocalStoreConfig, logg *logger.Logger) (*Client, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("local store path is required")
	}
	if err := ensureDir(cfg.Path); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	conn, err := gorm.Open(sqlite.Open(dsn), gormConfig(logg, "local"))
	if err != nil {
		return nil, fmt.Errorf("opening local cache: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := conn.WithContext(ctx).AutoMigrate(models.LocalModels()...); err != nil {
		return nil, fmt.Errorf("migrating local cache: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "path", cfg.Path), "local cache ready")
	}

	return &Client{conn: conn, name: "local"}, nil
}

// Wrap adapts an existing connection, mainly for tests.
func Wrap(conn *gorm.DB, name string) *Client {
	return &Client{conn: conn, name: name}
}

// slowQueryThreshold flags statements that hold a register waiting.
const slowQueryThreshold = 500 * time.Millisecond

func gormConfig(logg *logger.Logger, store string) *gorm.Config {
	level := gormlogger.Warn
	if logg == nil {
		level = gormlogger.Silent
	}
	// the register must boot while the remote is down; the sync worker probes instead
	return &gorm.Config{
		Logger: gormlogger.New(statementLog{logg: logg, store: store}, gormlogger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		}),
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	}
}

// statementLog routes gorm's slow query and error lines into the structured logger.
// Parameters are never rendered, so cart contents stay out of the log.
type statementLog struct {
	logg  *logger.Logger
	store string
}

func (s statementLog) Printf(format string, args ...any) {
	if s.logg == nil {
		return
	}
	ctx := s.logg.WithFields(context.Background(), map[string]any{
		"store":  s.store,
		"detail": strings.TrimSpace(fmt.Sprintf(format, args...)),
	})
	s.logg.Warn(ctx, "db.statement")
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

func applyPoolSettings(sqlDB *sql.DB, cfg config.DBConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

// Name identifies the store in logs and metrics.
func (c *Client) Name() string {
	return c.name
}

// DB returns the underlying GORM connection.
func (c *Client) DB() *gorm.DB {
	return c.conn
}

// Ping verifies the datasource is reachable.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close shuts down the pooled connections.
func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in one transaction. An error or panic rolls back; a panic is re-raised
// after the rollback.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
