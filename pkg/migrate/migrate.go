// Package migrate versions the remote schema with goose. The SQL files are embedded so a
// terminal binary can bring its own store up to date without a checkout of the repo.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where create and validate work when run from the repository root.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var shipped embed.FS

// Shipped returns the migrations compiled into the binary.
func Shipped() fs.FS {
	sub, err := fs.Sub(shipped, "migrations")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

// Source returns the shipped migrations, or the files under dir when one is given.
func Source(dir string) fs.FS {
	if dir == "" {
		return Shipped()
	}
	return os.DirFS(dir)
}

// DialectFor picks the goose dialect matching the remote store flag.
func DialectFor(useSQLite bool) goose.Dialect {
	if useSQLite {
		return goose.DialectSQLite3
	}
	return goose.DialectPostgres
}

// Runner applies migrations to one database. It never closes the handle it was given.
type Runner struct {
	provider *goose.Provider
}

func NewRunner(db *sql.DB, dialect goose.Dialect, fsys fs.FS) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if fsys == nil {
		return nil, fmt.Errorf("migration source is required")
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

func (r *Runner) Up(ctx context.Context) ([]*goose.MigrationResult, error) {
	results, err := r.provider.Up(ctx)
	if err != nil {
		return results, fmt.Errorf("goose up: %w", err)
	}
	return results, nil
}

// Down rolls back the latest applied migration.
func (r *Runner) Down(ctx context.Context) (*goose.MigrationResult, error) {
	result, err := r.provider.Down(ctx)
	if err != nil {
		return result, fmt.Errorf("goose down: %w", err)
	}
	return result, nil
}

// Reset rolls every migration back. Used by tests and by dev resets only.
func (r *Runner) Reset(ctx context.Context) ([]*goose.MigrationResult, error) {
	results, err := r.provider.DownTo(ctx, 0)
	if err != nil {
		return results, fmt.Errorf("goose reset: %w", err)
	}
	return results, nil
}

func (r *Runner) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	status, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	return status, nil
}

func (r *Runner) Version(ctx context.Context) (int64, error) {
	v, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("goose version: %w", err)
	}
	return v, nil
}

// Pending reports whether the store lags behind the migration source.
func (r *Runner) Pending(ctx context.Context) (bool, error) {
	pending, err := r.provider.HasPending(ctx)
	if err != nil {
		return false, fmt.Errorf("goose pending: %w", err)
	}
	return pending, nil
}

// MigrateTo moves the schema up or down to targetVersion (YYYYMMDDHHMMSS).
func (r *Runner) MigrateTo(ctx context.Context, targetVersion string) ([]*goose.MigrationResult, error) {
	if targetVersion == "" {
		return nil, fmt.Errorf("target version is required")
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	current, err := r.Version(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case current == target:
		return nil, nil
	case current < target:
		results, err := r.provider.UpTo(ctx, target)
		if err != nil {
			return results, fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return results, nil
	default:
		results, err := r.provider.DownTo(ctx, target)
		if err != nil {
			return results, fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return results, nil
	}
}
