package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/counterpos-backend/internal/terminal"
	"github.com/angelmondragon/counterpos-backend/pkg/config"
	"github.com/angelmondragon/counterpos-backend/pkg/db"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "sync"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "status", "sync command: status|drain|pull")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "sync",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithFields(logg.WithTerminalID(ctx, cfg.App.TerminalID), map[string]any{"cmd": *cmd})

	remote, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "database", err)
	local, err := db.NewLocal(ctx, cfg.LocalStore, logg)
	requireResource(ctx, logg, "local cache", err)

	term, err := terminal.New(terminal.Params{Config: cfg, Logger: logg, Remote: remote, Local: local})
	requireResource(ctx, logg, "terminal", err)

	code := run(ctx, logg, term, *cmd)
	if err := multierr.Combine(local.Close(), remote.Close()); err != nil {
		logg.Error(ctx, "error closing stores", err)
	}
	os.Exit(code)
}

func run(ctx context.Context, logg *logger.Logger, term *terminal.Terminal, cmd string) int {
	// a tick probes the remote and, when reachable, replays the backlog and refreshes the cache
	tickErr := term.Worker.Tick(ctx)
	if tickErr != nil {
		logg.WarnErr(ctx, "sync tick failed", tickErr)
	}

	switch cmd {
	case "status":
	case "drain":
		if !term.State.IsOnline() {
			fmt.Fprintln(os.Stderr, "remote unreachable, nothing drained")
			return 1
		}
		summary, err := term.Worker.DrainRemote(ctx)
		if err != nil {
			logg.Error(ctx, "drain failed", err)
			return 1
		}
		printJSON(summary)
	case "pull":
		if !term.State.IsOnline() {
			fmt.Fprintln(os.Stderr, "remote unreachable, cache not refreshed")
			return 1
		}
		if err := term.Worker.Refresh(ctx); err != nil {
			logg.Error(ctx, "pull failed", err)
			return 1
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", cmd)
		return 1
	}

	status, err := term.Dispatcher.Status(ctx)
	if err != nil {
		logg.Error(ctx, "read sync status", err)
		return 1
	}
	printJSON(status)
	if tickErr != nil {
		return 1
	}
	return 0
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
