// Package terminal assembles the sync layer and the domain services of one register.
package terminal

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/counterpos-backend/internal/inventory"
	"github.com/angelmondragon/counterpos-backend/internal/orders"
	"github.com/angelmondragon/counterpos-backend/internal/recipes"
	"github.com/angelmondragon/counterpos-backend/internal/signals"
	"github.com/angelmondragon/counterpos-backend/internal/storesync"
	"github.com/angelmondragon/counterpos-backend/pkg/config"
	"github.com/angelmondragon/counterpos-backend/pkg/enums"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
	"github.com/angelmondragon/counterpos-backend/pkg/metrics"
)

type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	Remote     storesync.Store
	Local      storesync.Store
	Notifier   signals.Notifier
	Registerer prometheus.Registerer
	Now        func() time.Time
}

// Terminal holds the wired runtime. The worker is not started; callers decide between
// Worker.Run and single ticks.
type Terminal struct {
	State      *storesync.State
	Dispatcher *storesync.Dispatcher
	Registry   *storesync.Registry
	Worker     *storesync.Worker
	Notifier   signals.Notifier
	Inventory  *inventory.Service
	Recipes    *recipes.Service
	Orders     orders.Service
}

// New starts OFFLINE. The first successful Tick pulls the cache and flips to ONLINE.
func New(params Params) (*Terminal, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Remote == nil || params.Local == nil {
		return nil, errors.New("remote and local stores are required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = signals.NewHub()
	}
	cfg, logg := params.Config, params.Logger

	state := storesync.NewState(enums.ModeOffline)
	dispatcher, err := storesync.NewDispatcher(storesync.DispatcherParams{
		Remote:        params.Remote,
		Local:         params.Local,
		State:         state,
		Logger:        logg,
		RemoteTimeout: cfg.Sync.RemoteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	inventoryRepo := inventory.NewRepository(params.Remote.DB())
	recipeRepo := recipes.NewRepository(params.Remote.DB())
	orderRepo := orders.NewRepository(params.Remote.DB())

	registry := storesync.NewRegistry()
	inventory.RegisterReplayHandlers(registry, inventoryRepo)
	recipes.RegisterReplayHandlers(registry, recipeRepo)
	orders.RegisterReplayHandlers(registry, orderRepo)

	worker, err := storesync.NewWorker(storesync.WorkerParams{
		Config:     cfg.Sync,
		Logger:     logg,
		Dispatcher: dispatcher,
		Registry:   registry,
		Metrics:    metrics.NewSyncMetrics(params.Registerer),
		Now:        params.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("sync worker: %w", err)
	}

	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		Repository: inventoryRepo,
		Dispatcher: dispatcher,
		Signals:    notifier,
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("inventory service: %w", err)
	}

	recipeSvc, err := recipes.NewService(recipes.ServiceParams{
		Repository: recipeRepo,
		Dispatcher: dispatcher,
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("recipe service: %w", err)
	}

	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repository:   orderRepo,
		Recipes:      recipeRepo,
		Stock:        inventoryRepo,
		Dispatcher:   dispatcher,
		Signals:      notifier,
		Metrics:      metrics.NewOrderMetrics(params.Registerer),
		Logger:       logg,
		Config:       cfg.Orders,
		TerminalID:   cfg.App.TerminalID,
		PurgeEnabled: cfg.FeatureFlags.OrderPurge,
		Now:          params.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("order service: %w", err)
	}

	return &Terminal{
		State:      state,
		Dispatcher: dispatcher,
		Registry:   registry,
		Worker:     worker,
		Notifier:   notifier,
		Inventory:  inventorySvc,
		Recipes:    recipeSvc,
		Orders:     orderSvc,
	}, nil
}
