package terminal_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/counterpos-backend/internal/orders"
	"github.com/angelmondragon/counterpos-backend/internal/storesync/storesynctest"
	"github.com/angelmondragon/counterpos-backend/internal/terminal"
	"github.com/angelmondragon/counterpos-backend/pkg/config"
	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
	"github.com/angelmondragon/counterpos-backend/pkg/enums"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func testConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Env: "dev", TerminalID: "counter-2"},
		Sync:   config.SyncConfig{BatchSize: 50, PullBatchSize: 50},
		Orders: config.OrdersConfig{IDPrefix: "ORD", OfflineIDPrefix: "OFL"},
	}
}

func TestNewRequiresStores(t *testing.T) {
	_, err := terminal.New(terminal.Params{Config: testConfig(), Logger: logger.Nop()})
	require.Error(t, err)
}

func TestTerminalLifecycle(t *testing.T) {
	ctx := context.Background()
	env := storesynctest.New(t, enums.ModeOffline)

	milk := &models.InventoryItem{Name: "Milk", CurrentStock: dec("10000"), MinimumThreshold: dec("1000"), Unit: "ml", ContainerType: enums.ContainerDirect, NumberOfContainers: dec("1")}
	latte := &models.Product{Name: "Latte", Size: "M", Price: dec("150")}
	remote := env.Remote.DB()
	require.NoError(t, remote.Create(milk).Error)
	require.NoError(t, remote.Create(latte).Error)
	require.NoError(t, remote.Create(&models.RecipeLine{ProductID: latte.ID, InventoryID: milk.ID, QuantityUsed: dec("150"), Size: "M"}).Error)

	term, err := terminal.New(terminal.Params{
		Config:     testConfig(),
		Logger:     logger.Nop(),
		Remote:     env.Remote,
		Local:      env.Local,
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ModeOffline, term.State.Current())

	// first tick fills the cache and goes online
	require.NoError(t, term.Worker.Tick(ctx))
	require.Equal(t, enums.ModeOnline, term.State.Current())
	var cached models.InventoryItem
	require.NoError(t, env.Local.DB().First(&cached, "id = ?", milk.ID).Error)
	assert.True(t, cached.CurrentStock.Equal(dec("10000")))

	env.Remote.SetDown(true)
	require.NoError(t, term.Worker.Tick(ctx))
	require.Equal(t, enums.ModeOffline, term.State.Current())

	summary, err := term.Orders.PlaceOrder(ctx, orders.PlaceOrderInput{
		Lines:      []orders.CartLine{{ProductID: latte.ID, Quantity: 1, Price: dec("150")}},
		AmountPaid: dec("200"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(summary.Order.ID, "OFL-counter-2-"), summary.Order.ID)

	status, err := term.Dispatcher.Status(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, status.PendingRemote)

	env.Remote.SetDown(false)
	require.NoError(t, term.Worker.Tick(ctx))
	require.Equal(t, enums.ModeOnline, term.State.Current())

	var synced models.InventoryItem
	require.NoError(t, remote.First(&synced, "id = ?", milk.ID).Error)
	assert.True(t, synced.CurrentStock.Equal(dec("9850")))

	status, err = term.Dispatcher.Status(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, status.PendingRemote)

	versions, err := term.Notifier.Versions(ctx)
	require.NoError(t, err)
	assert.Positive(t, versions["sales"])
}
