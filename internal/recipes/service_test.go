package recipes

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/counterpos-backend/internal/storesync/storesynctest"
	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
	"github.com/angelmondragon/counterpos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/counterpos-backend/pkg/errors"
)

type recipeFixture struct {
	env    *storesynctest.Env
	svc    *Service
	latte  *models.Product
	milk   *models.InventoryItem
	coffee *models.InventoryItem
}

func newRecipeFixture(t *testing.T, mode enums.ConnectivityMode) *recipeFixture {
	t.Helper()
	env := storesynctest.New(t, mode)
	repo := NewRepository(env.Remote.DB())
	RegisterReplayHandlers(env.Registry, repo)
	svc, err := NewService(ServiceParams{Repository: repo, Dispatcher: env.Dispatcher, Logger: env.Logger})
	require.NoError(t, err)

	f := &recipeFixture{
		env:    env,
		svc:    svc,
		latte:  &models.Product{Name: "Latte", Size: "L", Price: decimal.RequireFromString("5.25")},
		milk:   &models.InventoryItem{Name: "Milk", CurrentStock: decimal.NewFromInt(5000), Unit: "ml", ContainerType: enums.ContainerDirect, NumberOfContainers: decimal.NewFromInt(1)},
		coffee: &models.InventoryItem{Name: "Coffee beans", CurrentStock: decimal.NewFromInt(2000), Unit: "g", ContainerType: enums.ContainerDirect, NumberOfContainers: decimal.NewFromInt(1)},
	}
	env.Seed(t, f.latte, f.milk, f.coffee)
	return f
}

func TestIngredientsForProductWithoutRecipe(t *testing.T) {
	f := newRecipeFixture(t, enums.ModeOnline)

	ingredients, err := f.svc.IngredientsFor(context.Background(), f.latte.ID)
	require.NoError(t, err)
	assert.Empty(t, ingredients)
}

func TestIngredientsForUnknownProduct(t *testing.T) {
	f := newRecipeFixture(t, enums.ModeOnline)

	_, err := f.svc.IngredientsFor(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSetIngredientsForReplacesRecipe(t *testing.T) {
	f := newRecipeFixture(t, enums.ModeOnline)
	ctx := context.Background()

	_, err := f.svc.SetIngredientsFor(ctx, f.latte.ID, []LineInput{
		{InventoryID: f.milk.ID, QuantityUsed: decimal.NewFromInt(300)},
	})
	require.NoError(t, err)

	ingredients, err := f.svc.SetIngredientsFor(ctx, f.latte.ID, []LineInput{
		{InventoryID: f.milk.ID, QuantityUsed: decimal.NewFromInt(250)},
		{InventoryID: f.coffee.ID, QuantityUsed: decimal.RequireFromString("18.5")},
	})
	require.NoError(t, err)
	require.Len(t, ingredients, 2)
	assert.Equal(t, "Coffee beans", ingredients[0].InventoryName)
	assert.Equal(t, "g", ingredients[0].Unit)
	assert.True(t, ingredients[0].QuantityUsed.Equal(decimal.RequireFromString("18.5")))
	assert.True(t, ingredients[1].QuantityUsed.Equal(decimal.NewFromInt(250)))

	var lines []models.RecipeLine
	require.NoError(t, f.env.Remote.DB().Where("product_id = ?", f.latte.ID).Find(&lines).Error)
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Equal(t, "L", line.Size, "size is copied from the product")
	}

	summary, err := f.env.Worker(t).ApplyMirrors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Replayed)
	var cached int64
	require.NoError(t, f.env.Local.DB().Model(&models.RecipeLine{}).Where("product_id = ?", f.latte.ID).Count(&cached).Error)
	assert.Equal(t, int64(2), cached)
}

func TestSetIngredientsForValidation(t *testing.T) {
	f := newRecipeFixture(t, enums.ModeOnline)
	ctx := context.Background()

	cases := map[string][]LineInput{
		"zero quantity": {{InventoryID: f.milk.ID, QuantityUsed: decimal.Zero}},
		"duplicate": {
			{InventoryID: f.milk.ID, QuantityUsed: decimal.NewFromInt(1)},
			{InventoryID: f.milk.ID, QuantityUsed: decimal.NewFromInt(2)},
		},
		"unknown ingredient": {{InventoryID: uuid.New(), QuantityUsed: decimal.NewFromInt(1)}},
		"missing id":         {{QuantityUsed: decimal.NewFromInt(1)}},
	}
	for name, lines := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.SetIngredientsFor(ctx, f.latte.ID, lines)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}

	_, err := f.svc.SetIngredientsFor(ctx, uuid.New(), []LineInput{{InventoryID: f.milk.ID, QuantityUsed: decimal.NewFromInt(1)}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSetIngredientsForOfflineReplays(t *testing.T) {
	f := newRecipeFixture(t, enums.ModeOffline)
	ctx := context.Background()

	_, err := f.svc.SetIngredientsFor(ctx, f.latte.ID, []LineInput{
		{InventoryID: f.coffee.ID, QuantityUsed: decimal.NewFromInt(18)},
	})
	require.NoError(t, err)

	ingredients, err := NewRepository(f.env.Remote.DB()).Ingredients(ctx, f.latte.ID)
	require.NoError(t, err)
	assert.Empty(t, ingredients)

	_, err = f.env.Worker(t).DrainRemote(ctx)
	require.NoError(t, err)
	ingredients, err = NewRepository(f.env.Remote.DB()).Ingredients(ctx, f.latte.ID)
	require.NoError(t, err)
	require.Len(t, ingredients, 1)
	assert.Equal(t, f.coffee.ID, ingredients[0].InventoryID)
}
