package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"bistro-rush/internal/models"
)

// Migrate creates the game schema if it does not exist yet. The
// golang-migrate runner owns versioned production migrations; this path
// covers tests and local development.
func Migrate(ctx context.Context, bunDB *bun.DB) error {
	tables := []interface{}{
		(*models.Order)(nil),
		(*models.Player)(nil),
		(*models.Transaction)(nil),
		(*models.Recipe)(nil),
		(*models.Ingredient)(nil),
		(*models.RecipeIngredient)(nil),
		(*models.DiscoveredRecipe)(nil),
		(*models.PantryItem)(nil),
	}
	for _, table := range tables {
		if _, err := bunDB.NewCreateTable().Model(table).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Seed inserts the base recipe and ingredient catalog when the tables are
// empty. Safe to call on every startup.
func Seed(ctx context.Context, bunDB *bun.DB) error {
	count, err := bunDB.NewSelect().Model((*models.Recipe)(nil)).Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now()

	ingredients := []models.Ingredient{
		{ID: "ing-tomato", Name: "Tomato", Price: 0.80, CreatedAt: now},
		{ID: "ing-dough", Name: "Dough", Price: 1.20, CreatedAt: now},
		{ID: "ing-cheese", Name: "Cheese", Price: 2.50, CreatedAt: now},
		{ID: "ing-basil", Name: "Basil", Price: 0.60, CreatedAt: now},
		{ID: "ing-beef", Name: "Beef", Price: 4.00, CreatedAt: now},
		{ID: "ing-bun", Name: "Bun", Price: 0.90, CreatedAt: now},
		{ID: "ing-lettuce", Name: "Lettuce", Price: 0.70, CreatedAt: now},
		{ID: "ing-pasta", Name: "Pasta", Price: 1.10, CreatedAt: now},
		{ID: "ing-cream", Name: "Cream", Price: 1.80, CreatedAt: now},
		{ID: "ing-mushroom", Name: "Mushroom", Price: 1.50, CreatedAt: now},
	}
	if _, err := bunDB.NewInsert().Model(&ingredients).Exec(ctx); err != nil {
		return err
	}

	recipes := []models.Recipe{
		{ID: "rcp-margherita", Name: "Margherita", BasePrice: 8.00, CreatedAt: now},
		{ID: "rcp-burger", Name: "Classic Burger", BasePrice: 10.00, CreatedAt: now},
		{ID: "rcp-carbonara", Name: "Mushroom Carbonara", BasePrice: 11.50, CreatedAt: now},
	}
	if _, err := bunDB.NewInsert().Model(&recipes).Exec(ctx); err != nil {
		return err
	}

	requirements := []models.RecipeIngredient{
		{RecipeID: "rcp-margherita", IngredientID: "ing-dough", Quantity: 1},
		{RecipeID: "rcp-margherita", IngredientID: "ing-tomato", Quantity: 2},
		{RecipeID: "rcp-margherita", IngredientID: "ing-cheese", Quantity: 1},
		{RecipeID: "rcp-margherita", IngredientID: "ing-basil", Quantity: 1},
		{RecipeID: "rcp-burger", IngredientID: "ing-beef", Quantity: 1},
		{RecipeID: "rcp-burger", IngredientID: "ing-bun", Quantity: 1},
		{RecipeID: "rcp-burger", IngredientID: "ing-lettuce", Quantity: 1},
		{RecipeID: "rcp-carbonara", IngredientID: "ing-pasta", Quantity: 1},
		{RecipeID: "rcp-carbonara", IngredientID: "ing-cream", Quantity: 1},
		{RecipeID: "rcp-carbonara", IngredientID: "ing-mushroom", Quantity: 2},
	}
	if _, err := bunDB.NewInsert().Model(&requirements).Exec(ctx); err != nil {
		return err
	}

	return nil
}
