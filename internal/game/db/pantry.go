package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"bistro-rush/internal/models"
	"bistro-rush/internal/utils"
)

var (
	ErrInsufficientFunds  = errors.New("treasury too low for purchase")
	ErrMissingIngredients = errors.New("pantry is missing required ingredients")
	ErrNoMatchingRecipe   = errors.New("no recipe matches that combination")
	ErrAlreadyDiscovered  = errors.New("recipe already discovered")
)

func (d *DB) ListIngredients(ctx context.Context) ([]models.Ingredient, error) {
	var ingredients []models.Ingredient
	err := d.Bun.NewSelect().
		Model(&ingredients).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return ingredients, nil
}

func (d *DB) PantryItems(ctx context.Context, userID string) ([]models.PantryItem, error) {
	var items []models.PantryItem
	err := d.Bun.NewSelect().
		Model(&items).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// PurchaseIngredientTx debits the treasury, tops up the pantry row, and
// appends the ingredient_purchase audit record in one transaction. The
// balance check re-reads the ledger inside the transaction, so concurrent
// purchases cannot overdraw.
func (d *DB) PurchaseIngredientTx(ctx context.Context, userID, ingredientID string, quantity int) (*models.Player, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	var player models.Player
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var ingredient models.Ingredient
		if err := tx.NewSelect().Model(&ingredient).Where("id = ?", ingredientID).Scan(ctx); err != nil {
			return err
		}
		cost := utils.Round2(ingredient.Price * float64(quantity))

		if err := tx.NewSelect().Model(&player).Where("user_id = ?", userID).Scan(ctx); err != nil {
			return err
		}
		if player.Treasury < cost {
			return ErrInsufficientFunds
		}

		player.Treasury = utils.Round2(player.Treasury - cost)
		player.UpdatedAt = time.Now()
		if _, err := tx.NewUpdate().
			Model(&player).
			Column("treasury", "updated_at").
			Where("user_id = ?", userID).
			Exec(ctx); err != nil {
			return err
		}

		item := &models.PantryItem{UserID: userID, IngredientID: ingredientID, Quantity: quantity}
		if _, err := tx.NewInsert().
			Model(item).
			On("CONFLICT (user_id, ingredient_id) DO UPDATE").
			Set("quantity = pantry_item.quantity + EXCLUDED.quantity").
			Exec(ctx); err != nil {
			return err
		}

		record := &models.Transaction{
			ID:          utils.GenerateTransactionID(),
			UserID:      userID,
			Type:        models.TxIngredientPurchase,
			Amount:      -cost,
			Balance:     player.Treasury,
			Description: fmt.Sprintf("%dx %s", quantity, ingredient.Name),
			CreatedAt:   time.Now(),
		}
		_, err := tx.NewInsert().Model(record).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// DiscoverRecipeTx matches the submitted ingredient multiset against recipe
// requirements, consumes the pantry stock, and records the discovery. The
// combination must match a recipe's requirements exactly.
func (d *DB) DiscoverRecipeTx(ctx context.Context, userID string, ingredientCounts map[string]int) (*models.Recipe, error) {
	if len(ingredientCounts) == 0 {
		return nil, ErrNoMatchingRecipe
	}

	var recipe models.Recipe
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		recipeID, err := matchRecipe(ctx, tx, ingredientCounts)
		if err != nil {
			return err
		}

		discovered, err := tx.NewSelect().
			Model((*models.DiscoveredRecipe)(nil)).
			Where("user_id = ? AND recipe_id = ?", userID, recipeID).
			Count(ctx)
		if err != nil {
			return err
		}
		if discovered > 0 {
			return ErrAlreadyDiscovered
		}

		for ingredientID, qty := range ingredientCounts {
			res, err := tx.NewUpdate().
				Model((*models.PantryItem)(nil)).
				Set("quantity = quantity - ?", qty).
				Where("user_id = ? AND ingredient_id = ? AND quantity >= ?", userID, ingredientID, qty).
				Exec(ctx)
			if err != nil {
				return err
			}
			rows, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if rows == 0 {
				return ErrMissingIngredients
			}
		}

		entry := &models.DiscoveredRecipe{
			UserID:       userID,
			RecipeID:     recipeID,
			DiscoveredAt: time.Now(),
		}
		if _, err := tx.NewInsert().Model(entry).Exec(ctx); err != nil {
			return err
		}

		return tx.NewSelect().Model(&recipe).Where("id = ?", recipeID).Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

// matchRecipe finds the recipe whose required ingredient multiset equals the
// submitted one.
func matchRecipe(ctx context.Context, tx bun.Tx, counts map[string]int) (string, error) {
	var requirements []models.RecipeIngredient
	if err := tx.NewSelect().Model(&requirements).Scan(ctx); err != nil {
		return "", err
	}

	byRecipe := make(map[string]map[string]int)
	for _, req := range requirements {
		if byRecipe[req.RecipeID] == nil {
			byRecipe[req.RecipeID] = make(map[string]int)
		}
		byRecipe[req.RecipeID][req.IngredientID] = req.Quantity
	}

	for recipeID, required := range byRecipe {
		if len(required) != len(counts) {
			continue
		}
		match := true
		for ingredientID, qty := range required {
			if counts[ingredientID] != qty {
				match = false
				break
			}
		}
		if match {
			return recipeID, nil
		}
	}
	return "", ErrNoMatchingRecipe
}
