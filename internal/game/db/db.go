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

// PlayerSeed is the initial ledger state for a new or reset player.
type PlayerSeed struct {
	Treasury     float64
	Satisfaction int
	Stars        int
}

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

func (d *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := d.Bun.NewInsert().Model(order).Exec(ctx)
	return err
}

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) OrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *DB) PendingOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("user_id = ? AND status = ?", userID, models.OrderStatusPending).
		Order("expires_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// OverduePending returns every pending order whose deadline has passed. The
// watcher resolves each returned row in its own transaction.
func (d *DB) OverduePending(ctx context.Context, now time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("status = ? AND expires_at < ?", models.OrderStatusPending, now).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// DeleteOverduePendingForUser purges a reconnecting user's pre-session debt:
// pending orders that expired while the user was away are deleted outright,
// with no penalty and no expired row left behind.
func (d *DB) DeleteOverduePendingForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.Order)(nil)).
		Where("user_id = ? AND status = ? AND expires_at < ?", userID, models.OrderStatusPending, now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ForceExpireStale transitions pending orders overdue since before the cutoff
// to expired without touching any ledger. Crash/downtime recovery only.
func (d *DB) ForceExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.OrderStatusExpired).
		Where("status = ? AND expires_at < ?", models.OrderStatusPending, cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---------------- GUARDED TRANSITIONS ----------------

// ServeOrderTx commits the pending→served transition together with the ledger
// credit and the order_revenue audit record, all in one transaction. The
// status guard in the UPDATE serializes against a racing expiration: whoever
// commits first wins, the loser sees committed=false and no state change.
func (d *DB) ServeOrderTx(ctx context.Context, orderID string, bonus int) (*models.Player, *models.Order, bool, error) {
	var player models.Player
	var order models.Order
	committed := false

	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Order)(nil)).
			Set("status = ?", models.OrderStatusServed).
			Where("id = ? AND status = ?", orderID, models.OrderStatusPending).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}

		if err := tx.NewSelect().Model(&order).Where("id = ?", orderID).Scan(ctx); err != nil {
			return err
		}

		if _, err := tx.NewUpdate().
			Model((*models.Player)(nil)).
			Set("satisfaction = satisfaction + ?", bonus).
			Set("treasury = treasury + ?", order.Price).
			Set("updated_at = ?", time.Now()).
			Where("user_id = ?", order.UserID).
			Exec(ctx); err != nil {
			return err
		}

		if err := tx.NewSelect().Model(&player).Where("user_id = ?", order.UserID).Scan(ctx); err != nil {
			return err
		}

		record := &models.Transaction{
			ID:          utils.GenerateTransactionID(),
			UserID:      order.UserID,
			Type:        models.TxOrderRevenue,
			Amount:      order.Price,
			Balance:     player.Treasury,
			Description: fmt.Sprintf("order %s served", order.ID),
			CreatedAt:   time.Now(),
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}

		committed = true
		return nil
	})
	if err != nil {
		return nil, nil, false, err
	}
	if !committed {
		return nil, nil, false, nil
	}
	return &player, &order, true, nil
}

// ExpireOrderTx commits the pending→expired transition together with the
// satisfaction penalty. Same guard as ServeOrderTx; at most one of the two
// ever commits for a given order.
func (d *DB) ExpireOrderTx(ctx context.Context, orderID string, penalty int) (*models.Player, bool, error) {
	var player models.Player
	committed := false

	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Order)(nil)).
			Set("status = ?", models.OrderStatusExpired).
			Where("id = ? AND status = ?", orderID, models.OrderStatusPending).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}

		var order models.Order
		if err := tx.NewSelect().Model(&order).Where("id = ?", orderID).Scan(ctx); err != nil {
			return err
		}

		if _, err := tx.NewUpdate().
			Model((*models.Player)(nil)).
			Set("satisfaction = satisfaction - ?", penalty).
			Set("updated_at = ?", time.Now()).
			Where("user_id = ?", order.UserID).
			Exec(ctx); err != nil {
			return err
		}

		if err := tx.NewSelect().Model(&player).Where("user_id = ?", order.UserID).Scan(ctx); err != nil {
			return err
		}

		committed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !committed {
		return nil, false, nil
	}
	return &player, true, nil
}

// ---------------- PLAYERS ----------------

func (d *DB) GetPlayer(ctx context.Context, userID string) (*models.Player, error) {
	var player models.Player
	err := d.Bun.NewSelect().
		Model(&player).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// EnsurePlayer creates the ledger row for a first-time player, seeding the
// starting treasury with its initial_treasury audit record. Existing players
// are returned untouched.
func (d *DB) EnsurePlayer(ctx context.Context, userID string, seed PlayerSeed) (*models.Player, error) {
	player, err := d.GetPlayer(ctx, userID)
	if err == nil {
		return player, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	now := time.Now()
	fresh := &models.Player{
		UserID:       userID,
		Satisfaction: seed.Satisfaction,
		Treasury:     seed.Treasury,
		Stars:        seed.Stars,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(fresh).Exec(ctx); err != nil {
			return err
		}
		record := &models.Transaction{
			ID:          utils.GenerateTransactionID(),
			UserID:      userID,
			Type:        models.TxInitialTreasury,
			Amount:      seed.Treasury,
			Balance:     seed.Treasury,
			Description: "starting treasury",
			CreatedAt:   now,
		}
		_, err := tx.NewInsert().Model(record).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

// ResetPlayer restores the starting ledger and purges the user's orders and
// treasury log. Discovered recipes and pantry stock survive a reset.
func (d *DB) ResetPlayer(ctx context.Context, userID string, seed PlayerSeed) (*models.Player, error) {
	now := time.Now()
	player := &models.Player{
		UserID:       userID,
		Satisfaction: seed.Satisfaction,
		Treasury:     seed.Treasury,
		Stars:        seed.Stars,
		UpdatedAt:    now,
	}

	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model(player).
			Column("satisfaction", "treasury", "stars", "updated_at").
			Where("user_id = ?", userID).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*models.Order)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*models.Transaction)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx); err != nil {
			return err
		}
		record := &models.Transaction{
			ID:          utils.GenerateTransactionID(),
			UserID:      userID,
			Type:        models.TxInitialTreasury,
			Amount:      seed.Treasury,
			Balance:     seed.Treasury,
			Description: "game reset",
			CreatedAt:   now,
		}
		_, err := tx.NewInsert().Model(record).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d.GetPlayer(ctx, userID)
}

func (d *DB) TransactionsByUser(ctx context.Context, userID string) ([]models.Transaction, error) {
	var records []models.Transaction
	err := d.Bun.NewSelect().
		Model(&records).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ---------------- RECIPES ----------------

func (d *DB) GetRecipe(ctx context.Context, id string) (*models.Recipe, error) {
	var recipe models.Recipe
	err := d.Bun.NewSelect().
		Model(&recipe).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

// DiscoveredRecipes returns the recipe pool a user is eligible to receive
// orders for.
func (d *DB) DiscoveredRecipes(ctx context.Context, userID string) ([]models.Recipe, error) {
	var recipes []models.Recipe
	err := d.Bun.NewSelect().
		Model(&recipes).
		Join("JOIN discovered_recipes dr ON dr.recipe_id = recipe.id").
		Where("dr.user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

func (d *DB) HasDiscovered(ctx context.Context, userID, recipeID string) (bool, error) {
	count, err := d.Bun.NewSelect().
		Model((*models.DiscoveredRecipe)(nil)).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
