package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bistro-rush/internal/config"
	"bistro-rush/internal/game/db"
	"bistro-rush/internal/logger"
	"bistro-rush/internal/models"
	"bistro-rush/internal/monitoring"
)

// Store is the persistence surface the service needs. *db.DB implements it.
type Store interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	OrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	PendingOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	DeleteOverduePendingForUser(ctx context.Context, userID string, now time.Time) (int64, error)
	ServeOrderTx(ctx context.Context, orderID string, bonus int) (*models.Player, *models.Order, bool, error)
	ExpireOrderTx(ctx context.Context, orderID string, penalty int) (*models.Player, bool, error)
	GetRecipe(ctx context.Context, id string) (*models.Recipe, error)
	HasDiscovered(ctx context.Context, userID, recipeID string) (bool, error)
	GetPlayer(ctx context.Context, userID string) (*models.Player, error)
	TransactionsByUser(ctx context.Context, userID string) ([]models.Transaction, error)
	EnsurePlayer(ctx context.Context, userID string, seed db.PlayerSeed) (*models.Player, error)
	ResetPlayer(ctx context.Context, userID string, seed db.PlayerSeed) (*models.Player, error)
}

// Notifier pushes events onto a user's realtime channel. Delivery is
// best-effort, at-most-once; emission never blocks game state commits.
type Notifier interface {
	EmitToUser(userID, event string, payload interface{})
}

// EventPublisher streams order lifecycle events to the analytics pipeline.
type EventPublisher interface {
	PublishOrderCreated(order models.Order) error
	PublishOrderServed(order models.Order) error
	PublishOrderExpired(order models.Order) error
	PublishGameOver(userID string, satisfaction int) error
}

type Service struct {
	store    Store
	notifier Notifier
	events   EventPublisher
	metrics  *monitoring.Metrics
	logger   *logger.Logger
	cfg      config.GameConfig
}

func NewService(store Store, notifier Notifier, events EventPublisher, metrics *monitoring.Metrics, log *logger.Logger, cfg config.GameConfig) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		events:   events,
		metrics:  metrics,
		logger:   log,
		cfg:      cfg,
	}
}

func (s *Service) seed() db.PlayerSeed {
	return db.PlayerSeed{
		Treasury:     s.cfg.StartingTreasury,
		Satisfaction: s.cfg.StartingSatisfaction,
		Stars:        s.cfg.StartingStars,
	}
}

// ServeOrder resolves a player's attempt to serve one order. Preconditions
// are checked in a fixed sequence, each with its own outcome; the final
// pending→served commit is guarded inside the store transaction, so a race
// with the expiration watcher resolves to exactly one winner.
func (s *Service) ServeOrder(ctx context.Context, userID, orderID string) ServeResult {
	if _, err := uuid.Parse(orderID); err != nil {
		return failure(ServeInvalidInput, "order id is not a valid identifier")
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failure(ServeNotFound, "order not found")
		}
		s.logger.Error("ORDER", fmt.Sprintf("serve %s: load failed: %v", orderID, err))
		return failure(ServeFailed, "could not load order")
	}

	if order.UserID != userID {
		return failure(ServeForbidden, "order belongs to another player")
	}
	if !order.Pending() {
		if order.Status == models.OrderStatusServed {
			return failure(ServeAlreadyServed, "order was already served")
		}
		return failure(ServeExpired, "order already expired")
	}

	if order.Overdue(time.Now()) {
		// Late serve: resolve the expiration ourselves rather than waiting
		// for the watcher tick. Whichever actor commits first wins.
		if err := s.ExpireOrder(ctx, *order); err != nil {
			s.logger.Error("ORDER", fmt.Sprintf("serve %s: late expire failed: %v", orderID, err))
			return failure(ServeFailed, "could not resolve overdue order")
		}
		return failure(ServeExpired, "order expired before it was served")
	}

	discovered, err := s.store.HasDiscovered(ctx, userID, order.RecipeID)
	if err != nil {
		s.logger.Error("ORDER", fmt.Sprintf("serve %s: discovery check failed: %v", orderID, err))
		return failure(ServeFailed, "could not check recipe")
	}
	if !discovered {
		return failure(ServeRecipeNotDiscovered, "recipe not discovered yet")
	}

	bonus := s.cfg.Bonus(order.IsVIP)
	player, served, committed, err := s.store.ServeOrderTx(ctx, orderID, bonus)
	if err != nil {
		s.logger.Error("ORDER", fmt.Sprintf("serve %s: transaction failed: %v", orderID, err))
		return failure(ServeFailed, "could not commit serve")
	}
	if !committed {
		// Lost the race against the watcher. Re-read to report which
		// terminal state won.
		current, err := s.store.GetOrderByID(ctx, orderID)
		if err == nil && current.Status == models.OrderStatusExpired {
			return failure(ServeExpired, "order expired before it was served")
		}
		return failure(ServeAlreadyServed, "order was already served")
	}

	recipeName := served.RecipeID
	if recipe, err := s.store.GetRecipe(ctx, served.RecipeID); err == nil {
		recipeName = recipe.Name
	}

	s.logger.LogOrder("SERVED", served.ID, fmt.Sprintf("user=%s bonus=%d price=%.2f", userID, bonus, served.Price))
	s.metrics.OrdersServed.Inc()

	s.emitStats(userID, models.StatsUpdateEvent{Satisfaction: &player.Satisfaction, Treasury: &player.Treasury})
	s.checkGameOver(userID, player, player.Satisfaction-bonus)

	if err := s.events.PublishOrderServed(*served); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("publish order_served %s: %v", served.ID, err))
	}

	return ServeResult{
		Status:       ServeSuccess,
		Satisfaction: player.Satisfaction,
		Treasury:     player.Treasury,
		RecipeName:   recipeName,
		IsVIP:        served.IsVIP,
		Bonus:        bonus,
	}
}

// ExpireOrder is the single expiration path shared by the watcher and the
// late-serve branch. The penalty commit and the notifications are strictly
// ordered: emit only after the transaction has committed, and a lost guard
// means another actor already resolved the order, so nothing is emitted.
func (s *Service) ExpireOrder(ctx context.Context, order models.Order) error {
	penalty := s.cfg.Penalty(order.IsVIP)

	player, committed, err := s.store.ExpireOrderTx(ctx, order.ID, penalty)
	if err != nil {
		return fmt.Errorf("expire order %s: %w", order.ID, err)
	}
	if !committed {
		return nil
	}

	s.logger.LogOrder("EXPIRED", order.ID, fmt.Sprintf("user=%s penalty=%d vip=%t", order.UserID, penalty, order.IsVIP))
	s.metrics.OrdersExpired.Inc()

	s.notifier.EmitToUser(order.UserID, models.EventOrderExpired, models.OrderExpiredEvent{OrderID: order.ID})
	s.emitStats(order.UserID, models.StatsUpdateEvent{Satisfaction: &player.Satisfaction})
	s.checkGameOver(order.UserID, player, player.Satisfaction+penalty)

	if err := s.events.PublishOrderExpired(order); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("publish order_expired %s: %v", order.ID, err))
	}

	return nil
}

// ConnectPlayer prepares a user's state at websocket join time: the ledger
// row is created on first contact and any pending order that expired while
// the user was away is deleted without penalty.
func (s *Service) ConnectPlayer(ctx context.Context, userID string) (*models.Player, error) {
	player, err := s.store.EnsurePlayer(ctx, userID, s.seed())
	if err != nil {
		return nil, fmt.Errorf("ensure player %s: %w", userID, err)
	}

	purged, err := s.store.DeleteOverduePendingForUser(ctx, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("purge stale orders for %s: %w", userID, err)
	}
	if purged > 0 {
		s.logger.LogSocket(userID, fmt.Sprintf("purged %d stale pending orders on connect", purged))
	}

	return player, nil
}

// Reset restores the starting ledger and purges the player's orders.
func (s *Service) Reset(ctx context.Context, userID string) (*models.Player, error) {
	player, err := s.store.ResetPlayer(ctx, userID, s.seed())
	if err != nil {
		return nil, fmt.Errorf("reset player %s: %w", userID, err)
	}
	s.logger.Info("GAME", fmt.Sprintf("player %s reset", userID))
	s.notifier.EmitToUser(userID, models.EventStatsUpdate, models.StatsFromPlayer(player))
	return player, nil
}

func (s *Service) Player(ctx context.Context, userID string) (*models.Player, error) {
	return s.store.GetPlayer(ctx, userID)
}

func (s *Service) Orders(ctx context.Context, userID string) ([]models.Order, error) {
	return s.store.OrdersByUser(ctx, userID)
}

func (s *Service) PendingOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return s.store.PendingOrdersByUser(ctx, userID)
}

func (s *Service) Transactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	return s.store.TransactionsByUser(ctx, userID)
}

func (s *Service) emitStats(userID string, stats models.StatsUpdateEvent) {
	s.notifier.EmitToUser(userID, models.EventStatsUpdate, stats)
}

// checkGameOver runs once after every ledger commit. The event fires only on
// the transition where satisfaction first drops below zero; later commits
// that keep it negative stay silent.
func (s *Service) checkGameOver(userID string, player *models.Player, previous int) {
	if !player.GameOver() || previous < 0 {
		return
	}

	s.logger.Warn("GAME", fmt.Sprintf("game over for %s: satisfaction=%d", userID, player.Satisfaction))
	s.metrics.GameOvers.Inc()

	s.notifier.EmitToUser(userID, models.EventGameOver, models.GameOverEvent{
		Reason:       "satisfaction",
		Satisfaction: player.Satisfaction,
	})
	if err := s.events.PublishGameOver(userID, player.Satisfaction); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("publish game_over %s: %v", userID, err))
	}
}
