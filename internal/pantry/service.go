package pantry

import (
	"context"
	"fmt"

	"bistro-rush/internal/logger"
	"bistro-rush/internal/models"
)

// Store is the persistence surface for the pantry and recipe book.
type Store interface {
	ListIngredients(ctx context.Context) ([]models.Ingredient, error)
	PantryItems(ctx context.Context, userID string) ([]models.PantryItem, error)
	PurchaseIngredientTx(ctx context.Context, userID, ingredientID string, quantity int) (*models.Player, error)
	DiscoverRecipeTx(ctx context.Context, userID string, ingredientCounts map[string]int) (*models.Recipe, error)
	DiscoveredRecipes(ctx context.Context, userID string) ([]models.Recipe, error)
}

// Notifier mirrors the game service's realtime channel.
type Notifier interface {
	EmitToUser(userID, event string, payload interface{})
}

type Service struct {
	store    Store
	notifier Notifier
	logger   *logger.Logger
}

func NewService(store Store, notifier Notifier, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   log,
	}
}

func (s *Service) Ingredients(ctx context.Context) ([]models.Ingredient, error) {
	return s.store.ListIngredients(ctx)
}

func (s *Service) Items(ctx context.Context, userID string) ([]models.PantryItem, error) {
	return s.store.PantryItems(ctx, userID)
}

func (s *Service) Recipes(ctx context.Context, userID string) ([]models.Recipe, error) {
	return s.store.DiscoveredRecipes(ctx, userID)
}

// Purchase buys ingredient stock and pushes the new treasury to the client.
// Sentinel errors from the store pass through untouched so the API layer can
// map them to status codes.
func (s *Service) Purchase(ctx context.Context, userID, ingredientID string, quantity int) (*models.Player, error) {
	player, err := s.store.PurchaseIngredientTx(ctx, userID, ingredientID, quantity)
	if err != nil {
		return nil, err
	}

	s.logger.Info("PANTRY", fmt.Sprintf("user %s bought %dx %s (treasury=%.2f)", userID, quantity, ingredientID, player.Treasury))
	s.notifier.EmitToUser(userID, models.EventStatsUpdate, models.StatsUpdateEvent{Treasury: &player.Treasury})

	return player, nil
}

// Discover attempts to unlock a recipe from an ingredient combination. On
// success the ingredients are consumed from the pantry.
func (s *Service) Discover(ctx context.Context, userID string, ingredientCounts map[string]int) (*models.Recipe, error) {
	recipe, err := s.store.DiscoverRecipeTx(ctx, userID, ingredientCounts)
	if err != nil {
		return nil, err
	}

	s.logger.Info("PANTRY", fmt.Sprintf("user %s discovered recipe %s", userID, recipe.Name))
	s.notifier.EmitToUser(userID, models.EventRecipeDiscovered, models.RecipeDiscoveredEvent{
		RecipeID:   recipe.ID,
		RecipeName: recipe.Name,
		BasePrice:  recipe.BasePrice,
	})

	return recipe, nil
}
