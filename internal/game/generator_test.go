package game_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bistro-rush/internal/config"
	"bistro-rush/internal/game"
	"bistro-rush/internal/logger"
	"bistro-rush/internal/models"
	"bistro-rush/internal/monitoring"
)

// stubGenStore feeds the generator a fixed recipe pool and captures created
// orders on a channel, so tests can wait for cycles without sleeping.
type stubGenStore struct {
	recipes []models.Recipe
	lookups chan struct{}
	created chan models.Order
}

func newStubGenStore(recipes ...models.Recipe) *stubGenStore {
	return &stubGenStore{
		recipes: recipes,
		lookups: make(chan struct{}, 64),
		created: make(chan models.Order, 64),
	}
}

func (s *stubGenStore) DiscoveredRecipes(ctx context.Context, userID string) ([]models.Recipe, error) {
	select {
	case s.lookups <- struct{}{}:
	default:
	}
	return s.recipes, nil
}

func (s *stubGenStore) CreateOrder(ctx context.Context, order *models.Order) error {
	s.created <- *order
	return nil
}

func fastGameConfig() config.GameConfig {
	cfg := config.Load().Game
	cfg.GeneratorMinDelay = time.Millisecond
	cfg.GeneratorMaxDelay = 2 * time.Millisecond
	return cfg
}

func newTestGenerator(store game.GeneratorStore, notifier *RecordingNotifier, cfg config.GameConfig) *game.Generator {
	publisher := new(MockPublisher)
	publisher.On("PublishOrderCreated", mock.Anything).Return(nil)
	return game.NewGenerator(store, notifier, publisher, monitoring.NewMetrics(), logger.NewTestLogger(), cfg)
}

func TestGeneratorRefCounting(t *testing.T) {
	cfg := config.Load().Game // production delays, no cycle fires during the test
	gen := newTestGenerator(newStubGenStore(), &RecordingNotifier{}, cfg)
	defer gen.Shutdown()

	gen.Start("user-1")
	gen.Start("user-1")
	assert.Equal(t, 1, gen.Active())
	assert.Equal(t, 2, gen.Refs("user-1"))

	gen.Stop("user-1")
	assert.Equal(t, 1, gen.Active())
	assert.Equal(t, 1, gen.Refs("user-1"))

	gen.Stop("user-1")
	assert.Equal(t, 0, gen.Active())

	// Unmatched stop is a no-op.
	gen.Stop("user-1")
	assert.Equal(t, 0, gen.Active())
}

func TestGeneratorCreatesVIPOrders(t *testing.T) {
	store := newStubGenStore(models.Recipe{ID: "rcp-1", Name: "Margherita", BasePrice: 10.00})
	notifier := &RecordingNotifier{}

	cfg := fastGameConfig()
	cfg.VIPProbability = 1 // force the VIP branch
	gen := newTestGenerator(store, notifier, cfg)
	defer gen.Shutdown()

	gen.Start("user-1")

	var order models.Order
	select {
	case order = <-store.created:
	case <-time.After(2 * time.Second):
		t.Fatal("generator produced no order")
	}
	gen.Stop("user-1")

	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, "rcp-1", order.RecipeID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, order.IsVIP)
	assert.Equal(t, 15.00, order.Price)

	_, err := uuid.Parse(order.ID)
	assert.NoError(t, err)

	ttl := order.ExpiresAt.Sub(order.CreatedAt)
	assert.GreaterOrEqual(t, ttl, cfg.OrderMinTTL)
	assert.LessOrEqual(t, ttl, cfg.OrderMaxTTL)
}

func TestGeneratorEmitsNewOrderEvent(t *testing.T) {
	store := newStubGenStore(models.Recipe{ID: "rcp-1", Name: "Margherita", BasePrice: 8.00})
	notifier := &RecordingNotifier{}

	cfg := fastGameConfig()
	cfg.VIPProbability = 0
	gen := newTestGenerator(store, notifier, cfg)
	defer gen.Shutdown()

	gen.Start("user-1")
	select {
	case <-store.created:
	case <-time.After(2 * time.Second):
		t.Fatal("generator produced no order")
	}
	gen.Stop("user-1")

	events := notifier.Events(models.EventNewOrder)
	require.NotEmpty(t, events)
	payload := events[0].Payload.(models.NewOrderEvent)
	assert.Equal(t, "Margherita", payload.RecipeName)
	assert.Equal(t, 8.00, payload.Price)
	assert.False(t, payload.IsVIP)
}

func TestGeneratorSkipsCycleWithoutRecipes(t *testing.T) {
	store := newStubGenStore() // nothing discovered yet
	gen := newTestGenerator(store, &RecordingNotifier{}, fastGameConfig())
	defer gen.Shutdown()

	gen.Start("user-1")

	// The loop must keep rescheduling: several lookups, zero orders.
	for i := 0; i < 3; i++ {
		select {
		case <-store.lookups:
		case <-time.After(2 * time.Second):
			t.Fatal("generator loop stopped rescheduling")
		}
	}
	gen.Stop("user-1")

	assert.Empty(t, store.created)
}

func TestGeneratorStopCancelsLoop(t *testing.T) {
	store := newStubGenStore(models.Recipe{ID: "rcp-1", Name: "Margherita", BasePrice: 8.00})
	gen := newTestGenerator(store, &RecordingNotifier{}, fastGameConfig())

	gen.Start("user-1")
	select {
	case <-store.created:
	case <-time.After(2 * time.Second):
		t.Fatal("generator produced no order")
	}
	gen.Stop("user-1")
	assert.Equal(t, 0, gen.Active())

	// Drain anything in flight, then confirm the loop has gone quiet.
	time.Sleep(20 * time.Millisecond)
	for len(store.created) > 0 {
		<-store.created
	}
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, store.created)
}
