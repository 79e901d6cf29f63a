package game_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bistro-rush/internal/config"
	"bistro-rush/internal/game"
	"bistro-rush/internal/game/db"
	"bistro-rush/internal/logger"
	"bistro-rush/internal/models"
	"bistro-rush/internal/monitoring"
)

// Mock implementations

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockStore) OrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockStore) PendingOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockStore) DeleteOverduePendingForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) ServeOrderTx(ctx context.Context, orderID string, bonus int) (*models.Player, *models.Order, bool, error) {
	args := m.Called(orderID, bonus)
	var player *models.Player
	var order *models.Order
	if args.Get(0) != nil {
		player = args.Get(0).(*models.Player)
	}
	if args.Get(1) != nil {
		order = args.Get(1).(*models.Order)
	}
	return player, order, args.Bool(2), args.Error(3)
}

func (m *MockStore) ExpireOrderTx(ctx context.Context, orderID string, penalty int) (*models.Player, bool, error) {
	args := m.Called(orderID, penalty)
	var player *models.Player
	if args.Get(0) != nil {
		player = args.Get(0).(*models.Player)
	}
	return player, args.Bool(1), args.Error(2)
}

func (m *MockStore) GetRecipe(ctx context.Context, id string) (*models.Recipe, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Recipe), args.Error(1)
}

func (m *MockStore) HasDiscovered(ctx context.Context, userID, recipeID string) (bool, error) {
	args := m.Called(userID, recipeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) TransactionsByUser(ctx context.Context, userID string) ([]models.Transaction, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transaction), args.Error(1)
}

func (m *MockStore) GetPlayer(ctx context.Context, userID string) (*models.Player, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Player), args.Error(1)
}

func (m *MockStore) EnsurePlayer(ctx context.Context, userID string, seed db.PlayerSeed) (*models.Player, error) {
	args := m.Called(userID, seed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Player), args.Error(1)
}

func (m *MockStore) ResetPlayer(ctx context.Context, userID string, seed db.PlayerSeed) (*models.Player, error) {
	args := m.Called(userID, seed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Player), args.Error(1)
}

// RecordingNotifier captures emitted events in order.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []emittedEvent
}

type emittedEvent struct {
	UserID  string
	Event   string
	Payload interface{}
}

func (n *RecordingNotifier) EmitToUser(userID, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emittedEvent{UserID: userID, Event: event, Payload: payload})
}

func (n *RecordingNotifier) Events(event string) []emittedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []emittedEvent
	for _, e := range n.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishOrderCreated(order models.Order) error {
	return m.Called(order).Error(0)
}

func (m *MockPublisher) PublishOrderServed(order models.Order) error {
	return m.Called(order).Error(0)
}

func (m *MockPublisher) PublishOrderExpired(order models.Order) error {
	return m.Called(order).Error(0)
}

func (m *MockPublisher) PublishGameOver(userID string, satisfaction int) error {
	return m.Called(userID, satisfaction).Error(0)
}

func testGameCfg() config.GameConfig {
	return config.Load().Game
}

func newTestService(store *MockStore, notifier *RecordingNotifier, publisher *MockPublisher) *game.Service {
	return game.NewService(store, notifier, publisher, monitoring.NewMetrics(), logger.NewTestLogger(), testGameCfg())
}

func pendingOrder(userID string, isVIP bool, expiresAt time.Time) *models.Order {
	return &models.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		RecipeID:  "rcp-1",
		Status:    models.OrderStatusPending,
		Price:     10.00,
		IsVIP:     isVIP,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
}

func TestServeOrderRejectsMalformedID(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(store, &RecordingNotifier{}, new(MockPublisher))

	result := svc.ServeOrder(context.Background(), "user-1", "not-a-uuid")

	assert.Equal(t, game.ServeInvalidInput, result.Status)
	store.AssertNotCalled(t, "GetOrderByID", mock.Anything)
}

func TestServeOrderNotFound(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(store, &RecordingNotifier{}, new(MockPublisher))

	orderID := uuid.NewString()
	store.On("GetOrderByID", orderID).Return(nil, sql.ErrNoRows)

	result := svc.ServeOrder(context.Background(), "user-1", orderID)
	assert.Equal(t, game.ServeNotFound, result.Status)
}

func TestServeOrderForbiddenForOtherPlayers(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(store, &RecordingNotifier{}, new(MockPublisher))

	order := pendingOrder("user-2", false, time.Now().Add(time.Minute))
	store.On("GetOrderByID", order.ID).Return(order, nil)

	result := svc.ServeOrder(context.Background(), "user-1", order.ID)

	assert.Equal(t, game.ServeForbidden, result.Status)
	store.AssertNotCalled(t, "ServeOrderTx", mock.Anything, mock.Anything)
}

func TestServeOrderTerminalStates(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(store, &RecordingNotifier{}, new(MockPublisher))

	served := pendingOrder("user-1", false, time.Now().Add(time.Minute))
	served.Status = models.OrderStatusServed
	store.On("GetOrderByID", served.ID).Return(served, nil)

	expired := pendingOrder("user-1", false, time.Now().Add(time.Minute))
	expired.Status = models.OrderStatusExpired
	store.On("GetOrderByID", expired.ID).Return(expired, nil)

	assert.Equal(t, game.ServeAlreadyServed, svc.ServeOrder(context.Background(), "user-1", served.ID).Status)
	assert.Equal(t, game.ServeExpired, svc.ServeOrder(context.Background(), "user-1", expired.ID).Status)
}

func TestServeOrderLateServeExpiresInstead(t *testing.T) {
	store := new(MockStore)
	notifier := &RecordingNotifier{}
	publisher := new(MockPublisher)
	svc := newTestService(store, notifier, publisher)

	// VIP order one second past its deadline: the serve attempt itself must
	// trigger the VIP penalty.
	order := pendingOrder("user-1", true, time.Now().Add(-time.Second))
	store.On("GetOrderByID", order.ID).Return(order, nil)
	store.On("ExpireOrderTx", order.ID, 20).Return(&models.Player{UserID: "user-1", Satisfaction: 0}, true, nil)
	publisher.On("PublishOrderExpired", mock.Anything).Return(nil)

	result := svc.ServeOrder(context.Background(), "user-1", order.ID)

	assert.Equal(t, game.ServeExpired, result.Status)
	store.AssertNotCalled(t, "ServeOrderTx", mock.Anything, mock.Anything)
	store.AssertCalled(t, "ExpireOrderTx", order.ID, 20)

	require.Len(t, notifier.Events(models.EventOrderExpired), 1)
	require.Len(t, notifier.Events(models.EventStatsUpdate), 1)
	assert.Empty(t, notifier.Events(models.EventGameOver))
}

func TestServeOrderRecipeNotDiscovered(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(store, &RecordingNotifier{}, new(MockPublisher))

	order := pendingOrder("user-1", false, time.Now().Add(time.Minute))
	store.On("GetOrderByID", order.ID).Return(order, nil)
	store.On("HasDiscovered", "user-1", "rcp-1").Return(false, nil)

	result := svc.ServeOrder(context.Background(), "user-1", order.ID)

	assert.Equal(t, game.ServeRecipeNotDiscovered, result.Status)
	store.AssertNotCalled(t, "ServeOrderTx", mock.Anything, mock.Anything)
}

func TestServeOrderSuccess(t *testing.T) {
	store := new(MockStore)
	notifier := &RecordingNotifier{}
	publisher := new(MockPublisher)
	svc := newTestService(store, notifier, publisher)

	order := pendingOrder("user-1", false, time.Now().Add(time.Minute))
	served := *order
	served.Status = models.OrderStatusServed

	store.On("GetOrderByID", order.ID).Return(order, nil)
	store.On("HasDiscovered", "user-1", "rcp-1").Return(true, nil)
	store.On("ServeOrderTx", order.ID, 1).
		Return(&models.Player{UserID: "user-1", Satisfaction: 21, Treasury: 1010}, &served, true, nil)
	store.On("GetRecipe", "rcp-1").Return(&models.Recipe{ID: "rcp-1", Name: "Margherita"}, nil)
	publisher.On("PublishOrderServed", mock.Anything).Return(nil)

	result := svc.ServeOrder(context.Background(), "user-1", order.ID)

	assert.Equal(t, game.ServeSuccess, result.Status)
	assert.Equal(t, 21, result.Satisfaction)
	assert.Equal(t, 1010.00, result.Treasury)
	assert.Equal(t, "Margherita", result.RecipeName)
	assert.Equal(t, 1, result.Bonus)

	stats := notifier.Events(models.EventStatsUpdate)
	require.Len(t, stats, 1)
	payload := stats[0].Payload.(models.StatsUpdateEvent)
	require.NotNil(t, payload.Satisfaction)
	require.NotNil(t, payload.Treasury)
	assert.Equal(t, 21, *payload.Satisfaction)
	assert.Equal(t, 1010.00, *payload.Treasury)
	assert.Nil(t, payload.Stars)

	publisher.AssertCalled(t, "PublishOrderServed", mock.Anything)
	assert.Empty(t, notifier.Events(models.EventGameOver))
}

func TestServeOrderVIPBonus(t *testing.T) {
	store := new(MockStore)
	publisher := new(MockPublisher)
	svc := newTestService(store, &RecordingNotifier{}, publisher)

	order := pendingOrder("user-1", true, time.Now().Add(time.Minute))
	served := *order
	served.Status = models.OrderStatusServed

	store.On("GetOrderByID", order.ID).Return(order, nil)
	store.On("HasDiscovered", "user-1", "rcp-1").Return(true, nil)
	store.On("ServeOrderTx", order.ID, 5).
		Return(&models.Player{UserID: "user-1", Satisfaction: 25, Treasury: 1015}, &served, true, nil)
	store.On("GetRecipe", "rcp-1").Return(&models.Recipe{ID: "rcp-1", Name: "Margherita"}, nil)
	publisher.On("PublishOrderServed", mock.Anything).Return(nil)

	result := svc.ServeOrder(context.Background(), "user-1", order.ID)

	assert.Equal(t, game.ServeSuccess, result.Status)
	assert.Equal(t, 5, result.Bonus)
	assert.True(t, result.IsVIP)
}

func TestServeOrderLostRaceReportsWinner(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(store, &RecordingNotifier{}, new(MockPublisher))

	order := pendingOrder("user-1", false, time.Now().Add(time.Minute))
	store.On("GetOrderByID", order.ID).Return(order, nil).Once()
	store.On("HasDiscovered", "user-1", "rcp-1").Return(true, nil)
	store.On("ServeOrderTx", order.ID, 1).Return(nil, nil, false, nil)

	// Re-read shows the watcher won.
	expired := *order
	expired.Status = models.OrderStatusExpired
	store.On("GetOrderByID", order.ID).Return(&expired, nil).Once()

	result := svc.ServeOrder(context.Background(), "user-1", order.ID)
	assert.Equal(t, game.ServeExpired, result.Status)
}

func TestExpireOrderEmitsAfterCommitOnly(t *testing.T) {
	store := new(MockStore)
	notifier := &RecordingNotifier{}
	publisher := new(MockPublisher)
	svc := newTestService(store, notifier, publisher)

	order := pendingOrder("user-1", false, time.Now().Add(-time.Second))
	store.On("ExpireOrderTx", order.ID, 10).Return(nil, false, nil)

	require.NoError(t, svc.ExpireOrder(context.Background(), *order))

	// Lost guard: another actor already resolved the order, nothing emitted.
	assert.Empty(t, notifier.events)
	publisher.AssertNotCalled(t, "PublishOrderExpired", mock.Anything)
}

func TestExpireOrderGameOverFiresOnCrossingOnly(t *testing.T) {
	store := new(MockStore)
	notifier := &RecordingNotifier{}
	publisher := new(MockPublisher)
	svc := newTestService(store, notifier, publisher)
	publisher.On("PublishOrderExpired", mock.Anything).Return(nil)
	publisher.On("PublishGameOver", "user-1", -5).Return(nil)

	// 5 → -5 crosses zero: game_over fires.
	crossing := pendingOrder("user-1", false, time.Now().Add(-time.Second))
	store.On("ExpireOrderTx", crossing.ID, 10).
		Return(&models.Player{UserID: "user-1", Satisfaction: -5}, true, nil)
	require.NoError(t, svc.ExpireOrder(context.Background(), *crossing))

	require.Len(t, notifier.Events(models.EventGameOver), 1)
	payload := notifier.Events(models.EventGameOver)[0].Payload.(models.GameOverEvent)
	assert.Equal(t, -5, payload.Satisfaction)
	publisher.AssertCalled(t, "PublishGameOver", "user-1", -5)

	// -5 → -15 stays below zero: no second game_over.
	again := pendingOrder("user-1", false, time.Now().Add(-time.Second))
	store.On("ExpireOrderTx", again.ID, 10).
		Return(&models.Player{UserID: "user-1", Satisfaction: -15}, true, nil)
	require.NoError(t, svc.ExpireOrder(context.Background(), *again))

	assert.Len(t, notifier.Events(models.EventGameOver), 1)
}

func TestConnectPlayerEnsuresAndPurges(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(store, &RecordingNotifier{}, new(MockPublisher))

	seed := db.PlayerSeed{Treasury: 1000, Satisfaction: 20, Stars: 3}
	store.On("EnsurePlayer", "user-1", seed).
		Return(&models.Player{UserID: "user-1", Satisfaction: 20, Treasury: 1000, Stars: 3}, nil)
	store.On("DeleteOverduePendingForUser", "user-1").Return(int64(2), nil)

	player, err := svc.ConnectPlayer(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 20, player.Satisfaction)
	store.AssertCalled(t, "DeleteOverduePendingForUser", "user-1")
}

func TestResetEmitsFullSnapshot(t *testing.T) {
	store := new(MockStore)
	notifier := &RecordingNotifier{}
	svc := newTestService(store, notifier, new(MockPublisher))

	seed := db.PlayerSeed{Treasury: 1000, Satisfaction: 20, Stars: 3}
	store.On("ResetPlayer", "user-1", seed).
		Return(&models.Player{UserID: "user-1", Satisfaction: 20, Treasury: 1000, Stars: 3}, nil)

	_, err := svc.Reset(context.Background(), "user-1")
	require.NoError(t, err)

	stats := notifier.Events(models.EventStatsUpdate)
	require.Len(t, stats, 1)
	payload := stats[0].Payload.(models.StatsUpdateEvent)
	require.NotNil(t, payload.Satisfaction)
	require.NotNil(t, payload.Treasury)
	require.NotNil(t, payload.Stars)
	assert.Equal(t, 3, *payload.Stars)
}
