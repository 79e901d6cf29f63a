package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"bistro-rush/internal/config"
	"bistro-rush/internal/logger"
	"bistro-rush/internal/models"
	"bistro-rush/internal/monitoring"
	"bistro-rush/internal/utils"
)

// GeneratorStore is the persistence surface the generator needs.
type GeneratorStore interface {
	DiscoveredRecipes(ctx context.Context, userID string) ([]models.Recipe, error)
	CreateOrder(ctx context.Context, order *models.Order) error
}

type genLoop struct {
	refs   int
	cancel context.CancelFunc
}

// Generator runs one self-rescheduling order loop per connected user. Loops
// are reference counted: several simultaneous connections from one user share
// a single loop, which stops only when the last connection goes away.
//
// The loop schedules the next cycle only after the previous one finished, so
// slow persistence can never pile cycles on top of each other.
type Generator struct {
	store    GeneratorStore
	notifier Notifier
	events   EventPublisher
	metrics  *monitoring.Metrics
	logger   *logger.Logger
	cfg      config.GameConfig

	mu    sync.Mutex
	loops map[string]*genLoop

	randMu sync.Mutex
	rand   *rand.Rand
}

func NewGenerator(store GeneratorStore, notifier Notifier, events EventPublisher, metrics *monitoring.Metrics, log *logger.Logger, cfg config.GameConfig) *Generator {
	return &Generator{
		store:    store,
		notifier: notifier,
		events:   events,
		metrics:  metrics,
		logger:   log,
		cfg:      cfg,
		loops:    make(map[string]*genLoop),
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start begins (or joins) the generation loop for a user. Idempotent per
// user: repeat calls only bump the connection reference count.
func (g *Generator) Start(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if loop, ok := g.loops[userID]; ok {
		loop.refs++
		g.logger.LogGenerator(userID, fmt.Sprintf("connection joined existing loop (refs=%d)", loop.refs))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.loops[userID] = &genLoop{refs: 1, cancel: cancel}
	g.metrics.ConnectedPlayers.Inc()
	g.logger.LogGenerator(userID, "generation loop started")

	go g.run(ctx, userID)
}

// Stop releases one connection reference. The loop terminates, with its
// pending timer cancelled, only when the count reaches zero. Calling Stop
// without a matching Start is a no-op.
func (g *Generator) Stop(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	loop, ok := g.loops[userID]
	if !ok {
		return
	}

	loop.refs--
	if loop.refs > 0 {
		g.logger.LogGenerator(userID, fmt.Sprintf("connection left (refs=%d)", loop.refs))
		return
	}

	loop.cancel()
	delete(g.loops, userID)
	g.metrics.ConnectedPlayers.Dec()
	g.logger.LogGenerator(userID, "generation loop stopped")
}

// Shutdown cancels every running loop.
func (g *Generator) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for userID, loop := range g.loops {
		loop.cancel()
		delete(g.loops, userID)
		g.metrics.ConnectedPlayers.Dec()
	}
}

// Active returns the number of running loops.
func (g *Generator) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.loops)
}

// Refs returns the connection count for one user's loop.
func (g *Generator) Refs(userID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if loop, ok := g.loops[userID]; ok {
		return loop.refs
	}
	return 0
}

func (g *Generator) run(ctx context.Context, userID string) {
	for {
		if ctx.Err() != nil {
			return
		}

		delay := utils.RandomDuration(g.cfg.GeneratorMinDelay, g.cfg.GeneratorMaxDelay)
		timer := time.NewTimer(delay)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		g.cycle(ctx, userID)
	}
}

// cycle creates at most one order. Errors are logged and swallowed so the
// loop always reschedules.
func (g *Generator) cycle(ctx context.Context, userID string) {
	recipes, err := g.store.DiscoveredRecipes(ctx, userID)
	if err != nil {
		g.logger.Error("GENERATOR", fmt.Sprintf("[%s] recipe lookup failed: %v", userID, err))
		return
	}
	if len(recipes) == 0 {
		g.logger.Debug("GENERATOR", fmt.Sprintf("[%s] no discovered recipes, skipping cycle", userID))
		return
	}

	recipe := recipes[g.intn(len(recipes))]
	isVIP := g.float64() < g.cfg.VIPProbability

	price := recipe.BasePrice
	if isVIP {
		price = price * g.cfg.VIPMultiplier
	}
	price = utils.Round2(price)

	now := time.Now()
	order := &models.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		RecipeID:  recipe.ID,
		Status:    models.OrderStatusPending,
		Price:     price,
		IsVIP:     isVIP,
		ExpiresAt: now.Add(utils.RandomDuration(g.cfg.OrderMinTTL, g.cfg.OrderMaxTTL)),
		CreatedAt: now,
	}

	if err := g.store.CreateOrder(ctx, order); err != nil {
		g.logger.Error("GENERATOR", fmt.Sprintf("[%s] order insert failed: %v", userID, err))
		return
	}

	g.logger.LogOrder("CREATED", order.ID, fmt.Sprintf("user=%s recipe=%s vip=%t price=%.2f", userID, recipe.Name, isVIP, price))
	g.metrics.OrdersGenerated.Inc()

	g.notifier.EmitToUser(userID, models.EventNewOrder, models.NewOrderEvent{
		ID:         order.ID,
		RecipeID:   recipe.ID,
		RecipeName: recipe.Name,
		Price:      price,
		ExpiresAt:  order.ExpiresAt,
		IsVIP:      isVIP,
		CreatedAt:  order.CreatedAt,
	})

	if err := g.events.PublishOrderCreated(*order); err != nil {
		g.logger.Error("KAFKA", fmt.Sprintf("publish order_created %s: %v", order.ID, err))
	}
}

func (g *Generator) intn(n int) int {
	g.randMu.Lock()
	defer g.randMu.Unlock()
	return g.rand.Intn(n)
}

func (g *Generator) float64() float64 {
	g.randMu.Lock()
	defer g.randMu.Unlock()
	return g.rand.Float64()
}
