package models

import "time"

// Realtime event names pushed over a user's channel.
const (
	EventConnected        = "connected"
	EventNewOrder         = "new_order"
	EventOrderExpired     = "order_expired"
	EventStatsUpdate      = "stats_update"
	EventGameOver         = "game_over"
	EventRecipeDiscovered = "recipe_discovered"
)

type ConnectedEvent struct {
	Message  string `json:"message"`
	UserID   string `json:"userId"`
	SocketID string `json:"socketId"`
	Room     string `json:"room"`
}

type NewOrderEvent struct {
	ID         string    `json:"id"`
	RecipeID   string    `json:"recipe_id"`
	RecipeName string    `json:"recipe_name"`
	Price      float64   `json:"price"`
	ExpiresAt  time.Time `json:"expires_at"`
	IsVIP      bool      `json:"is_vip"`
	CreatedAt  time.Time `json:"created_at"`
}

type OrderExpiredEvent struct {
	OrderID string `json:"orderId"`
}

// StatsUpdateEvent carries any subset of the ledger fields. Clients apply
// each emission as a full-replacement snapshot of the fields present, in
// receipt order.
type StatsUpdateEvent struct {
	Satisfaction *int     `json:"satisfaction,omitempty"`
	Treasury     *float64 `json:"treasury,omitempty"`
	Stars        *int     `json:"stars,omitempty"`
}

// StatsFromPlayer builds a full three-field snapshot.
func StatsFromPlayer(p *Player) StatsUpdateEvent {
	satisfaction := p.Satisfaction
	treasury := p.Treasury
	stars := p.Stars
	return StatsUpdateEvent{Satisfaction: &satisfaction, Treasury: &treasury, Stars: &stars}
}

type RecipeDiscoveredEvent struct {
	RecipeID   string  `json:"recipe_id"`
	RecipeName string  `json:"recipe_name"`
	BasePrice  float64 `json:"base_price"`
}

type GameOverEvent struct {
	Reason       string `json:"reason"`
	Satisfaction int    `json:"satisfaction"`
}
