package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Player holds the mutable per-user game state. Satisfaction is unbounded
// above; the game ends once it drops below zero. Stars are owned by the
// rating collaborator and are never mutated by the order engine.
type Player struct {
	bun.BaseModel `bun:"table:players"`

	UserID       string    `bun:"user_id,pk" json:"user_id"`
	Satisfaction int       `bun:"satisfaction,notnull" json:"satisfaction"`
	Treasury     float64   `bun:"treasury,notnull" json:"treasury"`
	Stars        int       `bun:"stars,notnull" json:"stars"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// GameOver reports whether the player has crossed the losing threshold.
func (p *Player) GameOver() bool {
	return p.Satisfaction < 0
}

// Transaction types recorded in the append-only treasury log.
const (
	TxOrderRevenue       = "order_revenue"
	TxIngredientPurchase = "ingredient_purchase"
	TxVIPBonus           = "vip_bonus"
	TxVIPPenalty         = "vip_penalty"
	TxInitialTreasury    = "initial_treasury"
)

// Transaction is an audit record appended atomically with every
// treasury-affecting mutation. It is never updated or consulted by the
// order engine itself; the reporting collaborator reads it.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions"`

	ID          string    `bun:"id,pk" json:"id"`
	UserID      string    `bun:"user_id,notnull" json:"user_id"`
	Type        string    `bun:"type,notnull" json:"type"`
	Amount      float64   `bun:"amount,notnull" json:"amount"`
	Balance     float64   `bun:"balance,notnull" json:"balance"`
	Description string    `bun:"description" json:"description"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}
