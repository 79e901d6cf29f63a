package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Order statuses. Transitions are monotonic: pending may become served or
// expired, terminal states never change again.
const (
	OrderStatusPending = "pending"
	OrderStatusServed  = "served"
	OrderStatusExpired = "expired"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID        string    `bun:"id,pk" json:"id"`
	UserID    string    `bun:"user_id,notnull" json:"user_id"`
	RecipeID  string    `bun:"recipe_id,notnull" json:"recipe_id"`
	Status    string    `bun:"status,notnull" json:"status"`
	Price     float64   `bun:"price,notnull" json:"price"`
	IsVIP     bool      `bun:"is_vip,notnull" json:"is_vip"`
	ExpiresAt time.Time `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Pending reports whether the order can still be served or expired.
func (o *Order) Pending() bool {
	return o.Status == OrderStatusPending
}

// Overdue reports whether the order's deadline has passed at the given instant.
func (o *Order) Overdue(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
