package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Recipe struct {
	bun.BaseModel `bun:"table:recipes"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	BasePrice float64   `bun:"base_price,notnull" json:"base_price"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

type Ingredient struct {
	bun.BaseModel `bun:"table:ingredients"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Price     float64   `bun:"price,notnull" json:"price"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// RecipeIngredient links a recipe to the ingredient multiset required to
// discover it.
type RecipeIngredient struct {
	bun.BaseModel `bun:"table:recipe_ingredients"`

	RecipeID     string `bun:"recipe_id,pk" json:"recipe_id"`
	IngredientID string `bun:"ingredient_id,pk" json:"ingredient_id"`
	Quantity     int    `bun:"quantity,notnull" json:"quantity"`
}

// DiscoveredRecipe marks a recipe as unlocked for a user. Membership here is
// what makes the user eligible to receive (and serve) orders for the recipe.
type DiscoveredRecipe struct {
	bun.BaseModel `bun:"table:discovered_recipes"`

	UserID       string    `bun:"user_id,pk" json:"user_id"`
	RecipeID     string    `bun:"recipe_id,pk" json:"recipe_id"`
	DiscoveredAt time.Time `bun:"discovered_at,notnull" json:"discovered_at"`
}

// PantryItem is a user's owned stock of one ingredient.
type PantryItem struct {
	bun.BaseModel `bun:"table:pantry_items"`

	UserID       string `bun:"user_id,pk" json:"user_id"`
	IngredientID string `bun:"ingredient_id,pk" json:"ingredient_id"`
	Quantity     int    `bun:"quantity,notnull" json:"quantity"`
}
