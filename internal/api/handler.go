package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bistro-rush/internal/auth"
	"bistro-rush/internal/game"
	"bistro-rush/internal/game/db"
	"bistro-rush/internal/logger"
	"bistro-rush/internal/pantry"
	"bistro-rush/internal/utils"
)

type Handler struct {
	Game   *game.Service
	Pantry *pantry.Service
	Logger *logger.Logger
}

func NewHandler(gameService *game.Service, pantryService *pantry.Service, log *logger.Logger) *Handler {
	return &Handler{
		Game:   gameService,
		Pantry: pantryService,
		Logger: log,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

// serveStatusCode maps a serve outcome to its HTTP status.
func serveStatusCode(status game.ServeStatus) int {
	switch status {
	case game.ServeSuccess:
		return http.StatusOK
	case game.ServeInvalidInput:
		return http.StatusBadRequest
	case game.ServeNotFound:
		return http.StatusNotFound
	case game.ServeForbidden:
		return http.StatusForbidden
	case game.ServeAlreadyServed:
		return http.StatusConflict
	case game.ServeExpired:
		return http.StatusGone
	case game.ServeRecipeNotDiscovered:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ServeOrder handles POST /api/v1/orders/{orderId}/serve.
func (h *Handler) ServeOrder(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("ServeOrder: user=%s orderId=%s", userID, orderID))

	result := h.Game.ServeOrder(r.Context(), userID, orderID)
	code := serveStatusCode(result.Status)

	if result.Status != game.ServeSuccess {
		h.writeJSON(w, code, utils.ErrorResponse(result.Message, string(result.Status)))
		return
	}

	h.writeJSON(w, code, utils.SuccessResponse("order served", map[string]interface{}{
		"satisfaction": result.Satisfaction,
		"treasury":     result.Treasury,
		"recipe_name":  result.RecipeName,
		"is_vip":       result.IsVIP,
		"bonus":        result.Bonus,
	}))
}

// ListOrders handles GET /api/v1/orders. ?status=pending narrows the result
// to unresolved orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var (
		orders interface{}
		err    error
	)
	if r.URL.Query().Get("status") == "pending" {
		orders, err = h.Game.PendingOrders(r.Context(), userID)
	} else {
		orders, err = h.Game.Orders(r.Context(), userID)
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListOrders: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("could not load orders", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("orders", orders))
}

// GetStats handles GET /api/v1/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	player, err := h.Game.Player(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("player not found", "connect first to create a session"))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GetStats: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("could not load stats", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("stats", player))
}

// ListTransactions handles GET /api/v1/transactions, the treasury audit log.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := h.Game.Transactions(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListTransactions: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("could not load transactions", err.Error()))
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("transactions", records))
}

// Reset handles POST /api/v1/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	h.Logger.Info("API", fmt.Sprintf("Reset: user=%s", userID))

	player, err := h.Game.Reset(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Reset: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("could not reset game", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("game reset", player))
}

// ListIngredients handles GET /api/v1/pantry/ingredients.
func (h *Handler) ListIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.Pantry.Ingredients(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListIngredients: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("could not load ingredients", err.Error()))
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("ingredients", ingredients))
}

// GetPantry handles GET /api/v1/pantry.
func (h *Handler) GetPantry(w http.ResponseWriter, r *http.Request) {
	items, err := h.Pantry.Items(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetPantry: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("could not load pantry", err.Error()))
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("pantry", items))
}

// PurchaseIngredient handles POST /api/v1/pantry/purchase.
func (h *Handler) PurchaseIngredient(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req struct {
		IngredientID string `json:"ingredient_id"`
		Quantity     int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if req.IngredientID == "" || req.Quantity <= 0 {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request", "ingredient_id and a positive quantity are required"))
		return
	}

	player, err := h.Pantry.Purchase(r.Context(), userID, req.IngredientID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrInsufficientFunds):
			h.writeJSON(w, http.StatusPaymentRequired, utils.ErrorResponse("not enough funds", err.Error()))
		case errors.Is(err, sql.ErrNoRows):
			h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("ingredient not found", err.Error()))
		default:
			h.Logger.Error("API", fmt.Sprintf("PurchaseIngredient: %v", err))
			h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("could not complete purchase", err.Error()))
		}
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("ingredient purchased", map[string]interface{}{
		"treasury": player.Treasury,
	}))
}

// ListRecipes handles GET /api/v1/recipes, returning discovered recipes.
func (h *Handler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.Pantry.Recipes(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListRecipes: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("could not load recipes", err.Error()))
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("recipes", recipes))
}

// DiscoverRecipe handles POST /api/v1/recipes/discover.
func (h *Handler) DiscoverRecipe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req struct {
		Ingredients map[string]int `json:"ingredients"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if len(req.Ingredients) == 0 {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request", "at least one ingredient is required"))
		return
	}
	for id, qty := range req.Ingredients {
		if id == "" || qty <= 0 {
			h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request", "ingredient quantities must be positive"))
			return
		}
	}

	recipe, err := h.Pantry.Discover(r.Context(), userID, req.Ingredients)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNoMatchingRecipe):
			h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("no recipe matches that combination", err.Error()))
		case errors.Is(err, db.ErrAlreadyDiscovered):
			h.writeJSON(w, http.StatusConflict, utils.ErrorResponse("recipe already discovered", err.Error()))
		case errors.Is(err, db.ErrMissingIngredients):
			h.writeJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("pantry is missing required ingredients", err.Error()))
		default:
			h.Logger.Error("API", fmt.Sprintf("DiscoverRecipe: %v", err))
			h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("could not discover recipe", err.Error()))
		}
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("recipe discovered", recipe))
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
