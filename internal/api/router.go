package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bistro-rush/internal/auth"
	"bistro-rush/internal/logger"
	"bistro-rush/internal/monitoring"
)

// requestLogger records method, path, status and latency for every API call.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start).Round(time.Millisecond).String())
		})
	}
}

// NewRouter wires all routes. REST routes sit behind the auth middleware; the
// websocket endpoint authenticates inside its own handler because browsers
// cannot send an Authorization header on the handshake.
func NewRouter(handler *Handler, wsHandler *WSHandler, verifier auth.Verifier, metrics *monitoring.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)

	r.Get("/health", handler.Health)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/ws", wsHandler.Connect)

	r.Group(func(r chi.Router) {
		r.Use(requestLogger(handler.Logger))
		r.Use(auth.Middleware(verifier))

		r.Post("/api/v1/orders/{orderId}/serve", handler.ServeOrder)
		r.Get("/api/v1/orders", handler.ListOrders)
		r.Get("/api/v1/stats", handler.GetStats)
		r.Get("/api/v1/transactions", handler.ListTransactions)
		r.Post("/api/v1/reset", handler.Reset)

		r.Get("/api/v1/pantry", handler.GetPantry)
		r.Get("/api/v1/pantry/ingredients", handler.ListIngredients)
		r.Post("/api/v1/pantry/purchase", handler.PurchaseIngredient)

		r.Get("/api/v1/recipes", handler.ListRecipes)
		r.Post("/api/v1/recipes/discover", handler.DiscoverRecipe)
	})

	return r
}
