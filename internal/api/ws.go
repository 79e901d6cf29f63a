package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"bistro-rush/internal/auth"
	"bistro-rush/internal/game"
	"bistro-rush/internal/logger"
	"bistro-rush/internal/models"
	"bistro-rush/internal/notifier"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The browser client is served from another origin during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler owns the realtime endpoint: it authenticates the handshake,
// parks the connection in the hub, and ties the generation loop's lifetime
// to the connection's.
type WSHandler struct {
	Verifier  auth.Verifier
	Hub       *notifier.Hub
	Game      *game.Service
	Generator *game.Generator
	Logger    *logger.Logger
}

func NewWSHandler(verifier auth.Verifier, hub *notifier.Hub, gameService *game.Service, generator *game.Generator, log *logger.Logger) *WSHandler {
	return &WSHandler{
		Verifier:  verifier,
		Hub:       hub,
		Game:      gameService,
		Generator: generator,
		Logger:    log,
	}
}

// Connect handles GET /ws. The token comes from the Authorization header or
// the "token" query parameter, since browsers cannot set headers on a
// websocket handshake.
func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	rawToken, err := auth.TokenFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	userID, err := h.Verifier.VerifyToken(r.Context(), rawToken)
	if err != nil {
		// The unverified subject claim is advisory, for the log only.
		claimed, _ := auth.SubjectFromJWT(rawToken)
		h.Logger.Warn("SOCKET", fmt.Sprintf("handshake rejected, claimed subject %q: %v", claimed, err))
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Error("SOCKET", fmt.Sprintf("upgrade failed for %s: %v", userID, err))
		return
	}

	player, err := h.Game.ConnectPlayer(r.Context(), userID)
	if err != nil {
		h.Logger.Error("SOCKET", fmt.Sprintf("connect prep failed for %s: %v", userID, err))
		ws.Close()
		return
	}

	conn := h.Hub.JoinChannel(userID, ws)

	// The connected frame describes this socket, so it goes to this socket
	// alone; the stats snapshot is a full replacement and fans out normally.
	h.Hub.EmitToConn(conn, models.EventConnected, models.ConnectedEvent{
		Message:  "connected",
		UserID:   userID,
		SocketID: conn.ID(),
		Room:     userID,
	})
	h.Hub.EmitToUser(userID, models.EventStatsUpdate, models.StatsFromPlayer(player))

	h.Generator.Start(userID)

	// Blocks until the peer disconnects. The generator reference is released
	// only after the hub has dropped the connection.
	conn.Run(func() {
		h.Generator.Stop(userID)
		h.Logger.LogSocket(userID, "disconnected")
	})
}
