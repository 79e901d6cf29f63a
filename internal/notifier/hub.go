package notifier

import (
	"encoding/json"
	"fmt"
	"sync"

	"bistro-rush/internal/logger"
	"bistro-rush/internal/utils"

	"github.com/gorilla/websocket"
)

// envelope is the wire frame for every pushed event.
type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Hub fans events out to per-user rooms. Membership is keyed by user id, not
// by connection: every simultaneous connection of one user receives every
// emission. Delivery is best-effort, at-most-once; a full client buffer
// drops the frame rather than blocking the emitter.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string][]*Conn
	logger *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string][]*Conn),
		logger: log,
	}
}

// JoinChannel registers a websocket connection in the user's room and
// returns the connection handle. The caller starts the pumps.
func (h *Hub) JoinChannel(userID string, ws *websocket.Conn) *Conn {
	conn := &Conn{
		id:     utils.GenerateSocketID(),
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, 256),
		hub:    h,
	}

	h.mu.Lock()
	h.rooms[userID] = append(h.rooms[userID], conn)
	members := len(h.rooms[userID])
	h.mu.Unlock()

	h.logger.LogSocket(userID, fmt.Sprintf("connection %s joined room (members=%d)", conn.id, members))
	return conn
}

func (h *Hub) remove(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[conn.userID]
	for i, c := range members {
		if c == conn {
			h.rooms[conn.userID] = append(members[:i], members[i+1:]...)
			conn.closeSend()
			break
		}
	}
	if len(h.rooms[conn.userID]) == 0 {
		delete(h.rooms, conn.userID)
	}
}

// EmitToUser pushes one event to every connection in the user's room.
// Never blocks: slow consumers lose frames.
func (h *Hub) EmitToUser(userID, event string, payload interface{}) {
	data, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("SOCKET", fmt.Sprintf("marshal %s for %s: %v", event, userID, err))
		return
	}

	h.mu.RLock()
	members := make([]*Conn, len(h.rooms[userID]))
	copy(members, h.rooms[userID])
	h.mu.RUnlock()

	// Members are a snapshot; a connection may be removed between the copy
	// and the enqueue, in which case the frame is silently dropped.
	for _, conn := range members {
		if !conn.enqueue(data) {
			h.logger.Warn("SOCKET", fmt.Sprintf("dropping %s for %s, buffer full or closing", event, conn.id))
		}
	}
}

// EmitToConn pushes one event to a single connection, bypassing the room.
// For handshake frames that belong to exactly one socket.
func (h *Hub) EmitToConn(conn *Conn, event string, payload interface{}) {
	data, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("SOCKET", fmt.Sprintf("marshal %s for %s: %v", event, conn.userID, err))
		return
	}

	if !conn.enqueue(data) {
		h.logger.Warn("SOCKET", fmt.Sprintf("dropping %s for %s, buffer full or closing", event, conn.id))
	}
}

// CountForUser returns the number of live connections in a user's room.
func (h *Hub) CountForUser(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}
