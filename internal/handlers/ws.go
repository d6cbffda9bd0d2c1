package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/chepyr/go-todo-web/internal/models"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	EventTaskCreated = "task_created"
	EventTaskUpdated = "task_updated"
	EventTaskToggled = "task_toggled"
	EventTaskDeleted = "task_deleted"

	wsWriteTimeout = 5 * time.Second
)

type TaskEvent struct {
	Event     string `json:"event"`
	TaskID    int64  `json:"task_id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// WSHub fans task events out to the open connections of each owner.
type WSHub struct {
	connections map[int64]map[*websocket.Conn]bool
	mutex       sync.Mutex
}

func NewWSHub() *WSHub {
	return &WSHub{connections: make(map[int64]map[*websocket.Conn]bool)}
}

// BroadcastTaskEvent sends an event to every connection of owner. Safe on a nil hub.
func (h *WSHub) BroadcastTaskEvent(owner int64, event string, task *models.Task) {
	if h == nil {
		return
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()

	conns, exists := h.connections[owner]
	if !exists {
		return
	}

	message, err := json.Marshal(TaskEvent{
		Event:     event,
		TaskID:    task.ID,
		Title:     task.Title,
		Completed: task.Completed,
	})
	if err != nil {
		log.Error().Err(err).Msg("marshal task event")
		return
	}

	for conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Debug().Err(err).Msg("drop websocket connection")
			delete(conns, conn)
			conn.Close()
		}
	}
	if len(conns) == 0 {
		delete(h.connections, owner)
	}
}

func (h *WSHub) register(owner int64, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.connections[owner] == nil {
		h.connections[owner] = make(map[*websocket.Conn]bool)
	}
	h.connections[owner][conn] = true
}

func (h *WSHub) unregister(owner int64, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if conns, ok := h.connections[owner]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.connections, owner)
		}
	}
}

func (h *WSHub) count(owner int64) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections[owner])
}

// GET /ws - stream task events for the current owner
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.currentOwner(w, r)
	if !ok {
		return
	}
	if h.WSHub == nil {
		sendError(w, "Live updates are disabled", http.StatusNotFound)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}
	// Upgrade answers the client itself on failure
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.WSHub.register(owner, conn)
	defer func() {
		h.WSHub.unregister(owner, conn)
		conn.Close()
	}()

	// the client never sends anything useful; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if len(h.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, allowed := range h.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
