package avoidhelm

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// Viewers are read-only; any origin may watch.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeWait = 5 * time.Second

// VisualHub streams polygon drawings to connected viewers.
type VisualHub struct {
	clients map[*websocket.Conn]bool
	mutex   sync.Mutex
	logger  *slog.Logger
}

var _ Broadcaster = (*VisualHub)(nil)

func NewVisualHub(logger *slog.Logger) *VisualHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &VisualHub{
		clients: make(map[*websocket.Conn]bool),
		logger:  logger,
	}
}

// HandleWebSocket registers a viewer and holds the connection until it
// closes. Messages from viewers are ignored.
func (v *VisualHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		v.logger.Warn("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	v.mutex.Lock()
	v.clients[conn] = true
	v.mutex.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			v.logger.Debug("viewer disconnected", "error", err)
			v.mutex.Lock()
			delete(v.clients, conn)
			v.mutex.Unlock()
			return
		}
	}
}

// Broadcast sends message to every viewer, dropping viewers that fail.
func (v *VisualHub) Broadcast(message []byte) {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	for client := range v.clients {
		_ = client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			v.logger.Debug("failed to send to viewer", "error", err)
			client.Close()
			delete(v.clients, client)
		}
	}
}

// Clients is the number of connected viewers.
func (v *VisualHub) Clients() int {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return len(v.clients)
}
