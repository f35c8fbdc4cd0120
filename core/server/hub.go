package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"gradlab/common"
	"gradlab/core/controller"
)

// Hub fans controller events out to websocket clients.
type Hub struct {
	upgrader websocket.Upgrader
	log      common.Logger

	mutex   sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub(allowedOrigins []string, log common.Logger) *Hub {
	h := &Hub{
		log:     log,
		clients: make(map[*websocket.Conn]struct{}),
	}
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowedOrigins) == 0 {
			return true
		}
		for _, o := range allowedOrigins {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
	return h
}

// Serve upgrades the connection and keeps it until the client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade: %s", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = struct{}{}
	h.mutex.Unlock()
	h.log.Debugf("websocket client %s connected", conn.RemoteAddr())

	defer func() {
		h.mutex.Lock()
		delete(h.clients, conn)
		h.mutex.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Show implements controller.Display.
func (h *Hub) Show(ev *controller.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Errorf("encode %s event: %s", ev.Type, err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warnf("drop websocket client %s: %s", conn.RemoteAddr(), err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}
