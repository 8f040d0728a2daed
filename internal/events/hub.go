package events

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"
)

const clientBuffer = 64

// ──────────────────── WebSocket Hub ────────────────────

type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool

	tasksMu     sync.RWMutex
	activeTasks map[string][]byte // task_id → last task:update payload
}

type client struct {
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*client]bool),
		activeTasks: make(map[string][]byte),
	}
}

func (h *Hub) Publish(event string, data interface{}) {
	msg, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		log.Error().Str("component", "events").Str("event", event).Err(err).Msg("encode event")
		return
	}

	if event == TaskUpdate {
		h.trackTask(data, msg)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// trackTask keeps the last state of each running task so late subscribers
// see it on connect.
func (h *Hub) trackTask(data interface{}, raw []byte) {
	var state TaskState
	switch v := data.(type) {
	case TaskState:
		state = v
	case *TaskState:
		state = *v
	case json.RawMessage:
		if json.Unmarshal(v, &state) != nil {
			return
		}
	default:
		return
	}
	if state.TaskID == "" {
		return
	}

	h.tasksMu.Lock()
	defer h.tasksMu.Unlock()
	if state.Status == TaskComplete || state.Status == TaskFailed {
		delete(h.activeTasks, state.TaskID)
	} else {
		h.activeTasks[state.TaskID] = raw
	}
}

func (h *Hub) replayTasks(c *client) {
	h.tasksMu.RLock()
	defer h.tasksMu.RUnlock()
	for _, msg := range h.activeTasks {
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (h *Hub) subscribe() *client {
	c := &client{send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	h.replayTasks(c)
	return c
}

func (h *Hub) unsubscribe(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ──────────────────── WebSocket Handler ────────────────────

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		log.Warn().Str("component", "events").Err(err).Msg("websocket accept")
		return
	}

	c := h.subscribe()
	log.Debug().Str("component", "events").Str("remote", r.RemoteAddr).Msg("subscriber connected")
	ctx := r.Context()

	go func() {
		defer conn.Close(websocket.StatusNormalClosure, "")
		for msg := range c.send {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()

	// Reads only keep the connection alive; subscribers never send.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	h.unsubscribe(c)
	log.Debug().Str("component", "events").Str("remote", r.RemoteAddr).Msg("subscriber disconnected")
}
