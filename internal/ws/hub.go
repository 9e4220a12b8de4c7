package ws

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

const sendQueueSize = 32

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one websocket connection. Its writer goroutine drains send, so a
// slow socket only ever backs up its own queue.
type Client struct {
	UserID string
	Conn   Conn
	send   chan []byte
}

func NewClient(userID string, conn Conn) *Client {
	return &Client{UserID: userID, Conn: conn, send: make(chan []byte, sendQueueSize)}
}

type delivery struct {
	userIDs []string // empty means everyone
	message []byte
}

// Hub fans messages out to connected users. Only Run touches the client map;
// the mutex guards reads from Online.
type Hub struct {
	clients    map[string]map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	deliveries chan delivery
	mutex      sync.RWMutex
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		deliveries: make(chan delivery, 256),
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.Register:
			if c.send == nil {
				c.send = make(chan []byte, sendQueueSize)
			}
			h.mutex.Lock()
			if h.clients[c.UserID] == nil {
				h.clients[c.UserID] = make(map[*Client]bool)
			}
			h.clients[c.UserID][c] = true
			h.mutex.Unlock()
			go h.writePump(c)
			h.log.Debug("ws client connected", zap.String("user_id", c.UserID))

		case c := <-h.Unregister:
			h.mutex.Lock()
			h.remove(c)
			h.mutex.Unlock()

		case d := <-h.deliveries:
			h.mutex.Lock()
			if len(d.userIDs) == 0 {
				for _, clients := range h.clients {
					h.offer(clients, d.message)
				}
			} else {
				for _, userID := range d.userIDs {
					h.offer(h.clients[userID], d.message)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// offer queues message without blocking. A client whose queue is full is
// dropped. Must be called with the mutex held.
func (h *Hub) offer(clients map[*Client]bool, message []byte) {
	for c := range clients {
		select {
		case c.send <- message:
		default:
			h.log.Warn("ws client too slow, dropping connection", zap.String("user_id", c.UserID))
			h.remove(c)
		}
	}
}

func (h *Hub) writePump(c *Client) {
	for message := range c.send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.Unregister <- c
			return
		}
	}
}

// remove must be called with the mutex held.
func (h *Hub) remove(c *Client) {
	clients, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := clients[c]; ok {
		delete(clients, c)
		close(c.send)
		c.Conn.Close()
	}
	if len(clients) == 0 {
		delete(h.clients, c.UserID)
	}
}

// SendToUsers queues payload for every connection of the given users.
func (h *Hub) SendToUsers(payload interface{}, userIDs ...string) {
	if len(userIDs) == 0 {
		return
	}
	h.enqueue(payload, userIDs)
}

func (h *Hub) Broadcast(payload interface{}) {
	h.enqueue(payload, nil)
}

// enqueue never blocks the caller; notifications are best effort.
func (h *Hub) enqueue(payload interface{}, userIDs []string) {
	msg, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("ws payload marshal failed", zap.Error(err))
		return
	}
	select {
	case h.deliveries <- delivery{userIDs: userIDs, message: msg}:
	default:
		h.log.Warn("ws delivery queue full, message dropped", zap.Strings("user_ids", userIDs))
	}
}

func (h *Hub) Online(userID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients[userID]) > 0
}
