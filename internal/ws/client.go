package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tablepos/api/internal/auth"
	"github.com/tablepos/api/internal/policy"
)

// EventConnected is the first frame a board receives after the upgrade.
const EventConnected = "connected"

const (
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	pingInterval = idleTimeout * 9 / 10

	// Boards only ever send control frames.
	maxInbound = 512

	sendBuffer = 256
)

// Client is one kitchen or floor board subscribed to a restaurant's events.
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	restaurantID uuid.UUID
	role         string
	send         chan []byte
}

// Handler upgrades GET /ws/orders?token=<access token> into a board
// connection. Browsers cannot set headers on the upgrade request, so the
// token travels in the query string; the room is the token's restaurant.
type Handler struct {
	hub      *Hub
	secret   string
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler. allowedOrigins follows the CORS list: "*"
// admits any origin, and requests without an Origin header (non-browser
// clients) are always admitted.
func NewHandler(hub *Hub, secret string, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		hub:    hub,
		secret: secret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := auth.ValidateToken(h.secret, token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if !policy.Allowed(policy.OpLiveEvents, claims.Role) {
		http.Error(w, "insufficient permissions", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Printf("WARNING: websocket upgrade: %v", err)
		return
	}

	c := &Client{
		hub:          h.hub,
		conn:         conn,
		restaurantID: claims.RestaurantID,
		role:         claims.Role,
		send:         make(chan []byte, sendBuffer),
	}
	c.send <- c.hello()

	if !h.hub.join(c) {
		conn.Close()
		return
	}
	go c.deliver()
	go c.listen()
}

// hello describes the subscription so a board can confirm its room.
func (c *Client) hello() []byte {
	payload, _ := json.Marshal(map[string]string{
		"restaurant_id": c.restaurantID.String(),
		"role":          c.role,
	})
	msg, _ := json.Marshal(Event{Type: EventConnected, Payload: payload})
	return msg
}

// listen consumes inbound frames until the board goes away. Pongs extend
// the idle deadline; anything else is ignored.
func (c *Client) listen() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInbound)
	c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARNING: board %s disconnected: %v", c.restaurantID, err)
			}
			return
		}
	}
}

// deliver writes one event per text frame, so each frame is a complete JSON
// document, and pings the board while idle. It stops when the hub closes
// c.send or a write fails.
func (c *Client) deliver() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
