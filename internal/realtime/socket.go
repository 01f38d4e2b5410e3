package realtime

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Socket message protocol. Clients send actions; the server answers with
// acks and pushes hub events through the same connection.
const (
	// Client -> server actions
	ActionJoin   = "join"
	ActionLeave  = "leave"
	ActionActive = "active"

	// Server -> client event names (hub events use their own names)
	eventConnected = "connected"
	eventAck       = "ack"
	eventError     = "error"
)

// clientMessage is what socket clients send.
type clientMessage struct {
	Action      string `json:"action"`
	Room        string `json:"room,omitempty"`
	WorkspaceID string `json:"workspaceId,omitempty"`
}

// serverMessage is the envelope for everything pushed to a client.
type serverMessage struct {
	Event     string `json:"event"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// wsSender adapts a websocket connection to the hub's Sender. The mutex
// serializes writes: hub broadcasts and read-loop acks share the socket.
type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSender) Send(event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(serverMessage{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Upgrade gates the socket route: non-upgrade requests get 426.
func Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Handler serves one socket connection: register with the hub, loop over
// client actions, and release all memberships on disconnect. Identity
// arrives as query params, already authenticated upstream.
func Handler(hub *Hub, presence *Presence) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		connID := uuid.NewString()
		userID := c.Query("userId")
		userName := c.Query("userName")

		sender := &wsSender{conn: c}
		hub.Connect(connID, sender)
		defer hub.Disconnect(connID)

		_ = sender.Send(eventConnected, fiber.Map{"connectionId": connID})

		for {
			var msg clientMessage
			if err := c.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logJSON(map[string]any{
						"component": "realtime",
						"event":     "socket_read_failed",
						"level":     "warn",
						"conn_id":   connID,
						"error":     err.Error(),
					})
				}
				return
			}

			switch msg.Action {
			case ActionJoin:
				if err := hub.Join(connID, msg.Room); err != nil {
					_ = sender.Send(eventError, errorPayload{Message: err.Error(), Code: "INVALID_ROOM"})
					continue
				}
				_ = sender.Send(eventAck, fiber.Map{"action": ActionJoin, "room": msg.Room})
			case ActionLeave:
				if err := hub.Leave(connID, msg.Room); err != nil {
					_ = sender.Send(eventError, errorPayload{Message: err.Error(), Code: "INVALID_ROOM"})
					continue
				}
				_ = sender.Send(eventAck, fiber.Map{"action": ActionLeave, "room": msg.Room})
			case ActionActive:
				_ = presence.Announce(connID, msg.WorkspaceID, userID, userName)
			default:
				_ = sender.Send(eventError, errorPayload{Message: "unknown action: " + msg.Action, Code: "INVALID_ACTION"})
			}
		}
	})
}
