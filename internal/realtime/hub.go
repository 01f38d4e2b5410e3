package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
)

// Package realtime implements room-based event broadcast over live
// connections. Rooms have no persistent storage: membership lives only for
// the life of a connection, and delivery is at-most-once, best-effort.
// Clients that reconnect start with no memberships and must rejoin.

// ErrInvalidRoom is returned only for malformed room identifiers.
// Join/leave/broadcast on well-formed rooms never fail.
var ErrInvalidRoom = errors.New("realtime: invalid room id")

// Room naming convention is fixed; consumers must use exactly this format.
const (
	workspacePrefix = "workspace:"
	analysisPrefix  = "analysis:"
)

// WorkspaceRoom returns the room id for a workspace.
func WorkspaceRoom(workspaceID string) string { return workspacePrefix + workspaceID }

// AnalysisRoom returns the room id for an analysis.
func AnalysisRoom(analysisID string) string { return analysisPrefix + analysisID }

func validRoom(room string) bool {
	var id string
	switch {
	case strings.HasPrefix(room, workspacePrefix):
		id = room[len(workspacePrefix):]
	case strings.HasPrefix(room, analysisPrefix):
		id = room[len(analysisPrefix):]
	default:
		return false
	}
	return id != "" && !strings.ContainsAny(id, ": \t\n")
}

// Sender pushes one event to one connection. Implementations must be safe
// for concurrent use: the hub may deliver from multiple broadcasts at once.
// A Send error marks the event as undeliverable; it must never panic.
type Sender interface {
	Send(event string, payload any) error
}

type connection struct {
	id     string
	sender Sender
	rooms  map[string]struct{}
}

// Hub maintains room membership and fans events out to members. Membership
// mutations are serialized under a single lock so a broadcast always sees a
// consistent member list; delivery itself happens outside the lock.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]*connection
	metrics *Metrics
}

// NewHub creates an empty hub. metrics may be nil.
func NewHub(metrics *Metrics) *Hub {
	return &Hub{
		conns:   make(map[string]*connection),
		metrics: metrics,
	}
}

// Connect registers a live connection under id. The connection starts with
// no room memberships.
func (h *Hub) Connect(id string, s Sender) {
	h.mu.Lock()
	h.conns[id] = &connection{id: id, sender: s, rooms: make(map[string]struct{})}
	h.mu.Unlock()
	h.metrics.connections(1)
}

// Join adds the connection to a room. Joining a room already joined is a
// no-op, as is joining from an unknown (already disconnected) connection.
func (h *Hub) Join(connID, room string) error {
	if !validRoom(room) {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.conns[connID]; ok {
		c.rooms[room] = struct{}{}
	}
	return nil
}

// Leave removes the connection from a room. Leaving a room not joined is a
// no-op; so is leaving after disconnect.
func (h *Hub) Leave(connID, room string) error {
	if !validRoom(room) {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.conns[connID]; ok {
		delete(c.rooms, room)
	}
	return nil
}

// Disconnect releases every room membership of the connection as one
// operation and discards its identity. Further deliveries to it stop.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	_, existed := h.conns[connID]
	delete(h.conns, connID)
	h.mu.Unlock()
	if existed {
		h.metrics.connections(-1)
	}
}

// Broadcast delivers the event to every connection in the room at the
// instant of the call. Connections joining afterwards do not receive it;
// there is no replay. Events from the same call reach each member in the
// order issued because delivery is sequential over a snapshot. A failed
// send to one member is logged and never aborts delivery to the rest.
func (h *Hub) Broadcast(room, event string, payload any) error {
	return h.broadcast(room, "", event, payload)
}

// BroadcastExcept is Broadcast minus one member, used for presence echoes
// where the originator must not hear itself.
func (h *Hub) BroadcastExcept(room, exceptConnID, event string, payload any) error {
	return h.broadcast(room, exceptConnID, event, payload)
}

func (h *Hub) broadcast(room, exceptConnID, event string, payload any) error {
	if !validRoom(room) {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}

	h.mu.RLock()
	members := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		if c.id == exceptConnID {
			continue
		}
		if _, ok := c.rooms[room]; ok {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()

	h.metrics.countBroadcast(event)

	for _, c := range members {
		if err := c.sender.Send(event, payload); err != nil {
			logJSON(map[string]any{
				"component":  "realtime",
				"event":      "send_failed",
				"level":      "warn",
				"room":       room,
				"event_name": event,
				"conn_id":    c.id,
				"error":      err.Error(),
			})
		}
	}
	return nil
}

// RoomsOf returns the sorted rooms a connection currently belongs to.
func (h *Hub) RoomsOf(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.conns[connID]
	if !ok {
		return nil
	}
	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	sort.Strings(rooms)
	return rooms
}

func logJSON(data map[string]any) {
	data["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		data["level"] = "info"
	}
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
