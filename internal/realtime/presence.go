package realtime

// Presence re-broadcasts "active" signals to workspace rooms. It keeps no
// presence table; liveness is reconstructed entirely from live signals.
type Presence struct {
	hub *Hub
}

// NewPresence wraps a hub with presence semantics.
func NewPresence(hub *Hub) *Presence {
	return &Presence{hub: hub}
}

// Announce tells every other member of the workspace room that the user
// behind connID is active. The originator is excluded from delivery.
func (p *Presence) Announce(connID, workspaceID, userID, userName string) error {
	return p.hub.BroadcastExcept(
		WorkspaceRoom(workspaceID),
		connID,
		EventUserPresence,
		PresencePayload{Type: "active", UserID: userID, UserName: userName},
	)
}
