package hub

// Presence returns the online view of room. A room nobody is bound to has
// count 0.
func (h *Hub) Presence(room string) PresencePayload {
	members := h.registry.members(room)
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Username)
	}
	return PresencePayload{Count: len(names), Usernames: names}
}

// broadcastPresence sends the current online view of room to all of its
// members. Callers hold the room's section.
func (h *Hub) broadcastPresence(room string) {
	h.broadcast(room, Event{Type: EventPresence, Data: h.Presence(room)}, "")
}
