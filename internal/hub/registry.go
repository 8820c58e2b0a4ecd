package hub

import "sync"

// Session binds a live connection to a username and a room.
type Session struct {
	ConnectionID string
	Username     string
	Room         string
}

// registry is the Connection Registry and the Room Directory in one
// structure. Both maps change under the same mutex so a room's member list
// always equals the set of sessions bound to that room.
type registry struct {
	mu       sync.RWMutex
	senders  map[string]Sender
	sessions map[string]Session
	rooms    map[string][]string // room -> connection ids in join order
}

func newRegistry() *registry {
	return &registry{
		senders:  make(map[string]Sender),
		sessions: make(map[string]Session),
		rooms:    make(map[string][]string),
	}
}

// connect stores the sender of id and reports whether id was new.
func (r *registry) connect(id string, s Sender) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed := r.senders[id]
	r.senders[id] = s
	return !existed
}

// disconnect forgets the sender of id. Later binds for id fail.
func (r *registry) disconnect(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.senders[id]
	delete(r.senders, id)
	return ok
}

func (r *registry) session(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// bind writes s as the session of its connection, moving the connection out
// of its previous room. prevEmpty reports that the previous room lost its last
// member and was removed.
func (r *registry) bind(s Session) (prevEmpty bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.senders[s.ConnectionID]; !ok {
		return false, ErrUnknownConnection
	}

	prev, had := r.sessions[s.ConnectionID]
	if had && prev.Room != s.Room {
		prevEmpty = r.removeMemberLocked(prev.Room, s.ConnectionID)
	}
	if !had || prev.Room != s.Room {
		r.rooms[s.Room] = append(r.rooms[s.Room], s.ConnectionID)
	}
	r.sessions[s.ConnectionID] = s
	return prevEmpty, nil
}

// unbind removes the session of id if it is still bound to room.
func (r *registry) unbind(id, room string) (s Session, roomEmpty bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok = r.sessions[id]
	if !ok || s.Room != room {
		return Session{}, false, false
	}
	delete(r.sessions, id)
	return s, r.removeMemberLocked(room, id), true
}

func (r *registry) removeMemberLocked(room, id string) bool {
	members := r.rooms[room]
	for i, member := range members {
		if member == id {
			members = append(members[:i:i], members[i+1:]...)
			break
		}
	}
	if len(members) == 0 {
		delete(r.rooms, room)
		return true
	}
	r.rooms[room] = members
	return false
}

// members resolves the room's member list to sessions in join order. Ids that
// no longer resolve to a session of this room are skipped.
func (r *registry) members(room string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.rooms[room]
	out := make([]Session, 0, len(ids))
	for _, id := range ids {
		s, ok := r.sessions[id]
		if !ok || s.Room != room {
			continue
		}
		out = append(out, s)
	}
	return out
}

// recipients returns the senders of every member of room except the
// connection named by except.
func (r *registry) recipients(room, except string) []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Sender, 0, len(r.rooms[room]))
	for _, id := range r.rooms[room] {
		if id == except {
			continue
		}
		if s, ok := r.senders[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (r *registry) sender(id string) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[id]
	return s, ok
}

func (r *registry) roomExists(room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room]
	return ok
}

func (r *registry) counts() (rooms, sessions int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms), len(r.sessions)
}
