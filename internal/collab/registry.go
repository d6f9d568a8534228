package collab

import "sync"

// Registry maps document ids to the set of sessions currently joined to
// them. Rooms exist exactly while their session set is non-empty: the last
// leave removes the room entry entirely.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Session]struct{}
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[*Session]struct{})}
}

// Join adds the session to the room for docID, creating the room if absent.
func (r *Registry) Join(docID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.rooms[docID]
	if room == nil {
		room = make(map[*Session]struct{})
		r.rooms[docID] = room
	}
	room[s] = struct{}{}
}

// Leave removes the session. Unknown rooms and absent sessions are no-ops
// (stale teardown races are expected under churn).
func (r *Registry) Leave(docID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[docID]
	if !ok {
		return
	}
	delete(room, s)
	if len(room) == 0 {
		delete(r.rooms, docID)
	}
}

// Peers returns every session in the room except the given one.
func (r *Registry) Peers(docID string, except *Session) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[docID]
	if len(room) == 0 {
		return nil
	}
	out := make([]*Session, 0, len(room))
	for s := range room {
		if s != except {
			out = append(out, s)
		}
	}
	return out
}

// HasRoom reports whether a room currently exists for docID.
func (r *Registry) HasRoom(docID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[docID]
	return ok
}

// RoomCount returns the number of active rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
