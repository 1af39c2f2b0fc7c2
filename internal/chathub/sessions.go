package chathub

import "sync"

// SessionRegistry tracks which connections belong to which user and which
// rooms each connection follows. It is safe for concurrent use.
type SessionRegistry struct {
	mu     sync.RWMutex
	users  map[Client]int64
	joined map[Client]map[string]struct{}
	rooms  map[string]map[Client]struct{}
	byUser map[int64]map[Client]struct{}
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		users:  make(map[Client]int64),
		joined: make(map[Client]map[string]struct{}),
		rooms:  make(map[string]map[Client]struct{}),
		byUser: make(map[int64]map[Client]struct{}),
	}
}

// Connect adds c under its user. It returns false if c was already known.
func (r *SessionRegistry) Connect(c Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[c]; ok {
		return false
	}
	userID := c.GetUserID()
	r.users[c] = userID
	r.joined[c] = make(map[string]struct{})
	add(r.byUser, userID, c)
	return true
}

// Disconnect forgets c and every room subscription it held. It returns false
// if c was not connected.
func (r *SessionRegistry) Disconnect(c Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.users[c]
	if !ok {
		return false
	}
	for token := range r.joined[c] {
		remove(r.rooms, token, c)
	}
	remove(r.byUser, userID, c)
	delete(r.joined, c)
	delete(r.users, c)
	return true
}

// Subscribe makes c receive frames for the room. Unknown connections are
// ignored.
func (r *SessionRegistry) Subscribe(c Client, roomToken string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.joined[c]
	if !ok {
		return false
	}
	rooms[roomToken] = struct{}{}
	add(r.rooms, roomToken, c)
	return true
}

func (r *SessionRegistry) Unsubscribe(c Client, roomToken string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rooms, ok := r.joined[c]; ok {
		delete(rooms, roomToken)
	}
	remove(r.rooms, roomToken, c)
}

func (r *SessionRegistry) IsSubscribed(c Client, roomToken string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[roomToken][c]
	return ok
}

// RoomClients returns a snapshot of the connections following the room.
func (r *SessionRegistry) RoomClients(roomToken string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.rooms[roomToken])
}

// UserClients returns a snapshot of the user's connections.
func (r *SessionRegistry) UserClients(userID int64) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.byUser[userID])
}

// Count returns the number of live connections.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func add[K comparable](index map[K]map[Client]struct{}, key K, c Client) {
	set, ok := index[key]
	if !ok {
		set = make(map[Client]struct{})
		index[key] = set
	}
	set[c] = struct{}{}
}

func remove[K comparable](index map[K]map[Client]struct{}, key K, c Client) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(index, key)
	}
}

func snapshot(set map[Client]struct{}) []Client {
	out := make([]Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}
