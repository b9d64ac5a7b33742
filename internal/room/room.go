package room

import (
	"math/rand"
	"strconv"
	"sync"
)

// Role is a participant's permission level within a room.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// ParseRole maps a wire string to a Role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleOwner, RoleEditor, RoleViewer:
		return Role(s), true
	}
	return "", false
}

// Reports whether the role may mutate document content.
func (r Role) CanEdit() bool {
	return r == RoleEditor || r == RoleOwner
}

// Reports whether the role may change roles or remove members.
// Editors do not inherit management rights.
func (r Role) CanManage() bool {
	return r == RoleOwner
}

// One connection's identity within a room.
type Participant struct {
	Role     Role   `json:"role"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

// A collaborative editing session: one authoritative document and a
// membership set keyed by connection id. All mutation happens on the
// hub's event loop; the mutex covers read-only access from the HTTP
// and snapshot layers.
type Room struct {
	ID string

	mu       sync.RWMutex
	ownerID  string
	users    map[string]Participant
	content  string
	hydrated bool
}

func newRoom(id string) *Room {
	return &Room{
		ID:    id,
		users: make(map[string]Participant),
	}
}

// Join upserts the participant record for connID and returns the
// effective role. Re-joining with the same connection id overwrites
// identity fields in place; a name change is literally a re-join.
//
// The owner slot is claimed by the first joiner who asks for it and is
// never reassigned at join time: asking for owner while the room
// already has one yields editor instead.
func (r *Room) Join(connID string, role Role, username, color string) Role {
	r.mu.Lock()
	defer r.mu.Unlock()

	if role == RoleOwner {
		if r.ownerID == "" {
			r.ownerID = connID
		} else if r.ownerID != connID {
			role = RoleEditor
		}
	}

	r.users[connID] = Participant{Role: role, Username: username, Color: color}
	return role
}

// Leave removes connID's participant record. The room itself survives;
// ownership is not transferred when the owner leaves.
func (r *Room) Leave(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[connID]; !ok {
		return false
	}
	delete(r.users, connID)
	return true
}

func (r *Room) Participant(connID string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.users[connID]
	return p, ok
}

// SetRole overwrites the target's role. Returns false if the target is
// not a current member.
func (r *Room) SetRole(connID string, role Role) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.users[connID]
	if !ok {
		return false
	}
	p.Role = role
	r.users[connID] = p
	return true
}

// Users returns a copy of the membership map.
func (r *Room) Users() map[string]Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make(map[string]Participant, len(r.users))
	for id, p := range r.users {
		users[id] = p
	}
	return users
}

func (r *Room) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (r *Room) Content() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.content
}

// SetContent replaces the authoritative document. Any edit makes the
// in-memory content authoritative, so this also marks the room
// hydrated: a storage load still in flight must not clobber it.
func (r *Room) SetContent(content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.content = content
	r.hydrated = true
}

// Hydrate populates content from storage exactly once. It reports
// false without touching content if the room was already hydrated,
// whether by an earlier load or by an edit that raced the load.
func (r *Room) Hydrate(content string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hydrated {
		return false
	}
	r.content = content
	r.hydrated = true
	return true
}

func (r *Room) Hydrated() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hydrated
}

func (r *Room) OwnerID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ownerID
}

// Registry is the single owned store of all rooms for the process
// lifetime. Rooms are never evicted, even when empty.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Create allocates a fresh 6-digit room id, retrying on collision, and
// registers an empty room under it.
func (g *Registry) Create() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		id := strconv.Itoa(100000 + rand.Intn(900000))
		if _, taken := g.rooms[id]; !taken {
			g.rooms[id] = newRoom(id)
			return id
		}
	}
}

func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[id]
	return r, ok
}

func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Rooms returns a snapshot of all registered rooms.
func (g *Registry) Rooms() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// RemoveConnection sweeps connID out of every room it appears in and
// returns the affected rooms. A connection belongs to at most one room
// in normal operation; the sweep is defined over all rooms for
// robustness.
func (g *Registry) RemoveConnection(connID string) []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var affected []*Room
	for _, r := range g.rooms {
		if r.Leave(connID) {
			affected = append(affected, r)
		}
	}
	return affected
}
