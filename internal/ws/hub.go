package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/priyankverma/cowrite/backend/internal/patch"
	"github.com/priyankverma/cowrite/backend/internal/room"
	"github.com/priyankverma/cowrite/backend/internal/store"
)

// Hub relays room events between clients. Every room-mutating event is
// handled one at a time on the Run loop, which is the system's single
// serialization point: patches are applied to room content and
// broadcast in exactly the order they are accepted here.
type Hub struct {
	registry *room.Registry
	store    *store.Store // may be nil (persistence disabled)

	// Live connections by connection id
	clients map[string]*Client

	// Joiners waiting for their room's first-ever storage load,
	// by room id.
	pending map[string][]string

	register   chan *Client
	unregister chan *Client
	inbound    chan *inboundMessage
	hydrations chan *hydration
	saves      chan saveRequest

	mu sync.RWMutex
}

type inboundMessage struct {
	sender *Client
	env    Envelope
}

type hydration struct {
	roomID  string
	content string
}

type saveRequest struct {
	roomID  string
	content string
}

func NewHub(registry *room.Registry, st *store.Store) *Hub {
	return &Hub{
		registry:   registry,
		store:      st,
		clients:    make(map[string]*Client),
		pending:    make(map[string][]string),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *inboundMessage),
		hydrations: make(chan *hydration),
		saves:      make(chan saveRequest, 256),
	}
}

func (h *Hub) Run() {
	go h.runSaver()

	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.inbound:
			h.dispatch(msg)

		case hy := <-h.hydrations:
			h.finishHydration(hy)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	log.Printf("Client connected: %s (total: %d)", c.id, h.GetClientCount())
}

// removeClient handles transport disconnect: the connection's
// membership is swept from every room and each affected room gets a
// fresh membership broadcast.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()

	for _, rm := range h.registry.RemoveConnection(c.id) {
		h.broadcastUsers(rm)
	}
	log.Printf("Client disconnected: %s", c.id)
}

func (h *Hub) dispatch(msg *inboundMessage) {
	switch msg.env.Event {
	case EventJoinRoom:
		var p JoinRoomPayload
		if json.Unmarshal(msg.env.Data, &p) == nil {
			h.handleJoin(msg.sender, p)
		}
	case EventApplyPatch:
		var p ApplyPatchPayload
		if json.Unmarshal(msg.env.Data, &p) == nil {
			h.handlePatch(msg.sender, p)
		}
	case EventCursorMove:
		var p CursorMovePayload
		if json.Unmarshal(msg.env.Data, &p) == nil {
			h.handleCursor(msg.sender, p)
		}
	case EventChangeRole:
		var p ChangeRolePayload
		if json.Unmarshal(msg.env.Data, &p) == nil {
			h.handleChangeRole(msg.sender, p)
		}
	case EventKickUser:
		var p KickUserPayload
		if json.Unmarshal(msg.env.Data, &p) == nil {
			h.handleKick(msg.sender, p)
		}
	default:
		log.Printf("Unknown event %q from client %s", msg.env.Event, msg.sender.id)
	}
}

// handleJoin admits a connection into a room, or updates its identity
// in place when it is already a member (a name change is a re-join).
func (h *Hub) handleJoin(c *Client, p JoinRoomPayload) {
	rm, ok := h.registry.Get(p.RoomID)
	if !ok {
		h.sendTo(c.id, encodeEvent(EventError, "Room does not exist"))
		return
	}

	role, ok := room.ParseRole(p.Role)
	if !ok {
		role = room.RoleViewer
	}
	effective := rm.Join(c.id, role, p.Username, p.Color)

	if rm.Hydrated() {
		h.sendTo(c.id, encodeEvent(EventLoadCode, LoadCodePayload{
			Code: rm.Content(),
			Role: string(effective),
		}))
	} else {
		// First-ever join this process lifetime: hydrate from storage
		// off the loop. Later joiners queue behind the same load.
		h.pending[rm.ID] = append(h.pending[rm.ID], c.id)
		if len(h.pending[rm.ID]) == 1 {
			h.startHydration(rm.ID)
		}
	}

	h.broadcastUsers(rm)
}

func (h *Hub) startHydration(roomID string) {
	if h.store == nil {
		h.finishHydration(&hydration{roomID: roomID})
		return
	}
	go func() {
		content, err := h.store.LoadDocument(roomID)
		if err != nil {
			// Fall back to empty content; the join still succeeds.
			log.Printf("Failed to load document for room %s: %v", roomID, err)
			content = ""
		}
		h.hydrations <- &hydration{roomID: roomID, content: content}
	}()
}

// finishHydration lands a storage load back on the loop. The room
// gates the populate step: if an edit beat the load, the loaded
// content is stale and is discarded.
func (h *Hub) finishHydration(hy *hydration) {
	rm, ok := h.registry.Get(hy.roomID)
	if !ok {
		return
	}
	rm.Hydrate(hy.content)

	for _, connID := range h.pending[hy.roomID] {
		p, ok := rm.Participant(connID)
		if !ok {
			continue // left or was kicked while waiting
		}
		h.sendTo(connID, encodeEvent(EventLoadCode, LoadCodePayload{
			Code: rm.Content(),
			Role: string(p.Role),
		}))
	}
	delete(h.pending, hy.roomID)
}

// handlePatch applies an accepted patch to the authoritative document,
// queues the durable save, and relays the patch to everyone else in
// the room. Viewer and unrecognized connections are dropped silently.
func (h *Hub) handlePatch(c *Client, p ApplyPatchPayload) {
	rm, ok := h.registry.Get(p.RoomID)
	if !ok {
		return
	}
	part, ok := rm.Participant(c.id)
	if !ok || !part.Role.CanEdit() {
		return
	}
	if p.Patch.IsNoop() {
		return
	}

	updated := patch.Apply(rm.Content(), p.Patch)
	rm.SetContent(updated)
	h.enqueueSave(rm.ID, updated)

	h.broadcastRoom(rm, c.id, encodeEvent(EventRemotePatch, RemotePatchPayload{
		Patch:    p.Patch,
		SenderID: c.id,
	}))
}

// Cursor positions are relayed for any current member; they carry no
// mutation rights and need no role check.
func (h *Hub) handleCursor(c *Client, p CursorMovePayload) {
	rm, ok := h.registry.Get(p.RoomID)
	if !ok {
		return
	}
	if _, ok := rm.Participant(c.id); !ok {
		return
	}

	h.broadcastRoom(rm, c.id, encodeEvent(EventUserCursorMoved, UserCursorMovedPayload{
		Username:  p.Username,
		CursorPos: p.CursorPos,
		Color:     p.Color,
		SocketID:  c.id,
	}))
}

func (h *Hub) handleChangeRole(c *Client, p ChangeRolePayload) {
	rm, ok := h.registry.Get(p.RoomID)
	if !ok {
		return
	}
	part, ok := rm.Participant(c.id)
	if !ok || !part.Role.CanManage() {
		return
	}
	newRole, ok := room.ParseRole(p.NewRole)
	if !ok {
		return
	}
	if !rm.SetRole(p.TargetID, newRole) {
		return
	}

	h.broadcastUsers(rm)
	h.sendTo(p.TargetID, encodeEvent(EventRoleChanged, string(newRole)))
}

// handleKick removes the target from room membership and tells it so.
// The target's transport connection stays open; acting on the kick is
// its own responsibility.
func (h *Hub) handleKick(c *Client, p KickUserPayload) {
	rm, ok := h.registry.Get(p.RoomID)
	if !ok {
		return
	}
	part, ok := rm.Participant(c.id)
	if !ok || !part.Role.CanManage() {
		return
	}
	if _, ok := rm.Participant(p.TargetID); !ok {
		return
	}

	h.sendTo(p.TargetID, encodeEvent(EventKicked, nil))
	rm.Leave(p.TargetID)
	h.broadcastUsers(rm)
}

// broadcastUsers sends the full membership map to every current member.
func (h *Hub) broadcastUsers(rm *room.Room) {
	h.broadcastRoom(rm, "", encodeEvent(EventUpdateUsers, rm.Users()))
}

func (h *Hub) broadcastRoom(rm *room.Room, except string, message []byte) {
	for connID := range rm.Users() {
		if connID == except {
			continue
		}
		h.sendTo(connID, message)
	}
}

func (h *Hub) sendTo(connID string, message []byte) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case c.send <- message:
	default:
		// Slow consumer: drop the connection rather than block the loop.
		h.mu.Lock()
		if _, ok := h.clients[connID]; ok {
			delete(h.clients, connID)
			close(c.send)
		}
		h.mu.Unlock()
	}
}

// enqueueSave hands the latest accepted content to the saver
// goroutine. If the queue is full the oldest entry is discarded; a
// newer save for the same acceptance order supersedes it anyway.
func (h *Hub) enqueueSave(roomID, content string) {
	if h.store == nil {
		return
	}
	req := saveRequest{roomID: roomID, content: content}
	for {
		select {
		case h.saves <- req:
			return
		default:
			select {
			case dropped := <-h.saves:
				log.Printf("Save queue full, dropping stale save for room %s", dropped.roomID)
			default:
			}
		}
	}
}

// runSaver drains the save queue in acceptance order. Persistence
// failures are logged and never surfaced to participants.
func (h *Hub) runSaver() {
	if h.store == nil {
		return
	}
	for req := range h.saves {
		if err := h.store.SaveDocument(req.roomID, req.content); err != nil {
			log.Printf("Failed to save document for room %s: %v", req.roomID, err)
		}
	}
}

// Counters for the HTTP stats surface.

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetActiveRooms returns member counts for rooms with at least one
// participant.
func (h *Hub) GetActiveRooms() map[string]int {
	active := make(map[string]int)
	for _, rm := range h.registry.Rooms() {
		if n := rm.UserCount(); n > 0 {
			active[rm.ID] = n
		}
	}
	return active
}

func (h *Hub) GetRoomCount() int {
	return len(h.GetActiveRooms())
}
