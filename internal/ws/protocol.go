package ws

import (
	"encoding/json"

	"github.com/priyankverma/cowrite/backend/internal/patch"
)

// Inbound event names (client -> server)
const (
	EventJoinRoom   = "joinRoom"
	EventApplyPatch = "applyPatch"
	EventCursorMove = "cursorMove"
	EventChangeRole = "changeRole"
	EventKickUser   = "kickUser"
)

// Outbound event names (server -> client)
const (
	EventLoadCode        = "loadCode"
	EventUpdateUsers     = "updateUsers"
	EventRemotePatch     = "remotePatch"
	EventUserCursorMoved = "userCursorMoved"
	EventRoleChanged     = "roleChanged"
	EventKicked          = "kicked"
	EventError           = "error"
)

// Envelope wraps every message on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Role     string `json:"role"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

type ApplyPatchPayload struct {
	RoomID string      `json:"roomId"`
	Patch  patch.Patch `json:"patch"`
}

// CursorPos is an editor-layout position. The server relays it opaquely;
// display expiry is the receiving client's concern.
type CursorPos struct {
	Top  float64 `json:"top"`
	Left float64 `json:"left"`
}

type CursorMovePayload struct {
	RoomID    string    `json:"roomId"`
	CursorPos CursorPos `json:"cursorPos"`
	Username  string    `json:"username"`
	Color     string    `json:"color"`
}

type ChangeRolePayload struct {
	RoomID   string `json:"roomId"`
	TargetID string `json:"targetId"`
	NewRole  string `json:"newRole"`
}

type KickUserPayload struct {
	RoomID   string `json:"roomId"`
	TargetID string `json:"targetId"`
}

type LoadCodePayload struct {
	Code string `json:"code"`
	Role string `json:"role"`
}

type RemotePatchPayload struct {
	Patch    patch.Patch `json:"patch"`
	SenderID string      `json:"senderId"`
}

type UserCursorMovedPayload struct {
	Username  string    `json:"username"`
	CursorPos CursorPos `json:"cursorPos"`
	Color     string    `json:"color"`
	SocketID  string    `json:"socketId"`
}

// encodeEvent marshals an outbound event into an envelope. Payloads are
// server-built structs, so a marshal failure is a programming error.
func encodeEvent(event string, data interface{}) []byte {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			panic(err)
		}
		raw = b
	}
	b, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		panic(err)
	}
	return b
}
