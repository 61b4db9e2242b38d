// Package domain contains entities without logic, just meta-data.
package domain

type SessionID string

// SessionState follows the connection through its life. Transitions are
// strictly linear: connected -> joined -> disconnected, with joined
// skippable when the client never enters a room.
type SessionState string

const (
	StateConnected    SessionState = "connected"
	StateJoined       SessionState = "joined"
	StateDisconnected SessionState = "disconnected"
)

// Session is one client's live connection. RoomID is empty until a
// join-room event arrives; a session belongs to at most one room.
type Session struct {
	ID     SessionID
	RoomID RoomID
	State  SessionState
}
