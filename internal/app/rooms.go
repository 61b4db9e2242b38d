package app

import (
	"errors"
	"sync"

	"github.com/calmcall/calmcall/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrRoomFull = errors.New("room is full")

// Rooms maps a room id to its member set. It is the only state shared
// between connection handlers, guarded by a single RWMutex; every
// operation is O(1) or O(room size).
//
// Constructed in main and passed by reference, no package-level instance.
type Rooms struct {
	mu      sync.RWMutex
	members map[domain.RoomID]map[domain.SessionID]struct{}
	roomOf  map[domain.SessionID]domain.RoomID
	maxSize int
}

// NewRooms creates an empty registry. maxSize caps membership per room;
// zero or negative means unbounded.
func NewRooms(maxSize int) *Rooms {
	return &Rooms{
		members: make(map[domain.RoomID]map[domain.SessionID]struct{}),
		roomOf:  make(map[domain.SessionID]domain.RoomID),
		maxSize: maxSize,
	}
}

// Join adds sid to roomID, creating the room on first join. Joining the
// same room twice is a no-op. A session already in a different room is
// left where it is; callers must Leave first.
func (r *Rooms) Join(sid domain.SessionID, roomID domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.roomOf[sid]; ok {
		if cur == roomID {
			return nil
		}
		log.Warn().Str("module", "app.rooms").Str("sid", string(sid)).
			Str("room", string(cur)).Msg("join ignored, already in another room")
		return nil
	}

	set, ok := r.members[roomID]
	if ok && r.maxSize > 0 && len(set) >= r.maxSize {
		return ErrRoomFull
	}
	if !ok {
		set = make(map[domain.SessionID]struct{})
		r.members[roomID] = set
	}
	set[sid] = struct{}{}
	r.roomOf[sid] = roomID
	log.Info().Str("module", "app.rooms").Str("sid", string(sid)).
		Str("room", string(roomID)).Int("count", len(set)).Msg("joined room")
	return nil
}

// Leave removes sid from whatever room it is in and drops the room once
// empty. No-op for sessions that never joined; safe to call twice.
func (r *Rooms) Leave(sid domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.roomOf[sid]
	if !ok {
		return
	}
	delete(r.roomOf, sid)

	set, ok := r.members[roomID]
	if !ok {
		return
	}
	delete(set, sid)
	if len(set) == 0 {
		delete(r.members, roomID)
		log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Msg("room emptied, removed")
		return
	}
	log.Info().Str("module", "app.rooms").Str("sid", string(sid)).
		Str("room", string(roomID)).Int("count", len(set)).Msg("left room")
}

// MembersOf returns a snapshot of the room's members excluding except.
// Unknown rooms yield an empty slice.
func (r *Rooms) MembersOf(roomID domain.RoomID, except domain.SessionID) []domain.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.members[roomID]
	out := make([]domain.SessionID, 0, len(set))
	for sid := range set {
		if sid == except {
			continue
		}
		out = append(out, sid)
	}
	return out
}

// Members returns every member of the room, sender included.
func (r *Rooms) Members(roomID domain.RoomID) []domain.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.members[roomID]
	out := make([]domain.SessionID, 0, len(set))
	for sid := range set {
		out = append(out, sid)
	}
	return out
}

// RoomOf reports the room the session currently belongs to.
func (r *Rooms) RoomOf(sid domain.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.roomOf[sid]
	return roomID, ok
}

// MemberCount reports the current size of a room.
func (r *Rooms) MemberCount(roomID domain.RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[roomID])
}
