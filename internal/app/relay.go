package app

import (
	"encoding/json"

	"github.com/calmcall/calmcall/internal/domain"
	"github.com/rs/zerolog/log"
)

// SignalKind tags a relayed envelope. The relay never looks past it.
type SignalKind string

const (
	KindOffer     SignalKind = "offer"
	KindAnswer    SignalKind = "answer"
	KindCandidate SignalKind = "ice-candidate"
)

// Envelope is the outbound wire shape for relayed signaling. Payload is
// carried verbatim; malformed SDP or candidates are the receiving peer's
// problem, not ours.
type Envelope struct {
	Type    SignalKind      `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Relay forwards signaling payloads between the members of a room. It is
// a pure pipe: fire and forget, no persistence, no payload inspection.
type Relay struct {
	rooms    *Rooms
	registry *Registry
}

func NewRelay(rooms *Rooms, registry *Registry) *Relay {
	return &Relay{rooms: rooms, registry: registry}
}

// Route delivers payload unchanged to every member of roomID other than
// sender. An empty or unknown room is a no-op. Delivery order follows the
// order of Route calls from each sender; a slow recipient only loses its
// own frames.
func (r *Relay) Route(sender domain.SessionID, roomID domain.RoomID, kind SignalKind, payload json.RawMessage) {
	frame, err := json.Marshal(Envelope{Type: kind, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("marshal envelope")
		return
	}

	sent := 0
	for _, sid := range r.rooms.MembersOf(roomID, sender) {
		conn, ok := r.registry.Signal(sid)
		if !ok {
			continue
		}
		if err := conn.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "app.relay").Str("sid", string(sid)).
				Str("kind", string(kind)).Msg("dropped signal frame")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "app.relay").Str("from", string(sender)).
		Str("room", string(roomID)).Str("kind", string(kind)).Int("sent_to", sent).Msg("routed")
}

// Broadcast sends an already-marshaled frame to every member of the room,
// sender included. Used for ai-response fan-out.
func (r *Relay) Broadcast(roomID domain.RoomID, frame []byte) {
	for _, sid := range r.rooms.Members(roomID) {
		conn, ok := r.registry.Signal(sid)
		if !ok {
			continue
		}
		if err := conn.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "app.relay").Str("sid", string(sid)).Msg("dropped broadcast frame")
		}
	}
}
