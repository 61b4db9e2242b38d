package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/calmcall/calmcall/internal/core"
	"github.com/calmcall/calmcall/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator ties the registries, the relay and the external
// collaborators together. Signaling never waits on a collaborator call;
// user-message handling runs on its own goroutine with bounded timeouts.
type Orchestrator struct {
	Registry  *Registry
	Rooms     *Rooms
	Relay     *Relay
	Completer core.Completer
	Avatar    core.AvatarClient

	// CollaboratorTimeout bounds a single completion or avatar call.
	CollaboratorTimeout time.Duration
	// CleanupTimeout bounds the best-effort avatar stop on disconnect.
	CleanupTimeout time.Duration
}

const (
	defaultCollaboratorTimeout = 60 * time.Second
	defaultCleanupTimeout      = 10 * time.Second
)

func (o *Orchestrator) collaboratorTimeout() time.Duration {
	if o.CollaboratorTimeout > 0 {
		return o.CollaboratorTimeout
	}
	return defaultCollaboratorTimeout
}

// Join moves the session into the joined state and registers room
// membership. ErrRoomFull is passed through for the gateway to surface.
func (o *Orchestrator) Join(sid domain.SessionID, roomID domain.RoomID) error {
	if err := o.Rooms.Join(sid, roomID); err != nil {
		return err
	}
	o.Registry.SetState(sid, domain.StateJoined)
	return nil
}

// OnSignal relays one offer/answer/candidate to the other room members.
func (o *Orchestrator) OnSignal(sid domain.SessionID, roomID domain.RoomID, kind SignalKind, payload json.RawMessage) {
	o.Relay.Route(sid, roomID, kind, payload)
}

// Snapshot assembles the session's current view across the registries.
func (o *Orchestrator) Snapshot(sid domain.SessionID) (domain.Session, bool) {
	state, ok := o.Registry.State(sid)
	if !ok {
		return domain.Session{}, false
	}
	roomID, _ := o.Rooms.RoomOf(sid)
	return domain.Session{ID: sid, RoomID: roomID, State: state}, true
}

// aiResponse is broadcast to the whole room, sender included, once the
// collaborators are done.
type aiResponse struct {
	Type    string                `json:"type"`
	Text    string                `json:"text"`
	Session *domain.AvatarSession `json:"session"`
}

// OnUserMessage forwards the text (and optional jpeg) to the language
// model, then spins up an avatar stream for the answer. The avatar call is
// best-effort: a nil session still produces an ai-response. onError is
// invoked at most once, on completion failure only.
func (o *Orchestrator) OnUserMessage(sid domain.SessionID, roomID domain.RoomID, text string, imageJPEG []byte, onError func(msg string)) {
	ctx, cancel := context.WithTimeout(context.Background(), o.collaboratorTimeout())
	defer cancel()

	answer, err := o.Completer.Complete(ctx, text, imageJPEG)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("sid", string(sid)).Msg("completion failed")
		onError("failed to process your message")
		return
	}

	var avatar *domain.AvatarSession
	if o.Avatar != nil {
		avatar, err = o.Avatar.CreateSession(ctx, answer)
		if err != nil {
			// The text answer is still worth delivering.
			log.Error().Err(err).Str("module", "app.orch").Str("sid", string(sid)).Msg("avatar session failed")
			avatar = nil
		}
	}
	if avatar != nil {
		if old := o.Registry.TakeAvatar(sid); old != nil {
			o.closeAvatar(old)
		}
		if !o.Registry.SetAvatar(sid, avatar) {
			// Sender disconnected while the collaborators were working;
			// nobody owns the stream anymore, so stop it now.
			log.Info().Str("module", "app.orch").Str("sid", string(sid)).
				Str("avatar_session", avatar.SessionID).Msg("closing avatar for departed session")
			o.closeAvatar(avatar)
			avatar = nil
		}
	}

	frame, err := json.Marshal(aiResponse{Type: "ai-response", Text: answer, Session: avatar})
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("marshal ai-response")
		return
	}
	o.Relay.Broadcast(roomID, frame)
}

// OnDisconnect runs the full teardown: drop the registry entry, leave the
// room and stop any avatar stream the session owned. Invoked on every
// transport close, whether or not the session ever joined or spoke; every
// step is an idempotent no-op when there is nothing to do.
//
// conn scopes the teardown to the connection that died. When the browser
// reconnects before the old pump notices, the sid is already rebound to a
// newer transport and the stale close must leave the live session alone.
func (o *Orchestrator) OnDisconnect(sid domain.SessionID, conn core.SignalConnection) {
	avatar, ok := o.Registry.UnbindConn(sid, conn)
	if !ok {
		log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Msg("stale disconnect, session rebound")
		return
	}
	o.Rooms.Leave(sid)

	if avatar == nil {
		return
	}
	// Never stall the disconnect path on the provider.
	go o.closeAvatar(avatar)
}

func (o *Orchestrator) closeAvatar(sess *domain.AvatarSession) {
	timeout := o.CleanupTimeout
	if timeout <= 0 {
		timeout = defaultCleanupTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := o.Avatar.CloseSession(ctx, sess); err != nil {
		log.Error().Err(err).Str("module", "app.orch").
			Str("avatar_session", sess.SessionID).Msg("closing avatar session")
	}
}
