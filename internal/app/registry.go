package app

import (
	"context"
	"sync"

	"github.com/calmcall/calmcall/internal/core"
	"github.com/calmcall/calmcall/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	State  domain.SessionState
	Signal core.SignalConnection
	Cancel context.CancelFunc
	Avatar *domain.AvatarSession
}

// Registry tracks every live connection: its lifecycle state, its signal
// transport and the avatar session it may own downstream.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.SessionID]*sessionEntry)}
}

// BindSignal registers a freshly connected session. Reconnects with the
// same sid replace the previous transport; the replaced connection is
// canceled and closed so its pumps wind down instead of lingering until
// the ping timeout.
func (r *Registry) BindSignal(sid domain.SessionID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	old := r.sessions[sid]
	entry := &sessionEntry{
		State:  domain.StateConnected,
		Signal: conn,
		Cancel: cancel,
	}
	if old != nil {
		// Carry the lifecycle state and avatar stream across the reconnect.
		entry.State = old.State
		entry.Avatar = old.Avatar
	}
	r.sessions[sid] = entry
	r.mu.Unlock()

	if old != nil {
		if old.Cancel != nil {
			old.Cancel()
		}
		if old.Signal != nil && old.Signal != conn {
			old.Signal.Close()
		}
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("replaced signal binding")
		return
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
}

func (r *Registry) Signal(sid domain.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Signal, true
	}
	return nil, false
}

func (r *Registry) State(sid domain.SessionID) (domain.SessionState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.State, true
	}
	return "", false
}

func (r *Registry) SetState(sid domain.SessionID, state domain.SessionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.State = state
	}
}

// SetAvatar records the avatar session owned by sid, replacing any
// previous one. The caller is responsible for closing a replaced session.
// It reports whether the session still exists; a false return means the
// caller keeps ownership and must stop the stream itself.
func (r *Registry) SetAvatar(sid domain.SessionID, sess *domain.AvatarSession) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.Avatar = sess
	return true
}

// TakeAvatar detaches and returns the session's avatar session, if any.
// A second call returns nil, which keeps disconnect cleanup idempotent.
func (r *Registry) TakeAvatar(sid domain.SessionID) *domain.AvatarSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok || e.Avatar == nil {
		return nil
	}
	sess := e.Avatar
	e.Avatar = nil
	return sess
}

// UnbindConn removes the session only while it is still bound to conn,
// handing back any avatar session it owned. A false return means a newer
// connection took over the sid (browser reload) and nothing was touched.
// Safe to call twice and for unknown sids.
func (r *Registry) UnbindConn(sid domain.SessionID, conn core.SignalConnection) (*domain.AvatarSession, bool) {
	r.mu.Lock()
	e, ok := r.sessions[sid]
	if !ok || e.Signal != conn {
		r.mu.Unlock()
		return nil, false
	}
	delete(r.sessions, sid)
	avatar := e.Avatar
	e.Avatar = nil
	r.mu.Unlock()

	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return avatar, true
}
