package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/calmcall/calmcall/internal/core"
	"github.com/calmcall/calmcall/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	fail   bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("queue full")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

func (f *fakeConn) received(t *testing.T) []Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Envelope, 0, len(f.frames))
	for _, fr := range f.frames {
		var env Envelope
		if err := json.Unmarshal(fr, &env); err != nil {
			t.Fatalf("bad frame %q: %v", fr, err)
		}
		out = append(out, env)
	}
	return out
}

func newTestRelay(t *testing.T) (*Relay, *Rooms, *Registry) {
	t.Helper()
	rooms := NewRooms(0)
	registry := NewRegistry()
	return NewRelay(rooms, registry), rooms, registry
}

func connect(t *testing.T, rooms *Rooms, registry *Registry, sid domain.SessionID, room domain.RoomID) *fakeConn {
	t.Helper()
	conn := &fakeConn{}
	registry.BindSignal(sid, conn, func() {})
	if err := rooms.Join(sid, room); err != nil {
		t.Fatalf("join %s: %v", sid, err)
	}
	return conn
}

func TestRelay_RoutesToOtherMemberOnly(t *testing.T) {
	relay, rooms, registry := newTestRelay(t)
	a := connect(t, rooms, registry, "a", "abc123")
	b := connect(t, rooms, registry, "b", "abc123")
	other := connect(t, rooms, registry, "x", "different")

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0..."}`)
	relay.Route("a", "abc123", KindOffer, payload)

	got := b.received(t)
	if len(got) != 1 {
		t.Fatalf("b received %d frames, want 1", len(got))
	}
	if got[0].Type != KindOffer {
		t.Fatalf("kind = %q, want offer", got[0].Type)
	}
	if string(got[0].Payload) != string(payload) {
		t.Fatalf("payload altered: got %s want %s", got[0].Payload, payload)
	}
	if len(a.received(t)) != 0 {
		t.Fatalf("sender received its own message")
	}
	if len(other.received(t)) != 0 {
		t.Fatalf("session in a different room received the message")
	}
}

func TestRelay_PreservesPerSenderOrder(t *testing.T) {
	relay, rooms, registry := newTestRelay(t)
	connect(t, rooms, registry, "a", "room1")
	b := connect(t, rooms, registry, "b", "room1")

	relay.Route("a", "room1", KindOffer, json.RawMessage(`{"n":1}`))
	relay.Route("a", "room1", KindCandidate, json.RawMessage(`{"n":2}`))
	relay.Route("a", "room1", KindCandidate, json.RawMessage(`{"n":3}`))

	got := b.received(t)
	want := []SignalKind{KindOffer, KindCandidate, KindCandidate}
	if len(got) != len(want) {
		t.Fatalf("received %d frames, want %d", len(got), len(want))
	}
	for i, env := range got {
		if env.Type != want[i] {
			t.Fatalf("frame %d kind = %q, want %q", i, env.Type, want[i])
		}
	}
}

func TestRelay_EmptyRoomIsNoop(t *testing.T) {
	relay, rooms, registry := newTestRelay(t)
	a := connect(t, rooms, registry, "a", "xyz")

	// Sole member: zero recipients, no error, sender untouched.
	relay.Route("a", "xyz", KindOffer, json.RawMessage(`{}`))
	if len(a.received(t)) != 0 {
		t.Fatalf("sole member received a frame")
	}

	// Unknown room tag: still a no-op.
	relay.Route("a", "never-created", KindAnswer, json.RawMessage(`{}`))
}

func TestRelay_SlowRecipientDoesNotAffectOthers(t *testing.T) {
	relay, rooms, registry := newTestRelay(t)
	connect(t, rooms, registry, "a", "room1")
	b := connect(t, rooms, registry, "b", "room1")
	c := connect(t, rooms, registry, "c", "room1")
	b.fail = true

	relay.Route("a", "room1", KindOffer, json.RawMessage(`{}`))

	if len(c.received(t)) != 1 {
		t.Fatalf("healthy recipient lost the frame")
	}
}

func TestRelay_BroadcastIncludesSender(t *testing.T) {
	relay, rooms, registry := newTestRelay(t)
	a := connect(t, rooms, registry, "a", "room1")
	b := connect(t, rooms, registry, "b", "room1")

	relay.Broadcast("room1", []byte(`{"type":"ai-response"}`))

	if len(a.received(t)) != 1 || len(b.received(t)) != 1 {
		t.Fatalf("broadcast must reach every member including the sender")
	}
}

func TestRegistry_Lifecycle(t *testing.T) {
	registry := NewRegistry()
	conn := &fakeConn{}
	canceled := false
	registry.BindSignal("a", conn, func() { canceled = true })

	if state, ok := registry.State("a"); !ok || state != domain.StateConnected {
		t.Fatalf("state = %q, %v; want connected", state, ok)
	}

	registry.SetState("a", domain.StateJoined)
	if state, _ := registry.State("a"); state != domain.StateJoined {
		t.Fatalf("state = %q, want joined", state)
	}

	if _, ok := registry.UnbindConn("a", conn); !ok {
		t.Fatalf("unbind of the bound connection refused")
	}
	if !canceled {
		t.Fatalf("unbind did not cancel the connection context")
	}
	if _, ok := registry.Signal("a"); ok {
		t.Fatalf("signal still resolvable after unbind")
	}

	// Second unbind must be a safe no-op.
	if _, ok := registry.UnbindConn("a", conn); ok {
		t.Fatalf("second unbind reported an entry")
	}
}

func TestRegistry_RebindKeepsNewConnection(t *testing.T) {
	registry := NewRegistry()
	first := &fakeConn{}
	second := &fakeConn{}
	firstCanceled := false

	registry.BindSignal("a", first, func() { firstCanceled = true })
	registry.SetAvatar("a", &domain.AvatarSession{SessionID: "hg-1"})
	registry.BindSignal("a", second, nil)

	// Rebinding winds down the replaced transport immediately.
	if !firstCanceled {
		t.Fatalf("replaced connection context not canceled")
	}

	// The old connection no longer owns the sid.
	if avatar, ok := registry.UnbindConn("a", first); ok || avatar != nil {
		t.Fatalf("stale connection unbound the rebound session (avatar=%v)", avatar)
	}
	conn, ok := registry.Signal("a")
	if !ok || conn != second {
		t.Fatalf("registry does not resolve to the new connection")
	}

	// The avatar survives the reconnect and is released by the real owner.
	avatar, ok := registry.UnbindConn("a", second)
	if !ok || avatar == nil || avatar.SessionID != "hg-1" {
		t.Fatalf("new connection unbind = (%v, %v), want hg-1", avatar, ok)
	}
}

func TestRegistry_TakeAvatarOnce(t *testing.T) {
	registry := NewRegistry()
	registry.BindSignal("a", &fakeConn{}, nil)

	if got := registry.TakeAvatar("a"); got != nil {
		t.Fatalf("TakeAvatar on fresh session = %v, want nil", got)
	}

	registry.SetAvatar("a", &domain.AvatarSession{SessionID: "hg-1"})
	first := registry.TakeAvatar("a")
	if first == nil || first.SessionID != "hg-1" {
		t.Fatalf("first take = %v, want hg-1", first)
	}
	if second := registry.TakeAvatar("a"); second != nil {
		t.Fatalf("second take = %v, want nil", second)
	}
}
