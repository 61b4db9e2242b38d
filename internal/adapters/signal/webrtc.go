package signal

import (
	"encoding/json"

	"github.com/calmcall/calmcall/internal/app"
	"github.com/calmcall/calmcall/internal/domain"
	"github.com/rs/zerolog/log"
)

// handleRelay forwards an offer, answer or ICE candidate to the other
// members of the tagged room. The payload is never inspected here; a
// malformed SDP fails in the receiving browser's WebRTC stack, not in the
// relay.
func (ctl *Controller) handleRelay(sid domain.SessionID, c *wsConn, kind string, data []byte) {
	var p struct {
		Type    string          `json:"type"`
		Room    string          `json:"room"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("kind", kind).Msg("bad relay payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	if p.Room == "" {
		ctl.sendError(c, "missing room")
		return
	}

	ctl.Orch.OnSignal(sid, domain.RoomID(p.Room), app.SignalKind(kind), p.Payload)
}
