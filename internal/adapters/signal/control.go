package signal

import "github.com/calmcall/calmcall/internal/domain"

func (ctl *Controller) handlePing(c *wsConn) {
	ctl.sendJSON(c, struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	})
}

func (ctl *Controller) handleWhoAmI(sid domain.SessionID, c *wsConn) {
	sess, ok := ctl.Orch.Snapshot(sid)
	if !ok {
		ctl.sendError(c, "unknown session")
		return
	}
	ctl.sendJSON(c, struct {
		Type  string              `json:"type"`
		ID    domain.SessionID    `json:"id"`
		Room  domain.RoomID       `json:"room,omitempty"`
		State domain.SessionState `json:"state"`
	}{
		Type:  "session-state",
		ID:    sess.ID,
		Room:  sess.RoomID,
		State: sess.State,
	})
}
