package signal

import (
	"encoding/json"
	"errors"

	"github.com/calmcall/calmcall/internal/app"
	"github.com/calmcall/calmcall/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) handleJoin(sid domain.SessionID, c *wsConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	if p.Room == "" {
		ctl.sendError(c, "missing room")
		return
	}

	roomID := domain.RoomID(p.Room)
	if err := ctl.Orch.Join(sid, roomID); err != nil {
		if errors.Is(err, app.ErrRoomFull) {
			ctl.sendError(c, "room is full")
			return
		}
		ctl.sendError(c, "join failed")
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.Room).Msg("joined room")
	ctl.sendJSON(c, struct {
		Type  string `json:"type"`
		Room  string `json:"room"`
		Count int    `json:"count"`
	}{
		Type:  "room-state",
		Room:  p.Room,
		Count: ctl.Orch.Rooms.MemberCount(roomID),
	})
}
