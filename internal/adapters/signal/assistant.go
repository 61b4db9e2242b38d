package signal

import (
	"encoding/json"

	"github.com/calmcall/calmcall/internal/domain"
	"github.com/calmcall/calmcall/internal/uploads"
	"github.com/rs/zerolog/log"
)

// handleUserMessage hands the text (and optional jpeg attachment) to the
// collaborators on a separate goroutine. Signaling for this and every
// other room keeps flowing while the model thinks.
func (ctl *Controller) handleUserMessage(sid domain.SessionID, c *wsConn, data []byte) {
	var p struct {
		Type  string `json:"type"`
		Room  string `json:"room"`
		Text  string `json:"text"`
		Image string `json:"image"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad user-message payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	if p.Room == "" || p.Text == "" {
		ctl.sendError(c, "missing room or text")
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(sid) {
		ctl.sendError(c, "too many requests")
		return
	}

	var imageJPEG []byte
	if p.Image != "" {
		decoded, err := uploads.DecodeDataURI(p.Image)
		if err != nil {
			log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad image attachment")
			ctl.sendError(c, "bad image attachment")
			return
		}
		imageJPEG = decoded
		if ctl.Uploads != nil {
			name, err := ctl.Uploads.Save(sid, decoded)
			if err != nil {
				// Storage is a convenience for /uploads; the completion
				// still gets the bytes.
				log.Error().Err(err).Str("module", "signal").Msg("store attachment")
			} else {
				log.Info().Str("module", "signal").Str("file", name).Msg("stored attachment")
			}
		}
	}

	go ctl.Orch.OnUserMessage(sid, domain.RoomID(p.Room), p.Text, imageJPEG, func(msg string) {
		ctl.sendError(c, msg)
	})
}
