// Package heygen wraps the streaming-avatar provider behind the
// core.AvatarClient port.
//
// A session is built with four sequential calls:
//
//	streaming.create_token -> streaming.new -> streaming.start -> streaming.task
//
// and torn down best-effort with streaming.stop.
package heygen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/calmcall/calmcall/internal/config"
	"github.com/calmcall/calmcall/internal/domain"
	"github.com/rs/zerolog/log"
)

type Client struct {
	cfg  config.HeyGenConfig
	http *http.Client
}

func NewClient(cfg config.HeyGenConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) post(ctx context.Context, path, bearer string, body any, out any) error {
	var buf bytes.Buffer
	if body == nil {
		body = struct{}{}
	}
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return fmt.Errorf("heygen: marshal %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+path, &buf)
	if err != nil {
		return fmt.Errorf("heygen: build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		req.Header.Set("X-Api-Key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("heygen: %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Error().Str("module", "heygen").Str("path", path).
			Int("status", resp.StatusCode).Bytes("body", data).Msg("provider error")
		return fmt.Errorf("heygen: %s status %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("heygen: decode %s: %w", path, err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("heygen: decode %s data: %w", path, err)
	}
	return nil
}

type voiceSetting struct {
	VoiceID string  `json:"voice_id"`
	Rate    float64 `json:"rate"`
}

type newSessionRequest struct {
	Quality       string       `json:"quality"`
	AvatarName    string       `json:"avatar_name"`
	Voice         voiceSetting `json:"voice"`
	Version       string       `json:"version"`
	VideoEncoding string       `json:"video_encoding"`
}

type newSessionData struct {
	SessionID   string `json:"session_id"`
	URL         string `json:"url"`
	AccessToken string `json:"access_token"`
}

// CreateSession provisions a streaming avatar and queues text for it to
// speak. Any failure returns (nil, error); callers treat a missing session
// as non-fatal and still deliver the text answer.
func (c *Client) CreateSession(ctx context.Context, text string) (*domain.AvatarSession, error) {
	var tokenData struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/streaming.create_token", "", nil, &tokenData); err != nil {
		return nil, err
	}

	var sess newSessionData
	newReq := newSessionRequest{
		Quality:       c.cfg.Quality,
		AvatarName:    c.cfg.Avatar,
		Voice:         voiceSetting{VoiceID: "", Rate: 1.0},
		Version:       "v2",
		VideoEncoding: "H264",
	}
	if err := c.post(ctx, "/streaming.new", tokenData.Token, newReq, &sess); err != nil {
		return nil, err
	}

	start := map[string]string{"session_id": sess.SessionID}
	if err := c.post(ctx, "/streaming.start", tokenData.Token, start, nil); err != nil {
		return nil, err
	}

	task := map[string]string{
		"session_id": sess.SessionID,
		"text":       text,
		"task_type":  c.cfg.TaskType, // "repeat" speaks verbatim, "talk" runs the provider's LLM
	}
	if err := c.post(ctx, "/streaming.task", tokenData.Token, task, nil); err != nil {
		return nil, err
	}

	log.Info().Str("module", "heygen").Str("session_id", sess.SessionID).Msg("avatar session started")
	return &domain.AvatarSession{
		SessionID:    sess.SessionID,
		URL:          sess.URL,
		AccessToken:  sess.AccessToken,
		SessionToken: tokenData.Token,
	}, nil
}

// CloseSession stops the stream. Missing identifiers make it a no-op.
func (c *Client) CloseSession(ctx context.Context, sess *domain.AvatarSession) error {
	if sess == nil || sess.SessionID == "" || sess.SessionToken == "" {
		return nil
	}
	stop := map[string]string{"session_id": sess.SessionID}
	if err := c.post(ctx, "/streaming.stop", sess.SessionToken, stop, nil); err != nil {
		return err
	}
	log.Info().Str("module", "heygen").Str("session_id", sess.SessionID).Msg("avatar session closed")
	return nil
}
