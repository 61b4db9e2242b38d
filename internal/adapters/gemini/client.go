// Package gemini wraps the generative-language REST API behind the
// core.Completer port.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/calmcall/calmcall/internal/config"
	"github.com/rs/zerolog/log"
)

var ErrEmptyResponse = errors.New("gemini: empty response")

// visionPreamble frames image-carrying messages so the model answers
// conversationally instead of returning detection output.
const visionPreamble = `You are an AI assistant in a video chat for emotional well-being. The user has sent the message: %q along with an image. Please respond conversationally to the user. Do not return JSON data, bounding boxes, or technical analysis unless specifically asked. Be kind and supportive.`

type Client struct {
	cfg  config.GeminiConfig
	http *http.Client
}

func NewClient(cfg config.GeminiConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Complete sends the prompt (plus an optional inline jpeg) to the model
// and returns the first candidate's text.
func (c *Client) Complete(ctx context.Context, prompt string, imageJPEG []byte) (string, error) {
	model := c.cfg.Model
	parts := []part{{Text: prompt}}
	if imageJPEG != nil {
		model = c.cfg.VisionModel
		parts = []part{
			{Text: fmt.Sprintf(visionPreamble, prompt)},
			{InlineData: &inlineData{
				MimeType: "image/jpeg",
				Data:     base64.StdEncoding.EncodeToString(imageJPEG),
			}},
		}
	}

	reqBody := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			Temperature:     0.7,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 800,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.Endpoint, model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Error().Str("module", "gemini").Int("status", resp.StatusCode).
			Bytes("body", data).Msg("generateContent failed")
		return "", fmt.Errorf("gemini: status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
