// Package gemini implements the Assistant interface against the Gemini
// generateContent REST API.
//
// Audio is transcribed by sending the clip inline with a transcription
// prompt; text resolution sends the system directive as a system instruction
// and the user's text as the single content turn.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"speechplan/internal/config"
)

// Assistant uses the Gemini API for transcription and completion.
type Assistant struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// New creates a new Gemini assistant from config.
func New(cfg config.GeminiConfig) *Assistant {
	return &Assistant{
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		client:   &http.Client{},
	}
}

// Name returns the backend identifier.
func (a *Assistant) Name() string { return "gemini" }

// --- Wire types ---

type generateRequest struct {
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
	Contents          []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Transcribe sends the clip inline with a transcription prompt.
func (a *Assistant) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	req := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: "Transcribe this audio accurately. Return only the transcribed text."},
				{InlineData: &inlineData{
					MimeType: contentType,
					Data:     base64.StdEncoding.EncodeToString(audio),
				}},
			},
		}},
	}

	text, err := a.generate(ctx, req)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	slog.Debug("transcription complete", "backend", "gemini", "text_length", len(text))
	return text, nil
}

// Complete sends the system directive and user text and returns the raw reply.
func (a *Assistant) Complete(ctx context.Context, system, text string) (string, error) {
	req := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: system}}},
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: text}},
		}},
	}
	return a.generate(ctx, req)
}

func (a *Assistant) generate(ctx context.Context, body generateRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshalling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", a.endpoint, a.model, a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("generate failed (status %d): %s", resp.StatusCode, respBody)
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates returned")
	}

	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// Close is a no-op for the Gemini assistant.
func (a *Assistant) Close() error { return nil }
