// Package client implements the HTTP client for the speechplan gateway API.
//
// It is used by speechctl to submit recorded clips or text turns and to poll
// asynchronous transcription jobs. The client also satisfies the recorder's
// Uploader interface.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"speechplan/internal/message"
)

// Client talks to a running speechplan daemon.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given base URL (e.g., "http://localhost:8080").
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{},
	}
}

// TranscribeResponse mirrors the gateway's POST /transcribe payload.
type TranscribeResponse struct {
	Success       bool   `json:"success"`
	Status        string `json:"status,omitempty"`
	JobID         string `json:"job_id,omitempty"`
	Transcription string `json:"transcription,omitempty"`
	ChatResponse  string `json:"chat_response,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Transcribe submits a raw audio clip and returns the gateway's response,
// which is either the finished transcription (sync mode) or a pending job
// handle (async mode).
func (c *Client) Transcribe(ctx context.Context, clip []byte, contentType string) (*TranscribeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", bytes.NewReader(clip))
	if err != nil {
		return nil, fmt.Errorf("creating transcribe request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	var out TranscribeResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Job fetches the state of an asynchronous transcription job. It is shaped
// for use as a poll.StatusFunc.
func (c *Client) Job(ctx context.Context, id string) (message.TranscriptionJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcribe/"+id, nil)
	if err != nil {
		return message.TranscriptionJob{}, fmt.Errorf("creating job request: %w", err)
	}

	var job message.TranscriptionJob
	if err := c.do(req, &job); err != nil {
		return message.TranscriptionJob{}, err
	}
	return job, nil
}

// Chat sends one text turn and returns the user-facing reply.
func (c *Client) Chat(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("marshalling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Response string `json:"response"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

// Todos returns all task records.
func (c *Client) Todos(ctx context.Context) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/todos", nil)
	if err != nil {
		return nil, fmt.Errorf("creating todos request: %w", err)
	}

	var out []json.RawMessage
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadClip implements recorder.Uploader: the finalized clip is submitted
// for transcription and the response discarded. speechctl uses Transcribe
// directly when it needs the response body.
func (c *Client) UploadClip(ctx context.Context, clip []byte) error {
	_, err := c.Transcribe(ctx, clip, "audio/wav")
	return err
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
