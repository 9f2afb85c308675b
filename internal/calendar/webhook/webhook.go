// Package webhook implements the calendar Scheduler against a generic HTTP
// endpoint, such as a calendar bridge or automation hook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"speechplan/internal/config"
)

// Scheduler posts event requests to a configured endpoint.
type Scheduler struct {
	endpoint string
	token    string
	client   *http.Client
}

// New creates a webhook scheduler from config.
func New(cfg config.CalendarConfig) *Scheduler {
	return &Scheduler{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		client:   &http.Client{},
	}
}

type eventRequest struct {
	Summary string `json:"summary"`
	Date    string `json:"date"`
}

type eventResponse struct {
	ID string `json:"id"`
}

// Schedule posts {summary, date} and returns the event id from the response.
func (s *Scheduler) Schedule(ctx context.Context, summary, date string) (string, error) {
	body, err := json.Marshal(eventRequest{Summary: summary, Date: date})
	if err != nil {
		return "", fmt.Errorf("marshalling event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("event request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("event creation failed (status %d): %s", resp.StatusCode, respBody)
	}

	var ev eventResponse
	if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
		return "", fmt.Errorf("decoding event response: %w", err)
	}

	slog.Debug("calendar event created", "id", ev.ID, "date", date)
	return ev.ID, nil
}

// Close is a no-op for the webhook scheduler.
func (s *Scheduler) Close() error { return nil }
