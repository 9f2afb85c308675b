// Package assistant defines the interface to the remote speech and language
// services.
//
// An assistant turns audio into text and free-form text into a reply bound by
// the gateway's response contract. Speechplan ships with two backends: OpenAI
// (Whisper + chat completions) and Gemini (generateContent REST API).
package assistant

import "context"

// Assistant is the interface for transcription and completion.
type Assistant interface {
	// Name returns the backend identifier (e.g., "openai", "gemini").
	Name() string

	// Transcribe converts audio bytes to text. contentType is the MIME type
	// of the clip (e.g., "audio/wav", "audio/webm").
	Transcribe(ctx context.Context, audio []byte, contentType string) (string, error)

	// Complete sends the system directive and the user's text to the language
	// service and returns the raw reply, fences and all.
	Complete(ctx context.Context, system, text string) (string, error)

	// Close releases any resources held by the assistant.
	Close() error
}
