// Package openai implements the Assistant interface using OpenAI's APIs via
// the go-openai SDK.
//
// It uses the Audio Transcription API (Whisper) for speech-to-text and the
// Chat Completions API for resolving text into the structured instruction
// contract. A custom base URL allows OpenAI-compatible gateways.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"speechplan/internal/config"
)

// Assistant uses the OpenAI APIs for transcription and completion.
type Assistant struct {
	client             *openai.Client
	transcriptionModel string
	completionModel    string
}

// New creates a new OpenAI assistant from config.
func New(cfg config.OpenAIConfig) *Assistant {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Assistant{
		client:             openai.NewClientWithConfig(clientCfg),
		transcriptionModel: cfg.TranscriptionModel,
		completionModel:    cfg.CompletionModel,
	}
}

// Name returns the backend identifier.
func (a *Assistant) Name() string { return "openai" }

// Transcribe sends audio to the OpenAI Transcription API.
func (a *Assistant) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	resp, err := a.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    a.transcriptionModel,
		Reader:   bytes.NewReader(audio),
		FilePath: "clip" + extFromContentType(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	slog.Debug("transcription complete", "backend", "openai", "text_length", len(text))
	return text, nil
}

// Complete sends the system directive and user text to the Chat Completions
// API and returns the raw reply content.
func (a *Assistant) Complete(ctx context.Context, system, text string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.completionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from chat API")
	}
	return resp.Choices[0].Message.Content, nil
}

// Close is a no-op for the OpenAI assistant.
func (a *Assistant) Close() error { return nil }

func extFromContentType(ct string) string {
	switch {
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "ogg"):
		return ".ogg"
	case strings.Contains(ct, "mp3"), strings.Contains(ct, "mpeg"):
		return ".mp3"
	case strings.Contains(ct, "flac"):
		return ".flac"
	case strings.Contains(ct, "webm"):
		return ".webm"
	case strings.Contains(ct, "m4a"):
		return ".m4a"
	default:
		return ".wav"
	}
}
