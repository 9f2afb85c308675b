package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speechplan/internal/message"
)

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transcribe", r.URL.Path)
		require.Equal(t, "audio/wav", r.Header.Get("Content-Type"))
		json.NewEncoder(w).Encode(map[string]any{
			"success":       true,
			"transcription": "buy milk",
			"chat_response": "Added 'buy milk' to your tasks!",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.Transcribe(context.Background(), []byte("clip"), "audio/wav")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "buy milk", resp.Transcription)
}

func TestJobShapedForPolling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transcribe/abc", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"id": "abc", "status": "completed", "transcription": "done"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	job, err := c.Job(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, message.JobCompleted, job.Status)
	assert.Equal(t, "done", job.Transcription)
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["text"])
		json.NewEncoder(w).Encode(map[string]string{"response": "hi!"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	reply, err := c.Chat(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi!", reply)
}

func TestErrorStatusSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream service unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Chat(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream service unavailable")
}

func TestBaseURLTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/todos", r.URL.Path)
		json.NewEncoder(w).Encode([]any{})
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	_, err := c.Todos(context.Background())
	require.NoError(t, err)
}
