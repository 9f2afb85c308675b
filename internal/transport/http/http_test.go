package http_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speechplan/internal/dates"
	"speechplan/internal/gateway"
	"speechplan/internal/store"
	"speechplan/internal/store/memory"
	httptransport "speechplan/internal/transport/http"
)

type fakeAssistant struct {
	transcription string
	completion    string
	err           error
}

func (f *fakeAssistant) Name() string { return "fake" }

func (f *fakeAssistant) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	return f.transcription, f.err
}

func (f *fakeAssistant) Complete(ctx context.Context, system, text string) (string, error) {
	return f.completion, f.err
}

func (f *fakeAssistant) Close() error { return nil }

func newHandler(t *testing.T, assist *fakeAssistant, async bool) (http.Handler, store.Store) {
	t.Helper()

	tasks := memory.New()
	clock := func() time.Time { return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC) }
	gw := gateway.New(assist, tasks, nil, dates.NewAt(clock), async)
	return httptransport.New(0, gw, tasks).Handler(), tasks
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTranscribeJSONBody(t *testing.T) {
	assist := &fakeAssistant{
		transcription: "add buy milk",
		completion:    `{"type": "action", "function": "createTask", "input": {"title": "buy milk", "due_date": ""}}`,
	}
	h, tasks := newHandler(t, assist, false)

	encoded := base64.StdEncoding.EncodeToString([]byte("fake audio"))
	rec := doJSON(t, h, http.MethodPost, "/transcribe", map[string]string{"audio": encoded})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success       bool   `json:"success"`
		Transcription string `json:"transcription"`
		ChatResponse  string `json:"chat_response"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "add buy milk", resp.Transcription)
	assert.Equal(t, "Added 'buy milk' to your tasks!", resp.ChatResponse)

	stored, _ := tasks.List(context.Background())
	assert.Len(t, stored, 1)
}

func TestTranscribeDataURLPrefix(t *testing.T) {
	assist := &fakeAssistant{
		transcription: "hello",
		completion:    `{"type": "output", "output": "Hi there!"}`,
	}
	h, _ := newHandler(t, assist, false)

	encoded := "data:audio/webm;base64," + base64.StdEncoding.EncodeToString([]byte("fake audio"))
	rec := doJSON(t, h, http.MethodPost, "/transcribe", map[string]string{"audio": encoded})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTranscribeRawAudioBody(t *testing.T) {
	assist := &fakeAssistant{
		transcription: "hello",
		completion:    `{"type": "output", "output": "Hi!"}`,
	}
	h, _ := newHandler(t, assist, false)

	req := httptest.NewRequest(http.MethodPost, "/transcribe", bytes.NewReader([]byte("raw wav bytes")))
	req.Header.Set("Content-Type", "audio/wav")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTranscribeRejectsEmptyPayload(t *testing.T) {
	h, _ := newHandler(t, &fakeAssistant{}, false)

	rec := doJSON(t, h, http.MethodPost, "/transcribe", map[string]string{"audio": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/transcribe", map[string]string{"audio": "%%%not-base64%%%"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranscribeAsyncReturnsJobHandle(t *testing.T) {
	assist := &fakeAssistant{transcription: "call the dentist"}
	h, _ := newHandler(t, assist, true)

	encoded := base64.StdEncoding.EncodeToString([]byte("fake audio"))
	rec := doJSON(t, h, http.MethodPost, "/transcribe", map[string]string{"audio": encoded})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool   `json:"success"`
		Status  string `json:"status"`
		JobID   string `json:"job_id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "pending", resp.Status)
	require.NotEmpty(t, resp.JobID)

	// The job turns up on the polling endpoint and eventually completes.
	deadline := time.After(time.Second)
	for {
		rec := doJSON(t, h, http.MethodGet, "/transcribe/"+resp.JobID, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var job struct {
			Status        string `json:"status"`
			Transcription string `json:"transcription"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&job))
		if job.Status == "completed" {
			assert.Equal(t, "call the dentist", job.Transcription)
			return
		}
		select {
		case <-deadline:
			t.Fatal("job never completed")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestJobUnknownID(t *testing.T) {
	h, _ := newHandler(t, &fakeAssistant{}, true)
	rec := doJSON(t, h, http.MethodGet, "/transcribe/no-such-job", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChat(t *testing.T) {
	assist := &fakeAssistant{completion: `{"type": "output", "output": "You have no tasks."}`}
	h, _ := newHandler(t, assist, false)

	rec := doJSON(t, h, http.MethodPost, "/chat", map[string]string{"text": "what's up?"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Response string `json:"response"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "You have no tasks.", resp.Response)
}

func TestChatRequiresText(t *testing.T) {
	h, _ := newHandler(t, &fakeAssistant{}, false)
	rec := doJSON(t, h, http.MethodPost, "/chat", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTodosCRUD(t *testing.T) {
	h, _ := newHandler(t, &fakeAssistant{}, false)

	// Create through the REST surface; the due date is normalized.
	rec := doJSON(t, h, http.MethodPost, "/todos", map[string]string{"todo": "buy milk", "due_date": "tomorrow"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID      int64  `json:"id"`
		Todo    string `json:"todo"`
		DueDate string `json:"due_date"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "buy milk", created.Todo)
	assert.Equal(t, "2025-06-11", created.DueDate)

	rec = doJSON(t, h, http.MethodGet, "/todos", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	rec = doJSON(t, h, http.MethodGet, "/todos/search?q=milk", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	rec = doJSON(t, h, http.MethodPost, "/todos/1/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var toggled struct {
		Done bool `json:"done"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&toggled))
	assert.True(t, toggled.Done)

	rec = doJSON(t, h, http.MethodDelete, "/todos/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var del map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&del))
	assert.True(t, del["success"])

	// Deleting again is not an error, just unsuccessful.
	rec = doJSON(t, h, http.MethodDelete, "/todos/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&del))
	assert.False(t, del["success"])
}

func TestCreateTodoDuplicateTitles(t *testing.T) {
	h, _ := newHandler(t, &fakeAssistant{}, false)

	var ids []int64
	for i := 0; i < 2; i++ {
		rec := doJSON(t, h, http.MethodPost, "/todos", map[string]string{"todo": "buy milk"})
		require.Equal(t, http.StatusCreated, rec.Code)

		var created struct {
			ID int64 `json:"id"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
		ids = append(ids, created.ID)
	}

	// Each response echoes the record it created, not a lookalike.
	assert.NotEqual(t, ids[0], ids[1])
}

func TestCreateTodoValidation(t *testing.T) {
	h, _ := newHandler(t, &fakeAssistant{}, false)
	rec := doJSON(t, h, http.MethodPost, "/todos", map[string]string{"todo": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToggleUnknownTask(t *testing.T) {
	h, _ := newHandler(t, &fakeAssistant{}, false)
	rec := doJSON(t, h, http.MethodPost, "/todos/42/toggle", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchAliasesToggle(t *testing.T) {
	h, tasks := newHandler(t, &fakeAssistant{}, false)
	created, _ := tasks.Create(context.Background(), store.Task{Title: "patch me"})

	rec := doJSON(t, h, http.MethodPatch, "/todos/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got, _ := tasks.Toggle(context.Background(), created.ID)
	assert.False(t, got.Done, "toggle twice lands back on false")
}

func TestHealth(t *testing.T) {
	h, _ := newHandler(t, &fakeAssistant{}, false)
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newHandler(t, &fakeAssistant{}, false)

	req := httptest.NewRequest(http.MethodOptions, "/todos", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUpstreamFailureIsBadGateway(t *testing.T) {
	assist := &fakeAssistant{err: contextDeadline{}}
	h, _ := newHandler(t, assist, false)

	rec := doJSON(t, h, http.MethodPost, "/chat", map[string]string{"text": "hello"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

type contextDeadline struct{}

func (contextDeadline) Error() string { return "upstream timeout" }
