// Package http implements the REST surface of the speechplan gateway.
//
// All endpoints speak UTF-8 JSON except the raw audio body of /transcribe.
// CORS is permissive: any origin may call the API.
package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"speechplan/internal/gateway"
	"speechplan/internal/message"
	"speechplan/internal/store"
)

const maxAudioBytes = 25 << 20 // 25 MB

// Server is the gateway HTTP server.
type Server struct {
	port   int
	gw     *gateway.Gateway
	tasks  store.Store
	server *http.Server
}

// New creates a server on the given port.
func New(port int, gw *gateway.Gateway, tasks store.Store) *Server {
	return &Server{port: port, gw: gw, tasks: tasks}
}

// Handler builds the full route table, wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /transcribe", s.handleTranscribe)
	mux.HandleFunc("GET /transcribe/{id}", s.handleJob)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /todos", s.handleListTodos)
	mux.HandleFunc("POST /todos", s.handleCreateTodo)
	mux.HandleFunc("GET /todos/search", s.handleSearchTodos)
	mux.HandleFunc("DELETE /todos/{id}", s.handleDeleteTodo)
	mux.HandleFunc("PATCH /todos/{id}", s.handleToggleTodo)
	mux.HandleFunc("POST /todos/{id}/toggle", s.handleToggleTodo)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Swagger UI, serving the generated OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return cors(mux)
}

// ListenAndServe starts the HTTP server. It blocks until the context is
// cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http server listening", "port", s.port)

	go func() {
		<-ctx.Done()
		slog.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Close gracefully shuts down the HTTP server.
func (s *Server) Close() error {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// cors allows any origin on every route, including preflight requests.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// transcribeRequest is the JSON body of POST /transcribe. Raw audio bodies
// with an audio Content-Type are accepted as well.
type transcribeRequest struct {
	Audio string `json:"audio"` // base64, optionally with a data-URL prefix
}

// transcribeResponse is the payload of POST /transcribe.
type transcribeResponse struct {
	Success       bool   `json:"success"`
	Status        string `json:"status,omitempty"`
	JobID         string `json:"job_id,omitempty"`
	Transcription string `json:"transcription,omitempty"`
	ChatResponse  string `json:"chat_response,omitempty"`
	Error         string `json:"error,omitempty"`
}

// handleTranscribe processes one audio submission.
//
// @Summary     Transcribe an audio clip
// @Description Accepts {"audio": "<base64>"} (data-URL prefixes tolerated) or raw audio bytes with an audio Content-Type.
// @Description In synchronous mode the clip is transcribed, resolved, and executed in one round trip; in asynchronous
// @Description mode a pending job handle is returned for polling via GET /transcribe/{id}.
// @Tags        transcription
// @Accept      json
// @Accept      audio/wav
// @Accept      audio/webm
// @Produce     json
// @Success     200 {object} transcribeResponse
// @Failure     400 {object} transcribeResponse
// @Failure     502 {object} transcribeResponse
// @Router      /transcribe [post]
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	clip, contentType, err := readClip(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, transcribeResponse{Success: false, Error: err.Error()})
		return
	}

	result, err := s.gw.SubmitAudio(r.Context(), clip, contentType)
	if err != nil {
		slog.Error("audio submission failed", "error", err)
		writeJSON(w, upstreamStatus(err), transcribeResponse{Success: false, Error: err.Error()})
		return
	}

	if result.Job != nil {
		writeJSON(w, http.StatusOK, transcribeResponse{
			Success: true,
			Status:  string(result.Job.Status),
			JobID:   result.Job.ID,
		})
		return
	}

	writeJSON(w, http.StatusOK, transcribeResponse{
		Success:       true,
		Transcription: result.Transcription,
		ChatResponse:  result.Execution.Reply,
	})
}

// readClip extracts the audio payload from either a JSON body carrying
// base64 or a raw audio body.
func readClip(r *http.Request) ([]byte, string, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/json") {
		var req transcribeRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxAudioBytes)).Decode(&req); err != nil {
			return nil, "", fmt.Errorf("invalid json: %w", err)
		}
		if req.Audio == "" {
			return nil, "", errors.New("no audio data received")
		}

		encoded := req.Audio
		// Strip a data-URL prefix such as "data:audio/webm;base64,".
		if idx := strings.Index(encoded, "base64,"); idx >= 0 {
			encoded = encoded[idx+len("base64,"):]
		}

		clip, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 audio: %w", err)
		}
		return clip, "audio/webm", nil
	}

	clip, err := io.ReadAll(io.LimitReader(r.Body, maxAudioBytes))
	if err != nil {
		return nil, "", fmt.Errorf("reading audio: %w", err)
	}
	if len(clip) == 0 {
		return nil, "", errors.New("no audio data received")
	}
	return clip, contentType, nil
}

// handleJob reports the state of an asynchronous transcription job.
//
// @Summary  Poll a transcription job
// @Tags     transcription
// @Produce  json
// @Param    id  path  string  true  "Job id"
// @Success  200 {object} message.TranscriptionJob
// @Failure  404 {string} string "unknown job"
// @Router   /transcribe/{id} [get]
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.gw.Jobs().Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "unknown job", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type chatRequest struct {
	Text string `json:"text"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// handleChat runs one text turn through the resolve-then-execute chain.
//
// @Summary     Send a chat message
// @Description The text is resolved into an instruction by the language service and executed against the task store.
// @Description The response is the assistant's message or a confirmation of the executed action.
// @Tags        chat
// @Accept      json
// @Produce     json
// @Param       message body chatRequest true "User text"
// @Success     200 {object} chatResponse
// @Failure     400 {string} string "Invalid request body"
// @Failure     502 {string} string "Upstream service unavailable"
// @Router      /chat [post]
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	result, err := s.gw.HandleText(r.Context(), req.Text)
	if err != nil {
		slog.Error("chat turn failed", "error", err)
		http.Error(w, err.Error(), upstreamStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: result.Reply})
}

// handleListTodos returns all tasks, newest first.
//
// @Summary  List tasks
// @Tags     todos
// @Produce  json
// @Success  200 {array} store.Task
// @Router   /todos [get]
func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.List(r.Context())
	if err != nil {
		http.Error(w, "listing tasks: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

type createTodoRequest struct {
	Todo    string `json:"todo"`
	DueDate string `json:"due_date,omitempty"`
}

// handleCreateTodo creates a task directly, bypassing the language service.
// The due date still goes through the normalizer and the calendar scheduler.
//
// @Summary  Create a task
// @Tags     todos
// @Accept   json
// @Produce  json
// @Param    task body createTodoRequest true "Task"
// @Success  201 {object} store.Task
// @Failure  400 {string} string "Invalid request body"
// @Router   /todos [post]
func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var req createTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Todo) == "" {
		http.Error(w, "todo is required", http.StatusBadRequest)
		return
	}

	instr := message.Instruction{
		Kind:     message.KindAction,
		Function: message.FuncCreateTask,
		Args:     message.Args{Title: strings.TrimSpace(req.Todo), DueDate: req.DueDate},
	}
	res, err := s.gw.Execute(r.Context(), instr)
	if err != nil {
		http.Error(w, "creating task: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// The stored record carries the assigned id and normalized due date.
	writeJSON(w, http.StatusCreated, res.Created)
}

// handleSearchTodos returns tasks matching the q query parameter.
//
// @Summary  Search tasks
// @Tags     todos
// @Produce  json
// @Param    q query string true "Search query"
// @Success  200 {array} store.Task
// @Router   /todos/search [get]
func (s *Server) handleSearchTodos(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		http.Error(w, "searching tasks: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// handleDeleteTodo deletes one task. Deleting an unknown id is not a hard
// failure at this layer; the response reports success=false instead.
//
// @Summary  Delete a task
// @Tags     todos
// @Produce  json
// @Param    id path int true "Task id"
// @Success  200 {object} map[string]bool
// @Failure  400 {string} string "Invalid id"
// @Router   /todos/{id} [delete]
func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	deleted, err := s.tasks.Delete(r.Context(), id)
	if err != nil {
		http.Error(w, "deleting task: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": deleted > 0})
}

// handleToggleTodo flips the completion flag of one task.
//
// @Summary  Toggle task completion
// @Tags     todos
// @Produce  json
// @Param    id path int true "Task id"
// @Success  200 {object} store.Task
// @Failure  404 {string} string "Task not found"
// @Router   /todos/{id}/toggle [post]
func (s *Server) handleToggleTodo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	task, err := s.tasks.Toggle(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, store.ErrNotFound.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "toggling task: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleHealth is the liveness probe. No side effects.
//
// @Summary  Liveness probe
// @Tags     health
// @Produce  json
// @Success  200 {object} map[string]string
// @Router   /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func upstreamStatus(err error) int {
	if errors.Is(err, gateway.ErrUpstreamUnavailable) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
