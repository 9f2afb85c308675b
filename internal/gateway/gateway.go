// Package gateway implements the request-orchestration core.
//
// The gateway receives audio or text from a client, calls the upstream
// speech and language services through the assistant, interprets the reply
// with the structured-response parser, normalizes date arguments, and
// dispatches the resolved instruction to the task store façade. Each cycle
// is a linear chain, transcription before resolution before execution,
// with no shared mutable state across cycles except the store.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"speechplan/internal/assistant"
	"speechplan/internal/calendar"
	"speechplan/internal/dates"
	"speechplan/internal/message"
	"speechplan/internal/parse"
	"speechplan/internal/store"
)

// ErrUpstreamUnavailable marks a failure of the remote speech or language
// service. It is always reported distinctly, never silently converted into
// an empty instruction.
var ErrUpstreamUnavailable = errors.New("upstream service unavailable")

// ExecutionResult is the outcome of executing one instruction.
type ExecutionResult struct {
	// Reply is the user-facing message: an output instruction's message
	// verbatim, or a confirmation derived from the executed action.
	Reply string `json:"reply"`

	// Tasks holds the records returned by listTasks / searchTask.
	Tasks []store.Task `json:"tasks,omitempty"`

	// Created is the stored record of a createTask action, with its
	// assigned id and normalized due date.
	Created *store.Task `json:"created,omitempty"`
}

// SubmitResult is what one audio submission produces: a job handle when
// transcription is asynchronous, or the transcription plus the executed
// instruction's result when it is synchronous.
type SubmitResult struct {
	Job           *message.TranscriptionJob
	Transcription string
	Execution     *ExecutionResult
}

// Gateway orchestrates one request/response cycle at a time per call. It is
// safe for concurrent use; cycles are independent.
type Gateway struct {
	assist assistant.Assistant
	tasks  store.Store
	sched  calendar.Scheduler // nil when disabled
	dates  *dates.Normalizer
	jobs   *JobRegistry
	async  bool
}

// New creates a Gateway. sched may be nil to disable calendar events; async
// selects the job-based transcription flow.
func New(assist assistant.Assistant, tasks store.Store, sched calendar.Scheduler, norm *dates.Normalizer, async bool) *Gateway {
	return &Gateway{
		assist: assist,
		tasks:  tasks,
		sched:  sched,
		dates:  norm,
		jobs:   NewJobRegistry(),
		async:  async,
	}
}

// Jobs exposes the transcription job registry for the polling endpoint.
func (g *Gateway) Jobs() *JobRegistry { return g.jobs }

// SubmitAudio forwards a finalized clip to the speech service.
//
// In synchronous mode the transcription is immediately passed through
// ResolveText and Execute, and the full result is returned. In asynchronous
// mode a TranscriptionJob handle is registered and returned for polling; the
// transcription runs in the background.
func (g *Gateway) SubmitAudio(ctx context.Context, clip []byte, contentType string) (*SubmitResult, error) {
	if len(clip) == 0 {
		return nil, errors.New("empty audio clip")
	}

	if g.async {
		job := g.jobs.Create()
		slog.Info("transcription job registered", "job_id", job.ID, "bytes", len(clip))

		go g.runJob(job.ID, clip, contentType)
		return &SubmitResult{Job: &job}, nil
	}

	text, err := g.assist.Transcribe(ctx, clip, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: transcription: %v", ErrUpstreamUnavailable, err)
	}
	slog.Info("transcription complete", "text_length", len(text))

	instr, err := g.ResolveText(ctx, text)
	if err != nil {
		return nil, err
	}

	exec, err := g.Execute(ctx, instr)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Transcription: text, Execution: &exec}, nil
}

// runJob performs one background transcription. The job outlives the
// submitting request, so it gets its own deadline.
func (g *Gateway) runJob(id string, clip []byte, contentType string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	text, err := g.assist.Transcribe(ctx, clip, contentType)
	if err != nil {
		slog.Error("transcription job failed", "job_id", id, "error", err)
		g.jobs.Fail(id, err.Error())
		return
	}
	g.jobs.Complete(id, text)
	slog.Info("transcription job complete", "job_id", id, "text_length", len(text))
}

// ResolveText forwards free-form text to the language service together with
// the fixed response-contract directive and parses the reply into an
// Instruction. Malformed replies degrade to the parser's fallback output;
// transport failures surface as ErrUpstreamUnavailable.
func (g *Gateway) ResolveText(ctx context.Context, text string) (message.Instruction, error) {
	raw, err := g.assist.Complete(ctx, systemDirective(time.Now().Year()), text)
	if err != nil {
		return message.Instruction{}, fmt.Errorf("%w: completion: %v", ErrUpstreamUnavailable, err)
	}

	instr := parse.Parse(raw)
	slog.Debug("instruction resolved", "kind", instr.Kind, "function", instr.Function)
	return instr, nil
}

// Execute applies one instruction. An action instruction results in exactly
// one task store call; an output instruction touches nothing and its message
// is surfaced verbatim.
func (g *Gateway) Execute(ctx context.Context, instr message.Instruction) (ExecutionResult, error) {
	if instr.Kind == message.KindOutput {
		return ExecutionResult{Reply: instr.Message}, nil
	}

	switch instr.Function {
	case message.FuncCreateTask:
		return g.createTask(ctx, instr.Args)

	case message.FuncListTasks:
		tasks, err := g.tasks.List(ctx)
		if err != nil {
			return ExecutionResult{}, fmt.Errorf("%w: listing tasks: %v", ErrUpstreamUnavailable, err)
		}
		if len(tasks) == 0 {
			return ExecutionResult{Reply: "You don't have any tasks yet. Try adding some!"}, nil
		}
		return ExecutionResult{
			Reply: "Here are your tasks:\n" + formatTasks(tasks),
			Tasks: tasks,
		}, nil

	case message.FuncSearchTask:
		tasks, err := g.tasks.Search(ctx, instr.Args.Title)
		if err != nil {
			return ExecutionResult{}, fmt.Errorf("%w: searching tasks: %v", ErrUpstreamUnavailable, err)
		}
		if len(tasks) == 0 {
			return ExecutionResult{Reply: fmt.Sprintf("No tasks found matching '%s'.", instr.Args.Title)}, nil
		}
		return ExecutionResult{
			Reply: fmt.Sprintf("Found %d tasks matching '%s':\n%s", len(tasks), instr.Args.Title, formatTasks(tasks)),
			Tasks: tasks,
		}, nil

	case message.FuncDeleteTaskByID:
		deleted, err := g.tasks.Delete(ctx, instr.Args.IDs...)
		if err != nil {
			return ExecutionResult{}, fmt.Errorf("%w: deleting tasks: %v", ErrUpstreamUnavailable, err)
		}
		if deleted == 0 {
			return ExecutionResult{Reply: "Task not found."}, nil
		}
		return ExecutionResult{Reply: "Task deleted successfully!"}, nil
	}

	return ExecutionResult{}, fmt.Errorf("unsupported function: %s", instr.Function)
}

// createTask normalizes the due date, schedules a calendar event when
// configured, and performs the single store write.
func (g *Gateway) createTask(ctx context.Context, args message.Args) (ExecutionResult, error) {
	task := store.Task{Title: args.Title}

	if args.DueDate != "" {
		task.DueDate = g.dates.Normalize(args.DueDate)

		if g.sched != nil {
			eventID, err := g.sched.Schedule(ctx, task.Title, task.DueDate)
			if err != nil {
				// Calendar failures never block task creation.
				slog.Warn("calendar event creation failed", "error", err)
			} else {
				task.CalendarEventID = eventID
			}
		}
	}

	created, err := g.tasks.Create(ctx, task)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("%w: creating task: %v", ErrUpstreamUnavailable, err)
	}

	slog.Info("task created", "id", created.ID, "due_date", created.DueDate)
	return ExecutionResult{
		Reply:   fmt.Sprintf("Added '%s' to your tasks!", created.Title),
		Created: &created,
	}, nil
}

// HandleText runs the resolve-then-execute chain for one text turn. This is
// the /chat entry point.
func (g *Gateway) HandleText(ctx context.Context, text string) (ExecutionResult, error) {
	instr, err := g.ResolveText(ctx, text)
	if err != nil {
		return ExecutionResult{}, err
	}
	return g.Execute(ctx, instr)
}

func formatTasks(tasks []store.Task) string {
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		line := "• " + t.Title
		if t.DueDate != "" {
			line += fmt.Sprintf(" (Due: %s)", t.DueDate)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
