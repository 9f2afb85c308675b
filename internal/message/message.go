// Package message defines the core data types flowing through the speechplan pipeline.
package message

import "time"

// Kind discriminates the two Instruction variants.
type Kind string

const (
	// KindAction means the assistant asked for one of the task functions to run.
	KindAction Kind = "action"

	// KindOutput means the assistant produced a user-facing message and nothing
	// should touch the task store.
	KindOutput Kind = "output"
)

// Function names the task operations the assistant is allowed to request.
type Function string

const (
	FuncCreateTask     Function = "createTask"
	FuncListTasks      Function = "listTasks"
	FuncSearchTask     Function = "searchTask"
	FuncDeleteTaskByID Function = "deleteTaskById"
)

// KnownFunction reports whether f is one of the four task functions.
func KnownFunction(f Function) bool {
	switch f {
	case FuncCreateTask, FuncListTasks, FuncSearchTask, FuncDeleteTaskByID:
		return true
	}
	return false
}

// Args carries the decoded arguments of an action instruction. Only the
// fields relevant to the requested function are populated.
type Args struct {
	// Title is the task title for createTask, or the search query for searchTask.
	Title string `json:"title,omitempty"`

	// DueDate is the raw due-date expression for createTask. It may be a
	// natural-language phrase; the gateway normalizes it before any store write.
	DueDate string `json:"due_date,omitempty"`

	// IDs holds the target task id(s) for deleteTaskById.
	IDs []int64 `json:"ids,omitempty"`
}

// Instruction is the parsed, validated output of one assistant turn: either
// an action to perform or a message to display. It is produced by the parser,
// consumed exactly once by the gateway, and never persisted.
type Instruction struct {
	Kind     Kind     `json:"kind"`
	Function Function `json:"function,omitempty"`
	Args     Args     `json:"args,omitempty"`

	// Message is the user-facing text for output instructions.
	Message string `json:"message,omitempty"`
}

// Output builds an output instruction carrying msg verbatim.
func Output(msg string) Instruction {
	return Instruction{Kind: KindOutput, Message: msg}
}

// JobStatus is the lifecycle state of an asynchronous transcription job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
	JobError     JobStatus = "error"
)

// TranscriptionJob is the handle returned when audio is submitted to an
// asynchronous transcription backend. Terminal on completed or error;
// read-only to callers outside the gateway.
type TranscriptionJob struct {
	ID            string    `json:"job_id"`
	Status        JobStatus `json:"status"`
	Transcription string    `json:"transcription,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Terminal reports whether the job has reached a final status.
func (j TranscriptionJob) Terminal() bool {
	return j.Status == JobCompleted || j.Status == JobError
}

// Sender identifies which side of the conversation produced a ChatTurn.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ChatTurn is one entry of the append-only conversation log rendered by the
// UI. The gateway never consults turns beyond the current one; instruction
// resolution is stateless across turns.
type ChatTurn struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
