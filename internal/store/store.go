// Package store defines the task record and the narrow façade through which
// the pipeline reads and writes tasks.
//
// The persistence engine behind the façade is an external collaborator; the
// core issues at most one write per resolved instruction and never keeps an
// authoritative copy of task state beyond a single request cycle.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no task matches the given id.
var ErrNotFound = errors.New("task not found")

// Task is one task record. DueDate is a canonical YYYY-MM-DD string when the
// normalizer understood the user's phrase, or the raw phrase otherwise;
// consumers must not assume it is ISO-shaped.
type Task struct {
	ID              int64     `json:"id"`
	Title           string    `json:"todo"`
	DueDate         string    `json:"due_date,omitempty"`
	Done            bool      `json:"done"`
	CreatedAt       time.Time `json:"created_at"`
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
}

// Store is the task store façade.
type Store interface {
	// Create persists a new task and returns it with its assigned id.
	Create(ctx context.Context, t Task) (Task, error)

	// List returns all tasks, newest first.
	List(ctx context.Context) ([]Task, error)

	// Search returns tasks whose title contains query, case-insensitively.
	Search(ctx context.Context, query string) ([]Task, error)

	// Delete removes the tasks with the given ids and returns how many
	// existed. Missing ids are not an error.
	Delete(ctx context.Context, ids ...int64) (int, error)

	// Toggle flips the completion flag of one task.
	Toggle(ctx context.Context, id int64) (Task, error)

	// Close releases any resources held by the store.
	Close() error
}
