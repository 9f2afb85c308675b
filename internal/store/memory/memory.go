// Package memory implements the task store façade with an in-process map.
//
// It is the default backend for local runs and tests. All methods are safe
// for concurrent use.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"speechplan/internal/store"
)

// Store is an in-memory task store.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	tasks  map[int64]store.Task
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{tasks: make(map[int64]store.Task)}
}

// Create persists a new task and assigns it an id.
func (s *Store) Create(ctx context.Context, t store.Task) (store.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	t.ID = s.nextID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	s.tasks[t.ID] = t
	return t, nil
}

// List returns all tasks, newest first.
func (s *Store) List(ctx context.Context) ([]store.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]store.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID > tasks[j].ID
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// Search returns tasks whose title contains query, case-insensitively.
func (s *Store) Search(ctx context.Context, query string) ([]store.Task, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	matched := make([]store.Task, 0)
	for _, t := range all {
		if strings.Contains(strings.ToLower(t.Title), needle) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// Delete removes the given ids and reports how many tasks existed.
func (s *Store) Delete(ctx context.Context, ids ...int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		if _, ok := s.tasks[id]; ok {
			delete(s.tasks, id)
			deleted++
		}
	}
	return deleted, nil
}

// Toggle flips the completion flag of one task.
func (s *Store) Toggle(ctx context.Context, id int64) (store.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return store.Task{}, store.ErrNotFound
	}
	t.Done = !t.Done
	s.tasks[id] = t
	return t, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }
