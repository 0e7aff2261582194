package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an asynchronous transcription task.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var (
	ErrNotFound = errors.New("task not found")

	// ErrTerminal is returned when a transition targets a task that
	// already reached a terminal status. The stored status is untouched.
	ErrTerminal = errors.New("task already finished")
)

// Result is what a completed task hands back to pollers.
type Result struct {
	Transcription string
	DownloadURL   string
}

// Task is one tracked transcription request. Exactly one worker writes it
// (a single terminal transition); arbitrarily many pollers read it.
type Task struct {
	ID          string
	Status      Status
	Result      Result
	Error       string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Registry maps task IDs to their status. State is process-scoped: a
// restart forgets all tasks, which is an accepted property of the design.
type Registry struct {
	mu      sync.RWMutex
	tasks   map[string]*Task
	cancels map[string]context.CancelFunc
}

func NewRegistry() *Registry {
	return &Registry{
		tasks:   make(map[string]*Task),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Create registers a new processing task. cancel, if non-nil, is invoked
// when the task is cancelled, letting the worker stop between chunks.
func (r *Registry) Create(cancel context.CancelFunc) *Task {
	t := &Task{
		ID:        uuid.New().String(),
		Status:    StatusProcessing,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.tasks[t.ID] = t
	if cancel != nil {
		r.cancels[t.ID] = cancel
	}
	r.mu.Unlock()

	return t
}

// Get returns a snapshot of the task.
func (r *Registry) Get(id string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return *t, nil
}

// Complete transitions processing -> completed exactly once.
func (r *Registry) Complete(id string, result Result) error {
	return r.finish(id, func(t *Task) {
		t.Status = StatusCompleted
		t.Result = result
	})
}

// Fail transitions processing -> failed exactly once.
func (r *Registry) Fail(id string, cause string) error {
	return r.finish(id, func(t *Task) {
		t.Status = StatusFailed
		t.Error = cause
	})
}

// Cancel signals the worker and transitions processing -> cancelled.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	cancel := r.cancels[id]
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	return r.finish(id, func(t *Task) {
		t.Status = StatusCancelled
	})
}

func (r *Registry) finish(id string, apply func(*Task)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status != StatusProcessing {
		return ErrTerminal
	}

	apply(t)
	now := time.Now()
	t.CompletedAt = &now
	delete(r.cancels, id)
	return nil
}
