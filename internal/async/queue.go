package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrQueueClosed is returned by Enqueue after Shutdown started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Task carries one job's document to a worker. Content never touches the database.
type Task struct {
	JobID       uuid.UUID
	Content     []byte
	SubmittedAt time.Time
	RequestID   string
}

// Handler runs a task to a terminal job state.
type Handler interface {
	Process(ctx context.Context, task Task) error
}

type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Shutdown(ctx context.Context)
}
