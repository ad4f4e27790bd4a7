// Package outbox carries committed messages to the SMS provider. The
// aggregate enqueues a delivery task only after its transaction commits,
// so a consumer can never observe a message that might still roll back.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Task is one post-commit delivery instruction.
type Task struct {
	ID         string    `json:"id"` // correlation id
	MessageID  uint      `json:"message_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewTask builds a delivery task for a committed message.
func NewTask(messageID uint) Task {
	return Task{
		ID:         uuid.NewString(),
		MessageID:  messageID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Queue is the transport delivery tasks travel on between the API
// process and the worker.
type Queue interface {
	Publish(ctx context.Context, task Task) error
	Close() error
}

// Handler processes one consumed delivery task.
type Handler func(ctx context.Context, task Task) error
