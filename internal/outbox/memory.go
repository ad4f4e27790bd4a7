package outbox

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryQueue is an in-process Queue used when no broker is configured
// and in tests. With a handler attached, published tasks are delivered
// asynchronously in-process; without one they are only recorded.
type MemoryQueue struct {
	mu      sync.Mutex
	tasks   []Task
	handler Handler
	wg      sync.WaitGroup

	// Log receives handler failures, mirroring what the AMQP consumer
	// logs for the same outcome. Optional.
	Log *slog.Logger
}

// NewMemoryQueue builds an in-process queue. handler may be nil.
func NewMemoryQueue(handler Handler) *MemoryQueue {
	return &MemoryQueue{handler: handler}
}

// Publish records the task and, when a handler is attached, runs it in a
// separate goroutine, after the caller's transaction and never inside it.
func (q *MemoryQueue) Publish(ctx context.Context, task Task) error {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	if q.handler != nil {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			if err := q.handler(context.WithoutCancel(ctx), task); err != nil && q.Log != nil {
				q.Log.Error("delivery failed", "task_id", task.ID,
					"message_id", task.MessageID, "error", err)
			}
		}()
	}
	return nil
}

// Tasks returns a copy of all published tasks.
func (q *MemoryQueue) Tasks() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Task, len(q.tasks))
	copy(out, q.tasks)
	return out
}

// Wait blocks until all in-flight handler invocations finish.
func (q *MemoryQueue) Wait() {
	q.wg.Wait()
}

// Close waits for in-flight deliveries.
func (q *MemoryQueue) Close() error {
	q.wg.Wait()
	return nil
}
