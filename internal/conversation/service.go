package conversation

import (
	"context"
	"log/slog"

	"github.com/jbaxter/correspond/internal/models"
	"github.com/jbaxter/correspond/internal/outbox"
	"gorm.io/gorm"
)

// Service couples the aggregate with the post-commit delivery outbox.
type Service struct {
	DB    *gorm.DB
	Queue outbox.Queue
	Log   *slog.Logger
}

// Append appends a message and, when opts.Send is set, enqueues a
// delivery task once the transaction has committed. Enqueue failures
// are logged, not surfaced: the message is durably committed and
// delivery is fire-and-forget.
func (s *Service) Append(ctx context.Context, opts AppendOpts) (*models.Message, error) {
	msg, err := Append(s.DB, opts)
	if err != nil {
		return nil, err
	}
	if opts.Send {
		if err := s.Queue.Publish(ctx, outbox.NewTask(msg.ID)); err != nil {
			s.Log.Error("enqueue delivery", "message_id", msg.ID, "error", err)
		}
	}
	return msg, nil
}
