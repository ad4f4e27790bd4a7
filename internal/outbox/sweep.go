package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jbaxter/correspond/internal/models"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the
// duration until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// Sweep deletes unlinked message parts older than retention. Groups that
// never completed (a fragment got lost at the provider) would otherwise
// block their part-ref forever; linked parts are kept for audit.
func Sweep(db *gorm.DB, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res := db.Where("message_id IS NULL AND created_at < ?", cutoff).
		Delete(&models.MessagePart{})
	if res.Error != nil {
		return 0, fmt.Errorf("outbox: sweep stale parts: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RunSweeper runs Sweep on the configured cron schedule until ctx is
// cancelled.
func RunSweeper(ctx context.Context, db *gorm.DB, expr string, retention time.Duration, log *slog.Logger) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("outbox: invalid sweep schedule %q: %w", expr, err)
	}
	for {
		d := nextCronDuration(expr)
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		n, err := Sweep(db, retention)
		if err != nil {
			log.Error("sweep failed", "error", err)
			continue
		}
		if n > 0 {
			log.Info("swept stale message parts", "count", n)
		}
	}
}
