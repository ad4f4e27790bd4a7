package outbox_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jbaxter/correspond/internal/models"
	"github.com/jbaxter/correspond/internal/outbox"
)

func TestNewTask(t *testing.T) {
	a := outbox.NewTask(42)
	b := outbox.NewTask(42)
	if a.MessageID != 42 {
		t.Errorf("message id = %d, want 42", a.MessageID)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("task ids %q and %q, want distinct non-empty", a.ID, b.ID)
	}
	if a.EnqueuedAt.IsZero() {
		t.Error("enqueued at is zero")
	}
}

func TestMemoryQueueRecords(t *testing.T) {
	q := outbox.NewMemoryQueue(nil)
	for i := uint(1); i <= 3; i++ {
		if err := q.Publish(context.Background(), outbox.NewTask(i)); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	tasks := q.Tasks()
	if len(tasks) != 3 {
		t.Fatalf("tasks = %d, want 3", len(tasks))
	}
	if tasks[0].MessageID != 1 || tasks[2].MessageID != 3 {
		t.Errorf("task order = %v, want publish order", tasks)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestMemoryQueueDeliversToHandler(t *testing.T) {
	var mu sync.Mutex
	var seen []uint
	q := outbox.NewMemoryQueue(func(ctx context.Context, task outbox.Task) error {
		mu.Lock()
		seen = append(seen, task.MessageID)
		mu.Unlock()
		return nil
	})

	// A cancelled publish context must not cancel the delivery.
	ctx, cancel := context.WithCancel(context.Background())
	if err := q.Publish(ctx, outbox.NewTask(7)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	cancel()
	q.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != 7 {
		t.Errorf("handled = %v, want [7]", seen)
	}
}

func TestMemoryQueueLogsHandlerFailure(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	q := outbox.NewMemoryQueue(func(ctx context.Context, task outbox.Task) error {
		return errors.New("stamp failed")
	})
	q.Log = log

	task := outbox.NewTask(7)
	if err := q.Publish(context.Background(), task); err != nil {
		t.Fatalf("publish: %v", err)
	}
	q.Wait()

	out := buf.String()
	if !strings.Contains(out, "delivery failed") {
		t.Errorf("log output %q, want to contain %q", out, "delivery failed")
	}
	if !strings.Contains(out, task.ID) {
		t.Errorf("log output %q, want to contain task id %q", out, task.ID)
	}
}

func TestSweepPurgesStaleUnlinkedParts(t *testing.T) {
	gdb := openTestDB(t)
	f := seed(t, gdb)

	msgID := uint(1)
	old := time.Now().Add(-72 * time.Hour)
	parts := []models.MessagePart{
		{OrganizationID: f.org.ID, SenderID: f.receiver.ID, ProviderID: "stale", Body: "a", PartIndex: 1, PartRef: "r1", CreatedAt: old},
		{OrganizationID: f.org.ID, SenderID: f.receiver.ID, ProviderID: "fresh", Body: "b", PartIndex: 1, PartRef: "r2"},
		{OrganizationID: f.org.ID, SenderID: f.receiver.ID, ProviderID: "linked", Body: "c", PartIndex: 1, PartRef: "r3", MessageID: &msgID, CreatedAt: old},
	}
	if err := gdb.Create(&parts).Error; err != nil {
		t.Fatalf("create parts: %v", err)
	}

	n, err := outbox.Sweep(gdb, 48*time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("swept = %d, want 1", n)
	}

	var remaining []models.MessagePart
	gdb.Find(&remaining)
	if len(remaining) != 2 {
		t.Fatalf("remaining parts = %d, want 2", len(remaining))
	}
	for _, p := range remaining {
		if p.ProviderID == "stale" {
			t.Error("stale unlinked part survived the sweep")
		}
	}
}
