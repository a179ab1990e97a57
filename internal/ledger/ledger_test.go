package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// createTestLedger creates an in-memory SQLite ledger for testing
func createTestLedger(t *testing.T) *Ledger {
	t.Helper()

	l, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test ledger: %v", err)
	}

	t.Cleanup(func() {
		_ = l.Close()
	})

	return l
}

func TestOpen(t *testing.T) {
	t.Run("in-memory database", func(t *testing.T) {
		l, err := Open(":memory:")
		if err != nil {
			t.Fatalf("failed to open in-memory ledger: %v", err)
		}
		defer func() { _ = l.Close() }()

		if l.db == nil {
			t.Error("ledger database is nil")
		}
	})

	t.Run("file-based database reopens", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.db")

		l, err := Open(path)
		if err != nil {
			t.Fatalf("failed to open file ledger: %v", err)
		}
		ctx := context.Background()
		if err := l.BeginRun(ctx, Run{ID: "r1", StartedAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
		_ = l.Close()

		l, err = Open(path)
		if err != nil {
			t.Fatalf("failed to reopen ledger: %v", err)
		}
		defer func() { _ = l.Close() }()

		runs, err := l.Recent(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 || runs[0].ID != "r1" {
			t.Errorf("expected persisted run, got %+v", runs)
		}
	})
}

func TestRunLifecycle(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()

	started := time.UnixMilli(1741000000000)
	after := time.UnixMilli(1740900000000)
	until := time.UnixMilli(1740990000000)

	if err := l.BeginRun(ctx, Run{ID: "run-1", StartedAt: started, WindowAfter: after, WindowUntil: until, DryRun: true}); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	runs, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != StatusRunning || !runs[0].FinishedAt.IsZero() {
		t.Fatalf("expected one running run, got %+v", runs)
	}

	for _, d := range []Delivery{
		{RunID: "run-1", Recipient: "a@example.com", Artists: 1, Albums: 2, Status: DeliverySent},
		{RunID: "run-1", Recipient: "b@example.com", Artists: 1, Albums: 1, Status: DeliveryFailed, Error: "550 mailbox unavailable"},
	} {
		if err := l.RecordDelivery(ctx, d); err != nil {
			t.Fatalf("RecordDelivery: %v", err)
		}
	}

	finished := started.Add(time.Minute)
	err = l.FinishRun(ctx, Run{
		ID: "run-1", FinishedAt: finished, Status: StatusFailed,
		Subscribers: 2, Digests: 2, Albums: 3, Sent: 1, Failed: 1, Error: "1 digest failed",
	})
	if err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err = l.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	r := runs[0]
	if r.Status != StatusFailed || r.Sent != 1 || r.Failed != 1 || r.Albums != 3 || r.Error != "1 digest failed" {
		t.Errorf("unexpected run %+v", r)
	}
	if !r.StartedAt.Equal(started) || !r.FinishedAt.Equal(finished) {
		t.Errorf("unexpected times %v %v", r.StartedAt, r.FinishedAt)
	}
	if !r.WindowAfter.Equal(after) || !r.WindowUntil.Equal(until) || !r.DryRun {
		t.Errorf("unexpected window %v %v dry=%v", r.WindowAfter, r.WindowUntil, r.DryRun)
	}

	deliveries, err := l.Deliveries(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(deliveries) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(deliveries))
	}
	if deliveries[0].Recipient != "a@example.com" || deliveries[0].Error != "" {
		t.Errorf("unexpected first delivery %+v", deliveries[0])
	}
	if deliveries[1].Status != DeliveryFailed || deliveries[1].Error != "550 mailbox unavailable" {
		t.Errorf("unexpected second delivery %+v", deliveries[1])
	}
}

func TestFinishUnknownRun(t *testing.T) {
	l := createTestLedger(t)

	if err := l.FinishRun(context.Background(), Run{ID: "missing", Status: StatusOK}); err == nil {
		t.Error("expected error finishing unknown run")
	}
}

func TestDeliveryRequiresRun(t *testing.T) {
	l := createTestLedger(t)

	err := l.RecordDelivery(context.Background(), Delivery{RunID: "missing", Recipient: "a@example.com", Status: DeliverySent})
	if err == nil {
		t.Error("expected foreign key error for unknown run")
	}
}

func TestRecentOrderAndLimit(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()

	base := time.UnixMilli(1741000000000)
	for i, id := range []string{"old", "mid", "new"} {
		if err := l.BeginRun(ctx, Run{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Errorf("expected [new mid], got %+v", runs)
	}
}
