package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bdobrica/Himawari/internal/himawari/deploy"
	"github.com/bdobrica/Himawari/internal/himawari/params"
	"github.com/bdobrica/Himawari/internal/himawari/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsApplyTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	s, err := store.New(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s.Close()

	// Reopening must not re-run applied migrations.
	s, err = store.New(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	s.Close()
}

func TestRecordTurn(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.RecordTurn(ctx, store.Turn{
		UserID: "a@corp.test", Department: "Engineering",
		Message: "create a server", Intent: "create", Reply: "which environment?",
	})
	if err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}

	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM turns WHERE user_id = ?", "a@corp.test").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("turns = %d, want 1", count)
	}
}

func TestDispatchLedger(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	req := deploy.Request{
		RequestID: "eng_aws_dev_12345678", Department: "Engineering",
		Service: params.ServiceEC2, Environment: "dev",
		Parameters: map[string]string{"instance_type": "t3.micro"},
	}
	if err := s.RecordDispatch(ctx, "a@corp.test", req, "pipe-1", nil); err != nil {
		t.Fatalf("RecordDispatch: %v", err)
	}

	failed := deploy.Request{RequestID: "eng_aws_dev_87654321", Department: "Engineering",
		Service: params.ServiceEC2, Environment: "dev"}
	if err := s.RecordDispatch(ctx, "a@corp.test", failed, "", context.DeadlineExceeded); err != nil {
		t.Fatalf("RecordDispatch(failed): %v", err)
	}

	recs, err := s.RecentRequests(ctx, "a@corp.test", 10)
	if err != nil {
		t.Fatalf("RecentRequests: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	// Newest first.
	if recs[0].RequestID != "eng_aws_dev_87654321" || recs[0].Status != "failed" {
		t.Errorf("first record = %+v", recs[0])
	}
	if recs[1].Status != "dispatched" || recs[1].PipelineRef != "pipe-1" {
		t.Errorf("second record = %+v", recs[1])
	}

	if others, _ := s.RecentRequests(ctx, "b@corp.test", 10); len(others) != 0 {
		t.Errorf("ledger leaked across users: %v", others)
	}
}
