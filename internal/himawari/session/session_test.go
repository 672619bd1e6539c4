package session_test

import (
	"sync"
	"testing"
	"time"

	"github.com/bdobrica/Himawari/internal/himawari/params"
	"github.com/bdobrica/Himawari/internal/himawari/session"
)

func TestNewSessionStartsEmpty(t *testing.T) {
	s, err := session.New(params.ServiceEC2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Complete() {
		t.Errorf("fresh session should not be complete")
	}
	if got := len(s.Missing()); got != 5 {
		t.Errorf("missing %d fields, want 5", got)
	}

	if _, err := session.New(params.Service("rds")); err == nil {
		t.Errorf("unknown service should error")
	}
}

func TestMissingFollowsConfig(t *testing.T) {
	s, _ := session.New(params.ServiceS3)
	s.Config.Set(params.FieldBucketName, "reports")
	s.Config.Set(params.FieldEnvironment, "dev")
	s.Config.Set(params.FieldRegion, "us-east-1")

	if !s.Complete() {
		t.Errorf("all S3 fields set; missing = %v", s.Missing())
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := session.NewMemoryStore(0)
	s, _ := session.New(params.ServiceEC2)

	if _, ok := store.Get("a@corp.test"); ok {
		t.Fatalf("empty store returned a session")
	}
	store.Put("a@corp.test", s)
	got, ok := store.Get("a@corp.test")
	if !ok || got != s {
		t.Fatalf("Get = %v, %v", got, ok)
	}

	store.Delete("a@corp.test")
	if _, ok := store.Get("a@corp.test"); ok {
		t.Errorf("session survived Delete")
	}
	// Deleting again is harmless.
	store.Delete("a@corp.test")
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := session.NewMemoryStore(10 * time.Millisecond)
	s, _ := session.New(params.ServiceEC2)
	store.Put("a@corp.test", s)

	time.Sleep(25 * time.Millisecond)
	if _, ok := store.Get("a@corp.test"); ok {
		t.Errorf("stale session should be dropped")
	}
}

func TestLocksSingleFlight(t *testing.T) {
	locks := session.NewLocks()

	release, ok := locks.TryAcquire("a@corp.test")
	if !ok {
		t.Fatalf("first acquire should succeed")
	}
	if _, ok := locks.TryAcquire("a@corp.test"); ok {
		t.Fatalf("second acquire should fail while held")
	}
	if _, ok := locks.TryAcquire("b@corp.test"); !ok {
		t.Errorf("other users must not be blocked")
	}

	release()
	if _, ok := locks.TryAcquire("a@corp.test"); !ok {
		t.Errorf("acquire should succeed after release")
	}
}

func TestLocksUnderContention(t *testing.T) {
	locks := session.NewLocks()
	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if release, ok := locks.TryAcquire("a@corp.test"); ok {
				mu.Lock()
				acquired++
				mu.Unlock()
				release()
			}
		}()
	}
	wg.Wait()

	if acquired == 0 {
		t.Fatalf("no goroutine acquired the lock")
	}
}
