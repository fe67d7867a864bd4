package supervisor

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"basisarb/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func waitForStatus(t *testing.T, s *Supervisor, name string, want Status) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s.Status(name) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("unit %q never reached status %s (last: %s)", name, want, s.Status(name))
}

func TestSupervisor_DuplicateName(t *testing.T) {
	s := New(testLogger())
	ctx := context.Background()

	block := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	if err := s.Add(ctx, "worker", block); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := s.Add(ctx, "worker", block); err == nil {
		t.Fatal("expected duplicate name to fail")
	}
	s.Cancel(ctx, "worker")
}

func TestSupervisor_DerivedStatus(t *testing.T) {
	s := New(testLogger())
	ctx := context.Background()

	release := make(chan error)
	if err := s.Add(ctx, "worker", func(ctx context.Context) error {
		select {
		case err := <-release:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if got := s.Status("worker"); got != StatusActive {
		t.Fatalf("Status = %s, want %s", got, StatusActive)
	}
	if got := s.Status("missing"); got != StatusUnknown {
		t.Fatalf("Status = %s, want %s", got, StatusUnknown)
	}

	release <- nil
	waitForStatus(t, s, "worker", StatusDone)
}

func TestSupervisor_ErrorStatus(t *testing.T) {
	s := New(testLogger())
	wantErr := errors.New("boom")

	if err := s.Add(context.Background(), "worker", func(ctx context.Context) error {
		return wantErr
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	waitForStatus(t, s, "worker", StatusError)
	if got := s.Err("worker"); !errors.Is(got, wantErr) {
		t.Fatalf("Err = %v, want %v", got, wantErr)
	}
}

func TestSupervisor_CancelIsIdempotent(t *testing.T) {
	s := New(testLogger())
	ctx := context.Background()

	if err := s.Add(ctx, "worker", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	s.Cancel(ctx, "worker")
	s.Cancel(ctx, "worker") // second cancel is a no-op
	s.Cancel(ctx, "never-added")

	if got := s.Status("worker"); got != StatusUnknown {
		t.Fatalf("Status after cancel = %s, want %s (name released)", got, StatusUnknown)
	}
}

func TestSupervisor_CancelAllSparesCaller(t *testing.T) {
	s := New(testLogger())
	ctx := context.Background()

	block := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	for _, name := range []string{"a", "b", "caller"} {
		if err := s.Add(ctx, name, block); err != nil {
			t.Fatalf("Add %q: %v", name, err)
		}
	}

	s.CancelAll(ctx, "caller")

	if got := s.Status("caller"); got != StatusActive {
		t.Fatalf("caller status = %s, want %s", got, StatusActive)
	}
	for _, name := range []string{"a", "b"} {
		if got := s.Status(name); got != StatusUnknown {
			t.Fatalf("unit %q status = %s, want %s", name, got, StatusUnknown)
		}
	}
	s.Cancel(ctx, "caller")
}
