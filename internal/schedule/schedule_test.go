package schedule

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(time.UTC, 0, testLogger)
	if err := s.Add("auto", "not a spec", func(context.Context) error { return nil }); err == nil {
		t.Error("expected parse error")
	}
	// seconds field is not accepted
	if err := s.Add("auto", "0 30 7 * * *", func(context.Context) error { return nil }); err == nil {
		t.Error("expected six-field spec to be rejected")
	}
}

func TestAddDuplicate(t *testing.T) {
	s := New(time.UTC, 0, testLogger)
	job := func(context.Context) error { return nil }
	if err := s.Add("auto", "30 7 * * *", job); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("auto", "0 8 * * *", job); err == nil {
		t.Error("expected duplicate name to be rejected")
	}
}

func TestNextUsesLocation(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	s := New(seoul, 0, testLogger)
	if err := s.Add("auto", "30 7 * * *", func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop(context.Background())

	next, ok := s.Next("auto")
	if !ok {
		t.Fatal("expected a next activation")
	}
	local := next.In(seoul)
	if local.Hour() != 7 || local.Minute() != 30 {
		t.Errorf("expected 07:30 KST, got %s", local)
	}
	if _, ok := s.Next("missing"); ok {
		t.Error("unknown job must have no next time")
	}
}

func TestRunRecoversAndReportsErrors(t *testing.T) {
	s := New(time.UTC, time.Second, testLogger)
	var calls atomic.Int32

	s.run("auto", func(ctx context.Context) error {
		calls.Add(1)
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected a deadline on the run context")
		}
		return errors.New("boom")
	})
	if calls.Load() != 1 {
		t.Errorf("expected one call, got %d", calls.Load())
	}
}

func TestStopCancelsRunContext(t *testing.T) {
	s := New(time.UTC, 0, testLogger)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.ctx.Err() == nil {
		t.Error("run context should be cancelled after Stop")
	}
}

func TestEveryDescriptorFires(t *testing.T) {
	s := New(time.UTC, 0, testLogger)
	fired := make(chan struct{}, 1)
	if err := s.Add("tick", "@every 1s", func(context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop(context.Background())

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job did not run")
	}
}
