package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	s := New(time.UTC)

	if err := s.Register("expiry-sweep", "*/5 * * * *", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := s.Register("expiry-sweep", "*/10 * * * *", func(context.Context) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("expected duplicate-name error, got %v", err)
	}
}

func TestRegisterRejectsBadCronSpec(t *testing.T) {
	s := New(time.UTC)

	if err := s.Register("broken", "not a spec", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected error for malformed cron spec")
	}
}

func TestRunNowUnknownJob(t *testing.T) {
	s := New(time.UTC)

	err := s.RunNow("missing")
	if err == nil || !strings.Contains(err.Error(), "unknown job") {
		t.Fatalf("expected unknown-job error, got %v", err)
	}
}

func TestRunNowExecutesAndRecordsOutcome(t *testing.T) {
	s := New(time.UTC)

	jobErr := errors.New("sweep failed")
	ran := 0
	if err := s.Register("expiry-sweep", "*/5 * * * *", func(context.Context) error {
		ran++
		if ran == 1 {
			return jobErr
		}
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := s.RunNow("expiry-sweep"); !errors.Is(err, jobErr) {
		t.Fatalf("expected job error surfaced, got %v", err)
	}

	statuses := s.Status()
	if len(statuses) != 1 {
		t.Fatalf("expected one job status, got %d", len(statuses))
	}
	if statuses[0].LastError != "sweep failed" {
		t.Fatalf("expected last error recorded, got %q", statuses[0].LastError)
	}
	if statuses[0].LastRun == nil {
		t.Fatalf("expected last run timestamp")
	}

	if err := s.RunNow("expiry-sweep"); err != nil {
		t.Fatalf("second RunNow: %v", err)
	}
	if got := s.Status()[0].LastError; got != "" {
		t.Fatalf("expected last error cleared after a clean run, got %q", got)
	}
}

func TestRunNowIsSingleFlight(t *testing.T) {
	s := New(time.UTC)

	entered := make(chan struct{})
	release := make(chan struct{})
	if err := s.Register("slow", "*/5 * * * *", func(context.Context) error {
		close(entered)
		<-release
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.RunNow("slow") }()

	<-entered

	statuses := s.Status()
	if statuses[0].State != StateRunning {
		t.Fatalf("expected running state, got %q", statuses[0].State)
	}

	err := s.RunNow("slow")
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected already-running error, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("blocked run: %v", err)
	}

	statuses = s.Status()
	if statuses[0].State != StateIdle {
		t.Fatalf("expected idle state after release, got %q", statuses[0].State)
	}
	if statuses[0].SkippedTicks != 1 {
		t.Fatalf("expected one skipped tick, got %d", statuses[0].SkippedTicks)
	}
}

func TestStatusReportsNextRunOnceStarted(t *testing.T) {
	s := New(time.UTC)

	if err := s.Register("reminder-24h", "*/10 * * * *", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Register: %v", err)
	}

	s.Start()
	defer s.Stop()

	statuses := s.Status()
	if statuses[0].Name != "reminder-24h" || statuses[0].Spec != "*/10 * * * *" {
		t.Fatalf("unexpected status %+v", statuses[0])
	}
	if statuses[0].NextRun == nil || !statuses[0].NextRun.After(time.Now().Add(-time.Second)) {
		t.Fatalf("expected a future next run, got %v", statuses[0].NextRun)
	}
}
