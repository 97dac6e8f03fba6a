package delivery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewScheduler_Validation(t *testing.T) {
	if _, err := NewScheduler(Config{}); err == nil {
		t.Error("NewScheduler() expected error without scan func")
	}

	scan := func(context.Context) (int, error) { return 0, nil }
	if _, err := NewScheduler(Config{Scan: scan, Cron: "not a cron"}); err == nil {
		t.Error("NewScheduler() expected error for bad cron")
	}

	s, err := NewScheduler(Config{Scan: scan})
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "backoff" {
		t.Errorf("Name() = %q, want backoff", s.Name())
	}

	s, err = NewScheduler(Config{Scan: scan, Cron: "*/5 * * * *"})
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "cron" {
		t.Errorf("Name() = %q, want cron", s.Name())
	}
}

func TestScheduler_NextDelay_Cron(t *testing.T) {
	s, err := NewScheduler(Config{
		Scan: func(context.Context) (int, error) { return 0, nil },
		Cron: "*/5 * * * *",
	})
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 5, 1, 10, 2, 30, 0, time.UTC)
	if got := s.nextDelay(now, 7); got != 2*time.Minute+30*time.Second {
		t.Errorf("nextDelay() = %v, want 2m30s", got)
	}
}

func TestScheduler_NextDelay_Backoff(t *testing.T) {
	s, err := NewScheduler(Config{
		Scan:    func(context.Context) (int, error) { return 0, nil },
		Backoff: Backoff{Base: time.Second, Max: 4 * time.Second, Multiplier: 2, Jitter: -1},
	})
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	tests := []struct {
		idle int
		want time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{10, 4 * time.Second},
	}
	for _, tt := range tests {
		if got := s.nextDelay(now, tt.idle); got != tt.want {
			t.Errorf("nextDelay(idle=%d) = %v, want %v", tt.idle, got, tt.want)
		}
	}
}

func TestScheduler_ScansImmediatelyAndOnKick(t *testing.T) {
	var calls atomic.Int32
	scanned := make(chan struct{}, 10)

	s, err := NewScheduler(Config{
		Scan: func(context.Context) (int, error) {
			calls.Add(1)
			scanned <- struct{}{}
			return 0, nil
		},
		Backoff: Backoff{Base: time.Hour, Max: time.Hour, Multiplier: 1, Jitter: -1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	waitScan := func() {
		t.Helper()
		select {
		case <-scanned:
		case <-time.After(2 * time.Second):
			t.Fatal("scan did not run")
		}
	}

	waitScan()
	s.Kick()
	waitScan()

	if got := calls.Load(); got != 2 {
		t.Errorf("scan calls = %d, want 2", got)
	}
}

func TestScheduler_StartTwice(t *testing.T) {
	s, _ := NewScheduler(Config{Scan: func(context.Context) (int, error) { return 0, nil }})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want %v", err, ErrAlreadyStarted)
	}
}

func TestScheduler_StopWaitsForLoop(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var finished atomic.Bool

	s, _ := NewScheduler(Config{
		Scan: func(ctx context.Context) (int, error) {
			close(started)
			<-release
			finished.Store(true)
			return 1, nil
		},
		Backoff: Backoff{Base: time.Hour, Max: time.Hour, Multiplier: 1},
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop() returned while a scan was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}
	if !finished.Load() {
		t.Error("scan did not finish before Stop returned")
	}

	// Stop is idempotent.
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestScheduler_KickNeverBlocks(t *testing.T) {
	s, _ := NewScheduler(Config{Scan: func(context.Context) (int, error) { return 0, nil }})
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			s.Kick()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Kick() blocked on a stopped scheduler")
	}
}
