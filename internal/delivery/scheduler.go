package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrAlreadyStarted is returned by Start on a running scheduler.
var ErrAlreadyStarted = errors.New("delivery: scheduler already started")

// ScanFunc runs one retry pass and returns how many items it re-drove.
type ScanFunc func(ctx context.Context) (int, error)

// Config holds the scheduler configuration.
type Config struct {
	// Scan is invoked on every tick. Required.
	Scan ScanFunc

	// Backoff controls adaptive intervals. Ignored when Cron is set.
	Backoff Backoff

	// Cron, if set, is a standard cron expression or descriptor
	// ("*/5 * * * *", "@every 2m") that replaces adaptive backoff.
	Cron string

	// Logger receives scan results.
	Logger zerolog.Logger
}

// Scheduler runs retry scans periodically and on demand.
type Scheduler struct {
	scan     ScanFunc
	backoff  Backoff
	schedule cron.Schedule
	logger   zerolog.Logger

	kick   chan struct{}
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler validates cfg and returns a stopped scheduler.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Scan == nil {
		return nil, fmt.Errorf("delivery: scan func is required")
	}
	s := &Scheduler{
		scan:    cfg.Scan,
		backoff: cfg.Backoff.withDefaults(),
		logger:  cfg.Logger,
		kick:    make(chan struct{}, 1),
	}
	if cfg.Cron != "" {
		schedule, err := cron.ParseStandard(cfg.Cron)
		if err != nil {
			return nil, fmt.Errorf("delivery: parse cron %q: %w", cfg.Cron, err)
		}
		s.schedule = schedule
	}
	return s, nil
}

// Name returns the scheduling mode for logging.
func (s *Scheduler) Name() string {
	if s.schedule != nil {
		return "cron"
	}
	return "backoff"
}

// Start runs a first scan immediately and keeps scanning until ctx is
// cancelled or Stop is called. It returns at once.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	return nil
}

// Stop halts the loop and waits for an in-flight scan to finish.
// Stop is idempotent.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Kick requests a scan as soon as possible. It never blocks; kicks that
// arrive while one is already pending are merged.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	idle := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := s.scan(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("retry scan failed")
			idle = 0
		case n > 0:
			s.logger.Debug().Int("resent", n).Msg("retry scan re-drove deliveries")
			idle = 0
		default:
			idle++
		}

		wait := s.nextDelay(time.Now(), idle)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.kick:
			timer.Stop()
			idle = 0
		case <-timer.C:
		}
	}
}

// nextDelay returns the wait before the next scan after idle consecutive
// scans with nothing to do.
func (s *Scheduler) nextDelay(now time.Time, idle int) time.Duration {
	if s.schedule != nil {
		return s.schedule.Next(now).Sub(now)
	}
	if idle > 0 {
		idle--
	}
	return s.backoff.Delay(idle)
}
