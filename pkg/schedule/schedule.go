// Package schedule drives periodic pipeline runs.
//
// A Scheduler is a small state machine:
//
//	Waiting ──(daily slot or poll interval elapsed)──> Processing
//	Processing ──(success)──> Waiting
//	Processing ──(failure)──> Backoff ──(backoff elapsed)──> Processing
//
// Unless RunImmediately is set, every cycle waits for the next daily slot
// (Hour:Minute in Location) after its poll interval. A failed run is retried
// after the backoff without waiting for the next slot.
//
// A run in progress is never cut short by canceling the context passed to
// Run: it continues on a detached context bounded by a run timeout, and Run
// returns once it finishes.
package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentstation/pubmap/pkg/constants"
	"github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/logging"
)

// State is the scheduler's current phase.
type State int32

const (
	// Waiting means the scheduler is idle until the next run.
	Waiting State = iota
	// Processing means a run is in progress.
	Processing
	// Backoff means the last run failed and a retry is pending.
	Backoff
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Processing:
		return "processing"
	case Backoff:
		return "backoff"
	}
	return "unknown"
}

// Runner performs one run.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc allows functions to implement Runner.
type RunnerFunc func(ctx context.Context) error

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Config holds the schedule settings.
type Config struct {
	RunImmediately bool
	Hour           int
	Minute         int
	Location       *time.Location
	PollInterval   time.Duration
	Backoff        time.Duration
}

// DefaultConfig returns the daily 22:00 schedule with the default intervals.
func DefaultConfig() Config {
	return Config{
		Hour:         constants.DefaultRunHour,
		Minute:       constants.DefaultRunMinute,
		Location:     time.Local,
		PollInterval: constants.DefaultPollInterval,
		Backoff:      constants.DefaultRetryBackoff,
	}
}

// Validate checks the schedule settings.
func (c Config) Validate() error {
	switch {
	case c.Hour < 0 || c.Hour > 23:
		return errors.NewValidationError("hour", c.Hour, "must be between 0 and 23")
	case c.Minute < 0 || c.Minute > 59:
		return errors.NewValidationError("minute", c.Minute, "must be between 0 and 59")
	case c.PollInterval <= 0:
		return errors.NewValidationError("poll_interval", c.PollInterval, "must be positive")
	case c.Backoff <= 0:
		return errors.NewValidationError("backoff", c.Backoff, "must be positive")
	}
	return nil
}

// NextRun returns the next hour:minute at or after now, in now's location.
func NextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if next.Before(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// SleepFunc blocks for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithSleep replaces the function used to wait between runs.
func WithSleep(sleep SleepFunc) Option {
	return func(s *Scheduler) { s.sleep = sleep }
}

// WithRunTimeout bounds a single run.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.runTimeout = d }
}

// Scheduler runs a Runner on a schedule.
type Scheduler struct {
	runner     Runner
	cfg        Config
	now        func() time.Time
	sleep      SleepFunc
	runTimeout time.Duration

	state atomic.Int32
	runs  atomic.Int64

	mu   sync.RWMutex
	next time.Time
}

// New creates a scheduler. Invalid settings are reported by Run.
func New(runner Runner, cfg Config, opts ...Option) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	s := &Scheduler{
		runner:     runner,
		cfg:        cfg,
		now:        time.Now,
		sleep:      Sleep,
		runTimeout: constants.RunTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Runs returns the number of runs started so far.
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

// Next returns when the scheduler will next start a run. It is zero while a
// run is in progress.
func (s *Scheduler) Next() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next
}

func (s *Scheduler) setState(state State, next time.Time) {
	s.mu.Lock()
	s.next = next
	s.mu.Unlock()
	s.state.Store(int32(state))
}

// Run loops until ctx is canceled and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	if s.runner == nil {
		return errors.NewValidationError("runner", nil, "runner is required")
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	logger := logging.FromContext(ctx)

	retrying := false
	for {
		if !s.cfg.RunImmediately && !retrying {
			now := s.now().In(s.cfg.Location)
			next := NextRun(now, s.cfg.Hour, s.cfg.Minute)
			s.setState(Waiting, next)
			logger.Info().
				Time("next_run", next).
				Str("wait", next.Sub(now).Round(time.Second).String()).
				Msg("Waiting for scheduled run")
			if err := s.sleep(ctx, next.Sub(now)); err != nil {
				return err
			}
		}

		s.setState(Processing, time.Time{})
		err := s.runOnce(ctx)

		if err != nil {
			retrying = true
			s.setState(Backoff, s.now().Add(s.cfg.Backoff))
			logger.Error().
				Err(err).
				Dur("retry_in", s.cfg.Backoff).
				Msg("Run failed, backing off")
			if err := s.sleep(ctx, s.cfg.Backoff); err != nil {
				return err
			}
			continue
		}

		retrying = false
		s.setState(Waiting, s.now().Add(s.cfg.PollInterval))
		logger.Debug().Dur("poll_interval", s.cfg.PollInterval).Msg("Run finished, waiting for next check")
		if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
			return err
		}
	}
}

// runOnce runs on a context that ignores cancellation of ctx, so a shutdown
// never interrupts a run between its writes.
func (s *Scheduler) runOnce(ctx context.Context) error {
	s.runs.Add(1)
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.runTimeout)
	defer cancel()
	return s.runner.Run(runCtx)
}
