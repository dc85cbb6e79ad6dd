package livesync

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/poiesic/recall/core"
)

const (
	DefaultInterval    = 30 * time.Minute
	DefaultCooldown    = 60 * time.Second
	DefaultHoursBack   = 24
	DefaultJoinTimeout = 5 * time.Second
)

// Runner performs one sync. *Engine implements it.
type Runner interface {
	Sync(ctx context.Context, hoursBack int, channels []string) (*core.SyncResult, error)
}

var _ Runner = (*Engine)(nil)

// Status is a snapshot of the scheduler.
type Status struct {
	Running      bool
	Interval     time.Duration
	Cron         string
	HoursBack    int
	Channels     []string
	LastSyncTime time.Time
	LastResult   *core.SyncResult
	LastError    error
	NextSyncTime time.Time
}

// Scheduler runs a Runner periodically in a background goroutine.
// The first sync starts immediately on Start. After a failed sync the
// scheduler waits the cooldown before resuming the normal cadence.
type Scheduler struct {
	runner      Runner
	interval    time.Duration
	jitter      time.Duration
	cooldown    time.Duration
	cron        string
	hoursBack   int
	channels    []string
	joinTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger

	// runMu serializes sync cycles between the loop and RunOnce.
	runMu sync.Mutex

	mu         sync.Mutex
	running    bool
	stop       chan struct{}
	done       chan struct{}
	lastSync   time.Time
	lastResult *core.SyncResult
	lastErr    error
	nextSync   time.Time
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler) error

// WithInterval sets the time between syncs.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) error {
		if d <= 0 {
			return fmt.Errorf("interval must be positive, got %s", d)
		}
		s.interval = d
		return nil
	}
}

// WithJitter adds a random delay in [0, d) to every wait.
func WithJitter(d time.Duration) SchedulerOption {
	return func(s *Scheduler) error {
		if d < 0 {
			return fmt.Errorf("jitter must not be negative, got %s", d)
		}
		s.jitter = d
		return nil
	}
}

// WithCooldown sets the extra wait after a failed sync.
func WithCooldown(d time.Duration) SchedulerOption {
	return func(s *Scheduler) error {
		if d < 0 {
			return fmt.Errorf("cooldown must not be negative, got %s", d)
		}
		s.cooldown = d
		return nil
	}
}

// WithCron schedules syncs on a cron expression instead of a fixed interval.
func WithCron(expr string) SchedulerOption {
	return func(s *Scheduler) error {
		if expr == "" {
			s.cron = ""
			return nil
		}
		if !gronx.New().IsValid(expr) {
			return fmt.Errorf("%w: %s", ErrInvalidCron, expr)
		}
		s.cron = expr
		return nil
	}
}

// WithHoursBack sets the window passed to every sync.
func WithHoursBack(hours int) SchedulerOption {
	return func(s *Scheduler) error {
		if hours <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidWindow, hours)
		}
		s.hoursBack = hours
		return nil
	}
}

// WithChannels restricts every sync to the given channel IDs or names.
func WithChannels(channels []string) SchedulerOption {
	return func(s *Scheduler) error {
		s.channels = append([]string(nil), channels...)
		return nil
	}
}

// WithJoinTimeout bounds how long Stop waits for the loop to exit.
func WithJoinTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) error {
		if d <= 0 {
			return fmt.Errorf("join timeout must be positive, got %s", d)
		}
		s.joinTimeout = d
		return nil
	}
}

// WithClock sets the clock used for status times and cron evaluation.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// WithSchedulerLogger sets a custom logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "scheduler")
		return nil
	}
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(runner Runner, opts ...SchedulerOption) (*Scheduler, error) {
	if runner == nil {
		return nil, ErrRunnerRequired
	}
	s := &Scheduler{
		runner:      runner,
		interval:    DefaultInterval,
		cooldown:    DefaultCooldown,
		hoursBack:   DefaultHoursBack,
		joinTimeout: DefaultJoinTimeout,
		now:         time.Now,
		logger:      slog.Default().With("component", "scheduler"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start launches the background loop. Calling Start on a running
// scheduler does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Debug("scheduler already running")
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.logger.Info("scheduler started", "interval", s.interval, "cron", s.cron, "hours_back", s.hoursBack)
	go s.loop(s.stop, s.done)
}

// Stop signals the loop to exit and waits up to the join timeout.
// It is safe to call on a scheduler that was never started.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.nextSync = time.Time{}
	s.mu.Unlock()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-time.After(s.joinTimeout):
		s.logger.Warn("scheduler did not stop in time", "timeout", s.joinTimeout)
		return ErrStopTimeout
	}
}

// RunOnce performs a single sync outside the schedule and records it in
// the status.
func (s *Scheduler) RunOnce(ctx context.Context) (*core.SyncResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.cycle(ctx)
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:      s.running,
		Interval:     s.interval,
		Cron:         s.cron,
		HoursBack:    s.hoursBack,
		Channels:     append([]string(nil), s.channels...),
		LastSyncTime: s.lastSync,
		LastResult:   s.lastResult,
		LastError:    s.lastErr,
		NextSyncTime: s.nextSync,
	}
}

func (s *Scheduler) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		s.runMu.Lock()
		_, err := s.cycle(context.Background())
		s.runMu.Unlock()

		wait := s.nextWait()
		if err != nil {
			wait += s.cooldown
			s.logger.Info("cooling down after failed sync", "cooldown", s.cooldown)
		}

		s.mu.Lock()
		if s.running {
			s.nextSync = s.now().Add(wait)
		}
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// cycle runs one sync, converting a panic into an error so the loop
// survives it.
func (s *Scheduler) cycle(ctx context.Context) (result *core.SyncResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync panicked: %v", r)
		}
		s.mu.Lock()
		s.lastSync = s.now()
		s.lastResult = result
		s.lastErr = err
		s.mu.Unlock()
		if err != nil {
			s.logger.Error("sync failed", "err", err)
		}
	}()

	start := time.Now()
	result, err = s.runner.Sync(ctx, s.hoursBack, s.channels)
	if err == nil && result != nil {
		s.logger.Info("sync cycle complete",
			"channels", result.ChannelsSynced,
			"chunks", result.ChunksCreated,
			"errors", len(result.Errors),
			"duration", time.Since(start))
	}
	return result, err
}

// nextWait is the delay before the next sync under the current schedule.
func (s *Scheduler) nextWait() time.Duration {
	wait := s.interval
	if s.cron != "" {
		now := s.now()
		next, err := gronx.NextTickAfter(s.cron, now, false)
		if err != nil {
			s.logger.Warn("cron evaluation failed, using interval", "cron", s.cron, "err", err)
		} else {
			wait = next.Sub(now)
		}
	}
	if s.jitter > 0 {
		wait += rand.N(s.jitter)
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}
