// Package jobs runs the periodic housekeeping of the server: pruning stale
// drafts, purging protocols past retention and dropping idle rate limiter
// buckets.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/responda/responda/internal/platform/metrics"
)

// Func is the body of a job. The context is cancelled when the job exceeds
// its timeout or the scheduler stops.
type Func func(ctx context.Context) error

// Scheduler wraps gocron. Runs of the same job never overlap.
type Scheduler struct {
	cron    *gocron.Scheduler
	logger  zerolog.Logger
	timeout time.Duration

	mu     sync.Mutex
	jobs   map[string]Func
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler evaluating daily times in loc. A nil loc means UTC.
func New(loc *time.Location, timeout time.Duration, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	cron := gocron.NewScheduler(loc)
	cron.SingletonModeAll()
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron,
		logger:  logger.With().Str("component", "jobs").Logger(),
		timeout: timeout,
		jobs:    make(map[string]Func),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Scheduler) register(name string, fn Func) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %s already registered", name)
	}
	s.jobs[name] = fn
	return nil
}

// Every runs fn at a fixed interval, first one interval after Start.
func (s *Scheduler) Every(name string, interval time.Duration, fn Func) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	if err := s.register(name, fn); err != nil {
		return err
	}
	_, err := s.cron.Every(interval).WaitForSchedule().Tag(name).Do(s.run, name, fn)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// Daily runs fn once a day at the given "HH:MM".
func (s *Scheduler) Daily(name, at string, fn Func) error {
	if err := s.register(name, fn); err != nil {
		return err
	}
	_, err := s.cron.Every(1).Day().At(at).Tag(name).Do(s.run, name, fn)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// Names returns the registered job names in order.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunNow executes a registered job synchronously, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	fn, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	return s.execute(ctx, name, fn)
}

func (s *Scheduler) Start() {
	s.cron.StartAsync()
	s.logger.Info().Strs("jobs", s.Names()).Msg("scheduler started")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
}

func (s *Scheduler) run(name string, fn Func) {
	_ = s.execute(s.ctx, name, fn)
}

func (s *Scheduler) execute(parent context.Context, name string, fn Func) (err error) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}
		metrics.JobRuns.WithLabelValues(name, metrics.Result(err)).Inc()
		if err != nil {
			s.logger.Error().Err(err).Str("job", name).Dur("took", time.Since(start)).Msg("job failed")
			return
		}
		s.logger.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("job finished")
	}()

	return fn(ctx)
}
