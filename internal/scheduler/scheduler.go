// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

// Package scheduler runs the sync jobs on cron schedules.
//
// scheduler.go - Persistent cron scheduler
//
// The scheduler:
//   - Keeps a registry of jobs, each with a cron expression and misfire grace
//   - Persists next run times through a JobStore so schedules survive restarts
//   - Wakes every CheckInterval and starts each due job on its own goroutine;
//     a job still running from an earlier occurrence is not started again
//   - Skips an occurrence found late by more than its misfire grace at the
//     tick that saw it due, and schedules the next one
//   - Reports every execution, failure and miss to registered listeners,
//     independently of any notification the job sends itself
//
// The scheduler integrates with the supervisor tree for lifecycle management.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/tomtom215/zohosync/internal/logging"
	"github.com/tomtom215/zohosync/internal/metrics"
)

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

// Job is one cron registration.
type Job struct {
	ID           string
	Cron         string
	MisfireGrace time.Duration
	Run          JobFunc
}

// EventKind is the outcome reported to listeners.
type EventKind string

const (
	EventExecuted EventKind = "executed"
	EventError    EventKind = "error"
	EventMissed   EventKind = "missed"
)

// Event describes one scheduled occurrence.
type Event struct {
	JobID       string
	Kind        EventKind
	ScheduledAt time.Time
	StartedAt   time.Time
	Duration    time.Duration
	Err         error
}

// Listener observes scheduler events. Listeners are called from the job
// goroutines, so they must be safe for concurrent use and must not block.
type Listener func(Event)

// Config holds scheduler settings.
type Config struct {
	// Location is the timezone cron expressions are evaluated in (default UTC).
	Location *time.Location

	// MisfireGrace is used for jobs that do not set their own (default 300s).
	MisfireGrace time.Duration

	// CheckInterval is how often due jobs are looked for (default 15s).
	CheckInterval time.Duration

	// JobTimeout bounds one execution (default 2h).
	JobTimeout time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Location:      time.UTC,
		MisfireGrace:  300 * time.Second,
		CheckInterval: 15 * time.Second,
		JobTimeout:    2 * time.Hour,
	}
}

// ErrDuplicateJob is returned by Add for an id that is already registered.
var ErrDuplicateJob = errors.New("job already registered")

type entry struct {
	job      Job
	schedule *Schedule
	state    JobState

	// active is set while an occurrence of the job runs.
	active bool
}

// Scheduler owns the job registry and the runner loop.
type Scheduler struct {
	store     JobStore
	config    Config
	logger    zerolog.Logger
	now       func() time.Time
	listeners []Listener

	mu      sync.Mutex
	jobs    map[string]*entry
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// inflight tracks jobs started by the runner loop.
	inflight sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now. Tests use it to drive misfire handling.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithListener registers an event listener.
func WithListener(l Listener) Option {
	return func(s *Scheduler) { s.listeners = append(s.listeners, l) }
}

// New creates a scheduler. A nil store keeps schedules in memory only.
func New(store JobStore, config Config, opts ...Option) *Scheduler {
	defaults := DefaultConfig()
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if config.MisfireGrace <= 0 {
		config.MisfireGrace = defaults.MisfireGrace
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = defaults.CheckInterval
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if store == nil {
		store = NewMemoryStore()
	}

	s := &Scheduler{
		store:  store,
		config: config,
		logger: logging.WithComponent("scheduler"),
		now:    time.Now,
		jobs:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a job. It must be called before Start.
func (s *Scheduler) Add(job Job) error {
	if job.ID == "" {
		return errors.New("job id is required")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s has no run function", job.ID)
	}
	schedule, err := ParseCron(job.Cron)
	if err != nil {
		return fmt.Errorf("job %s: %w", job.ID, err)
	}
	if job.MisfireGrace <= 0 {
		job.MisfireGrace = s.config.MisfireGrace
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}
	s.jobs[job.ID] = &entry{job: job, schedule: schedule}
	return nil
}

// Sync reconciles registered jobs with the store. A persisted next run time
// is kept when the cron expression and timezone are unchanged, so that an
// occurrence missed while the process was down is still run within its
// grace period. Persisted jobs that are no longer registered are removed.
func (s *Scheduler) Sync(ctx context.Context) error {
	persisted, err := s.store.LoadJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load job store: %w", err)
	}
	byID := make(map[string]JobState, len(persisted))
	for _, st := range persisted {
		byID[st.ID] = st
	}

	now := s.now()
	tz := s.config.Location.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.jobs {
		state, ok := byID[id]
		if !ok || state.Cron != e.schedule.String() || state.Timezone != tz || state.NextRunTime.IsZero() {
			state = JobState{
				ID:          id,
				NextRunTime: e.schedule.Next(now, s.config.Location),
				LastRunAt:   state.LastRunAt,
				LastStatus:  state.LastStatus,
				LastError:   state.LastError,
			}
		}
		state.Cron = e.schedule.String()
		state.Timezone = tz
		state.MisfireGraceSeconds = int(e.job.MisfireGrace / time.Second)
		e.state = state

		if err := s.store.SaveJob(ctx, state); err != nil {
			return fmt.Errorf("failed to save job %s: %w", id, err)
		}
		delete(byID, id)
	}

	for id := range byID {
		if err := s.store.RemoveJob(ctx, id); err != nil {
			return fmt.Errorf("failed to remove stale job %s: %w", id, err)
		}
		s.logger.Info().Str("job_id", id).Msg("Removed stale job from store")
	}
	return nil
}

// Start syncs the job store and begins the runner loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.mu.Unlock()

	if err := s.Sync(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	for _, st := range s.Jobs() {
		s.logger.Info().Str("job_id", st.ID).Str("cron", st.Cron).
			Time("next_run_time", st.NextRunTime).Msg("Job scheduled")
	}
	s.logger.Info().Dur("check_interval", s.config.CheckInterval).
		Str("timezone", s.config.Location.String()).Msg("Starting scheduler")

	go s.run(ctx)
	return nil
}

// Stop stops the runner loop and waits for running jobs to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping scheduler...")
	close(stopCh)
	<-doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns whether the runner loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.inflight.Wait()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	s.dispatch(ctx, &s.inflight, nil)
	for {
		select {
		case <-ticker.C:
			s.dispatch(ctx, &s.inflight, nil)
		case <-ctx.Done():
			return
		}
	}
}

// RunPending starts every due job that is not already running, each on its
// own goroutine, and waits for them to return. It returns the number of jobs
// executed; occurrences skipped as missed are not counted.
func (s *Scheduler) RunPending(ctx context.Context) int {
	var wg sync.WaitGroup
	var executed atomic.Int32
	s.dispatch(ctx, &wg, &executed)
	wg.Wait()
	return int(executed.Load())
}

// dispatch claims the due jobs and starts them on goroutines tracked by wg.
// executed, when not nil, counts the occurrences that ran.
func (s *Scheduler) dispatch(ctx context.Context, wg *sync.WaitGroup, executed *atomic.Int32) {
	if ctx.Err() != nil {
		return
	}
	tick := s.now()
	for _, e := range s.claimDue(tick) {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			defer s.release(e)
			if s.runDue(ctx, e, tick) && executed != nil {
				executed.Add(1)
			}
		}(e)
	}
}

// claimDue marks every idle job whose next run time is not after tick as
// active and returns them, earliest first.
func (s *Scheduler) claimDue(tick time.Time) []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*entry
	for _, e := range s.jobs {
		if e.active || e.state.NextRunTime.IsZero() || tick.Before(e.state.NextRunTime) {
			continue
		}
		e.active = true
		due = append(due, e)
	}
	sort.Slice(due, func(i, k int) bool {
		if due[i].state.NextRunTime.Equal(due[k].state.NextRunTime) {
			return due[i].job.ID < due[k].job.ID
		}
		return due[i].state.NextRunTime.Before(due[k].state.NextRunTime)
	})
	return due
}

func (s *Scheduler) release(e *entry) {
	s.mu.Lock()
	e.active = false
	s.mu.Unlock()
}

// runDue runs or skips one due occurrence and persists the next run time.
// Lateness is measured at tick so that time spent by other jobs does not
// count against this one.
func (s *Scheduler) runDue(ctx context.Context, e *entry, tick time.Time) bool {
	s.mu.Lock()
	scheduledAt := e.state.NextRunTime
	job := e.job
	schedule := e.schedule
	s.mu.Unlock()
	id := job.ID

	if lateness := tick.Sub(scheduledAt); lateness > job.MisfireGrace {
		s.logger.Warn().Str("job_id", id).Time("scheduled_at", scheduledAt).
			Dur("late_by", lateness).Dur("misfire_grace", job.MisfireGrace).
			Msg("Run time of job was missed")
		metrics.RecordMisfire(id)
		s.finish(ctx, e, schedule.Next(s.now(), s.config.Location), nil, "missed", nil)
		s.emit(Event{JobID: id, Kind: EventMissed, ScheduledAt: scheduledAt})
		return false
	}

	started := s.now()
	err := s.execute(ctx, job)
	duration := s.now().Sub(started)

	kind, status := EventExecuted, "success"
	if err != nil {
		kind, status = EventError, "error"
	}
	metrics.RecordExecution(id, status)
	s.finish(ctx, e, schedule.Next(s.now(), s.config.Location), &started, status, err)
	s.emit(Event{JobID: id, Kind: kind, ScheduledAt: scheduledAt, StartedAt: started, Duration: duration, Err: err})
	return true
}

// execute runs the job body under JobTimeout and converts a panic into an error.
func (s *Scheduler) execute(ctx context.Context, job Job) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("job_id", job.ID).Interface("panic", r).Msg("Job panicked")
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return job.Run(ctx)
}

func (s *Scheduler) finish(ctx context.Context, e *entry, next time.Time, ranAt *time.Time, status string, runErr error) {
	s.mu.Lock()
	e.state.NextRunTime = next
	e.state.LastStatus = status
	e.state.LastError = ""
	if runErr != nil {
		e.state.LastError = truncate(runErr.Error(), 500)
	}
	if ranAt != nil {
		t := *ranAt
		e.state.LastRunAt = &t
	}
	state := e.state
	s.mu.Unlock()

	// The store write must survive a cancelled run context.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.store.SaveJob(saveCtx, state); err != nil {
		s.logger.Error().Err(err).Str("job_id", state.ID).Msg("Failed to persist job state")
	}
}

func (s *Scheduler) emit(ev Event) {
	for _, l := range s.listeners {
		l(ev)
	}
}

// Jobs returns a snapshot of all job states ordered by id.
func (s *Scheduler) Jobs() []JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobState, 0, len(s.jobs))
	for _, e := range s.jobs {
		out = append(out, e.state)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// NextRun returns the next run time of a job.
func (s *Scheduler) NextRun(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok {
		return time.Time{}, false
	}
	return e.state.NextRunTime, true
}

// LogListener logs every scheduler event.
func LogListener(ev Event) {
	switch ev.Kind {
	case EventExecuted:
		logging.Info().Str("job_id", ev.JobID).Dur("duration", ev.Duration).Msg("Job executed successfully")
	case EventError:
		logging.Error().Err(ev.Err).Str("job_id", ev.JobID).Dur("duration", ev.Duration).Msg("Job raised an error")
	case EventMissed:
		logging.Warn().Str("job_id", ev.JobID).Time("scheduled_at", ev.ScheduledAt).Msg("Job missed its run time")
	}
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
