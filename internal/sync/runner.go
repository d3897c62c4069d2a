// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package sync

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/tomtom215/zohosync/internal/config"
	"github.com/tomtom215/zohosync/internal/database"
	"github.com/tomtom215/zohosync/internal/lock"
	"github.com/tomtom215/zohosync/internal/logging"
	"github.com/tomtom215/zohosync/internal/metrics"
	"github.com/tomtom215/zohosync/internal/notify"
	"github.com/tomtom215/zohosync/internal/scheduler"
	"github.com/tomtom215/zohosync/internal/zoho"
)

// Job names, used as scheduler ids, lock keys and metric labels.
const (
	JobInvoices    = "invoices"
	JobCreditNotes = "credit_notes"
	JobShipments   = "shipments"
	JobStock       = "stock"
)

// Store is the persistence the sync jobs need. *database.DB implements it.
type Store interface {
	DeleteInvoicesInRange(ctx context.Context, start, end time.Time) (int64, error)
	InsertDocuments(ctx context.Context, collection string, docs []bson.D) database.InsertResult
	ExistingIDs(ctx context.Context, collection, field string, ids []string) (map[string]struct{}, error)
	StockExistsForDate(ctx context.Context, date time.Time) (bool, error)
	FindProductID(ctx context.Context, name string) (string, error)
}

var _ Store = (*database.DB)(nil)

// ClientOpener opens a Zoho client for one run.
type ClientOpener func(ctx context.Context, service zoho.Service, budget *zoho.Budget) (*zoho.Client, error)

// NewClientOpener returns an opener that shares one circuit breaker per
// service across runs.
func NewClientOpener(cfg *config.ZohoConfig, opts ...zoho.Option) ClientOpener {
	breakers := map[zoho.Service]*zoho.Breaker{}
	if cfg.CircuitBreaker.Enabled {
		breakers[zoho.Books] = zoho.NewBreaker(zoho.Books, cfg.CircuitBreaker)
		breakers[zoho.Inventory] = zoho.NewBreaker(zoho.Inventory, cfg.CircuitBreaker)
	}
	return func(ctx context.Context, service zoho.Service, budget *zoho.Budget) (*zoho.Client, error) {
		all := opts
		if b := breakers[service]; b != nil {
			all = append([]zoho.Option{zoho.WithBreaker(b)}, opts...)
		}
		return zoho.Open(ctx, service, cfg, budget, all...)
	}
}

// Runner executes the sync jobs.
type Runner struct {
	store    Store
	notifier notify.Notifier
	locker   lock.Locker
	open     ClientOpener
	cfg      *config.JobsConfig
	loc      *time.Location

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock overrides the time source used for windows and snapshot dates.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithSleep overrides the pause between shipment pages.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) { r.sleep = fn }
}

// WithLocker overrides the run lock (default in-process).
func WithLocker(l lock.Locker) Option {
	return func(r *Runner) { r.locker = l }
}

// NewRunner creates a Runner. A nil notifier disables notifications and a
// nil location means UTC.
func NewRunner(store Store, open ClientOpener, notifier notify.Notifier, cfg *config.JobsConfig, loc *time.Location, opts ...Option) *Runner {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	r := &Runner{
		store:    store,
		notifier: notifier,
		locker:   lock.NewLocal(),
		open:     open,
		cfg:      cfg,
		loc:      loc,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// jobSpec ties a job name to its configuration and body.
type jobSpec struct {
	name  string
	title string
	cfg   config.JobConfig
	run   func(ctx context.Context, budget *zoho.Budget, sum *Summary) error
}

func (r *Runner) specs() []jobSpec {
	return []jobSpec{
		{name: JobInvoices, title: "Invoice Sync", cfg: r.cfg.Invoices, run: r.syncInvoices},
		{name: JobCreditNotes, title: "Credit Note Sync", cfg: r.cfg.CreditNotes, run: r.syncCreditNotes},
		{name: JobShipments, title: "Shipment Sync", cfg: r.cfg.Shipments, run: r.syncShipments},
		{name: JobStock, title: "Stock Sync", cfg: r.cfg.Stock, run: r.syncStock},
	}
}

func (r *Runner) spec(name string) (jobSpec, bool) {
	for _, s := range r.specs() {
		if s.name == name {
			return s, true
		}
	}
	return jobSpec{}, false
}

// Jobs returns scheduler registrations for every enabled job.
func (r *Runner) Jobs() []scheduler.Job {
	var jobs []scheduler.Job
	for _, s := range r.specs() {
		if !s.cfg.Enabled {
			logging.Info().Str("job", s.name).Msg("Sync job disabled")
			continue
		}
		name := s.name
		jobs = append(jobs, scheduler.Job{
			ID:   name,
			Cron: s.cfg.Cron,
			Run: func(ctx context.Context) error {
				_, err := r.Run(ctx, name)
				return err
			},
		})
	}
	return jobs
}

// SyncInvoices runs the invoice job.
func (r *Runner) SyncInvoices(ctx context.Context) (*Summary, error) {
	return r.Run(ctx, JobInvoices)
}

// SyncCreditNotes runs the credit note job.
func (r *Runner) SyncCreditNotes(ctx context.Context) (*Summary, error) {
	return r.Run(ctx, JobCreditNotes)
}

// SyncShipments runs the shipment job.
func (r *Runner) SyncShipments(ctx context.Context) (*Summary, error) {
	return r.Run(ctx, JobShipments)
}

// SyncStock runs the stock snapshot job.
func (r *Runner) SyncStock(ctx context.Context) (*Summary, error) {
	return r.Run(ctx, JobStock)
}

// Run executes one job by name. The returned summary is never nil for a
// known job, even on failure. lock.ErrJobRunning is returned without a
// notification when another run holds the lock.
func (r *Runner) Run(ctx context.Context, name string) (sum *Summary, err error) {
	s, ok := r.spec(name)
	if !ok {
		return nil, fmt.Errorf("unknown sync job %q", name)
	}

	ctx = logging.ContextWithJob(ctx, name)
	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}
	log := logging.Ctx(ctx)

	sum = &Summary{Job: name}

	release, err := r.locker.Acquire(ctx, name)
	if err != nil {
		if errors.Is(err, lock.ErrJobRunning) {
			log.Warn().Msg("Sync job already running, skipping")
			metrics.RecordSyncRun(name, StatusSkipped, 0)
		}
		return sum, err
	}
	defer release()

	budget := zoho.NewBudget(name, s.cfg.MaxConcurrent, s.cfg.CallsPerSecond)
	log.Info().Str("budget", budget.String()).Msg("Sync job started")
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("stack", string(debug.Stack())).Msg("Sync job panicked")
			err = fmt.Errorf("sync job %s panicked: %v", name, rec)
		}
		sum.Duration = time.Since(start)
		r.finish(ctx, s, sum, err)
	}()

	err = s.run(ctx, budget, sum)
	return sum, err
}

// finish records metrics, logs and notifies the outcome of a run.
func (r *Runner) finish(ctx context.Context, s jobSpec, sum *Summary, err error) {
	log := logging.Ctx(ctx)
	status := sum.Status(err)

	metrics.RecordSyncRun(s.name, status, sum.Duration)
	metrics.RecordSyncDocuments(s.name, "fetched", sum.Fetched)
	metrics.RecordSyncDocuments(s.name, "inserted", sum.Inserted)
	metrics.RecordSyncDocuments(s.name, "deleted", int(sum.Deleted))
	metrics.RecordSyncDocuments(s.name, "failed", sum.Failed)
	metrics.RecordSyncDocuments(s.name, "skipped", sum.Skipped)

	// Notify even when the run context is done, so a timed-out run still reports.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err != nil {
		msg := notify.Truncate(err.Error(), notify.MaxErrorLength)
		log.Error().Err(err).Dur("duration", sum.Duration).Msg("Sync job failed")
		r.notifier.Notify(notifyCtx, s.title, false, sum.Fields(), msg)
		return
	}

	log.Info().
		Str("status", status).
		Int64("deleted", sum.Deleted).
		Int("fetched", sum.Fetched).
		Int("inserted", sum.Inserted).
		Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).
		Int("pages", sum.Pages).
		Dur("duration", sum.Duration).
		Msg("Sync job complete")
	r.notifier.Notify(notifyCtx, s.title, true, sum.Fields(), "")
}

// openClient opens a client for service and fails when it holds no token.
func (r *Runner) openClient(ctx context.Context, service zoho.Service, budget *zoho.Budget) (*zoho.Client, error) {
	client, err := r.open(ctx, service, budget)
	if err != nil {
		return nil, err
	}
	if !client.HasToken() {
		client.Close()
		return nil, fmt.Errorf("%s token exchange failed: %w", service, errors.Join(zoho.ErrNoToken, client.TokenErr()))
	}
	return client, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
