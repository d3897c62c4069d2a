// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/zohosync/internal/api"
	"github.com/tomtom215/zohosync/internal/config"
	"github.com/tomtom215/zohosync/internal/database"
	"github.com/tomtom215/zohosync/internal/lock"
	"github.com/tomtom215/zohosync/internal/logging"
	"github.com/tomtom215/zohosync/internal/notify"
	"github.com/tomtom215/zohosync/internal/scheduler"
	"github.com/tomtom215/zohosync/internal/supervisor"
	"github.com/tomtom215/zohosync/internal/supervisor/services"
	"github.com/tomtom215/zohosync/internal/sync"
)

const dbMonitorInterval = 30 * time.Second

func main() {
	runJob := flag.String("run", "", "run one sync job (invoices, credit_notes, shipments, stock) and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *runJob); err != nil {
		logging.Error().Err(err).Msg("ZohoSync exited with error")
		stop()
		os.Exit(1)
	}
}

// app holds the long-lived dependencies shared by the daemon and -run modes.
type app struct {
	db      *database.DB
	runner  *sync.Runner
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	db, err := database.New(ctx, &cfg.Mongo)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Close(closeCtx); err != nil {
			logging.Error().Err(err).Msg("Error closing MongoDB connection")
		}
	})

	locker, closeLock, err := lock.New(ctx, &cfg.Lock)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := closeLock(); err != nil {
			logging.Warn().Err(err).Msg("Error closing run lock")
		}
	})

	a.runner = sync.NewRunner(
		db,
		sync.NewClientOpener(&cfg.Zoho),
		notify.New(&cfg.Notify),
		&cfg.Jobs,
		cfg.Location(),
		sync.WithLocker(locker),
	)
	return a, nil
}

func run(ctx context.Context, cfg *config.Config, runJob string) error {
	logging.Info().
		Str("database", cfg.Mongo.Database).
		Str("timezone", cfg.Scheduler.Timezone).
		Bool("redis_lock", cfg.Lock.Enabled).
		Bool("slack", cfg.Notify.SlackWebhookURL != "").
		Msg("Starting ZohoSync")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if runJob != "" {
		return runOnce(ctx, a.runner, runJob)
	}
	return serve(ctx, cfg, a)
}

// runOnce executes a single job in the foreground, for backfills and debugging.
func runOnce(ctx context.Context, runner *sync.Runner, name string) error {
	sum, err := runner.Run(ctx, name)
	if sum != nil {
		logging.Info().
			Str("job", name).
			Int("fetched", sum.Fetched).
			Int("inserted", sum.Inserted).
			Int("failed", sum.Failed).
			Dur("duration", sum.Duration).
			Msg("Manual run finished")
	}
	return err
}

func serve(ctx context.Context, cfg *config.Config, a *app) error {
	sched := scheduler.New(database.NewJobStore(a.db), scheduler.Config{
		Location:      cfg.Location(),
		MisfireGrace:  cfg.Scheduler.MisfireGrace,
		CheckInterval: cfg.Scheduler.CheckInterval,
		JobTimeout:    cfg.Scheduler.JobTimeout,
	}, scheduler.WithListener(scheduler.LogListener))

	for _, job := range a.runner.Jobs() {
		if err := sched.Add(job); err != nil {
			return fmt.Errorf("failed to register job: %w", err)
		}
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(&cfg.Server))
	if err != nil {
		return fmt.Errorf("failed to create supervisor tree: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(api.NewHandler(a.db, sched)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	tree.AddDataService(services.NewDBMonitorService(a.db, dbMonitorInterval))
	tree.AddJobsService(services.NewSchedulerService(sched))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("Operations listener configured")

	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for services to stop...")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", treeErr)
	}
	logging.Info().Msg("ZohoSync stopped gracefully")
	return nil
}
