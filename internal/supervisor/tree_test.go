// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/tomtom215/zohosync/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSupervisorTreeConstruction(t *testing.T) {
	t.Run("applies default values for zero config", func(t *testing.T) {
		tree, err := NewSupervisorTree(quietLogger(), TreeConfig{})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}
		if tree.Root() == nil {
			t.Fatal("root supervisor should not be nil")
		}

		want := DefaultTreeConfig()
		if tree.config != want {
			t.Errorf("config = %+v, want %+v", tree.config, want)
		}
	})

	t.Run("job shutdown timeout never below service timeout", func(t *testing.T) {
		tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: 90 * time.Second})
		if tree.config.JobShutdownTimeout != 90*time.Second {
			t.Errorf("JobShutdownTimeout = %v, want 90s", tree.config.JobShutdownTimeout)
		}
	})
}

func TestTreeConfigFrom(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.ServerConfig
		want time.Duration
	}{
		{"nil config", nil, 10 * time.Second},
		{"zero timeout", &config.ServerConfig{}, 10 * time.Second},
		{"explicit timeout", &config.ServerConfig{ShutdownTimeout: 3 * time.Second}, 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TreeConfigFrom(tt.cfg).ShutdownTimeout; got != tt.want {
				t.Errorf("ShutdownTimeout = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSupervisorTreeLifecycle(t *testing.T) {
	t.Run("starts every layer and stops gracefully", func(t *testing.T) {
		tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{
			FailureBackoff:  100 * time.Millisecond,
			ShutdownTimeout: time.Second,
		})

		data := NewMockService("mock-data")
		jobs := NewMockService("mock-jobs")
		api := NewMockService("mock-api")
		tree.AddDataService(data)
		tree.AddJobsService(jobs)
		tree.AddAPIService(api)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errCh := tree.ServeBackground(ctx)

		for _, svc := range []*MockService{data, jobs, api} {
			if !svc.WaitStarted(1, time.Second) {
				t.Errorf("%s was not started", svc)
			}
		}

		cancel()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("tree did not shut down in time")
		}

		for _, svc := range []*MockService{data, jobs, api} {
			if svc.StopCount() != svc.StartCount() {
				t.Errorf("%s: %d starts, %d stops", svc, svc.StartCount(), svc.StopCount())
			}
		}
	})

	t.Run("ServeBackground returns on deadline", func(t *testing.T) {
		tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		select {
		case err := <-tree.ServeBackground(ctx):
			if err != nil && !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("did not receive from error channel")
		}
	})
}

func TestSupervisorTreeFailureIsolation(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	failing := NewMockService("flaky-scheduler")
	failing.SetFailCount(2)
	stable := NewMockService("ops-server")

	tree.AddJobsService(failing)
	tree.AddAPIService(stable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	if !failing.WaitStarted(3, 2*time.Second) {
		t.Errorf("expected at least 3 starts for failing service, got %d", failing.StartCount())
	}
	if stable.StartCount() != 1 {
		t.Errorf("stable service started %d times, want 1", stable.StartCount())
	}

	cancel()
	<-errCh
}
