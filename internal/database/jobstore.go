// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tomtom215/zohosync/internal/scheduler"
)

// cronJobDocument is the cron_jobs representation of a scheduler job.
type cronJobDocument struct {
	ID                  string     `bson:"_id"`
	Cron                string     `bson:"cron"`
	Timezone            string     `bson:"timezone"`
	NextRunTime         time.Time  `bson:"next_run_time"`
	MisfireGraceSeconds int        `bson:"misfire_grace_seconds"`
	LastRunAt           *time.Time `bson:"last_run_at,omitempty"`
	LastStatus          string     `bson:"last_status,omitempty"`
	LastError           string     `bson:"last_error,omitempty"`
}

func toDocument(s scheduler.JobState) cronJobDocument {
	return cronJobDocument{
		ID:                  s.ID,
		Cron:                s.Cron,
		Timezone:            s.Timezone,
		NextRunTime:         s.NextRunTime.UTC(),
		MisfireGraceSeconds: s.MisfireGraceSeconds,
		LastRunAt:           s.LastRunAt,
		LastStatus:          s.LastStatus,
		LastError:           s.LastError,
	}
}

func (d cronJobDocument) state() scheduler.JobState {
	return scheduler.JobState{
		ID:                  d.ID,
		Cron:                d.Cron,
		Timezone:            d.Timezone,
		NextRunTime:         d.NextRunTime,
		MisfireGraceSeconds: d.MisfireGraceSeconds,
		LastRunAt:           d.LastRunAt,
		LastStatus:          d.LastStatus,
		LastError:           d.LastError,
	}
}

// JobStore persists scheduler state in the cron_jobs collection.
type JobStore struct {
	db *DB
}

// NewJobStore creates a scheduler.JobStore backed by db.
func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

// LoadJobs implements scheduler.JobStore.
func (s *JobStore) LoadJobs(ctx context.Context) ([]scheduler.JobState, error) {
	cursor, err := s.db.Collection(CronJobsCollection).Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to load cron jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []cronJobDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode cron jobs: %w", err)
	}

	states := make([]scheduler.JobState, len(docs))
	for i, d := range docs {
		states[i] = d.state()
	}
	return states, nil
}

// SaveJob implements scheduler.JobStore.
func (s *JobStore) SaveJob(ctx context.Context, state scheduler.JobState) error {
	_, err := s.db.Collection(CronJobsCollection).ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: state.ID}},
		toDocument(state),
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save cron job %s: %w", state.ID, err)
	}
	return nil
}

// RemoveJob implements scheduler.JobStore.
func (s *JobStore) RemoveJob(ctx context.Context, id string) error {
	if _, err := s.db.Collection(CronJobsCollection).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}); err != nil {
		return fmt.Errorf("failed to remove cron job %s: %w", id, err)
	}
	return nil
}

var _ scheduler.JobStore = (*JobStore)(nil)
