/*
Package jobqueue runs licence bookkeeping as River jobs so that a burst of
reconcile requests from polling clients collapses into a single database
update.

Tuning lives in queue_config.go.
*/
package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"
)

// Reconciler recomputes and persists the licence status.
type Reconciler interface {
	Reconcile(ctx context.Context) (bool, error)
}

// ReconcileJobArgs represents the arguments for a reconcile job
type ReconcileJobArgs struct {
	Source string `json:"source"`
}

// Kind returns the job kind for River
func (ReconcileJobArgs) Kind() string {
	return "license_reconcile"
}

// ReconcileWorker handles reconcile jobs
type ReconcileWorker struct {
	river.WorkerDefaults[ReconcileJobArgs]
	reconciler Reconciler
	timeout    time.Duration
}

// Work performs the reconcile
func (w *ReconcileWorker) Work(ctx context.Context, job *river.Job[ReconcileJobArgs]) error {
	changed, err := w.reconciler.Reconcile(ctx)
	if err != nil {
		log.Warn().Err(err).Int64("job_id", job.ID).Int("attempt", job.Attempt).Msg("license reconcile job failed")
		return fmt.Errorf("reconcile license: %w", err)
	}
	log.Debug().Int64("job_id", job.ID).Str("source", job.Args.Source).Bool("changed", changed).Msg("license reconcile job done")
	return nil
}

func (w *ReconcileWorker) Timeout(*river.Job[ReconcileJobArgs]) time.Duration {
	return w.timeout
}

// JobQueue manages the River job queue
type JobQueue struct {
	client *river.Client[pgx.Tx]
	config *QueueConfig
}

// NewJobQueue creates a job queue on pool. The River schema must already be
// migrated.
func NewJobQueue(pool *pgxpool.Pool, reconciler Reconciler, config *QueueConfig) (*JobQueue, error) {
	if config == nil {
		config = DefaultQueueConfig()
	}
	workers := river.NewWorkers()
	river.AddWorker(workers, &ReconcileWorker{reconciler: reconciler, timeout: config.JobTimeout})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:      config.RiverQueueConfig(),
		Workers:     workers,
		MaxAttempts: config.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}
	return &JobQueue{client: client, config: config}, nil
}

// Start starts the job queue workers
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop stops the job queue workers
func (jq *JobQueue) Stop(ctx context.Context) error {
	return jq.client.Stop(ctx)
}

// QueueReconcile inserts a reconcile job. Requests within the unique period
// are merged.
func (jq *JobQueue) QueueReconcile(ctx context.Context, source string) error {
	_, err := jq.client.Insert(ctx, ReconcileJobArgs{Source: source}, &river.InsertOpts{
		UniqueOpts: river.UniqueOpts{ByPeriod: jq.config.UniquePeriod},
	})
	if err != nil {
		return fmt.Errorf("failed to queue license reconcile job: %w", err)
	}
	return nil
}

// RequestReconcile lets the queue stand in for an inline reconcile in the
// API server.
func (jq *JobQueue) RequestReconcile(ctx context.Context) error {
	return jq.QueueReconcile(ctx, "api")
}
