package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vidforge/internal/domain"
)

// ErrNoJob signals an empty queue; callers poll again after their interval.
var ErrNoJob = errors.New("queue: no job available")

const schema = `
CREATE TABLE IF NOT EXISTS render_jobs (
    id            UUID PRIMARY KEY,
    state         TEXT NOT NULL DEFAULT 'queued',
    progress      INT NOT NULL DEFAULT 0,
    attempts_made INT NOT NULL DEFAULT 0,
    max_attempts  INT NOT NULL DEFAULT 5,
    priority      INT NOT NULL DEFAULT 0,
    payload       JSONB NOT NULL,
    result        JSONB,
    failure       JSONB,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    next_run_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS render_jobs_claim_idx
    ON render_jobs (priority DESC, next_run_at, created_at)
    WHERE state = 'queued';
`

// Queue is the PostgreSQL-backed render job queue. Claiming uses
// FOR UPDATE SKIP LOCKED so concurrent workers never double-process.
type Queue struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Queue {
	return &Queue{pool: pool}
}

// EnsureSchema creates the job table when it does not exist yet.
func (q *Queue) EnsureSchema(ctx context.Context) error {
	_, err := q.pool.Exec(ctx, schema)
	return err
}

// Enqueue inserts a new job in the queued state.
func (q *Queue) Enqueue(ctx context.Context, job *domain.Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("queue: encode payload: %w", err)
	}
	query := `
INSERT INTO render_jobs (id, state, max_attempts, priority, payload)
VALUES ($1, 'queued', $2, $3, $4);
`
	_, err = q.pool.Exec(ctx, query, job.ID, job.MaxAttempts, job.Priority, payload)
	return err
}

// Claim atomically takes the highest-priority due job and moves it to
// processing. Returns ErrNoJob when nothing is due.
func (q *Queue) Claim(ctx context.Context) (*domain.Job, error) {
	query := `
WITH next_job AS (
    SELECT id
    FROM render_jobs
    WHERE state = 'queued' AND next_run_at <= now()
    ORDER BY priority DESC, next_run_at ASC, created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
),
claimed AS (
    UPDATE render_jobs
    SET state = 'processing',
        attempts_made = attempts_made + 1,
        updated_at = now()
    WHERE id IN (SELECT id FROM next_job)
    RETURNING id, state, progress, attempts_made, max_attempts, priority,
              payload, result, failure, created_at, updated_at, next_run_at
)
SELECT * FROM claimed;
`
	job, err := scanJob(q.pool.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoJob
	}
	return job, err
}

// Progress records render progress. Progress never moves backwards and is
// only accepted while the job is processing.
func (q *Queue) Progress(ctx context.Context, jobID string, percent int) error {
	query := `
UPDATE render_jobs
SET progress = GREATEST(progress, $2), updated_at = now()
WHERE id = $1 AND state = 'processing';
`
	_, err := q.pool.Exec(ctx, query, jobID, percent)
	return err
}

// Complete marks the job done with its result. No-op if the job already
// left the processing state.
func (q *Queue) Complete(ctx context.Context, jobID string, result domain.Result) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("queue: encode result: %w", err)
	}
	query := `
UPDATE render_jobs
SET state = 'completed', progress = 100, result = $2, updated_at = now()
WHERE id = $1 AND state = 'processing';
`
	_, err = q.pool.Exec(ctx, query, jobID, encoded)
	return err
}

// Fail terminally fails the job with a structured failure.
func (q *Queue) Fail(ctx context.Context, jobID string, failure domain.Failure) error {
	encoded, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("queue: encode failure: %w", err)
	}
	query := `
UPDATE render_jobs
SET state = 'failed', failure = $2, updated_at = now()
WHERE id = $1 AND state = 'processing';
`
	_, err = q.pool.Exec(ctx, query, jobID, encoded)
	return err
}

// Retry requeues a processing job for another attempt after the delay. The
// failure is kept so callers can inspect the last error while waiting.
func (q *Queue) Retry(ctx context.Context, jobID string, failure domain.Failure, delay time.Duration) error {
	encoded, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("queue: encode failure: %w", err)
	}
	query := `
UPDATE render_jobs
SET state = 'queued',
    progress = 0,
    failure = $2,
    next_run_at = now() + $3,
    updated_at = now()
WHERE id = $1 AND state = 'processing';
`
	_, err = q.pool.Exec(ctx, query, jobID, encoded, delay)
	return err
}

// Cancel moves a queued or processing job to cancelled. Terminal jobs
// return ErrJobTerminal, missing ones ErrNotFound.
func (q *Queue) Cancel(ctx context.Context, jobID string) error {
	query := `
UPDATE render_jobs
SET state = 'cancelled',
    failure = $2,
    updated_at = now()
WHERE id = $1 AND state IN ('queued', 'processing')
RETURNING id;
`
	failure, err := json.Marshal(domain.Failure{
		Code:    domain.CodeCancelled,
		Message: "render cancelled by caller",
	})
	if err != nil {
		return err
	}

	var id string
	err = q.pool.QueryRow(ctx, query, jobID, failure).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		job, getErr := q.Get(ctx, jobID)
		if getErr != nil {
			return getErr
		}
		if job.State.Terminal() {
			return domain.ErrJobTerminal
		}
		return domain.ErrNotFound
	}
	return err
}

// Get fetches one job by id.
func (q *Queue) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
SELECT id, state, progress, attempts_made, max_attempts, priority,
       payload, result, failure, created_at, updated_at, next_run_at
FROM render_jobs
WHERE id = $1;
`
	job, err := scanJob(q.pool.QueryRow(ctx, query, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job     domain.Job
		payload []byte
		result  []byte
		failure []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.State,
		&job.Progress,
		&job.AttemptsMade,
		&job.MaxAttempts,
		&job.Priority,
		&payload,
		&result,
		&failure,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.NextRunAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &job.Payload); err != nil {
		return nil, fmt.Errorf("queue: decode payload for job %s: %w", job.ID, err)
	}
	if len(result) > 0 {
		job.Result = &domain.Result{}
		if err := json.Unmarshal(result, job.Result); err != nil {
			return nil, fmt.Errorf("queue: decode result for job %s: %w", job.ID, err)
		}
	}
	if len(failure) > 0 {
		job.Failure = &domain.Failure{}
		if err := json.Unmarshal(failure, job.Failure); err != nil {
			return nil, fmt.Errorf("queue: decode failure for job %s: %w", job.ID, err)
		}
	}
	return &job, nil
}
