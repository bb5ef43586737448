package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const jobColumns = `id, kind, dedupe_key, payload, status, priority, attempts, max_attempts, locked_until, error_message, created_at, updated_at`

// EnqueueParams describes a job to enqueue.
type EnqueueParams struct {
	Kind string
	// Payload is marshaled to JSONB.
	Payload any
	// DedupeKey prevents duplicate jobs when non-empty.
	DedupeKey string
	// Priority defaults to PriorityDefault when zero. Lower runs first.
	Priority int
	// MaxAttempts defaults to DefaultMaxAttempts when zero.
	MaxAttempts int
}

// EnqueueJob inserts a job into the queue, deduplicating by dedupe key
// if one is provided. Returns nil (no error) when a job with the same
// dedupe key already exists.
func (s *Store) EnqueueJob(ctx context.Context, p EnqueueParams) (*Job, error) {
	if p.Kind == "" {
		return nil, errors.New("job kind cannot be empty")
	}
	if p.Priority == 0 {
		p.Priority = PriorityDefault
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}

	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}

	var dedupeKey *string
	if p.DedupeKey != "" {
		dedupeKey = &p.DedupeKey
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO focus_jobs (id, kind, dedupe_key, payload, status, priority, max_attempts)
		VALUES ($1, $2, $3, $4, 'queued', $5, $6)
		ON CONFLICT (dedupe_key) DO NOTHING
		RETURNING `+jobColumns,
		newID(), p.Kind, dedupeKey, payload, p.Priority, p.MaxAttempts,
	)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Duplicate dedupe key, nothing inserted.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// ClaimJob claims the next available job using lease-based locking.
// FOR UPDATE SKIP LOCKED avoids contention between concurrent workers.
// Returns nil when no job is available.
func (s *Store) ClaimJob(ctx context.Context, kinds []string, leaseSeconds int) (*Job, error) {
	if leaseSeconds <= 0 {
		leaseSeconds = DefaultLeaseSeconds
	}

	query := `
		UPDATE focus_jobs
		SET status = 'processing',
		    locked_until = now() + make_interval(secs => $1),
		    attempts = attempts + 1,
		    updated_at = now()
		WHERE id = (
		    SELECT id FROM focus_jobs
		    WHERE status IN ('queued', 'retry')
		      AND (locked_until IS NULL OR locked_until < now())
		      %s
		    ORDER BY priority ASC, created_at ASC
		    LIMIT 1
		    FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	var row *sql.Row
	if len(kinds) > 0 {
		row = s.db.QueryRowContext(ctx, fmt.Sprintf(query, "AND kind = ANY($2)"), leaseSeconds, pq.Array(kinds))
	} else {
		row = s.db.QueryRowContext(ctx, fmt.Sprintf(query, ""), leaseSeconds)
	}

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// CompleteJob marks a job as done.
func (s *Store) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE focus_jobs SET status = 'done', updated_at = now() WHERE id = $1`,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob marks a job as failed, or schedules a retry with exponential
// backoff while attempts remain.
func (s *Store) FailJob(ctx context.Context, jobID uuid.UUID, errorMessage string) error {
	var attempts, maxAttempts int
	err := s.db.QueryRowContext(ctx,
		`SELECT attempts, max_attempts FROM focus_jobs WHERE id = $1`,
		jobID,
	).Scan(&attempts, &maxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("fail job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}

	if attempts < maxAttempts {
		backoff := retryBackoff(attempts)
		_, err = s.db.ExecContext(ctx, `
			UPDATE focus_jobs
			SET status = 'retry',
			    error_message = $2,
			    locked_until = now() + make_interval(secs => $3),
			    updated_at = now()
			WHERE id = $1`,
			jobID, errorMessage, int(backoff.Seconds()),
		)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE focus_jobs
			SET status = 'failed',
			    error_message = $2,
			    updated_at = now()
			WHERE id = $1`,
			jobID, errorMessage,
		)
	}
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// retryBackoff computes the delay before a failed job becomes claimable
// again: 2^attempts * 30s, capped at one hour.
func retryBackoff(attempts int) time.Duration {
	seconds := 30
	for i := 0; i < attempts && seconds < 3600; i++ {
		seconds *= 2
	}
	if seconds > 3600 {
		seconds = 3600
	}
	return time.Duration(seconds) * time.Second
}

// ExpireStaleLeases resets processing jobs whose lease has expired back
// to retry so another worker can claim them. The attempt counter is not
// incremented; that happens on claim.
func (s *Store) ExpireStaleLeases(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE focus_jobs
		SET status = 'retry',
		    locked_until = NULL,
		    updated_at = now()
		WHERE status = 'processing'
		  AND locked_until < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("expire stale leases: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr // drivers without RowsAffected still expired the leases
	}
	return count, nil
}

// JobStats returns job counts grouped by status.
func (s *Store) JobStats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, count(*) FROM focus_jobs GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan job stats: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// OldestPendingAge returns how long the oldest queued or retry job has
// been waiting. The second return is false when the queue is empty.
func (s *Store) OldestPendingAge(ctx context.Context) (time.Duration, bool, error) {
	var oldest sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT min(created_at) FROM focus_jobs WHERE status IN ('queued', 'retry')`,
	).Scan(&oldest)
	if err != nil {
		return 0, false, fmt.Errorf("oldest pending age: %w", err)
	}
	if !oldest.Valid {
		return 0, false, nil
	}
	return time.Since(oldest.Time), true, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var j Job
	var lockedUntil sql.NullTime
	var dedupeKey, errorMessage sql.NullString

	err := row.Scan(
		&j.ID, &j.Kind, &dedupeKey, &j.Payload, &j.Status,
		&j.Priority, &j.Attempts, &j.MaxAttempts,
		&lockedUntil, &errorMessage, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dedupeKey.Valid {
		j.DedupeKey = &dedupeKey.String
	}
	if lockedUntil.Valid {
		j.LockedUntil = &lockedUntil.Time
	}
	if errorMessage.Valid {
		j.ErrorMessage = &errorMessage.String
	}
	return &j, nil
}
