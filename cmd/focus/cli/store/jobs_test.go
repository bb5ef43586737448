package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func jobRows(j *Job) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "kind", "dedupe_key", "payload", "status", "priority",
		"attempts", "max_attempts", "locked_until", "error_message",
		"created_at", "updated_at",
	})
	var dedupe any
	if j.DedupeKey != nil {
		dedupe = *j.DedupeKey
	}
	var locked any
	if j.LockedUntil != nil {
		locked = *j.LockedUntil
	}
	rows.AddRow(
		j.ID.String(), j.Kind, dedupe, []byte(j.Payload), j.Status, j.Priority,
		j.Attempts, j.MaxAttempts, locked, nil, j.CreatedAt, j.UpdatedAt,
	)
	return rows
}

func TestEnqueueJob(t *testing.T) {
	s, mock := newMockStore(t)

	expected := &Job{
		ID:          uuid.Must(uuid.NewV7()),
		Kind:        KindSessionProcess,
		Payload:     json.RawMessage(`{"session_id":"abc"}`),
		Status:      JobQueued,
		Priority:    PrioritySessionProcess,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	mock.ExpectQuery(`INSERT INTO focus_jobs`).
		WillReturnRows(jobRows(expected))

	job, err := s.EnqueueJob(context.Background(), EnqueueParams{
		Kind:     KindSessionProcess,
		Payload:  map[string]string{"session_id": "abc"},
		Priority: PrioritySessionProcess,
	})
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, KindSessionProcess, job.Kind)
	assert.Equal(t, JobQueued, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueJobDedupeConflict(t *testing.T) {
	s, mock := newMockStore(t)

	// ON CONFLICT DO NOTHING returns no rows on a dedupe hit.
	mock.ExpectQuery(`INSERT INTO focus_jobs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	job, err := s.EnqueueJob(context.Background(), EnqueueParams{
		Kind:      KindSessionProcess,
		Payload:   map[string]string{},
		DedupeKey: "session_process:abc:123",
	})
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueJobEmptyKind(t *testing.T) {
	s, _ := newMockStore(t)

	_, err := s.EnqueueJob(context.Background(), EnqueueParams{Kind: ""})
	assert.Error(t, err)
}

func TestClaimJob(t *testing.T) {
	s, mock := newMockStore(t)

	claimed := &Job{
		ID:          uuid.Must(uuid.NewV7()),
		Kind:        KindTurnSummary,
		Payload:     json.RawMessage(`{}`),
		Status:      JobProcessing,
		Priority:    PriorityTurnSummary,
		Attempts:    1,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	mock.ExpectQuery(`UPDATE focus_jobs`).
		WillReturnRows(jobRows(claimed))

	job, err := s.ClaimJob(context.Background(), JobKinds, DefaultLeaseSeconds)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, JobProcessing, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimJobEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`UPDATE focus_jobs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	job, err := s.ClaimJob(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestFailJobSchedulesRetry(t *testing.T) {
	s, mock := newMockStore(t)
	jobID := uuid.Must(uuid.NewV7())

	mock.ExpectQuery(`SELECT attempts, max_attempts FROM focus_jobs`).
		WillReturnRows(sqlmock.NewRows([]string{"attempts", "max_attempts"}).AddRow(1, 3))
	mock.ExpectExec(`UPDATE focus_jobs`).
		WithArgs(jobID, "boom", 60).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.FailJob(context.Background(), jobID, "boom"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailJobExhaustedAttempts(t *testing.T) {
	s, mock := newMockStore(t)
	jobID := uuid.Must(uuid.NewV7())

	mock.ExpectQuery(`SELECT attempts, max_attempts FROM focus_jobs`).
		WillReturnRows(sqlmock.NewRows([]string{"attempts", "max_attempts"}).AddRow(3, 3))
	mock.ExpectExec(`UPDATE focus_jobs`).
		WithArgs(jobID, "boom").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.FailJob(context.Background(), jobID, "boom"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 30 * time.Second},
		{1, 60 * time.Second},
		{2, 120 * time.Second},
		{5, 960 * time.Second},
		{7, 3600 * time.Second},
		{20, 3600 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryBackoff(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestExpireStaleLeases(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE focus_jobs`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	count, err := s.ExpireStaleLeases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestJobStats(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT status, count`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("queued", 3).
			AddRow("done", 10))

	stats, err := s.JobStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"queued": 3, "done": 10}, stats)
}
