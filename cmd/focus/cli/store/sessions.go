package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const sessionColumns = `id, session_id, transcript_path, workspace_path, provider, session_title, session_summary, started_at, last_activity_at, project_id, turn_count, is_processed, created_at, updated_at`

// GetSessionByClaudeID looks up a session by its Claude Code session ID.
// Returns ErrNotFound if no such session has been recorded.
func (s *Store) GetSessionByClaudeID(ctx context.Context, claudeSessionID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM agent_sessions WHERE session_id = $1`,
		claudeSessionID,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// CreateSession inserts a new session row and fills in its generated ID.
func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	sess.ID = newID()
	if sess.Provider == "" {
		sess.Provider = "claude"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_sessions (id, session_id, transcript_path, workspace_path, provider)
		VALUES ($1, $2, $3, $4, $5)`,
		sess.ID, sess.SessionID, sess.TranscriptPath, sess.WorkspacePath, sess.Provider,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// UpdateSession persists the mutable fields of a session row.
func (s *Store) UpdateSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE agent_sessions
		SET transcript_path = $2,
		    workspace_path = $3,
		    session_title = $4,
		    session_summary = $5,
		    started_at = $6,
		    last_activity_at = $7,
		    project_id = $8,
		    turn_count = $9,
		    is_processed = $10,
		    updated_at = now()
		WHERE id = $1`,
		sess.ID, sess.TranscriptPath, sess.WorkspacePath,
		sess.SessionTitle, sess.SessionSummary,
		sess.StartedAt, sess.LastActivityAt,
		sess.ProjectID, sess.TurnCount, sess.IsProcessed,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// ListSessions returns the most recently active sessions.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM agent_sessions
		 ORDER BY last_activity_at DESC NULLS LAST
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// RecordingStats summarizes recorded data for the stats command.
type RecordingStats struct {
	TotalSessions     int
	ProcessedSessions int
	TotalTurns        int
	SummarizedTurns   int
	EntityLinks       int
}

// Stats returns aggregate counts of recorded sessions, turns, and entities.
func (s *Store) Stats(ctx context.Context) (*RecordingStats, error) {
	var stats RecordingStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
		    (SELECT count(*) FROM agent_sessions),
		    (SELECT count(*) FROM agent_sessions WHERE is_processed),
		    (SELECT count(*) FROM agent_turns),
		    (SELECT count(*) FROM agent_turns WHERE assistant_summary IS NOT NULL),
		    (SELECT count(*) FROM agent_turn_entities)`,
	).Scan(
		&stats.TotalSessions, &stats.ProcessedSessions,
		&stats.TotalTurns, &stats.SummarizedTurns, &stats.EntityLinks,
	)
	if err != nil {
		return nil, fmt.Errorf("recording stats: %w", err)
	}
	return &stats, nil
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var transcriptPath, workspacePath, title, summary sql.NullString
	var startedAt, lastActivityAt sql.NullTime
	var projectID uuid.NullUUID

	err := row.Scan(
		&sess.ID, &sess.SessionID, &transcriptPath, &workspacePath,
		&sess.Provider, &title, &summary, &startedAt, &lastActivityAt,
		&projectID, &sess.TurnCount, &sess.IsProcessed,
		&sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if transcriptPath.Valid {
		sess.TranscriptPath = &transcriptPath.String
	}
	if workspacePath.Valid {
		sess.WorkspacePath = &workspacePath.String
	}
	if title.Valid {
		sess.SessionTitle = &title.String
	}
	if summary.Valid {
		sess.SessionSummary = &summary.String
	}
	if startedAt.Valid {
		sess.StartedAt = &startedAt.Time
	}
	if lastActivityAt.Valid {
		sess.LastActivityAt = &lastActivityAt.Time
	}
	if projectID.Valid {
		sess.ProjectID = &projectID.UUID
	}
	return &sess, nil
}
