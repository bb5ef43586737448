package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const turnColumns = `id, session_id, turn_number, user_message, assistant_summary, turn_title, content_hash, model_name, tool_names, started_at, ended_at, created_at`

// InsertTurn inserts a turn row and fills in its generated ID.
func (s *Store) InsertTurn(ctx context.Context, turn *Turn) error {
	turn.ID = newID()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_turns (id, session_id, turn_number, user_message, content_hash, model_name, tool_names, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		turn.ID, turn.SessionID, turn.TurnNumber, turn.UserMessage,
		turn.ContentHash, turn.ModelName, pq.Array(turn.ToolNames),
		turn.StartedAt, turn.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// InsertTurnContent inserts the raw content row for a turn.
func (s *Store) InsertTurnContent(ctx context.Context, content *TurnContent) error {
	content.ID = newID()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_turn_content (id, turn_id, raw_jsonl, assistant_text, content_size)
		VALUES ($1, $2, $3, $4, $5)`,
		content.ID, content.TurnID, content.RawJSONL, content.AssistantText, content.ContentSize,
	)
	if err != nil {
		return fmt.Errorf("insert turn content: %w", err)
	}
	return nil
}

// TurnHashes returns the content hashes of all recorded turns for a session.
// The recorder uses this set to skip turns it has already stored.
func (s *Store) TurnHashes(ctx context.Context, sessionID uuid.UUID) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content_hash FROM agent_turns WHERE session_id = $1`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("turn hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]struct{})
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("scan turn hash: %w", err)
		}
		hashes[hash] = struct{}{}
	}
	return hashes, rows.Err()
}

// GetTurn returns a turn by ID. Returns ErrNotFound if it doesn't exist.
func (s *Store) GetTurn(ctx context.Context, turnID uuid.UUID) (*Turn, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+turnColumns+` FROM agent_turns WHERE id = $1`,
		turnID,
	)
	turn, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get turn: %w", err)
	}
	return turn, nil
}

// GetTurnContent returns the content row for a turn.
// Returns ErrNotFound if the turn has no stored content.
func (s *Store) GetTurnContent(ctx context.Context, turnID uuid.UUID) (*TurnContent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, turn_id, raw_jsonl, assistant_text, content_size, files_touched, commands_run, errors_encountered, tool_call_count, created_at
		FROM agent_turn_content WHERE turn_id = $1`,
		turnID,
	)

	var c TurnContent
	var assistantText sql.NullString
	var contentSize, toolCallCount sql.NullInt64

	err := row.Scan(
		&c.ID, &c.TurnID, &c.RawJSONL, &assistantText, &contentSize,
		pq.Array(&c.FilesTouched), pq.Array(&c.CommandsRun),
		pq.Array(&c.ErrorsEncountered), &toolCallCount, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get turn content: %w", err)
	}

	if assistantText.Valid {
		c.AssistantText = &assistantText.String
	}
	if contentSize.Valid {
		size := int(contentSize.Int64)
		c.ContentSize = &size
	}
	if toolCallCount.Valid {
		count := int(toolCallCount.Int64)
		c.ToolCallCount = &count
	}
	return &c, nil
}

// TurnsNeedingSummary returns a session's turns that have no assistant
// summary yet.
func (s *Store) TurnsNeedingSummary(ctx context.Context, sessionID uuid.UUID) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+turnColumns+` FROM agent_turns
		 WHERE session_id = $1 AND assistant_summary IS NULL`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("turns needing summary: %w", err)
	}
	defer rows.Close()
	return collectTurns(rows)
}

// TurnsBySession returns all turns for a session ordered by turn number.
func (s *Store) TurnsBySession(ctx context.Context, sessionID uuid.UUID) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+turnColumns+` FROM agent_turns
		 WHERE session_id = $1
		 ORDER BY turn_number ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("turns by session: %w", err)
	}
	defer rows.Close()
	return collectTurns(rows)
}

// UpdateTurnSummary stores the generated title and summary for a turn.
func (s *Store) UpdateTurnSummary(ctx context.Context, turnID uuid.UUID, title, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE agent_turns SET turn_title = $2, assistant_summary = $3 WHERE id = $1`,
		turnID, title, summary,
	)
	if err != nil {
		return fmt.Errorf("update turn summary: %w", err)
	}
	return nil
}

// UpdateContentArtifacts stores the extracted artifact summary columns
// on a turn's content row.
func (s *Store) UpdateContentArtifacts(ctx context.Context, turnID uuid.UUID, files, commands, errs []string, toolCallCount int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE agent_turn_content
		SET files_touched = $2,
		    commands_run = $3,
		    errors_encountered = $4,
		    tool_call_count = $5
		WHERE turn_id = $1`,
		turnID, pq.Array(files), pq.Array(commands), pq.Array(errs), toolCallCount,
	)
	if err != nil {
		return fmt.Errorf("update content artifacts: %w", err)
	}
	return nil
}

// InsertTurnEntities inserts entity links for a turn.
func (s *Store) InsertTurnEntities(ctx context.Context, entities []TurnEntity) error {
	for i := range entities {
		e := &entities[i]
		e.ID = newID()
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO agent_turn_entities (id, turn_id, entity_type, entity_id, entity_name, confidence)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			e.ID, e.TurnID, e.EntityType, e.EntityID, e.EntityName, e.Confidence,
		)
		if err != nil {
			return fmt.Errorf("insert turn entity: %w", err)
		}
	}
	return nil
}

// InsertTurnArtifacts inserts extracted artifacts for a turn.
func (s *Store) InsertTurnArtifacts(ctx context.Context, artifacts []TurnArtifact) error {
	for i := range artifacts {
		a := &artifacts[i]
		a.ID = newID()

		metadata, err := marshalMetadata(a.Metadata)
		if err != nil {
			return fmt.Errorf("marshal artifact metadata: %w", err)
		}

		_, err = s.db.ExecContext(ctx, `
			INSERT INTO agent_turn_artifacts (id, turn_id, artifact_type, artifact_value, artifact_metadata)
			VALUES ($1, $2, $3, $4, $5)`,
			a.ID, a.TurnID, a.ArtifactType, a.Value, metadata,
		)
		if err != nil {
			return fmt.Errorf("insert turn artifact: %w", err)
		}
	}
	return nil
}

// RecentTurnFilter selects which turns RecentTurns returns.
type RecentTurnFilter struct {
	// ProjectID limits turns to sessions linked to this project.
	ProjectID *uuid.UUID
	// WorkspaceLike matches sessions whose workspace path contains
	// this substring. Ignored when ProjectID is set.
	WorkspaceLike string
	// Limit defaults to 5.
	Limit int
}

// RecentTurns returns the most recent turns matching the filter.
func (s *Store) RecentTurns(ctx context.Context, filter RecentTurnFilter) ([]Turn, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT t.id, t.session_id, t.turn_number, t.user_message, t.assistant_summary, t.turn_title, t.content_hash, t.model_name, t.tool_names, t.started_at, t.ended_at, t.created_at
		FROM agent_turns t
		JOIN agent_sessions s ON s.id = t.session_id`

	var rows *sql.Rows
	var err error
	switch {
	case filter.ProjectID != nil:
		rows, err = s.db.QueryContext(ctx, query+`
			WHERE s.project_id = $1
			ORDER BY t.started_at DESC NULLS LAST
			LIMIT $2`,
			*filter.ProjectID, limit,
		)
	case filter.WorkspaceLike != "":
		rows, err = s.db.QueryContext(ctx, query+`
			WHERE s.workspace_path ILIKE $1
			ORDER BY t.started_at DESC NULLS LAST
			LIMIT $2`,
			"%"+filter.WorkspaceLike+"%", limit,
		)
	default:
		rows, err = s.db.QueryContext(ctx, query+`
			ORDER BY t.started_at DESC NULLS LAST
			LIMIT $1`,
			limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()
	return collectTurns(rows)
}

// TurnsByFile returns recent turns whose extracted files_touched include
// the given path.
func (s *Store) TurnsByFile(ctx context.Context, path string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.session_id, t.turn_number, t.user_message, t.assistant_summary, t.turn_title, t.content_hash, t.model_name, t.tool_names, t.started_at, t.ended_at, t.created_at
		FROM agent_turns t
		JOIN agent_turn_content c ON c.turn_id = t.id
		WHERE $1 = ANY(c.files_touched)
		ORDER BY t.started_at DESC NULLS LAST
		LIMIT $2`,
		path, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("turns by file: %w", err)
	}
	defer rows.Close()
	return collectTurns(rows)
}

// TurnsWithErrors returns recent turns that recorded errors, optionally
// scoped to a project.
func (s *Store) TurnsWithErrors(ctx context.Context, projectID *uuid.UUID, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 3
	}

	var rows *sql.Rows
	var err error
	if projectID != nil {
		rows, err = s.db.QueryContext(ctx, `
			SELECT t.id, t.session_id, t.turn_number, t.user_message, t.assistant_summary, t.turn_title, t.content_hash, t.model_name, t.tool_names, t.started_at, t.ended_at, t.created_at
			FROM agent_turns t
			JOIN agent_turn_content c ON c.turn_id = t.id
			JOIN agent_sessions s ON s.id = t.session_id
			WHERE c.errors_encountered IS NOT NULL AND s.project_id = $1
			ORDER BY t.started_at DESC NULLS LAST
			LIMIT $2`,
			*projectID, limit,
		)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT t.id, t.session_id, t.turn_number, t.user_message, t.assistant_summary, t.turn_title, t.content_hash, t.model_name, t.tool_names, t.started_at, t.ended_at, t.created_at
			FROM agent_turns t
			JOIN agent_turn_content c ON c.turn_id = t.id
			WHERE c.errors_encountered IS NOT NULL
			ORDER BY t.started_at DESC NULLS LAST
			LIMIT $1`,
			limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("turns with errors: %w", err)
	}
	defer rows.Close()
	return collectTurns(rows)
}

// TurnWithContent pairs a turn with its content row, if one exists.
type TurnWithContent struct {
	Turn
	Content *TurnContent
}

// TurnsWithContentBySession returns all turns for a session with their
// content rows, ordered by turn number. Used by the skill analyzer.
func (s *Store) TurnsWithContentBySession(ctx context.Context, sessionID uuid.UUID) ([]TurnWithContent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.session_id, t.turn_number, t.user_message, t.assistant_summary, t.turn_title, t.content_hash, t.model_name, t.tool_names, t.started_at, t.ended_at, t.created_at,
		       c.files_touched, c.commands_run, c.errors_encountered, c.tool_call_count
		FROM agent_turns t
		LEFT JOIN agent_turn_content c ON c.turn_id = t.id
		WHERE t.session_id = $1
		ORDER BY t.turn_number ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("turns with content: %w", err)
	}
	defer rows.Close()

	var results []TurnWithContent
	for rows.Next() {
		var tc TurnWithContent
		var userMessage, assistantSummary, turnTitle, modelName sql.NullString
		var startedAt, endedAt sql.NullTime
		var files, commands, errs []string
		var toolCallCount sql.NullInt64

		err := rows.Scan(
			&tc.ID, &tc.SessionID, &tc.TurnNumber, &userMessage,
			&assistantSummary, &turnTitle, &tc.ContentHash, &modelName,
			pq.Array(&tc.ToolNames), &startedAt, &endedAt, &tc.CreatedAt,
			pq.Array(&files), pq.Array(&commands), pq.Array(&errs), &toolCallCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan turn with content: %w", err)
		}

		if userMessage.Valid {
			tc.UserMessage = &userMessage.String
		}
		if assistantSummary.Valid {
			tc.AssistantSummary = &assistantSummary.String
		}
		if turnTitle.Valid {
			tc.TurnTitle = &turnTitle.String
		}
		if modelName.Valid {
			tc.ModelName = &modelName.String
		}
		if startedAt.Valid {
			tc.StartedAt = &startedAt.Time
		}
		if endedAt.Valid {
			tc.EndedAt = &endedAt.Time
		}
		if files != nil || commands != nil || errs != nil || toolCallCount.Valid {
			content := &TurnContent{
				TurnID:            tc.ID,
				FilesTouched:      files,
				CommandsRun:       commands,
				ErrorsEncountered: errs,
			}
			if toolCallCount.Valid {
				count := int(toolCallCount.Int64)
				content.ToolCallCount = &count
			}
			tc.Content = content
		}
		results = append(results, tc)
	}
	return results, rows.Err()
}

func collectTurns(rows *sql.Rows) ([]Turn, error) {
	var turns []Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, *turn)
	}
	return turns, rows.Err()
}

func scanTurn(row scanner) (*Turn, error) {
	var t Turn
	var userMessage, assistantSummary, turnTitle, modelName sql.NullString
	var startedAt, endedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.SessionID, &t.TurnNumber, &userMessage,
		&assistantSummary, &turnTitle, &t.ContentHash, &modelName,
		pq.Array(&t.ToolNames), &startedAt, &endedAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userMessage.Valid {
		t.UserMessage = &userMessage.String
	}
	if assistantSummary.Valid {
		t.AssistantSummary = &assistantSummary.String
	}
	if turnTitle.Valid {
		t.TurnTitle = &turnTitle.String
	}
	if modelName.Valid {
		t.ModelName = &modelName.String
	}
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if endedAt.Valid {
		t.EndedAt = &endedAt.Time
	}
	return &t, nil
}
