// Package record stores Claude Code sessions in the database and
// enqueues background processing for them.
package record

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/simonhq/focus/cmd/focus/cli/agent/claudecode"
	"github.com/simonhq/focus/cmd/focus/cli/logging"
	"github.com/simonhq/focus/cmd/focus/cli/store"
)

// Store is the subset of database operations the recorder needs.
type Store interface {
	GetSessionByClaudeID(ctx context.Context, claudeSessionID string) (*store.Session, error)
	CreateSession(ctx context.Context, sess *store.Session) error
	UpdateSession(ctx context.Context, sess *store.Session) error
	TurnHashes(ctx context.Context, sessionID uuid.UUID) (map[string]struct{}, error)
	InsertTurn(ctx context.Context, turn *store.Turn) error
	InsertTurnContent(ctx context.Context, content *store.TurnContent) error
	EnqueueJob(ctx context.Context, p store.EnqueueParams) (*store.Job, error)
}

// SessionPayload is the job payload for session_process jobs.
type SessionPayload struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	WorkspacePath  string `json:"workspace_path"`
}

// Result summarizes one RecordSession call.
type Result struct {
	SessionID         string
	TurnsRecorded     int
	TurnsSkipped      int
	TranscriptMissing bool
}

// RecordSession parses a JSONL transcript into turns, upserts the
// session row, and inserts the turns that have not been stored yet.
// Turns are deduplicated by content hash, so recording the same
// transcript twice is safe.
func RecordSession(ctx context.Context, st Store, sessionID, transcriptPath, workspacePath string) (*Result, error) {
	result := &Result{SessionID: sessionID}

	if _, err := os.Stat(transcriptPath); err != nil {
		logging.Warn(ctx, "transcript not found", "path", transcriptPath)
		result.TranscriptMissing = true
		return result, nil
	}

	turns, err := claudecode.ParseSessionIntoTurns(transcriptPath)
	if err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	if len(turns) == 0 {
		return result, nil
	}

	sess, err := st.GetSessionByClaudeID(ctx, sessionID)
	var existingHashes map[string]struct{}
	switch {
	case err == nil:
		existingHashes, err = st.TurnHashes(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
	case errors.Is(err, store.ErrNotFound):
		sess = &store.Session{
			SessionID:      sessionID,
			TranscriptPath: &transcriptPath,
			WorkspacePath:  &workspacePath,
		}
		if err := st.CreateSession(ctx, sess); err != nil {
			return nil, err
		}
		existingHashes = map[string]struct{}{}
	default:
		return nil, err
	}

	for _, parsed := range turns {
		if _, ok := existingHashes[parsed.ContentHash]; ok {
			result.TurnsSkipped++
			continue
		}

		turn := &store.Turn{
			SessionID:   sess.ID,
			TurnNumber:  parsed.TurnNumber,
			ContentHash: parsed.ContentHash,
			ToolNames:   parsed.ToolNames,
			StartedAt:   parsed.StartedAt,
			EndedAt:     parsed.EndedAt,
		}
		if parsed.UserMessage != "" {
			turn.UserMessage = &parsed.UserMessage
		}
		if parsed.ModelName != "" {
			turn.ModelName = &parsed.ModelName
		}
		if err := st.InsertTurn(ctx, turn); err != nil {
			return nil, err
		}

		size := len(parsed.RawJSONL)
		content := &store.TurnContent{
			TurnID:      turn.ID,
			RawJSONL:    parsed.RawJSONL,
			ContentSize: &size,
		}
		if parsed.AssistantText != "" {
			content.AssistantText = &parsed.AssistantText
		}
		if err := st.InsertTurnContent(ctx, content); err != nil {
			return nil, err
		}
		result.TurnsRecorded++
	}

	updateSessionActivity(sess, turns)
	sess.TurnCount = len(existingHashes) + result.TurnsRecorded
	sess.TranscriptPath = &transcriptPath

	if err := st.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}

	logging.Info(ctx, "recorded session",
		"session_id", shortID(sessionID),
		"turns_recorded", result.TurnsRecorded,
		"turns_skipped", result.TurnsSkipped,
	)
	return result, nil
}

// updateSessionActivity sets started_at to the earliest turn timestamp
// (if not already set) and last_activity_at to the latest.
func updateSessionActivity(sess *store.Session, turns []claudecode.ParsedTurn) {
	var earliest, latest *time.Time
	for _, turn := range turns {
		if turn.StartedAt == nil {
			continue
		}
		ts := *turn.StartedAt
		if earliest == nil || ts.Before(*earliest) {
			earliest = &ts
		}
		if latest == nil || ts.After(*latest) {
			latest = &ts
		}
	}
	if earliest == nil {
		return
	}
	if sess.StartedAt == nil {
		sess.StartedAt = earliest
	}
	sess.LastActivityAt = latest
}

// EnqueueSessionRecording is the fast path used by the Stop hook: it
// enqueues a session_process job and returns immediately. The transcript
// file size goes into the dedupe key so each new turn creates a new job;
// re-processing the same file is safe because the recorder dedupes turns
// by content hash. Returns false when an identical job is already queued.
func EnqueueSessionRecording(ctx context.Context, st Store, sessionID, transcriptPath, workspacePath string) (bool, error) {
	var fileSize int64
	if info, err := os.Stat(transcriptPath); err == nil {
		fileSize = info.Size()
	}

	job, err := st.EnqueueJob(ctx, store.EnqueueParams{
		Kind: store.KindSessionProcess,
		Payload: SessionPayload{
			SessionID:      sessionID,
			TranscriptPath: transcriptPath,
			WorkspacePath:  workspacePath,
		},
		DedupeKey: fmt.Sprintf("session_process:%s:%d", sessionID, fileSize),
		Priority:  store.PrioritySessionProcess,
	})
	if err != nil {
		return false, err
	}
	return job != nil, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
