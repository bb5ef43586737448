package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/simonhq/focus/cmd/focus/cli/agent/claudecode"
	"github.com/simonhq/focus/cmd/focus/cli/classify"
	"github.com/simonhq/focus/cmd/focus/cli/logging"
	"github.com/simonhq/focus/cmd/focus/cli/projectstate"
	"github.com/simonhq/focus/cmd/focus/cli/record"
	"github.com/simonhq/focus/cmd/focus/cli/skills"
	"github.com/simonhq/focus/cmd/focus/cli/store"
	"github.com/simonhq/focus/cmd/focus/cli/summarize"
)

// handleSessionProcess parses and stores a session's transcript, links
// it to a project, and fans out per-turn jobs for the new turns.
func (w *Worker) handleSessionProcess(ctx context.Context, job *store.Job) error {
	var payload record.SessionPayload
	if err := unmarshalPayload(job, &payload); err != nil {
		return err
	}

	result, err := record.RecordSession(ctx, w.store, payload.SessionID, payload.TranscriptPath, payload.WorkspacePath)
	if err != nil {
		return err
	}
	if result.TranscriptMissing {
		return fmt.Errorf("recording failed: transcript not found at %s", payload.TranscriptPath)
	}

	if payload.WorkspacePath != "" {
		if err := w.linkSessionToProject(ctx, payload.SessionID, payload.WorkspacePath); err != nil {
			logging.Warn(ctx, "failed to link session to project", "error", err)
		}
	}

	if result.TurnsRecorded > 0 {
		if err := w.enqueueTurnJobs(ctx, payload.SessionID); err != nil {
			return err
		}
	}

	logging.Info(ctx, "session job done",
		"session_id", shortID(payload.SessionID),
		"turns_recorded", result.TurnsRecorded,
		"turns_skipped", result.TurnsSkipped,
	)
	return nil
}

// linkSessionToProject links a session to a Focus project by matching
// the workspace directory name (or an explicit `focus project use`
// selection) against active project slugs. Existing links are kept.
func (w *Worker) linkSessionToProject(ctx context.Context, sessionID, workspacePath string) error {
	dirName := strings.ToLower(filepath.Base(workspacePath))
	if dirName == "" || dirName == "." || dirName == string(filepath.Separator) {
		return nil
	}

	searchSlug := projectstate.ActiveProject(workspacePath)
	if searchSlug == "" {
		searchSlug = dirName
	}

	project, err := w.store.ActiveProjectBySlug(ctx, searchSlug)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	sess, err := w.store.GetSessionByClaudeID(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if sess.ProjectID != nil {
		return nil
	}

	sess.ProjectID = &project.ID
	if err := w.store.UpdateSession(ctx, sess); err != nil {
		return err
	}
	logging.Info(ctx, "linked session to project",
		"session_id", shortID(sessionID), "project", project.Slug)
	return nil
}

// enqueueTurnJobs fans out summary, entity, and artifact jobs for every
// turn still missing a summary, plus one session_summary job.
func (w *Worker) enqueueTurnJobs(ctx context.Context, sessionID string) error {
	sess, err := w.store.GetSessionByClaudeID(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	turns, err := w.store.TurnsNeedingSummary(ctx, sess.ID)
	if err != nil {
		return err
	}

	for _, turn := range turns {
		payload := turnPayload{TurnID: turn.ID.String()}
		jobs := []store.EnqueueParams{
			{
				Kind:      store.KindTurnSummary,
				Payload:   payload,
				DedupeKey: fmt.Sprintf("turn_summary:%s", turn.ID),
				Priority:  store.PriorityTurnSummary,
			},
			{
				Kind:      store.KindEntityExtract,
				Payload:   payload,
				DedupeKey: fmt.Sprintf("entity_extract:%s", turn.ID),
				Priority:  store.PriorityEntityExtract,
			},
			{
				Kind:      store.KindArtifactExtract,
				Payload:   payload,
				DedupeKey: fmt.Sprintf("artifact_extract:%s", turn.ID),
				Priority:  store.PriorityArtifactExtract,
			},
		}
		for _, p := range jobs {
			if _, err := w.store.EnqueueJob(ctx, p); err != nil {
				return err
			}
		}
	}

	_, err = w.store.EnqueueJob(ctx, store.EnqueueParams{
		Kind:      store.KindSessionSummary,
		Payload:   sessionIDPayload{SessionID: sessionID},
		DedupeKey: fmt.Sprintf("session_summary:%s", sessionID),
		Priority:  store.PrioritySessionSummary,
	})
	return err
}

// handleTurnSummary fills in a turn's title and summary. Short user
// messages are summarized without an LLM call; LLM failures fall back
// to truncation so the job never retries on API errors.
func (w *Worker) handleTurnSummary(ctx context.Context, job *store.Job) error {
	var payload turnPayload
	if err := unmarshalPayload(job, &payload); err != nil {
		return err
	}
	turnID, err := uuid.Parse(payload.TurnID)
	if err != nil {
		return fmt.Errorf("invalid turn_id: %w", err)
	}

	turn, err := w.store.GetTurn(ctx, turnID)
	if errors.Is(err, store.ErrNotFound) {
		logging.Warn(ctx, "turn not found, skipping summary", "turn_id", turnID)
		return nil
	}
	if err != nil {
		return err
	}
	if turn.AssistantSummary != nil {
		return nil
	}

	userMsg := summarize.Truncate(deref(turn.UserMessage), 200)
	if len(userMsg) < 50 {
		title := summarize.Truncate(userMsg, 80)
		if title == "" {
			title = "Short exchange"
		}
		return w.store.UpdateTurnSummary(ctx, turnID, title, userMsg)
	}

	title, summary := w.summarizeTurn(ctx, userMsg)
	return w.store.UpdateTurnSummary(ctx, turnID, title, summary)
}

func (w *Worker) summarizeTurn(ctx context.Context, userMsg string) (title, summary string) {
	if w.llm != nil {
		title, summary, err := w.llm.TurnSummary(ctx, w.settings.Context.TurnSummaryModel, userMsg)
		if err == nil {
			return title, summary
		}
		logging.Debug(ctx, "llm summary failed, using truncation", "error", err)
	}
	return summarize.Truncate(userMsg, 80), summarize.Truncate(userMsg, 200)
}

// handleEntityExtract scans a turn's text for known project and person
// mentions and records the matches as turn entities. Keyword matching
// only, no LLM.
func (w *Worker) handleEntityExtract(ctx context.Context, job *store.Job) error {
	var payload turnPayload
	if err := unmarshalPayload(job, &payload); err != nil {
		return err
	}
	turnID, err := uuid.Parse(payload.TurnID)
	if err != nil {
		return fmt.Errorf("invalid turn_id: %w", err)
	}

	turn, err := w.store.GetTurn(ctx, turnID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var parts []string
	if turn.UserMessage != nil {
		parts = append(parts, *turn.UserMessage)
	}
	content, err := w.store.GetTurnContent(ctx, turnID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if content != nil && content.AssistantText != nil {
		parts = append(parts, *content.AssistantText)
	}

	fullText := strings.ToLower(strings.Join(parts, "\n"))
	if fullText == "" {
		return nil
	}

	projects, err := w.store.ActiveProjects(ctx)
	if err != nil {
		return err
	}
	people, err := w.store.People(ctx)
	if err != nil {
		return err
	}

	var entities []store.TurnEntity
	for _, project := range projects {
		p := project
		switch {
		case classify.WordMatch(strings.ToLower(p.Slug), fullText):
			entities = append(entities, turnEntity(turnID, "project", p.ID, p.Name, 0.9))
		case p.Name != "" && classify.WordMatch(strings.ToLower(p.Name), fullText):
			entities = append(entities, turnEntity(turnID, "project", p.ID, p.Name, 0.7))
		}
	}
	for _, person := range people {
		if len(person.Name) > 2 && classify.WordMatch(strings.ToLower(person.Name), fullText) {
			entities = append(entities, turnEntity(turnID, "person", person.ID, person.Name, 0.8))
		}
	}

	if len(entities) == 0 {
		return nil
	}
	return w.store.InsertTurnEntities(ctx, entities)
}

func turnEntity(turnID uuid.UUID, entityType string, entityID uuid.UUID, name string, confidence float64) store.TurnEntity {
	return store.TurnEntity{
		TurnID:     turnID,
		EntityType: entityType,
		EntityID:   &entityID,
		EntityName: &name,
		Confidence: confidence,
	}
}

// handleArtifactExtract parses a turn's raw JSONL for file operations,
// commands, and errors, then updates the content summary columns.
func (w *Worker) handleArtifactExtract(ctx context.Context, job *store.Job) error {
	var payload turnPayload
	if err := unmarshalPayload(job, &payload); err != nil {
		return err
	}
	turnID, err := uuid.Parse(payload.TurnID)
	if err != nil {
		return fmt.Errorf("invalid turn_id: %w", err)
	}

	content, err := w.store.GetTurnContent(ctx, turnID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if content.RawJSONL == "" {
		return nil
	}

	extracted := claudecode.ExtractArtifacts(content.RawJSONL)

	artifacts := make([]store.TurnArtifact, 0, len(extracted.Artifacts))
	for _, a := range extracted.Artifacts {
		artifacts = append(artifacts, store.TurnArtifact{
			TurnID:       turnID,
			ArtifactType: a.Type,
			Value:        a.Value,
			Metadata:     a.Metadata,
		})
	}
	if len(artifacts) > 0 {
		if err := w.store.InsertTurnArtifacts(ctx, artifacts); err != nil {
			return err
		}
	}

	filesTouched := extracted.FilesTouched()
	if err := w.store.UpdateContentArtifacts(ctx, turnID,
		filesTouched, extracted.CommandsRun, extracted.ErrorsEncountered,
		extracted.ToolCallCount,
	); err != nil {
		return err
	}

	logging.Info(ctx, "artifacts extracted",
		"turn_id", turnID,
		"artifacts", len(artifacts),
		"files", len(filesTouched),
		"commands", len(extracted.CommandsRun),
		"errors", len(extracted.ErrorsEncountered),
	)
	return nil
}

// handleSessionSummary aggregates turn titles into a session title and
// summary, marks the session processed, and enqueues skill extraction.
func (w *Worker) handleSessionSummary(ctx context.Context, job *store.Job) error {
	var payload sessionIDPayload
	if err := unmarshalPayload(job, &payload); err != nil {
		return err
	}

	sess, err := w.store.GetSessionByClaudeID(ctx, payload.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	turns, err := w.store.TurnsBySession(ctx, sess.ID)
	if err != nil {
		return err
	}

	var parts []string
	for _, turn := range turns {
		switch {
		case turn.TurnTitle != nil && *turn.TurnTitle != "":
			parts = append(parts, *turn.TurnTitle)
		case turn.UserMessage != nil && *turn.UserMessage != "":
			parts = append(parts, summarize.Truncate(*turn.UserMessage, 80))
		}
	}
	if len(parts) == 0 {
		return nil
	}

	title := summarize.Truncate(parts[0], 100)
	summary := summarize.Truncate(strings.Join(parts, "; "), 500)
	sess.SessionTitle = &title
	sess.SessionSummary = &summary
	sess.IsProcessed = true

	if err := w.store.UpdateSession(ctx, sess); err != nil {
		return err
	}
	logging.Info(ctx, "session summary generated", "session_id", shortID(payload.SessionID))

	_, err = w.store.EnqueueJob(ctx, store.EnqueueParams{
		Kind:      store.KindSkillExtract,
		Payload:   sessionIDPayload{SessionID: payload.SessionID},
		DedupeKey: fmt.Sprintf("skill_extract:%s", payload.SessionID),
		Priority:  store.PrioritySkillExtract,
	})
	return err
}

// handleSkillExtract analyzes a processed session and auto-generates a
// skill when it qualifies. Generation or install problems are logged
// and swallowed: a session that cannot become a skill is not a job
// failure.
func (w *Worker) handleSkillExtract(ctx context.Context, job *store.Job) error {
	var payload sessionIDPayload
	if err := unmarshalPayload(job, &payload); err != nil {
		return err
	}

	sess, err := w.store.GetSessionByClaudeID(ctx, payload.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	candidate, err := skills.AnalyzeSession(ctx, w.store, w.settings, sess)
	if err != nil {
		return err
	}
	if candidate == nil {
		logging.Debug(ctx, "session did not qualify for skill", "session_id", shortID(payload.SessionID))
		return nil
	}

	if w.llm == nil {
		logging.Debug(ctx, "skill generation skipped, no API key", "session_id", shortID(payload.SessionID))
		return nil
	}

	generated, err := skills.Generate(ctx, w.llm, w.settings.Skills.SkillGenerationModel,
		candidate.Description, candidate.Context, skills.SourceAuto)
	if err != nil {
		logging.Debug(ctx, "skill generation failed", "session_id", shortID(payload.SessionID), "error", err)
		return nil
	}

	path, err := skills.Install(generated.Name, generated.FullContent, skills.InstallOptions{})
	if err != nil {
		logging.Debug(ctx, "skipped skill install", "session_id", shortID(payload.SessionID), "error", err)
		return nil
	}
	logging.Info(ctx, "auto-generated skill",
		"name", generated.Name, "session_id", shortID(payload.SessionID), "path", path)

	score := candidate.QualityScore
	return w.store.InsertGeneratedSkill(ctx, &store.GeneratedSkill{
		Name:             generated.Name,
		Description:      generated.Description,
		Source:           skills.SourceAuto,
		SourceSessionID:  &payload.SessionID,
		InstalledPath:    path,
		Scope:            skills.ScopePersonal,
		QualityScore:     &score,
		SkillContentHash: skills.DescriptionHash(generated.Description),
		IsActive:         true,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
