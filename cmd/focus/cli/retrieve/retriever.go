// Package retrieve queries Focus data stores for context relevant to a
// classified prompt. All lookups are plain SQL and disk reads, so
// retrieval stays well inside the hook's latency budget.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/simonhq/focus/cmd/focus/cli/classify"
	"github.com/simonhq/focus/cmd/focus/cli/logging"
	"github.com/simonhq/focus/cmd/focus/cli/store"
)

// ContextBlock is a single unit of retrieved context.
type ContextBlock struct {
	SourceType     string
	SourceID       string
	Title          string
	Content        string
	RelevanceScore float64
	Timestamp      *time.Time
	TokenEstimate  int
}

func newBlock(sourceType, sourceID, title, content string, score float64, ts *time.Time) ContextBlock {
	return ContextBlock{
		SourceType:     sourceType,
		SourceID:       sourceID,
		Title:          title,
		Content:        content,
		RelevanceScore: score,
		Timestamp:      ts,
		TokenEstimate:  EstimateTokens(content),
	}
}

// Source is the subset of store queries the retriever reads from.
type Source interface {
	ProjectIDsBySlugs(ctx context.Context, slugs []string) ([]uuid.UUID, error)
	ActiveProjectBySlug(ctx context.Context, slug string) (*store.Project, error)
	RecentTurns(ctx context.Context, filter store.RecentTurnFilter) ([]store.Turn, error)
	ActiveTasks(ctx context.Context, projectID uuid.UUID, limit int) ([]store.Task, error)
	OpenCommitments(ctx context.Context, projectID *uuid.UUID, limit int) ([]store.Commitment, error)
	PersonByNameLike(ctx context.Context, name string) (*store.Person, error)
	TurnsByFile(ctx context.Context, path string, limit int) ([]store.Turn, error)
	TurnsWithErrors(ctx context.Context, projectID *uuid.UUID, limit int) ([]store.Turn, error)
	ActiveSprints(ctx context.Context, limit int) ([]store.Sprint, error)
}

// Retriever gathers context blocks for a prompt classification.
type Retriever struct {
	src Source
}

func NewRetriever(src Source) *Retriever {
	return &Retriever{src: src}
}

// Retrieve collects context blocks from every relevant source, dedupes
// them by source ID, and returns them sorted by relevance. Individual
// source failures are logged and skipped so one bad query never empties
// the whole context.
func (r *Retriever) Retrieve(ctx context.Context, cls classify.Classification) []ContextBlock {
	if cls.Confidence < 0.1 {
		return nil
	}

	var blocks []ContextBlock

	projectIDs := r.resolveProjects(ctx, cls)
	for _, pid := range projectIDs {
		blocks = append(blocks, r.recentTurns(ctx, store.RecentTurnFilter{ProjectID: &pid})...)
		blocks = append(blocks, r.activeTasks(ctx, pid)...)
		blocks = append(blocks, r.openCommitments(ctx, &pid)...)
	}

	if cls.WorkspaceProject != "" {
		// Workspace matching supplements project-matched turns
		blocks = append(blocks, r.recentTurns(ctx, store.RecentTurnFilter{WorkspaceLike: cls.WorkspaceProject})...)
	}

	if len(projectIDs) == 0 && cls.WorkspaceProject == "" {
		// Global fallback: recent turns from any session
		blocks = append(blocks, r.recentTurns(ctx, store.RecentTurnFilter{Limit: 3})...)
	}

	if len(cls.PersonNames) > 0 {
		blocks = append(blocks, r.personContext(ctx, cls.PersonNames)...)
	}

	if len(cls.FilePaths) > 0 {
		blocks = append(blocks, r.turnsByFile(ctx, cls.FilePaths)...)
	}

	if cls.QueryType == classify.QueryCode {
		for _, pid := range projectIDs {
			blocks = append(blocks, r.recentErrors(ctx, &pid)...)
		}
	}

	if len(projectIDs) == 0 {
		blocks = append(blocks, r.openCommitments(ctx, nil)...)
	}
	blocks = append(blocks, r.activeSprints(ctx)...)

	blocks = append(blocks, relevantSkills(ctx, cls, maxMatchedSkills)...)

	seen := make(map[string]struct{}, len(blocks))
	unique := blocks[:0]
	for _, b := range blocks {
		if _, ok := seen[b.SourceID]; ok {
			continue
		}
		seen[b.SourceID] = struct{}{}
		unique = append(unique, b)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].RelevanceScore > unique[j].RelevanceScore
	})
	return unique
}

func (r *Retriever) resolveProjects(ctx context.Context, cls classify.Classification) []uuid.UUID {
	if len(cls.ProjectSlugs) > 0 {
		ids, err := r.src.ProjectIDsBySlugs(ctx, cls.ProjectSlugs)
		if err != nil {
			logging.Warn(ctx, "failed to resolve project slugs", "error", err)
			return nil
		}
		return ids
	}

	if cls.WorkspaceProject != "" {
		project, err := r.src.ActiveProjectBySlug(ctx, cls.WorkspaceProject)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			logging.Warn(ctx, "failed to resolve workspace project", "error", err)
			return nil
		}
		return []uuid.UUID{project.ID}
	}
	return nil
}

func (r *Retriever) recentTurns(ctx context.Context, filter store.RecentTurnFilter) []ContextBlock {
	turns, err := r.src.RecentTurns(ctx, filter)
	if err != nil {
		logging.Warn(ctx, "failed to query recent turns", "error", err)
		return nil
	}

	var blocks []ContextBlock
	for _, turn := range turns {
		title := deref(turn.TurnTitle)
		if title == "" {
			title = clip(deref(turn.UserMessage), 60)
		}
		content := deref(turn.AssistantSummary)
		if content == "" {
			content = clip(deref(turn.UserMessage), 150)
		}

		blocks = append(blocks, newBlock(
			"conversation",
			turn.ID.String(),
			fmt.Sprintf("%s (%s)", title, relativeTime(turn.StartedAt)),
			content,
			0.7,
			turn.StartedAt,
		))
	}
	return blocks
}

func (r *Retriever) activeTasks(ctx context.Context, projectID uuid.UUID) []ContextBlock {
	tasks, err := r.src.ActiveTasks(ctx, projectID, 5)
	if err != nil {
		logging.Warn(ctx, "failed to query active tasks", "error", err)
		return nil
	}

	var blocks []ContextBlock
	for _, task := range tasks {
		due := ""
		if task.DueDate != nil {
			due = fmt.Sprintf(" (due %s)", task.DueDate.Format("2006-01-02"))
		}
		content := fmt.Sprintf("[%s] %s%s | %s", task.Status, task.Title, due, task.Priority)

		score := 0.4
		if task.Status == "in_progress" {
			score = 0.6
		}
		blocks = append(blocks, newBlock("task", task.ID.String(), task.Title, content, score, nil))
	}
	return blocks
}

func (r *Retriever) openCommitments(ctx context.Context, projectID *uuid.UUID) []ContextBlock {
	commitments, err := r.src.OpenCommitments(ctx, projectID, 3)
	if err != nil {
		logging.Warn(ctx, "failed to query open commitments", "error", err)
		return nil
	}

	var blocks []ContextBlock
	for _, c := range commitments {
		person := "unknown"
		if c.PersonName != nil {
			person = *c.PersonName
		}
		direction := "from"
		if c.Direction == "from_me" {
			direction = "from me to"
		}
		deadline := ""
		if c.Deadline != nil {
			deadline = " by " + c.Deadline.Format("2006-01-02")
		}
		content := fmt.Sprintf("Commitment %s %s: %s%s", direction, person, c.Description, deadline)

		blocks = append(blocks, newBlock("commitment", c.ID.String(), clip(c.Description, 60), content, 0.5, nil))
	}
	return blocks
}

func (r *Retriever) personContext(ctx context.Context, names []string) []ContextBlock {
	if len(names) > 3 {
		names = names[:3]
	}

	var blocks []ContextBlock
	for _, name := range names {
		person, err := r.src.PersonByNameLike(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			logging.Warn(ctx, "failed to look up person", "name", name, "error", err)
			continue
		}

		parts := []string{person.Name}
		if person.Organization != nil {
			parts = append(parts, "("+*person.Organization+")")
		}
		if person.Relationship != nil {
			parts = append(parts, "["+*person.Relationship+"]")
		}

		blocks = append(blocks, newBlock("person", person.ID.String(), person.Name, strings.Join(parts, " "), 0.5, nil))
	}
	return blocks
}

func (r *Retriever) turnsByFile(ctx context.Context, paths []string) []ContextBlock {
	if len(paths) > 5 {
		paths = paths[:5]
	}

	var blocks []ContextBlock
	for _, path := range paths {
		turns, err := r.src.TurnsByFile(ctx, path, 3)
		if err != nil {
			logging.Warn(ctx, "failed to query turns by file", "path", path, "error", err)
			continue
		}

		for _, turn := range turns {
			summary := deref(turn.AssistantSummary)
			if summary == "" {
				summary = deref(turn.UserMessage)
			}
			content := clip(strings.TrimSpace(fmt.Sprintf("Previously touched %s: %s", path, summary)), 200)

			blocks = append(blocks, newBlock(
				"file_context",
				fmt.Sprintf("file:%s:%s", turn.ID, path),
				"File: "+filepath.Base(path),
				content,
				0.65,
				turn.StartedAt,
			))
		}
	}
	return blocks
}

func (r *Retriever) recentErrors(ctx context.Context, projectID *uuid.UUID) []ContextBlock {
	turns, err := r.src.TurnsWithErrors(ctx, projectID, 3)
	if err != nil {
		logging.Warn(ctx, "failed to query turns with errors", "error", err)
		return nil
	}

	var blocks []ContextBlock
	for _, turn := range turns {
		title := deref(turn.TurnTitle)
		if title == "" {
			title = "Error encountered"
		}
		content := clip(strings.TrimSpace("Errors in previous session: "+deref(turn.UserMessage)), 200)

		blocks = append(blocks, newBlock(
			"error",
			fmt.Sprintf("error:%s", turn.ID),
			fmt.Sprintf("%s (%s)", title, relativeTime(turn.StartedAt)),
			content,
			0.55,
			turn.StartedAt,
		))
	}
	return blocks
}

func (r *Retriever) activeSprints(ctx context.Context) []ContextBlock {
	sprints, err := r.src.ActiveSprints(ctx, 3)
	if err != nil {
		logging.Warn(ctx, "failed to query active sprints", "error", err)
		return nil
	}

	var blocks []ContextBlock
	for _, sprint := range sprints {
		projectName := "no project"
		if sprint.ProjectName != nil {
			projectName = *sprint.ProjectName
		}
		daysLeft := int(time.Until(sprint.EndsAt).Hours() / 24)
		content := fmt.Sprintf("Sprint: %s (%s, %dd left)", sprint.Name, projectName, daysLeft)

		blocks = append(blocks, newBlock("sprint", sprint.ID.String(), sprint.Name, content, 0.3, nil))
	}
	return blocks
}

func relativeTime(t *time.Time) string {
	if t == nil {
		return "unknown time"
	}

	seconds := int(time.Since(*t).Seconds())
	switch {
	case seconds < 60:
		return "just now"
	case seconds < 3600:
		return fmt.Sprintf("%dm ago", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%dh ago", seconds/3600)
	case seconds < 604800:
		return fmt.Sprintf("%dd ago", seconds/86400)
	default:
		return fmt.Sprintf("%dw ago", seconds/604800)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
