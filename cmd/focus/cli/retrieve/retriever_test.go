package retrieve

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhq/focus/cmd/focus/cli/classify"
	"github.com/simonhq/focus/cmd/focus/cli/paths"
	"github.com/simonhq/focus/cmd/focus/cli/store"
)

type fakeSource struct {
	projectIDs  []uuid.UUID
	project     *store.Project
	turns       []store.Turn
	tasks       []store.Task
	commitments []store.Commitment
	person      *store.Person
	fileTurns   []store.Turn
	errorTurns  []store.Turn
	sprints     []store.Sprint

	recentTurnCalls []store.RecentTurnFilter
}

func (f *fakeSource) ProjectIDsBySlugs(_ context.Context, _ []string) ([]uuid.UUID, error) {
	return f.projectIDs, nil
}

func (f *fakeSource) ActiveProjectBySlug(_ context.Context, _ string) (*store.Project, error) {
	if f.project == nil {
		return nil, store.ErrNotFound
	}
	return f.project, nil
}

func (f *fakeSource) RecentTurns(_ context.Context, filter store.RecentTurnFilter) ([]store.Turn, error) {
	f.recentTurnCalls = append(f.recentTurnCalls, filter)
	return f.turns, nil
}

func (f *fakeSource) ActiveTasks(_ context.Context, _ uuid.UUID, _ int) ([]store.Task, error) {
	return f.tasks, nil
}

func (f *fakeSource) OpenCommitments(_ context.Context, _ *uuid.UUID, _ int) ([]store.Commitment, error) {
	return f.commitments, nil
}

func (f *fakeSource) PersonByNameLike(_ context.Context, _ string) (*store.Person, error) {
	if f.person == nil {
		return nil, store.ErrNotFound
	}
	return f.person, nil
}

func (f *fakeSource) TurnsByFile(_ context.Context, _ string, _ int) ([]store.Turn, error) {
	return f.fileTurns, nil
}

func (f *fakeSource) TurnsWithErrors(_ context.Context, _ *uuid.UUID, _ int) ([]store.Turn, error) {
	return f.errorTurns, nil
}

func (f *fakeSource) ActiveSprints(_ context.Context, _ int) ([]store.Sprint, error) {
	return f.sprints, nil
}

func strptr(s string) *string { return &s }

func TestRetrieveLowConfidenceReturnsNothing(t *testing.T) {
	r := NewRetriever(&fakeSource{})
	blocks := r.Retrieve(context.Background(), classify.Classification{Confidence: 0.05})
	assert.Empty(t, blocks)
}

func TestRetrieveProjectContext(t *testing.T) {
	t.Setenv(paths.EnvClaudeDir, t.TempDir())
	pid := uuid.New()
	started := time.Now().Add(-2 * time.Hour)
	due := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	src := &fakeSource{
		projectIDs: []uuid.UUID{pid},
		turns: []store.Turn{{
			ID:               uuid.New(),
			TurnTitle:        strptr("Fix login redirect"),
			AssistantSummary: strptr("Patched the OAuth callback handler"),
			StartedAt:        &started,
		}},
		tasks: []store.Task{
			{ID: uuid.New(), Title: "Ship auth fix", Status: "in_progress", Priority: "high", DueDate: &due},
			{ID: uuid.New(), Title: "Write docs", Status: "backlog", Priority: "low"},
		},
		commitments: []store.Commitment{{
			ID:          uuid.New(),
			Direction:   "from_me",
			Description: "Send the release summary",
			PersonName:  strptr("Maria"),
		}},
	}

	r := NewRetriever(src)
	blocks := r.Retrieve(context.Background(), classify.Classification{
		ProjectSlugs: []string{"focus-app"},
		Confidence:   0.8,
	})

	byType := map[string][]ContextBlock{}
	for _, b := range blocks {
		byType[b.SourceType] = append(byType[b.SourceType], b)
	}

	require.Len(t, byType["conversation"], 1)
	conv := byType["conversation"][0]
	assert.Equal(t, "Patched the OAuth callback handler", conv.Content)
	assert.Contains(t, conv.Title, "Fix login redirect")
	assert.Contains(t, conv.Title, "2h ago")
	assert.InDelta(t, 0.7, conv.RelevanceScore, 0.001)

	require.Len(t, byType["task"], 2)
	assert.Equal(t, "[in_progress] Ship auth fix (due 2026-09-01) | high", byType["task"][0].Content)
	assert.InDelta(t, 0.6, byType["task"][0].RelevanceScore, 0.001)
	assert.InDelta(t, 0.4, byType["task"][1].RelevanceScore, 0.001)

	require.Len(t, byType["commitment"], 1)
	assert.Equal(t, "Commitment from me to Maria: Send the release summary", byType["commitment"][0].Content)

	// Sorted by relevance descending
	for i := 1; i < len(blocks); i++ {
		assert.GreaterOrEqual(t, blocks[i-1].RelevanceScore, blocks[i].RelevanceScore)
	}
}

func TestRetrieveGlobalFallback(t *testing.T) {
	t.Setenv(paths.EnvClaudeDir, t.TempDir())
	src := &fakeSource{
		turns: []store.Turn{{ID: uuid.New(), UserMessage: strptr("hello there, what did we do yesterday?")}},
	}

	r := NewRetriever(src)
	blocks := r.Retrieve(context.Background(), classify.Classification{Confidence: 0.1})

	require.Len(t, src.recentTurnCalls, 1)
	assert.Equal(t, 3, src.recentTurnCalls[0].Limit)
	assert.Nil(t, src.recentTurnCalls[0].ProjectID)

	var conv []ContextBlock
	for _, b := range blocks {
		if b.SourceType == "conversation" {
			conv = append(conv, b)
		}
	}
	require.Len(t, conv, 1)
	// No title or summary: falls back to the user message
	assert.Contains(t, conv[0].Content, "hello there")
	assert.Contains(t, conv[0].Title, "unknown time")
}

func TestRetrieveWorkspaceSupplementsProject(t *testing.T) {
	t.Setenv(paths.EnvClaudeDir, t.TempDir())
	pid := uuid.New()
	src := &fakeSource{projectIDs: []uuid.UUID{pid}}

	r := NewRetriever(src)
	r.Retrieve(context.Background(), classify.Classification{
		ProjectSlugs:     []string{"focus-app"},
		WorkspaceProject: "focus-app",
		Confidence:       0.8,
	})

	require.Len(t, src.recentTurnCalls, 2)
	assert.NotNil(t, src.recentTurnCalls[0].ProjectID)
	assert.Equal(t, "focus-app", src.recentTurnCalls[1].WorkspaceLike)
}

func TestRetrievePersonContext(t *testing.T) {
	t.Setenv(paths.EnvClaudeDir, t.TempDir())
	org := "Acme"
	rel := "colleague"
	src := &fakeSource{
		person: &store.Person{ID: uuid.New(), Name: "Maria Santos", Organization: &org, Relationship: &rel},
	}

	r := NewRetriever(src)
	blocks := r.Retrieve(context.Background(), classify.Classification{
		PersonNames: []string{"Maria"},
		Confidence:  0.7,
	})

	var person *ContextBlock
	for i := range blocks {
		if blocks[i].SourceType == "person" {
			person = &blocks[i]
		}
	}
	require.NotNil(t, person)
	assert.Equal(t, "Maria Santos (Acme) [colleague]", person.Content)
	assert.InDelta(t, 0.5, person.RelevanceScore, 0.001)
}

func TestRetrieveFileContext(t *testing.T) {
	t.Setenv(paths.EnvClaudeDir, t.TempDir())
	turnID := uuid.New()
	src := &fakeSource{
		fileTurns: []store.Turn{{
			ID:               turnID,
			AssistantSummary: strptr("Refactored the session handler"),
		}},
	}

	r := NewRetriever(src)
	blocks := r.Retrieve(context.Background(), classify.Classification{
		FilePaths:  []string{"src/auth/session.go"},
		Confidence: 0.5,
	})

	var file *ContextBlock
	for i := range blocks {
		if blocks[i].SourceType == "file_context" {
			file = &blocks[i]
		}
	}
	require.NotNil(t, file)
	assert.Equal(t, "file:"+turnID.String()+":src/auth/session.go", file.SourceID)
	assert.Equal(t, "File: session.go", file.Title)
	assert.Equal(t, "Previously touched src/auth/session.go: Refactored the session handler", file.Content)
	assert.InDelta(t, 0.65, file.RelevanceScore, 0.001)
}

func TestRetrieveErrorsForCodeQueries(t *testing.T) {
	t.Setenv(paths.EnvClaudeDir, t.TempDir())
	pid := uuid.New()
	src := &fakeSource{
		projectIDs: []uuid.UUID{pid},
		errorTurns: []store.Turn{{
			ID:          uuid.New(),
			UserMessage: strptr("tests are failing with a nil pointer"),
		}},
	}

	r := NewRetriever(src)

	blocks := r.Retrieve(context.Background(), classify.Classification{
		ProjectSlugs: []string{"focus-app"},
		QueryType:    classify.QueryCode,
		Confidence:   0.8,
	})
	found := false
	for _, b := range blocks {
		if b.SourceType == "error" {
			found = true
			assert.True(t, strings.HasPrefix(b.SourceID, "error:"))
			assert.Contains(t, b.Content, "Errors in previous session: tests are failing")
			assert.Contains(t, b.Title, "Error encountered")
		}
	}
	assert.True(t, found)

	// Non-code queries skip the error lookup
	blocks = r.Retrieve(context.Background(), classify.Classification{
		ProjectSlugs: []string{"focus-app"},
		QueryType:    classify.QueryTask,
		Confidence:   0.8,
	})
	for _, b := range blocks {
		assert.NotEqual(t, "error", b.SourceType)
	}
}

func TestRetrieveSprints(t *testing.T) {
	t.Setenv(paths.EnvClaudeDir, t.TempDir())
	name := "Focus"
	src := &fakeSource{
		sprints: []store.Sprint{{
			ID:          uuid.New(),
			Name:        "Sprint 12",
			EndsAt:      time.Now().Add(72 * time.Hour),
			ProjectName: &name,
		}},
	}

	r := NewRetriever(src)
	blocks := r.Retrieve(context.Background(), classify.Classification{Confidence: 0.3})

	var sprint *ContextBlock
	for i := range blocks {
		if blocks[i].SourceType == "sprint" {
			sprint = &blocks[i]
		}
	}
	require.NotNil(t, sprint)
	assert.Equal(t, "Sprint: Sprint 12 (Focus, 2d left)", sprint.Content)
	assert.InDelta(t, 0.3, sprint.RelevanceScore, 0.001)
}

func TestRetrieveDeduplicatesBySourceID(t *testing.T) {
	t.Setenv(paths.EnvClaudeDir, t.TempDir())
	turn := store.Turn{ID: uuid.New(), UserMessage: strptr("same turn twice")}
	src := &fakeSource{
		projectIDs: []uuid.UUID{uuid.New()},
		turns:      []store.Turn{turn},
	}

	r := NewRetriever(src)
	// Project turns and workspace turns return the same row
	blocks := r.Retrieve(context.Background(), classify.Classification{
		ProjectSlugs:     []string{"focus-app"},
		WorkspaceProject: "focus-app",
		Confidence:       0.8,
	})

	count := 0
	for _, b := range blocks {
		if b.SourceID == turn.ID.String() {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRelativeTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{2 * 24 * time.Hour, "2d ago"},
		{3 * 7 * 24 * time.Hour, "3w ago"},
	}
	for _, tt := range tests {
		ts := now.Add(-tt.ago)
		assert.Equal(t, tt.want, relativeTime(&ts))
	}
	assert.Equal(t, "unknown time", relativeTime(nil))
}

func TestTokenEstimateSetOnBlocks(t *testing.T) {
	b := newBlock("task", "id", "t", strings.Repeat("x", 40), 0.5, nil)
	assert.Equal(t, 10, b.TokenEstimate)

	b = newBlock("task", "id", "t", "", 0.5, nil)
	assert.Equal(t, 1, b.TokenEstimate)
}
