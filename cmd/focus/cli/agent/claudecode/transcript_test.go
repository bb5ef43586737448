package claudecode

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhq/focus/cmd/focus/cli/testutil"
)

func TestParseSessionIntoTurns(t *testing.T) {
	path := testutil.Transcript(t,
		`{"type":"user","timestamp":"2026-08-20T10:00:00Z","message":{"role":"user","content":"fix the login bug"}}`,
		`{"type":"assistant","timestamp":"2026-08-20T10:00:05Z","message":{"role":"assistant","model":"claude-sonnet-4-5","content":[{"type":"text","text":"Looking at it now."},{"type":"tool_use","name":"Read","input":{"file_path":"/app/auth.go"}}]}}`,
		`{"type":"assistant","timestamp":"2026-08-20T10:00:12Z","message":{"role":"assistant","model":"claude-sonnet-4-5","content":[{"type":"text","text":"Fixed."},{"type":"tool_use","name":"Edit","input":{"file_path":"/app/auth.go"}}]}}`,
		`{"type":"user","timestamp":"2026-08-20T10:01:00Z","message":{"role":"user","content":"now add a test"}}`,
		`{"type":"assistant","timestamp":"2026-08-20T10:01:10Z","message":{"role":"assistant","model":"claude-sonnet-4-5","content":[{"type":"text","text":"Done."}]}}`,
	)

	turns, err := ParseSessionIntoTurns(path)
	require.NoError(t, err)
	require.Len(t, turns, 2)

	first := turns[0]
	assert.Equal(t, 0, first.TurnNumber)
	assert.Equal(t, "fix the login bug", first.UserMessage)
	assert.Equal(t, "Looking at it now.\nFixed.", first.AssistantText)
	assert.Equal(t, []string{"Read", "Edit"}, first.ToolNames)
	assert.Equal(t, "claude-sonnet-4-5", first.ModelName)
	require.NotNil(t, first.StartedAt)
	require.NotNil(t, first.EndedAt)
	assert.True(t, first.EndedAt.After(*first.StartedAt))
	assert.Equal(t, ContentHash(first.RawJSONL), first.ContentHash)
	assert.Equal(t, 3, strings.Count(first.RawJSONL, "\n")+1)

	second := turns[1]
	assert.Equal(t, 1, second.TurnNumber)
	assert.Equal(t, "now add a test", second.UserMessage)
	assert.Equal(t, "Done.", second.AssistantText)
}

func TestParseSessionSkipsSidechainAndMeta(t *testing.T) {
	path := testutil.Transcript(t,
		`{"type":"user","isSidechain":true,"message":{"role":"user","content":"subagent prompt"}}`,
		`{"type":"user","isMeta":true,"message":{"role":"user","content":"meta"}}`,
		`{"type":"summary","message":{}}`,
		`{"type":"user","message":{"role":"user","content":"real prompt"}}`,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"ok"}]}}`,
	)

	turns, err := ParseSessionIntoTurns(path)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "real prompt", turns[0].UserMessage)
}

func TestParseSessionSkipsCommandMessages(t *testing.T) {
	path := testutil.Transcript(t,
		`{"type":"user","message":{"role":"user","content":"<command-name>/clear</command-name>"}}`,
		`{"type":"user","message":{"role":"user","content":"<local-command-stdout>output</local-command-stdout>"}}`,
		`{"type":"user","message":{"role":"user","content":"actual question"}}`,
	)

	turns, err := ParseSessionIntoTurns(path)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "actual question", turns[0].UserMessage)
}

func TestParseSessionSkipsMalformedLines(t *testing.T) {
	path := testutil.Transcript(t,
		`not json at all`,
		`{"type":"user","message":{"role":"user","content":"hello"}}`,
		`{"broken`,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"hi"}]}}`,
	)

	turns, err := ParseSessionIntoTurns(path)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "hello", turns[0].UserMessage)
	assert.Equal(t, "hi", turns[0].AssistantText)
}

func TestParseSessionMissingFile(t *testing.T) {
	turns, err := ParseSessionIntoTurns(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestParseSessionDropsAssistantBeforeFirstUser(t *testing.T) {
	path := testutil.Transcript(t,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"orphan"}]}}`,
		`{"type":"user","message":{"role":"user","content":"start here"}}`,
	)

	turns, err := ParseSessionIntoTurns(path)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "start here", turns[0].UserMessage)
	assert.Empty(t, turns[0].AssistantText)
}

func TestContentHashIsStable(t *testing.T) {
	assert.Equal(t, ContentHash("abc"), ContentHash("abc"))
	assert.NotEqual(t, ContentHash("abc"), ContentHash("abd"))
	assert.Len(t, ContentHash("abc"), 32)
}

func TestExtractTextContentBlocks(t *testing.T) {
	text := extractTextContent([]byte(`[{"type":"text","text":"a"},{"type":"tool_use","name":"Bash"},{"type":"text","text":"b"}]`))
	assert.Equal(t, "a\nb", text)

	assert.Equal(t, "plain", extractTextContent([]byte(`"plain"`)))
	assert.Empty(t, extractTextContent(nil))
	assert.Empty(t, extractTextContent([]byte(`{"unexpected":"shape"}`)))
}
