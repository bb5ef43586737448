package summarize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	c, err := NewClient("sk-test")
	assert.NoError(t, err)
	assert.NotNil(t, c)
}

func TestParseTitleSummary(t *testing.T) {
	title, summary := ParseTitleSummary("TITLE: Fix login bug\nSUMMARY: User asked to fix the auth redirect loop.")
	assert.Equal(t, "Fix login bug", title)
	assert.Equal(t, "User asked to fix the auth redirect loop.", summary)
}

func TestParseTitleSummaryPartial(t *testing.T) {
	title, summary := ParseTitleSummary("TITLE: Only a title here")
	assert.Equal(t, "Only a title here", title)
	assert.Empty(t, summary)

	title, summary = ParseTitleSummary("some freeform response without markers")
	assert.Empty(t, title)
	assert.Empty(t, summary)
}

func TestParseTitleSummaryExtraLines(t *testing.T) {
	text := "Here you go:\nTITLE: Database migration\nSUMMARY: Discussed moving to versioned migrations.\nAnything else?"
	title, summary := ParseTitleSummary(text)
	assert.Equal(t, "Database migration", title)
	assert.Equal(t, "Discussed moving to versioned migrations.", summary)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "abcde", Truncate("abcdefgh", 5))
	assert.Equal(t, strings.Repeat("x", 80), Truncate(strings.Repeat("x", 200), 80))
}
