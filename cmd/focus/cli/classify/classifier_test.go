package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhq/focus/cmd/focus/cli/paths"
	"github.com/simonhq/focus/cmd/focus/cli/projectstate"
	"github.com/simonhq/focus/cmd/focus/cli/store"
)

type fakeEntitySource struct {
	projects []store.Project
	people   []store.Person
}

func (f *fakeEntitySource) ActiveProjects(context.Context) ([]store.Project, error) {
	return f.projects, nil
}

func (f *fakeEntitySource) People(context.Context) ([]store.Person, error) {
	return f.people, nil
}

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	t.Setenv(paths.EnvConfigDir, t.TempDir())

	src := &fakeEntitySource{
		projects: []store.Project{
			{Slug: "focus-app", Name: "Focus App"},
			{Slug: "vault", Name: "Vault Sync"},
		},
		people: []store.Person{
			{Name: "Maria"},
			{Name: "Jo"}, // too short to match
		},
	}
	c, err := NewClassifier(context.Background(), src)
	require.NoError(t, err)
	return c
}

func TestClassifyProjectBySlug(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("what is left on focus-app this week", "")
	assert.Equal(t, []string{"focus-app"}, result.ProjectSlugs)
	assert.Equal(t, 0.8, result.Confidence)
}

func TestClassifyProjectByName(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("status of the Focus App milestone", "")
	assert.Contains(t, result.ProjectSlugs, "focus-app")
}

func TestClassifyPersonMatching(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("did Maria review the proposal", "")
	assert.Equal(t, []string{"Maria"}, result.PersonNames)
	assert.Equal(t, 0.7, result.Confidence)

	// Names shorter than three characters never match
	result = c.Classify("tell Jo about it", "")
	assert.Empty(t, result.PersonNames)
}

func TestClassifyNoSubstringFalsePositives(t *testing.T) {
	c := newTestClassifier(t)

	// "vault" must not match inside "vaulted"
	result := c.Classify("the ceiling is vaulted here", "")
	assert.Empty(t, result.ProjectSlugs)
}

func TestClassifyQueryTypes(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		prompt string
		want   string
	}{
		{"fix the bug in parsing", QueryCode},
		{"draft a reply to the inbox thread", QueryEmail},
		{"what is the sprint backlog", QueryTask},
		{"check the daemon config", QueryMeta},
		{"what should I cook tonight", QueryGeneral},
	}
	for _, tt := range tests {
		result := c.Classify(tt.prompt, "")
		assert.Equal(t, tt.want, result.QueryType, "prompt: %s", tt.prompt)
	}
}

func TestClassifyWorkspaceProject(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("what should I do next", "/home/user/Focus-App")
	assert.Equal(t, "focus-app", result.WorkspaceProject)
	assert.Equal(t, 0.5, result.Confidence)
}

func TestClassifyExplicitProjectWins(t *testing.T) {
	c := newTestClassifier(t)
	require.NoError(t, projectstate.SetActiveProject("vault", ""))

	result := c.Classify("anything at all really", "")
	assert.Equal(t, "vault", result.ExplicitProject)
	assert.Contains(t, result.ProjectSlugs, "vault")
	assert.Equal(t, 0.9, result.Confidence)
}

func TestClassifyShortPrompt(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("ok", "/home/user/focus-app")
	assert.Empty(t, result.ProjectSlugs)
	assert.Empty(t, result.WorkspaceProject)
	assert.Equal(t, QueryGeneral, result.QueryType)
	assert.Zero(t, result.Confidence)
}

func TestClassifyFilePaths(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("why does src/auth/login.py fail", "")
	assert.Equal(t, []string{"src/auth/login.py"}, result.FilePaths)
}

func TestClassifyGeneralFallbackConfidence(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("tell me something interesting", "")
	assert.Equal(t, 0.1, result.Confidence)
}

func TestWordMatch(t *testing.T) {
	assert.True(t, WordMatch("focus", "the focus app"))
	assert.False(t, WordMatch("focus", "refocused now"))
	assert.True(t, WordMatch("focus-app", "ship focus-app today"))
	assert.False(t, WordMatch("", "anything"))
	// Pattern ending in non-word char skips the trailing boundary
	assert.True(t, WordMatch("c++", "rewrite it in c++ please"))
}
