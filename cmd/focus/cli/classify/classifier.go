// Package classify provides fast keyword/regex prompt classification for
// context retrieval. No LLM calls; classification must stay well inside
// the PreSubmit hook's time budget.
package classify

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/simonhq/focus/cmd/focus/cli/agent/claudecode"
	"github.com/simonhq/focus/cmd/focus/cli/logging"
	"github.com/simonhq/focus/cmd/focus/cli/projectstate"
	"github.com/simonhq/focus/cmd/focus/cli/store"
)

// Query types detected from prompt text.
const (
	QueryCode    = "code"
	QueryEmail   = "email"
	QueryTask    = "task"
	QueryMeta    = "meta"
	QueryGeneral = "general"
)

var (
	codePatterns  = regexp.MustCompile(`(?i)\b(bug|fix|error|refactor|test|function|class|module|import|file|code|implement|build|compile|lint|deploy)\b`)
	emailPatterns = regexp.MustCompile(`(?i)\b(email|reply|send|draft|inbox|gmail|message|forward)\b`)
	taskPatterns  = regexp.MustCompile(`(?i)\b(task|todo|priority|deadline|sprint|kanban|backlog|assign|commit|milestone)\b`)
	metaPatterns  = regexp.MustCompile(`(?i)\b(focus|vault|sync|config|setup|hook|daemon|worker)\b`)
)

// Classification is the result of classifying a user prompt.
type Classification struct {
	ProjectSlugs     []string
	PersonNames      []string
	QueryType        string
	WorkspaceProject string
	ExplicitProject  string
	FilePaths        []string
	Confidence       float64
}

// EntitySource provides the known entities the classifier matches against.
type EntitySource interface {
	ActiveProjects(ctx context.Context) ([]store.Project, error)
	People(ctx context.Context) ([]store.Person, error)
}

// Classifier matches prompts against known projects and people loaded
// from the database once at construction time.
type Classifier struct {
	projects []store.Project
	people   []store.Person
}

// NewClassifier loads known entities from the database. Should complete
// in well under 100ms for typical dataset sizes.
func NewClassifier(ctx context.Context, src EntitySource) (*Classifier, error) {
	projects, err := src.ActiveProjects(ctx)
	if err != nil {
		return nil, err
	}
	people, err := src.People(ctx)
	if err != nil {
		return nil, err
	}

	logging.Debug(ctx, "classifier loaded entities",
		"projects", len(projects),
		"people", len(people),
	)
	return &Classifier{projects: projects, people: people}, nil
}

// Classify classifies a prompt using keyword matching. Pure regex and
// string ops; completes in milliseconds.
func (c *Classifier) Classify(prompt, cwd string) Classification {
	result := Classification{QueryType: QueryGeneral}

	if len(strings.TrimSpace(prompt)) < 3 {
		return result
	}

	promptLower := strings.ToLower(prompt)

	// Explicit selection from project state wins
	if explicit := projectstate.ActiveProject(cwd); explicit != "" {
		result.ExplicitProject = explicit
		result.ProjectSlugs = appendUnique(result.ProjectSlugs, explicit)
	}

	// Workspace directory name, whether or not it matches a known project
	if cwd != "" {
		result.WorkspaceProject = strings.ToLower(filepath.Base(cwd))
	}

	for _, p := range c.projects {
		if WordMatch(p.Slug, promptLower) || (p.Name != "" && WordMatch(strings.ToLower(p.Name), promptLower)) {
			result.ProjectSlugs = appendUnique(result.ProjectSlugs, p.Slug)
		}
	}

	for _, person := range c.people {
		if len(person.Name) > 2 && WordMatch(strings.ToLower(person.Name), promptLower) {
			result.PersonNames = appendUnique(result.PersonNames, person.Name)
		}
	}

	result.QueryType = detectQueryType(prompt)
	result.FilePaths = claudecode.ExtractFilePathsFromText(prompt)
	result.Confidence = computeConfidence(result)

	return result
}

// WordMatch reports whether pattern appears in text at word boundaries.
// Boundaries apply only where the pattern starts/ends with alphanumeric
// characters; on regex failure it falls back to substring search.
func WordMatch(pattern, text string) bool {
	if pattern == "" {
		return false
	}

	escaped := regexp.QuoteMeta(pattern)
	runes := []rune(pattern)
	prefix, suffix := "", ""
	if isAlnum(runes[0]) {
		prefix = `\b`
	}
	if isAlnum(runes[len(runes)-1]) {
		suffix = `\b`
	}

	re, err := regexp.Compile(prefix + escaped + suffix)
	if err != nil {
		return strings.Contains(text, pattern)
	}
	return re.MatchString(text)
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func detectQueryType(prompt string) string {
	switch {
	case codePatterns.MatchString(prompt):
		return QueryCode
	case emailPatterns.MatchString(prompt):
		return QueryEmail
	case taskPatterns.MatchString(prompt):
		return QueryTask
	case metaPatterns.MatchString(prompt):
		return QueryMeta
	default:
		return QueryGeneral
	}
}

// computeConfidence scores the classification from what was matched.
// Explicit selection beats entity mentions beats workspace hints.
func computeConfidence(c Classification) float64 {
	score := 0.0

	if c.ExplicitProject != "" {
		score = 0.9
	}
	if len(c.ProjectSlugs) > 0 && score < 0.8 {
		score = 0.8
	}
	if len(c.PersonNames) > 0 && score < 0.7 {
		score = 0.7
	}
	if c.WorkspaceProject != "" && score < 0.5 {
		score = 0.5
	}
	if c.QueryType != QueryGeneral && score < 0.3 {
		score = 0.3
	}
	if score == 0.0 {
		score = 0.1
	}
	return score
}

func appendUnique(list []string, s string) []string {
	for _, item := range list {
		if item == s {
			return list
		}
	}
	return append(list, s)
}
