package skills

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/simonhq/focus/cmd/focus/cli/logging"
	"github.com/simonhq/focus/cmd/focus/cli/summarize"
	"github.com/simonhq/focus/redact"
)

// Skill sources.
const (
	SourceAuto     = "auto"
	SourceManual   = "manual"
	SourceRegistry = "registry"
)

const generationSystem = `You generate Claude Code skills (SKILL.md files) following the Agent Skills standard.

Given a description of what the skill should do and context about the project/task,
generate a skill with:

1. A short name (lowercase-with-hyphens, max 64 chars)
2. A description (1-2 sentences explaining what it does and when to use it)
3. Step-by-step markdown instructions for Claude to follow

Your output MUST be valid JSON with these fields:
- name: string (lowercase, hyphens only, max 64 chars)
- description: string (1-2 sentences, max 200 chars)
- body: string (markdown instructions, specific and actionable)
- allowed_tools: list of strings (Claude Code tools this skill needs, e.g. ["Read", "Write", "Bash", "Grep", "Glob"])

Keep instructions concise and specific. Reference file paths, commands, and patterns
from the context when available. Focus on the repeatable workflow, not one-time setup.`

// SkillContext carries project-specific context into skill generation.
type SkillContext struct {
	WorkspacePath  string
	ProjectSlug    string
	FilesTouched   []string
	CommandsRun    []string
	ToolsUsed      []string
	Conventions    string
	SessionSummary string
}

// Generated is a generated skill ready for installation.
type Generated struct {
	Name            string
	Description     string
	Body            string
	FullContent     string
	Source          string
	SupportingFiles map[string]string
}

var (
	invalidNameChars = regexp.MustCompile(`[^a-z0-9\-]`)
	repeatedHyphens  = regexp.MustCompile(`-{2,}`)
)

// ValidateSkillName normalizes a proposed skill name to the Agent Skills
// format: lowercase alphanumeric plus hyphens, at most 64 chars.
func ValidateSkillName(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = invalidNameChars.ReplaceAllString(normalized, "-")
	normalized = repeatedHyphens.ReplaceAllString(normalized, "-")
	normalized = strings.Trim(normalized, "-")

	if normalized == "" {
		return "", fmt.Errorf("cannot normalize skill name %q", name)
	}
	if len(normalized) > 64 {
		normalized = strings.TrimRight(normalized[:64], "-")
	}
	return normalized, nil
}

// RenderSkillMD renders a complete SKILL.md with YAML frontmatter.
func RenderSkillMD(name, description, body string, allowedTools []string) string {
	lines := []string{"---"}
	lines = append(lines, "name: "+name)
	lines = append(lines, "description: "+description)
	if len(allowedTools) > 0 {
		lines = append(lines, "allowed-tools: "+strings.Join(allowedTools, ", "))
	}
	lines = append(lines, "---", "", strings.TrimSpace(body), "")
	return strings.Join(lines, "\n")
}

// buildGenerationPrompt assembles the user prompt from the description
// and whatever context is available.
func buildGenerationPrompt(description string, sc SkillContext) string {
	parts := []string{"Generate a Claude Code skill for:\n" + description}

	if sc.WorkspacePath != "" {
		parts = append(parts, "\nWorkspace: "+sc.WorkspacePath)
	}
	if sc.SessionSummary != "" {
		parts = append(parts, "\nSession summary:\n"+summarize.Truncate(sc.SessionSummary, 2000))
	}
	if len(sc.FilesTouched) > 0 {
		parts = append(parts, "\nFiles involved: "+strings.Join(capList(sc.FilesTouched, 20), ", "))
	}
	if len(sc.CommandsRun) > 0 {
		// Shell commands can embed tokens and keys; scrub before they
		// leave the machine
		commands := redact.Strings(capList(sc.CommandsRun, 10))
		parts = append(parts, "\nCommands used: "+strings.Join(commands, ", "))
	}
	if len(sc.ToolsUsed) > 0 {
		parts = append(parts, "\nTools used: "+strings.Join(capList(sc.ToolsUsed, 10), ", "))
	}
	if sc.Conventions != "" {
		parts = append(parts, "\nProject conventions:\n"+summarize.Truncate(sc.Conventions, 1000))
	}

	parts = append(parts, "\nReturn JSON with: name, description, body, allowed_tools")
	return strings.Join(parts, "\n")
}

func capList(list []string, max int) []string {
	if len(list) > max {
		return list[:max]
	}
	return list
}

// generationResponse is the JSON contract the model returns.
type generationResponse struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Body         string   `json:"body"`
	AllowedTools []string `json:"allowed_tools"`
}

// parseGenerationResponse parses the model output, tolerating markdown
// code fences around the JSON.
func parseGenerationResponse(raw string) (*generationResponse, error) {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		lines = lines[1:]
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
			lines = lines[:len(lines)-1]
		}
		text = strings.Join(lines, "\n")
	}

	var resp generationResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("parse skill generation response: %w", err)
	}
	return &resp, nil
}

// Generate creates a SKILL.md from a description and context using the
// configured model. Returns an error when no API key is configured or the
// model response is unusable.
func Generate(ctx context.Context, client *summarize.Client, model, description string, sc SkillContext, source string) (*Generated, error) {
	raw, err := client.Complete(ctx, model, generationSystem, buildGenerationPrompt(description, sc), 2000)
	if err != nil {
		return nil, err
	}

	parsed, err := parseGenerationResponse(raw)
	if err != nil {
		return nil, err
	}

	name, err := ValidateSkillName(parsed.Name)
	if err != nil {
		return nil, err
	}
	if parsed.Body == "" {
		return nil, errors.New("model returned empty skill body")
	}

	desc := parsed.Description
	if desc == "" {
		desc = description
	}
	desc = summarize.Truncate(desc, 200)

	generated := &Generated{
		Name:        name,
		Description: desc,
		Body:        parsed.Body,
		FullContent: RenderSkillMD(name, desc, parsed.Body, parsed.AllowedTools),
		Source:      source,
	}

	logging.Info(ctx, "generated skill", "name", name, "source", source)
	return generated, nil
}
