package retrieve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/simonhq/focus/cmd/focus/cli/classify"
	"github.com/simonhq/focus/cmd/focus/cli/logging"
	"github.com/simonhq/focus/cmd/focus/cli/skills"
)

const maxMatchedSkills = 3

var (
	skillNameSplit = regexp.MustCompile(`[_\-\s]+`)
	skillDescSplit = regexp.MustCompile(`[\s,.\-_]+`)
	skillBodySplit = regexp.MustCompile(`[\s,.\-_:;()]+`)
	fileStemSplit  = regexp.MustCompile(`[_\-.]+`)
)

// relevantSkills matches installed skills against the prompt
// classification. Pure disk reads and keyword overlap, no LLM or DB.
func relevantSkills(ctx context.Context, cls classify.Classification, maxSkills int) []ContextBlock {
	installed, err := skills.ListInstalled(skills.ScopeAll, cls.WorkspaceProject)
	if err != nil {
		logging.Warn(ctx, "failed to list installed skills", "error", err)
		return nil
	}
	if len(installed) == 0 {
		return nil
	}

	promptWords := promptKeywords(cls)
	if len(promptWords) == 0 {
		return nil
	}

	type scoredSkill struct {
		score float64
		skill skills.InstalledSkill
		body  string
	}
	var scored []scoredSkill
	for _, skill := range installed {
		score, body := scoreSkillRelevance(skill, promptWords)
		if score > 0 {
			scored = append(scored, scoredSkill{score, skill, body})
		}
	}

	// Stable selection sort keeps the listing order for ties
	for i := 0; i < len(scored); i++ {
		best := i
		for j := i + 1; j < len(scored); j++ {
			if scored[j].score > scored[best].score {
				best = j
			}
		}
		scored[i], scored[best] = scored[best], scored[i]
	}
	if len(scored) > maxSkills {
		scored = scored[:maxSkills]
	}

	var blocks []ContextBlock
	for _, s := range scored {
		blocks = append(blocks, newBlock(
			"skill",
			"skill:"+s.skill.Name,
			"Skill: "+s.skill.Name,
			formatSkillContent(s.skill, s.body),
			minFloat(0.85, 0.5+s.score*0.35),
			nil,
		))
	}
	return blocks
}

// promptKeywords builds the keyword set the skill matcher compares
// against: project slug parts, person names, the workspace name, the
// query type, and file name stems. Words shorter than three characters
// are dropped.
func promptKeywords(cls classify.Classification) map[string]struct{} {
	words := make(map[string]struct{})
	add := func(parts []string) {
		for _, w := range parts {
			if len(w) > 2 {
				words[w] = struct{}{}
			}
		}
	}

	for _, slug := range cls.ProjectSlugs {
		add(strings.Split(strings.ToLower(slug), "-"))
	}
	for _, name := range cls.PersonNames {
		add(strings.Fields(strings.ToLower(name)))
	}
	if cls.WorkspaceProject != "" {
		add(strings.Split(strings.ToLower(cls.WorkspaceProject), "-"))
	}
	if cls.QueryType != classify.QueryGeneral {
		add([]string{cls.QueryType})
	}
	for _, path := range cls.FilePaths {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		add(fileStemSplit.Split(strings.ToLower(stem), -1))
	}
	return words
}

// scoreSkillRelevance computes keyword overlap between the prompt and a
// skill's name, description, and the first 200 words of its body.
// Returns the score and the raw SKILL.md content.
func scoreSkillRelevance(skill skills.InstalledSkill, promptWords map[string]struct{}) (float64, string) {
	skillWords := make(map[string]struct{})
	add := func(parts []string) {
		for _, w := range parts {
			if len(w) > 2 {
				skillWords[w] = struct{}{}
			}
		}
	}

	add(skillNameSplit.Split(strings.ToLower(skill.Name), -1))
	if skill.Description != "" {
		add(skillDescSplit.Split(strings.ToLower(skill.Description), -1))
	}

	raw := ""
	if data, err := os.ReadFile(skill.Path); err == nil {
		raw = string(data)
	}
	if raw != "" {
		bodyWords := skillBodySplit.Split(strings.ToLower(skills.SkillBody(raw)), -1)
		if len(bodyWords) > 200 {
			bodyWords = bodyWords[:200]
		}
		add(bodyWords)
	}

	if len(skillWords) == 0 {
		return 0, raw
	}

	overlap := 0
	for w := range promptWords {
		if _, ok := skillWords[w]; ok {
			overlap++
		}
	}
	if overlap == 0 {
		return 0, raw
	}

	coverage := float64(overlap) / float64(len(promptWords))

	// Bonus when the skill name itself matches a prompt keyword
	nameBonus := 0.0
	for _, part := range skillNameSplit.Split(strings.ToLower(skill.Name), -1) {
		if _, ok := promptWords[part]; ok {
			nameBonus = 0.3
			break
		}
	}

	return minFloat(1.0, coverage+nameBonus), raw
}

// formatSkillContent renders a skill for context injection: description,
// a truncated body, and a pointer to the full instructions on disk.
func formatSkillContent(skill skills.InstalledSkill, raw string) string {
	var parts []string
	if skill.Description != "" {
		parts = append(parts, skill.Description)
	}

	if raw != "" {
		body := strings.TrimSpace(skills.SkillBody(raw))
		if len(body) > 300 {
			body = body[:297] + "..."
		}
		parts = append(parts, body)
	}

	parts = append(parts, fmt.Sprintf("(full instructions: %s)", skill.Path))
	return strings.Join(parts, " | ")
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
