// Package skills implements the Agent Skills lifecycle: generation from
// recorded sessions, installation to disk, and discovery from public
// registries. Installed skills are SKILL.md files under
// ~/.claude/skills/<name>/ or <project>/.claude/skills/<name>/.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"gopkg.in/yaml.v3"

	"github.com/simonhq/focus/cmd/focus/cli/logging"
	"github.com/simonhq/focus/cmd/focus/cli/paths"
)

// Skill scopes.
const (
	ScopePersonal = "personal"
	ScopeProject  = "project"
	ScopeAll      = "all"
)

// InstalledSkill is a skill found on disk.
type InstalledSkill struct {
	Name        string
	Description string
	// Path is the SKILL.md file path.
	Path   string
	Scope  string
	Source string
}

// FrontMatter is the YAML header of a SKILL.md file.
type FrontMatter struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Source       string `yaml:"source"`
	AllowedTools string `yaml:"allowed-tools"`
}

var skillNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]*[a-z0-9]$|^[a-z0-9]$`)

// ParseFrontMatter parses the YAML front-matter from SKILL.md content.
// Returns a zero FrontMatter when no front-matter is present.
func ParseFrontMatter(content string) FrontMatter {
	var fm FrontMatter
	header, _, ok := splitFrontMatter(content)
	if !ok {
		return fm
	}
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return FrontMatter{}
	}
	return fm
}

// SkillBody returns the markdown body after the front-matter block, or
// the whole content when no front-matter exists.
func SkillBody(content string) string {
	_, body, ok := splitFrontMatter(content)
	if !ok {
		return strings.TrimSpace(content)
	}
	return strings.TrimSpace(body)
}

// splitFrontMatter splits "---\nheader\n---\nbody" content.
func splitFrontMatter(content string) (header, body string, ok bool) {
	if !strings.HasPrefix(content, "---") {
		return "", "", false
	}
	rest := strings.TrimPrefix(content, "---")
	rest = strings.TrimPrefix(rest, "\n")
	idx := strings.Index(rest, "\n---")
	if idx == -1 {
		return "", "", false
	}
	header = rest[:idx]
	body = rest[idx+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")
	return header, body, true
}

// ValidateSkillContent validates SKILL.md content against the Agent
// Skills format. Returns a list of problems, empty when valid.
func ValidateSkillContent(content string) []string {
	var errs []string

	if strings.TrimSpace(content) == "" {
		return []string{"skill content is empty"}
	}
	if !strings.HasPrefix(content, "---") {
		return []string{"missing YAML frontmatter (must start with ---)"}
	}

	fm := ParseFrontMatter(content)

	if fm.Name != "" {
		if !skillNamePattern.MatchString(fm.Name) {
			errs = append(errs, fmt.Sprintf("invalid skill name %q: must be lowercase alphanumeric + hyphens", fm.Name))
		}
		if len(fm.Name) > 64 {
			errs = append(errs, fmt.Sprintf("skill name too long (%d > 64 chars)", len(fm.Name)))
		}
	}

	if fm.Description == "" {
		errs = append(errs, "missing or empty 'description' field in frontmatter")
	}

	if SkillBody(content) == "" || !strings.Contains(content[3:], "---") {
		errs = append(errs, "missing instruction body after frontmatter")
	}

	return errs
}

// skillsDir resolves the skills directory for a scope. For project scope
// an empty projectPath means the current directory.
func skillsDir(scope, projectPath string) (string, error) {
	if scope == ScopeProject {
		base := projectPath
		if base == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("resolve project dir: %w", err)
			}
			base = cwd
		}
		return paths.ProjectSkillsDir(base), nil
	}
	return paths.PersonalSkillsDir()
}

// InstallOptions configures Install.
type InstallOptions struct {
	Scope       string
	ProjectPath string
	// Force overwrites an existing skill with the same name.
	Force bool
	// SupportingFiles maps relative filenames to contents, written
	// alongside SKILL.md.
	SupportingFiles map[string]string
}

// ErrSkillExists indicates an install would overwrite an existing skill.
type ErrSkillExists struct {
	Name string
	Dir  string
}

func (e *ErrSkillExists) Error() string {
	return fmt.Sprintf("skill %q already exists at %s (use --force to overwrite)", e.Name, e.Dir)
}

// Install validates and writes a skill to disk. Returns the path to the
// installed SKILL.md.
func Install(name, content string, opts InstallOptions) (string, error) {
	if errs := ValidateSkillContent(content); len(errs) > 0 {
		return "", fmt.Errorf("invalid skill content: %s", strings.Join(errs, "; "))
	}
	if opts.Scope == "" {
		opts.Scope = ScopePersonal
	}

	dir, err := skillsDir(opts.Scope, opts.ProjectPath)
	if err != nil {
		return "", err
	}
	skillDir := filepath.Join(dir, name)
	skillPath := filepath.Join(skillDir, paths.SkillFileName)

	if _, err := os.Stat(skillDir); err == nil {
		if !opts.Force {
			return "", &ErrSkillExists{Name: name, Dir: skillDir}
		}
		logOverwriteDiff(skillPath, content)
	}

	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		return "", fmt.Errorf("create skill dir: %w", err)
	}
	if err := os.WriteFile(skillPath, []byte(content), 0o644); err != nil { //nolint:gosec // skill files are not sensitive
		return "", fmt.Errorf("write skill: %w", err)
	}

	for filename, fileContent := range opts.SupportingFiles {
		filePath := filepath.Join(skillDir, filename)
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return "", fmt.Errorf("create supporting dir: %w", err)
		}
		if err := os.WriteFile(filePath, []byte(fileContent), 0o644); err != nil { //nolint:gosec // skill files are not sensitive
			return "", fmt.Errorf("write supporting file %s: %w", filename, err)
		}
	}

	logging.Info(nil, "installed skill", "name", name, "path", skillPath)
	return skillPath, nil
}

// logOverwriteDiff logs how much an overwrite changes the existing skill.
func logOverwriteDiff(skillPath, newContent string) {
	old, err := os.ReadFile(skillPath) //nolint:gosec // path is under the skills dir
	if err != nil {
		return
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(old), newContent, false)

	var inserted, deleted int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			inserted += len(d.Text)
		case diffmatchpatch.DiffDelete:
			deleted += len(d.Text)
		}
	}
	logging.Info(nil, "overwriting skill",
		"path", skillPath,
		"chars_added", inserted,
		"chars_removed", deleted,
	)
}

// Uninstall removes an installed skill directory. Returns false when the
// skill was not found.
func Uninstall(name, scope, projectPath string) (bool, error) {
	if scope == "" {
		scope = ScopePersonal
	}
	dir, err := skillsDir(scope, projectPath)
	if err != nil {
		return false, err
	}
	skillDir := filepath.Join(dir, name)

	if _, err := os.Stat(skillDir); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.RemoveAll(skillDir); err != nil {
		return false, fmt.Errorf("remove skill: %w", err)
	}

	logging.Info(nil, "uninstalled skill", "name", name, "dir", skillDir)
	return true, nil
}

// ListInstalled lists skills on disk for a scope ("personal", "project",
// or "all"), sorted by directory name within each scope.
func ListInstalled(scope, projectPath string) ([]InstalledSkill, error) {
	if scope == "" {
		scope = ScopeAll
	}

	type scanTarget struct {
		scope string
		dir   string
	}
	var targets []scanTarget

	if scope == ScopePersonal || scope == ScopeAll {
		dir, err := paths.PersonalSkillsDir()
		if err != nil {
			return nil, err
		}
		targets = append(targets, scanTarget{ScopePersonal, dir})
	}
	if scope == ScopeProject || scope == ScopeAll {
		dir, err := skillsDir(ScopeProject, projectPath)
		if err != nil {
			return nil, err
		}
		targets = append(targets, scanTarget{ScopeProject, dir})
	}

	var skills []InstalledSkill
	for _, target := range targets {
		entries, err := os.ReadDir(target.dir)
		if err != nil {
			continue // missing dir means no skills of that scope
		}

		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			skillPath := filepath.Join(target.dir, entry.Name(), paths.SkillFileName)
			content, err := os.ReadFile(skillPath) //nolint:gosec // path is under the skills dir
			if err != nil {
				continue
			}

			fm := ParseFrontMatter(string(content))
			name := fm.Name
			if name == "" {
				name = entry.Name()
			}

			skills = append(skills, InstalledSkill{
				Name:        name,
				Description: fm.Description,
				Path:        skillPath,
				Scope:       target.scope,
				Source:      fm.Source,
			})
		}
	}

	return skills, nil
}
