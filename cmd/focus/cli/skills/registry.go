package skills

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/simonhq/focus/cmd/focus/cli/logging"
)

// Public skill registries searched by default.
var DefaultRegistries = []string{
	"anthropics/skills",
	"travisvn/awesome-claude-skills",
}

var githubAPIBase = "https://api.github.com"

var registryHTTPClient = &http.Client{Timeout: 15 * time.Second}

// RegistrySkill is a skill discovered in a public registry.
type RegistrySkill struct {
	Name            string
	Description     string
	SourceRepo      string
	SourcePath      string
	SourceURL       string
	SkillMDContent  string
	SupportingFiles map[string]string
}

// AwesomeListEntry is one linked skill from an awesome-list README.
type AwesomeListEntry struct {
	Name        string
	Description string
	URL         string
	Repo        string
}

// Registry searches GitHub-hosted skill collections.
type Registry struct {
	// Token authorizes GitHub API requests (optional, raises rate limits).
	Token  string
	client *http.Client
}

// NewRegistry builds a registry client with an optional GitHub token.
func NewRegistry(token string) *Registry {
	return &Registry{Token: token, client: registryHTTPClient}
}

func (r *Registry) getJSON(ctx context.Context, url string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if r.Token != "" {
		req.Header.Set("Authorization", "token "+r.Token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, json.Unmarshal(body, out)
}

func (r *Registry) getText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// contentItem is a GitHub contents API entry.
type contentItem struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	HTMLURL     string `json:"html_url"`
	DownloadURL string `json:"download_url"`
	Content     string `json:"content"`
}

// awesome-list lines look like "- [Name](url) - Description", sometimes
// with bold markers around the link.
var awesomeLinkPattern = regexp.MustCompile(`-\s+\*?\*?\[([^\]]+)\]\(([^)]+)\)\*?\*?\s*[-\x{2013}\x{2014}:]?\s*(.*)`)

var githubRepoPattern = regexp.MustCompile(`https?://github\.com/([^/]+/[^/]+)`)

// FetchAwesomeList parses an awesome-list repo's README for skill links.
func (r *Registry) FetchAwesomeList(ctx context.Context, repo string) ([]AwesomeListEntry, error) {
	var readme struct {
		Content string `json:"content"`
	}
	status, err := r.getJSON(ctx, fmt.Sprintf("%s/repos/%s/readme", githubAPIBase, repo), &readme)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		logging.Warn(ctx, "failed to fetch registry readme", "repo", repo, "status", status)
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(readme.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("decode readme content: %w", err)
	}

	return ParseAwesomeList(string(decoded)), nil
}

// ParseAwesomeList extracts markdown link entries from README content.
func ParseAwesomeList(content string) []AwesomeListEntry {
	var entries []AwesomeListEntry
	for _, line := range strings.Split(content, "\n") {
		match := awesomeLinkPattern.FindStringSubmatch(strings.TrimSpace(line))
		if match == nil {
			continue
		}

		url := strings.TrimSpace(match[2])
		repo := ""
		if gh := githubRepoPattern.FindStringSubmatch(url); gh != nil {
			repo = gh[1]
		}

		entries = append(entries, AwesomeListEntry{
			Name:        strings.TrimSpace(match[1]),
			Description: strings.TrimSpace(match[3]),
			URL:         url,
			Repo:        repo,
		})
	}
	return entries
}

// searchRepoSkills lists skill directories in a repo, trying the skills/
// subdirectory first and then the repo root.
func (r *Registry) searchRepoSkills(ctx context.Context, repo string) ([]RegistrySkill, error) {
	for _, prefix := range []string{"skills", ""} {
		url := fmt.Sprintf("%s/repos/%s/contents", githubAPIBase, repo)
		if prefix != "" {
			url += "/" + prefix
		}

		var items []contentItem
		status, err := r.getJSON(ctx, url, &items)
		if err != nil || status != http.StatusOK {
			continue
		}

		var skills []RegistrySkill
		for _, item := range items {
			if item.Type != "dir" {
				continue
			}

			var skillFile contentItem
			skillURL := fmt.Sprintf("%s/repos/%s/contents/%s/SKILL.md", githubAPIBase, repo, item.Path)
			status, err := r.getJSON(ctx, skillURL, &skillFile)
			if err != nil || status != http.StatusOK {
				continue
			}

			decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(skillFile.Content, "\n", ""))
			if err != nil {
				continue
			}
			content := string(decoded)

			skills = append(skills, RegistrySkill{
				Name:           item.Name,
				Description:    ParseFrontMatter(content).Description,
				SourceRepo:     repo,
				SourcePath:     item.Path,
				SourceURL:      item.HTMLURL,
				SkillMDContent: content,
			})
		}
		if len(skills) > 0 {
			return skills, nil
		}
	}
	return nil, nil
}

// Search queries public registries for skills matching the query in
// name or description. Errors from individual registries are logged and
// skipped.
func (r *Registry) Search(ctx context.Context, query string, sources []string) []RegistrySkill {
	repos := sources
	if len(repos) == 0 {
		repos = DefaultRegistries
	}
	queryLower := strings.ToLower(query)

	var results []RegistrySkill
	for _, repo := range repos {
		skills, err := r.searchRepoSkills(ctx, repo)
		if err != nil {
			logging.Warn(ctx, "registry search failed", "repo", repo, "error", err)
			continue
		}

		for _, skill := range skills {
			if strings.Contains(strings.ToLower(skill.Name), queryLower) ||
				strings.Contains(strings.ToLower(skill.Description), queryLower) {
				results = append(results, skill)
			}
		}

		// Fall back to awesome-list parsing for repos without SKILL.md dirs
		if len(skills) == 0 {
			entries, err := r.FetchAwesomeList(ctx, repo)
			if err != nil {
				logging.Warn(ctx, "awesome list fetch failed", "repo", repo, "error", err)
				continue
			}
			for _, entry := range entries {
				if strings.Contains(strings.ToLower(entry.Name), queryLower) ||
					strings.Contains(strings.ToLower(entry.Description), queryLower) {
					results = append(results, RegistrySkill{
						Name:        entry.Name,
						Description: entry.Description,
						SourceRepo:  repo,
						SourceURL:   entry.URL,
					})
				}
			}
		}
	}
	return results
}

// FetchSkill downloads a SKILL.md and its supporting files from a
// GitHub repo. Returns nil when the skill directory has no SKILL.md.
func (r *Registry) FetchSkill(ctx context.Context, repo, skillPath string) (*RegistrySkill, error) {
	var items []contentItem
	status, err := r.getJSON(ctx, fmt.Sprintf("%s/repos/%s/contents/%s", githubAPIBase, repo, skillPath), &items)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		logging.Warn(ctx, "failed to fetch skill", "repo", repo, "path", skillPath, "status", status)
		return nil, nil
	}

	skill := &RegistrySkill{
		Name:            path.Base(strings.TrimSuffix(skillPath, "/")),
		SourceRepo:      repo,
		SourcePath:      skillPath,
		SourceURL:       fmt.Sprintf("https://github.com/%s/tree/main/%s", repo, skillPath),
		SupportingFiles: make(map[string]string),
	}

	for _, item := range items {
		if item.Type != "file" || item.DownloadURL == "" {
			continue
		}

		content, err := r.getText(ctx, item.DownloadURL)
		if err != nil {
			logging.Warn(ctx, "failed to download skill file", "file", item.Name, "error", err)
			continue
		}

		if item.Name == "SKILL.md" {
			skill.SkillMDContent = content
		} else {
			skill.SupportingFiles[item.Name] = content
		}
	}

	if skill.SkillMDContent == "" {
		logging.Warn(ctx, "no SKILL.md found", "repo", repo, "path", skillPath)
		return nil, nil
	}

	skill.Description = ParseFrontMatter(skill.SkillMDContent).Description
	return skill, nil
}
