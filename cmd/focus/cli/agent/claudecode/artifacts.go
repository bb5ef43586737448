package claudecode

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// Artifact extraction - parses a turn's raw JSONL for file operations,
// commands, and errors. No LLM calls involved.

// Artifact is a single artifact extracted from a turn.
type Artifact struct {
	Type     string
	Value    string
	Metadata map[string]any
}

// TurnArtifacts holds everything extracted from one turn's raw JSONL.
type TurnArtifacts struct {
	Artifacts         []Artifact
	FilesRead         []string
	FilesWritten      []string
	FilesEdited       []string
	CommandsRun       []string
	ErrorsEncountered []string
	ToolCallCount     int
}

// FilesTouched returns all unique files read, written, or edited, in
// first-seen order.
func (a *TurnArtifacts) FilesTouched() []string {
	seen := make(map[string]bool)
	var result []string
	for _, group := range [][]string{a.FilesRead, a.FilesWritten, a.FilesEdited} {
		for _, f := range group {
			if !seen[f] {
				seen[f] = true
				result = append(result, f)
			}
		}
	}
	return result
}

// artifactToolInput covers the input fields of every tool we extract from.
type artifactToolInput struct {
	FilePath     string `json:"file_path,omitempty"`
	NotebookPath string `json:"notebook_path,omitempty"`
	Pattern      string `json:"pattern,omitempty"`
	Path         string `json:"path,omitempty"`
	Command      string `json:"command,omitempty"`
	OldString    string `json:"old_string,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	SubagentType string `json:"subagent_type,omitempty"`
}

// artifactBlock is a content block as seen by the artifact extractor.
type artifactBlock struct {
	Type    string          `json:"type"`
	Name    string          `json:"name,omitempty"`
	Input   json.RawMessage `json:"input,omitempty"`
	IsError bool            `json:"is_error,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// ExtractArtifacts parses a turn's raw JSONL content for tool_use blocks
// (file operations, commands) and tool_result blocks (errors).
func ExtractArtifacts(rawJSONL string) *TurnArtifacts {
	result := &TurnArtifacts{}
	if rawJSONL == "" {
		return result
	}

	for _, line := range strings.Split(rawJSONL, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var obj struct {
			Message json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}

		var msg struct {
			Content json.RawMessage `json:"content"`
		}
		if err := json.Unmarshal(obj.Message, &msg); err != nil {
			continue
		}

		var blocks []artifactBlock
		if err := json.Unmarshal(msg.Content, &blocks); err != nil {
			continue
		}

		for _, block := range blocks {
			switch block.Type {
			case "tool_use":
				processToolUse(block, result)
			case "tool_result":
				processToolResult(block, result)
			}
		}
	}

	return result
}

func processToolUse(block artifactBlock, result *TurnArtifacts) {
	var input artifactToolInput
	_ = json.Unmarshal(block.Input, &input)

	result.ToolCallCount++

	switch block.Name {
	case ToolRead:
		if input.FilePath != "" {
			result.FilesRead = append(result.FilesRead, input.FilePath)
			result.Artifacts = append(result.Artifacts, Artifact{
				Type:     ArtifactFileRead,
				Value:    input.FilePath,
				Metadata: map[string]any{"tool": block.Name},
			})
		}

	case ToolGlob, ToolGrep:
		value := input.Pattern
		if value == "" {
			value = input.Path
		}
		result.Artifacts = append(result.Artifacts, Artifact{
			Type:  ArtifactFileRead,
			Value: value,
			Metadata: map[string]any{
				"tool":    block.Name,
				"pattern": input.Pattern,
				"path":    input.Path,
			},
		})

	case ToolWrite:
		if input.FilePath != "" {
			result.FilesWritten = append(result.FilesWritten, input.FilePath)
			result.Artifacts = append(result.Artifacts, Artifact{
				Type:     ArtifactFileWrite,
				Value:    input.FilePath,
				Metadata: map[string]any{"tool": block.Name},
			})
		}

	case ToolEdit, ToolNotebookEdit:
		path := input.FilePath
		if path == "" {
			path = input.NotebookPath
		}
		if path != "" {
			result.FilesEdited = append(result.FilesEdited, path)
			result.Artifacts = append(result.Artifacts, Artifact{
				Type:  ArtifactFileEdit,
				Value: path,
				Metadata: map[string]any{
					"tool":       block.Name,
					"old_string": truncate(input.OldString, 100),
				},
			})
		}

	case ToolBash:
		if input.Command != "" {
			result.CommandsRun = append(result.CommandsRun, input.Command)
			result.Artifacts = append(result.Artifacts, Artifact{
				Type:     ArtifactCommand,
				Value:    truncate(input.Command, 500),
				Metadata: map[string]any{"tool": block.Name},
			})
		}

	case ToolTask:
		result.Artifacts = append(result.Artifacts, Artifact{
			Type:  ArtifactToolCall,
			Value: "Task: " + truncate(input.Prompt, 200),
			Metadata: map[string]any{
				"tool":          block.Name,
				"subagent_type": input.SubagentType,
			},
		})

	default:
		result.Artifacts = append(result.Artifacts, Artifact{
			Type:  ArtifactToolCall,
			Value: block.Name,
			Metadata: map[string]any{
				"tool":       block.Name,
				"input_keys": inputKeys(block.Input, 10),
			},
		})
	}
}

// inputKeys returns up to max field names of a tool input object, sorted
// for determinism.
func inputKeys(input json.RawMessage, max int) []string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(input, &fields); err != nil {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > max {
		keys = keys[:max]
	}
	return keys
}

func processToolResult(block artifactBlock, result *TurnArtifacts) {
	if !block.IsError {
		return
	}

	text := extractTextContent(block.Content)
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	errMsg := truncate(text, 500)
	result.ErrorsEncountered = append(result.ErrorsEncountered, errMsg)
	result.Artifacts = append(result.Artifacts, Artifact{
		Type:     ArtifactError,
		Value:    errMsg,
		Metadata: map[string]any{},
	})
}

// Path patterns matched in free text. Go's regexp has no lookbehind, so
// each pattern captures the path in group 1 after a non-word boundary.
var filePathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:^|[^0-9A-Za-z_])(/[\w./-]+\.\w+)`),
	regexp.MustCompile(`(?:^|[^0-9A-Za-z_])((?:src|tests|lib|app|pkg)/[\w./-]+\.\w+)`),
}

// ExtractFilePathsFromText extracts file paths from free text such as
// user prompts: absolute paths and relative paths under common source
// roots, both requiring a file extension.
func ExtractFilePathsFromText(text string) []string {
	if text == "" {
		return nil
	}

	var paths []string
	seen := make(map[string]bool)
	for _, pattern := range filePathPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			path := strings.TrimSpace(match[1])
			if len(path) > 3 && !seen[path] {
				seen[path] = true
				paths = append(paths, path)
			}
		}
	}
	return paths
}

// truncate cuts s to max characters, never splitting a multibyte rune.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
