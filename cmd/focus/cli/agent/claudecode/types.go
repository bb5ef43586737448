package claudecode

// ClaudeSettings represents the ~/.claude/settings.json structure.
// Unknown keys are preserved separately by the enable command so we only
// model the hooks section here.
type ClaudeSettings struct {
	Hooks ClaudeHooks `json:"hooks"`
}

// ClaudeHooks contains the hook configurations focus cares about.
type ClaudeHooks struct {
	UserPromptSubmit []ClaudeHookMatcher `json:"UserPromptSubmit,omitempty"`
	Stop             []ClaudeHookMatcher `json:"Stop,omitempty"`
}

// ClaudeHookMatcher matches hooks to specific patterns.
type ClaudeHookMatcher struct {
	Matcher string            `json:"matcher"`
	Hooks   []ClaudeHookEntry `json:"hooks"`
}

// ClaudeHookEntry represents a single hook command.
type ClaudeHookEntry struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

// HookInput is the JSON payload Claude Code writes to a hook's stdin.
// UserPromptSubmit includes the prompt; Stop omits it.
type HookInput struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	CWD            string `json:"cwd"`
	Prompt         string `json:"prompt,omitempty"`
	HookEventName  string `json:"hook_event_name,omitempty"`
}

// HookOutput is the JSON payload a hook writes to stdout. For
// UserPromptSubmit, additionalContext is injected into the conversation.
type HookOutput struct {
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// HookSpecificOutput carries event-specific hook results.
type HookSpecificOutput struct {
	HookEventName     string `json:"hookEventName"`
	AdditionalContext string `json:"additionalContext,omitempty"`
}

// Tool names used in Claude Code transcripts.
const (
	ToolRead         = "Read"
	ToolGlob         = "Glob"
	ToolGrep         = "Grep"
	ToolWrite        = "Write"
	ToolEdit         = "Edit"
	ToolNotebookEdit = "NotebookEdit"
	ToolBash         = "Bash"
	ToolTask         = "Task"
)

// Artifact types recorded per tool call.
const (
	ArtifactFileRead  = "file_read"
	ArtifactFileWrite = "file_write"
	ArtifactFileEdit  = "file_edit"
	ArtifactCommand   = "command"
	ArtifactError     = "error"
	ArtifactToolCall  = "tool_call"
)
