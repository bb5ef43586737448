package claudecode

import (
	"bufio"
	"crypto/md5" //nolint:gosec // content dedup, not security
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Transcript parsing - Claude Code uses JSONL format, one message per line.

// Scanner buffer size for large transcript files (10MB)
const scannerBufferSize = 10 * 1024 * 1024

// transcriptLine is a single line in Claude's JSONL transcript.
type transcriptLine struct {
	Type        string          `json:"type"`
	IsSidechain bool            `json:"isSidechain"`
	IsMeta      bool            `json:"isMeta"`
	Timestamp   string          `json:"timestamp"`
	Message     json.RawMessage `json:"message"`
}

// transcriptMessage is the message object within a transcript line.
type transcriptMessage struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
}

// contentBlock is a block within a message content array.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Name string `json:"name,omitempty"`
}

// ParsedTurn is one user message plus the assistant's complete response,
// which may span several assistant messages with tool calls between them.
type ParsedTurn struct {
	TurnNumber    int
	UserMessage   string
	AssistantText string
	ToolNames     []string
	ModelName     string
	StartedAt     *time.Time
	EndedAt       *time.Time
	RawJSONL      string
	ContentHash   string
}

// ContentHash computes the MD5 hex digest used for turn deduplication.
func ContentHash(content string) string {
	sum := md5.Sum([]byte(content)) //nolint:gosec // dedup key, not security
	return hex.EncodeToString(sum[:])
}

// parsedMessage is an intermediate record from the first parsing pass.
type parsedMessage struct {
	role      string
	content   json.RawMessage
	text      string
	timestamp string
	model     string
	rawLine   string
}

// ParseSessionIntoTurns parses a Claude Code JSONL session file into
// structured turns. Sidechain and meta messages are skipped, as are
// slash-command wrapper messages. Returns an empty slice when the file
// does not exist.
func ParseSessionIntoTurns(path string) ([]ParsedTurn, error) {
	file, err := os.Open(path) //nolint:gosec // path comes from Claude Code hook payload
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer file.Close()

	var messages []parsedMessage
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, scannerBufferSize), scannerBufferSize)

	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var line transcriptLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			continue // Skip malformed lines
		}

		if line.Type != "user" && line.Type != "assistant" {
			continue
		}
		if line.IsSidechain || line.IsMeta {
			continue
		}

		var msg transcriptMessage
		if err := json.Unmarshal(line.Message, &msg); err != nil {
			continue
		}

		text := extractTextContent(msg.Content)

		// Skip slash-command wrapper messages
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, "<command-name>") || strings.HasPrefix(trimmed, "<local-command") {
			continue
		}

		messages = append(messages, parsedMessage{
			role:      msg.Role,
			content:   msg.Content,
			text:      text,
			timestamp: line.Timestamp,
			model:     msg.Model,
			rawLine:   raw,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}

	return groupIntoTurns(messages), nil
}

// groupIntoTurns pairs each user message with the assistant messages
// that follow it. Assistant messages before the first user message are
// dropped.
func groupIntoTurns(messages []parsedMessage) []ParsedTurn {
	var turns []ParsedTurn

	type building struct {
		turn           ParsedTurn
		assistantTexts []string
		rawLines       []string
		startedAt      string
		endedAt        string
	}
	var current *building

	finalize := func(b *building) {
		rawJSONL := strings.Join(b.rawLines, "\n")
		b.turn.TurnNumber = len(turns)
		b.turn.AssistantText = strings.Join(b.assistantTexts, "\n")
		b.turn.RawJSONL = rawJSONL
		b.turn.ContentHash = ContentHash(rawJSONL)
		b.turn.StartedAt = parseTimestamp(b.startedAt)
		b.turn.EndedAt = parseTimestamp(b.endedAt)
		turns = append(turns, b.turn)
	}

	for _, msg := range messages {
		switch msg.role {
		case "user":
			if current != nil && current.turn.UserMessage != "" {
				finalize(current)
			}
			current = &building{
				turn:      ParsedTurn{UserMessage: msg.text},
				rawLines:  []string{msg.rawLine},
				startedAt: msg.timestamp,
				endedAt:   msg.timestamp,
			}
		case "assistant":
			if current == nil {
				continue
			}
			if msg.text != "" {
				current.assistantTexts = append(current.assistantTexts, msg.text)
			}
			for _, name := range extractToolNames(msg.content) {
				if !contains(current.turn.ToolNames, name) {
					current.turn.ToolNames = append(current.turn.ToolNames, name)
				}
			}
			if msg.model != "" && current.turn.ModelName == "" {
				current.turn.ModelName = msg.model
			}
			if msg.timestamp != "" {
				current.endedAt = msg.timestamp
			}
			current.rawLines = append(current.rawLines, msg.rawLine)
		}
	}

	if current != nil && current.turn.UserMessage != "" {
		finalize(current)
	}

	return turns
}

// extractTextContent extracts plain text from a message content field.
// Content is a string for user messages or an array of blocks for
// assistant messages.
func extractTextContent(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}

	var str string
	if err := json.Unmarshal(content, &str); err == nil {
		return str
	}

	var blocks []contentBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return ""
	}

	var parts []string
	for _, block := range blocks {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// extractToolNames extracts unique tool names from tool_use blocks.
func extractToolNames(content json.RawMessage) []string {
	var blocks []contentBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return nil
	}

	var tools []string
	for _, block := range blocks {
		if block.Type == "tool_use" && block.Name != "" && !contains(tools, block.Name) {
			tools = append(tools, block.Name)
		}
	}
	return tools
}

// parseTimestamp parses an RFC 3339 timestamp, returning nil on failure.
func parseTimestamp(ts string) *time.Time {
	if ts == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return nil
	}
	return &parsed
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
