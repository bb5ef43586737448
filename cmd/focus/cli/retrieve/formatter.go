package retrieve

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultMaxTokens is the token budget for injected context.
const DefaultMaxTokens = 1500

var typeLabels = map[string]string{
	"conversation": "Conv",
	"task":         "Task",
	"email":        "Email",
	"commitment":   "Commitment",
	"person":       "Person",
	"sprint":       "Sprint",
	"file_context": "File",
	"error":        "Error",
	"skill":        "Skill",
}

var titleCaser = cases.Title(language.English)

// FormatContextBlocks renders blocks as concise text for the hook's
// additionalContext field. Blocks are taken in relevance order until
// the token budget runs out; leftover blocks become an overflow note.
func FormatContextBlocks(blocks []ContextBlock, maxTokens int) string {
	if len(blocks) == 0 {
		return ""
	}

	sorted := make([]ContextBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RelevanceScore > sorted[j].RelevanceScore
	})

	header := "## Focus Context\n\n"
	remaining := maxTokens - EstimateTokens(header)

	var lines []string
	overflow := 0
	for _, block := range sorted {
		line := formatBlock(block)
		tokens := EstimateTokens(line)
		if tokens <= remaining {
			lines = append(lines, line)
			remaining -= tokens
		} else {
			overflow++
		}
	}

	if len(lines) == 0 {
		return ""
	}

	result := header + strings.Join(lines, "\n")
	if overflow > 0 {
		result += fmt.Sprintf("\n\n(+%d more — run `focus search` for details)", overflow)
	}
	return result
}

func formatBlock(block ContextBlock) string {
	label, ok := typeLabels[block.SourceType]
	if !ok {
		label = titleCaser.String(block.SourceType)
	}
	return fmt.Sprintf("[%s] %s", label, block.Content)
}

// EstimateTokens approximates token count as len/4, a conservative
// average for English text.
func EstimateTokens(text string) int {
	if n := len(text) / 4; n > 1 {
		return n
	}
	return 1
}
