// Package summarize wraps the Anthropic API for the short LLM calls the
// worker makes: turn titles, turn summaries, and skill generation. Every
// caller has a deterministic fallback; an API failure never fails a
// pipeline permanently.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/simonhq/focus/cmd/focus/cli/logging"
)

// ErrNoAPIKey indicates no Anthropic API key is configured.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

const turnSummarySystem = "Generate a short title (5-10 words) and a 1-sentence summary of what the user asked/discussed. Return as: TITLE: <title>\nSUMMARY: <summary>"

// Client issues non-streaming Anthropic message requests.
type Client struct {
	anthropic anthropic.Client
}

// NewClient builds a client from an API key.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return &Client{anthropic: anthropic.NewClient(option.WithAPIKey(apiKey))}, nil
}

// Complete issues a single-turn request and returns the concatenated
// text blocks of the response.
func (c *Client) Complete(ctx context.Context, model, system, userMessage string, maxTokens int64) (string, error) {
	start := time.Now()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.anthropic.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages.new: %w", err)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}

	logging.Debug(ctx, "llm call completed",
		"model", model,
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return strings.Join(parts, "\n"), nil
}

// TurnSummary generates a title and one-sentence summary for a turn's
// user message. The message is capped at 1000 chars before sending.
func (c *Client) TurnSummary(ctx context.Context, model, userMessage string) (title, summary string, err error) {
	input := userMessage
	if len(input) > 1000 {
		input = input[:1000]
	}

	text, err := c.Complete(ctx, model, turnSummarySystem, input, 200)
	if err != nil {
		return "", "", err
	}

	title, summary = ParseTitleSummary(text)
	if title == "" {
		title = Truncate(userMessage, 80)
	}
	if summary == "" {
		summary = Truncate(userMessage, 200)
	}
	return title, summary, nil
}

// ParseTitleSummary parses "TITLE: ...\nSUMMARY: ..." response text.
// Missing lines yield empty strings.
func ParseTitleSummary(text string) (title, summary string) {
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		switch {
		case strings.HasPrefix(line, "TITLE:"):
			title = strings.TrimSpace(line[len("TITLE:"):])
		case strings.HasPrefix(line, "SUMMARY:"):
			summary = strings.TrimSpace(line[len("SUMMARY:"):])
		}
	}
	return title, summary
}

// Truncate returns s cut to at most max bytes.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
