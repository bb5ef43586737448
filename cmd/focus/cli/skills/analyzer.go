package skills

import (
	"context"
	"strings"

	"github.com/simonhq/focus/cmd/focus/cli/agent/claudecode"
	"github.com/simonhq/focus/cmd/focus/cli/logging"
	"github.com/simonhq/focus/cmd/focus/cli/settings"
	"github.com/simonhq/focus/cmd/focus/cli/store"
)

// Candidate is a session that qualifies for skill generation.
type Candidate struct {
	SessionID     string
	QualityScore  float64
	Description   string
	Context       SkillContext
	WorkspacePath string
}

// ScoreSessionQuality scores a session from 0.0 to 1.0. Higher scores
// mean more likely to be a repeatable pattern worth a skill.
//
// Components: turn count (max 0.25), low error rate (max 0.25), files
// touched (max 0.2), tool diversity (max 0.15), has summary (0.15).
func ScoreSessionQuality(turnCount, errorCount int, filesTouched, toolsUsed []string, hasSummary bool) float64 {
	score := 0.0

	if turnCount >= 3 {
		score += minf(float64(turnCount)/12.0, 0.25)
	}

	if turnCount > 0 {
		errorRate := float64(errorCount) / float64(turnCount)
		if errorRate < 0.3 {
			score += 0.25 * (1.0 - errorRate)
		}
	}

	if fileCount := len(uniqueStrings(filesTouched)); fileCount >= 2 {
		score += minf(float64(fileCount)/10.0, 0.2)
	}

	if toolCount := len(uniqueStrings(toolsUsed)); toolCount >= 2 {
		score += minf(float64(toolCount)/8.0, 0.15)
	}

	if hasSummary {
		score += 0.15
	}

	return minf(score, 1.0)
}

// DescriptionHash hashes a description for duplicate detection, after
// collapsing whitespace and lowercasing.
func DescriptionHash(description string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(description)), " ")
	return claudecode.ContentHash(normalized)
}

// sessionTurnData aggregates what the quality gate needs from turns.
type sessionTurnData struct {
	turnCount    int
	errorCount   int
	filesTouched []string
	commandsRun  []string
	toolsUsed    []string
}

func collectTurnData(turns []store.TurnWithContent) sessionTurnData {
	data := sessionTurnData{turnCount: len(turns)}
	for _, turn := range turns {
		data.toolsUsed = append(data.toolsUsed, turn.ToolNames...)
		if turn.Content == nil {
			continue
		}
		data.filesTouched = append(data.filesTouched, turn.Content.FilesTouched...)
		data.commandsRun = append(data.commandsRun, turn.Content.CommandsRun...)
		data.errorCount += len(turn.Content.ErrorsEncountered)
	}
	return data
}

// AnalyzeSession decides whether a processed session should become a
// skill. Returns nil (no error) when the session does not qualify:
// auto-generation disabled, session unprocessed, daily cap reached,
// quality below threshold, or a similar skill already exists.
func AnalyzeSession(ctx context.Context, st *store.Store, cfg *settings.Settings, session *store.Session) (*Candidate, error) {
	if !cfg.Skills.AutoGenerate {
		return nil, nil
	}
	if !session.IsProcessed || session.SessionSummary == nil || *session.SessionSummary == "" {
		logging.Debug(ctx, "session not fully processed, skipping skill analysis", "session", session.SessionID)
		return nil, nil
	}

	todayCount, err := st.CountTodaysAutoSkills(ctx)
	if err != nil {
		return nil, err
	}
	if todayCount >= cfg.Skills.MaxAutoSkillsPerDay {
		logging.Debug(ctx, "daily skill limit reached", "count", todayCount)
		return nil, nil
	}

	turns, err := st.TurnsWithContentBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	data := collectTurnData(turns)

	quality := ScoreSessionQuality(
		data.turnCount,
		data.errorCount,
		data.filesTouched,
		data.toolsUsed,
		true,
	)
	if quality < cfg.Skills.MinQualityScore {
		logging.Debug(ctx, "session quality below threshold",
			"session", session.SessionID,
			"quality", quality,
			"threshold", cfg.Skills.MinQualityScore,
		)
		return nil, nil
	}

	description := *session.SessionSummary
	exists, err := st.HasActiveSkillWithHash(ctx, DescriptionHash(description))
	if err != nil {
		return nil, err
	}
	if exists {
		logging.Debug(ctx, "similar skill already exists", "session", session.SessionID)
		return nil, nil
	}

	workspace := ""
	if session.WorkspacePath != nil {
		workspace = *session.WorkspacePath
	}

	return &Candidate{
		SessionID:     session.SessionID,
		QualityScore:  quality,
		Description:   description,
		WorkspacePath: workspace,
		Context: SkillContext{
			WorkspacePath:  workspace,
			FilesTouched:   uniqueStrings(data.filesTouched),
			CommandsRun:    uniqueStrings(data.commandsRun),
			ToolsUsed:      uniqueStrings(data.toolsUsed),
			SessionSummary: description,
		},
	}, nil
}

func uniqueStrings(list []string) []string {
	seen := make(map[string]bool, len(list))
	var result []string
	for _, s := range list {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	return result
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
