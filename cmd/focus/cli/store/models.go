package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job statuses. Done and failed are terminal.
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobRetry      = "retry"
	JobDone       = "done"
	JobFailed     = "failed"
)

// Job kinds processed by the worker.
const (
	KindSessionProcess  = "session_process"
	KindTurnSummary     = "turn_summary"
	KindArtifactExtract = "artifact_extract"
	KindEntityExtract   = "entity_extract"
	KindSessionSummary  = "session_summary"
	KindSkillExtract    = "skill_extract"
)

// JobKinds lists every kind the worker knows how to process.
var JobKinds = []string{
	KindSessionProcess,
	KindTurnSummary,
	KindEntityExtract,
	KindArtifactExtract,
	KindSessionSummary,
	KindSkillExtract,
}

// Queue priorities per kind. Lower number runs first.
const (
	PrioritySessionProcess  = 5
	PriorityDefault         = 10
	PriorityTurnSummary     = 15
	PriorityArtifactExtract = 18
	PriorityEntityExtract   = 20
	PrioritySessionSummary  = 25
	PrioritySkillExtract    = 30
)

// Lease and retry parameters.
const (
	DefaultLeaseSeconds = 300
	DefaultMaxAttempts  = 10
)

// Job is a row in the focus_jobs queue.
type Job struct {
	ID           uuid.UUID
	Kind         string
	DedupeKey    *string
	Payload      json.RawMessage
	Status       string
	Priority     int
	Attempts     int
	MaxAttempts  int
	LockedUntil  *time.Time
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is a recorded Claude Code session (agent_sessions).
type Session struct {
	ID             uuid.UUID
	SessionID      string
	TranscriptPath *string
	WorkspacePath  *string
	Provider       string
	SessionTitle   *string
	SessionSummary *string
	StartedAt      *time.Time
	LastActivityAt *time.Time
	ProjectID      *uuid.UUID
	TurnCount      int
	IsProcessed    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Turn is one user+assistant exchange (agent_turns).
type Turn struct {
	ID               uuid.UUID
	SessionID        uuid.UUID
	TurnNumber       int
	UserMessage      *string
	AssistantSummary *string
	TurnTitle        *string
	ContentHash      string
	ModelName        *string
	ToolNames        []string
	StartedAt        *time.Time
	EndedAt          *time.Time
	CreatedAt        time.Time
}

// TurnContent holds the raw JSONL and extracted summaries for a turn.
type TurnContent struct {
	ID                uuid.UUID
	TurnID            uuid.UUID
	RawJSONL          string
	AssistantText     *string
	ContentSize       *int
	FilesTouched      []string
	CommandsRun       []string
	ErrorsEncountered []string
	ToolCallCount     *int
	CreatedAt         time.Time
}

// TurnEntity links a turn to a recognized project or person.
type TurnEntity struct {
	ID         uuid.UUID
	TurnID     uuid.UUID
	EntityType string
	EntityID   *uuid.UUID
	EntityName *string
	Confidence float64
	CreatedAt  time.Time
}

// TurnArtifact is a file path, command, or error extracted from a turn.
type TurnArtifact struct {
	ID           uuid.UUID
	TurnID       uuid.UUID
	ArtifactType string
	Value        string
	Metadata     map[string]any
	CreatedAt    time.Time
}

// GeneratedSkill tracks skills generated or installed by focus.
type GeneratedSkill struct {
	ID               uuid.UUID
	Name             string
	Description      string
	Source           string // "auto", "manual", "registry"
	SourceSessionID  *string
	SourceRepo       *string
	InstalledPath    string
	Scope            string // "personal" or "project"
	QualityScore     *float64
	SkillContentHash string
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Project is a Focus workspace project (read-only here).
type Project struct {
	ID     uuid.UUID
	Name   string
	Slug   string
	Status string
}

// Person is a Focus contact (read-only here).
type Person struct {
	ID           uuid.UUID
	Name         string
	Organization *string
	Relationship *string
}

// Task is a Focus task (read-only here).
type Task struct {
	ID       uuid.UUID
	Title    string
	Status   string
	Priority string
	DueDate  *time.Time
}

// Commitment is an open promise to or from a person (read-only here).
type Commitment struct {
	ID          uuid.UUID
	Direction   string
	Description string
	Deadline    *time.Time
	PersonName  *string
}

// Sprint is an active sprint with its project name (read-only here).
type Sprint struct {
	ID          uuid.UUID
	Name        string
	EndsAt      time.Time
	ProjectName *string
}
