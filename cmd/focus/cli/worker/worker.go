// Package worker drains the focus job queue: it claims jobs with
// lease-based locking and runs them through the processing pipeline
// (session recording, summaries, entity and artifact extraction, skill
// generation).
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/simonhq/focus/cmd/focus/cli/logging"
	"github.com/simonhq/focus/cmd/focus/cli/settings"
	"github.com/simonhq/focus/cmd/focus/cli/store"
	"github.com/simonhq/focus/cmd/focus/cli/summarize"
)

// DefaultPollInterval is the sleep between claim attempts when the
// queue is empty.
const DefaultPollInterval = 2 * time.Second

// DefaultMaxJobs bounds a single ProcessPending pass.
const DefaultMaxJobs = 20

// Worker claims and processes queued jobs.
type Worker struct {
	store    *store.Store
	settings *settings.Settings

	// llm is nil when no API key is configured; handlers fall back to
	// deterministic summaries.
	llm *summarize.Client
}

// New builds a worker. The LLM client is optional: without an API key
// summaries degrade to truncation and skill generation is skipped.
func New(st *store.Store, cfg *settings.Settings) *Worker {
	w := &Worker{store: st, settings: cfg}
	if client, err := summarize.NewClient(cfg.Anthropic.APIKey); err == nil {
		w.llm = client
	}
	return w
}

// Run is the main worker loop. It claims and processes jobs until the
// context is canceled, sleeping pollInterval between empty polls.
func (w *Worker) Run(ctx context.Context, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	logging.Info(ctx, "worker started", "poll_interval", pollInterval.String())

	consecutiveEmpty := 0
	for {
		select {
		case <-ctx.Done():
			logging.Info(ctx, "worker stopped")
			return nil
		default:
		}

		if _, err := w.store.ExpireStaleLeases(ctx); err != nil {
			logging.Error(ctx, "failed to expire stale leases", "error", err)
		}

		job, err := w.store.ClaimJob(ctx, store.JobKinds, store.DefaultLeaseSeconds)
		if err != nil {
			logging.Error(ctx, "failed to claim job", "error", err)
			if !sleep(ctx, pollInterval) {
				return nil
			}
			continue
		}
		if job == nil {
			consecutiveEmpty++
			if consecutiveEmpty%30 == 0 {
				logging.Debug(ctx, "no jobs available", "empty_cycles", consecutiveEmpty)
			}
			if !sleep(ctx, pollInterval) {
				return nil
			}
			continue
		}

		consecutiveEmpty = 0
		w.processOne(ctx, job)
	}
}

// ProcessPending drains up to maxJobs jobs and returns how many
// completed successfully. Used by the --once worker mode and tests.
func (w *Worker) ProcessPending(ctx context.Context, maxJobs int) (int, error) {
	if maxJobs <= 0 {
		maxJobs = DefaultMaxJobs
	}

	if _, err := w.store.ExpireStaleLeases(ctx); err != nil {
		logging.Error(ctx, "failed to expire stale leases", "error", err)
	}

	processed := 0
	for i := 0; i < maxJobs; i++ {
		job, err := w.store.ClaimJob(ctx, store.JobKinds, store.DefaultLeaseSeconds)
		if err != nil {
			return processed, err
		}
		if job == nil {
			break
		}
		if w.processOne(ctx, job) {
			processed++
		}
	}
	return processed, nil
}

// processOne dispatches a claimed job and records the outcome. Returns
// true when the job completed.
func (w *Worker) processOne(ctx context.Context, job *store.Job) bool {
	if err := w.dispatch(ctx, job); err != nil {
		logging.Error(ctx, "job failed", "job_id", job.ID, "kind", job.Kind, "error", err)
		if failErr := w.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			logging.Error(ctx, "failed to record job failure", "job_id", job.ID, "error", failErr)
		}
		return false
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		logging.Error(ctx, "failed to mark job done", "job_id", job.ID, "error", err)
		return false
	}
	logging.Info(ctx, "completed job", "job_id", job.ID, "kind", job.Kind)
	return true
}

func (w *Worker) dispatch(ctx context.Context, job *store.Job) error {
	switch job.Kind {
	case store.KindSessionProcess:
		return w.handleSessionProcess(ctx, job)
	case store.KindTurnSummary:
		return w.handleTurnSummary(ctx, job)
	case store.KindEntityExtract:
		return w.handleEntityExtract(ctx, job)
	case store.KindArtifactExtract:
		return w.handleArtifactExtract(ctx, job)
	case store.KindSessionSummary:
		return w.handleSessionSummary(ctx, job)
	case store.KindSkillExtract:
		return w.handleSkillExtract(ctx, job)
	default:
		return fmt.Errorf("unknown job kind: %s", job.Kind)
	}
}

// turnPayload is the payload of the per-turn pipeline jobs.
type turnPayload struct {
	TurnID string `json:"turn_id"`
}

// sessionIDPayload is the payload of session_summary and skill_extract.
type sessionIDPayload struct {
	SessionID string `json:"session_id"`
}

func unmarshalPayload(job *store.Job, out any) error {
	if err := json.Unmarshal(job.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", job.Kind, err)
	}
	return nil
}

// sleep waits for d or until ctx is canceled. Returns false on cancel.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
