package engine

import (
	"time"

	"github.com/kingrea/slipway/internal/job"
	"github.com/kingrea/slipway/internal/pipeline"
	"github.com/kingrea/slipway/internal/pipeline/resolver"
	"github.com/kingrea/slipway/internal/pipeline/scheduler"
	"github.com/kingrea/slipway/internal/trigger"
)

// Status enumerates coarse engine phases for a pipeline run.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusRunning Status = "running"
	// StatusBlocked means no job is runnable and none is running, yet the
	// pipeline has not settled. Indicates an impossible constraint.
	StatusBlocked Status = "blocked"
	// StatusComplete means every node reached a terminal state without a
	// single failure.
	StatusComplete Status = "complete"
	// StatusFailed means at least one job failed; dependents were skipped.
	StatusFailed Status = "failed"
)

// State captures the persisted snapshot of a pipeline run.
type State struct {
	RunID      string              `json:"run_id"`
	PipelineID string              `json:"pipeline_id"`
	Definition pipeline.Definition `json:"definition"`
	Trigger    trigger.Context     `json:"trigger"`
	Status     Status              `json:"status"`
	// StatusReason provides a human readable explanation for non-running states.
	StatusReason string                          `json:"status_reason,omitempty"`
	Nodes        []JobStatus                     `json:"nodes"`
	Runnable     []string                        `json:"runnable,omitempty"`
	Skipped      map[string]scheduler.SkipReason `json:"skipped,omitempty"`
	Runs         map[string]JobRun               `json:"runs,omitempty"`
	StartedAt    time.Time                       `json:"started_at"`
	UpdatedAt    time.Time                       `json:"updated_at"`
}

// JobStatus exposes resolver metadata for a pipeline node.
type JobStatus struct {
	ID           string             `json:"id"`
	JobID        string             `json:"job_id"`
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	State        resolver.NodeState `json:"state"`
	Dependencies []string           `json:"dependencies,omitempty"`
	Dependents   []string           `json:"dependents,omitempty"`
	BlockedBy    []string           `json:"blocked_by,omitempty"`
	SkippedBy    []string           `json:"skipped_by,omitempty"`
	LastRun      *JobRun            `json:"last_run,omitempty"`
}

// JobRun persists the outcome of one job execution.
type JobRun struct {
	Status     job.Status `json:"status"`
	Message    string     `json:"message,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	// Artifacts counts the files the job forwarded to staging.
	Artifacts int `json:"artifacts,omitempty"`
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func cloneRuns(values map[string]JobRun) map[string]JobRun {
	out := make(map[string]JobRun, len(values))
	for id, run := range values {
		out[id] = run
	}
	return out
}

func cloneSkipped(values map[string]scheduler.SkipReason) map[string]scheduler.SkipReason {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]scheduler.SkipReason, len(values))
	for id, reason := range values {
		out[id] = reason
	}
	return out
}
