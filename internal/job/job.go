// Package job defines the runtime unit of a pipeline: the Job interface,
// the factory registry, the run context handed to every job, and the error
// kinds the engine distinguishes.
package job

import (
	"errors"
	"fmt"

	"github.com/kingrea/slipway/internal/artifact"
)

// Error kinds. Jobs wrap these so the engine and reports can tell a
// toolchain failure from a failing test suite or a rejected upload.
var (
	// ErrBuildFailure marks a non-zero exit from the build toolchain.
	ErrBuildFailure = errors.New("build failure")
	// ErrTestFailure marks a test runner reporting failing tests.
	ErrTestFailure = errors.New("test failure")
	// ErrNotesExtraction marks an unreadable annotated tag message.
	ErrNotesExtraction = errors.New("notes extraction failure")
	// ErrPublishFailure marks a rejected release creation or index upload.
	ErrPublishFailure = errors.New("publish failure")
)

// Info describes a job's identity.
type Info struct {
	ID          string
	Name        string
	Description string
}

// Validate ensures the info block is well-formed.
func (i Info) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("job: id is required")
	}
	if i.Name == "" {
		return fmt.Errorf("job: name is required for %s", i.ID)
	}
	return nil
}

// Status enumerates job run outcomes.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	// StatusSkipped means the job's gate condition declined to run it. A
	// skip is a deliberate short-circuit, not an error.
	StatusSkipped Status = "skipped"
)

// Result captures the outcome of a job execution. Artifacts lists the files
// the job forwards to the staging collection; a failed job forwards none.
type Result struct {
	Status    Status
	Message   string
	Artifacts []artifact.Artifact
}

// Job is implemented by every pipeline runtime unit.
type Job interface {
	Info() Info
	Run(ctx *Context) (Result, error)
}
