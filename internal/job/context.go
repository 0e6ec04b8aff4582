package job

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kingrea/slipway/internal/artifact"
	"github.com/kingrea/slipway/internal/config"
	"github.com/kingrea/slipway/internal/trigger"
)

// Context carries everything a job may touch during a run. It is built once
// by the engine; jobs never read trigger data or configuration from ambient
// process state.
type Context struct {
	// Ctx is the cancellation context for the run.
	Ctx context.Context
	// Trigger is the immutable event that started the run.
	Trigger trigger.Context
	// Config is the loaded project configuration.
	Config config.Config
	// Staging is the shared artifact collection jobs forward into.
	Staging *artifact.Staging
	// Logger is a named logger for the executing job.
	Logger *zap.Logger
	// InstanceID is the pipeline-scoped identifier of the executing job.
	// Set by the engine via ForInstance; artifacts claim it as their
	// producing job.
	InstanceID string
}

// ForInstance returns a copy of the context scoped to one job instance.
func (c *Context) ForInstance(id string) *Context {
	scoped := *c
	scoped.InstanceID = id
	scoped.Logger = c.JobLogger(id)
	return &scoped
}

// Validate ensures the context is usable.
func (c *Context) Validate() error {
	if c == nil {
		return fmt.Errorf("job: context is required")
	}
	if c.Ctx == nil {
		return fmt.Errorf("job: cancellation context is required")
	}
	if c.Staging == nil {
		return fmt.Errorf("job: staging collection is required")
	}
	return nil
}

// OutputDir ensures and returns the isolated output directory for the
// executing job instance. Outputs are namespaced by job identity so no two
// jobs ever write to the same location.
func (c *Context) OutputDir() (string, error) {
	if c.InstanceID == "" {
		return "", fmt.Errorf("job: output dir requires an instance id")
	}
	dir := c.Config.OutputDir(c.InstanceID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("job: ensure output dir for %s: %w", c.InstanceID, err)
	}
	return dir, nil
}

// JobLogger returns the context logger named for a job instance.
func (c *Context) JobLogger(jobID string) *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger.Named(jobID)
}
