package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/slipway/internal/artifact"
	"github.com/kingrea/slipway/internal/job"
	"github.com/kingrea/slipway/internal/shell"
)

// EnvOutput carries the job's output directory to the plugin command.
const EnvOutput = "SLIPWAY_OUTPUT"

// commandJob runs a plugin-defined shell command as a pipeline job.
type commandJob struct {
	def JobDefinition
	now func() time.Time
}

func newCommandJob(def JobDefinition, _ job.Config) (job.Job, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &commandJob{def: def.Normalized(), now: time.Now}, nil
}

func (j *commandJob) Info() job.Info {
	name := j.def.Name
	if name == "" {
		name = j.def.ID
	}
	return job.Info{ID: j.def.ID, Name: name, Description: j.def.Description}
}

func (j *commandJob) Run(ctx *job.Context) (job.Result, error) {
	if err := ctx.Validate(); err != nil {
		return job.Result{Status: job.StatusFailed}, err
	}
	outDir, err := ctx.OutputDir()
	if err != nil {
		return job.Result{Status: job.StatusFailed}, err
	}
	env := map[string]string{EnvOutput: outDir}
	for key, value := range j.def.Env {
		env[key] = value
	}
	ctx.Logger.Info("running plugin command", zap.String("plugin", j.def.ID))
	output, err := shell.Run(ctx.Ctx, j.def.Command, ctx.Config.ProjectDir, env)
	if err != nil {
		return job.Result{Status: job.StatusFailed, Message: strings.TrimSpace(output)},
			fmt.Errorf("plugin %s: %w: %v", j.def.ID, job.ErrBuildFailure, err)
	}
	result := job.Result{
		Status:  job.StatusSucceeded,
		Message: fmt.Sprintf("plugin %s completed", j.def.ID),
	}
	if j.def.Collect {
		artifacts, err := j.collect(outDir, ctx.InstanceID)
		if err != nil {
			return job.Result{Status: job.StatusFailed}, err
		}
		result.Artifacts = artifacts
		result.Message = fmt.Sprintf("plugin %s produced %d artifacts", j.def.ID, len(artifacts))
	}
	return result, nil
}

func (j *commandJob) collect(outDir, instanceID string) ([]artifact.Artifact, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: read output dir: %w", j.def.ID, err)
	}
	var artifacts []artifact.Artifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		art, err := artifact.FromFile(filepath.Join(outDir, entry.Name()), artifact.Kind(j.def.Kind), instanceID, j.now())
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", j.def.ID, err)
		}
		art.Platform = j.def.Platform
		artifacts = append(artifacts, art)
	}
	return artifacts, nil
}
