// Package binwheel builds platform binary packages by invoking the
// configured build toolchain once per matrix entry.
package binwheel

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

// Environment variables exported to the build toolchain.
const (
	EnvPlatform = "SLIPWAY_PLATFORM"
	EnvArchs    = "SLIPWAY_ARCHS"
	EnvOutput   = "SLIPWAY_OUTPUT"
)

// Job builds the binary packages for one platform of the build matrix.
type Job struct {
	platform string
	archs    []string
	env      map[string]string

	runner func(ctx *job.Context, command, dir string, env map[string]string) (string, error)
	now    func() time.Time
}

// Factory constructs a build job from its pipeline configuration. The
// platform and architecture set come from the matrix entry the pipeline was
// assembled from.
func Factory(cfg job.Config) (job.Job, error) {
	platform, ok := cfg["platform"].(string)
	if !ok || platform == "" {
		return nil, fmt.Errorf("binwheel: config is missing the target platform")
	}
	archs, err := stringSlice(cfg["archs"])
	if err != nil {
		return nil, fmt.Errorf("binwheel: %s: %w", platform, err)
	}
	if len(archs) == 0 {
		return nil, fmt.Errorf("binwheel: %s: config has an empty architecture set", platform)
	}
	env, err := stringMap(cfg["env"])
	if err != nil {
		return nil, fmt.Errorf("binwheel: %s: %w", platform, err)
	}
	return &Job{
		platform: platform,
		archs:    archs,
		env:      env,
		runner:   runShell,
		now:      time.Now,
	}, nil
}

// Info implements job.Job.
func (j *Job) Info() job.Info {
	return job.Info{
		ID:          "binwheel",
		Name:        fmt.Sprintf("Binary packages (%s)", j.platform),
		Description: "Builds platform binary packages with the configured toolchain.",
	}
}

// Run invokes the binary build command and forwards every file it leaves in
// the job's output directory as a platform-tagged package.
func (j *Job) Run(ctx *job.Context) (job.Result, error) {
	if err := ctx.Validate(); err != nil {
		return job.Result{Status: job.StatusFailed}, err
	}
	command := ctx.Config.Commands.BinaryBuild
	if strings.TrimSpace(command) == "" {
		return job.Result{Status: job.StatusFailed},
			fmt.Errorf("binwheel %s: no binary_build command configured", j.platform)
	}
	outDir, err := ctx.OutputDir()
	if err != nil {
		return job.Result{Status: job.StatusFailed}, err
	}

	env := map[string]string{
		EnvPlatform: j.platform,
		EnvArchs:    strings.Join(j.archs, " "),
		EnvOutput:   outDir,
	}
	for key, value := range j.env {
		env[key] = value
	}

	ctx.Logger.Info("building binary packages",
		zap.String("platform", j.platform),
		zap.Strings("archs", j.archs))
	output, err := j.runner(ctx, command, ctx.Config.ProjectDir, env)
	if err != nil {
		return job.Result{Status: job.StatusFailed, Message: tail(output)},
			fmt.Errorf("binwheel %s: %w: %v", j.platform, job.ErrBuildFailure, err)
	}

	artifacts, err := j.scanOutput(outDir, ctx.InstanceID)
	if err != nil {
		return job.Result{Status: job.StatusFailed}, err
	}
	if len(artifacts) == 0 {
		return job.Result{Status: job.StatusFailed},
			fmt.Errorf("binwheel %s: %w: build produced no packages", j.platform, job.ErrBuildFailure)
	}
	return job.Result{
		Status:    job.StatusSucceeded,
		Message:   fmt.Sprintf("built %d %s packages", len(artifacts), j.platform),
		Artifacts: artifacts,
	}, nil
}

// scanOutput turns every regular file the toolchain left behind into a
// platform-tagged artifact owned by this job instance.
func (j *Job) scanOutput(outDir, instanceID string) ([]artifact.Artifact, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("binwheel %s: read output dir: %w", j.platform, err)
	}
	var artifacts []artifact.Artifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		art, err := artifact.FromFile(filepath.Join(outDir, entry.Name()), artifact.KindBinaryPackage, instanceID, j.now())
		if err != nil {
			return nil, fmt.Errorf("binwheel %s: %w", j.platform, err)
		}
		art.Platform = j.platform
		artifacts = append(artifacts, art)
	}
	return artifacts, nil
}

func runShell(ctx *job.Context, command, dir string, env map[string]string) (string, error) {
	return shell.Run(ctx.Ctx, command, dir, env)
}

// tail keeps the last chunk of tool output for the run record.
func tail(output string) string {
	const limit = 2048
	output = strings.TrimSpace(output)
	if len(output) > limit {
		output = output[len(output)-limit:]
	}
	return output
}

func stringSlice(value any) ([]string, error) {
	if value == nil {
		return nil, nil
	}
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("config archs must be a list of strings")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("config archs must be a list of strings")
		}
		out = append(out, s)
	}
	return out, nil
}

func stringMap(value any) (map[string]string, error) {
	if value == nil {
		return nil, nil
	}
	items, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("config env must be a string map")
	}
	out := make(map[string]string, len(items))
	for key, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("config env must be a string map")
		}
		out[key] = s
	}
	return out, nil
}
