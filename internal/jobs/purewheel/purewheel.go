// Package purewheel builds the source archive and the portable package,
// installs the portable package, and runs the test suite against the
// installed copy. The job forwards its packages only when every step
// succeeds.
package purewheel

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

// Environment variables exported to the external tools.
const (
	EnvOutput = "SLIPWAY_OUTPUT"
	// EnvPackage carries the portable package path to the install command.
	EnvPackage = "SLIPWAY_PACKAGE"
)

// sourceSuffixes identify the platform-independent source archive among the
// build outputs; the remaining file is the installable portable package.
var sourceSuffixes = []string{".tar.gz", ".zip"}

// Job builds, installs, and tests the portable packages.
type Job struct {
	runner func(ctx *job.Context, command, dir string, env map[string]string) (string, error)
	now    func() time.Time
}

// Factory constructs the pure build job. It takes no pipeline configuration.
func Factory(job.Config) (job.Job, error) {
	return &Job{runner: runShell, now: time.Now}, nil
}

// Info implements job.Job.
func (j *Job) Info() job.Info {
	return job.Info{
		ID:          "purewheel",
		Name:        "Portable packages",
		Description: "Builds the source archive and portable package, then installs and tests.",
	}
}

// Run executes build, install, and test in order. A failure at any step
// forwards nothing: a portable package is only published once the suite has
// passed against the installed copy.
func (j *Job) Run(ctx *job.Context) (job.Result, error) {
	if err := ctx.Validate(); err != nil {
		return job.Result{Status: job.StatusFailed}, err
	}
	cmds := ctx.Config.Commands
	for _, step := range []struct {
		name    string
		command string
	}{
		{"pure_build", cmds.PureBuild},
		{"install", cmds.Install},
		{"test", cmds.Test},
	} {
		if strings.TrimSpace(step.command) == "" {
			return job.Result{Status: job.StatusFailed},
				fmt.Errorf("purewheel: no %s command configured", step.name)
		}
	}
	outDir, err := ctx.OutputDir()
	if err != nil {
		return job.Result{Status: job.StatusFailed}, err
	}

	ctx.Logger.Info("building portable packages")
	output, err := j.runner(ctx, cmds.PureBuild, ctx.Config.ProjectDir, map[string]string{EnvOutput: outDir})
	if err != nil {
		return job.Result{Status: job.StatusFailed, Message: tail(output)},
			fmt.Errorf("purewheel: %w: %v", job.ErrBuildFailure, err)
	}

	source, portable, err := j.classifyOutput(outDir, ctx.InstanceID)
	if err != nil {
		return job.Result{Status: job.StatusFailed}, err
	}

	ctx.Logger.Info("installing portable package", zap.String("package", portable.Name()))
	output, err = j.runner(ctx, cmds.Install, ctx.Config.ProjectDir, map[string]string{EnvPackage: portable.Path})
	if err != nil {
		return job.Result{Status: job.StatusFailed, Message: tail(output)},
			fmt.Errorf("purewheel: install %s: %w: %v", portable.Name(), job.ErrBuildFailure, err)
	}

	ctx.Logger.Info("running test suite against installed package")
	output, err = j.runner(ctx, cmds.Test, ctx.Config.ProjectDir, nil)
	if err != nil {
		return job.Result{Status: job.StatusFailed, Message: tail(output)},
			fmt.Errorf("purewheel: %w: %v", job.ErrTestFailure, err)
	}

	return job.Result{
		Status:    job.StatusSucceeded,
		Message:   fmt.Sprintf("built and verified %s and %s", source.Name(), portable.Name()),
		Artifacts: []artifact.Artifact{source, portable},
	}, nil
}

// classifyOutput expects the build to leave exactly one source archive and
// exactly one installable package in the output directory.
func (j *Job) classifyOutput(outDir, instanceID string) (source, portable artifact.Artifact, err error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return source, portable, fmt.Errorf("purewheel: read output dir: %w", err)
	}
	var sources, portables []artifact.Artifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		kind := artifact.KindBinaryPackage
		if isSourceArchive(entry.Name()) {
			kind = artifact.KindSourcePackage
		}
		art, ferr := artifact.FromFile(filepath.Join(outDir, entry.Name()), kind, instanceID, j.now())
		if ferr != nil {
			return source, portable, fmt.Errorf("purewheel: %w", ferr)
		}
		if kind == artifact.KindSourcePackage {
			sources = append(sources, art)
		} else {
			portables = append(portables, art)
		}
	}
	if len(sources) != 1 || len(portables) != 1 {
		return source, portable, fmt.Errorf(
			"purewheel: %w: expected one source archive and one portable package, found %d and %d",
			job.ErrBuildFailure, len(sources), len(portables))
	}
	return sources[0], portables[0], nil
}

func isSourceArchive(name string) bool {
	for _, suffix := range sourceSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func runShell(ctx *job.Context, command, dir string, env map[string]string) (string, error) {
	return shell.Run(ctx.Ctx, command, dir, env)
}

func tail(output string) string {
	const limit = 2048
	output = strings.TrimSpace(output)
	if len(output) > limit {
		output = output[len(output)-limit:]
	}
	return output
}
