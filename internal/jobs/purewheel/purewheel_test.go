package purewheel

import (
	"context"
	"errors"
	"testing"

	"github.com/kingrea/slipway/internal/artifact"
	"github.com/kingrea/slipway/internal/config"
	"github.com/kingrea/slipway/internal/job"
	"github.com/kingrea/slipway/internal/trigger"
)

const buildBoth = `touch "$SLIPWAY_OUTPUT/curveforge-1.2.3.tar.gz" "$SLIPWAY_OUTPUT/curveforge-1.2.3-py3-none-any.whl"`

func newContext(t *testing.T, cmds config.Commands) *job.Context {
	t.Helper()
	ctx := &job.Context{
		Ctx: context.Background(),
		Trigger: trigger.Context{
			Event: trigger.EventBranchPush,
			Ref:   "main",
		},
		Config: config.Config{
			Project:    "curveforge",
			ProjectDir: t.TempDir(),
			Commands:   cmds,
		},
		Staging: artifact.NewStaging(),
	}
	return ctx.ForInstance("pure")
}

func newJob(t *testing.T) job.Job {
	t.Helper()
	built, err := Factory(nil)
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	return built
}

func TestRunForwardsSourceAndPortablePackages(t *testing.T) {
	ctx := newContext(t, config.Commands{
		PureBuild: buildBoth,
		Install:   `test -n "$SLIPWAY_PACKAGE"`,
		Test:      "true",
	})
	result, err := newJob(t).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != job.StatusSucceeded {
		t.Fatalf("status = %s, want %s", result.Status, job.StatusSucceeded)
	}
	if len(result.Artifacts) != 2 {
		t.Fatalf("artifacts = %d, want 2", len(result.Artifacts))
	}
	if result.Artifacts[0].Kind != artifact.KindSourcePackage {
		t.Errorf("first artifact kind = %s, want %s", result.Artifacts[0].Kind, artifact.KindSourcePackage)
	}
	if result.Artifacts[1].Kind != artifact.KindBinaryPackage {
		t.Errorf("second artifact kind = %s, want %s", result.Artifacts[1].Kind, artifact.KindBinaryPackage)
	}
	for _, art := range result.Artifacts {
		if art.JobID != "pure" {
			t.Errorf("%s job = %q, want pure", art.Name(), art.JobID)
		}
		if art.Platform != "" {
			t.Errorf("%s platform = %q, want empty", art.Name(), art.Platform)
		}
	}
}

func TestRunInstallReceivesPortablePackagePath(t *testing.T) {
	ctx := newContext(t, config.Commands{
		PureBuild: buildBoth,
		Install:   `case "$SLIPWAY_PACKAGE" in *-py3-none-any.whl) true ;; *) exit 1 ;; esac`,
		Test:      "true",
	})
	if _, err := newJob(t).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunTestFailureForwardsNothing(t *testing.T) {
	ctx := newContext(t, config.Commands{
		PureBuild: buildBoth,
		Install:   "true",
		Test:      "echo 2 tests failed; exit 1",
	})
	result, err := newJob(t).Run(ctx)
	if !errors.Is(err, job.ErrTestFailure) {
		t.Fatalf("err = %v, want test failure", err)
	}
	if result.Status != job.StatusFailed {
		t.Fatalf("status = %s, want %s", result.Status, job.StatusFailed)
	}
	if len(result.Artifacts) != 0 {
		t.Fatalf("a failed run must forward no artifacts, got %d", len(result.Artifacts))
	}
}

func TestRunInstallFailureIsBuildFailure(t *testing.T) {
	ctx := newContext(t, config.Commands{
		PureBuild: buildBoth,
		Install:   "exit 1",
		Test:      "true",
	})
	if _, err := newJob(t).Run(ctx); !errors.Is(err, job.ErrBuildFailure) {
		t.Fatalf("err = %v, want build failure", err)
	}
}

func TestRunRejectsUnexpectedOutputShape(t *testing.T) {
	cases := []struct {
		name    string
		command string
	}{
		{"no source archive", `touch "$SLIPWAY_OUTPUT/curveforge.whl"`},
		{"two portable packages", buildBoth + ` && touch "$SLIPWAY_OUTPUT/extra.whl"`},
		{"nothing built", "true"},
	}
	for _, tc := range cases {
		ctx := newContext(t, config.Commands{PureBuild: tc.command, Install: "true", Test: "true"})
		if _, err := newJob(t).Run(ctx); !errors.Is(err, job.ErrBuildFailure) {
			t.Errorf("%s: err = %v, want build failure", tc.name, err)
		}
	}
}
