package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/kingrea/slipway/internal/artifact"
	"github.com/kingrea/slipway/internal/job"
	"github.com/kingrea/slipway/internal/pipeline"
	"github.com/kingrea/slipway/internal/pipeline/resolver"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubJob runs a configurable function and records invocation counts.
type stubJob struct {
	info job.Info
	run  func(*job.Context) (job.Result, error)

	mu    sync.Mutex
	calls int
}

func (j *stubJob) Info() job.Info { return j.info }

func (j *stubJob) Run(ctx *job.Context) (job.Result, error) {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()
	if j.run == nil {
		return job.Result{Status: job.StatusSucceeded}, nil
	}
	return j.run(ctx)
}

func (j *stubJob) Calls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

func registryWith(t *testing.T, stubs map[string]*stubJob) *job.Registry {
	t.Helper()
	registry := job.NewRegistry()
	for id, stub := range stubs {
		stub := stub
		registry.MustRegister(id, func(job.Config) (job.Job, error) {
			return stub, nil
		})
	}
	return registry
}

func testContext(t *testing.T) *job.Context {
	t.Helper()
	return &job.Context{
		Ctx:     context.Background(),
		Staging: artifact.NewStaging(),
	}
}

func releaseDef() pipeline.Definition {
	return pipeline.Definition{
		ID: "release",
		Jobs: []pipeline.JobRef{
			{ID: "build-linux", JobID: "binwheel-linux"},
			{ID: "build-macos", JobID: "binwheel-macos"},
			{ID: "pure", JobID: "purewheel"},
			{ID: "publish", JobID: "publish", DependsOn: []string{"build-linux", "build-macos", "pure"}},
		},
	}
}

func TestRunExecutesJoinAfterAllUpstreamSucceed(t *testing.T) {
	stubs := map[string]*stubJob{
		"binwheel-linux": {info: job.Info{ID: "binwheel-linux", Name: "linux"}},
		"binwheel-macos": {info: job.Info{ID: "binwheel-macos", Name: "macos"}},
		"purewheel":      {info: job.Info{ID: "purewheel", Name: "pure"}},
		"publish":        {info: job.Info{ID: "publish", Name: "publish"}},
	}
	eng, err := New(registryWith(t, stubs), &MemoryStore{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	state, err := eng.Run(testContext(t), releaseDef())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if state.Status != StatusComplete {
		t.Fatalf("expected complete run, got %s (%s)", state.Status, state.StatusReason)
	}
	if got := stubs["publish"].Calls(); got != 1 {
		t.Fatalf("expected publish to run exactly once, got %d", got)
	}
}

func TestRunSkipsPublisherOnSingleBuildFailure(t *testing.T) {
	stubs := map[string]*stubJob{
		"binwheel-linux": {
			info: job.Info{ID: "binwheel-linux", Name: "linux"},
			run: func(*job.Context) (job.Result, error) {
				return job.Result{Status: job.StatusFailed}, fmt.Errorf("toolchain exit 1: %w", job.ErrBuildFailure)
			},
		},
		"binwheel-macos": {info: job.Info{ID: "binwheel-macos", Name: "macos"}},
		"purewheel":      {info: job.Info{ID: "purewheel", Name: "pure"}},
		"publish":        {info: job.Info{ID: "publish", Name: "publish"}},
	}
	eng, err := New(registryWith(t, stubs), &MemoryStore{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	state, err := eng.Run(testContext(t), releaseDef())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if state.Status != StatusFailed {
		t.Fatalf("expected failed run, got %s", state.Status)
	}
	if got := stubs["publish"].Calls(); got != 0 {
		t.Fatalf("publisher must not run after an upstream failure, ran %d times", got)
	}
	for _, node := range state.Nodes {
		if node.ID == "publish" && node.State != resolver.NodeStateSkipped {
			t.Fatalf("expected publish node skipped, got %s", node.State)
		}
	}
}

func TestRunCollectsArtifactsFromSucceededJobs(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/pkg.whl"
	if err := os.WriteFile(path, []byte("wheel"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	art, err := artifact.FromFile(path, artifact.KindBinaryPackage, "build-linux", time.Now())
	if err != nil {
		t.Fatalf("from file: %v", err)
	}
	stubs := map[string]*stubJob{
		"binwheel-linux": {
			info: job.Info{ID: "binwheel-linux", Name: "linux"},
			run: func(*job.Context) (job.Result, error) {
				return job.Result{Status: job.StatusSucceeded, Artifacts: []artifact.Artifact{art}}, nil
			},
		},
	}
	eng, err := New(registryWith(t, stubs), &MemoryStore{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	jctx := testContext(t)
	def := pipeline.Definition{
		ID:   "single",
		Jobs: []pipeline.JobRef{{ID: "build-linux", JobID: "binwheel-linux"}},
	}
	state, err := eng.Run(jctx, def)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if state.Status != StatusComplete {
		t.Fatalf("expected complete, got %s", state.Status)
	}
	if got := jctx.Staging.Len(); got != 1 {
		t.Fatalf("expected 1 staged artifact, got %d", got)
	}
	if run := state.Runs["build-linux"]; run.Artifacts != 1 {
		t.Fatalf("expected run record to count artifacts, got %+v", run)
	}
}

func TestRunRecordsSkippedGate(t *testing.T) {
	// A publisher that declines its gate reports skipped; the run as a whole
	// still completes.
	stubs := map[string]*stubJob{
		"binwheel-linux": {info: job.Info{ID: "binwheel-linux", Name: "linux"}},
		"publish": {
			info: job.Info{ID: "publish", Name: "publish"},
			run: func(*job.Context) (job.Result, error) {
				return job.Result{Status: job.StatusSkipped, Message: "not a tag push"}, nil
			},
		},
	}
	eng, err := New(registryWith(t, stubs), &MemoryStore{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	def := pipeline.Definition{
		ID: "release",
		Jobs: []pipeline.JobRef{
			{ID: "build-linux", JobID: "binwheel-linux"},
			{ID: "publish", JobID: "publish", DependsOn: []string{"build-linux"}},
		},
	}
	state, err := eng.Run(testContext(t), def)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if state.Status != StatusComplete {
		t.Fatalf("expected complete, got %s", state.Status)
	}
	if run := state.Runs["publish"]; run.Status != job.StatusSkipped {
		t.Fatalf("expected publish skipped, got %+v", run)
	}
}

func TestResumeDoesNotRerunFinishedJobs(t *testing.T) {
	store := &MemoryStore{}
	stubs := map[string]*stubJob{
		"binwheel-linux": {info: job.Info{ID: "binwheel-linux", Name: "linux"}},
		"purewheel":      {info: job.Info{ID: "purewheel", Name: "pure"}},
	}
	eng, err := New(registryWith(t, stubs), store)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	def := pipeline.Definition{
		ID: "partial",
		Jobs: []pipeline.JobRef{
			{ID: "build-linux", JobID: "binwheel-linux"},
			{ID: "pure", JobID: "purewheel"},
		},
	}
	if _, err := eng.Run(testContext(t), def); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := eng.Resume(testContext(t)); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := stubs["binwheel-linux"].Calls(); got != 1 {
		t.Fatalf("expected finished job to run once across resume, got %d", got)
	}
}
