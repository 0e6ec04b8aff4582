package scheduler

import (
	"testing"

	"github.com/kingrea/slipway/internal/job"
	"github.com/kingrea/slipway/internal/pipeline"
	"github.com/kingrea/slipway/internal/pipeline/resolver"
)

type stubJob struct {
	info job.Info
}

func (j stubJob) Info() job.Info                   { return j.info }
func (j stubJob) Run(*job.Context) (job.Result, error) { return job.Result{Status: job.StatusSucceeded}, nil }

func buildResolver(t *testing.T, runs map[string]resolver.RunRecord) *resolver.Resolver {
	t.Helper()
	registry := job.NewRegistry()
	for _, id := range []string{"binwheel", "purewheel", "publish"} {
		id := id
		registry.MustRegister(id, func(job.Config) (job.Job, error) {
			return stubJob{info: job.Info{ID: id, Name: id}}, nil
		})
	}
	def := pipeline.Definition{
		ID: "release",
		Jobs: []pipeline.JobRef{
			{ID: "build-linux", JobID: "binwheel"},
			{ID: "build-macos", JobID: "binwheel"},
			{ID: "pure", JobID: "purewheel"},
			{ID: "publish", JobID: "publish", DependsOn: []string{"build-linux", "build-macos", "pure"}},
		},
	}
	res, err := resolver.New(def, registry)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	res.Refresh(runs)
	return res
}

func TestSchedulerReturnsParallelReadyNodes(t *testing.T) {
	sched, err := New(buildResolver(t, nil))
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	batch, err := sched.Runnable(RunnableRequest{})
	if err != nil {
		t.Fatalf("runnable: %v", err)
	}
	if len(batch.Nodes) != 3 {
		t.Fatalf("expected 3 runnable nodes, got %d", len(batch.Nodes))
	}
	reason, ok := batch.Skipped["publish"]
	if !ok || reason.Reason != SkipReasonNotReady {
		t.Fatalf("expected publish skipped as not-ready, got %+v", batch.Skipped)
	}
}

func TestSchedulerHonorsMaxParallel(t *testing.T) {
	sched, err := New(buildResolver(t, nil))
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	batch, err := sched.Runnable(RunnableRequest{MaxParallel: 2, Running: []string{"build-linux"}})
	if err != nil {
		t.Fatalf("runnable: %v", err)
	}
	if len(batch.Nodes) != 1 {
		t.Fatalf("expected 1 node under max parallel, got %d", len(batch.Nodes))
	}
	batch, err = sched.Runnable(RunnableRequest{MaxParallel: 1, Running: []string{"build-linux"}})
	if err != nil {
		t.Fatalf("runnable: %v", err)
	}
	if len(batch.Nodes) != 0 {
		t.Fatalf("expected no nodes at capacity, got %d", len(batch.Nodes))
	}
	if len(batch.Skipped) == 0 {
		t.Fatalf("expected a concurrency skip reason")
	}
}

func TestSchedulerSkipsRunningJobs(t *testing.T) {
	sched, err := New(buildResolver(t, nil))
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	batch, err := sched.Runnable(RunnableRequest{Running: []string{"pure"}})
	if err != nil {
		t.Fatalf("runnable: %v", err)
	}
	for _, node := range batch.Nodes {
		if node.ID == "pure" {
			t.Fatalf("running job dispatched twice")
		}
	}
	if reason := batch.Skipped["pure"]; reason.Reason != SkipReasonActive {
		t.Fatalf("expected already-running skip for pure, got %+v", reason)
	}
}

func TestSchedulerDispatchesJoinAfterUpstreamSuccess(t *testing.T) {
	sched, err := New(buildResolver(t, map[string]resolver.RunRecord{
		"build-linux": {Status: job.StatusSucceeded},
		"build-macos": {Status: job.StatusSucceeded},
		"pure":        {Status: job.StatusSucceeded},
	}))
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	batch, err := sched.Runnable(RunnableRequest{})
	if err != nil {
		t.Fatalf("runnable: %v", err)
	}
	if len(batch.Nodes) != 1 || batch.Nodes[0].ID != "publish" {
		t.Fatalf("expected only publish runnable, got %v", batch.Nodes)
	}
}
