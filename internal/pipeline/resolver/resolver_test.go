package resolver

import (
	"testing"

	"github.com/kingrea/slipway/internal/job"
	"github.com/kingrea/slipway/internal/pipeline"
)

type stubJob struct {
	info job.Info
}

func (j stubJob) Info() job.Info                   { return j.info }
func (j stubJob) Run(*job.Context) (job.Result, error) { return job.Result{Status: job.StatusSucceeded}, nil }

func stubRegistry(t *testing.T, ids ...string) *job.Registry {
	t.Helper()
	registry := job.NewRegistry()
	for _, id := range ids {
		id := id
		registry.MustRegister(id, func(job.Config) (job.Job, error) {
			return stubJob{info: job.Info{ID: id, Name: id}}, nil
		})
	}
	return registry
}

func releaseDef() pipeline.Definition {
	return pipeline.Definition{
		ID: "release",
		Jobs: []pipeline.JobRef{
			{ID: "build-linux", JobID: "binwheel"},
			{ID: "build-macos", JobID: "binwheel"},
			{ID: "pure", JobID: "purewheel"},
			{ID: "publish", JobID: "publish", DependsOn: []string{"build-linux", "build-macos", "pure"}},
		},
	}
}

func TestRefreshMarksIndependentJobsReady(t *testing.T) {
	res, err := New(releaseDef(), stubRegistry(t, "binwheel", "purewheel", "publish"))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	res.Refresh(nil)
	ready := res.Ready()
	if len(ready) != 3 {
		t.Fatalf("expected 3 ready nodes, got %d", len(ready))
	}
	node, _ := res.Node("publish")
	if node.State != NodeStateBlocked {
		t.Fatalf("expected publish blocked, got %s", node.State)
	}
	if len(node.BlockedBy) != 3 {
		t.Fatalf("unexpected blockers: %v", node.BlockedBy)
	}
}

func TestRefreshJoinCompletes(t *testing.T) {
	res, err := New(releaseDef(), stubRegistry(t, "binwheel", "purewheel", "publish"))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	res.Refresh(map[string]RunRecord{
		"build-linux": {Status: job.StatusSucceeded},
		"build-macos": {Status: job.StatusSucceeded},
		"pure":        {Status: job.StatusSucceeded},
	})
	node, _ := res.Node("publish")
	if node.State != NodeStateReady {
		t.Fatalf("expected publish ready once all upstream succeeded, got %s", node.State)
	}
}

func TestRefreshPropagatesFailureAsSkip(t *testing.T) {
	res, err := New(releaseDef(), stubRegistry(t, "binwheel", "purewheel", "publish"))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	// One build fails while the others succeed; the publisher must be
	// skipped, not blocked.
	res.Refresh(map[string]RunRecord{
		"build-linux": {Status: job.StatusFailed},
		"build-macos": {Status: job.StatusSucceeded},
		"pure":        {Status: job.StatusSucceeded},
	})
	node, _ := res.Node("publish")
	if node.State != NodeStateSkipped {
		t.Fatalf("expected publish skipped, got %s", node.State)
	}
	if len(node.SkippedBy) != 1 || node.SkippedBy[0] != "build-linux" {
		t.Fatalf("unexpected skip causes: %v", node.SkippedBy)
	}
}

func TestRefreshPropagatesSkipTransitively(t *testing.T) {
	def := pipeline.Definition{
		ID: "chain",
		Jobs: []pipeline.JobRef{
			// Declared out of topological order on purpose.
			{ID: "c", JobID: "publish", DependsOn: []string{"b"}},
			{ID: "a", JobID: "binwheel"},
			{ID: "b", JobID: "purewheel", DependsOn: []string{"a"}},
		},
	}
	res, err := New(def, stubRegistry(t, "binwheel", "purewheel", "publish"))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	res.Refresh(map[string]RunRecord{"a": {Status: job.StatusFailed}})
	b, _ := res.Node("b")
	c, _ := res.Node("c")
	if b.State != NodeStateSkipped || c.State != NodeStateSkipped {
		t.Fatalf("expected transitive skip, got b=%s c=%s", b.State, c.State)
	}
}

func TestQueueFiltersTargetsWithDependencies(t *testing.T) {
	res, err := New(releaseDef(), stubRegistry(t, "binwheel", "purewheel", "publish"))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	res.Refresh(nil)
	queue, err := res.Queue("pure")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != "pure" {
		t.Fatalf("unexpected queue: %v", queue)
	}
	if _, err := res.Queue("missing"); err == nil {
		t.Fatalf("expected unknown target to fail")
	}
}

func TestSettled(t *testing.T) {
	res, err := New(releaseDef(), stubRegistry(t, "binwheel", "purewheel", "publish"))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	res.Refresh(nil)
	if res.Settled() {
		t.Fatalf("fresh pipeline should not be settled")
	}
	res.Refresh(map[string]RunRecord{
		"build-linux": {Status: job.StatusFailed},
		"build-macos": {Status: job.StatusSucceeded},
		"pure":        {Status: job.StatusSucceeded},
	})
	if !res.Settled() {
		t.Fatalf("expected settled once publish is skipped and builds finished")
	}
}
