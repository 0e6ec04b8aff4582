// Package engine drives a pipeline run to completion: it evaluates the
// dependency graph, dispatches runnable jobs in parallel, records their
// outcomes, and persists a state snapshot after every change. The publisher
// join falls out of the graph: a job with edges from every build only
// becomes runnable once all of them succeeded, and is skipped the moment
// any of them fails.
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingrea/slipway/internal/job"
	"github.com/kingrea/slipway/internal/pipeline"
	"github.com/kingrea/slipway/internal/pipeline/resolver"
	"github.com/kingrea/slipway/internal/pipeline/scheduler"
)

// Engine coordinates the resolver and scheduler while persisting run state.
type Engine struct {
	registry *job.Registry
	repo     StateStore
	clock    func() time.Time
	newRunID func() string
	logger   *zap.Logger
}

// Option customizes the engine instance.
type Option func(*Engine)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRunIDGenerator overrides run ID generation.
func WithRunIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newRunID = gen
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New wires a pipeline engine to the job registry and persistence store.
func New(registry *job.Registry, repo StateStore, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("pipeline engine: job registry is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("pipeline engine: state store is required")
	}
	engine := &Engine{
		registry: registry,
		repo:     repo,
		clock:    time.Now,
		newRunID: uuid.NewString,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// outcome travels from a job goroutine back to the dispatch loop.
type outcome struct {
	id         string
	result     job.Result
	err        error
	startedAt  time.Time
	finishedAt time.Time
}

// Run executes the pipeline definition from scratch and blocks until every
// node reaches a terminal state. No job is ever retried; a failure settles
// its entire downstream cone as skipped.
func (e *Engine) Run(jctx *job.Context, def pipeline.Definition) (State, error) {
	return e.execute(jctx, def, e.newRunID(), e.clock(), map[string]JobRun{})
}

// Resume reloads persisted state and continues the run, preserving recorded
// job outcomes. Finished jobs are not re-executed.
func (e *Engine) Resume(jctx *job.Context) (State, error) {
	current, err := e.repo.Load()
	if err != nil {
		return State{}, err
	}
	return e.execute(jctx, current.Definition, current.RunID, current.StartedAt, cloneRuns(current.Runs))
}

// View returns the last persisted snapshot without recomputing anything.
func (e *Engine) View() (State, error) {
	return e.repo.Load()
}

func (e *Engine) execute(jctx *job.Context, def pipeline.Definition, runID string, startedAt time.Time, runs map[string]JobRun) (State, error) {
	if err := jctx.Validate(); err != nil {
		return State{}, err
	}
	normalized, err := def.Normalized()
	if err != nil {
		return State{}, err
	}
	res, err := resolver.New(normalized, e.registry)
	if err != nil {
		return State{}, err
	}
	sched, err := scheduler.New(res)
	if err != nil {
		return State{}, err
	}

	results := make(chan outcome, len(normalized.Jobs))
	running := map[string]struct{}{}

	for {
		res.Refresh(runRecords(runs))
		batch, err := sched.Runnable(scheduler.RunnableRequest{
			MaxParallel: normalized.Runtime.MaxParallel,
			Running:     keys(running),
		})
		if err != nil {
			return State{}, err
		}
		for _, node := range batch.Nodes {
			running[node.ID] = struct{}{}
			e.logger.Info("dispatching job", zap.String("run", runID), zap.String("job", node.ID))
			go e.runJob(jctx, node, results)
		}

		state := e.snapshot(res, normalized, runID, jctx, batch, runs, running, startedAt)
		if err := e.repo.Save(state); err != nil {
			return State{}, err
		}

		if len(running) == 0 {
			if res.Settled() {
				return state, nil
			}
			if len(batch.Nodes) == 0 {
				state.Status = StatusBlocked
				state.StatusReason = "no job is runnable and none is running"
				if err := e.repo.Save(state); err != nil {
					return State{}, err
				}
				return state, fmt.Errorf("pipeline engine: run %s is blocked", runID)
			}
		}

		out := <-results
		delete(running, out.id)
		record := e.recordOutcome(jctx, out)
		runs[out.id] = record
	}
}

// runJob executes one job in its own goroutine.
func (e *Engine) runJob(jctx *job.Context, node *resolver.Node, results chan<- outcome) {
	started := e.clock()
	result, err := node.Job.Run(jctx.ForInstance(node.ID))
	results <- outcome{
		id:         node.ID,
		result:     result,
		err:        err,
		startedAt:  started,
		finishedAt: e.clock(),
	}
}

// recordOutcome converts a job outcome into a persisted run record and, on
// success, forwards the job's artifacts into the staging collection. A failed
// job forwards nothing.
func (e *Engine) recordOutcome(jctx *job.Context, out outcome) JobRun {
	status := out.result.Status
	if out.err != nil {
		status = job.StatusFailed
	}
	if status == "" {
		status = job.StatusSucceeded
	}
	record := JobRun{
		Status:     status,
		Message:    out.result.Message,
		StartedAt:  out.startedAt,
		FinishedAt: out.finishedAt,
	}
	if out.err != nil {
		record.Error = out.err.Error()
	}
	if status == job.StatusSucceeded && len(out.result.Artifacts) > 0 {
		if err := jctx.Staging.Collect(out.id, out.result.Artifacts); err != nil {
			record.Status = job.StatusFailed
			record.Error = err.Error()
			e.logger.Error("staging collect failed", zap.String("job", out.id), zap.Error(err))
			return record
		}
		record.Artifacts = len(out.result.Artifacts)
	}
	switch record.Status {
	case job.StatusSucceeded:
		e.logger.Info("job succeeded", zap.String("job", out.id), zap.Int("artifacts", record.Artifacts))
	case job.StatusSkipped:
		e.logger.Info("job skipped", zap.String("job", out.id), zap.String("message", record.Message))
	default:
		e.logger.Error("job failed", zap.String("job", out.id), zap.String("error", record.Error))
	}
	return record
}

func (e *Engine) snapshot(res *resolver.Resolver, def pipeline.Definition, runID string, jctx *job.Context, batch scheduler.RunnableBatch, runs map[string]JobRun, running map[string]struct{}, startedAt time.Time) State {
	nodes := summarizeNodes(res, runs)
	status, reason := deriveStatus(nodes, runs, running)
	return State{
		RunID:        runID,
		PipelineID:   def.ID,
		Definition:   def.Clone(),
		Trigger:      jctx.Trigger,
		Status:       status,
		StatusReason: reason,
		Nodes:        nodes,
		Runnable:     nodeIDs(batch.Nodes),
		Skipped:      cloneSkipped(batch.Skipped),
		Runs:         cloneRuns(runs),
		StartedAt:    startedAt,
		UpdatedAt:    e.clock(),
	}
}

func summarizeNodes(res *resolver.Resolver, runs map[string]JobRun) []JobStatus {
	nodes := res.Nodes()
	result := make([]JobStatus, 0, len(nodes))
	for _, node := range nodes {
		info := node.Job.Info()
		status := JobStatus{
			ID:           node.ID,
			JobID:        node.Ref.JobID,
			Name:         pickName(node.Ref, info),
			Description:  node.Ref.Description,
			State:        node.State,
			Dependencies: cloneStrings(node.Dependencies),
			Dependents:   cloneStrings(node.Dependents),
			BlockedBy:    cloneStrings(node.BlockedBy),
			SkippedBy:    cloneStrings(node.SkippedBy),
		}
		if run, ok := runs[node.ID]; ok {
			copyRun := run
			status.LastRun = &copyRun
		}
		result = append(result, status)
	}
	return result
}

func pickName(ref pipeline.JobRef, info job.Info) string {
	if ref.Name != "" {
		return ref.Name
	}
	if info.Name != "" {
		return info.Name
	}
	return ref.InstanceID()
}

func deriveStatus(nodes []JobStatus, runs map[string]JobRun, running map[string]struct{}) (Status, string) {
	for id, run := range runs {
		if run.Status == job.StatusFailed {
			return StatusFailed, fmt.Sprintf("%s failed", id)
		}
	}
	settled := true
	for _, node := range nodes {
		if !node.State.Terminal() {
			settled = false
			break
		}
	}
	if settled {
		return StatusComplete, ""
	}
	return StatusRunning, ""
}

func runRecords(runs map[string]JobRun) map[string]resolver.RunRecord {
	if len(runs) == 0 {
		return nil
	}
	out := make(map[string]resolver.RunRecord, len(runs))
	for id, run := range runs {
		out[id] = resolver.RunRecord{Status: run.Status}
	}
	return out
}

func nodeIDs(nodes []*resolver.Node) []string {
	if len(nodes) == 0 {
		return nil
	}
	ids := make([]string, len(nodes))
	for i, node := range nodes {
		ids[i] = node.ID
	}
	return ids
}

func keys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
