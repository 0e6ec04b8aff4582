// Package resolver evaluates the pipeline dependency graph against run
// results. It computes each node's readiness and propagates upstream
// failures: the moment any dependency fails, every transitive dependent is
// marked skipped rather than left waiting.
package resolver

import (
	"fmt"
	"sort"

	"github.com/kingrea/slipway/internal/job"
	"github.com/kingrea/slipway/internal/pipeline"
)

// NodeState represents the resolver's understanding of a job's readiness.
type NodeState string

const (
	NodeStateUnknown NodeState = "unknown"
	// NodeStateReady means every dependency completed and the job may run.
	NodeStateReady NodeState = "ready"
	// NodeStateBlocked means at least one dependency has not finished yet.
	NodeStateBlocked NodeState = "blocked"
	// NodeStateComplete means the job ran and succeeded.
	NodeStateComplete NodeState = "complete"
	// NodeStateFailed means the job ran and failed.
	NodeStateFailed NodeState = "failed"
	// NodeStateSkipped means an upstream failure (or an explicit skip)
	// short-circuited the job. Fail-fast join: skips propagate downstream.
	NodeStateSkipped NodeState = "skipped"
)

// Terminal reports whether the state can no longer change within this run.
func (s NodeState) Terminal() bool {
	switch s {
	case NodeStateComplete, NodeStateFailed, NodeStateSkipped:
		return true
	}
	return false
}

// RunRecord is the resolver's view of a finished job execution.
type RunRecord struct {
	Status job.Status
}

// Node captures a pipeline job instance plus its dependency metadata.
type Node struct {
	ID           string
	Ref          pipeline.JobRef
	Job          job.Job
	Dependencies []string
	Dependents   []string

	State NodeState
	// BlockedBy lists unfinished dependencies while blocked.
	BlockedBy []string
	// SkippedBy lists the upstream failures that caused a skip.
	SkippedBy []string
}

// Resolver builds and evaluates the pipeline dependency graph.
type Resolver struct {
	definition pipeline.Definition
	nodes      map[string]*Node
	orderedIDs []string
}

// New constructs a resolver for the provided definition. Jobs are
// instantiated via the registry immediately so downstream code can run them.
func New(def pipeline.Definition, registry *job.Registry) (*Resolver, error) {
	if registry == nil {
		return nil, fmt.Errorf("pipeline: job registry is required")
	}
	normalized, err := def.Normalized()
	if err != nil {
		return nil, err
	}
	nodes := make(map[string]*Node, len(normalized.Jobs))
	ordered := make([]string, 0, len(normalized.Jobs))
	for _, ref := range normalized.Jobs {
		id := ref.InstanceID()
		resolved, err := registry.Resolve(ref.JobID, job.Config(ref.Config))
		if err != nil {
			return nil, fmt.Errorf("pipeline %s job %s: %w", normalized.ID, id, err)
		}
		node := &Node{
			ID:           id,
			Ref:          ref,
			Job:          resolved,
			Dependencies: normalized.Dependencies(id),
			State:        NodeStateUnknown,
		}
		nodes[id] = node
		ordered = append(ordered, id)
	}
	for _, node := range nodes {
		for _, depID := range node.Dependencies {
			dep, ok := nodes[depID]
			if !ok {
				return nil, fmt.Errorf("pipeline %s: dependency %s referenced by %s not declared", normalized.ID, depID, node.ID)
			}
			dep.Dependents = append(dep.Dependents, node.ID)
		}
	}
	for _, node := range nodes {
		if len(node.Dependents) > 1 {
			sort.Strings(node.Dependents)
		}
	}
	return &Resolver{
		definition: normalized,
		nodes:      nodes,
		orderedIDs: ordered,
	}, nil
}

// Definition returns a clone of the resolver's pipeline definition.
func (r *Resolver) Definition() pipeline.Definition {
	return r.definition.Clone()
}

// Nodes returns the nodes in pipeline declaration order.
func (r *Resolver) Nodes() []*Node {
	out := make([]*Node, 0, len(r.orderedIDs))
	for _, id := range r.orderedIDs {
		out = append(out, r.nodes[id])
	}
	return out
}

// Node retrieves a specific job node by pipeline instance ID.
func (r *Resolver) Node(id string) (*Node, bool) {
	node, ok := r.nodes[id]
	return node, ok
}

// Refresh re-evaluates node states from the supplied run records. Nodes with
// a record adopt its outcome; everything else derives from its dependencies.
func (r *Resolver) Refresh(runs map[string]RunRecord) {
	for _, id := range r.orderedIDs {
		node := r.nodes[id]
		node.BlockedBy = nil
		node.SkippedBy = nil
		if run, ok := runs[id]; ok {
			switch run.Status {
			case job.StatusSucceeded:
				node.State = NodeStateComplete
			case job.StatusSkipped:
				node.State = NodeStateSkipped
			default:
				node.State = NodeStateFailed
			}
			continue
		}
		node.State = NodeStateUnknown
	}
	// Dependencies are evaluated before their dependents; recursion is safe
	// because definitions validate as acyclic.
	var evaluate func(id string) NodeState
	evaluate = func(id string) NodeState {
		node := r.nodes[id]
		if node.State != NodeStateUnknown {
			return node.State
		}
		var blockers, failures []string
		for _, depID := range node.Dependencies {
			switch evaluate(depID) {
			case NodeStateComplete:
			case NodeStateFailed, NodeStateSkipped:
				failures = append(failures, depID)
			default:
				blockers = append(blockers, depID)
			}
		}
		switch {
		case len(failures) > 0:
			node.State = NodeStateSkipped
			node.SkippedBy = failures
		case len(blockers) > 0:
			node.State = NodeStateBlocked
			node.BlockedBy = blockers
		default:
			node.State = NodeStateReady
		}
		return node.State
	}
	for _, id := range r.orderedIDs {
		evaluate(id)
	}
}

// Ready returns all currently runnable nodes in declaration order.
func (r *Resolver) Ready() []*Node {
	var ready []*Node
	for _, id := range r.orderedIDs {
		if node := r.nodes[id]; node.State == NodeStateReady {
			ready = append(ready, node)
		}
	}
	return ready
}

// Queue returns incomplete nodes in declaration order. When targets are
// given, only those instances and their transitive dependencies appear.
func (r *Resolver) Queue(targets ...string) ([]*Node, error) {
	include := map[string]struct{}{}
	if len(targets) == 0 {
		for _, id := range r.orderedIDs {
			include[id] = struct{}{}
		}
	} else {
		var add func(id string) error
		add = func(id string) error {
			if _, ok := include[id]; ok {
				return nil
			}
			node, exists := r.nodes[id]
			if !exists {
				return fmt.Errorf("pipeline %s: unknown target %s", r.definition.ID, id)
			}
			include[id] = struct{}{}
			for _, dep := range node.Dependencies {
				if err := add(dep); err != nil {
					return err
				}
			}
			return nil
		}
		for _, target := range targets {
			if err := add(target); err != nil {
				return nil, err
			}
		}
	}
	var queue []*Node
	for _, id := range r.orderedIDs {
		node := r.nodes[id]
		if _, ok := include[id]; !ok {
			continue
		}
		if node.State.Terminal() {
			continue
		}
		queue = append(queue, node)
	}
	return queue, nil
}

// Settled reports whether every node reached a terminal state.
func (r *Resolver) Settled() bool {
	for _, node := range r.nodes {
		if !node.State.Terminal() {
			return false
		}
	}
	return true
}
