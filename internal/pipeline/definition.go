// Package pipeline declares executable pipeline definitions: the job list,
// the dependency graph between job instances, and runtime constraints.
package pipeline

import (
	"fmt"
	"sort"
)

// DependencyGraph maps pipeline-scoped job identifiers to the job instances
// they depend on. Keys are aliases corresponding to JobRef.InstanceID().
type DependencyGraph map[string][]string

// Clone returns a deep copy of the graph.
func (g DependencyGraph) Clone() DependencyGraph {
	if len(g) == 0 {
		return nil
	}
	out := make(DependencyGraph, len(g))
	for key, deps := range g {
		if len(deps) == 0 {
			out[key] = nil
			continue
		}
		clone := make([]string, len(deps))
		copy(clone, deps)
		out[key] = clone
	}
	return out
}

// JobRef places one job instance inside a pipeline definition.
type JobRef struct {
	// ID is the pipeline-scoped instance identifier. Defaults to JobID when
	// the job appears only once.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`
	// JobID names the registered job factory.
	JobID       string         `json:"job_id" yaml:"job_id"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	// DependsOn lists instance IDs that must complete first. Merged into the
	// definition graph during normalization.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// InstanceID returns the pipeline-scoped identifier for this reference.
func (r JobRef) InstanceID() string {
	if r.ID != "" {
		return r.ID
	}
	return r.JobID
}

// Validate ensures the reference is well-formed.
func (r JobRef) Validate() error {
	if r.JobID == "" {
		return fmt.Errorf("pipeline: job_id is required for %s", r.InstanceID())
	}
	return nil
}

// Clone returns a deep copy of the reference.
func (r JobRef) Clone() JobRef {
	clone := r
	if len(r.Config) > 0 {
		clone.Config = make(map[string]any, len(r.Config))
		for k, v := range r.Config {
			clone.Config[k] = v
		}
	}
	if len(r.DependsOn) > 0 {
		clone.DependsOn = make([]string, len(r.DependsOn))
		copy(clone.DependsOn, r.DependsOn)
	}
	return clone
}

// RuntimeConfig configures execution constraints for a pipeline.
type RuntimeConfig struct {
	MaxParallel int `json:"max_parallel,omitempty" yaml:"max_parallel,omitempty"`
}

func (cfg RuntimeConfig) normalized() RuntimeConfig {
	if cfg.MaxParallel < 0 {
		cfg.MaxParallel = 0
	}
	return cfg
}

func (cfg RuntimeConfig) validate() error {
	if cfg.MaxParallel < 0 {
		return fmt.Errorf("max_parallel must be >= 0")
	}
	return nil
}

// Definition declares an executable pipeline graph.
type Definition struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Jobs        []JobRef          `json:"jobs" yaml:"jobs"`
	Graph       DependencyGraph   `json:"graph,omitempty" yaml:"graph,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Runtime     RuntimeConfig     `json:"runtime,omitempty" yaml:"runtime,omitempty"`
}

// Clone returns a deep copy of the definition.
func (def Definition) Clone() Definition {
	clone := Definition{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Metadata:    cloneStringMap(def.Metadata),
		Graph:       def.Graph.Clone(),
		Runtime:     def.Runtime,
	}
	if len(def.Jobs) > 0 {
		clone.Jobs = make([]JobRef, len(def.Jobs))
		for i, ref := range def.Jobs {
			clone.Jobs[i] = ref.Clone()
		}
	}
	return clone
}

// Validate ensures the definition is self-consistent.
func (def Definition) Validate() error {
	if def.ID == "" {
		return fmt.Errorf("pipeline: id is required")
	}
	if len(def.Jobs) == 0 {
		return fmt.Errorf("pipeline %s: at least one job is required", def.ID)
	}
	seen := map[string]struct{}{}
	for idx, ref := range def.Jobs {
		if err := ref.Validate(); err != nil {
			return fmt.Errorf("pipeline %s job[%d]: %w", def.ID, idx, err)
		}
		instanceID := ref.InstanceID()
		if _, exists := seen[instanceID]; exists {
			return fmt.Errorf("pipeline %s: duplicate job instance id %s", def.ID, instanceID)
		}
		seen[instanceID] = struct{}{}
	}
	for key, deps := range def.Graph {
		if _, ok := seen[key]; !ok {
			return fmt.Errorf("pipeline %s: graph references unknown job %s", def.ID, key)
		}
		for _, dep := range deps {
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("pipeline %s: graph dependency %s -> %s references unknown job", def.ID, key, dep)
			}
		}
	}
	if err := def.Runtime.validate(); err != nil {
		return fmt.Errorf("pipeline %s runtime: %w", def.ID, err)
	}
	if err := def.checkAcyclic(); err != nil {
		return err
	}
	return nil
}

// Normalized clones the definition, merges inline job dependencies into the
// graph, and validates the result.
func (def Definition) Normalized() (Definition, error) {
	clone := def.Clone()
	if clone.Graph == nil {
		clone.Graph = DependencyGraph{}
	}
	for _, ref := range clone.Jobs {
		id := ref.InstanceID()
		clone.Graph[id] = mergeDependencies(clone.Graph[id], ref.DependsOn)
	}
	clone.Runtime = clone.Runtime.normalized()
	if err := clone.Validate(); err != nil {
		return Definition{}, err
	}
	return clone, nil
}

// JobIDs returns the pipeline-scoped identifiers in declaration order.
func (def Definition) JobIDs() []string {
	ids := make([]string, 0, len(def.Jobs))
	for _, ref := range def.Jobs {
		ids = append(ids, ref.InstanceID())
	}
	return ids
}

// Dependencies returns the declared dependencies for one job instance.
func (def Definition) Dependencies(id string) []string {
	deps := def.Graph[id]
	if len(deps) == 0 {
		return nil
	}
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// checkAcyclic rejects dependency cycles via iterative DFS.
func (def Definition) checkAcyclic() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[string]int{}
	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("pipeline %s: dependency cycle through %s", def.ID, id)
		case done:
			return nil
		}
		state[id] = visiting
		for _, dep := range def.Graph[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}
	for _, ref := range def.Jobs {
		if err := visit(ref.InstanceID()); err != nil {
			return err
		}
	}
	return nil
}

func mergeDependencies(existing, extra []string) []string {
	if len(extra) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing))
	merged := make([]string, 0, len(existing)+len(extra))
	for _, dep := range existing {
		if _, ok := seen[dep]; ok {
			continue
		}
		seen[dep] = struct{}{}
		merged = append(merged, dep)
	}
	for _, dep := range extra {
		if _, ok := seen[dep]; ok {
			continue
		}
		seen[dep] = struct{}{}
		merged = append(merged, dep)
	}
	sort.Strings(merged)
	return merged
}

func cloneStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
