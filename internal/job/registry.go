package job

import (
	"fmt"
	"sort"
	"sync"
)

// Config represents job-specific configuration (opaque to the runtime).
type Config map[string]any

// Factory constructs a job with the provided configuration.
type Factory func(Config) (Job, error)

// Registry maintains known job factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register installs a job factory. Returns an error if the ID already exists.
func (r *Registry) Register(id string, factory Factory) error {
	if id == "" {
		return fmt.Errorf("job: id is required")
	}
	if factory == nil {
		return fmt.Errorf("job: factory is required for %s", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("job: %s already registered", id)
	}
	r.factories[id] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(id string, factory Factory) {
	if err := r.Register(id, factory); err != nil {
		panic(err)
	}
}

// Resolve constructs a job by ID.
func (r *Registry) Resolve(id string, cfg Config) (Job, error) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("job: unknown id %s", id)
	}
	resolved, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	if err := resolved.Info().Validate(); err != nil {
		return nil, err
	}
	return resolved, nil
}

// IDs returns a sorted list of registered job identifiers.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
