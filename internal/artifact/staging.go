package artifact

import (
	"fmt"
	"sync"
	"time"
)

// Staging accumulates artifacts from producing jobs. Contributions are keyed
// by the producing job: collecting for the same job twice replaces that
// job's prior set instead of duplicating it, so a re-run job never leaves
// stale files in the upload set. Once sealed the collection is read-only.
type Staging struct {
	mu     sync.Mutex
	byJob  map[string][]Artifact
	order  []string
	sealed bool
	now    func() time.Time
}

// StagingOption customizes a staging collection.
type StagingOption func(*Staging)

// WithClock overrides the clock used to stamp collected artifacts.
func WithClock(clock func() time.Time) StagingOption {
	return func(s *Staging) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewStaging returns an empty staging collection.
func NewStaging(opts ...StagingOption) *Staging {
	staging := &Staging{
		byJob: map[string][]Artifact{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(staging)
	}
	return staging
}

// Collect records a job's artifact contribution, replacing any earlier
// contribution from the same job.
func (s *Staging) Collect(jobID string, artifacts []Artifact) error {
	if jobID == "" {
		return fmt.Errorf("artifact: staging requires a producing job id")
	}
	for _, art := range artifacts {
		if err := art.Validate(); err != nil {
			return err
		}
		if art.JobID != jobID {
			return fmt.Errorf("artifact: %s claims job %s but was collected for %s", art.Name(), art.JobID, jobID)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return fmt.Errorf("artifact: staging is sealed")
	}
	if _, exists := s.byJob[jobID]; !exists {
		s.order = append(s.order, jobID)
	}
	cloned := make([]Artifact, len(artifacts))
	copy(cloned, artifacts)
	s.byJob[jobID] = cloned
	return nil
}

// Seal freezes the collection once every producing job has reported.
func (s *Staging) Seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
}

// Sealed reports whether the collection is frozen.
func (s *Staging) Sealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed
}

// Jobs returns the producing job IDs in first-collection order.
func (s *Staging) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// ByJob returns the artifacts contributed by one job.
func (s *Staging) ByJob(jobID string) []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	artifacts, ok := s.byJob[jobID]
	if !ok {
		return nil
	}
	out := make([]Artifact, len(artifacts))
	copy(out, artifacts)
	return out
}

// Snapshot returns every staged artifact in collection order.
func (s *Staging) Snapshot() []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Artifact
	for _, jobID := range s.order {
		out = append(out, s.byJob[jobID]...)
	}
	return out
}

// Len reports the total number of staged artifacts.
func (s *Staging) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, artifacts := range s.byJob {
		total += len(artifacts)
	}
	return total
}
