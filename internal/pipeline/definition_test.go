package pipeline

import (
	"strings"
	"testing"

	"github.com/kingrea/slipway/internal/config"
)

func TestNormalizedMergesInlineDependencies(t *testing.T) {
	def := Definition{
		ID: "test",
		Jobs: []JobRef{
			{ID: "build-linux", JobID: "binwheel"},
			{ID: "pure", JobID: "purewheel"},
			{ID: "publish", JobID: "publish", DependsOn: []string{"build-linux", "pure"}},
		},
		Graph: DependencyGraph{"publish": {"pure"}},
	}
	normalized, err := def.Normalized()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	deps := normalized.Dependencies("publish")
	if len(deps) != 2 || deps[0] != "build-linux" || deps[1] != "pure" {
		t.Fatalf("unexpected merged deps: %v", deps)
	}
}

func TestValidateRejectsUnknownGraphReference(t *testing.T) {
	def := Definition{
		ID:    "test",
		Jobs:  []JobRef{{ID: "a", JobID: "binwheel"}},
		Graph: DependencyGraph{"a": {"ghost"}},
	}
	if err := def.Validate(); err == nil {
		t.Fatalf("expected unknown graph reference to be rejected")
	}
}

func TestValidateRejectsDuplicateInstance(t *testing.T) {
	def := Definition{
		ID: "test",
		Jobs: []JobRef{
			{ID: "a", JobID: "binwheel"},
			{ID: "a", JobID: "purewheel"},
		},
	}
	if err := def.Validate(); err == nil {
		t.Fatalf("expected duplicate instance id to be rejected")
	}
}

func TestValidateRejectsCycle(t *testing.T) {
	def := Definition{
		ID: "test",
		Jobs: []JobRef{
			{ID: "a", JobID: "binwheel"},
			{ID: "b", JobID: "purewheel"},
		},
		Graph: DependencyGraph{"a": {"b"}, "b": {"a"}},
	}
	err := def.Validate()
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected cycle rejection, got %v", err)
	}
}

func TestParseDefinitionYAML(t *testing.T) {
	payload := `
id: release
name: curveforge release
jobs:
  - id: build-linux
    job_id: binwheel
    config:
      platform: linux
      archs: [auto64]
  - id: pure
    job_id: purewheel
  - id: publish
    job_id: publish
    depends_on: [build-linux, pure]
`
	def, err := ParseDefinitionYAML([]byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(def.Jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(def.Jobs))
	}
	if deps := def.Dependencies("publish"); len(deps) != 2 {
		t.Fatalf("unexpected publish deps: %v", deps)
	}
}

func TestReleaseDefinitionBuildsBarrier(t *testing.T) {
	cfg := config.Config{
		Project: "curveforge",
		Matrix: []config.MatrixEntry{
			{Platform: "macos", Archs: []string{"x86_64", "universal2", "arm64"}},
			{Platform: "linux", Archs: []string{"auto64"}},
			{Platform: "windows", Archs: []string{"auto64"}},
		},
	}
	def, err := ReleaseDefinition(cfg)
	if err != nil {
		t.Fatalf("release definition: %v", err)
	}
	if len(def.Jobs) != 5 {
		t.Fatalf("expected 5 jobs, got %d", len(def.Jobs))
	}
	deps := def.Dependencies(PublishInstanceID)
	if len(deps) != 4 {
		t.Fatalf("expected publish to join on 4 upstream jobs, got %v", deps)
	}
	for _, platform := range []string{"macos", "linux", "windows"} {
		found := false
		for _, dep := range deps {
			if dep == BuildInstanceID(platform) {
				found = true
			}
		}
		if !found {
			t.Fatalf("publish missing dependency on %s build", platform)
		}
	}
}
