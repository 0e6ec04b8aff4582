package pipeline

import (
	"fmt"

	"github.com/kingrea/slipway/internal/config"
)

// Factory IDs of the built-in jobs. Plugins may add more.
const (
	JobBinaryBuild = "binwheel"
	JobPureBuild   = "purewheel"
	JobPublish     = "publish"
)

// BuildInstanceID names the per-platform build job instance.
func BuildInstanceID(platform string) string {
	return "build-" + platform
}

// Well-known instance IDs in the built-in release pipeline.
const (
	PureInstanceID    = "pure"
	PublishInstanceID = "publish"
)

// ReleaseDefinition assembles the built-in release pipeline from the build
// matrix: one binary build job per platform, the pure build-and-test job,
// and the publisher joining on all of them. The publisher edge set is the
// barrier: it only becomes runnable after every build reports success, and
// any upstream failure skips it.
func ReleaseDefinition(cfg config.Config) (Definition, error) {
	if err := cfg.Validate(); err != nil {
		return Definition{}, err
	}
	def := Definition{
		ID:          "release",
		Name:        fmt.Sprintf("%s release", cfg.Project),
		Description: "Build platform and portable packages, then publish on tag pushes.",
		Runtime:     RuntimeConfig{MaxParallel: cfg.MaxParallel},
	}
	var upstream []string
	for _, entry := range cfg.Matrix {
		id := BuildInstanceID(entry.Platform)
		def.Jobs = append(def.Jobs, JobRef{
			ID:    id,
			JobID: JobBinaryBuild,
			Name:  fmt.Sprintf("Build %s packages", entry.Platform),
			Config: map[string]any{
				"platform": entry.Platform,
				"archs":    toAnySlice(entry.Archs),
				"env":      toAnyMap(entry.Env),
			},
		})
		upstream = append(upstream, id)
	}
	def.Jobs = append(def.Jobs, JobRef{
		ID:    PureInstanceID,
		JobID: JobPureBuild,
		Name:  "Build portable packages and run tests",
	})
	upstream = append(upstream, PureInstanceID)
	def.Jobs = append(def.Jobs, JobRef{
		ID:        PublishInstanceID,
		JobID:     JobPublish,
		Name:      "Publish release",
		DependsOn: upstream,
	})
	return def.Normalized()
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func toAnyMap(values map[string]string) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
