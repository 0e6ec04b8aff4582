// Package jobs registers the built-in pipeline jobs.
package jobs

import (
	"github.com/kingrea/slipway/internal/job"
	"github.com/kingrea/slipway/internal/jobs/binwheel"
	"github.com/kingrea/slipway/internal/jobs/publish"
	"github.com/kingrea/slipway/internal/jobs/purewheel"
	"github.com/kingrea/slipway/internal/pipeline"
)

// RegisterBuiltins installs the built-in job factories into the registry.
func RegisterBuiltins(registry *job.Registry) {
	registry.MustRegister(pipeline.JobBinaryBuild, binwheel.Factory)
	registry.MustRegister(pipeline.JobPureBuild, purewheel.Factory)
	registry.MustRegister(pipeline.JobPublish, publish.Factory)
}
