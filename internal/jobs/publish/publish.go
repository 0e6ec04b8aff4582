// Package publish creates the release on the hosting service and uploads
// the collected packages to the index. It runs after every build job has
// reported, and only a release tag push gets past its gate.
package publish

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/kingrea/slipway/internal/config"
	"github.com/kingrea/slipway/internal/index"
	"github.com/kingrea/slipway/internal/job"
	"github.com/kingrea/slipway/internal/release"
	"github.com/kingrea/slipway/internal/trigger"
	"github.com/kingrea/slipway/internal/version"
)

// State names a stop on the publisher's path through a run.
type State string

const (
	// StateIdle is the initial state before the gate is evaluated.
	StateIdle State = "idle"
	// StateGated means the trigger passed the release-tag gate.
	StateGated State = "gated"
	// StateClassifying means the tag is being classified as final or
	// pre-release.
	StateClassifying State = "classifying"
	// StateNotesExtracted means release notes were read from the tag message.
	StateNotesExtracted State = "notes-extracted"
	// StateReleaseCreated means the hosting service accepted the release.
	StateReleaseCreated State = "release-created"
	// StatePublished is terminal: release created and packages uploaded.
	StatePublished State = "published"
	// StateSkipped is terminal: the gate declined the trigger.
	StateSkipped State = "skipped"
)

// NotesSource produces the release notes for a run. The default reads the
// annotated tag message from the trigger.
type NotesSource func(trigger.Context) (string, error)

// Job is the publisher. The zero value built by Factory wires the release
// host and index uploader from the project configuration at run time; tests
// inject both.
type Job struct {
	host     release.Host
	uploader index.Uploader
	notes    NotesSource

	history []State
}

// Option overrides a publisher collaborator.
type Option func(*Job)

// WithHost injects the release-hosting client.
func WithHost(host release.Host) Option {
	return func(j *Job) { j.host = host }
}

// WithUploader injects the index uploader.
func WithUploader(uploader index.Uploader) Option {
	return func(j *Job) { j.uploader = uploader }
}

// WithNotesSource injects the release-notes source.
func WithNotesSource(notes NotesSource) Option {
	return func(j *Job) { j.notes = notes }
}

// New constructs a publisher with the given overrides.
func New(opts ...Option) *Job {
	j := &Job{notes: tagMessageNotes, history: []State{StateIdle}}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Factory constructs the publisher. It takes no pipeline configuration.
func Factory(job.Config) (job.Job, error) {
	return New(), nil
}

// Info implements job.Job.
func (j *Job) Info() job.Info {
	return job.Info{
		ID:          "publish",
		Name:        "Publish release",
		Description: "Creates the hosted release and uploads packages to the index.",
	}
}

// History returns the states the publisher passed through, in order.
func (j *Job) History() []State {
	out := make([]State, len(j.history))
	copy(out, j.history)
	return out
}

func (j *Job) advance(state State) {
	j.history = append(j.history, state)
}

// Run walks the publish sequence: gate, classify, extract notes, create the
// release, seal the staging collection, upload. Everything before the upload
// must succeed for the upload to start; an upload failure leaves the created
// release in place.
func (j *Job) Run(ctx *job.Context) (job.Result, error) {
	if err := ctx.Validate(); err != nil {
		return job.Result{Status: job.StatusFailed}, err
	}

	tag := ctx.Trigger.Tag()
	if !ctx.Trigger.IsTagPush() || !version.IsReleaseTag(tag) {
		j.advance(StateSkipped)
		ctx.Logger.Info("publish skipped", zap.String("ref", ctx.Trigger.Ref))
		return job.Result{
			Status:  job.StatusSkipped,
			Message: fmt.Sprintf("ref %s is not a release tag", ctx.Trigger.Ref),
		}, nil
	}
	j.advance(StateGated)

	j.advance(StateClassifying)
	classification := version.Classify(tag)
	ctx.Logger.Info("classified tag",
		zap.String("tag", tag),
		zap.Bool("prerelease", classification.IsPrerelease))

	notes, err := j.notes(ctx.Trigger)
	if err != nil {
		return job.Result{Status: job.StatusFailed},
			fmt.Errorf("publish: %w: %v", job.ErrNotesExtraction, err)
	}
	j.advance(StateNotesExtracted)

	host, err := j.resolveHost(ctx.Config)
	if err != nil {
		return job.Result{Status: job.StatusFailed}, err
	}
	record := release.NewRecord(tag, notes, classification.IsPrerelease)
	created, err := host.CreateRelease(ctx.Ctx, record)
	if err != nil {
		return job.Result{Status: job.StatusFailed},
			fmt.Errorf("publish: create release %s: %w: %v", tag, job.ErrPublishFailure, err)
	}
	j.advance(StateReleaseCreated)
	ctx.Logger.Info("release created", zap.String("tag", tag), zap.String("url", created.URL))

	ctx.Staging.Seal()
	packages := ctx.Staging.Snapshot()
	uploader, err := j.resolveUploader(ctx.Config)
	if err != nil {
		return job.Result{Status: job.StatusFailed}, err
	}
	if err := uploader.Upload(ctx.Ctx, packages); err != nil {
		// The release stays up; rerunning the publisher after fixing the
		// index is the recovery path.
		return job.Result{Status: job.StatusFailed},
			fmt.Errorf("publish: upload packages for %s: %w: %v", tag, job.ErrPublishFailure, err)
	}
	j.advance(StatePublished)

	return job.Result{
		Status:  job.StatusSucceeded,
		Message: fmt.Sprintf("published %s with %d packages", tag, len(packages)),
	}, nil
}

func (j *Job) resolveHost(cfg config.Config) (release.Host, error) {
	if j.host != nil {
		return j.host, nil
	}
	hostCfg := release.HostConfig{
		APIBase: cfg.ReleaseHost.APIBase,
		Owner:   cfg.ReleaseHost.Owner,
		Repo:    cfg.ReleaseHost.Repo,
	}
	if cfg.ReleaseHost.TokenEnv != "" {
		hostCfg.Token = os.Getenv(cfg.ReleaseHost.TokenEnv)
	}
	host, err := release.NewHTTPHost(hostCfg)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	return host, nil
}

func (j *Job) resolveUploader(cfg config.Config) (index.Uploader, error) {
	if j.uploader != nil {
		return j.uploader, nil
	}
	uploader, err := index.New(cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	return uploader, nil
}

// tagMessageNotes reads release notes from the annotated tag message. A
// lightweight tag carries no message and cannot supply notes.
func tagMessageNotes(trig trigger.Context) (string, error) {
	if strings.TrimSpace(trig.TagMessage) == "" {
		return "", fmt.Errorf("tag %s has no annotation message", trig.Tag())
	}
	return release.ExtractNotes(trig.TagMessage), nil
}
