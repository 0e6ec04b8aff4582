package publish

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kingrea/slipway/internal/artifact"
	"github.com/kingrea/slipway/internal/config"
	"github.com/kingrea/slipway/internal/job"
	"github.com/kingrea/slipway/internal/release"
	"github.com/kingrea/slipway/internal/trigger"
)

type fakeHost struct {
	records []release.Record
	err     error
}

func (h *fakeHost) CreateRelease(_ context.Context, record release.Record) (release.CreatedRelease, error) {
	if h.err != nil {
		return release.CreatedRelease{}, h.err
	}
	h.records = append(h.records, record)
	return release.CreatedRelease{ID: 42, URL: "https://releases.example/" + record.Tag}, nil
}

type fakeUploader struct {
	uploaded []artifact.Artifact
	err      error
}

func (u *fakeUploader) Upload(_ context.Context, artifacts []artifact.Artifact) error {
	if u.err != nil {
		return u.err
	}
	u.uploaded = append(u.uploaded, artifacts...)
	return nil
}

func tagContext(t *testing.T, tag, message string) *job.Context {
	t.Helper()
	staging := artifact.NewStaging()
	for _, jobID := range []string{"build-linux", "pure"} {
		err := staging.Collect(jobID, []artifact.Artifact{{
			Path:  "/dist/" + jobID + "/pkg.whl",
			Kind:  artifact.KindBinaryPackage,
			JobID: jobID,
		}})
		if err != nil {
			t.Fatalf("Collect: %v", err)
		}
	}
	ctx := &job.Context{
		Ctx: context.Background(),
		Trigger: trigger.Context{
			Event:      trigger.EventTagPush,
			Ref:        tag,
			TagMessage: message,
			Commit:     "0a1b2c3",
		},
		Config:  config.Config{Project: "curveforge"},
		Staging: staging,
	}
	return ctx.ForInstance("publish")
}

func wantHistory(t *testing.T, j *Job, want ...State) {
	t.Helper()
	got := j.History()
	if len(got) != len(want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("history = %v, want %v", got, want)
		}
	}
}

func TestRunPublishesFinalRelease(t *testing.T) {
	host := &fakeHost{}
	uploader := &fakeUploader{}
	j := New(WithHost(host), WithUploader(uploader))
	ctx := tagContext(t, "v1.2.3", "v1.2.3\n\nFix curve conversion rounding.")

	result, err := j.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != job.StatusSucceeded {
		t.Fatalf("status = %s, want %s", result.Status, job.StatusSucceeded)
	}
	if len(host.records) != 1 {
		t.Fatalf("releases created = %d, want 1", len(host.records))
	}
	record := host.records[0]
	if record.Tag != "v1.2.3" || record.Prerelease {
		t.Fatalf("record = %+v, want final release of v1.2.3", record)
	}
	if len(uploader.uploaded) != 2 {
		t.Fatalf("uploaded = %d, want 2", len(uploader.uploaded))
	}
	if !ctx.Staging.Sealed() {
		t.Fatal("staging must be sealed before upload")
	}
	wantHistory(t, j, StateIdle, StateGated, StateClassifying, StateNotesExtracted, StateReleaseCreated, StatePublished)
}

func TestRunMarksPrereleaseTags(t *testing.T) {
	host := &fakeHost{}
	j := New(WithHost(host), WithUploader(&fakeUploader{}))
	ctx := tagContext(t, "v1.2.3rc1", "v1.2.3rc1\n\nRelease candidate.")
	if _, err := j.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(host.records) != 1 || !host.records[0].Prerelease {
		t.Fatalf("records = %+v, want one prerelease record", host.records)
	}
}

func TestRunSkipsNonReleaseTriggers(t *testing.T) {
	cases := []struct {
		name string
		trig trigger.Context
	}{
		{"branch push", trigger.Context{Event: trigger.EventBranchPush, Ref: "main"}},
		{"pull request", trigger.Context{Event: trigger.EventPullRequest, Ref: "refs/pull/7/merge"}},
		{"non-version tag", trigger.Context{Event: trigger.EventTagPush, Ref: "nightly"}},
	}
	for _, tc := range cases {
		host := &fakeHost{}
		j := New(WithHost(host), WithUploader(&fakeUploader{}))
		ctx := tagContext(t, "v0.0.0", "unused")
		ctx.Trigger = tc.trig

		result, err := j.Run(ctx)
		if err != nil {
			t.Fatalf("%s: Run: %v", tc.name, err)
		}
		if result.Status != job.StatusSkipped {
			t.Errorf("%s: status = %s, want %s", tc.name, result.Status, job.StatusSkipped)
		}
		if len(host.records) != 0 {
			t.Errorf("%s: created a release for a non-release trigger", tc.name)
		}
		wantHistory(t, j, StateIdle, StateSkipped)
	}
}

func TestRunTruncatesSignedTagMessage(t *testing.T) {
	message := "v1.2.3\n\nNotes line.\n-----BEGIN PGP SIGNATURE-----\nabc\n-----END PGP SIGNATURE-----\n"
	host := &fakeHost{}
	j := New(WithHost(host), WithUploader(&fakeUploader{}))
	if _, err := j.Run(tagContext(t, "v1.2.3", message)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := host.records[0].Body; got != "v1.2.3\n\nNotes line." {
		t.Fatalf("body = %q, want signature block stripped", got)
	}
}

func TestRunLightweightTagFailsNotesExtraction(t *testing.T) {
	host := &fakeHost{}
	j := New(WithHost(host), WithUploader(&fakeUploader{}))
	_, err := j.Run(tagContext(t, "v1.2.3", ""))
	if !errors.Is(err, job.ErrNotesExtraction) {
		t.Fatalf("err = %v, want notes extraction failure", err)
	}
	if len(host.records) != 0 {
		t.Fatal("no release may be created without notes")
	}
	wantHistory(t, j, StateIdle, StateGated, StateClassifying)
}

func TestRunHostRejectionStopsBeforeUpload(t *testing.T) {
	uploader := &fakeUploader{}
	j := New(
		WithHost(&fakeHost{err: fmt.Errorf("host: 422 already exists")}),
		WithUploader(uploader),
	)
	_, err := j.Run(tagContext(t, "v1.2.3", "v1.2.3\n\nNotes."))
	if !errors.Is(err, job.ErrPublishFailure) {
		t.Fatalf("err = %v, want publish failure", err)
	}
	if len(uploader.uploaded) != 0 {
		t.Fatal("nothing may be uploaded when release creation fails")
	}
	wantHistory(t, j, StateIdle, StateGated, StateClassifying, StateNotesExtracted)
}

func TestRunUploadFailureLeavesReleaseInPlace(t *testing.T) {
	host := &fakeHost{}
	j := New(WithHost(host), WithUploader(&fakeUploader{err: fmt.Errorf("index: 403 forbidden")}))
	_, err := j.Run(tagContext(t, "v1.2.3", "v1.2.3\n\nNotes."))
	if !errors.Is(err, job.ErrPublishFailure) {
		t.Fatalf("err = %v, want publish failure", err)
	}
	if len(host.records) != 1 {
		t.Fatalf("releases created = %d, want 1", len(host.records))
	}
	wantHistory(t, j, StateIdle, StateGated, StateClassifying, StateNotesExtracted, StateReleaseCreated)
}
