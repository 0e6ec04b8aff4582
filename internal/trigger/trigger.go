// Package trigger models the event that started a pipeline run. The context
// is built exactly once at startup (from flags, environment, or a webhook
// payload) and passed down as an immutable value; nothing in the pipeline
// reads trigger data from ambient process state.
package trigger

import (
	"fmt"
	"os"
	"strings"
)

// EventKind enumerates the trigger event classes a run can start from.
type EventKind string

const (
	EventBranchPush  EventKind = "branch-push"
	EventTagPush     EventKind = "tag-push"
	EventPullRequest EventKind = "pull-request"
)

// Context captures the trigger for a single pipeline run.
type Context struct {
	Event EventKind
	// Ref is the pushed reference: a branch name, tag name, or PR head ref.
	Ref string
	// TagMessage holds the annotated tag message body for tag pushes. Empty
	// for lightweight tags and non-tag events.
	TagMessage string
	// Commit is the SHA the trigger points at, when known.
	Commit string
}

// Tag returns the tag name for tag-push triggers and "" otherwise.
func (c Context) Tag() string {
	if c.Event != EventTagPush {
		return ""
	}
	return c.Ref
}

// IsTagPush reports whether the run was started by a tag push.
func (c Context) IsTagPush() bool {
	return c.Event == EventTagPush && c.Ref != ""
}

// Validate ensures the context is internally consistent.
func (c Context) Validate() error {
	switch c.Event {
	case EventBranchPush, EventTagPush, EventPullRequest:
	default:
		return fmt.Errorf("trigger: unknown event kind %q", c.Event)
	}
	if c.Ref == "" {
		return fmt.Errorf("trigger: ref is required for %s events", c.Event)
	}
	return nil
}

// Environment variable names read by FromEnv. SLIPWAY_REF accepts either a
// bare name or a fully qualified refs/heads/... / refs/tags/... reference.
const (
	EnvEvent      = "SLIPWAY_EVENT"
	EnvRef        = "SLIPWAY_REF"
	EnvTagMessage = "SLIPWAY_TAG_MESSAGE"
	EnvCommit     = "SLIPWAY_COMMIT"
)

// FromEnv builds a trigger context from the process environment.
func FromEnv() (Context, error) {
	return fromLookup(os.LookupEnv)
}

// New builds and validates a trigger context from raw event fields. The ref
// may be qualified (refs/tags/..., refs/heads/...); event may be empty when
// the ref is qualified enough to infer it.
func New(event EventKind, ref, tagMessage, commit string) (Context, error) {
	kind, name := normalizeRef(EventKind(strings.TrimSpace(string(event))), strings.TrimSpace(ref))
	ctx := Context{
		Event:      kind,
		Ref:        name,
		TagMessage: tagMessage,
		Commit:     strings.TrimSpace(commit),
	}
	if err := ctx.Validate(); err != nil {
		return Context{}, err
	}
	return ctx, nil
}

func fromLookup(lookup func(string) (string, bool)) (Context, error) {
	rawEvent, _ := lookup(EnvEvent)
	rawRef, _ := lookup(EnvRef)
	message, _ := lookup(EnvTagMessage)
	commit, _ := lookup(EnvCommit)
	return New(EventKind(rawEvent), rawRef, message, commit)
}

// normalizeRef strips refs/heads/ and refs/tags/ prefixes and infers the
// event kind from a qualified ref when the event variable is absent.
func normalizeRef(event EventKind, ref string) (EventKind, string) {
	switch {
	case strings.HasPrefix(ref, "refs/tags/"):
		if event == "" {
			event = EventTagPush
		}
		ref = strings.TrimPrefix(ref, "refs/tags/")
	case strings.HasPrefix(ref, "refs/heads/"):
		if event == "" {
			event = EventBranchPush
		}
		ref = strings.TrimPrefix(ref, "refs/heads/")
	}
	return event, ref
}
