// Package release owns the release record handed to the hosting service:
// notes extraction from annotated tag messages, the record itself, and the
// HTTP client that creates the release.
package release

import "fmt"

// Record is the release created on the hosting service for a tag. It is
// built exactly once per run by the publisher and never mutated afterwards.
type Record struct {
	Tag        string `json:"tag_name"`
	Name       string `json:"name"`
	Body       string `json:"body,omitempty"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// Validate ensures the record can be submitted.
func (r Record) Validate() error {
	if r.Tag == "" {
		return fmt.Errorf("release: tag is required")
	}
	if r.Draft {
		return fmt.Errorf("release: draft releases are not produced by this pipeline")
	}
	return nil
}

// NewRecord assembles a record for tag with the given notes body and
// pre-release flag. The release title is the tag itself.
func NewRecord(tag, notes string, prerelease bool) Record {
	return Record{
		Tag:        tag,
		Name:       tag,
		Body:       notes,
		Draft:      false,
		Prerelease: prerelease,
	}
}
