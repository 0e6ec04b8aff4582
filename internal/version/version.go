// Package version implements the release tag grammar used to gate and
// classify deploys. Tags follow v<major>.<minor>.<patch> with an optional
// pre-release suffix: a, b, or rc followed by a serial number.
package version

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	// tagPattern is the full release tag grammar, pre-release suffix included.
	tagPattern = regexp.MustCompile(`^v(\d+)\.(\d+)\.(\d+)(?:(a|b|rc)(\d+))?$`)
	// prereleasePattern matches only tags carrying a pre-release marker.
	prereleasePattern = regexp.MustCompile(`^v\d+\.\d+\.\d+(a|b|rc)\d+$`)
)

// Marker identifies a pre-release channel.
type Marker string

const (
	MarkerAlpha     Marker = "a"
	MarkerBeta      Marker = "b"
	MarkerCandidate Marker = "rc"
)

// Classification is the classifier verdict for a tag.
type Classification struct {
	Tag          string
	IsPrerelease bool
}

// Classify reports whether tag denotes a pre-release. A tag that does not
// match the pre-release grammar at all, including malformed versions such as
// "v1.2", classifies as a final release. This fail-open behavior is load
// bearing: a malformed tag must label the deploy as final rather than block
// it, and the tests pin the boundary.
func Classify(tag string) Classification {
	return Classification{
		Tag:          tag,
		IsPrerelease: prereleasePattern.MatchString(tag),
	}
}

// IsReleaseTag reports whether tag matches the version grammar with or
// without a pre-release suffix. The publisher gate uses this to decide
// whether a tag push should be treated as a release trigger at all.
func IsReleaseTag(tag string) bool {
	return tagPattern.MatchString(tag)
}

// Tag is the strictly parsed form of a release tag.
type Tag struct {
	Major  int
	Minor  int
	Patch  int
	Marker Marker
	Serial int
}

// Prerelease reports whether the parsed tag carries a pre-release marker.
func (t Tag) Prerelease() bool {
	return t.Marker != ""
}

// String renders the tag back into its canonical form.
func (t Tag) String() string {
	base := fmt.Sprintf("v%d.%d.%d", t.Major, t.Minor, t.Patch)
	if t.Marker == "" {
		return base
	}
	return fmt.Sprintf("%s%s%d", base, t.Marker, t.Serial)
}

// ParseTag parses tag strictly against the release grammar. Unlike Classify
// it rejects malformed tags outright; callers wanting validation use this,
// the publisher gate deliberately does not.
func ParseTag(tag string) (Tag, error) {
	match := tagPattern.FindStringSubmatch(tag)
	if match == nil {
		return Tag{}, fmt.Errorf("version: %q does not match the release tag grammar", tag)
	}
	major, _ := strconv.Atoi(match[1])
	minor, _ := strconv.Atoi(match[2])
	patch, _ := strconv.Atoi(match[3])
	parsed := Tag{Major: major, Minor: minor, Patch: patch}
	if match[4] != "" {
		serial, _ := strconv.Atoi(match[5])
		parsed.Marker = Marker(match[4])
		parsed.Serial = serial
	}
	return parsed, nil
}
