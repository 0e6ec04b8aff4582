package version

import "testing"

func TestClassifyFinalRelease(t *testing.T) {
	for _, tag := range []string{"v1.0.0", "v0.9.12", "v12.34.56"} {
		if got := Classify(tag); got.IsPrerelease {
			t.Fatalf("expected %s to classify as final release", tag)
		}
	}
}

func TestClassifyPrerelease(t *testing.T) {
	for _, tag := range []string{"v1.2.0a1", "v1.2.0b2", "v3.0.0rc1", "v0.1.0rc10"} {
		if got := Classify(tag); !got.IsPrerelease {
			t.Fatalf("expected %s to classify as pre-release", tag)
		}
	}
}

func TestClassifyMalformedTagFailsOpen(t *testing.T) {
	// Missing patch segments, stray suffixes, and non-version tags must all
	// label as final release rather than blocking the deploy.
	for _, tag := range []string{"v1.2", "v1", "release-2024", "v1.2.3-beta", "v1.2.3rc", ""} {
		if got := Classify(tag); got.IsPrerelease {
			t.Fatalf("expected malformed tag %q to classify as final release", tag)
		}
	}
}

func TestIsReleaseTag(t *testing.T) {
	cases := map[string]bool{
		"v1.2.3":     true,
		"v1.2.3rc1":  true,
		"v1.2.3a12":  true,
		"v1.2":       false,
		"1.2.3":      false,
		"v1.2.3rc":   false,
		"main":       false,
		"v1.2.3.dev": false,
	}
	for tag, want := range cases {
		if got := IsReleaseTag(tag); got != want {
			t.Fatalf("IsReleaseTag(%q) = %v, want %v", tag, got, want)
		}
	}
}

func TestParseTag(t *testing.T) {
	parsed, err := ParseTag("v1.2.0b2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Major != 1 || parsed.Minor != 2 || parsed.Patch != 0 {
		t.Fatalf("unexpected version numbers: %+v", parsed)
	}
	if parsed.Marker != MarkerBeta || parsed.Serial != 2 {
		t.Fatalf("unexpected pre-release fields: %+v", parsed)
	}
	if !parsed.Prerelease() {
		t.Fatalf("expected pre-release")
	}
	if parsed.String() != "v1.2.0b2" {
		t.Fatalf("round trip mismatch: %s", parsed.String())
	}
}

func TestParseTagRejectsMalformed(t *testing.T) {
	if _, err := ParseTag("v1.2"); err == nil {
		t.Fatalf("expected strict parse of v1.2 to fail")
	}
}
