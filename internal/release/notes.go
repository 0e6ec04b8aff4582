package release

import "strings"

// signatureMarker opens the detached signature block that git appends to
// signed annotated tags. Everything from this line on is not release notes.
const signatureMarker = "-----BEGIN PGP SIGNATURE-----"

// ExtractNotes returns the release notes body from an annotated tag message.
// The message is truncated at (and excluding) the first line that starts a
// detached signature block; a message without one passes through unchanged.
func ExtractNotes(message string) string {
	if message == "" {
		return ""
	}
	normalized := strings.ReplaceAll(message, "\r\n", "\n")
	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == signatureMarker {
			return strings.Join(lines[:i], "\n")
		}
	}
	return normalized
}
