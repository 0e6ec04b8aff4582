package release

import "testing"

func TestExtractNotesTruncatesSignatureBlock(t *testing.T) {
	message := "Release v1.2.0\n\n- fixed the portable fallback\n- faster conversion\n-----BEGIN PGP SIGNATURE-----\niQEzBAABCAAdFiEE\n-----END PGP SIGNATURE-----\n"
	got := ExtractNotes(message)
	want := "Release v1.2.0\n\n- fixed the portable fallback\n- faster conversion"
	if got != want {
		t.Fatalf("unexpected notes:\n%q\nwant:\n%q", got, want)
	}
}

func TestExtractNotesWithoutSignatureReturnsFullMessage(t *testing.T) {
	message := "Release v1.2.0\n\nNo signature here."
	if got := ExtractNotes(message); got != message {
		t.Fatalf("expected message unchanged, got %q", got)
	}
}

func TestExtractNotesEmptyMessage(t *testing.T) {
	if got := ExtractNotes(""); got != "" {
		t.Fatalf("expected empty notes, got %q", got)
	}
}

func TestExtractNotesNormalizesCRLF(t *testing.T) {
	message := "Line one\r\nLine two\r\n-----BEGIN PGP SIGNATURE-----\r\nsig\r\n"
	if got := ExtractNotes(message); got != "Line one\nLine two" {
		t.Fatalf("unexpected notes: %q", got)
	}
}
