package vault

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pinotes/pinotes/internal/apperr"
)

// scaffold builds a mini-vault:
//
//	00-inbox/hello.md
//	04-resources/market/btc.md
//	_attachments/chart.png
//	.git/config
//	_private/secret.md
//	good-link.md  -> 00-inbox/hello.md
//	evil-link.md  -> <outside the vault>
//	dangling.md   -> <outside, nonexistent>
func scaffold(t *testing.T) (string, *Vault) {
	t.Helper()
	dir := t.TempDir()

	mkdir := func(rel string) {
		if err := os.MkdirAll(filepath.Join(dir, rel), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	write := func(rel, content string) {
		if err := os.WriteFile(filepath.Join(dir, rel), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	mkdir("00-inbox")
	mkdir("04-resources/market")
	mkdir("_attachments")
	mkdir(".git")
	mkdir("_private")

	write("00-inbox/hello.md", "# Hello\n")
	write("04-resources/market/btc.md", "# BTC\n")
	write("_attachments/chart.png", "\x89PNG\r\n")
	write(".git/config", "[core]\n")
	write("_private/secret.md", "secret\n")

	outside := filepath.Join(t.TempDir(), "outside.txt")
	if err := os.WriteFile(outside, []byte("outside\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := os.Symlink(filepath.Join(dir, "00-inbox", "hello.md"), filepath.Join(dir, "good-link.md")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(dir, "evil-link.md")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(t.TempDir(), "never-created"), filepath.Join(dir, "dangling.md")); err != nil {
		t.Fatal(err)
	}

	v, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return dir, v
}

func TestResolveValidNote(t *testing.T) {
	_, v := scaffold(t)
	abs, err := v.Resolve("00-inbox/hello.md", KindNote)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(v.Root(), "00-inbox", "hello.md")
	if abs != want {
		t.Errorf("abs = %q, want %q", abs, want)
	}
}

func TestResolveNestedNote(t *testing.T) {
	_, v := scaffold(t)
	abs, err := v.Resolve("04-resources/market/btc.md", KindNote)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(abs) != "btc.md" {
		t.Errorf("base = %q", filepath.Base(abs))
	}
}

func TestResolveSymlinkInsideVaultAllowed(t *testing.T) {
	_, v := scaffold(t)
	abs, err := v.Resolve("good-link.md", KindNote)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// The result is the physical target of the link.
	if filepath.Base(abs) != "hello.md" {
		t.Errorf("abs = %q, want the link target", abs)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	_, v := scaffold(t)
	first, err := v.Resolve("00-inbox/hello.md", KindNote)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := v.Resolve("00-inbox/hello.md", KindNote)
	if err != nil {
		t.Fatalf("Resolve (second): %v", err)
	}
	if first != second {
		t.Errorf("results differ: %q vs %q", first, second)
	}
}

func TestResolveMalformedPaths(t *testing.T) {
	_, v := scaffold(t)

	cases := []struct {
		name string
		raw  string
	}{
		{"absolute", "/etc/passwd.md"},
		{"dotdot traversal", "00-inbox/../../etc/passwd.md"},
		{"dotdot at root", "../../etc/passwd.md"},
		{"null byte", "00-inbox/hello\x00.md"},
		{"backslash", "00-inbox\\hello.md"},
		{"wrong extension", "00-inbox/hello.txt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Resolve(tc.raw, KindNote)
			if !errors.Is(err, apperr.ErrMalformedPath) {
				t.Errorf("Resolve(%q) = %v, want ErrMalformedPath", tc.raw, err)
			}
		})
	}
}

func TestResolveSandboxDenied(t *testing.T) {
	_, v := scaffold(t)

	cases := []struct {
		name string
		raw  string
	}{
		{"dotdir segment", ".git/config.md"},
		{"hidden file", "00-inbox/.hidden.md"},
		{"private dir", "_private/secret.md"},
		{"escaping symlink", "evil-link.md"},
		{"dangling escaping symlink", "dangling.md"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Resolve(tc.raw, KindNote)
			if !errors.Is(err, apperr.ErrSandboxDenied) {
				t.Errorf("Resolve(%q) = %v, want ErrSandboxDenied", tc.raw, err)
			}
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	_, v := scaffold(t)

	if _, err := v.Resolve("00-inbox/missing.md", KindNote); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing note: %v, want ErrNotFound", err)
	}
	if _, err := v.Resolve("_attachments/nope.png", KindAttachment); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing attachment: %v, want ErrNotFound", err)
	}
	// A directory is not a regular file either.
	if _, err := v.Resolve("_attachments", KindAttachment); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("directory: %v, want ErrNotFound", err)
	}
}

func TestResolveCaseInsensitiveSuffix(t *testing.T) {
	dir, v := scaffold(t)
	if err := os.WriteFile(filepath.Join(dir, "UPPER.MD"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Resolve("UPPER.MD", KindNote); err != nil {
		t.Errorf("upper-case suffix should be accepted: %v", err)
	}
}

func TestResolveAttachmentAnyExtension(t *testing.T) {
	_, v := scaffold(t)
	abs, err := v.Resolve("_attachments/chart.png", KindAttachment)
	if err != nil {
		t.Fatalf("attachment resolve: %v", err)
	}
	if filepath.Base(abs) != "chart.png" {
		t.Errorf("abs = %q", abs)
	}
	// The same path fails note validation on its extension.
	if _, err := v.Resolve("_attachments/chart.png", KindNote); !errors.Is(err, apperr.ErrMalformedPath) {
		t.Errorf("png as note: %v, want ErrMalformedPath", err)
	}
}

func TestWalkNotesSkipsBlockedAndNonNotes(t *testing.T) {
	_, v := scaffold(t)
	rels, err := v.WalkNotes()
	if err != nil {
		t.Fatalf("WalkNotes: %v", err)
	}

	got := make(map[string]bool, len(rels))
	for _, r := range rels {
		got[r] = true
	}
	for _, want := range []string{"00-inbox/hello.md", "04-resources/market/btc.md", "good-link.md"} {
		if !got[want] {
			t.Errorf("WalkNotes missing %q (got %v)", want, rels)
		}
	}
	for _, blocked := range []string{"_private/secret.md", "evil-link.md", "dangling.md"} {
		if got[blocked] {
			t.Errorf("WalkNotes must not include %q", blocked)
		}
	}
}

func TestNewRejectsMissingRoot(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Error("expected error for non-existent root")
	}
}

func TestNewRejectsFileRoot(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(f); err == nil {
		t.Error("expected error when root is a file")
	}
}
