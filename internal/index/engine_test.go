package index

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pinotes/pinotes/internal/store"
	"github.com/pinotes/pinotes/internal/testutil"
	"github.com/pinotes/pinotes/internal/vault"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) (string, *vault.Vault, *Engine) {
	t.Helper()
	root, v := testutil.TestVault(t)
	db := testutil.TestStore(t)
	return root, v, NewEngine(db, v, discardLogger())
}

func TestRefreshAndSearch(t *testing.T) {
	root, _, e := newTestEngine(t)
	testutil.WriteNote(t, root, "notes/a.md", "# Animals\n\nthe quick brown fox jumps\n")
	testutil.WriteNote(t, root, "notes/b.md", "# Other\n\nnothing of interest\n")

	count, elapsed, err := e.Refresh()
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if elapsed < 0 {
		t.Errorf("elapsed = %v", elapsed)
	}

	results := e.Search("fox")
	if len(results) != 1 {
		t.Fatalf("Search(fox) = %+v, want one hit", results)
	}
	r := results[0]
	if r.Path != "notes/a.md" {
		t.Errorf("Path = %q", r.Path)
	}
	if r.Title != "Animals" {
		t.Errorf("Title = %q", r.Title)
	}
	if !strings.Contains(r.Snippet, "<mark>fox</mark>") {
		t.Errorf("Snippet = %q, want highlighted term", r.Snippet)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	_, _, e := newTestEngine(t)

	for _, q := range []string{"", "   ", "\t\n"} {
		results := e.Search(q)
		if results == nil {
			t.Errorf("Search(%q) returned nil, want empty slice", q)
		}
		if len(results) != 0 {
			t.Errorf("Search(%q) = %+v, want empty", q, results)
		}
	}
}

func TestSearchMalformedQueryAbsorbed(t *testing.T) {
	root, _, e := newTestEngine(t)
	testutil.WriteNote(t, root, "a.md", "content here\n")
	if _, _, err := e.Refresh(); err != nil {
		t.Fatal(err)
	}

	// Unbalanced quotes are an FTS5 syntax error; under the LIKE fallback
	// they simply match nothing. Either way: empty, never a panic.
	results := e.Search(`"unbalanced`)
	if results == nil || len(results) != 0 {
		t.Errorf("malformed query = %+v, want empty slice", results)
	}
}

func TestRefreshSkipsUnchanged(t *testing.T) {
	root, _, e := newTestEngine(t)
	testutil.WriteNote(t, root, "a.md", "stable content\n")

	if _, _, err := e.Refresh(); err != nil {
		t.Fatal(err)
	}
	count, _, err := e.Refresh()
	if err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if got := e.Search("stable"); len(got) != 1 {
		t.Errorf("Search after no-op refresh = %+v", got)
	}
}

func TestRefreshReindexesOlderMtime(t *testing.T) {
	root, _, e := newTestEngine(t)
	abs := filepath.Join(root, "a.md")
	testutil.WriteNote(t, root, "a.md", "original words\n")
	if _, _, err := e.Refresh(); err != nil {
		t.Fatal(err)
	}

	// Rewrite with an mtime in the past. Any mtime difference, even an
	// older one, must trigger reindexing.
	testutil.WriteNote(t, root, "a.md", "restored words\n")
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(abs, past, past); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Refresh(); err != nil {
		t.Fatal(err)
	}

	if got := e.Search("restored"); len(got) != 1 {
		t.Errorf("Search(restored) = %+v, want the rewritten note", got)
	}
	if got := e.Search("original"); len(got) != 0 {
		t.Errorf("Search(original) = %+v, want no hits", got)
	}
}

func TestRefreshRemovesDeletedNotes(t *testing.T) {
	root, _, e := newTestEngine(t)
	testutil.WriteNote(t, root, "gone.md", "ephemeral text\n")
	if _, _, err := e.Refresh(); err != nil {
		t.Fatal(err)
	}
	if got := e.Search("ephemeral"); len(got) != 1 {
		t.Fatalf("precondition: %+v", got)
	}

	if err := os.Remove(filepath.Join(root, "gone.md")); err != nil {
		t.Fatal(err)
	}
	count, _, err := e.Refresh()
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	if got := e.Search("ephemeral"); len(got) != 0 {
		t.Errorf("deleted note still searchable: %+v", got)
	}
}

func TestRefreshSkipsUnreadableNote(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	root, _, e := newTestEngine(t)
	testutil.WriteNote(t, root, "readable.md", "open content\n")
	testutil.WriteNote(t, root, "locked.md", "unreachable content\n")

	locked := filepath.Join(root, "locked.md")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

	// The failed read is skipped; the cycle itself must succeed.
	count, _, err := e.Refresh()
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if got := e.Search("open"); len(got) != 1 {
		t.Errorf("readable note missing: %+v", got)
	}
	if got := e.Search("unreachable"); len(got) != 0 {
		t.Errorf("unreadable note indexed: %+v", got)
	}

	// Once readable again, the next cycle picks it up.
	if err := os.Chmod(locked, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Refresh(); err != nil {
		t.Fatal(err)
	}
	if got := e.Search("unreachable"); len(got) != 1 {
		t.Errorf("recovered note not indexed: %+v", got)
	}
}

func TestRefreshSkipsBlockedDirs(t *testing.T) {
	root, _, e := newTestEngine(t)
	testutil.WriteNote(t, root, "_private/secret.md", "classified material\n")
	testutil.WriteNote(t, root, "visible.md", "public material\n")

	count, _, err := e.Refresh()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if got := e.Search("classified"); len(got) != 0 {
		t.Errorf("blocked note leaked into the index: %+v", got)
	}
}

func TestSearchTitleFallsBackToStem(t *testing.T) {
	_, v, _ := newTestEngine(t)
	db := testutil.TestStore(t)
	e := NewEngine(db, v, discardLogger())

	// A row with an empty title can only come from outside the normal
	// gather path, but Search must still present something usable.
	if err := db.ReplaceDoc(store.Doc{Path: "dir/untitled.md", Title: "", Body: "findable"}, 1); err != nil {
		t.Fatal(err)
	}
	got := e.Search("findable")
	if len(got) != 1 {
		t.Fatalf("Search = %+v", got)
	}
	if got[0].Title != "untitled" {
		t.Errorf("Title = %q, want stem fallback", got[0].Title)
	}
}
