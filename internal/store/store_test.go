package store

import (
	"os"
	"testing"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "store-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestReplaceAndSearch(t *testing.T) {
	db := openTemp(t)

	docs := []Doc{
		{Path: "a.md", Title: "Quick Fox", Body: "the quick brown fox jumps"},
		{Path: "b.md", Title: "Dogs", Body: "the lazy dog sleeps"},
	}
	for i, d := range docs {
		if err := db.ReplaceDoc(d, float64(1000+i)); err != nil {
			t.Fatalf("ReplaceDoc(%s): %v", d.Path, err)
		}
	}

	got, err := db.Search("fox", 20)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Path != "a.md" {
		t.Errorf("Search(fox) = %+v, want only a.md", got)
	}
}

func TestReplaceDocOverwrites(t *testing.T) {
	db := openTemp(t)

	if err := db.ReplaceDoc(Doc{Path: "a.md", Title: "v1", Body: "old words"}, 1); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceDoc(Doc{Path: "a.md", Title: "v2", Body: "new words"}, 2); err != nil {
		t.Fatal(err)
	}

	hits, err := db.Search("words", 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("want exactly one row after replace, got %d", len(hits))
	}
	if hits[0].Title != "v2" {
		t.Errorf("Title = %q, want v2", hits[0].Title)
	}

	meta, err := db.AllMeta()
	if err != nil {
		t.Fatal(err)
	}
	if meta["a.md"] != 2 {
		t.Errorf("mtime = %v, want 2", meta["a.md"])
	}
}

func TestDeleteDoc(t *testing.T) {
	db := openTemp(t)

	if err := db.ReplaceDoc(Doc{Path: "a.md", Title: "T", Body: "searchable body"}, 1); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteDoc("a.md"); err != nil {
		t.Fatalf("DeleteDoc: %v", err)
	}

	hits, err := db.Search("searchable", 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("still searchable after delete: %+v", hits)
	}
	meta, err := db.AllMeta()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := meta["a.md"]; ok {
		t.Error("meta row survived delete")
	}
}

func TestDeleteDocMissingIsNoop(t *testing.T) {
	db := openTemp(t)
	if err := db.DeleteDoc("never-indexed.md"); err != nil {
		t.Errorf("DeleteDoc on missing path: %v", err)
	}
}

func TestAllMetaEmpty(t *testing.T) {
	db := openTemp(t)
	meta, err := db.AllMeta()
	if err != nil {
		t.Fatal(err)
	}
	if len(meta) != 0 {
		t.Errorf("fresh db meta = %v", meta)
	}
}

func TestMtimePreservesFraction(t *testing.T) {
	db := openTemp(t)
	const mt = 1724800000.123456
	if err := db.ReplaceDoc(Doc{Path: "a.md", Title: "T", Body: "b"}, mt); err != nil {
		t.Fatal(err)
	}
	meta, err := db.AllMeta()
	if err != nil {
		t.Fatal(err)
	}
	if meta["a.md"] != mt {
		t.Errorf("mtime = %v, want %v", meta["a.md"], mt)
	}
}

func TestSearchLimit(t *testing.T) {
	db := openTemp(t)
	for _, p := range []string{"a.md", "b.md", "c.md"} {
		if err := db.ReplaceDoc(Doc{Path: p, Title: "common", Body: "shared term"}, 1); err != nil {
			t.Fatal(err)
		}
	}
	hits, err := db.Search("shared", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Errorf("limit not applied, got %d hits", len(hits))
	}
}
