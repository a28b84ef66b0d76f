// Package testutil provides shared test helpers for setting up vaults and
// databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pinotes/pinotes/internal/store"
	"github.com/pinotes/pinotes/internal/vault"
)

// TestStore creates a temporary SQLite database that is automatically
// cleaned up.
func TestStore(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "pinotes-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a sandbox over it.
func TestVault(t *testing.T) (string, *vault.Vault) {
	t.Helper()
	dir := t.TempDir()
	v, err := vault.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, v
}

// WriteNote creates a file (and any parent directories) under root.
func WriteNote(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
