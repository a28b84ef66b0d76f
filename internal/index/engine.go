// Package index keeps the persisted full-text index consistent with the
// vault and serves ranked queries with highlighted snippets.
package index

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pinotes/pinotes/internal/note"
	"github.com/pinotes/pinotes/internal/store"
	"github.com/pinotes/pinotes/internal/vault"
)

// searchLimit caps the number of query results.
const searchLimit = 20

// SearchResult is one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Engine owns the refresh and query paths of the search index.
// Refresh cycles are serialized; queries may run concurrently against the
// last-committed state.
type Engine struct {
	db     *store.DB
	vault  *vault.Vault
	logger *slog.Logger

	mu sync.Mutex // at most one refresh cycle in flight
}

// NewEngine creates a search engine over the given store and vault.
func NewEngine(db *store.DB, v *vault.Vault, logger *slog.Logger) *Engine {
	return &Engine{db: db, vault: v, logger: logger}
}

type gathered struct {
	path  string
	title string
	body  string
	mtime float64
}

// Refresh runs one full enumerate/diff/update cycle and returns the number
// of documents enumerated and the elapsed time.
//
// Staleness is decided by mtime *inequality*, not a newer-than check, so
// content restored from backup with an older mtime is still reindexed.
func (e *Engine) Refresh() (int, time.Duration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()

	notes, err := e.gather()
	if err != nil {
		return 0, 0, err
	}

	existing, err := e.db.AllMeta()
	if err != nil {
		return 0, 0, err
	}

	current := make(map[string]struct{}, len(notes))
	for _, n := range notes {
		current[n.path] = struct{}{}
	}

	// Paths that disappeared from the vault.
	for p := range existing {
		if _, ok := current[p]; ok {
			continue
		}
		if err := e.db.DeleteDoc(p); err != nil {
			return 0, 0, fmt.Errorf("index: delete %s: %w", p, err)
		}
		e.logger.Debug("index: removed stale", slog.String("path", p))
	}

	// New or changed paths. Unchanged ones are skipped with no further I/O.
	for _, n := range notes {
		if stored, ok := existing[n.path]; ok && stored == n.mtime {
			continue
		}
		doc := store.Doc{Path: n.path, Title: n.title, Body: n.body}
		if err := e.db.ReplaceDoc(doc, n.mtime); err != nil {
			return 0, 0, fmt.Errorf("index: replace %s: %w", n.path, err)
		}
		e.logger.Debug("index: indexed", slog.String("path", n.path))
	}

	return len(notes), time.Since(start), nil
}

// gather enumerates every validator-approved note with its title, body,
// and current mtime. A file that vanishes between enumeration and read is
// skipped; it never aborts the cycle.
func (e *Engine) gather() ([]gathered, error) {
	rels, err := e.vault.WalkNotes()
	if err != nil {
		return nil, err
	}

	out := make([]gathered, 0, len(rels))
	for _, rel := range rels {
		abs, err := e.vault.Resolve(rel, vault.KindNote)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			e.logger.Warn("index: read failed", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			continue
		}
		fm, body := note.Split(string(data))
		out = append(out, gathered{
			path:  rel,
			title: note.DeriveTitle(rel, body, fm),
			body:  body,
			mtime: mtimeSeconds(info.ModTime()),
		})
	}
	return out, nil
}

func mtimeSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Search runs a ranked full-text query, best match first, capped at 20
// results. An empty (or all-whitespace) query returns an empty list without
// touching the store. A malformed query is logged and yields an empty list.
func (e *Engine) Search(query string) []SearchResult {
	normalized := strings.TrimSpace(query)
	if normalized == "" {
		return []SearchResult{}
	}

	docs, err := e.db.Search(normalized, searchLimit)
	if err != nil {
		e.logger.Warn("index: search query failed",
			slog.String("query", normalized),
			slog.String("error", err.Error()))
		return []SearchResult{}
	}

	out := make([]SearchResult, 0, len(docs))
	for _, d := range docs {
		title := d.Title
		if title == "" {
			title = note.Stem(d.Path)
		}
		out = append(out, SearchResult{
			Path:    d.Path,
			Title:   title,
			Snippet: buildSnippet(d.Body, normalized),
		})
	}
	return out
}
