// Package wikilink resolves [[wikilinks]] to vault paths and scans for
// backlinks.
package wikilink

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pinotes/pinotes/internal/note"
	"github.com/pinotes/pinotes/internal/vault"
)

// linkRe matches [[Target]] and [[Target|Alias]].
var linkRe = regexp.MustCompile(`\[\[([^\]|]+)(?:\|[^\]]+)?\]\]`)

// Index maps filename stems to every matching vault-relative path. It is
// built lazily on first use and cached until Invalidate is called; nothing
// invalidates it automatically.
type Index struct {
	root string

	mu    sync.Mutex
	cache map[string][]string
}

// NewIndex creates an index over the given vault root.
func NewIndex(root string) *Index {
	return &Index{root: root}
}

// Get returns the stem → paths mapping, building it on first use.
// Collisions across folders are all retained.
func (i *Index) Get() (map[string][]string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cache != nil {
		return i.cache, nil
	}
	built, err := build(i.root)
	if err != nil {
		return nil, err
	}
	i.cache = built
	return i.cache, nil
}

// Resolve returns every path whose stem matches filename.
func (i *Index) Resolve(filename string) ([]string, error) {
	idx, err := i.Get()
	if err != nil {
		return nil, err
	}
	return idx[filename], nil
}

// Invalidate clears the cache; the next Get rebuilds it.
func (i *Index) Invalidate() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cache = nil
}

func build(root string) (map[string][]string, error) {
	index := make(map[string][]string)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), vault.NoteSuffix) {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if hiddenDir(rel) {
			return nil
		}
		stem := note.Stem(d.Name())
		index[stem] = append(index[stem], rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("wikilink: build index: %w", err)
	}
	return index, nil
}

// hiddenDir reports whether any ancestor directory segment (the filename
// itself excluded) starts with "." or "_". This is a looser, directory-only
// filter than the full sandbox policy.
func hiddenDir(rel string) bool {
	parts := strings.Split(rel, "/")
	for _, seg := range parts[:len(parts)-1] {
		if strings.HasPrefix(seg, ".") || strings.HasPrefix(seg, "_") {
			return true
		}
	}
	return false
}

// Backlink is one note that links to a target stem.
type Backlink struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Finder scans raw note content for wikilinks to a target stem.
type Finder struct {
	root string
}

// NewFinder creates a backlink finder over the given vault root.
func NewFinder(root string) *Finder {
	return &Finder{root: root}
}

// Find returns every eligible note containing a wikilink whose target
// equals stem: one backlink per source note (first match only), with a
// 50-characters-before/after context snippet.
func (f *Finder) Find(stem string) ([]Backlink, error) {
	var out []Backlink
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), vault.NoteSuffix) {
			return nil
		}
		rel, relErr := filepath.Rel(f.root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if hiddenDir(rel) {
			return nil
		}
		data, readErr := os.ReadFile(p)
		if readErr != nil {
			return nil
		}
		content := string(data)

		for _, m := range linkRe.FindAllStringSubmatchIndex(content, -1) {
			name := strings.TrimSpace(content[m[2]:m[3]])
			if name != stem {
				continue
			}
			out = append(out, Backlink{
				Path:    rel,
				Title:   extractTitle(content, d.Name()),
				Snippet: contextSnippet(content, m[0], m[1]),
			})
			break // one backlink per source note
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("wikilink: find backlinks: %w", err)
	}
	return out, nil
}

// contextSnippet takes 50 characters before and after the match, flattens
// newlines to spaces, and wraps the result in ellipsis markers. start and
// end are byte offsets from the regexp match; the window is widened rune
// by rune so it never splits a multibyte character.
func contextSnippet(content string, start, end int) string {
	from := start
	for n := 0; n < 50 && from > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(content[:from])
		from -= size
	}
	to := end
	for n := 0; n < 50 && to < len(content); n++ {
		_, size := utf8.DecodeRuneInString(content[to:])
		to += size
	}
	snippet := strings.TrimSpace(strings.ReplaceAll(content[from:to], "\n", " "))
	return "..." + snippet + "..."
}

var (
	frontmatterRe      = regexp.MustCompile(`(?s)^---\s*\n(.*?)\n---`)
	frontmatterTitleRe = regexp.MustCompile(`(?m)^title:\s*["']?(.+?)["']?\s*$`)
	headingRe          = regexp.MustCompile(`(?m)^#\s+(.+)$`)
)

// extractTitle is a lightweight pattern scan: a frontmatter title line,
// then the first heading line, then the filename stem. It deliberately
// avoids a full YAML parse.
func extractTitle(content, filename string) string {
	if fm := frontmatterRe.FindStringSubmatch(content); fm != nil {
		if t := frontmatterTitleRe.FindStringSubmatch(fm[1]); t != nil {
			return strings.TrimSpace(t[1])
		}
	}
	if h := headingRe.FindStringSubmatch(content); h != nil {
		return strings.TrimSpace(h[1])
	}
	return note.Stem(filename)
}
