// Package tree builds the display-only vault directory tree with a
// short-lived cache for the sidebar UI.
package tree

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Blocked directory names, hidden even when they exist in the vault.
// Attachments stay reachable through the attachments endpoint only.
var blockedNames = map[string]struct{}{
	"_private":     {},
	"_attachments": {},
}

const cacheKey = "tree"

// Node is one entry of the nested tree. Directories carry Children,
// files carry Path.
type Node struct {
	Type     string  `json:"type"`
	Name     string  `json:"name"`
	Path     string  `json:"path,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Cache owns the vault tree and its TTL cache. Created and owned by the
// composition root; never process-global.
type Cache struct {
	root  string
	cache *expirable.LRU[string, *Node]
}

// New creates a tree cache over root with the given TTL.
func New(root string, ttl time.Duration) *Cache {
	return &Cache{
		root:  root,
		cache: expirable.NewLRU[string, *Node](1, nil, ttl),
	}
}

// Get returns the vault tree, rebuilding it when the cached copy expired.
func (c *Cache) Get() (*Node, error) {
	if n, ok := c.cache.Get(cacheKey); ok {
		return n, nil
	}
	n, err := walk(c.root, "")
	if err != nil {
		return nil, fmt.Errorf("tree: walk: %w", err)
	}
	// Root label is always "notes" for a consistent frontend label.
	n.Name = "notes"
	c.cache.Add(cacheKey, n)
	return n, nil
}

// Invalidate drops the cached tree.
func (c *Cache) Invalidate() {
	c.cache.Purge()
}

func hidden(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, blocked := blockedNames[name]
	return blocked
}

// walk returns the nested tree for dir. prefix is the relative path from
// the vault root, empty for the root itself. Within every directory:
// sub-directories first, then files, both sorted by name.
func walk(dir, prefix string) (*Node, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var dirs, files []os.DirEntry
	for _, e := range entries {
		if hidden(e.Name()) {
			continue
		}
		switch {
		case e.IsDir():
			dirs = append(dirs, e)
		case e.Type().IsRegular():
			files = append(files, e)
		}
		// Symlinks and other entries are skipped silently.
	}

	node := &Node{Type: "dir", Name: filepath.Base(dir)}
	for _, d := range dirs {
		child, err := walk(filepath.Join(dir, d.Name()), prefix+d.Name()+"/")
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	for _, f := range files {
		node.Children = append(node.Children, &Node{
			Type: "file",
			Name: f.Name(),
			Path: prefix + f.Name(),
		})
	}
	return node, nil
}
