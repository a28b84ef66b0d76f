// Package vault validates and sandboxes every path into the notes vault.
//
// All vault reads must go through Resolve. It turns an untrusted relative
// path string into an absolute filesystem path that is guaranteed to stay
// inside the vault root even after every symlink has been followed.
package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pinotes/pinotes/internal/apperr"
)

// Kind selects the validation profile for a path.
type Kind int

const (
	// KindNote requires the requested path to end in the note suffix.
	KindNote Kind = iota
	// KindAttachment accepts any regular file inside the vault.
	KindAttachment
)

// NoteSuffix is the reserved extension for note files.
const NoteSuffix = ".md"

// blockedNames are path segments rejected outright, in addition to any
// segment that starts with ".".
var blockedNames = map[string]struct{}{
	".git":     {},
	"_private": {},
}

// Vault is the immutable sandbox root. Safe for unbounded concurrent use.
type Vault struct {
	root string // physical (symlink-resolved) absolute path
}

// New creates a Vault rooted at dir. The directory must already exist.
func New(dir string) (*Vault, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("vault: resolve root: %w", err)
	}
	// Store the physical root so containment checks compare like with like.
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("vault: resolve root symlinks: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("vault: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault: root is not a directory: %s", resolved)
	}
	return &Vault{root: resolved}, nil
}

// Root returns the physical absolute path of the vault root.
func (v *Vault) Root() string {
	return v.root
}

// Resolve validates raw and returns its absolute path inside the vault.
//
// Checks, in order:
//  1. no NUL bytes
//  2. no backslashes (rules out alternate-separator tricks)
//  3. must be relative (no leading "/")
//  4. no ".." segments anywhere
//  5. no segment that starts with "." or matches a blocked name
//  6. join with the root and resolve symlinks; the physical result must
//     be the root or a descendant of it
//
// Because symlinks are chased before containment is tested, step 6 alone
// catches every symlink-escape attempt. For KindNote the *requested*
// string must additionally carry the ".md" suffix (case-insensitive), so
// a symlink cannot spoof the extension check. The target must exist as a
// regular file, otherwise apperr.ErrNotFound.
func (v *Vault) Resolve(raw string, kind Kind) (string, error) {
	if kind == KindNote && !strings.HasSuffix(strings.ToLower(raw), NoteSuffix) {
		return "", fmt.Errorf("vault: only %s files are allowed: %w", NoteSuffix, apperr.ErrMalformedPath)
	}

	if strings.ContainsRune(raw, 0) {
		return "", fmt.Errorf("vault: path contains NUL byte: %w", apperr.ErrMalformedPath)
	}
	if strings.Contains(raw, `\`) {
		return "", fmt.Errorf("vault: path contains backslash: %w", apperr.ErrMalformedPath)
	}
	if strings.HasPrefix(raw, "/") {
		return "", fmt.Errorf("vault: path must be relative: %w", apperr.ErrMalformedPath)
	}

	for _, seg := range splitSegments(raw) {
		if seg == ".." {
			return "", fmt.Errorf("vault: path contains '..' segment: %w", apperr.ErrMalformedPath)
		}
		if strings.HasPrefix(seg, ".") {
			return "", fmt.Errorf("vault: hidden segment %q: %w", seg, apperr.ErrSandboxDenied)
		}
		if _, blocked := blockedNames[seg]; blocked {
			return "", fmt.Errorf("vault: blocked segment %q: %w", seg, apperr.ErrSandboxDenied)
		}
	}

	resolved, err := v.resolveTarget(filepath.Join(v.root, raw))
	if err != nil {
		return "", err
	}
	if !v.contains(resolved) {
		return "", fmt.Errorf("vault: %q resolves outside the vault: %w", raw, apperr.ErrSandboxDenied)
	}

	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("vault: %q: %w", raw, apperr.ErrNotFound)
	}
	return resolved, nil
}

// splitSegments mirrors path-component splitting: empty and "." segments
// produced by doubled or trailing separators are dropped.
func splitSegments(raw string) []string {
	parts := strings.Split(raw, "/")
	out := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		out = append(out, p)
	}
	return out
}

// resolveTarget resolves every symlink in path. A dangling leaf symlink is
// followed one hop by hand so the containment check still sees where it
// points; a path that simply does not exist maps to ErrNotFound.
func (v *Vault) resolveTarget(path string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved, nil
	}
	fi, err := os.Lstat(path)
	if err != nil {
		return "", fmt.Errorf("vault: %q: %w", path, apperr.ErrNotFound)
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		return "", fmt.Errorf("vault: %q: %w", path, apperr.ErrNotFound)
	}
	target, err := os.Readlink(path)
	if err != nil {
		return "", fmt.Errorf("vault: %q: %w", path, apperr.ErrNotFound)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return filepath.Clean(target), nil
}

func (v *Vault) contains(abs string) bool {
	return abs == v.root || strings.HasPrefix(abs, v.root+string(os.PathSeparator))
}

// Rel converts an absolute path back to a slash-separated vault-relative one.
func (v *Vault) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(v.root, abs)
	if err != nil {
		return "", fmt.Errorf("vault: rel: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

// WalkNotes enumerates every note file under the root that the validator
// itself approves. Files that fail validation are skipped silently; only a
// broken walk aborts. Returned paths are slash-separated and vault-relative.
func (v *Vault) WalkNotes() ([]string, error) {
	var out []string
	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), NoteSuffix) {
			return nil
		}
		rel, relErr := filepath.Rel(v.root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if _, resErr := v.Resolve(rel, KindNote); resErr != nil {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vault: walk notes: %w", err)
	}
	return out, nil
}

// ReadNote validates raw as a note and returns its content.
func (v *Vault) ReadNote(raw string) ([]byte, error) {
	abs, err := v.Resolve(raw, KindNote)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("vault: read %s: %w", raw, err)
	}
	return data, nil
}
