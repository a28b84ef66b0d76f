// Package note reads single notes and splits frontmatter from body.
package note

import (
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pinotes/pinotes/internal/vault"
)

const delim = "---"

// Detail is the parsed representation of a single note.
type Detail struct {
	Path        string         `json:"path"`
	Frontmatter map[string]any `json:"frontmatter"`
	Body        string         `json:"body"`
}

// Split separates an optional leading frontmatter block from the body.
//
// A block is recognised only when the content opens with a "---" line and
// closes at the next line containing solely "---". A YAML parse failure,
// or a parsed value that is not a mapping, is treated as no frontmatter:
// the entire original content is returned unchanged as the body.
func Split(content string) (map[string]any, string) {
	if !strings.HasPrefix(content, delim+"\n") {
		return nil, content
	}
	idx := strings.Index(content[len(delim):], "\n"+delim+"\n")
	if idx < 0 {
		return nil, content
	}
	end := idx + len(delim) // index of the newline before the closing delimiter

	rawYAML := content[len(delim)+1 : end+1]
	body := content[end+1+len(delim)+1:]

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(rawYAML), &fm); err != nil {
		return nil, content
	}
	if fm == nil {
		// Scalar or empty YAML is not a mapping.
		return nil, content
	}
	return fm, body
}

// DeriveTitle returns the note title by priority: a non-empty frontmatter
// "title" field, then the first body line beginning with a heading marker
// (markers stripped), then the filename stem.
func DeriveTitle(filename, body string, fm map[string]any) string {
	if fm != nil {
		if t, ok := fm["title"].(string); ok && strings.TrimSpace(t) != "" {
			return strings.TrimSpace(t)
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return Stem(filename)
}

// Stem returns a filename without its extension.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Read validates raw through the sandbox, reads the note, and splits it.
func Read(v *vault.Vault, raw string) (*Detail, error) {
	data, err := v.ReadNote(raw)
	if err != nil {
		return nil, err
	}
	fm, body := Split(string(data))
	return &Detail{Path: raw, Frontmatter: fm, Body: body}, nil
}
