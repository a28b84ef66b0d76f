package index

import (
	"strings"
	"unicode"
)

const (
	snippetBefore   = 60
	snippetAfter    = 90
	fallbackSnippet = 150
	ellipsis        = "…"
)

// buildSnippet returns a context window around the earliest occurrence of
// any query term, with that occurrence wrapped in <mark> tags
// (case-insensitive match, original casing preserved). When no term occurs
// verbatim the first 150 characters are returned, with a trailing ellipsis
// if truncated.
//
// All offsets are counted in runes, never bytes, so a window boundary can
// never split a multibyte character and the highlight span is taken
// straight from the match offset in the original text.
func buildSnippet(body, query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return fallback(body)
	}

	runes := []rune(body)
	lower := make([]rune, len(runes))
	for i, r := range runes {
		lower[i] = unicode.ToLower(r)
	}

	best, bestLen := -1, 0
	for _, term := range strings.Fields(normalized) {
		termRunes := []rune(term)
		pos := runeIndex(lower, termRunes)
		if pos < 0 {
			continue
		}
		// Smallest offset wins; on a tie the earlier term keeps the slot.
		if best < 0 || pos < best {
			best = pos
			bestLen = len(termRunes)
		}
	}
	if best < 0 {
		return fallback(body)
	}

	start := best - snippetBefore
	if start < 0 {
		start = 0
	}
	end := best + bestLen + snippetAfter
	if end > len(runes) {
		end = len(runes)
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString(ellipsis)
	}
	b.WriteString(string(runes[start:best]))
	b.WriteString("<mark>")
	b.WriteString(string(runes[best : best+bestLen]))
	b.WriteString("</mark>")
	b.WriteString(string(runes[best+bestLen : end]))
	if end < len(runes) {
		b.WriteString(ellipsis)
	}
	return b.String()
}

// runeIndex returns the offset of the first occurrence of needle in
// haystack, or -1.
func runeIndex(haystack, needle []rune) int {
	if len(needle) == 0 {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func fallback(body string) string {
	runes := []rune(body)
	if len(runes) > fallbackSnippet {
		return string(runes[:fallbackSnippet]) + ellipsis
	}
	return body
}
