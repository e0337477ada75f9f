// Package filter rejects queries that contain disallowed words before any
// retrieval or model call is made.
package filter

import "strings"

// DefaultWords is the built-in disallowed vocabulary.
var DefaultWords = []string{"prost", "idiot", "jignire", "urât", "urat", "hateword", "stupid"}

// trailingPunct is stripped from the end of each token before matching.
const trailingPunct = ".,!?"

// Filter matches whole tokens against a fixed word set. It is immutable
// after construction and safe for concurrent use.
type Filter struct {
	words map[string]struct{}
}

// New builds a Filter from words. Words are trimmed and lower-cased; empty
// entries are ignored. A nil or empty list blocks nothing.
func New(words []string) *Filter {
	f := &Filter{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			f.words[w] = struct{}{}
		}
	}
	return f
}

// ParseWords splits a comma-separated word list. An empty string yields
// DefaultWords.
func ParseWords(list string) []string {
	if strings.TrimSpace(list) == "" {
		return DefaultWords
	}
	return strings.Split(list, ",")
}

// Blocked reports whether any whitespace-separated token of query, after
// stripping trailing punctuation and lower-casing, is a disallowed word.
// Substrings of longer tokens never match.
func (f *Filter) Blocked(query string) bool {
	return len(f.Matches(query)) > 0
}

// Matches returns the disallowed tokens found in query in order of appearance.
func (f *Filter) Matches(query string) []string {
	var found []string
	for _, tok := range strings.Fields(query) {
		tok = strings.ToLower(strings.TrimRight(tok, trailingPunct))
		if _, ok := f.words[tok]; ok {
			found = append(found, tok)
		}
	}
	return found
}
