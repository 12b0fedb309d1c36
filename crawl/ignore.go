package crawl

import (
	"regexp"
	"strings"
)

// Ignores is a compiled union of regex patterns matched against a path's unresolved display
// string. Go's regexp package has no native RegexSet, so the union is a single alternation —
// equivalent in matching semantics, and cheap to share read-only across concurrent crawl
// goroutines since *regexp.Regexp is itself safe for concurrent use.
type Ignores struct {
	patterns []string
	union    *regexp.Regexp
}

// NewIgnores compiles patterns into one alternation. An empty patterns slice matches nothing.
func NewIgnores(patterns []string) (Ignores, error) {
	if len(patterns) == 0 {
		return Ignores{}, nil
	}

	grouped := make([]string, len(patterns))
	for i, p := range patterns {
		grouped[i] = "(?:" + p + ")"
	}

	union, err := regexp.Compile(strings.Join(grouped, "|"))
	if err != nil {
		return Ignores{}, err
	}

	return Ignores{patterns: patterns, union: union}, nil
}

// ShouldIgnore reports whether path matches any of the compiled patterns.
func (ig Ignores) ShouldIgnore(path string) bool {
	if ig.union == nil {
		return false
	}
	return ig.union.MatchString(path)
}

// String renders the patterns the way the original's Display impl does, for diagnostics.
func (ig Ignores) String() string {
	quoted := make([]string, len(ig.patterns))
	for i, p := range ig.patterns {
		quoted[i] = "'" + p + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
