package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultIgnorePatterns skip dotfiles such as the ignore file itself or
// editor and OS droppings.
var defaultIgnorePatterns = []string{".*"}

type ignorePattern struct {
	pattern string
	negate  bool
}

// IgnoreMatcher decides which files in a track directory are skipped.
// Patterns are shell globs matched against the file name; a leading '!'
// re-includes files an earlier pattern excluded. The last matching pattern
// wins.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher parses raw patterns on top of the defaults.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, raw := range append(append([]string(nil), defaultIgnorePatterns...), rawPatterns...) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		p := ignorePattern{pattern: raw}
		if strings.HasPrefix(raw, "!") {
			p.negate = true
			p.pattern = raw[1:]
		}
		if p.pattern == "" {
			continue
		}
		m.patterns = append(m.patterns, p)
	}
	return m
}

// Match reports whether name should be ignored.
func (m *IgnoreMatcher) Match(name string) bool {
	base := filepath.Base(name)
	ignored := false
	for _, p := range m.patterns {
		matched, err := filepath.Match(p.pattern, base)
		if err != nil || !matched {
			continue
		}
		ignored = !p.negate
	}
	return ignored
}

// ParseIgnoreFile reads an ignore file. A missing file yields no patterns.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
