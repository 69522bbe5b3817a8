// Package ignore decides which files of a sync directory take part in
// synchronization.
//
// A pattern source is a list of globs separated by whitespace or newlines.
// "#" starts a comment running to the end of the line, and the two
// character sequence `\n` also separates lines so a whole source fits in one
// environment variable. A leading "!" makes a pattern a whitelist rule.
//
//	**/* !/*.html !/static/**
//
// Paths are excluded unless a rule says otherwise, and the last matching
// rule decides. A source without any pattern includes everything.
package ignore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrPatternSyntax is returned when a pattern is not a valid glob.
var ErrPatternSyntax = errors.New("invalid ignore pattern")

// Rule is one compiled pattern.
type Rule struct {
	// Pattern is the glob matched against slash separated relative paths.
	Pattern string
	// Include marks a whitelist rule.
	Include bool
}

func (r Rule) String() string {
	if r.Include {
		return "!" + r.Pattern
	}
	return r.Pattern
}

// Set is an ordered list of rules.
type Set struct {
	rules []Rule
}

// Parse compiles a pattern source.
func Parse(source string) (*Set, error) {
	var rules []Rule
	for _, token := range tokens(source) {
		include := false
		if rest, ok := strings.CutPrefix(token, "!"); ok {
			include = true
			token = rest
		}

		pattern, err := compile(token)
		if err != nil {
			return nil, err
		}
		rules = append(rules, Rule{Pattern: pattern, Include: include})
	}
	return &Set{rules: rules}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(source string) *Set {
	s, err := Parse(source)
	if err != nil {
		panic(err)
	}
	return s
}

func compile(token string) (string, error) {
	anchored := strings.HasPrefix(token, "/")
	pattern := strings.TrimLeft(token, "/")
	if pattern == "" {
		return "", fmt.Errorf("%w: %q matches nothing", ErrPatternSyntax, token)
	}

	// Like .gitignore, a pattern without a slash matches at any depth.
	if !anchored && !strings.Contains(pattern, "/") {
		pattern = "**/" + pattern
	}

	if !doublestar.ValidatePattern(pattern) {
		return "", fmt.Errorf("%w: %q", ErrPatternSyntax, token)
	}
	return pattern, nil
}

func tokens(source string) []string {
	var out []string
	source = strings.ReplaceAll(source, `\n`, "\n")
	for line := range strings.Lines(source) {
		line, _, _ = strings.Cut(line, "#")
		out = append(out, strings.Fields(line)...)
	}
	return out
}

// Active reports whether the set holds any rule.
func (s *Set) Active() bool {
	return s != nil && len(s.rules) > 0
}

// Rules returns the compiled rules in declaration order.
func (s *Set) Rules() []Rule {
	if s == nil {
		return nil
	}
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Included reports whether the relative path rel takes part in sync.
func (s *Set) Included(rel string) bool {
	if !s.Active() {
		return true
	}

	included := false
	for _, r := range s.rules {
		// Patterns were validated by Parse, Match cannot fail.
		if ok, _ := doublestar.Match(r.Pattern, rel); ok {
			included = r.Include
		}
	}
	return included
}

func (s *Set) String() string {
	if !s.Active() {
		return "[]"
	}
	parts := make([]string, len(s.rules))
	for i, r := range s.rules {
		parts[i] = r.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
