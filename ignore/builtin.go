package ignore

import (
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// LockFile is the name of the sync directory lock.
const LockFile = ".h2kv.lock"

// TempPrefix starts the name of every temporary file written during export.
const TempPrefix = ".h2kv-"

var internalLines = []string{
	LockFile,
	TempPrefix + "*.tmp",
}

var hiddenLines = []string{
	".*",
	"*~",
	"*.swp",
	"*.swo",
	"Thumbs.db",
}

// Filter combines the built-in skip list with a user Set.
type Filter struct {
	builtin *gitignore.GitIgnore
	set     *Set
}

// NewFilter returns a Filter applying set. When skipHidden is true, hidden
// files and directories and editor swap files are skipped as well.
func NewFilter(set *Set, skipHidden bool) *Filter {
	lines := internalLines
	if skipHidden {
		lines = append(append([]string{}, internalLines...), hiddenLines...)
	}
	return &Filter{
		builtin: gitignore.CompileIgnoreLines(lines...),
		set:     set,
	}
}

// SkipDir reports whether a directory and everything below it is skipped.
func (f *Filter) SkipDir(rel string) bool {
	return f.builtin.MatchesPath(strings.TrimSuffix(rel, "/") + "/")
}

// Included reports whether the file at rel takes part in sync.
func (f *Filter) Included(rel string) bool {
	if f.builtin.MatchesPath(rel) {
		return false
	}
	return f.set.Included(rel)
}

// Set returns the user rules.
func (f *Filter) Set() *Set {
	return f.set
}

// Skipped reports whether rel, a file or a directory, is on the built-in
// skip list. The user set is not consulted.
func (f *Filter) Skipped(rel string) bool {
	return f.builtin.MatchesPath(rel) || f.SkipDir(rel)
}
