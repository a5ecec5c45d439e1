package transfer

import (
	"path/filepath"
	"strings"
)

// Excludes is a case-insensitive set of file names and absolute paths that
// copy and delete passes skip. The updater's own executable name is the
// standing member: the process cannot replace or delete the file that is
// currently executing it.
type Excludes struct {
	names map[string]struct{}
	paths map[string]struct{}
}

// NewExcludes returns an empty exclusion set.
func NewExcludes() *Excludes {
	return &Excludes{
		names: make(map[string]struct{}),
		paths: make(map[string]struct{}),
	}
}

// AddName excludes every file with this base name, wherever it appears.
func (e *Excludes) AddName(name string) {
	if name != "" {
		e.names[strings.ToLower(name)] = struct{}{}
	}
}

// AddPath excludes one specific file.
func (e *Excludes) AddPath(path string) {
	if path != "" {
		e.paths[strings.ToLower(filepath.Clean(path))] = struct{}{}
	}
}

// Match reports whether path is excluded, by base name or full path.
func (e *Excludes) Match(path string) bool {
	if _, ok := e.names[strings.ToLower(filepath.Base(path))]; ok {
		return true
	}
	_, ok := e.paths[strings.ToLower(filepath.Clean(path))]
	return ok
}
