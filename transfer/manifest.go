package transfer

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Manifest is the set of file paths under a root directory, relative to
// that root. Membership tests are case-insensitive; the original casing
// is kept for building real paths.
type Manifest struct {
	root  string
	files map[string]string // folded rel path -> original rel path
}

// NewManifest lists root recursively and returns its manifest.
// Directories themselves are not entries, only files.
func NewManifest(root string) (*Manifest, error) {
	m := &Manifest{
		root:  root,
		files: make(map[string]string),
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		m.files[strings.ToLower(rel)] = rel
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}

	return m, nil
}

// Root returns the directory the manifest was built from.
func (m *Manifest) Root() string {
	return m.root
}

// Contains reports whether rel is in the manifest, ignoring case.
func (m *Manifest) Contains(rel string) bool {
	_, ok := m.files[strings.ToLower(rel)]
	return ok
}

// Len returns the number of files in the manifest.
func (m *Manifest) Len() int {
	return len(m.files)
}

// Paths returns the relative paths in their original casing, sorted.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.files))
	for _, rel := range m.files {
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	return paths
}
