// Package workspace provides scoped temporary directories. A Workspace is
// owned by exactly one run and is removed, with everything inside it, when
// the run closes it.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultPattern is the directory name pattern used when none is given.
const DefaultPattern = "git-snapshot-"

// Workspace is an exclusively owned temporary directory.
type Workspace struct {
	dir string

	once sync.Once
	err  error
}

// New creates a fresh directory under parent. An empty parent selects the
// system temporary directory. The workspace root is always absolute, even
// when parent is relative.
func New(parent, pattern string) (*Workspace, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	dir, err := os.MkdirTemp(parent, pattern)
	if err != nil {
		return nil, fmt.Errorf("workspace: failed to create temporary directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("workspace: failed to resolve absolute path for %q: %w", dir, err)
	}
	return &Workspace{dir: abs}, nil
}

// Dir returns the absolute path of the workspace root.
func (w *Workspace) Dir() string {
	return w.dir
}

// Join returns the path of a direct child of the workspace. Names containing
// a path separator are rejected so that nothing escapes the workspace root.
func (w *Workspace) Join(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, os.PathSeparator) || strings.Contains(name, "/") {
		return "", fmt.Errorf("workspace: invalid entry name %q", name)
	}
	return filepath.Join(w.dir, name), nil
}

// Close removes the workspace and all of its contents. It is safe to call
// more than once; later calls return the result of the first.
func (w *Workspace) Close() error {
	w.once.Do(func() {
		if err := os.RemoveAll(w.dir); err != nil {
			w.err = fmt.Errorf("workspace: failed to remove %q: %w", w.dir, err)
		}
	})
	return w.err
}
