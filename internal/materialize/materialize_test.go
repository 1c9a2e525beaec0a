package materialize

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFixtureRepo creates a repository with one commit containing files, and
// then leaves an uncommitted file in the worktree.
func newFixtureRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
	}

	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "untracked.txt"), []byte("scratch"), 0o644))
	return dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestTreeExporterLocalRepository(t *testing.T) {
	src := newFixtureRepo(t, map[string]string{
		"README.md":      "hello",
		"src/main.go":    "package main",
		"docs/a/b/c.txt": "deep",
	})
	dest := filepath.Join(t.TempDir(), "repo")

	err := (&TreeExporter{}).Materialize(context.Background(), src, dest)
	require.NoError(t, err)

	assert.Equal(t, "hello", readFile(t, filepath.Join(dest, "README.md")))
	assert.Equal(t, "package main", readFile(t, filepath.Join(dest, "src", "main.go")))
	assert.Equal(t, "deep", readFile(t, filepath.Join(dest, "docs", "a", "b", "c.txt")))

	assert.NoFileExists(t, filepath.Join(dest, "untracked.txt"))
	assert.NoDirExists(t, filepath.Join(dest, MetadataDir))
}

func TestTreeExporterEmptyRepository(t *testing.T) {
	src := t.TempDir()
	_, err := git.PlainInit(src, false)
	require.NoError(t, err)
	dest := filepath.Join(t.TempDir(), "repo")

	require.NoError(t, (&TreeExporter{}).Materialize(context.Background(), src, dest))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTreeExporterMissingRepository(t *testing.T) {
	src := filepath.Join(t.TempDir(), "does-not-exist")
	dest := filepath.Join(t.TempDir(), "repo")

	err := (&TreeExporter{}).Materialize(context.Background(), src, dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, git.ErrRepositoryNotExists)
	assert.NoDirExists(t, dest)
}

func TestTreeExporterCancelled(t *testing.T) {
	src := newFixtureRepo(t, map[string]string{"a.txt": "a"})
	dest := filepath.Join(t.TempDir(), "repo")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := (&TreeExporter{}).Materialize(ctx, src, dest)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGitClonerLocalRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	src := newFixtureRepo(t, map[string]string{"README.md": "hello", "pkg/x.go": "package pkg"})
	dest := filepath.Join(t.TempDir(), "repo")

	require.NoError(t, (&GitCloner{}).Materialize(context.Background(), src, dest))

	assert.Equal(t, "hello", readFile(t, filepath.Join(dest, "README.md")))
	assert.Equal(t, "package pkg", readFile(t, filepath.Join(dest, "pkg", "x.go")))
	assert.NoFileExists(t, filepath.Join(dest, "untracked.txt"))
	assert.DirExists(t, filepath.Join(dest, MetadataDir))
}

func TestGitClonerMissingRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	src := filepath.Join(t.TempDir(), "does-not-exist")
	dest := filepath.Join(t.TempDir(), "repo")

	err := (&GitCloner{}).Materialize(context.Background(), src, dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clone of")
}

func TestStripMetadata(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, MetadataDir, "objects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("k"), 0o644))

	logger, hook := test.NewNullLogger()
	StripMetadata(logger, dir)

	assert.NoDirExists(t, filepath.Join(dir, MetadataDir))
	assert.FileExists(t, filepath.Join(dir, "keep.txt"))
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.WarnLevel, e.Level)
	}
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, Verify(dir))

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Error(t, Verify(file))
	assert.Error(t, Verify(filepath.Join(dir, "missing")))
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		source string
		path   string
		local  bool
	}{
		{source: "/srv/repo", path: "/srv/repo", local: true},
		{source: "relative/repo", path: "relative/repo", local: true},
		{source: "file:///srv/repo", path: "/srv/repo", local: true},
		{source: "https://github.com/example/repo.git", local: false},
		{source: "git@github.com:example/repo.git", local: false},
		{source: "ssh://git@example.com/repo.git", local: false},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			path, local := LocalPath(tt.source)
			assert.Equal(t, tt.local, local)
			assert.Equal(t, tt.path, path)
		})
	}
}
