package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreatesDirectory(t *testing.T) {
	parent := t.TempDir()

	ws, err := New(parent, "")
	require.NoError(t, err)
	defer ws.Close()

	info, err := os.Stat(ws.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, parent, filepath.Dir(ws.Dir()))
	assert.True(t, strings.HasPrefix(filepath.Base(ws.Dir()), DefaultPattern))
}

func TestNewResolvesRelativeParent(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(base, "ws"), 0o755))
	t.Chdir(base)

	ws, err := New("ws", "")
	require.NoError(t, err)
	defer ws.Close()

	assert.True(t, filepath.IsAbs(ws.Dir()))
	assert.Equal(t, filepath.Join(base, "ws"), filepath.Dir(ws.Dir()))
}

func TestNewFailsForMissingParent(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "deeper"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workspace:")
}

func TestCloseRemovesContents(t *testing.T) {
	ws, err := New(t.TempDir(), "ws-")
	require.NoError(t, err)

	sub, err := ws.Join("repo")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(sub, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "nested", "file.txt"), []byte("x"), 0o644))

	require.NoError(t, ws.Close())
	_, err = os.Stat(ws.Dir())
	assert.True(t, os.IsNotExist(err))

	// Second close is a no-op.
	assert.NoError(t, ws.Close())
}

func TestJoinRejectsEscapes(t *testing.T) {
	ws, err := New(t.TempDir(), "")
	require.NoError(t, err)
	defer ws.Close()

	for _, name := range []string{"", ".", "..", "a/b", "../x"} {
		_, err := ws.Join(name)
		assert.Error(t, err, name)
	}

	p, err := ws.Join("snapshot.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.Dir(), "snapshot.tar.gz"), p)
}
