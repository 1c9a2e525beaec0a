// Package materialize produces a history-free copy of a repository's tracked
// content. Two implementations are provided: GitCloner shells out to the git
// client, TreeExporter uses go-git and needs no external binary.
package materialize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/sirupsen/logrus"

	"github.com/tomasbasham/git-snapshot/internal/command"
)

// MetadataDir is the version-control bookkeeping directory removed from every
// working copy.
const MetadataDir = ".git"

const protocolFile = "file"

// Materializer writes the current tracked tree of source into dest. dest must
// be absolute and must not exist yet; its parent must. Relative sources are
// resolved against the process working directory.
type Materializer interface {
	Materialize(ctx context.Context, source, dest string) error
}

// GitCloner materializes a working copy with `git clone --depth=1`.
type GitCloner struct {
	// Binary is the git executable. Defaults to "git".
	Binary string
}

// Materialize clones source into dest. A clone that exits non-zero is
// reported with the captured stderr.
func (g *GitCloner) Materialize(ctx context.Context, source, dest string) error {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}

	_, err := command.Run(ctx, "", bin, "clone", "--quiet", "--depth=1", "--", source, dest)
	if err != nil {
		return fmt.Errorf("materialize: clone of %q failed: %w", source, err)
	}
	return nil
}

// StripMetadata removes version-control metadata from dir. It reports
// whether removal failed but never aborts; archive correctness does not
// depend on the metadata being gone.
func StripMetadata(log logrus.FieldLogger, dir string) {
	path := filepath.Join(dir, MetadataDir)
	if err := os.RemoveAll(path); err != nil {
		log.WithError(err).WithField("path", path).Warn("Failed to remove repository metadata")
	}
}

// LocalPath reports whether source addresses a repository on the local
// filesystem and, if so, returns its path. URLs with a file scheme count as
// local.
func LocalPath(source string) (string, bool) {
	endpoint, err := transport.NewEndpoint(source)
	if err != nil || endpoint.Protocol != protocolFile {
		return "", false
	}
	return endpoint.Path, true
}

// Verify checks that dir exists and is a directory.
func Verify(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("materialize: working copy missing: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("materialize: working copy %q is not a directory", dir)
	}
	return nil
}
