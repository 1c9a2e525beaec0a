// Package archive packs a directory tree into a single gzip-compressed tar
// file. Entry names are relative to the source directory root.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tomasbasham/git-snapshot/internal/command"
)

// Extension is the file extension of every archive this package produces.
const Extension = ".tar.gz"

// Archiver packs srcDir into a new archive file at dest.
type Archiver interface {
	Archive(ctx context.Context, srcDir, dest string) error
}

// TarCommand archives with the system tar utility.
type TarCommand struct {
	// Binary is the tar executable. Defaults to "tar".
	Binary string
}

// Archive runs `tar -czf dest .` from within srcDir. A relative dest is
// resolved against the current working directory, not srcDir.
func (a *TarCommand) Archive(ctx context.Context, srcDir, dest string) error {
	bin := a.Binary
	if bin == "" {
		bin = "tar"
	}

	dest, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("archive: failed to resolve destination: %w", err)
	}

	if _, err := command.Run(ctx, srcDir, bin, "-czf", dest, "."); err != nil {
		return fmt.Errorf("archive: tar of %q failed: %w", srcDir, err)
	}
	return nil
}

// Verify checks that the archive at path exists and is not empty.
func Verify(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("archive: artifact missing: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("archive: artifact %q is not a regular file", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("archive: artifact %q is empty", path)
	}
	return nil
}
