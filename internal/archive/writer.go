package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Writer archives in-process with archive/tar and compress/gzip. It stores
// regular files, directories and symlinks; other file types are skipped.
type Writer struct {
	// Level is the gzip compression level. Zero selects gzip.DefaultCompression.
	Level int
}

// Archive walks srcDir and writes every entry to a new archive at dest. A
// partially written archive is removed on failure.
func (a *Writer) Archive(ctx context.Context, srcDir, dest string) (err error) {
	level := a.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("archive: failed to create %q: %w", dest, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(dest)
		}
	}()

	gz, err := gzip.NewWriterLevel(f, level)
	if err != nil {
		return fmt.Errorf("archive: invalid compression level %d: %w", level, err)
	}
	tw := tar.NewWriter(gz)

	if err := walk(ctx, srcDir, tw); err != nil {
		return fmt.Errorf("archive: failed to pack %q: %w", srcDir, err)
	}

	// Close in order: tar flushes its trailer into gzip, gzip its footer into
	// the file.
	if err := tw.Close(); err != nil {
		return fmt.Errorf("archive: failed to finalise tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("archive: failed to finalise gzip stream: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("archive: failed to close %q: %w", dest, err)
	}
	return nil
}

func walk(ctx context.Context, root string, tw *tar.Writer) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		switch {
		case info.Mode().IsRegular(), info.IsDir():
		case info.Mode()&fs.ModeSymlink != 0:
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		default:
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		// Ownership is host specific; keep the archive portable.
		hdr.Uid, hdr.Gid = 0, 0
		hdr.Uname, hdr.Gname = "", ""

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
}
