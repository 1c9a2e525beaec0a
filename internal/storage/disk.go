package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader writes objects to a directory on the local filesystem, which
// plays the role of the bucket. The Location returned is a file:// URL.
type LocalUploader struct {
	baseDir string
}

// NewLocalUploader creates a LocalUploader that writes objects under
// baseDir. The directory is created if it does not already exist.
func NewLocalUploader(baseDir string) (*LocalUploader, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("storage: local base directory must not be empty")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: failed to create local base directory %q: %w", baseDir, err)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to resolve absolute path for %q: %w", baseDir, err)
	}
	return &LocalUploader{baseDir: abs}, nil
}

// Upload writes content to baseDir/objectName, creating any intermediate
// directories as needed. The object is written to a temporary file first and
// renamed into place, so readers never observe a partial object.
func (u *LocalUploader) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("storage: upload cancelled for %q: %w", req.ObjectName, err)
	}

	dest := filepath.Join(u.baseDir, filepath.FromSlash(req.ObjectName))
	if !within(u.baseDir, dest) {
		return nil, fmt.Errorf("storage: object name %q escapes base directory", req.ObjectName)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("storage: failed to create directory for %q: %w", req.ObjectName, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("storage: failed to create file for %q: %w", req.ObjectName, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, req.Content); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("storage: failed to write file %q: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("storage: failed to write file %q: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return nil, fmt.Errorf("storage: failed to move file into place at %q: %w", dest, err)
	}

	fileURL := &url.URL{Scheme: "file", Path: filepath.ToSlash(dest)}

	return &UploadResult{
		ObjectName: req.ObjectName,
		Location:   fileURL.String(),
	}, nil
}

// within reports whether path names an entry strictly below base.
func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
