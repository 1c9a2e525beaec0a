package materialize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// TreeExporter materializes a working copy with go-git. Local repositories
// are opened in place and the tree of HEAD is written out directly, which is
// what a clone followed by checkout would produce. Remote repositories are
// cloned with depth 1.
type TreeExporter struct{}

// Materialize writes the tracked tree of source into dest.
func (e *TreeExporter) Materialize(ctx context.Context, source, dest string) error {
	if path, ok := LocalPath(source); ok {
		return e.export(ctx, path, dest)
	}
	return e.clone(ctx, source, dest)
}

func (e *TreeExporter) clone(ctx context.Context, source, dest string) error {
	_, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:          source,
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	})
	if err != nil {
		return fmt.Errorf("materialize: clone of %q failed: %w", source, err)
	}
	return nil
}

func (e *TreeExporter) export(ctx context.Context, path, dest string) error {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("materialize: failed to open repository %q: %w", path, err)
	}

	if err := os.Mkdir(dest, 0o755); err != nil {
		return fmt.Errorf("materialize: failed to create working copy: %w", err)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		// A repository without commits clones to an empty working copy.
		return nil
	}
	if err != nil {
		return fmt.Errorf("materialize: failed to resolve HEAD of %q: %w", path, err)
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return fmt.Errorf("materialize: failed to load commit %s: %w", head.Hash(), err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return fmt.Errorf("materialize: commit %s has no tree: %w", head.Hash(), err)
	}

	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return writeFile(dest, f)
	})
	if err != nil {
		return fmt.Errorf("materialize: failed to export tree of %q: %w", path, err)
	}
	return nil
}

func writeFile(dest string, f *object.File) error {
	target := filepath.Join(dest, filepath.FromSlash(f.Name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	if f.Mode == filemode.Symlink {
		link, err := f.Contents()
		if err != nil {
			return err
		}
		return os.Symlink(link, target)
	}

	perm := os.FileMode(0o644)
	if f.Mode == filemode.Executable {
		perm = 0o755
	}

	r, err := f.Reader()
	if err != nil {
		return err
	}
	defer r.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
