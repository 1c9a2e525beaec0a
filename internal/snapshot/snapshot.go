// Package snapshot publishes a point-in-time copy of a repository's tracked
// content to object storage. A run moves through a fixed sequence of steps:
//
//	init → materialize → archive → publish → report
//
// and stops at the first failure. The scoped workspace holding the working
// copy and the archive is removed on every path.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tomasbasham/git-snapshot/internal/archive"
	"github.com/tomasbasham/git-snapshot/internal/materialize"
	"github.com/tomasbasham/git-snapshot/internal/storage"
	"github.com/tomasbasham/git-snapshot/internal/workspace"
)

const (
	workingCopyDir = "repo"
	archiveFile    = "snapshot" + archive.Extension
	contentType    = "application/gzip"
)

// Config identifies what to snapshot and where to publish it.
type Config struct {
	// Bucket is the destination bucket. Required.
	Bucket string

	// Prefix is prepended to the artifact name to form the object key. May
	// be empty.
	Prefix string

	// Root is the repository to snapshot: a local path or a remote URL.
	// Defaults to the current working directory.
	Root string
}

// Resolve returns a copy of c with defaults applied: an empty Root becomes the
// current working directory and a relative local Root is made absolute.
func (c Config) Resolve() (Config, error) {
	if c.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return c, fmt.Errorf("failed to get current working directory: %w", err)
		}
		c.Root = wd
		return c, nil
	}
	if path, ok := materialize.LocalPath(c.Root); ok && !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return c, fmt.Errorf("failed to resolve repository root %q: %w", c.Root, err)
		}
		c.Root = abs
	}
	return c, nil
}

// Validate reports whether c is complete enough to start a run.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("bucket is required")
	}
	if c.Root == "" {
		return errors.New("repository root is required")
	}
	return nil
}

// Connector resolves ambient credentials and returns an Uploader bound to
// bucket.
type Connector func(ctx context.Context, bucket string) (storage.Uploader, error)

// Result describes a published snapshot.
type Result struct {
	Bucket   string
	Key      string
	Location string

	// SignedURL is set when the backend supports signed retrieval URLs.
	SignedURL string

	// Size is the archive size in bytes.
	Size int64
}

// Pipeline sequences the snapshot steps. The zero value is not usable;
// Connect is required.
type Pipeline struct {
	// Materializer produces the working copy. Defaults to GitCloner.
	Materializer materialize.Materializer

	// Archiver packs the working copy. Defaults to TarCommand.
	Archiver archive.Archiver

	// Connect is called once per run, after configuration is validated.
	Connect Connector

	// Log receives progress messages. Defaults to a discarding logger.
	Log logrus.FieldLogger

	// UploadTimeout bounds the publish step. Zero disables the bound.
	UploadTimeout time.Duration

	// TempDir is the parent for the scoped workspace. Empty selects the
	// system temporary directory.
	TempDir string
}

// Run executes one snapshot of cfg. The returned error, if any, is a
// *StepError identifying the first failing step.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (*Result, error) {
	cfg, err := cfg.Resolve()
	if err != nil {
		return nil, stepError(StepInit, ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, stepError(StepInit, ErrConfiguration, err)
	}
	if p.Connect == nil {
		return nil, stepError(StepInit, ErrConfiguration, errors.New("no storage backend configured"))
	}

	log := p.logger().WithFields(logrus.Fields{
		"bucket": cfg.Bucket,
		"root":   cfg.Root,
	})

	uploader, err := p.Connect(ctx, cfg.Bucket)
	if err != nil {
		return nil, stepError(StepInit, ErrCredentials, err)
	}
	if c, ok := uploader.(io.Closer); ok {
		defer c.Close()
	}

	ws, err := workspace.New(p.TempDir, "")
	if err != nil {
		return nil, stepError(StepInit, ErrWorkspace, err)
	}
	defer func() {
		if err := ws.Close(); err != nil {
			log.WithError(err).Warn("Failed to remove workspace")
		}
	}()
	log.WithField("workspace", ws.Dir()).Debug("Created workspace")

	repoDir, err := ws.Join(workingCopyDir)
	if err != nil {
		return nil, stepError(StepInit, ErrWorkspace, err)
	}
	archivePath, err := ws.Join(archiveFile)
	if err != nil {
		return nil, stepError(StepInit, ErrWorkspace, err)
	}

	log.WithField("step", StepMaterialize).Info("Materializing working copy")
	if err := p.materializer().Materialize(ctx, cfg.Root, repoDir); err != nil {
		return nil, stepError(StepMaterialize, ErrSubprocess, err)
	}
	if err := materialize.Verify(repoDir); err != nil {
		return nil, stepError(StepMaterialize, ErrSubprocess, err)
	}
	materialize.StripMetadata(log, repoDir)

	log.WithField("step", StepArchive).Info("Archiving working copy")
	if err := p.archiver().Archive(ctx, repoDir, archivePath); err != nil {
		return nil, stepError(StepArchive, ErrSubprocess, err)
	}
	if err := archive.Verify(archivePath); err != nil {
		return nil, stepError(StepArchive, ErrSubprocess, err)
	}

	key := DeriveKey(cfg.Prefix, ArtifactName)
	log = log.WithField("key", key)

	log.WithField("step", StepPublish).Info("Publishing snapshot")
	uploaded, size, err := p.publish(ctx, uploader, key, archivePath)
	if err != nil {
		return nil, stepError(StepPublish, ErrUpload, err)
	}
	log.WithField("location", uploaded.Location).Debug("Published snapshot")

	return &Result{
		Bucket:    cfg.Bucket,
		Key:       key,
		Location:  uploaded.Location,
		SignedURL: uploaded.SignedURL,
		Size:      size,
	}, nil
}

// publish streams the file at path to key through uploader, bounded by
// UploadTimeout.
func (p *Pipeline) publish(ctx context.Context, uploader storage.Uploader, key, path string) (*storage.UploadResult, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat archive: %w", err)
	}

	if p.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.UploadTimeout)
		defer cancel()
	}

	uploaded, err := uploader.Upload(ctx, &storage.UploadRequest{
		ObjectName:    key,
		Content:       f,
		ContentLength: info.Size(),
		ContentType:   contentType,
	})
	if err != nil {
		return nil, 0, err
	}
	return uploaded, info.Size(), nil
}

func (p *Pipeline) materializer() materialize.Materializer {
	if p.Materializer == nil {
		return &materialize.GitCloner{}
	}
	return p.Materializer
}

func (p *Pipeline) archiver() archive.Archiver {
	if p.Archiver == nil {
		return &archive.TarCommand{}
	}
	return p.Archiver
}

func (p *Pipeline) logger() logrus.FieldLogger {
	if p.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l
	}
	return p.Log
}
