package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/tomasbasham/git-snapshot/internal/archive"
	"github.com/tomasbasham/git-snapshot/internal/materialize"
	"github.com/tomasbasham/git-snapshot/internal/snapshot"
	"github.com/tomasbasham/git-snapshot/internal/storage"
)

// Supported storage backends.
const (
	backendS3   = "s3"
	backendGCS  = "gcs"
	backendFile = "file"
)

// Supported materializers and archivers.
const (
	materializerGit   = "git"
	materializerGoGit = "go-git"

	archiverTar     = "tar"
	archiverBuiltin = "builtin"
)

// PipelineOptions holds the flags shared by every command that runs
// snapshots.
type PipelineOptions struct {
	env *Env

	Bucket        string
	Backend       string
	Materializer  string
	Archiver      string
	UploadTimeout time.Duration
	TempDir       string
	LogLevel      string
}

// NewPipelineOptions provides PipelineOptions whose defaults come from env.
func NewPipelineOptions(env *Env) *PipelineOptions {
	return &PipelineOptions{env: env}
}

// AddFlags registers the pipeline flags on fs.
func (o *PipelineOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Bucket, "bucket", "b", o.env.Get(envBucket, ""), "Bucket to publish snapshots into (env: "+envBucket+")")
	fs.StringVar(&o.Backend, "backend", o.env.Get(envBackend, backendS3), "Storage backend: s3, gcs or file (env: "+envBackend+")")
	fs.StringVar(&o.Materializer, "materializer", materializerGit, "Working copy materializer: git or go-git")
	fs.StringVar(&o.Archiver, "archiver", archiverTar, "Archiver: tar or builtin")
	fs.DurationVar(&o.UploadTimeout, "upload-timeout", 10*time.Minute, "Maximum duration of the upload (0 disables the limit)")
	fs.StringVar(&o.TempDir, "temp-dir", "", "Parent directory for the temporary workspace (default: system temporary directory)")
	fs.StringVar(&o.LogLevel, "log-level", o.env.Get(envLogLevel, "info"), "Log level: debug, info, warn or error (env: "+envLogLevel+")")
}

// Validate checks the pipeline flags.
func (o *PipelineOptions) Validate() error {
	if o.Bucket == "" {
		return fmt.Errorf("bucket is required (set --bucket or %s)", envBucket)
	}
	switch o.Backend {
	case backendS3, backendGCS, backendFile:
	default:
		return fmt.Errorf("unsupported backend %q", o.Backend)
	}
	switch o.Materializer {
	case materializerGit, materializerGoGit:
	default:
		return fmt.Errorf("unsupported materializer %q", o.Materializer)
	}
	switch o.Archiver {
	case archiverTar, archiverBuiltin:
	default:
		return fmt.Errorf("unsupported archiver %q", o.Archiver)
	}
	if o.UploadTimeout < 0 {
		return fmt.Errorf("upload timeout must not be negative")
	}
	if _, err := logrus.ParseLevel(o.LogLevel); err != nil {
		return err
	}
	return nil
}

// Logger creates the logger for a command writing diagnostics to w.
func (o *PipelineOptions) Logger(w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	if level, err := logrus.ParseLevel(o.LogLevel); err == nil {
		log.SetLevel(level)
	}
	return log
}

// Pipeline assembles a snapshot pipeline from the flags.
func (o *PipelineOptions) Pipeline(log logrus.FieldLogger) *snapshot.Pipeline {
	p := &snapshot.Pipeline{
		Connect:       o.connector(),
		Log:           log,
		UploadTimeout: o.UploadTimeout,
		TempDir:       o.TempDir,
	}

	switch o.Materializer {
	case materializerGoGit:
		p.Materializer = &materialize.TreeExporter{}
	default:
		p.Materializer = &materialize.GitCloner{}
	}

	switch o.Archiver {
	case archiverBuiltin:
		p.Archiver = &archive.Writer{}
	default:
		p.Archiver = &archive.TarCommand{}
	}

	return p
}

func (o *PipelineOptions) connector() snapshot.Connector {
	switch o.Backend {
	case backendGCS:
		return func(ctx context.Context, bucket string) (storage.Uploader, error) {
			return storage.NewGCSUploader(ctx, bucket)
		}
	case backendFile:
		return func(_ context.Context, bucket string) (storage.Uploader, error) {
			return storage.NewLocalUploader(bucket)
		}
	default:
		return func(ctx context.Context, bucket string) (storage.Uploader, error) {
			return storage.NewS3Uploader(ctx, bucket, o.awsDotenvOptions()...)
		}
	}
}

// awsDotenvOptions carries AWS settings found only in the dotenv file into
// the SDK config loader, since the loader reads the process environment.
func (o *PipelineOptions) awsDotenvOptions() []func(*config.LoadOptions) error {
	var opts []func(*config.LoadOptions) error

	for _, key := range []string{"AWS_REGION", "AWS_DEFAULT_REGION"} {
		if region, ok := o.env.FromFile(key); ok && region != "" {
			opts = append(opts, config.WithRegion(region))
			break
		}
	}

	id, idOK := o.env.FromFile("AWS_ACCESS_KEY_ID")
	secret, secretOK := o.env.FromFile("AWS_SECRET_ACCESS_KEY")
	if idOK && secretOK {
		token, _ := o.env.FromFile("AWS_SESSION_TOKEN")
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(id, secret, token),
		))
	}

	return opts
}
