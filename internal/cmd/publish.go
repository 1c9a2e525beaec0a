package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/git-snapshot/internal/snapshot"
)

type PublishOptions struct {
	*PipelineOptions

	Prefix string
	Root   string

	iooption.IOStreams
}

var (
	publishLong = templates.LongDesc(`
		Publish a snapshot of a repository's tracked content.

		The repository is cloned without history, stripped of its metadata,
		packed into a gzip-compressed tarball and uploaded to the bucket as a
		single object. An existing object with the same key is replaced.`)

	publishExample = templates.Examples(`
		# Snapshot the repository in the current directory
		git-snapshot publish --bucket my-backups

		# Snapshot another repository under a prefix
		git-snapshot publish --bucket my-backups --prefix daily --root ~/src/project

		# Snapshot into a local directory without any external tools
		git-snapshot publish --backend file --bucket /var/backups --materializer go-git --archiver builtin`)
)

func NewPublishOptions(streams iooption.IOStreams, env *Env) *PublishOptions {
	return &PublishOptions{
		PipelineOptions: NewPipelineOptions(env),
		IOStreams:       streams,
	}
}

func NewPublishCommand(o *PublishOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "publish",
		DisableFlagsInUseLine: true,
		Short:                 "Publish a snapshot of a repository to object storage",
		Long:                  publishLong,
		Example:               publishExample,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			if err := o.Run(); err != nil {
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	o.PipelineOptions.AddFlags(flags)

	flags.StringVarP(&o.Prefix, "prefix", "p", o.env.Get(envPrefix, ""), "Key prefix for the snapshot object (env: "+envPrefix+")")
	flags.StringVarP(&o.Root, "root", "r", o.env.Get(envRoot, ""), "Path or URL of the repository (env: "+envRoot+") (default: current directory)")

	return cmd
}

func (o *PublishOptions) Complete(cmd *cobra.Command, args []string) error {
	if o.Root != "" {
		return nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current working directory: %w", err)
	}
	o.Root = wd
	return nil
}

func (o *PublishOptions) Validate() error {
	return o.PipelineOptions.Validate()
}

func (o *PublishOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := o.Logger(o.ErrOut)
	pipeline := o.Pipeline(log)

	result, err := pipeline.Run(ctx, snapshot.Config{
		Bucket: o.Bucket,
		Prefix: o.Prefix,
		Root:   o.Root,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(o.Out, "Success. Snapshot is published in %s\n", result.Location)
	if result.SignedURL != "" {
		fmt.Fprintf(o.Out, "Signed URL: %s\n", result.SignedURL)
	}
	return nil
}
