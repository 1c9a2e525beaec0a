package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/git-snapshot/internal/operation"
	"github.com/tomasbasham/git-snapshot/internal/server"
)

type ServeOptions struct {
	*PipelineOptions

	Port int
	Root string

	iooption.IOStreams
}

var (
	serveLong = templates.LongDesc(`
		Start the snapshot HTTP server.

		Snapshots are requested with POST /snapshots and run in the
		background, one at a time. Their progress is available from
		GET /snapshots/{id}.`)

	serveExample = templates.Examples(`
		# Start on the default port
		git-snapshot serve --bucket my-backups

		# Start on a custom port, publishing to GCS
		git-snapshot serve --port 9090 --backend gcs --bucket my-backups`)
)

func NewServeOptions(streams iooption.IOStreams, env *Env) *ServeOptions {
	return &ServeOptions{
		PipelineOptions: NewPipelineOptions(env),
		IOStreams:       streams,
	}
}

func NewServeCommand(o *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the snapshot HTTP server",
		Long:    serveLong,
		Example: serveExample,
		Args:    cobra.NoArgs,
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

	flags.IntVarP(&o.Port, "port", "p", 8080, "Port to listen on")
	flags.StringVarP(&o.Root, "root", "r", o.env.Get(envRoot, ""), "Repository used when a request omits one (env: "+envRoot+")")

	return cmd
}

func (o *ServeOptions) Complete(cmd *cobra.Command, args []string) error {
	return nil
}

func (o *ServeOptions) Validate() error {
	if o.Port <= 0 || o.Port > 65535 {
		return fmt.Errorf("invalid port %d", o.Port)
	}
	return o.PipelineOptions.Validate()
}

func (o *ServeOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := o.Logger(o.ErrOut)

	store := operation.NewMemoryStore()
	worker := operation.NewWorker(store, o.Pipeline(log), o.Bucket, log)
	srv := server.New(ctx, store, worker, o.Root)

	addr := fmt.Sprintf(":%d", o.Port)
	log.WithField("addr", addr).Info("Starting snapshot server")
	return srv.ListenAndServe(addr)
}
