package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cliflag "github.com/tomasbasham/cli-runtime/flag"
	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/printer"
	"github.com/tomasbasham/cli-runtime/templates"
)

var (
	rootLong = templates.LongDesc(`
		Publish point-in-time snapshots of a repository's tracked content to
		object storage.`)

	rootExamples = templates.Examples(`
		# Publish the repository in the current directory to S3
		git-snapshot publish --bucket my-backups --prefix daily`)

	// Injected at build time using ldflags.
	version = ""
	commit  = ""
)

// dotenvFile is read from the working directory at startup.
const dotenvFile = ".env"

// SnapshotOptions defines the options for the `git-snapshot` command.
type SnapshotOptions struct {
	Env *Env

	iooption.IOStreams
}

// NewSnapshotOptions provides an initialised SnapshotOptions instance.
func NewSnapshotOptions(streams iooption.IOStreams, env *Env) *SnapshotOptions {
	return &SnapshotOptions{
		Env:       env,
		IOStreams: streams,
	}
}

// NewRootCommand creates the `git-snapshot` command with default arguments.
func NewRootCommand() *cobra.Command {
	streams := iooption.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}

	env, err := LoadEnv(dotenvFile)
	if err != nil {
		fmt.Fprintf(streams.ErrOut, "Ignoring %s: %v\n", dotenvFile, err)
	}

	return NewRootCommandWithArgs(NewSnapshotOptions(streams, env))
}

// NewRootCommandWithArgs creates the `git-snapshot` command and its nested
// children.
func NewRootCommandWithArgs(o *SnapshotOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "git-snapshot [command]",
		Version:               versionInfo(),
		DisableFlagsInUseLine: true,
		Short:                 "Repository snapshot publisher",
		Long:                  rootLong,
		Example:               rootExamples,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}

	printerOpts := printer.WarningPrinterOptions{Color: true}
	printer := printer.NewWarningPrinter(o.ErrOut, printerOpts)
	cmd.SetGlobalNormalizationFunc(cliflag.WarnWordSepNormalizeFunc(printer))

	cmd.AddCommand(NewPublishCommand(NewPublishOptions(o.IOStreams, o.Env)))
	cmd.AddCommand(NewServeCommand(NewServeOptions(o.IOStreams, o.Env)))

	// The global normalisation function ensures that all flags specified meet
	// the desired format, changing users' input if necessary.
	cmd.SetGlobalNormalizationFunc(cliflag.WordSepNormalizeFunc())

	return cmd
}

func versionInfo() string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s (commit: %s)", version, commit)
}
