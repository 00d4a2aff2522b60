package main

import (
	"io"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	_ "github.com/drblury/flowbind/binder/binders"
	"github.com/drblury/flowbind/internal/runtime/logging"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "flowbind",
		Short:         "Inspect and validate flowbind binding configuration",
		Long:          "flowbind loads a bindings YAML file, validates it against the selected binder and prints the effective channel table.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	logger := func() logging.ServiceLogger {
		return newCLILogger(stderr, verbose)
	}

	root.AddCommand(
		newValidateCmd(logger),
		newBindingsCmd(logger),
		newBindersCmd(),
	)
	return root
}

func newCLILogger(w io.Writer, verbose bool) logging.ServiceLogger {
	level := charmlog.InfoLevel
	if verbose {
		level = charmlog.DebugLevel
	}
	return logging.NewCharmServiceLogger(charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "flowbind",
		Formatter:       charmlog.TextFormatter,
	}))
}
