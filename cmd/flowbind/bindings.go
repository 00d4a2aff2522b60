package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/drblury/flowbind/binder"
	"github.com/drblury/flowbind/internal/runtime/config"
	"github.com/drblury/flowbind/internal/runtime/logging"
)

func newBindingsCmd(logger func() logging.ServiceLogger) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "bindings",
		Short: "Print the effective channel bindings",
		Long:  "Prints each configured channel with its destination, content type, prefetch and headers after defaults are applied.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFile(path, false)
			if err != nil {
				logger().Error("failed to load configuration", err, logging.LogFields{"file": path})
				return err
			}
			return printBindings(cmd.OutOrStdout(), cfg, binder.GetCapabilities(cfg.BinderType))
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "bindings.yaml", "path to the bindings file")
	return cmd
}

func printBindings(w io.Writer, cfg *config.Config, caps binder.Capabilities) error {
	fmt.Fprintf(w, "binder: %s (ordering=%t ack=%t nack=%t partitioning=%t max_message_size=%s)\n",
		cfg.BinderType, caps.SupportsOrdering, caps.SupportsAck, caps.SupportsNack,
		caps.SupportsPartitioning, formatSize(caps.MaxMessageSize))
	if cfg.PoisonQueue != "" {
		fmt.Fprintf(w, "poison queue: %s\n", cfg.PoisonQueue)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tDESTINATION\tCONTENT TYPE\tPREFETCH\tHEADERS")
	for _, name := range cfg.Channels() {
		props := cfg.Binding(name)
		contentType := props.ContentType
		if contentType == "" {
			contentType = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", name, props.Destination, contentType, props.Prefetch, formatHeaders(props.Headers))
	}
	return tw.Flush()
}

func formatHeaders(headers map[string]string) string {
	if len(headers) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+headers[k])
	}
	return strings.Join(pairs, ",")
}

func formatSize(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", n)
}
