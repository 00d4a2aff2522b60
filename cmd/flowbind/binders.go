package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drblury/flowbind/binder"
)

func newBindersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "binders",
		Short: "List the registered binders",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range binder.Names() {
				caps := binder.GetCapabilities(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\treliable=%t\tordering=%t\n",
					name, caps.SupportsReliableDelivery(), caps.SupportsOrdering)
			}
		},
	}
}
