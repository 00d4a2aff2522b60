package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drblury/flowbind/binder"
	"github.com/drblury/flowbind/internal/runtime/config"
	"github.com/drblury/flowbind/internal/runtime/logging"
)

func newValidateCmd(logger func() logging.ServiceLogger) *cobra.Command {
	var (
		path   string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a bindings file",
		Long:  "Loads the bindings file, applies defaults and reports every validation problem found.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger().With(logging.LogFields{"file": path})

			cfg, err := config.LoadFile(path, strict)
			if err != nil {
				for _, problem := range flattenErrors(err) {
					log.Error("invalid configuration", problem, nil)
				}
				return err
			}
			if !binder.DefaultRegistry.Has(cfg.BinderType) {
				err := fmt.Errorf("unknown binder %q (known: %v)", cfg.BinderType, binder.Names())
				log.Error("invalid configuration", err, nil)
				return err
			}

			log.Debug("configuration loaded", logging.LogFields{"config": cfg.String()})
			log.Info("configuration valid", logging.LogFields{
				"binder":   cfg.BinderType,
				"channels": len(cfg.Bindings),
			})
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "bindings.yaml", "path to the bindings file")
	cmd.Flags().BoolVar(&strict, "strict", false, "reject unknown keys")
	return cmd
}

// flattenErrors unpacks errors.Join trees so each problem is logged on its
// own line.
func flattenErrors(err error) []error {
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		return []error{err}
	}
	var out []error
	for _, e := range joined.Unwrap() {
		out = append(out, flattenErrors(e)...)
	}
	return out
}
