// Package cmd implements SCOuT's cobra command tree: `scout run
// <config.json> [--trials N] [--seed S] [--resume CSV]`, plus the `list`
// convenience verb over a Study Definition and the `report` verb over a
// completed archive, following
// signalnine-thunderdome/cmd/root.go's root-command-plus-subcommands
// shape.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HariAbram/scout/internal/logging"
)

var logLevel string

// ExitError carries the process exit code a failure should produce, per
// spec.md §6: 0 success, 2 config_error, 3 unrecoverable backend error.
type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string { return e.Err.Error() }
func (e ExitError) Unwrap() error { return e.Err }

// NewRootCmd builds the `scout` command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scout",
		Short: "Design-space exploration driver for compiler and runtime tuning",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.SetLevel(logLevel); err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReportCmd())
	return root
}
