package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/HariAbram/scout/internal/config"
	"github.com/HariAbram/scout/internal/orchestrator"
)

func newRunCmd() *cobra.Command {
	var trials int
	var seed int64
	var resume string

	cmd := &cobra.Command{
		Use:   "run <config.json>",
		Short: "Run a design-space exploration study",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return ExitError{Code: 2, Err: err}
			}
			if cmd.Flags().Changed("seed") {
				cfg.Search.RandomSeed = seed
			}

			o, err := orchestrator.New(cfg, resume)
			if err != nil {
				var cfgErr *orchestrator.ConfigError
				if errors.As(err, &cfgErr) {
					return ExitError{Code: 2, Err: err}
				}
				return ExitError{Code: 3, Err: err}
			}

			if err := o.Run(context.Background(), trials); err != nil {
				var cfgErr *orchestrator.ConfigError
				if errors.As(err, &cfgErr) {
					return ExitError{Code: 2, Err: err}
				}
				return ExitError{Code: 3, Err: err}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&trials, "trials", 100, "number of trials to run")
	cmd.Flags().Int64Var(&seed, "seed", 0, "override search.random_seed")
	cmd.Flags().StringVar(&resume, "resume", "", "resume from an existing archive CSV")
	return cmd
}
