package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/HariAbram/scout/internal/config"
	"github.com/HariAbram/scout/internal/space"
)

// newListCmd compiles a Study Definition's Search Space and prints every
// decision variable, its domain, and its guard, in the tabwriter style
// signalnine-thunderdome/internal/report/report.go uses for table output.
// It runs no trials.
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <config.json>",
		Short: "List every decision variable in a study's compiled Search Space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return ExitError{Code: 2, Err: err}
			}
			sp, err := space.Compile(cfg)
			if err != nil {
				return ExitError{Code: 2, Err: err}
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "variable\tkind\tdomain\tguard")
			for _, v := range sp.Variables {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Name, v.Kind, strings.Join(v.Domain, ","), guardString(v.Guard))
			}
			return w.Flush()
		},
	}
}

func guardString(g *space.Guard) string {
	if g == nil {
		return "-"
	}
	return fmt.Sprintf("%s=%s", g.Var, g.Value)
}
