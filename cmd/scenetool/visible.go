package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Faultbox/bimscene/pkg/phase"
)

func newVisibleCmd(a *app) *cobra.Command {
	var (
		showContext bool
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "visible <model> <phase>",
		Short: "List the render views visible in a phase",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.loadSnapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p := phase.ID(args[1])
			if _, ok := snap.Phases.Index(p); !ok {
				return fmt.Errorf("unknown phase %q (phases: %v)", p, snap.Phases.Phases())
			}

			out := cmd.OutOrStdout()
			visible := snap.Visible(p)
			fmt.Fprintf(out, "Phase:   %s\n", p)
			fmt.Fprintf(out, "Visible: %d views\n", len(visible))
			printViews(out, visible, limit)

			if showContext {
				ctxViews := snap.Context(p)
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Context: %d views\n", len(ctxViews))
				printViews(out, ctxViews, limit)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showContext, "context", false, "Also list pre-existing context views")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Limit listed views to N (0 = all)")
	return cmd
}
