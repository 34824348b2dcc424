package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newPhasesCmd(a *app) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "phases <model>",
		Short: "Show per-phase element counts",
		Long:  `Builds the phase index for a model and prints, for every phase, how many elements are created, demolished, active and pre-existing.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.loadSnapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tree := snap.Phases
			fmt.Fprintf(out, "Model:    %s\n", snap.ModelID)
			fmt.Fprintf(out, "Phases:   %d\n", tree.Len())
			fmt.Fprintf(out, "Elements: %d\n", tree.All().Len())
			fmt.Fprintln(out)

			fmt.Fprintf(out, "  %-20s %8s %10s %8s %8s\n", "PHASE", "CREATED", "DEMOLISHED", "ACTIVE", "EXISTING")
			for _, p := range tree.Phases() {
				sets, _ := tree.Sets(p)
				fmt.Fprintf(out, "  %-20s %8d %10d %8d %8d\n", p,
					sets.Created.Len(), sets.Demolished.Len(), sets.Active.Len(), sets.Existing.Len())
				if list {
					printIDs(out, "created", sets.Created.Items())
					printIDs(out, "demolished", sets.Demolished.Items())
				}
			}

			if anomalies := tree.Anomalies(); len(anomalies) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Anomalies:")
				for _, an := range anomalies {
					fmt.Fprintf(out, "  %s\n", an)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "List created and demolished element ids")
	return cmd
}

func printIDs(out io.Writer, label string, ids []string) {
	if len(ids) == 0 {
		return
	}
	fmt.Fprintf(out, "    %-11s %s\n", label+":", strings.Join(ids, ", "))
}
