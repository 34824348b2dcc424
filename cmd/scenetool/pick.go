package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Faultbox/bimscene/internal/picking"
	"github.com/Faultbox/bimscene/pkg/phase"
	"github.com/Faultbox/bimscene/pkg/scene"
)

var (
	errBadVector = errors.New("expected three comma-separated numbers")
	errZeroDir   = errors.New("ray direction must be non-zero")
)

func newPickCmd(a *app) *cobra.Command {
	var (
		origin  []float32
		dir     []float32
		phaseID string
	)

	cmd := &cobra.Command{
		Use:   "pick <model>",
		Short: "Find the nearest view hit by a ray",
		Long:  `Casts a ray against the world-space bounds of a model's render views. With --phase only the views visible in that phase are considered.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(origin) != 3 || len(dir) != 3 {
				return errBadVector
			}
			ray, ok := picking.NewRay([3]float32(origin), [3]float32(dir))
			if !ok {
				return errZeroDir
			}

			var views []scene.RenderView
			if phaseID != "" {
				snap, err := a.loadSnapshot(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				views = snap.Visible(phase.ID(phaseID))
			} else {
				ctx, cancel := a.fetchContext(cmd.Context())
				defer cancel()
				root, err := a.repository().Fetch(ctx, args[0])
				if err != nil {
					return err
				}
				res, err := a.flattener().Flatten(root)
				if err != nil {
					return err
				}
				views = res.Views
			}

			out := cmd.OutOrStdout()
			hit, ok := picking.Pick(views, ray)
			if !ok {
				fmt.Fprintf(out, "No hit (%d views tested)\n", len(views))
				return nil
			}
			fmt.Fprintf(out, "Hit:      %s\n", hit.View.NodeID)
			fmt.Fprintf(out, "Type:     %s\n", hit.View.Type)
			fmt.Fprintf(out, "Mesh:     %s\n", hit.View.MeshKey)
			fmt.Fprintf(out, "Distance: %.4g\n", hit.Distance)
			fmt.Fprintf(out, "Point:    [%.4g %.4g %.4g]\n", hit.Point[0], hit.Point[1], hit.Point[2])
			return nil
		},
	}
	cmd.Flags().Float32SliceVar(&origin, "origin", []float32{0, 0, 0}, "Ray origin x,y,z")
	cmd.Flags().Float32SliceVar(&dir, "dir", []float32{0, 0, -1}, "Ray direction x,y,z")
	cmd.Flags().StringVar(&phaseID, "phase", "", "Only pick views visible in this phase")
	return cmd
}
