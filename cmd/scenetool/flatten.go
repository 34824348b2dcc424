package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/bimscene/internal/metrics"
	"github.com/Faultbox/bimscene/pkg/math"
	"github.com/Faultbox/bimscene/pkg/scene"
)

func newFlattenCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "flatten <model>",
		Short: "Flatten a model into world-space render views",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFlatten(cmd, args[0], limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Limit listed views to N (0 = all)")
	return cmd
}

func (a *app) runFlatten(cmd *cobra.Command, modelID string, limit int) error {
	ctx, cancel := a.fetchContext(cmd.Context())
	defer cancel()

	root, err := a.repository().Fetch(ctx, modelID)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := a.flattener().Flatten(root)
	if err != nil {
		return err
	}
	a.metrics.ObserveFlatten(modelID, len(res.Views), time.Since(start))
	for _, an := range res.Anomalies {
		a.metrics.CountAnomaly(metrics.ComponentScene, an.Kind.String())
	}
	a.log.Debug("flattened", zap.String("model", modelID), zap.Duration("took", time.Since(start)))

	bounds := math.EmptyBox()
	for _, v := range res.Views {
		bounds = bounds.Union(v.Bounds)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Model:     %s\n", modelID)
	fmt.Fprintf(out, "Nodes:     %d\n", res.NodesVisited)
	fmt.Fprintf(out, "Views:     %d\n", len(res.Views))
	fmt.Fprintf(out, "Bounds:    %s\n", formatBox(bounds))
	if !bounds.IsEmpty() {
		fmt.Fprintf(out, "Center:    %s\n", formatPoint(bounds.Center()))
		fmt.Fprintf(out, "Size:      %s\n", formatPoint(bounds.Size()))
	}
	fmt.Fprintf(out, "Anomalies: %d\n", len(res.Anomalies))

	printViews(out, res.Views, limit)
	printSceneAnomalies(out, res.Anomalies)
	return nil
}

func printViews(out io.Writer, views []scene.RenderView, limit int) {
	if len(views) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %-24s %-28s %-24s %8s  %s\n", "NODE", "TYPE", "MESH", "VERTICES", "BOUNDS")
	for i, v := range views {
		if limit > 0 && i >= limit {
			fmt.Fprintf(out, "  ... and %d more\n", len(views)-limit)
			break
		}
		verts := 0
		if v.Mesh != nil {
			verts = v.Mesh.VertexCount()
		}
		fmt.Fprintf(out, "  %-24s %-28s %-24s %8d  %s\n", v.NodeID, v.Type, v.MeshKey, verts, formatBox(v.Bounds))
	}
}

func printSceneAnomalies(out io.Writer, anomalies []scene.Anomaly) {
	if len(anomalies) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Anomalies:")
	for _, an := range anomalies {
		fmt.Fprintf(out, "  %s\n", an)
	}
}

func formatBox(b math.Box3) string {
	if b.IsEmpty() {
		return "(empty)"
	}
	return formatPoint(b.Min) + " - " + formatPoint(b.Max)
}

func formatPoint(p [3]float32) string {
	return fmt.Sprintf("[%.3g %.3g %.3g]", p[0], p[1], p[2])
}
