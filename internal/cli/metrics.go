package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lucasnoah/cycleplan/internal/metrics"
	"github.com/lucasnoah/cycleplan/internal/stage"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Compute team metrics without planning",
	Long: `Gathers a tracker snapshot and prints cycle health, velocity, backlog
readiness, dependency risk, capacity and at-risk items. Nothing is stored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		snapshotPath, _ := cmd.Flags().GetString("snapshot")
		snap, warnings, err := gather(cmd.Context(), cfg, snapshotPath)
		if err != nil {
			return err
		}

		out, err := stage.NewMetrics(cfg).Run(cmd.Context(), snap)
		if err != nil {
			return err
		}
		out.Warnings = append(warnings, out.Warnings...)

		if jsonOutput() {
			return writeJSON(cmd, out.Report)
		}
		printMetrics(cmd, out.Report)
		return nil
	},
}

func printMetrics(cmd *cobra.Command, r *metrics.Report) {
	tw := newTable(cmd, table.Row{"Metric", "Value", "Detail"})
	h := r.CycleHealth
	tw.AppendRow(table.Row{"Cycle health", h.Status,
		fmt.Sprintf("%.0f%% done, %.0f%% expected, %.1f days left", h.Progress*100, h.ExpectedProgress*100, h.DaysRemaining)})
	v := r.Velocity
	tw.AppendRow(table.Row{"Velocity", fmt.Sprintf("%.1f", v.Average),
		fmt.Sprintf("samples %v, %s, %s confidence (cv %.2f)", v.Samples, v.Trend, v.Confidence, v.CV)})
	b := r.Backlog
	tw.AppendRow(table.Row{"Backlog readiness", fmt.Sprintf("%.1f%%", b.Score),
		fmt.Sprintf("%d of %d ready, %d unestimated, %d thin", b.Ready, b.Total, b.Unestimated, b.ThinDescription)})
	d := r.Dependencies
	tw.AppendRow(table.Row{"Dependency risk", d.Risk,
		fmt.Sprintf("score %d, %d critical blockers, longest chain %d", d.Total, d.CriticalBlockers, d.MaxChainLength)})
	c := r.Capacity
	tw.AppendRow(table.Row{"Capacity", fmt.Sprintf("%.1f", c.PointCapacity),
		fmt.Sprintf("%s, %d members, target %.1f", c.Source, c.ActiveMembers, c.Target)})
	tw.AppendRow(table.Row{"Carryover", fmt.Sprintf("%.1f", r.Carryover.Points),
		fmt.Sprintf("%d items", len(r.Carryover.Items))})
	tw.Render()

	w := cmd.OutOrStdout()
	if len(r.AtRisk) > 0 {
		fmt.Fprintln(w, "\nAt risk:")
		for _, it := range r.AtRisk {
			fmt.Fprintf(w, "  - %s %s: %s\n", it.ItemID, it.Title, it.Reason)
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings (%d):\n", len(r.Warnings))
		for _, wn := range r.Warnings {
			fmt.Fprintf(w, "  - %s\n", wn)
		}
	}
}

func init() {
	metricsCmd.Flags().String("snapshot", "", "read the tracker snapshot from this JSON/YAML file")
}
