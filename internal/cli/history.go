package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lucasnoah/cycleplan/internal/analytics"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query recorded planning runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openConfiguredDB()
		if err != nil {
			return err
		}
		defer d.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := d.ListRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if jsonOutput() {
			return writeJSON(cmd, runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}

		tw := newTable(cmd, table.Row{"Run", "As of", "Config", "Items", "Points", "Capacity", "Readiness", "Decision", "Warnings"})
		for _, r := range runs {
			tw.AppendRow(table.Row{
				r.RunID, r.Timestamp, r.Config, r.Items, r.PlannedPoints,
				fmt.Sprintf("%.1f", r.PointCapacity), fmt.Sprintf("%.2f%%", r.ReadinessScore), r.Decision, r.Warnings,
			})
		}
		tw.Render()
		return nil
	},
}

type historyStats struct {
	Runs     analytics.RunStats        `json:"runs"`
	Stages   []analytics.StageDuration `json:"stages"`
	Groups   []analytics.GroupPassRate `json:"groups"`
	Failures []analytics.CheckFailure  `json:"failures"`
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate decision, readiness, stage and check statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		sinceFlag, _ := cmd.Flags().GetString("since")
		since, err := parseSince(sinceFlag, time.Now().UTC())
		if err != nil {
			return err
		}
		d, err := openConfiguredDB()
		if err != nil {
			return err
		}
		defer d.Close()

		var st historyStats
		if st.Runs, err = analytics.QueryRunStats(d, since); err != nil {
			return err
		}
		if st.Stages, err = analytics.QueryStageDurations(d, since); err != nil {
			return err
		}
		if st.Groups, err = analytics.QueryGroupPassRates(d, since); err != nil {
			return err
		}
		top, _ := cmd.Flags().GetInt("top")
		if st.Failures, err = analytics.QueryCheckFailures(d, since, top); err != nil {
			return err
		}

		if jsonOutput() {
			return writeJSON(cmd, st)
		}
		printStats(cmd, st)
		return nil
	},
}

var historyTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Weekly GO/NO-GO trend",
	RunE: func(cmd *cobra.Command, args []string) error {
		sinceFlag, _ := cmd.Flags().GetString("since")
		since, err := parseSince(sinceFlag, time.Now().UTC())
		if err != nil {
			return err
		}
		d, err := openConfiguredDB()
		if err != nil {
			return err
		}
		defer d.Close()

		trend, err := analytics.QueryDecisionTrend(d, since)
		if err != nil {
			return err
		}
		if jsonOutput() {
			return writeJSON(cmd, trend)
		}
		if len(trend) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}
		tw := newTable(cmd, table.Row{"Week", "Runs", "GO", "NO-GO", "Avg readiness", "Avg points"})
		for _, t := range trend {
			tw.AppendRow(table.Row{t.Period, t.Runs, t.Go, t.NoGo, fmt.Sprintf("%.1f%%", t.AvgScore), fmt.Sprintf("%.1f", t.AvgPlanned)})
		}
		tw.Render()
		return nil
	},
}

var historyRunCmd = &cobra.Command{
	Use:   "run <run-id>",
	Short: "Show the recorded stage events and checks of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openConfiguredDB()
		if err != nil {
			return err
		}
		defer d.Close()

		events, err := analytics.QueryRunDetail(d, args[0])
		if err != nil {
			return err
		}
		if jsonOutput() {
			return writeJSON(cmd, events)
		}
		if len(events) == 0 {
			return fmt.Errorf("no events recorded for run %s", args[0])
		}
		tw := newTable(cmd, table.Row{"Time", "Type", "Name", "Event", "Detail"})
		for _, e := range events {
			tw.AppendRow(table.Row{e.Timestamp, e.Type, e.Name, e.Event, truncate(e.Detail, 60)})
		}
		tw.Render()
		return nil
	},
}

func printStats(cmd *cobra.Command, st historyStats) {
	w := cmd.OutOrStdout()
	r := st.Runs
	if r.Runs == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintf(w, "Runs:         %d (%d GO, %d NO-GO, %.1f%% GO)\n", r.Runs, r.Go, r.NoGo, r.GoRate)
	fmt.Fprintf(w, "Planned:      %.1f points avg against %.1f target (%.1f%% utilization)\n", r.AvgPlanned, r.AvgTarget, r.Utilization)
	fmt.Fprintf(w, "Items:        %.1f avg, %.1f warnings avg\n", r.AvgItems, r.AvgWarnings)
	fmt.Fprintf(w, "Readiness:    mean %.1f%%, p50 %.1f%%, p95 %.1f%%\n\n", r.ReadinessMean, r.ReadinessP50, r.ReadinessP95)

	if len(st.Stages) > 0 {
		tw := newTable(cmd, table.Row{"Stage", "Runs", "Failed", "Avg ms", "p50 ms", "p95 ms"})
		for _, s := range st.Stages {
			tw.AppendRow(table.Row{s.Stage, s.Count, s.Failed, fmt.Sprintf("%.1f", s.Avg), fmt.Sprintf("%.0f", s.P50), fmt.Sprintf("%.0f", s.P95)})
		}
		tw.Render()
		fmt.Fprintln(w)
	}
	if len(st.Groups) > 0 {
		tw := newTable(cmd, table.Row{"Group", "Checks", "Passed", "Pass rate"})
		for _, g := range st.Groups {
			tw.AppendRow(table.Row{g.Group, g.Total, g.Passed, fmt.Sprintf("%.1f%%", g.PassRate)})
		}
		tw.Render()
		fmt.Fprintln(w)
	}
	if len(st.Failures) > 0 {
		tw := newTable(cmd, table.Row{"Group", "Check", "Failed", "Fail rate", "Most common detail"})
		for _, f := range st.Failures {
			tw.AppendRow(table.Row{f.Group, f.Check, fmt.Sprintf("%d/%d", f.Failed, f.Total), fmt.Sprintf("%.1f%%", f.FailRate), truncate(f.CommonDetail, 50)})
		}
		tw.Render()
	}
}

// parseSince turns a --since value into the date prefix the analytics
// queries compare against. It accepts YYYY-MM-DD, a day count like "30d", or
// a Go duration like "72h".
func parseSince(s string, now time.Time) (string, error) {
	if s == "" {
		return "", nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Format("2006-01-02"), nil
	}
	if n, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(n)
		if err != nil || days < 0 {
			return "", fmt.Errorf("invalid --since %q", s)
		}
		return now.AddDate(0, 0, -days).Format("2006-01-02"), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return "", fmt.Errorf("invalid --since %q (want YYYY-MM-DD, Nd or a duration)", s)
	}
	return now.Add(-d).Format("2006-01-02"), nil
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum runs to list (0 = all)")
	historyStatsCmd.Flags().String("since", "", "only runs since YYYY-MM-DD, Nd or a duration")
	historyStatsCmd.Flags().Int("top", 10, "number of failing checks to show")
	historyTrendCmd.Flags().String("since", "", "only runs since YYYY-MM-DD, Nd or a duration")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyTrendCmd)
	historyCmd.AddCommand(historyRunCmd)
}
