package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/orchestrator"
	"github.com/lucasnoah/cycleplan/internal/pipeline"
	"github.com/lucasnoah/cycleplan/internal/tracker"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run and inspect planning runs",
}

var planRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the planning pipeline against the tracker",
	Long: `Gathers a tracker snapshot and runs metrics, scoring, selection,
composition, alignment and readiness in order. The artifact is stored under
the runs directory and the run is recorded in the history database.

Identical snapshot and configuration always produce the same run ID and a
byte-identical artifact.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if errs := config.Validate(cfg); len(errs) > 0 {
			for _, e := range errs {
				cmd.PrintErrf("  - %s\n", e)
			}
			return fmt.Errorf("config has %d validation error(s)", len(errs))
		}
		log := newLogger(cfg, cmd.ErrOrStderr())
		ctx := cmd.Context()

		snapshotPath, _ := cmd.Flags().GetString("snapshot")
		snap, warnings, err := gather(ctx, cfg, snapshotPath)
		if err != nil {
			return err
		}
		if out, _ := cmd.Flags().GetString("save-snapshot"); out != "" {
			if err := saveSnapshot(out, snap); err != nil {
				return err
			}
		}

		searcher, err := newSearcher(cfg)
		if err != nil {
			return err
		}
		branch, _ := cmd.Flags().GetString("branch")
		providers, err := newProviders(cfg, branch)
		if err != nil {
			return err
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		var recorder orchestrator.Recorder
		if noRecord, _ := cmd.Flags().GetBool("no-record"); !noRecord {
			rec, cleanup, err := newRecorder(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			recorder = rec
		}

		orch := orchestrator.NewOrchestrator(cfg, store, recorder, log)
		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet && !jsonOutput() {
			orch.SetProgress(cmd.ErrOrStderr())
		}

		a, err := orch.Run(ctx, orchestrator.Input{
			Snapshot:  snap,
			Warnings:  warnings,
			Searcher:  searcher,
			Analyzer:  newAnalyzer(cfg, log),
			Providers: providers,
		})
		if err != nil {
			return err
		}

		if jsonOutput() {
			return writeJSON(cmd, a)
		}
		printPlan(cmd, a)
		return nil
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show a stored run (default: the latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		var a *pipeline.Artifact
		if len(args) == 1 {
			a, err = store.Get(args[0])
		} else {
			a, err = store.Latest()
		}
		if err != nil {
			return err
		}

		if stage, _ := cmd.Flags().GetString("stage"); stage != "" {
			var raw json.RawMessage
			if err := store.GetStage(a.RunID, stage, &raw); err != nil {
				return err
			}
			return writeJSON(cmd, raw)
		}
		if jsonOutput() {
			return writeJSON(cmd, a)
		}
		printPlan(cmd, a)
		return nil
	},
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		runs, err := store.List()
		if err != nil {
			return err
		}

		if jsonOutput() {
			return writeJSON(cmd, runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
			return nil
		}

		tw := newTable(cmd, table.Row{"Run", "As of", "Config", "Items", "Points", "Target", "Readiness", "Decision", "Warnings"})
		for _, r := range runs {
			tw.AppendRow(table.Row{
				r.RunID, r.Timestamp.Format("2006-01-02 15:04"), r.Config, r.Items, r.PlannedPoints,
				fmt.Sprintf("%.1f", r.Target), fmt.Sprintf("%.2f%%", r.Score), r.Decision, r.Warnings,
			})
		}
		tw.Render()
		return nil
	},
}

func saveSnapshot(path string, snap *tracker.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer f.Close()
	if err := tracker.WriteSnapshot(f, snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return f.Close()
}

// printPlan writes the human summary of a run.
func printPlan(cmd *cobra.Command, a *pipeline.Artifact) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s (%s, as of %s)\n", a.RunID, a.Config, a.Timestamp.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "  Cycle health:  %s\n", a.CycleHealth.Status)
	fmt.Fprintf(w, "  Velocity:      %.1f (%s, %s confidence)\n", a.Velocity.Average, a.Velocity.Trend, a.Velocity.Confidence)
	fmt.Fprintf(w, "  Capacity:      %.1f points (%s), target %.1f\n", a.Capacity.PointCapacity, a.Capacity.Source, a.Capacity.Target)
	fmt.Fprintf(w, "  Planned:       %d points in %d items\n", a.PlannedPoints(), len(a.ScoredSelection))
	fmt.Fprintf(w, "  Composition:   bug %.0f%%, tech_debt %.0f%%, feature %.0f%%\n",
		a.Composition.Bug*100, a.Composition.TechDebt*100, a.Composition.Feature*100)
	fmt.Fprintf(w, "  Readiness:     %.2f%% → %s (threshold %.0f%%)\n\n", a.Readiness.Score, a.Readiness.Decision, a.Readiness.Threshold)

	queueOf := make(map[string]string, len(a.Alignment))
	for _, d := range a.Alignment {
		queueOf[d.ItemID] = string(d.Queue)
	}
	tw := newTable(cmd, table.Row{"ID", "Title", "Pts", "Priority", "Category", "Score", "Tier", "Queue"})
	for _, it := range a.ScoredSelection {
		tw.AppendRow(table.Row{
			it.ID, truncate(it.Title, 40), it.Estimate, it.Priority, it.Category,
			fmt.Sprintf("%.2f", it.Score), it.Tier, queueOf[it.ID],
		})
	}
	tw.Render()

	if len(a.Readiness.Risks) > 0 {
		fmt.Fprintln(w, "\nRisks:")
		for _, r := range a.Readiness.Risks {
			fmt.Fprintf(w, "  - %s: %s\n", r.Group, r.Description)
		}
	}
	if len(a.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings (%d):\n", len(a.Warnings))
		for _, wn := range a.Warnings {
			fmt.Fprintf(w, "  - %s\n", wn)
		}
	}
}

func init() {
	planRunCmd.Flags().String("snapshot", "", "read the tracker snapshot from this JSON/YAML file")
	planRunCmd.Flags().String("save-snapshot", "", "write the gathered snapshot to this file for replay")
	planRunCmd.Flags().String("branch", "main", "branch checked by the github_ci readiness provider")
	planRunCmd.Flags().Bool("no-record", false, "do not record the run in the history database")
	planRunCmd.Flags().BoolP("quiet", "q", false, "suppress progress output")
	planShowCmd.Flags().String("stage", "", "print the stored output of one stage instead")

	planCmd.AddCommand(planRunCmd)
	planCmd.AddCommand(planShowCmd)
	planCmd.AddCommand(planListCmd)
}
