package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/lucasnoah/cycleplan/internal/pipeline"
	"github.com/lucasnoah/cycleplan/internal/report"
)

const defaultTemplateDir = ".cycleplan/templates"

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render markdown reports from stored runs",
}

var reportRenderCmd = &cobra.Command{
	Use:   "render <kind> [run-id]",
	Short: "Render a report for a run (default: the latest)",
	Long: fmt.Sprintf(`Renders one of the report kinds (%s) from a stored run.
Templates in the template directory override the built-in ones.`, strings.Join(report.Kinds, ", ")),
	Args: cobra.RangeArgs(1, 2),
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
		if len(args) == 2 {
			a, err = store.Get(args[1])
		} else {
			a, err = store.Latest()
		}
		if err != nil {
			return err
		}

		dir, _ := cmd.Flags().GetString("templates")
		out, err := report.NewRenderer(afero.NewOsFs(), dir).Render(args[0], a)
		if err != nil {
			return err
		}

		if path, _ := cmd.Flags().GetString("out"); path != "" {
			if err := pipeline.WriteAtomic(path, []byte(out)); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			cmd.Printf("Wrote %s report for run %s to %s\n", args[0], a.RunID, path)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

var reportTemplatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the built-in report templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("templates")
		for _, name := range report.TemplateNames() {
			source := "built-in"
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				source = "override"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", name, source)
		}
		return nil
	},
}

var reportInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Copy the built-in templates into the template directory for editing",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("templates")
		written, err := report.NewLoader(afero.NewOsFs(), dir).Install()
		if err != nil {
			return err
		}
		if len(written) == 0 {
			cmd.Printf("All templates already present in %s\n", dir)
			return nil
		}
		for _, name := range written {
			cmd.Printf("Installed %s\n", name)
		}
		return nil
	},
}

func init() {
	reportCmd.PersistentFlags().String("templates", defaultTemplateDir, "template override directory")
	reportRenderCmd.Flags().StringP("out", "o", "", "write the report to this file")

	reportCmd.AddCommand(reportRenderCmd)
	reportCmd.AddCommand(reportTemplatesCmd)
	reportCmd.AddCommand(reportInstallCmd)
}
