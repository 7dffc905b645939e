package cli

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/db"
	"github.com/lucasnoah/cycleplan/internal/logging"
	"github.com/lucasnoah/cycleplan/internal/pipeline"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "cycleplan",
	Short: "cycleplan: data-driven cycle planning",
	Long: `cycleplan turns an issue-tracker snapshot into a cycle plan: team metrics,
scored backlog, capacity-bounded selection, balanced composition, work
alignment against the code base, and a go/no-go readiness decision.

Runs are stored under ~/.cycleplan/ (SQLite for history, JSON for artifacts).
Flags may also be set through CYCLEPLAN_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree. Cancelling ctx aborts a running plan.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(dbCmd)
}

func initConfig() {
	viper.SetEnvPrefix("CYCLEPLAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "planner config file (default: ./planner.yaml, ~/.cycleplan/config.yaml)")
	pf.Bool("json", false, "output JSON")
	pf.String("db", "", "SQLite history database (default: ~/.cycleplan/cycleplan.db)")
	pf.String("runs-dir", "", "run artifact directory (default: ~/.cycleplan/runs)")
	pf.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	pf.String("log-format", "", "log format: text or json (overrides config)")
	for _, name := range []string{"config", "json", "db", "runs-dir", "log-level", "log-format"} {
		_ = viper.BindPFlag(name, pf.Lookup(name))
	}
}

// loadConfig resolves the planner config: an explicit path, then the
// standard locations, then built-in defaults.
func loadConfig() (*config.Config, error) {
	if path := viper.GetString("config"); path != "" {
		return config.Load(path)
	}
	cfg, err := config.LoadDefault()
	if err != nil {
		return config.Default(), nil
	}
	return cfg, nil
}

// newLogger builds the logger from config, with flag overrides.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := cfg.Logging.Level
	if v := viper.GetString("log-level"); v != "" {
		level = v
	}
	format := cfg.Logging.Format
	if v := viper.GetString("log-format"); v != "" {
		format = v
	}
	return logging.New(w, level, format)
}

// openStore returns the artifact store: flag, then config, then default.
func openStore(cfg *config.Config) (*pipeline.Store, error) {
	dir := viper.GetString("runs-dir")
	if dir == "" {
		dir = cfg.Persistence.Dir
	}
	if dir != "" {
		return pipeline.NewStore(dir), nil
	}
	return pipeline.DefaultStore()
}

// openDB opens and migrates the history database: flag, then config, then
// default.
func openDB(cfg *config.Config) (*db.DB, error) {
	path := viper.GetString("db")
	if path == "" {
		path = cfg.Persistence.DB
	}
	if path == "" {
		var err error
		if path, err = db.DefaultDBPath(); err != nil {
			return nil, err
		}
	}
	d, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func jsonOutput() bool {
	return viper.GetBool("json")
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := pipeline.EncodeJSON(v)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func newTable(cmd *cobra.Command, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// openConfiguredDB opens the history database named by flags or config.
func openConfiguredDB() (*db.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openDB(cfg)
}
