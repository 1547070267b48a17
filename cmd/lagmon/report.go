package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"lagmon/internal/config"
	"lagmon/internal/database"
	"lagmon/internal/logger"
	"lagmon/internal/report"
)

func reportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render stored history into charts, a summary and CSV files",
		Long: `Create a report directory with a latency chart per target, an availability
chart, an outage frequency chart, summary.txt rating each connection as
EXCELLENT, UNSTABLE or CRITICAL, and the raw samples as CSV.

Examples:
  lagmon report --hours 24
  lagmon report --target internet --hours 6 --out ~/Downloads`,
		Args: cobra.NoArgs,
		RunE: runReport,
	}

	cmd.Flags().Int("hours", 24, "Period to cover, ending now")
	cmd.Flags().StringSlice("target", nil, "Target ids to include (default: every target with samples)")
	cmd.Flags().String("out", "reports", "Directory the report is written into")
	cmd.Flags().String("db", "", "Database path (default: from the config file)")

	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOrDefault(configPath, nil)
	if err != nil {
		return err
	}

	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = cfg.DatabasePath
	}
	db, err := database.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	names := make(map[string]string)
	if specs, err := cfg.TargetSpecs(); err == nil {
		for _, s := range specs {
			if s.ID != "" {
				names[s.ID] = s.Name
			}
		}
	}

	hours, _ := cmd.Flags().GetInt("hours")
	targets, _ := cmd.Flags().GetStringSlice("target")
	out, _ := cmd.Flags().GetString("out")

	dir, err := report.NewGenerator(db, logger.New("[report]")).GenerateReport(report.Options{
		OutputDir: out,
		Hours:     hours,
		TargetIDs: targets,
		Names:     names,
	})
	if errors.Is(err, report.ErrNoData) {
		return fmt.Errorf("%w: is the monitor running against %s?", err, dbPath)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), dir)
	return nil
}
