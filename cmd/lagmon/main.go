package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lagmon",
		Short: "Live latency, jitter and loss monitor for your network path",
		Long: `lagmon probes a set of hosts continuously, typically your own machine, the
gateway and an internet host, and keeps rolling latency, jitter and loss
figures for each of them.

Quick start:
  lagmon run                        # monitor with lagmon.yaml or defaults
  lagmon run --probe tcp            # probe with TCP connects instead of ICMP
  lagmon report --hours 24          # charts and a summary for your ISP`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "lagmon.yaml", "Config file")

	cmd.AddCommand(runCommand())
	cmd.AddCommand(reportCommand())

	return cmd
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
