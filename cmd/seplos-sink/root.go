package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "seplos-sink",
	Short: "Seplos BMS telemetry sink",
	Long: "seplos-sink writes Seplos BMS battery and pack measurements to InfluxDB, " +
		"VictoriaMetrics or GreptimeDB, reconnecting with backoff when the store is unavailable.",
	SilenceUsage:  true,
	SilenceErrors: true,
	// With no subcommand the service runs.
	RunE: runCmd.RunE,
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			return exit.code
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// exitError carries a non-zero exit code for a result already reported
// to the user.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file (INI or YAML)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(healthcheckCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(configHelpCmd)
	rootCmd.AddCommand(versionCmd)
}
