package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/seplos-sink/internal/health"
	"github.com/nerrad567/seplos-sink/internal/infrastructure/config"
)

const defaultHealthFile = "/tmp/seplos_health"

var (
	healthFile   string
	healthMaxAge time.Duration
)

// healthcheckCmd is meant for container HEALTHCHECK directives: it prints
// one line and exits 0 when healthy, 1 otherwise.
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check the health file written by a running sink",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := resolveHealthFile(healthFile, configPath)

		msg, err := health.Check(path, healthMaxAge, time.Now())
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "UNHEALTHY:", err)
			return exitError{code: 1}
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

// resolveHealthFile prefers the flag, then the configured file, then the
// default. A configuration that cannot be loaded falls through to the
// default so the probe still works with a broken config.
func resolveHealthFile(flag, cfgPath string) string {
	if flag != "" {
		return flag
	}
	if cfg, err := config.Load(cfgPath); err == nil && cfg.Health.File != "" {
		return cfg.Health.File
	}
	return defaultHealthFile
}

func init() {
	healthcheckCmd.Flags().StringVar(&healthFile, "file", "", "health file (default from config, else "+defaultHealthFile+")")
	healthcheckCmd.Flags().DurationVar(&healthMaxAge, "max-age", health.DefaultMaxAge, "maximum age of the last report")
}
