package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/seplos-sink/internal/infrastructure/config"
)

var configHelpCmd = &cobra.Command{
	Use:   "config-help",
	Short: "Print the configuration reference",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.Help())
	},
}
