package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/seplos-sink/internal/infrastructure/config"
	"github.com/nerrad567/seplos-sink/internal/infrastructure/database"
	"github.com/nerrad567/seplos-sink/internal/journal"
	"github.com/nerrad567/seplos-sink/migrations"
)

var (
	eventsKind  string
	eventsLimit int
	eventsJSON  bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent connection lifecycle events from the journal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.Database.Path == "" {
			return errors.New("event journal disabled: set [database] path")
		}

		db, err := database.Open(cmd.Context(), database.Config{Path: cfg.Database.Path})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(cmd.Context(), migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}

		entries, err := journal.NewSQLiteRepository(db.DB, cfg.InfluxDB.Backend).List(cmd.Context(), journal.Filter{
			Kind:  eventsKind,
			Limit: eventsLimit,
		})
		if err != nil {
			return err
		}
		return printEvents(cmd.OutOrStdout(), entries, eventsJSON)
	},
}

func printEvents(w io.Writer, entries []journal.Entry, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tBACKEND\tATTEMPT\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			e.OccurredAt.Local().Format(time.DateTime), e.Kind, e.Backend, e.Attempt, e.Detail)
	}
	return tw.Flush()
}

func init() {
	eventsCmd.Flags().StringVar(&eventsKind, "kind", "", "only show events of this kind")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 0, "maximum number of events (default 50)")
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "print JSON instead of a table")
}
