package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/seplos-sink/internal/health"
	"github.com/nerrad567/seplos-sink/internal/infrastructure/config"
	"github.com/nerrad567/seplos-sink/internal/infrastructure/database"
	"github.com/nerrad567/seplos-sink/internal/infrastructure/logging"
	"github.com/nerrad567/seplos-sink/internal/infrastructure/mqtt"
	"github.com/nerrad567/seplos-sink/internal/ingest"
	"github.com/nerrad567/seplos-sink/internal/journal"
	"github.com/nerrad567/seplos-sink/internal/producer"
	"github.com/nerrad567/seplos-sink/internal/sink"
	"github.com/nerrad567/seplos-sink/migrations"
)

// journalRetention is how long lifecycle events are kept.
const journalRetention = 30 * 24 * time.Hour

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Write measurements from the poller or stdin to the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), configPath, cmd.InOrStdin(), cmd.ErrOrStderr())
	},
}

// run is the service entry point, separated from the command for testing.
// Measurements come from the configured poller, else from in. It returns
// when ctx is cancelled, in reaches EOF, or the poller gives up.
func run(ctx context.Context, path string, in io.Reader, stderr io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, config.ErrMissing) || errors.Is(err, config.ErrInvalid) {
			fmt.Fprintln(stderr, config.Help())
		}
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.General, version)
	defer log.Close() //nolint:errcheck // Best-effort on shutdown
	log.Info("starting seplos-sink",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", cfg.Path,
	)
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	sinkCfg, err := sinkConfig(cfg)
	if err != nil {
		return fmt.Errorf("configuring sink: %w", err)
	}

	opts := []sink.Option{sink.WithLogger(log.With("component", "sink"))}

	if cfg.Database.Path != "" {
		db, events, err := openJournal(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, sink.WithEventRecorder(events))
	}

	var publisher health.StatusPublisher
	var mqttClient *mqtt.Client
	if cfg.MQTTActive() {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			// MQTT only carries status; keep writing measurements without it.
			log.Warn("mqtt unavailable, status publishing disabled", "error", err)
		} else {
			mqttClient.SetLogger(log.With("component", "mqtt"))
			defer mqttClient.Close() //nolint:errcheck // Best-effort on shutdown
			publisher = mqttClient
			log.Info("mqtt connected", "server", cfg.MQTT.Server, "prefix", mqttClient.Topics().Prefix())
		}
	}

	s, err := sink.Open(ctx, sinkCfg, newOpener(cfg.InfluxDB, cfg.GetWriteTimeout()), opts...)
	if err != nil {
		return fmt.Errorf("opening sink: %w", err)
	}
	defer func() {
		s.Close()
		st := s.Stats()
		log.Info("seplos-sink stopped",
			"writes_total", st.WritesTotal,
			"writes_failed", st.WritesFailed,
			"writes_filtered", st.WritesFiltered,
			"writes_dropped", st.WritesDropped,
			"reconnects", st.ReconnectCount,
		)
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	reporter := health.NewReporter(health.Config{
		Path:         cfg.Health.File,
		Interval:     cfg.GetCheckInterval(),
		StaleTimeout: cfg.GetStaleTimeout(),
	}, s, publisher, nil, log.With("component", "health"))
	if mqttClient != nil {
		reportOnLinkChange(mqttClient, reporter)
	}
	reporter.Report()

	reportDone := make(chan struct{})
	go func() {
		defer close(reportDone)
		reporter.Run(runCtx)
	}()

	reader := ingest.NewReader(s, log.With("component", "ingest"))
	reader.OnRecord = reporter.Touch

	var counts ingest.Counts
	if cfg.Producer.Command != "" {
		counts, err = runProducer(runCtx, cfg, reader, reporter, log)
	} else {
		counts, err = reader.Run(runCtx, in)
	}
	cancel()
	<-reportDone

	log.Info("input finished",
		"battery", counts.Battery,
		"pack", counts.Pack,
		"skipped", counts.Skipped,
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("reading measurements: %w", err)
	}
	return nil
}

// runProducer supervises the configured poller and feeds its stdout to
// reader until ctx ends or the poller exhausts its restarts.
// linkWatcher is a status transport that announces connection changes.
type linkWatcher interface {
	SetOnConnect(fn func())
	SetOnDisconnect(fn func(err error))
}

// reportOnLinkChange refreshes the health file as soon as the status
// link drops or returns, instead of waiting for the next interval.
func reportOnLinkChange(w linkWatcher, r *health.Reporter) {
	w.SetOnConnect(r.Report)
	w.SetOnDisconnect(func(error) { r.Report() })
}

func runProducer(ctx context.Context, cfg *config.Config, reader *ingest.Reader, reporter *health.Reporter, log *logging.Logger) (ingest.Counts, error) {
	binary, args := cfg.ProducerArgs()

	var (
		mu    sync.Mutex
		total ingest.Counts
	)
	pcfg := producer.DefaultConfig("seplos-poller", binary, args)
	pcfg.RestartDelay = cfg.GetRestartDelay()
	pcfg.MaxRestartDelay = cfg.GetMaxRestartDelay()
	pcfg.MaxRestartAttempts = cfg.Producer.MaxRestarts
	pcfg.Consume = func(ctx context.Context, stdout io.Reader) {
		c, err := reader.Run(ctx, stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("reading poller output failed", "error", err)
		}
		mu.Lock()
		total.Battery += c.Battery
		total.Pack += c.Pack
		total.Skipped += c.Skipped
		mu.Unlock()
	}
	if cfg.Producer.Watchdog && cfg.GetStaleTimeout() > 0 {
		if interval := cfg.GetCheckInterval(); interval > 0 {
			pcfg.HealthCheckInterval = interval
		}
		pcfg.HealthCheckFunc = func(context.Context) error {
			if reporter.Snapshot().Status == health.StatusStale {
				return errors.New("no measurements within stale timeout")
			}
			return nil
		}
	}

	mgr := producer.NewManager(pcfg)
	mgr.SetLogger(log.With("component", "producer"))
	if err := mgr.Start(ctx); err != nil {
		return ingest.Counts{}, fmt.Errorf("starting poller: %w", err)
	}

	var err error
	select {
	case <-ctx.Done():
	case <-mgr.Done():
		err = fmt.Errorf("poller stopped: %w", mgr.LastError())
	}
	if stopErr := mgr.Stop(); stopErr != nil {
		log.Warn("stopping poller failed", "error", stopErr)
	}

	mu.Lock()
	defer mu.Unlock()
	return total, err
}

// openJournal opens the SQLite database, applies migrations and prunes
// events older than journalRetention.
func openJournal(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, *journal.SQLiteRepository, error) {
	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path})
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	events := journal.NewSQLiteRepository(db.DB, cfg.InfluxDB.Backend)
	pruned, err := events.Prune(ctx, time.Now().Add(-journalRetention))
	if err != nil {
		log.Warn("pruning event journal failed", "error", err)
	} else if pruned > 0 {
		log.Info("pruned event journal", "removed", pruned)
	}
	log.Info("event journal ready", "path", db.Path())
	return db, events, nil
}
