package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/seplos-sink/internal/infrastructure/config"
	"github.com/nerrad567/seplos-sink/internal/infrastructure/greptime"
	"github.com/nerrad567/seplos-sink/internal/infrastructure/influxdb"
	"github.com/nerrad567/seplos-sink/internal/infrastructure/tsdb"
	"github.com/nerrad567/seplos-sink/internal/sink"
)

// storeFactory builds one backend's client.
type storeFactory struct {
	// anonymous backends accept writes without a token.
	anonymous bool
	open      func(cfg config.InfluxDBConfig, timeout time.Duration) (sink.Store, error)
}

var stores = map[string]storeFactory{
	config.BackendInfluxDB: {
		open: func(cfg config.InfluxDBConfig, timeout time.Duration) (sink.Store, error) {
			c, err := influxdb.Connect(cfg, timeout)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	},
	config.BackendVictoriaMetrics: {
		anonymous: true,
		open: func(cfg config.InfluxDBConfig, timeout time.Duration) (sink.Store, error) {
			c, err := tsdb.Connect(cfg, timeout)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	},
	config.BackendGreptime: {
		anonymous: true,
		open: func(cfg config.InfluxDBConfig, timeout time.Duration) (sink.Store, error) {
			c, err := greptime.Connect(cfg, timeout)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	},
}

// newOpener returns the sink opener for the configured backend.
//
// Client construction only fails on configuration problems, so those
// errors are reported as ErrCapabilityUnavailable and disable the sink.
// Reachability failures surface later from the health probe and are retried.
func newOpener(cfg config.InfluxDBConfig, timeout time.Duration) sink.Opener {
	factory, ok := stores[cfg.Backend]
	return func(context.Context) (sink.Store, error) {
		if !ok {
			return nil, fmt.Errorf("%w: unknown backend %q", sink.ErrCapabilityUnavailable, cfg.Backend)
		}
		st, err := factory.open(cfg, timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", sink.ErrCapabilityUnavailable, err)
		}
		return st, nil
	}
}

// sinkConfig maps the [influxdb] section onto the sink's settings.
func sinkConfig(cfg *config.Config) (sink.Config, error) {
	mode, err := sink.ParsePublishMode(cfg.InfluxDB.PublishMode)
	if err != nil {
		return sink.Config{}, err
	}
	store := cfg.InfluxDB
	return sink.Config{
		Target: sink.Target{
			URL:       store.URL,
			Token:     store.Token,
			Org:       store.Org,
			Bucket:    store.Bucket,
			Anonymous: stores[store.Backend].anonymous && store.Token == "",
		},
		Enabled:       store.Enabled,
		Backend:       store.Backend,
		WriteInterval: cfg.GetWriteInterval(),
		PublishMode:   mode,
		ChangeEpsilon: store.ChangeEpsilon,
		WriteTimeout:  cfg.GetWriteTimeout(),
	}, nil
}
