package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/recman/recman/pkg/config"
	"github.com/recman/recman/pkg/records"
	"github.com/recman/recman/pkg/stores"
	"github.com/recman/recman/pkg/telemetry"
)

// env is the configuration and telemetry shared by the store commands.
type env struct {
	cfg *config.Config
	tel *telemetry.Telemetry
	ctx context.Context
}

// newEnv loads the config, applies flag overrides and starts telemetry.
func newEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Apply(overrides); err != nil {
		return nil, err
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		cfg.Telemetry.Logging.Level = "debug"
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if err := tel.StartMetricsServer(); err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	// Audit trail of every store change
	audit := tel.Logger.NewComponentLogger("audit")
	tel.Events.Subscribe(func(e telemetry.Event) {
		l := audit.WithField("event", e.Type)
		if e.RecordID != "" {
			l = l.WithRecordID(e.RecordID)
		}
		if e.Source != "" {
			l = l.WithBackend(e.Source)
		}
		l.Debug(e.Message)
	}, nil)

	log.Debug().
		Str("backend", cfg.Backend).
		Str("config", configPath).
		Msg("Configuration loaded")

	return &env{
		cfg: cfg,
		tel: tel,
		ctx: tel.WithContext(cmd.Context()),
	}, nil
}

// close flushes telemetry.
func (e *env) close() {
	if err := e.tel.Shutdown(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}

// openStore opens the configured backend and wraps it in an unloaded store.
// The caller must close the store.
func (e *env) openStore() (*records.Store, error) {
	backend, err := openBackend(e.ctx, e.cfg)
	if err != nil {
		return nil, err
	}
	return records.NewStore(backend), nil
}

// loadStore opens the store and loads it, reporting the outcome on stderr.
func (e *env) loadStore() (*records.Store, error) {
	store, err := e.openStore()
	if err != nil {
		return nil, err
	}

	if err := store.Load(e.ctx); err != nil {
		switch {
		case records.IsNotFound(err):
			log.Warn().Err(err).Msg("Source not found, starting with no records")
		case records.IsFormat(err):
			log.Warn().Err(err).Msg("Some rows could not be read and were skipped")
		default:
			_ = store.Close()
			return nil, err
		}
	}

	log.Debug().Int("records", store.Len()).Msg("Records loaded")
	return store, nil
}

// layout returns the configured default layout.
func (e *env) layout() records.Layout {
	l, err := records.ParseLayout(e.cfg.CSV.Layout)
	if err != nil {
		return records.LayoutDepartment
	}
	return l
}

func openBackend(ctx context.Context, cfg *config.Config) (records.Backend, error) {
	switch cfg.Backend {
	case config.BackendCSV:
		layout, err := records.ParseLayout(cfg.CSV.Layout)
		if err != nil {
			return nil, err
		}
		return stores.NewCSVStore(stores.CSVConfig{
			Input:   cfg.CSV.Input,
			Output:  cfg.CSV.Output,
			MaxRows: cfg.CSV.MaxRows,
			Strict:  cfg.CSV.Strict,
			Layout:  layout,
		})

	case config.BackendSQLite:
		return stores.OpenSQLiteStore(ctx, stores.Config{
			Path:        cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})

	case config.BackendRedis:
		return stores.OpenRedisStore(ctx, stores.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})

	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}
