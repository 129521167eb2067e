package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/at-ishikawa/leetrecall/internal/config"
	"github.com/at-ishikawa/leetrecall/internal/database"
	"github.com/at-ishikawa/leetrecall/internal/review"
	"github.com/at-ishikawa/leetrecall/internal/storage"
)

func loadConfig() (*config.Config, error) {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create config loader: %w", err)
	}
	return loader.Load()
}

// environment is the opened storage of one command run.
type environment struct {
	cfg   *config.Config
	kv    storage.KV
	store *review.Store
	close func() error
}

func openEnvironment(ctx context.Context, cfg *config.Config) (*environment, error) {
	kv, closeFn, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	return &environment{
		cfg:   cfg,
		kv:    kv,
		store: review.NewStore(kv, cfg.Scheduler.Policy(), review.WithClock(now)),
		close: closeFn,
	}, nil
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.KV, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case config.StorageDriverMemory:
		return storage.NewMemoryKV(), noop, nil
	case config.StorageDriverFile:
		kv, err := storage.OpenFileKV(cfg.FilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("storage.OpenFileKV() > %w", err)
		}
		return kv, noop, nil
	case config.StorageDriverSQLite, config.StorageDriverMySQL:
		open := func() (*sqlx.DB, error) {
			if cfg.Driver == config.StorageDriverSQLite {
				return database.OpenSQLite(cfg.SQLitePath)
			}
			return database.Open(cfg.Database)
		}
		db, err := open()
		if err != nil {
			return nil, nil, fmt.Errorf("database.Open(%s) > %w", cfg.Driver, err)
		}
		if err := database.Ping(ctx, db, cfg.PingAttempts); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("database.Ping() > %w", err)
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("database.Migrate() > %w", err)
		}
		return storage.NewSQLKV(db), db.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputYAML OutputFormat = "yaml"
	OutputJSON OutputFormat = "json"
)

// Set implements pflag.Value.
func (f *OutputFormat) Set(v string) error {
	switch OutputFormat(v) {
	case OutputText, OutputYAML, OutputJSON:
		*f = OutputFormat(v)
	default:
		return fmt.Errorf("invalid value %q, valid values are %q, %q or %q", v, OutputText, OutputYAML, OutputJSON)
	}
	return nil
}

// String implements pflag.Value.
func (f *OutputFormat) String() string {
	if f == nil {
		return ""
	}
	return string(*f)
}

// Type implements pflag.Value.
func (f *OutputFormat) Type() string {
	return "OutputFormat"
}

var (
	_ pflag.Value = (*OutputFormat)(nil)
)

// writeStructured writes v as YAML or JSON. It reports false for text output.
func writeStructured(w io.Writer, format OutputFormat, v interface{}) (bool, error) {
	switch format {
	case OutputYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return true, fmt.Errorf("yaml.Encode() > %w", err)
		}
		return true, encoder.Close()
	case OutputJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(v); err != nil {
			return true, fmt.Errorf("json.Encode() > %w", err)
		}
		return true, nil
	}
	return false, nil
}
