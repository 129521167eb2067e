package config

import (
	"fmt"
	"path/filepath"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/at-ishikawa/leetrecall/internal/schedule"
)

const (
	StorageDriverMemory = "memory"
	StorageDriverFile   = "file"
	StorageDriverSQLite = "sqlite"
	StorageDriverMySQL  = "mysql"
)

type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Due       DueConfig       `mapstructure:"due"`
}

// SchedulerConfig exposes the SM-2 constants as policy parameters.
type SchedulerConfig struct {
	InitialEase        float64 `mapstructure:"initial_ease" validate:"gtefield=MinEase"`
	MinEase            float64 `mapstructure:"min_ease" validate:"gt=0"`
	EasyBonus          float64 `mapstructure:"easy_bonus" validate:"gte=0"`
	HardPenalty        float64 `mapstructure:"hard_penalty" validate:"gte=0"`
	AgainPenalty       float64 `mapstructure:"again_penalty" validate:"gte=0"`
	HardIntervalFactor float64 `mapstructure:"hard_interval_factor" validate:"gt=0,lte=1"`
	FirstInterval      int     `mapstructure:"first_interval_days" validate:"min=1"`
	SecondInterval     int     `mapstructure:"second_interval_days" validate:"min=1"`
	MinInterval        int     `mapstructure:"min_interval_days" validate:"min=1"`
	MaxInterval        int     `mapstructure:"max_interval_days" validate:"gtefield=MinInterval"`
	HistoryLimit       int     `mapstructure:"history_limit" validate:"min=1"`
}

// Policy converts the configuration into a scheduler policy.
func (c SchedulerConfig) Policy() schedule.Policy {
	return schedule.Policy{
		InitialEase:        c.InitialEase,
		MinEase:            c.MinEase,
		EasyBonus:          c.EasyBonus,
		HardPenalty:        c.HardPenalty,
		AgainPenalty:       c.AgainPenalty,
		HardIntervalFactor: c.HardIntervalFactor,
		FirstInterval:      c.FirstInterval,
		SecondInterval:     c.SecondInterval,
		MinInterval:        c.MinInterval,
		MaxInterval:        c.MaxInterval,
		HistoryLimit:       c.HistoryLimit,
	}
}

type StorageConfig struct {
	Driver       string         `mapstructure:"driver" validate:"storage_driver"`
	FilePath     string         `mapstructure:"file_path" validate:"required_if=Driver file"`
	SQLitePath   string         `mapstructure:"sqlite_path" validate:"required_if=Driver sqlite"`
	PingAttempts uint           `mapstructure:"ping_attempts" validate:"min=1"`
	Database     DatabaseConfig `mapstructure:"database"`
}

type DatabaseConfig struct {
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	Database        string            `mapstructure:"database"`
	Username        string            `mapstructure:"username"`
	Password        string            `mapstructure:"password"`
	TLS             bool              `mapstructure:"tls"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int               `mapstructure:"conn_max_lifetime_seconds"`
}

type SyncConfig struct {
	IntervalHours       int `mapstructure:"interval_hours" validate:"min=1"`
	PollIntervalMillis  int `mapstructure:"poll_interval_ms" validate:"min=10"`
	DrainTimeoutSeconds int `mapstructure:"drain_timeout_seconds" validate:"min=1"`
	BatchSize           int `mapstructure:"batch_size" validate:"min=1"`
}

type DueConfig struct {
	DefaultLimit int `mapstructure:"default_limit" validate:"min=1"`
}

type ConfigLoader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
}

func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/leetrecall")
	}

	return &ConfigLoader{
		viper:      v,
		validator:  validate,
		translator: trans,
	}, nil
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	policy := schedule.DefaultPolicy()
	v.SetDefault("scheduler.initial_ease", policy.InitialEase)
	v.SetDefault("scheduler.min_ease", policy.MinEase)
	v.SetDefault("scheduler.easy_bonus", policy.EasyBonus)
	v.SetDefault("scheduler.hard_penalty", policy.HardPenalty)
	v.SetDefault("scheduler.again_penalty", policy.AgainPenalty)
	v.SetDefault("scheduler.hard_interval_factor", policy.HardIntervalFactor)
	v.SetDefault("scheduler.first_interval_days", policy.FirstInterval)
	v.SetDefault("scheduler.second_interval_days", policy.SecondInterval)
	v.SetDefault("scheduler.min_interval_days", policy.MinInterval)
	v.SetDefault("scheduler.max_interval_days", policy.MaxInterval)
	v.SetDefault("scheduler.history_limit", policy.HistoryLimit)

	v.SetDefault("storage.driver", StorageDriverFile)
	v.SetDefault("storage.file_path", filepath.Join("data", "leetrecall.yml"))
	v.SetDefault("storage.sqlite_path", filepath.Join("data", "leetrecall.db"))
	v.SetDefault("storage.ping_attempts", 5)
	v.SetDefault("storage.database.host", "localhost")
	v.SetDefault("storage.database.port", 3306)
	v.SetDefault("storage.database.database", "leetrecall")
	v.SetDefault("storage.database.username", "user")

	v.SetDefault("sync.interval_hours", 6)
	v.SetDefault("sync.poll_interval_ms", 200)
	v.SetDefault("sync.drain_timeout_seconds", 60)
	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("due.default_limit", 10)

	// Bind database password to environment variable
	if err := v.BindEnv("storage.database.password", "LEETRECALL_DB_PASSWORD"); err != nil {
		return nil, fmt.Errorf("failed to bind LEETRECALL_DB_PASSWORD environment variable: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := loader.validator.Struct(cfg); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMsgs []string
		for _, e := range validationErrors {
			errorMsgs = append(errorMsgs, e.Translate(loader.translator))
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
	}
	if err := cfg.Scheduler.Policy().Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler configuration: %w", err)
	}

	return &cfg, nil
}
