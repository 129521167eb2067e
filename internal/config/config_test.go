package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/leetrecall/internal/schedule"
)

func defaultConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			InitialEase:        2.5,
			MinEase:            1.3,
			EasyBonus:          0.15,
			HardPenalty:        0.15,
			AgainPenalty:       0.2,
			HardIntervalFactor: 0.8,
			FirstInterval:      1,
			SecondInterval:     3,
			MinInterval:        1,
			MaxInterval:        365,
			HistoryLimit:       10,
		},
		Storage: StorageConfig{
			Driver:       StorageDriverFile,
			FilePath:     filepath.Join("data", "leetrecall.yml"),
			SQLitePath:   filepath.Join("data", "leetrecall.db"),
			PingAttempts: 5,
			Database: DatabaseConfig{
				Host:     "localhost",
				Port:     3306,
				Database: "leetrecall",
				Username: "user",
			},
		},
		Sync: SyncConfig{
			IntervalHours:       6,
			PollIntervalMillis:  200,
			DrainTimeoutSeconds: 60,
			BatchSize:           50,
		},
		Due: DueConfig{
			DefaultLimit: 10,
		},
	}
}

func TestConfigLoader_Load(t *testing.T) {
	tests := []struct {
		name              string
		configContent     string
		useExplicitPath   bool
		env               map[string]string
		wantErr           bool
		want              func() *Config
		wantErrorContains []string
	}{
		{
			name:          "no config file uses defaults",
			configContent: "",
			want:          defaultConfig,
		},
		{
			name: "valid config file with custom values",
			configContent: `scheduler:
  again_penalty: 0.3
  second_interval_days: 6
storage:
  driver: sqlite
  sqlite_path: custom/review.db
sync:
  interval_hours: 24
due:
  default_limit: 25
`,
			want: func() *Config {
				cfg := defaultConfig()
				cfg.Scheduler.AgainPenalty = 0.3
				cfg.Scheduler.SecondInterval = 6
				cfg.Storage.Driver = StorageDriverSQLite
				cfg.Storage.SQLitePath = "custom/review.db"
				cfg.Sync.IntervalHours = 24
				cfg.Due.DefaultLimit = 25
				return cfg
			},
		},
		{
			name: "explicit config file path with mysql and env password",
			configContent: `storage:
  driver: mysql
  database:
    host: db.example.com
    port: 3307
    params:
      charset: utf8mb4
`,
			useExplicitPath: true,
			env:             map[string]string{"LEETRECALL_DB_PASSWORD": "secret"},
			want: func() *Config {
				cfg := defaultConfig()
				cfg.Storage.Driver = StorageDriverMySQL
				cfg.Storage.Database.Host = "db.example.com"
				cfg.Storage.Database.Port = 3307
				cfg.Storage.Database.Password = "secret"
				cfg.Storage.Database.Params = map[string]string{"charset": "utf8mb4"}
				return cfg
			},
		},
		{
			name: "invalid YAML format",
			configContent: `storage:
  driver: file
  invalid yaml format here [[[
`,
			wantErr: true,
			wantErrorContains: []string{
				"configuration file found but could not be read",
				"Please check the file format and permissions",
			},
		},
		{
			name: "unknown storage driver",
			configContent: `storage:
  driver: redis
`,
			wantErr:           true,
			wantErrorContains: []string{"invalid configuration", "storage.driver must be one of memory, file, sqlite, mysql"},
		},
		{
			name: "ease below minimum",
			configContent: `scheduler:
  initial_ease: 1.0
`,
			wantErr:           true,
			wantErrorContains: []string{"invalid configuration", "initial_ease"},
		},
		{
			name: "hard interval factor out of range",
			configContent: `scheduler:
  hard_interval_factor: 1.5
`,
			wantErr:           true,
			wantErrorContains: []string{"hard_interval_factor"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			t.Setenv("LEETRECALL_DB_PASSWORD", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			var configPath string
			if tt.useExplicitPath {
				configPath = filepath.Join(tempDir, "leetrecall.yml")
				err := os.WriteFile(configPath, []byte(tt.configContent), 0644)
				require.NoError(t, err)
			} else {
				if tt.configContent != "" {
					err := os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte(tt.configContent), 0644)
					require.NoError(t, err)
				}
				origDir, err := os.Getwd()
				require.NoError(t, err)
				require.NoError(t, os.Chdir(tempDir))
				t.Cleanup(func() { _ = os.Chdir(origDir) })
			}

			loader, err := NewConfigLoader(configPath)
			require.NoError(t, err)
			got, err := loader.Load()

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)
				for _, wantMsg := range tt.wantErrorContains {
					assert.Contains(t, err.Error(), wantMsg)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want(), got)
		})
	}
}

func TestSchedulerConfig_Policy(t *testing.T) {
	got := defaultConfig().Scheduler.Policy()

	assert.Equal(t, schedule.DefaultPolicy(), got)
}
