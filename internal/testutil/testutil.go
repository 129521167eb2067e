// Package testutil provides shared test helpers for config files and event fixtures.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/at-ishikawa/leetrecall/internal/ingest"
)

// ConfigOption adds lines to the generated config file.
type ConfigOption func(*configContent)

type configContent struct {
	driver string
	extra  string
}

// WithDriver selects the storage driver. The default is "file".
func WithDriver(driver string) ConfigOption {
	return func(c *configContent) {
		c.driver = driver
	}
}

// WithExtraYAML appends raw YAML to the config file.
func WithExtraYAML(content string) ConfigOption {
	return func(c *configContent) {
		c.extra += content
	}
}

// SetupTestConfig writes a config file whose storage lives under tmpDir and
// whose sync settings are tuned for fast tests. Returns the config file path.
func SetupTestConfig(t *testing.T, tmpDir string, opts ...ConfigOption) string {
	t.Helper()

	c := configContent{driver: "file"}
	for _, opt := range opts {
		opt(&c)
	}

	content := fmt.Sprintf(`storage:
  driver: %s
  file_path: %s
  sqlite_path: %s
sync:
  poll_interval_ms: 10
  drain_timeout_seconds: 10
  batch_size: 1
`,
		c.driver,
		filepath.Join(tmpDir, "data", "store.yml"),
		filepath.Join(tmpDir, "data", "store.db"),
	) + c.extra

	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
	return cfgPath
}

// WriteEventsFile writes events as a YAML list and returns the file path.
func WriteEventsFile(t *testing.T, tmpDir, name string, events []ingest.CompletionEvent) string {
	t.Helper()

	data, err := yaml.Marshal(events)
	require.NoError(t, err)
	path := filepath.Join(tmpDir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}
