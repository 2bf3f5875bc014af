package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "events", cfg.Dataset.Suffix)
	assert.Equal(t, []string{".tsv"}, cfg.Dataset.Extensions)
	assert.Equal(t, []string{"sub", "ses", "task", "acq", "run"}, cfg.Index.Entities)
	assert.Equal(t, []string{"onset", "duration", "sample"}, cfg.Summary.SkipColumns)
	assert.Equal(t, '\t', cfg.Parser.Rune("comma", ','))
	assert.Equal(t, "none", cfg.Metrics.Backend)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bidsevents.yaml")
	body := `
dataset:
  root: /data/ds001
  suffix: events
index:
  entities: [sub, task]
  strict: true
summary:
  value_columns: [response_time]
storage:
  kind: sqlite
  dsn: "file:index.db"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/ds001", cfg.Dataset.Root)
	assert.Equal(t, []string{"sub", "task"}, cfg.Index.Entities)
	assert.True(t, cfg.Index.Strict)
	assert.Equal(t, []string{"response_time"}, cfg.Summary.ValueColumns)
	assert.Equal(t, "sqlite", cfg.Storage.Kind)
	// Defaults not present in the file survive.
	assert.Equal(t, []string{".tsv"}, cfg.Dataset.Extensions)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("BIDSEVENTS_DATASET_ROOT", "/from/env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Dataset.Root)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

// TestValidate covers the issue list shape. Validation must report every
// problem, not just the first.
func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantPaths []string
		wantErr   bool
	}{
		{
			name:    "valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:      "missing_root",
			mutate:    func(c *Config) { c.Dataset.Root = "" },
			wantPaths: []string{"dataset.root"},
			wantErr:   true,
		},
		{
			name:      "bad_entities",
			mutate:    func(c *Config) { c.Index.Entities = []string{"sub", "sub", "run-1", ""} },
			wantPaths: []string{"index.entities[1]", "index.entities[2]", "index.entities[3]"},
			wantErr:   true,
		},
		{
			name:      "storage_without_dsn",
			mutate:    func(c *Config) { c.Storage.Kind = "postgres" },
			wantPaths: []string{"storage.dsn"},
			wantErr:   true,
		},
		{
			name:      "unknown_storage",
			mutate:    func(c *Config) { c.Storage = StorageConfig{Kind: "oracle", DSN: "x"} },
			wantPaths: []string{"storage.kind"},
			wantErr:   true,
		},
		{
			name:      "skip_and_value_overlap_is_warning",
			mutate:    func(c *Config) { c.Summary.ValueColumns = []string{"onset"} },
			wantPaths: []string{"summary.value_columns[0]"},
			wantErr:   false,
		},
		{
			name:      "bad_extension",
			mutate:    func(c *Config) { c.Dataset.Extensions = []string{"tsv"} },
			wantPaths: []string{"dataset.extensions[0]"},
			wantErr:   true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{
				Dataset: DatasetConfig{Root: "/data", Suffix: "events", Extensions: []string{".tsv"}},
				Index:   IndexConfig{Entities: []string{"sub", "task"}},
				Summary: SummaryConfig{SkipColumns: []string{"onset"}},
				Metrics: MetricsConfig{Backend: "none"},
			}
			tc.mutate(&cfg)

			issues := Validate(cfg)
			var paths []string
			for _, iss := range issues {
				paths = append(paths, iss.Path)
			}
			assert.Equal(t, tc.wantPaths, paths)
			assert.Equal(t, tc.wantErr, HasErrors(issues))
		})
	}
}
