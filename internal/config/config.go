// Package config loads and validates bidsevents configuration.
//
// Sources are layered in the usual order: built-in defaults, then an
// optional config file (yaml, json or toml, picked by extension), then
// BIDSEVENTS_* environment variables. Command-line flags are applied on top
// by the CLI.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"bidsevents/internal/errors"
)

// EnvPrefix is the environment variable prefix, e.g. BIDSEVENTS_DATASET_ROOT.
const EnvPrefix = "BIDSEVENTS"

// Config is the complete tool configuration.
type Config struct {
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Index    IndexConfig    `mapstructure:"index"`
	Summary  SummaryConfig  `mapstructure:"summary"`
	Validate ValidateConfig `mapstructure:"validate"`
	Parser   Options        `mapstructure:"parser"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatasetConfig locates the event files of a dataset.
type DatasetConfig struct {
	// Root is the dataset root directory (holds dataset_description.json).
	Root string `mapstructure:"root"`
	// Name labels the dataset in the index store and in metrics tags.
	// Defaults to the base name of Root.
	Name string `mapstructure:"name"`
	// Suffix selects files by their final name segment, e.g. "events".
	Suffix string `mapstructure:"suffix"`
	// Extensions selects tabular files, e.g. [".tsv"].
	Extensions []string `mapstructure:"extensions"`
	// ExcludeDirs are directory base names skipped during traversal.
	ExcludeDirs []string `mapstructure:"exclude_dirs"`
}

// IndexConfig controls composite key construction.
type IndexConfig struct {
	// Entities is the ordered entity tuple used to build keys.
	Entities []string `mapstructure:"entities"`
	// Strict turns duplicate keys into a fatal error.
	Strict bool `mapstructure:"strict"`
	// SplitBy optionally partitions the index by one entity for reporting.
	SplitBy string `mapstructure:"split_by"`
}

// SummaryConfig controls column aggregation.
type SummaryConfig struct {
	SkipColumns  []string `mapstructure:"skip_columns"`
	ValueColumns []string `mapstructure:"value_columns"`
	// Workers bounds per-file summary concurrency. <=0 means runtime.NumCPU.
	Workers int `mapstructure:"workers"`
}

// ValidateConfig controls dataset validation.
type ValidateConfig struct {
	CheckForWarnings bool `mapstructure:"check_for_warnings"`
	// SkipFilename suppresses the file name in formatted issue lines.
	SkipFilename bool `mapstructure:"skip_filename"`
}

// StorageConfig selects the optional index store backend.
type StorageConfig struct {
	// Kind is "sqlite", "postgres", "mssql" or empty (no store).
	Kind string `mapstructure:"kind"`
	DSN  string `mapstructure:"dsn"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	// Backend is "datadog", "pushgateway" or "none".
	Backend        string        `mapstructure:"backend"`
	PushgatewayURL string        `mapstructure:"pushgateway_url"`
	Job            string        `mapstructure:"job"`
	Tags           []string      `mapstructure:"tags"`
	FlushEvery     time.Duration `mapstructure:"flush_every"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	JSON      bool `mapstructure:"json"`
	Verbosity int  `mapstructure:"verbosity"`
}

// SetDefaults registers all default values on v.
//
// Every key gets a default, including empty ones, because viper only
// decodes environment overrides for keys it already knows about.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dataset.root", "")
	v.SetDefault("dataset.name", "")
	v.SetDefault("dataset.suffix", "events")
	v.SetDefault("dataset.extensions", []string{".tsv"})
	v.SetDefault("dataset.exclude_dirs", []string{"sourcedata", "derivatives", "code", "stimuli"})

	v.SetDefault("index.entities", []string{"sub", "ses", "task", "acq", "run"})
	v.SetDefault("index.strict", false)
	v.SetDefault("index.split_by", "")

	v.SetDefault("summary.skip_columns", []string{"onset", "duration", "sample"})
	v.SetDefault("summary.value_columns", []string{})
	v.SetDefault("summary.workers", 0)

	v.SetDefault("validate.check_for_warnings", false)
	v.SetDefault("validate.skip_filename", false)

	v.SetDefault("parser.comma", `\t`)
	v.SetDefault("parser.trim_space", true)

	v.SetDefault("storage.kind", "")
	v.SetDefault("storage.dsn", "")

	v.SetDefault("metrics.backend", "none")
	v.SetDefault("metrics.pushgateway_url", "http://localhost:9091")
	v.SetDefault("metrics.job", "bidsevents")
	v.SetDefault("metrics.tags", []string{})
	v.SetDefault("metrics.flush_every", 60*time.Second)

	v.SetDefault("log.json", false)
	v.SetDefault("log.verbosity", 0)
}

// NewViper returns a viper instance with defaults and env binding applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads configuration from path (optional) layered over defaults and
// environment variables.
//
// Errors:
//   - Returns an error if path is set but cannot be read or parsed.
//   - Returns an error if the merged configuration cannot be decoded.
func Load(path string) (*Config, error) {
	return LoadWithViper(NewViper(), path)
}

// LoadWithViper is Load with a caller-provided viper instance, so the CLI
// can bind its flags before decoding.
func LoadWithViper(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if cfg.Parser == nil {
		cfg.Parser = Options{}
	}
	return &cfg, nil
}
