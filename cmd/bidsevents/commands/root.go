// Package commands implements the bidsevents command tree.
package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"bidsevents/internal/config"
	"bidsevents/internal/errors"
	"bidsevents/internal/logger"
	"bidsevents/internal/parser/tsv"
	"bidsevents/internal/storage"

	// every backend is compiled in; storage.kind picks one at runtime.
	_ "bidsevents/internal/storage/all"
)

// app is the state shared by one command invocation.
type app struct {
	v       *viper.Viper
	cfgPath string
	cfg     *config.Config
	log     *zap.SugaredLogger

	// closers run in reverse order after the command returns, even on error.
	closers []func()
}

// Execute runs the command tree with args and returns the command's error.
// Results go to stdout; configuration issues go to stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{v: config.NewViper(), log: logger.Logger}
	defer a.shutdown()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bidsevents",
		Short: "Index, summarize and validate BIDS event files",
		Long: `bidsevents works on the *_events.tsv files of a BIDS dataset.

Available commands:
  index      - List event files by their entity key
  summarize  - Aggregate column values across files
  template   - Write an annotation sidecar skeleton
  validate   - Check sidecars and event files
  sidecar    - Show the effective sidecar of one file
  query      - Read a previously stored index
  config     - Print the effective configuration

Examples:
  bidsevents index -d /data/ds003
  bidsevents template -d /data/ds003 --format yaml -o task-go_events.yaml
  bidsevents validate -d /data/ds003 --check-warnings`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgPath, "config", "c", "", "config file (yaml, json or toml)")
	pf.StringP("dataset", "d", "", "dataset root directory")
	pf.String("name", "", "dataset name in the index store (default: base name of the root)")
	pf.CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	pf.Bool("log-json", false, "emit JSON logs")
	pf.String("metrics-backend", "", "metrics backend (datadog, pushgateway, none)")
	pf.String("pushgateway-url", "", "Pushgateway base URL")
	pf.String("storage-kind", "", "index store backend (sqlite, postgres, mssql)")
	pf.String("storage-dsn", "", "index store DSN")

	for flag, key := range map[string]string{
		"dataset":         "dataset.root",
		"name":            "dataset.name",
		"verbose":         "log.verbosity",
		"log-json":        "log.json",
		"metrics-backend": "metrics.backend",
		"pushgateway-url": "metrics.pushgateway_url",
		"storage-kind":    "storage.kind",
		"storage-dsn":     "storage.dsn",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		a.indexCmd(),
		a.summarizeCmd(),
		a.templateCmd(),
		a.validateCmd(),
		a.sidecarCmd(),
		a.queryCmd(),
		a.configCmd(),
	)
	return root
}

// setup loads configuration, initializes logging and picks the metrics
// backend. It runs before every subcommand.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		for _, key := range f.Annotations[viperKey] {
			_ = a.v.BindPFlag(key, f)
		}
	})

	cfg, err := config.LoadWithViper(a.v, a.cfgPath)
	if err != nil {
		return err
	}
	if err := logger.Initialize(cfg.Log.JSON, cfg.Log.Verbosity); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	a.log = logger.Logger.Named("cli")
	a.onClose(logger.Cleanup)

	if cfg.Dataset.Root != "" && cfg.Dataset.Name == "" {
		cfg.Dataset.Name = filepath.Base(filepath.Clean(cfg.Dataset.Root))
	}

	issues := config.Validate(*cfg)
	for _, iss := range issues {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return errors.WithHintf(errors.New("configuration is invalid"),
			"fix the issues above in %s, the BIDSEVENTS_* environment or the flags", configSource(a.cfgPath))
	}
	a.cfg = cfg

	a.startMetrics(cmd.Context())
	return nil
}

// viperKey annotates a subcommand flag with the config key it overrides.
// Several subcommands share keys, so only the running command's flags are
// bound.
const viperKey = "bidsevents/config-key"

func bindFlag(cmd *cobra.Command, flag, key string) {
	_ = cmd.Flags().SetAnnotation(flag, viperKey, []string{key})
}

func (a *app) onClose(f func()) { a.closers = append(a.closers, f) }

func (a *app) shutdown() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// reader returns the TSV reader configured by the parser section.
func (a *app) reader() tsv.Reader {
	return tsv.FileReader{Opt: a.cfg.Parser}
}

// openStore opens the configured index store and ensures its schema. It
// returns a nil repository when no store is configured.
func (a *app) openStore(ctx context.Context) (storage.Repository, error) {
	if a.cfg.Storage.Kind == "" {
		return nil, nil
	}
	repo, err := storage.New(ctx, storage.Config{Kind: a.cfg.Storage.Kind, DSN: a.cfg.Storage.DSN})
	if err != nil {
		return nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	a.onClose(repo.Close)
	return repo, nil
}

// requireStore is openStore for commands that cannot run without a store.
func (a *app) requireStore(ctx context.Context) (storage.Repository, error) {
	repo, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, errors.WithHint(errors.New("no index store configured"),
			"set storage.kind and storage.dsn, or pass --storage-kind and --storage-dsn")
	}
	return repo, nil
}

func configSource(path string) string {
	if path == "" {
		return "the config file"
	}
	return path
}
