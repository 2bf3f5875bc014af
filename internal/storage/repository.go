// Package storage persists a dataset's file index and column summary to a
// SQL backend so the index stays queryable after a run.
//
// Backends live in sub-packages and register themselves from init():
//
//	import _ "bidsevents/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{Kind: "sqlite", DSN: "file:index.db"})
//
// Every write is scoped to one dataset name and replaces whatever that
// dataset held before, so re-indexing the same dataset is idempotent.
package storage

import (
	"context"
	"slices"
	"sync"

	"bidsevents/internal/errors"
)

// Config is the minimal configuration needed to open a repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Repository is the backend-agnostic index store.
//
// Each backend implements these semantics in its own idiomatic way
// (Postgres ON CONFLICT, SQLite OR IGNORE, SQL Server NOT EXISTS).
type Repository interface {
	// Close releases backend resources. Call once at shutdown.
	Close()

	// EnsureSchema creates the index tables and lookup indexes if missing.
	EnsureSchema(ctx context.Context) error

	// SaveIndex replaces the dataset's file and entity rows in one
	// transaction and returns the number of file rows written.
	SaveIndex(ctx context.Context, dataset string, files []FileRow) (int64, error)

	// SaveSummary replaces the dataset's column value rows in one
	// transaction and returns the number of rows written.
	SaveSummary(ctx context.Context, dataset string, values []ColumnValueRow) (int64, error)

	// FindByEntity returns the dataset's files whose entity has value,
	// ordered by key, each with its full entity map.
	FindByEntity(ctx context.Context, dataset, entity, value string) ([]FileRow, error)

	// ColumnValues returns the stored summary rows of one column, or of
	// every column when column is empty, ordered by column then value.
	ColumnValues(ctx context.Context, dataset, column string) ([]ColumnValueRow, error)
}

// Factory opens a repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty, f is nil, or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic("storage: factory already registered for kind=" + kind)
	}

	factories[kind] = f
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// New constructs a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, errors.New("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, errors.WithHintf(
			errors.Newf("storage: unsupported kind %q", cfg.Kind),
			"registered kinds: %v", Kinds(),
		)
	}
	repo, err := f(ctx, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "storage: open %s", cfg.Kind)
	}
	return repo, nil
}
