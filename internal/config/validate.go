package config

import (
	"fmt"
	"strings"
)

// Severity of a configuration issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single configuration finding. Path is the dotted config key.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// HasErrors reports whether any issue is error-severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var knownStorageKinds = map[string]bool{"": true, "sqlite": true, "postgres": true, "mssql": true}
var knownMetricsBackends = map[string]bool{"": true, "none": true, "datadog": true, "pushgateway": true}

// Validate checks cfg for problems that would make a run fail or behave
// surprisingly. It never stops at the first problem; all issues are returned
// in config-key order.
func Validate(cfg Config) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, a ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if strings.TrimSpace(cfg.Dataset.Root) == "" {
		add(SeverityError, "dataset.root", "dataset root is required")
	}
	if strings.TrimSpace(cfg.Dataset.Suffix) == "" {
		add(SeverityWarning, "dataset.suffix", "empty suffix selects every tabular file")
	}
	for i, ext := range cfg.Dataset.Extensions {
		if !strings.HasPrefix(ext, ".") {
			add(SeverityError, fmt.Sprintf("dataset.extensions[%d]", i), "extension %q must start with '.'", ext)
		}
	}

	if len(cfg.Index.Entities) == 0 {
		add(SeverityError, "index.entities", "at least one entity is required to build keys")
	}
	seen := map[string]bool{}
	for i, e := range cfg.Index.Entities {
		switch {
		case strings.TrimSpace(e) == "":
			add(SeverityError, fmt.Sprintf("index.entities[%d]", i), "entity name is empty")
		case strings.ContainsAny(e, "-_./"):
			add(SeverityError, fmt.Sprintf("index.entities[%d]", i), "entity %q must not contain '-', '_', '.' or '/'", e)
		case seen[e]:
			add(SeverityError, fmt.Sprintf("index.entities[%d]", i), "entity %q listed twice", e)
		}
		seen[e] = true
	}

	skip := map[string]bool{}
	for _, c := range cfg.Summary.SkipColumns {
		skip[c] = true
	}
	for i, c := range cfg.Summary.ValueColumns {
		if skip[c] {
			add(SeverityWarning, fmt.Sprintf("summary.value_columns[%d]", i), "column %q is also skipped; skip wins", c)
		}
	}

	if !knownStorageKinds[cfg.Storage.Kind] {
		add(SeverityError, "storage.kind", "unsupported storage kind %q", cfg.Storage.Kind)
	} else if cfg.Storage.Kind != "" && strings.TrimSpace(cfg.Storage.DSN) == "" {
		add(SeverityError, "storage.dsn", "dsn is required for storage kind %q", cfg.Storage.Kind)
	}

	if !knownMetricsBackends[cfg.Metrics.Backend] {
		add(SeverityWarning, "metrics.backend", "unknown metrics backend %q; metrics disabled", cfg.Metrics.Backend)
	}

	return out
}
