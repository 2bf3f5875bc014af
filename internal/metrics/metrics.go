// Package metrics is the process-wide metrics facade.
//
// Core packages record through the package-level functions; the CLI picks a
// Backend at startup (Datadog, Prometheus Pushgateway, or none). Until
// SetBackend is called every call is a no-op.
package metrics

import (
	"sync"
	"time"
)

// Metric names. Backends map these to their own naming scheme.
const (
	StepTotal           = "bidsevents_step_total"
	StepDurationSeconds = "bidsevents_step_duration_seconds"
	FilesTotal          = "bidsevents_files_total"
	IssuesTotal         = "bidsevents_issues_total"
)

// File kinds for FilesTotal.
const (
	FileIndexed    = "indexed"
	FileMalformed  = "malformed"
	FileDuplicate  = "duplicate"
	FileSummarized = "summarized"
	FileFailed     = "failed"
	FileValidated  = "validated"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to counter name.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush asks the backend to submit buffered data.
func Flush() error { return current().Flush() }

// RecordStep counts one run of a pipeline step and its duration. status is
// "ok" when err is nil, "error" otherwise.
func RecordStep(step string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"step": step, "status": status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordFiles counts n files of kind.
func RecordFiles(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(FilesTotal, float64(n), Labels{"kind": kind})
}

// RecordIssues counts n validation issues of severity.
func RecordIssues(severity string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(IssuesTotal, float64(n), Labels{"severity": severity})
}
