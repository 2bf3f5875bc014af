package datadog

import (
	"context"
	"errors"
	"net/http"
	"os"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"bidsevents/internal/metrics"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

// quietOptions returns options whose ticker never fires during a test.
func quietOptions(fs *fakeSubmitter, at int64) Options {
	return Options{
		JobName:    "job1",
		FlushEvery: 24 * time.Hour,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(at, 0) },
		newTicker:  func(d time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	}
}

// TestResolveEnvTag verifies environment-tag precedence and defaults.
//
// Edge cases:
//   - ENV wins over DD_ENV.
//   - Whitespace-only env vars are ignored.
//   - If neither is set, "env:unknown" is returned.
func TestResolveEnvTag(t *testing.T) {
	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ENV", tc.env)
			t.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

// TestStepStatusKeyRoundTrip verifies key encoding/decoding.
func TestStepStatusKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		step   string
		status string
	}{
		{name: "normal", step: "index", status: "ok"},
		{name: "empty_step", step: "", status: "ok"},
		{name: "empty_status", step: "validate", status: ""},
		{name: "both_empty", step: "", status: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			k := stepStatusKey(tc.step, tc.status)
			step, status := splitStepStatusKey(k)
			if step != tc.step || status != tc.status {
				t.Fatalf("roundtrip got=(%q,%q), want=(%q,%q)", step, status, tc.step, tc.status)
			}
		})
	}

	t.Run("split_without_separator_defaults_unknown_status", func(t *testing.T) {
		step, status := splitStepStatusKey("no-sep")
		if step != "no-sep" || status != "unknown" {
			t.Fatalf("splitStepStatusKey()=(%q,%q), want=(%q,%q)", step, status, "no-sep", "unknown")
		}
	})
}

// TestWithTags verifies tag concatenation and immutability.
func TestWithTags(t *testing.T) {
	base := []string{"env:test", "job:bidsevents"}
	got := withTags(base, "step:index", "status:ok")
	want := []string{"env:test", "job:bidsevents", "step:index", "status:ok"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("withTags()=%v, want %v", got, want)
	}
	got[0] = "env:mutated"
	if base[0] == "env:mutated" {
		t.Fatalf("withTags output aliases base slice")
	}
}

// TestPercentileNearestRank verifies percentile behavior.
func TestPercentileNearestRank(t *testing.T) {
	tests := []struct {
		name string
		s    []float64
		p    float64
		want float64
	}{
		{name: "empty", s: nil, p: 0.50, want: 0},
		{name: "single", s: []float64{7}, p: 0.95, want: 7},
		{name: "p_le_0", s: []float64{1, 2, 3}, p: -1, want: 1},
		{name: "p_ge_1", s: []float64{1, 2, 3}, p: 2, want: 3},
		{name: "median", s: []float64{1, 2, 3, 4, 5}, p: 0.50, want: 3},
		{name: "p90_small_n", s: []float64{1, 2, 3, 4, 5}, p: 0.90, want: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentileNearestRank(tc.s, tc.p); got != tc.want {
				t.Fatalf("percentileNearestRank(%v,%v)=%v, want %v", tc.s, tc.p, got, tc.want)
			}
		})
	}
}

// TestAddPercentiles verifies the gauge set and that input is not mutated.
func TestAddPercentiles(t *testing.T) {
	orig := []float64{5, 1, 3, 2, 4}
	in := append([]float64(nil), orig...)

	var series []datadogV2.MetricSeries
	addPercentiles(&series, []string{"env:test"}, "bidsevents.step.duration_seconds", stepStatusKey("summarize", "ok"), in, 999)

	if len(series) != 6 {
		t.Fatalf("series.len=%d, want 6", len(series))
	}
	if !reflect.DeepEqual(in, orig) {
		t.Fatalf("samples mutated: got %v, want %v", in, orig)
	}
	last := series[5]
	if last.Metric != "bidsevents.step.duration_seconds.samples" || *last.Points[0].Value != 5 {
		t.Fatalf("unexpected samples gauge: %s=%v", last.Metric, *last.Points[0].Value)
	}
	if *last.Type != datadogV2.METRICINTAKETYPE_GAUGE || *last.Points[0].Timestamp != 999 {
		t.Fatalf("unexpected gauge type or timestamp")
	}
	if !contains(last.Tags, "step:summarize") || !contains(last.Tags, "status:ok") {
		t.Fatalf("missing step/status tags: %v", last.Tags)
	}
}

// TestNewBackend_Defaults verifies defaults without real HTTP.
func TestNewBackend_Defaults(t *testing.T) {
	fs := &fakeSubmitter{}
	opts := quietOptions(fs, 123)
	opts.JobName = ""
	opts.FlushEvery = 0
	opts.Tags = []string{"dataset:ds001"}

	b, err := NewBackend(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewBackend() err=%v, want nil", err)
	}
	defer func() { _ = b.Close() }()

	if !contains(b.baseTags, "job:bidsevents") {
		t.Fatalf("baseTags missing job:bidsevents: %v", b.baseTags)
	}
	if !contains(b.baseTags, "dataset:ds001") {
		t.Fatalf("baseTags missing dataset:ds001: %v", b.baseTags)
	}
	if b.flushEvery != 60*time.Second {
		t.Fatalf("flushEvery=%s, want 60s", b.flushEvery)
	}
}

// TestFlush_SubmitsAndResets verifies Flush submits buffered metrics and resets buffers.
func TestFlush_SubmitsAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs, 1000))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	metrics.SetBackend(b)
	t.Cleanup(func() { metrics.SetBackend(nil) })

	metrics.RecordStep("index", nil, 500*time.Millisecond)
	metrics.RecordFiles(metrics.FileIndexed, 3)
	metrics.RecordIssues("warning", 2)

	if err := metrics.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
	if len(b.stepCounts) != 0 || len(b.fileCounts) != 0 || len(b.issueCounts) != 0 || len(b.durationSamples) != 0 {
		t.Fatalf("buffers not reset after Flush")
	}

	payload, _ := fs.last()
	var names []string
	for _, s := range payload.Series {
		names = append(names, s.Metric)
		if s.Metric == "bidsevents.files.total" && !contains(s.Tags, "kind:indexed") {
			t.Fatalf("files series missing kind tag: %v", s.Tags)
		}
	}
	sort.Strings(names)

	for _, w := range []string{
		"bidsevents.files.total",
		"bidsevents.issues.total",
		"bidsevents.step.total",
		"bidsevents.step.duration_seconds.p50",
		"bidsevents.step.duration_seconds.samples",
	} {
		if !contains(names, w) {
			t.Fatalf("payload missing metric %q; got=%v", w, names)
		}
	}
}

// TestFlush_NoDataDoesNotSubmit verifies Flush returns nil and does not submit when empty.
func TestFlush_NoDataDoesNotSubmit(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs, 1000))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 0 {
		t.Fatalf("unexpected submission count=%d, want 0", fs.count())
	}
}

func TestFlush_SubmitErrorIsWrapped(t *testing.T) {
	fs := &fakeSubmitter{err: errors.New("403 forbidden")}
	b, err := NewBackend(context.Background(), quietOptions(fs, 1000))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.IssuesTotal, 1, metrics.Labels{"severity": "error"})
	err = b.Flush()
	if err == nil || !strings.Contains(err.Error(), "datadog: submit metrics") || !strings.Contains(err.Error(), "403") {
		t.Fatalf("Flush() err=%v, want wrapped submit error", err)
	}
}

// TestLoopAndClose verifies the background loop flushes periodically and Close performs a final flush.
func TestLoopAndClose(t *testing.T) {
	fs := &fakeSubmitter{}
	opts := Options{
		JobName:    "job1",
		FlushEvery: 5 * time.Millisecond,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(2000, 0) },
	}

	b, err := NewBackend(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	b.IncCounter(metrics.FilesTotal, 1, metrics.Labels{"kind": metrics.FileValidated})

	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		if fs.count() >= 1 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if fs.count() < 1 {
		_ = b.Close()
		t.Fatalf("expected at least one background Flush submission; got %d", fs.count())
	}

	b.IncCounter(metrics.FilesTotal, 1, metrics.Labels{"kind": metrics.FileValidated})
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v, want nil", err)
	}
	if fs.count() < 2 {
		t.Fatalf("expected at least 2 submissions after Close; got %d", fs.count())
	}
}

// TestBackend_ConcurrentAccess verifies thread-safety of buffering.
func TestBackend_ConcurrentAccess(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs, 3000))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	workers := runtime.GOMAXPROCS(0) * 4
	iters := 2000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "validate", "status": "ok"})
				b.IncCounter(metrics.FilesTotal, 1, metrics.Labels{"kind": metrics.FileValidated})
				b.ObserveHistogram(metrics.StepDurationSeconds, 0.01, metrics.Labels{"step": "validate", "status": "ok"})
			}
		}()
	}
	wg.Wait()

	if got := b.fileCounts[metrics.FileValidated]; got != float64(workers*iters) {
		t.Fatalf("fileCounts=%v, want %d", got, workers*iters)
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
}

// TestIncCounterAndObserveHistogram_EdgeCases verifies ignored paths and defaults.
func TestIncCounterAndObserveHistogram_EdgeCases(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs, 4000))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	// Non-positive counter is ignored.
	b.IncCounter(metrics.FilesTotal, 0, metrics.Labels{"kind": "indexed"})
	// Missing kind is ignored.
	b.IncCounter(metrics.FilesTotal, 1, metrics.Labels{})
	// Unknown metric is ignored.
	b.IncCounter("unknown_total", 1, metrics.Labels{"x": "y"})
	// Negative histogram is ignored.
	b.ObserveHistogram(metrics.StepDurationSeconds, -1, metrics.Labels{"step": "index", "status": "ok"})
	// Missing severity defaults to "unknown".
	b.IncCounter(metrics.IssuesTotal, 1, metrics.Labels{})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}

	payload, ok := fs.last()
	if !ok {
		t.Fatalf("missing payload")
	}
	if len(payload.Series) != 1 {
		t.Fatalf("series.len=%d, want 1", len(payload.Series))
	}
	s := payload.Series[0]
	if s.Metric != "bidsevents.issues.total" || !contains(s.Tags, "severity:unknown") {
		t.Fatalf("unexpected series %q tags=%v", s.Metric, s.Tags)
	}
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty_returns_nil", in: "", want: nil},
		{name: "trims_and_skips_empty_segments", in: " env:prod , ,dataset:ds001,  ,team:data ", want: []string{"env:prod", "dataset:ds001", "team:data"}},
		{name: "single_tag", in: "dataset:ds001", want: []string{"dataset:ds001"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ParseTagsCSV(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseTagsCSV(%q)=%v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestMain(m *testing.M) {
	// Keep the env tag deterministic for every test.
	_ = os.Unsetenv("ENV")
	_ = os.Unsetenv("DD_ENV")
	os.Exit(m.Run())
}
