package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	kind   string
	name   string
	value  float64
	labels Labels
}

type recorder struct {
	mu       sync.Mutex
	calls    []call
	flushes  int
	flushErr error
}

func (r *recorder) IncCounter(name string, delta float64, l Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{"counter", name, delta, l})
}

func (r *recorder) ObserveHistogram(name string, v float64, l Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{"histogram", name, v, l})
}

func (r *recorder) Flush() error {
	r.flushes++
	return r.flushErr
}

func TestDefaultIsNop(t *testing.T) {
	SetBackend(nil)
	IncCounter(FilesTotal, 1, nil)
	ObserveHistogram(StepDurationSeconds, 1, nil)
	assert.NoError(t, Flush())
}

func TestRecordHelpers(t *testing.T) {
	r := &recorder{flushErr: errors.New("boom")}
	SetBackend(r)
	t.Cleanup(func() { SetBackend(nil) })

	RecordStep("summarize", nil, 1500*time.Millisecond)
	RecordStep("validate", errors.New("x"), 0)
	RecordFiles(FileIndexed, 3)
	RecordFiles(FileFailed, 0)
	RecordIssues("warning", 2)

	require.Len(t, r.calls, 6)
	assert.Equal(t, call{"counter", StepTotal, 1, Labels{"step": "summarize", "status": "ok"}}, r.calls[0])
	assert.Equal(t, call{"histogram", StepDurationSeconds, 1.5, Labels{"step": "summarize", "status": "ok"}}, r.calls[1])
	assert.Equal(t, "error", r.calls[2].labels["status"])
	assert.Equal(t, call{"counter", FilesTotal, 3, Labels{"kind": FileIndexed}}, r.calls[4])
	assert.Equal(t, call{"counter", IssuesTotal, 2, Labels{"severity": "warning"}}, r.calls[5])

	assert.EqualError(t, Flush(), "boom")
	assert.Equal(t, 1, r.flushes)
}
