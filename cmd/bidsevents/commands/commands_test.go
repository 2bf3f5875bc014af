package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidsevents/internal/annotation"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

// dataset writes a small valid dataset with two annotated event files.
func dataset(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "ds001")
	writeFiles(t, root, map[string]string{
		"dataset_description.json":              `{"Name": "ds001", "HEDVersion": "8.2.0"}`,
		"task-go_events.json":                   `{"trial_type": {"Description": "Trial", "HED": {"go": "Label/go", "stop": "Label/stop"}, "Levels": {"go": "Go", "stop": "Stop"}}}`,
		"sub-01/func/sub-01_task-go_events.tsv": "onset\tduration\ttrial_type\n1\t0.5\tgo\n2\t0.5\tstop\n",
		"sub-02/func/sub-02_task-go_events.tsv": "onset\tduration\ttrial_type\n1\t0.5\tgo\n",
		"sub-02/func/sub-02_task-go_bold.nii":   "",
	})
	return root
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := Execute(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestIndex_ListsKeys(t *testing.T) {
	root := dataset(t)
	out, _, err := run(t, "index", "-d", root)
	require.NoError(t, err)
	assert.Equal(t,
		"sub-01_task-go\tsub-01/func/sub-01_task-go_events.tsv\n"+
			"sub-02_task-go\tsub-02/func/sub-02_task-go_events.tsv\n",
		out)
}

func TestIndex_SplitBy(t *testing.T) {
	root := dataset(t)
	out, _, err := run(t, "index", "-d", root, "--split-by", "sub")
	require.NoError(t, err)
	assert.Contains(t, out, "sub=01\t1 files\n  sub-01_task-go\t")
	assert.Contains(t, out, "sub=02\t1 files\n  sub-02_task-go\t")
	assert.NotContains(t, out, "no sub")
}

func TestIndex_Details(t *testing.T) {
	root := dataset(t)
	out, _, err := run(t, "index", "-d", root, "--details")
	require.NoError(t, err)
	assert.Equal(t,
		"sub-01_task-go\tsub-01/func/sub-01_task-go_events.tsv\t2\tonset,duration,trial_type\n"+
			"sub-02_task-go\tsub-02/func/sub-02_task-go_events.tsv\t1\tonset,duration,trial_type\n",
		out)
}

func TestIndex_StrictDuplicate(t *testing.T) {
	root := dataset(t)
	writeFiles(t, root, map[string]string{
		"sub-01/ses-a/sub-01_task-go_events.tsv": "onset\n1\n",
	})

	_, stderr, err := run(t, "index", "-d", root, "--entities", "sub,task")
	require.NoError(t, err)
	assert.Contains(t, stderr, "1 duplicate")

	_, _, err = run(t, "index", "-d", root, "--entities", "sub,task", "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")
}

func TestSetup_InvalidConfig(t *testing.T) {
	_, stderr, err := run(t, "index")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration is invalid")
	assert.Contains(t, stderr, "error: dataset.root: dataset root is required")
}

func TestSetup_ConfigFile(t *testing.T) {
	root := dataset(t)
	cfgPath := filepath.Join(t.TempDir(), "bidsevents.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("dataset:\n  root: "+root+"\nindex:\n  entities: [task]\n"), 0o644))

	out, stderr, err := run(t, "index", "-c", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "task-go\tsub-01/func/sub-01_task-go_events.tsv\n", out)
	assert.Contains(t, stderr, "1 duplicate")
}

func TestSummarize_Rows(t *testing.T) {
	root := dataset(t)
	out, _, err := run(t, "summarize", "-d", root, "--format", "rows")
	require.NoError(t, err)
	assert.Equal(t,
		"trial_type\tcategorical\tgo\t2\t2\n"+
			"trial_type\tcategorical\tstop\t1\t1\n",
		out)

	out, _, err = run(t, "summarize", "-d", root, "--format", "rows", "--skip-columns", "onset", "--value-columns", "duration")
	require.NoError(t, err)
	assert.Contains(t, out, "duration\tcontinuous\t-\t3\t2\n")
}

func TestSummarize_ReportAndPerFile(t *testing.T) {
	root := dataset(t)
	out, _, err := run(t, "summarize", "-d", root, "--per-file")
	require.NoError(t, err)
	assert.Contains(t, out, "# sub-01/func/sub-01_task-go_events.tsv\n")
	assert.Contains(t, out, "# combined\n")
	assert.Contains(t, out, "cardinality report:\tfiles=2\trows=3")

	_, _, err = run(t, "summarize", "-d", root, "--format", "xml")
	require.Error(t, err)
}

func TestSummarize_SuggestValueColumns(t *testing.T) {
	root := dataset(t)
	_, stderr, err := run(t, "summarize", "-d", root, "--skip-columns", "duration", "--suggest")
	require.NoError(t, err)
	assert.Contains(t, stderr, "suggest value column onset: 2 distinct numeric values in 3 rows (66.7%)\n")
	assert.NotContains(t, stderr, "suggest value column trial_type")
}

func TestTemplate_JSONAndYAML(t *testing.T) {
	root := dataset(t)
	out, _, err := run(t, "template", "-d", root)
	require.NoError(t, err)

	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Contains(t, doc, "trial_type")
	assert.Len(t, doc, 1)
	assert.Equal(t, "Description for trial_type", doc["trial_type"]["Description"])
	assert.Equal(t, map[string]any{
		"go":   "(Label/trial_type, ID/go)",
		"stop": "(Label/trial_type, ID/stop)",
	}, doc["trial_type"]["HED"])

	path := filepath.Join(t.TempDir(), "task-go_events.yaml")
	_, _, err = run(t, "template", "-d", root, "--format", "yaml", "-o", path)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "trial_type:\n  Description: Description for trial_type\n"), string(b))
}

func TestValidate_CleanDataset(t *testing.T) {
	root := dataset(t)
	out, _, err := run(t, "validate", "-d", root)
	require.NoError(t, err)
	assert.Equal(t, "0 errors, 0 warnings in 0 files\n", out)
}

func TestValidate_ReportsAndFails(t *testing.T) {
	root := dataset(t)
	writeFiles(t, root, map[string]string{
		"sub-03/func/sub-03_task-go_events.tsv": "onset\tduration\ttrial_type\nsoon\t0.5\tgo\n1\t0.5\tleft\n",
	})

	out, _, err := run(t, "validate", "-d", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed with 1 errors")
	assert.Contains(t, out, "sub-03/func/sub-03_task-go_events.tsv ERROR "+annotation.CodeOnsetInvalid)
	assert.NotContains(t, out, annotation.CodeValueNotAnnotated)

	out, _, err = run(t, "validate", "-d", root, "--check-warnings", "--skip-filename")
	require.Error(t, err)
	assert.Contains(t, out, "WARNING "+annotation.CodeValueNotAnnotated)
	assert.NotContains(t, out, "sub-03/func")
	assert.Contains(t, out, "1 errors, 1 warnings in 1 files\n")
}

func TestValidate_MissingDescriptor(t *testing.T) {
	root := dataset(t)
	require.NoError(t, os.Remove(filepath.Join(root, "dataset_description.json")))

	_, _, err := run(t, "validate", "-d", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset descriptor missing")
}

func TestSidecar_Trace(t *testing.T) {
	root := dataset(t)
	writeFiles(t, root, map[string]string{
		"sub-01/sub-01_task-go_events.json": `{"trial_type": {"Description": "Subject trial"}}`,
	})

	out, _, err := run(t, "sidecar", "-d", root, "--trace", "sub-01/func/sub-01_task-go_events.tsv")
	require.NoError(t, err)
	assert.Contains(t, out, "# ROOT")
	assert.Contains(t, out, "# MERGED")
	assert.Contains(t, out, "sub-01/sub-01_task-go_events.json")

	i := strings.Index(out, "{")
	require.GreaterOrEqual(t, i, 0)
	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out[i:]), &doc))
	assert.Equal(t, "Subject trial", doc["trial_type"]["Description"])
	assert.Contains(t, doc["trial_type"], "HED")
}

func TestRootedPath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "ds")
	tests := []struct {
		name, root, file, want string
	}{
		{name: "relative_to_root", root: "ds", file: "sub-01/a_events.tsv", want: filepath.Join("ds", "sub-01", "a_events.tsv")},
		{name: "already_rooted", root: "ds", file: "ds/sub-01/a_events.tsv", want: "ds/sub-01/a_events.tsv"},
		{name: "sibling_with_root_prefix", root: "ds", file: "ds2/sub-01/a_events.tsv", want: filepath.Join("ds", "ds2", "sub-01", "a_events.tsv")},
		{name: "absolute_root", root: abs, file: "sub-01/a_events.tsv", want: filepath.Join(abs, "sub-01", "a_events.tsv")},
		{name: "absolute_file", root: "ds", file: filepath.Join(abs, "x_events.tsv"), want: filepath.Join(abs, "x_events.tsv")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, rootedPath(tc.root, tc.file))
		})
	}
}

func TestStore_IndexSummarizeQuery(t *testing.T) {
	root := dataset(t)
	store := []string{"-d", root, "--storage-kind", "sqlite", "--storage-dsn", filepath.Join(t.TempDir(), "index.db")}

	_, _, err := run(t, append([]string{"index"}, store...)...)
	require.NoError(t, err)
	_, _, err = run(t, append([]string{"summarize", "--format", "rows"}, store...)...)
	require.NoError(t, err)

	out, _, err := run(t, append([]string{"query", "files", "task", "go"}, store...)...)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "sub-01_task-go\t"))
	assert.True(t, strings.HasSuffix(lines[0], "\tsub=01,task=go"))

	out, _, err = run(t, append([]string{"query", "files", "sub", "02"}, store...)...)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))

	out, _, err = run(t, append([]string{"query", "values", "trial_type"}, store...)...)
	require.NoError(t, err)
	assert.Equal(t,
		"trial_type\tcategorical\tgo\t2\t2\n"+
			"trial_type\tcategorical\tstop\t1\t1\n",
		out)
}

func TestQuery_RequiresStore(t *testing.T) {
	root := dataset(t)
	_, _, err := run(t, "query", "values", "-d", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index store configured")
}

func TestMetrics_PushgatewayReceivesRun(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	root := dataset(t)
	_, _, err := run(t, "index", "-d", root, "--metrics-backend", "pushgateway", "--pushgateway-url", srv.URL)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"PUT /metrics/job/bidsevents"}, paths)
}

func TestConfig_PrintsEffectiveSettings(t *testing.T) {
	root := dataset(t)
	out, _, err := run(t, "config", "-d", root, "--storage-kind", "sqlite", "--storage-dsn", "x.db")
	require.NoError(t, err)
	assert.Contains(t, out, "root: "+root)
	assert.Contains(t, out, "kind: sqlite")
	assert.Contains(t, out, "suffix: events")
}
