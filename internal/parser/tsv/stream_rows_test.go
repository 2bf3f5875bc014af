package tsv

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidsevents/internal/config"
)

// closeTracker records whether StreamRows released its source.
type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestRead_Basic(t *testing.T) {
	in := "onset\tduration\ttrial_type\n0.5\t1\tgo\n1.5\t1\tstop\n"
	tbl, err := Read(context.Background(), strings.NewReader(in), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"onset", "duration", "trial_type"}, tbl.Columns)
	assert.Equal(t, [][]string{{"0.5", "1", "go"}, {"1.5", "1", "stop"}}, tbl.Rows)
	assert.Equal(t, []string{"go", "stop"}, tbl.Column("trial_type"))
	assert.Nil(t, tbl.Column("missing"))
	assert.Empty(t, tbl.RowErrors)
}

func TestRead_UTF8BOMStripped(t *testing.T) {
	in := "\ufeffonset\tvalue\n1\ta\n"
	tbl, err := Read(context.Background(), strings.NewReader(in), nil)
	require.NoError(t, err)
	assert.Equal(t, "onset", tbl.Columns[0])
}

func TestRead_UTF16LEWithBOM(t *testing.T) {
	text := "onset\tvalue\n1\tb\n"
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFE})
	for _, r := range text {
		buf.WriteByte(byte(r))
		buf.WriteByte(0)
	}

	tbl, err := Read(context.Background(), &buf, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"onset", "value"}, tbl.Columns)
	assert.Equal(t, [][]string{{"1", "b"}}, tbl.Rows)
}

// TestRead_NFCNormalization verifies decomposed and precomposed forms of
// the same text become one value.
func TestRead_NFCNormalization(t *testing.T) {
	in := "word\ncafe\u0301\ncaf\u00e9\n"
	tbl, err := Read(context.Background(), strings.NewReader(in), nil)
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, tbl.Rows[0][0], tbl.Rows[1][0])

	raw, err := Read(context.Background(), strings.NewReader(in), config.Options{"normalize": false})
	require.NoError(t, err)
	assert.NotEqual(t, raw.Rows[0][0], raw.Rows[1][0])
}

func TestRead_RaggedRowsPaddedAndReported(t *testing.T) {
	in := "a\tb\tc\n1\t2\n1\t2\t3\t4\n"
	tbl, err := Read(context.Background(), strings.NewReader(in), nil)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"1", "2", ""}, {"1", "2", "3"}}, tbl.Rows)
	require.Len(t, tbl.RowErrors, 2)
	assert.Equal(t, 2, tbl.RowErrors[0].Line)
	assert.Equal(t, 3, tbl.RowErrors[1].Line)
}

// TestRead_QuotesAreLiteral checks an unpaired quote stays in its cell and
// does not join the following lines.
func TestRead_QuotesAreLiteral(t *testing.T) {
	in := "onset\tresponse\n1\t\"oops\n2\tleft\n\n3\t\"right\"\r\n"
	tbl, err := Read(context.Background(), strings.NewReader(in), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"\"oops", "left", "\"right\""}, tbl.Column("response"))
	assert.Empty(t, tbl.RowErrors)

	var lines []int
	err = StreamRows(context.Background(), io.NopCloser(strings.NewReader(in)), nil, nil,
		func(line int, _ []string) error {
			lines = append(lines, line)
			return nil
		}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 5}, lines)
}

func TestTable_ColumnShortRows(t *testing.T) {
	tbl := &Table{Columns: []string{"onset", "trial_type"}, Rows: [][]string{{"1"}, {"2", "go"}}}
	assert.Equal(t, []string{"", "go"}, tbl.Column("trial_type"))
}

func TestRead_TrimAndHeaderMap(t *testing.T) {
	in := " Onset \t resp \n 1 \t left \n"
	tbl, err := Read(context.Background(), strings.NewReader(in), config.Options{
		"header_map": map[string]any{"Onset": "onset"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"onset", "resp"}, tbl.Columns)
	assert.Equal(t, [][]string{{"1", "left"}}, tbl.Rows)
}

func TestRead_EmptyFileIsError(t *testing.T) {
	_, err := Read(context.Background(), strings.NewReader(""), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read header")
}

func TestStreamRows_ClosesSourceOnEveryPath(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		onRow   RowFunc
		wantErr bool
	}{
		{name: "ok", in: "a\n1\n"},
		{name: "empty", in: "", wantErr: true},
		{
			name: "callback_error",
			in:   "a\n1\n2\n",
			onRow: func(int, []string) error {
				return io.ErrUnexpectedEOF
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := &closeTracker{Reader: strings.NewReader(tc.in)}
			err := StreamRows(context.Background(), src, nil, nil, tc.onRow, nil)
			assert.Equal(t, tc.wantErr, err != nil)
			assert.True(t, src.closed)
		})
	}
}

func TestStreamRows_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &closeTracker{Reader: strings.NewReader("a\n1\n")}
	err := StreamRows(ctx, src, nil, nil, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, src.closed)
}

func TestReadFile_AndStream(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub-01_events.tsv")
	require.NoError(t, os.WriteFile(path, []byte("onset\tx\n1\ty\n"), 0o644))

	tbl, err := ReadFile(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, len(tbl.Rows))

	var rows int
	err = Stream(context.Background(), FileReader{}, path, nil, func(int, []string) error {
		rows++
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	_, err = ReadFile(context.Background(), filepath.Join(dir, "missing.tsv"), nil)
	require.Error(t, err)
}
