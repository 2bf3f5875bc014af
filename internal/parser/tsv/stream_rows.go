// Package tsv reads tab-separated tabular files with a header row.
//
// The reader decodes UTF-8 (with or without BOM) and BOM-marked UTF-16,
// normalizes text to NFC so visually identical values count as one, and
// streams records to a callback so column statistics can be folded without
// materializing whole files. Read/ReadFile materialize a Table for callers
// that need random access (validation).
package tsv

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode"

	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"bidsevents/internal/config"
	"bidsevents/internal/errors"
)

// RowFunc receives one data record. line is the 1-based physical line
// number (the header is line 1). rec is only valid for the duration of the
// call; it is reused for the next record.
type RowFunc func(line int, rec []string) error

// decodeReader wraps r with BOM sniffing and, optionally, NFC normalization.
func decodeReader(r io.Reader, normalize bool) io.Reader {
	dec := xunicode.BOMOverride(xunicode.UTF8.NewDecoder())
	if normalize {
		return transform.NewReader(r, transform.Chain(dec, norm.NFC))
	}
	return transform.NewReader(r, dec)
}

// StreamRows reads a header and then every record of src, calling onHeader
// once and onRow per record.
//
// Options (all optional):
//   - comma (rune, default '\t')
//   - trim_space (bool, default true): trim cells and header names
//   - normalize (bool, default true): NFC-normalize text
//   - header_map (map): rename header names before onHeader sees them
//
// Every line is one record and cells are split on comma alone. Quote
// characters carry no meaning and are kept as cell text.
//
// Edge cases:
//   - Blank lines are skipped.
//   - Records shorter than the header are padded with "", longer ones are
//     truncated; both are reported to onErr and still delivered.
//   - An empty source (no header) is an error.
//
// StreamRows always closes src, on every return path.
//
// Errors:
//   - Header or source read failure, ctx cancellation, or the first error
//     returned by onHeader/onRow.
func StreamRows(
	ctx context.Context,
	src io.ReadCloser,
	opt config.Options,
	onHeader func(columns []string) error,
	onRow RowFunc,
	onErr func(line int, err error),
) error {
	defer src.Close()

	trim := opt.Bool("trim_space", true)
	hm := opt.StringMap("header_map")

	br := bufio.NewReader(decodeReader(src, opt.Bool("normalize", true)))
	comma := string(opt.Rune("comma", '\t'))

	var line int
	readRec := func() ([]string, error) {
		for {
			s, err := br.ReadString('\n')
			if err != nil && (err != io.EOF || s == "") {
				return nil, err
			}
			line++
			s = strings.TrimRight(s, "\r\n")
			if s == "" {
				continue
			}
			return strings.Split(s, comma), nil
		}
	}

	hdr, err := readRec()
	if err != nil {
		if err == io.EOF {
			err = errors.New("empty file: missing header row")
		}
		if onErr != nil {
			onErr(line, fmt.Errorf("read header: %w", err))
		}
		return errors.Wrap(err, "read header")
	}

	columns := make([]string, len(hdr))
	for i, h := range hdr {
		if trim && hasEdgeSpace(h) {
			h = strings.TrimSpace(h)
		}
		if mapped, ok := hm[h]; ok {
			h = mapped
		}
		columns[i] = h
	}
	if onHeader != nil {
		if err := onHeader(columns); err != nil {
			return err
		}
	}

	rec := make([]string, len(columns))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		raw, err := readRec()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read line %d", line+1)
		}

		if len(raw) != len(columns) && onErr != nil {
			onErr(line, fmt.Errorf("row has %d fields, header has %d", len(raw), len(columns)))
		}
		for i := range rec {
			v := ""
			if i < len(raw) {
				v = raw[i]
			}
			if trim && hasEdgeSpace(v) {
				v = strings.TrimSpace(v)
			}
			rec[i] = v
		}
		if onRow != nil {
			if err := onRow(line, rec); err != nil {
				return err
			}
		}
	}
}

func hasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return unicode.IsSpace(rune(s[0])) || unicode.IsSpace(rune(s[len(s)-1]))
}
