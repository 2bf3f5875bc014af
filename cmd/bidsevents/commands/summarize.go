package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"bidsevents/internal/errors"
	"bidsevents/internal/storage"
	"bidsevents/internal/summary"
)

func (a *app) summarizeCmd() *cobra.Command {
	var (
		format  string
		perFile bool
		suggest float64
	)
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Aggregate column values across files",
		Long: `Summarize reads every indexed event file and aggregates its columns.

Columns listed as value columns are continuous: only their row and file
counts are kept. Every other
column is categorical and keeps its distinct values with per-value row and
file counts. Skipped columns are ignored entirely.

Formats:
  report  - cardinality table, lowest distinct/rows ratio first
  rows    - one tab-separated row per stored value:
            column, kind, value, rows, files

--suggest lists categorical columns that look like value columns.

When a store is configured the summary replaces the dataset's stored one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ix, _, err := a.buildIndex()
			if err != nil {
				return err
			}
			c, err := a.summarize(ctx, ix)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if perFile {
				for _, name := range slices.Sorted(maps.Keys(c.PerFile)) {
					fmt.Fprintf(out, "# %s\n", name)
					if err := writeSummary(out, c.PerFile[name], format); err != nil {
						return err
					}
				}
				fmt.Fprintln(out, "# combined")
			}
			if err := writeSummary(out, c.Summary, format); err != nil {
				return err
			}
			if cmd.Flags().Changed("suggest") {
				for _, sg := range summary.SuggestValueColumns(c.Summary, suggest) {
					fmt.Fprintf(cmd.ErrOrStderr(), "suggest value column %s: %d distinct numeric values in %d rows (%.1f%%)\n",
						sg.Column, sg.Distinct, sg.Rows, sg.Ratio*100)
				}
			}

			repo, err := a.openStore(ctx)
			if err != nil || repo == nil {
				return err
			}
			n, err := repo.SaveSummary(ctx, a.cfg.Dataset.Name, storage.ColumnRowsFromSummary(c.Summary))
			if err != nil {
				return err
			}
			a.log.Infow("summary stored", "dataset", a.cfg.Dataset.Name, "kind", a.cfg.Storage.Kind, "rows", n)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&format, "format", "report", "output format (report, rows)")
	f.BoolVar(&perFile, "per-file", false, "also print each file's own summary")
	f.Float64Var(&suggest, "suggest", summary.DefaultSuggestRatio, "print numeric columns whose distinct/rows ratio exceeds this as value column candidates")
	f.Lookup("suggest").NoOptDefVal = strconv.FormatFloat(summary.DefaultSuggestRatio, 'g', -1, 64)
	f.StringSlice("skip-columns", nil, "columns to ignore (default onset,duration,sample)")
	f.StringSlice("value-columns", nil, "columns to treat as continuous")
	f.Int("workers", 0, "files summarized concurrently (0 means one per CPU)")
	bindFlag(cmd, "skip-columns", "summary.skip_columns")
	bindFlag(cmd, "value-columns", "summary.value_columns")
	bindFlag(cmd, "workers", "summary.workers")
	return cmd
}

func writeSummary(w io.Writer, s *summary.DatasetSummary, format string) error {
	switch format {
	case "report":
		_, err := fmt.Fprintln(w, s.Report())
		return err
	case "rows":
		for _, r := range storage.ColumnRowsFromSummary(s) {
			value := r.Value
			if r.Kind == summary.KindContinuous {
				value = "-"
			}
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", r.Column, r.Kind, value, r.TotalCount, r.FileCount); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.WithHint(errors.Newf("unknown summary format %q", format), "use report or rows")
	}
}
