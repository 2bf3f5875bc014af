package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"bidsevents/internal/fileindex"
	"bidsevents/internal/storage"
)

func (a *app) indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "List event files by their entity key",
		Long: `Index discovers the dataset's event files and prints one line per
indexed file: the composite entity key and the path relative to the root.
With --details each file is read and its row count and columns follow.

Files whose names carry no usable entities and files that lose a key
collision are reported as warnings. With --strict a collision fails the run.
When a store is configured the index replaces the dataset's stored index.`,
		Args: cobra.NoArgs,
		RunE: a.runIndex,
	}
	f := cmd.Flags()
	f.StringSlice("entities", nil, "ordered entity tuple for keys (default sub,ses,task,acq,run)")
	f.Bool("strict", false, "fail on duplicate keys")
	f.String("split-by", "", "group the listing by the value of this entity")
	f.Bool("details", false, "also read each file and print its row count and columns")
	bindFlag(cmd, "entities", "index.entities")
	bindFlag(cmd, "strict", "index.strict")
	bindFlag(cmd, "split-by", "index.split_by")
	return cmd
}

func (a *app) runIndex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	ix, rep, err := a.buildIndex()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	details, _ := cmd.Flags().GetBool("details")
	switch {
	case details:
		for fi, err := range ix.Iter(ctx, a.reader()) {
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				a.log.Warnw("file not readable", "path", fi.Path, "error", err)
				fmt.Fprintf(out, "%s\t%s\t-\t-\n", fi.Key, a.rel(fi.Path))
				continue
			}
			fmt.Fprintf(out, "%s\t%s\t%d\t%s\n", fi.Key, a.rel(fi.Path), fi.RowCount, strings.Join(fi.Columns, ","))
		}
	case a.cfg.Index.SplitBy != "":
		a.printSplit(out, ix, a.cfg.Index.SplitBy)
	default:
		a.printRecords(out, ix, "")
	}
	if !rep.Clean() {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d files indexed, %d malformed, %d duplicate\n",
			ix.Len(), len(rep.Malformed), len(rep.Duplicates))
	}

	repo, err := a.openStore(ctx)
	if err != nil || repo == nil {
		return err
	}
	n, err := repo.SaveIndex(ctx, a.cfg.Dataset.Name, storage.FileRowsFromIndex(ix))
	if err != nil {
		return err
	}
	a.log.Infow("index stored", "dataset", a.cfg.Dataset.Name, "kind", a.cfg.Storage.Kind, "files", n)
	return nil
}

func (a *app) printRecords(w io.Writer, ix *fileindex.Index, indent string) {
	for _, r := range ix.Records() {
		fmt.Fprintf(w, "%s%s\t%s\n", indent, r.Key, a.rel(r.Path))
	}
}

func (a *app) printSplit(w io.Writer, ix *fileindex.Index, entity string) {
	parts, leftover := ix.SplitByEntity(entity)
	for _, v := range slices.Sorted(maps.Keys(parts)) {
		p := parts[v]
		fmt.Fprintf(w, "%s=%s\t%d files\n", entity, v, p.Len())
		a.printRecords(w, p, "  ")
	}
	if leftover.Len() > 0 {
		fmt.Fprintf(w, "no %s\t%d files\n", entity, leftover.Len())
		a.printRecords(w, leftover, "  ")
	}
}
