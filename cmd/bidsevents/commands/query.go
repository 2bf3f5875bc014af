package commands

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"bidsevents/internal/summary"
)

func (a *app) queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Read a previously stored index",
		Long: `Query reads what index and summarize stored for the dataset. It needs
storage.kind and storage.dsn and does not touch the dataset files.`,
	}
	cmd.AddCommand(a.queryFilesCmd(), a.queryValuesCmd())
	return cmd
}

func (a *app) queryFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files ENTITY VALUE",
		Short: "List stored files whose ENTITY is VALUE",
		Example: `  bidsevents query files task go --storage-kind sqlite --storage-dsn file:index.db
  bidsevents query files sub 01`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := a.requireStore(ctx)
			if err != nil {
				return err
			}
			rows, err := repo.FindByEntity(ctx, a.cfg.Dataset.Name, args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range rows {
				pairs := make([]string, 0, len(r.Entities))
				for _, k := range slices.Sorted(maps.Keys(r.Entities)) {
					pairs = append(pairs, k+"="+r.Entities[k])
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", r.Key, r.Path, strings.Join(pairs, ","))
			}
			a.log.Infow("query finished", "entity", args[0], "value", args[1], "files", len(rows))
			return nil
		},
	}
}

func (a *app) queryValuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "values [COLUMN]",
		Short: "List stored column values, of one column or of all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := a.requireStore(ctx)
			if err != nil {
				return err
			}
			var column string
			if len(args) == 1 {
				column = args[0]
			}
			rows, err := repo.ColumnValues(ctx, a.cfg.Dataset.Name, column)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range rows {
				value := r.Value
				if r.Kind == summary.KindContinuous {
					value = "-"
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%d\t%d\n", r.Column, r.Kind, value, r.TotalCount, r.FileCount)
			}
			return nil
		},
	}
}
