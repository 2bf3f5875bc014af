package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"bidsevents/internal/errors"
	"bidsevents/internal/template"
)

func (a *app) templateCmd() *cobra.Command {
	var (
		format string
		output string
		opts   template.Options
	)
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write an annotation sidecar skeleton",
		Long: `Template summarizes the dataset and writes a sidecar skeleton with a
placeholder Description for every column, and a HED and Levels entry for
every categorical value. Continuous columns get a single "#" HED string.

The skeleton is meant to be edited and saved as the top-level
*_events.json of the dataset.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "json" && format != "yaml" {
				return errors.WithHint(errors.Newf("unknown template format %q", format), "use json or yaml")
			}
			ix, _, err := a.buildIndex()
			if err != nil {
				return err
			}
			c, err := a.summarize(cmd.Context(), ix)
			if err != nil {
				return err
			}
			doc := template.Extract(c.Summary, opts)

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return errors.Wrapf(err, "create %s", output)
				}
				defer f.Close()
				w = f
			}
			if format == "yaml" {
				err = doc.WriteYAML(w)
			} else {
				err = doc.WriteJSON(w)
			}
			if err != nil {
				return errors.Wrap(err, "write template")
			}
			a.log.Infow("template written", "columns", len(doc.Columns()), "output", output)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&format, "format", "json", "output format (json, yaml)")
	f.StringVarP(&output, "output", "o", "", "output file (default stdout)")
	f.StringVar(&opts.Description, "description", "", "Description placeholder, %s is the column")
	f.StringVar(&opts.Level, "level", "", "Levels placeholder, %s the value then %s the column")
	f.StringVar(&opts.HED, "hed", "", "HED placeholder, %s the column then %s the value")
	f.StringSlice("skip-columns", nil, "columns to ignore (default onset,duration,sample)")
	f.StringSlice("value-columns", nil, "columns to treat as continuous")
	bindFlag(cmd, "skip-columns", "summary.skip_columns")
	bindFlag(cmd, "value-columns", "summary.value_columns")
	return cmd
}
