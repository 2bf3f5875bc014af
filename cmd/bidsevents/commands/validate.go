package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"bidsevents/internal/errors"
	"bidsevents/internal/sidecar"
	"bidsevents/internal/validator"
)

func (a *app) validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check sidecars and event files",
		Long: `Validate reads HEDVersion from dataset_description.json, checks every
sidecar document on its own, then checks every event file against its
effective sidecar.

One line is printed per issue, followed by a count. The command fails when
any error-severity issue is found. Warnings are only reported with
--check-warnings and never fail the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds := a.cfg.Dataset
			resolver := sidecar.New(ds.Root, sidecar.WithLogger(a.log.Named("sidecar")))
			v := validator.New(validator.Dataset{
				Root:        ds.Root,
				Suffix:      ds.Suffix,
				Extensions:  ds.Extensions,
				ExcludeDirs: ds.ExcludeDirs,
			}, validator.Options{
				Reader:   a.reader(),
				Resolver: resolver,
				Logger:   a.log.Named("validator"),
			})

			vc := a.cfg.Validate
			issues, err := v.Validate(cmd.Context(), vc.CheckForWarnings)
			if err != nil {
				return err
			}
			st := resolver.Stats()
			a.log.Debugw("sidecar cache", "resolved", st.Resolved, "chain_hits", st.ChainHits, "docs_read", st.DocsRead, "dirs_read", st.DirsRead)

			out := cmd.OutOrStdout()
			for _, line := range validator.FormatIssues(issues, vc.SkipFilename) {
				fmt.Fprintln(out, line)
			}
			s := validator.Summarize(issues)
			fmt.Fprintf(out, "%d errors, %d warnings in %d files\n", s.Errors, s.Warnings, len(s.Files))
			if s.Errors > 0 {
				return errors.Newf("validation failed with %d errors", s.Errors)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.Bool("check-warnings", false, "report warning-severity issues too")
	f.Bool("skip-filename", false, "leave the file name out of issue lines")
	bindFlag(cmd, "check-warnings", "validate.check_for_warnings")
	bindFlag(cmd, "skip-filename", "validate.skip_filename")
	return cmd
}
