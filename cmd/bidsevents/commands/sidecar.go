package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"bidsevents/internal/errors"
	pjson "bidsevents/internal/parser/json"
	"bidsevents/internal/sidecar"
)

func (a *app) sidecarCmd() *cobra.Command {
	var trace bool
	cmd := &cobra.Command{
		Use:   "sidecar FILE",
		Short: "Show the effective sidecar of one file",
		Long: `Sidecar resolves the metadata that applies to FILE by walking from the
dataset root down to the file's directory, picking the most specific
matching *_events.json at each level and merging them, closer levels
overriding farther ones.

FILE may be absolute or relative to the dataset root. The merged document
is printed as JSON; --trace lists the walk first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := a.cfg.Dataset.Root
			file := rootedPath(root, args[0])

			r := sidecar.New(root, sidecar.WithLogger(a.log.Named("sidecar")))
			res, err := r.Resolve(file)
			if err != nil {
				return errors.Wrapf(err, "resolve %s", args[0])
			}

			out := cmd.OutOrStdout()
			if trace {
				for _, st := range res.Trace {
					doc := st.Document
					if doc == "" {
						doc = "-"
					} else {
						doc = a.rel(doc)
					}
					line := fmt.Sprintf("# %-10s %-20s %s", st.State, st.Dir, doc)
					if st.Err != nil {
						line += " (" + st.Err.Error() + ")"
					}
					fmt.Fprintln(out, line)
				}
			}
			for _, amb := range res.Ambiguities {
				a.log.Warnw("ambiguous sidecar candidates", "dir", amb.Dir, "chosen", amb.Chosen, "others", amb.Others)
			}
			for _, e := range res.Errors {
				a.log.Warnw("sidecar skipped", "error", e)
			}
			return pjson.Encode(out, res.Sidecar)
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "print the resolution walk before the document")
	return cmd
}

// rootedPath joins a relative file onto root unless it already names a path
// inside root.
func rootedPath(root, file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	rel, err := filepath.Rel(root, file)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return file
	}
	return filepath.Join(root, file)
}
