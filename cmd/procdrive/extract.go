// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/procdrive/procdrive/internal/archive"
	"github.com/procdrive/procdrive/internal/issue"

	"github.com/spf13/cobra"
)

func newExtractCommand(app *App) *cobra.Command {
	var (
		cutDirs bool
		remaps  []string
	)

	cmd := &cobra.Command{
		Use:   "extract <archive> <destination>",
		Short: "Extract a zip or tar archive",
		Long: `Extract a .zip, .tar, .tar.gz or .tar.zst archive into a directory.

Entry names can be rewritten before extraction. --cut-dirs drops the leading
directory of every entry; --remap applies a regular expression replacement
(PATTERN=>REPLACEMENT, repeatable, applied in order). Entries rewritten to an
empty name are skipped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x := archive.NewExtractor(args[1]).WithLogger(app.logger)
			if cutDirs {
				x.CutDirs()
			}
			for _, raw := range remaps {
				pattern, replacement, err := splitRule(raw)
				if err != nil {
					return fmt.Errorf("--remap %q: %w", raw, err)
				}
				x.Remap(pattern, replacement)
			}

			dest, err := x.Extract(cmd.Context(), args[0])
			if err != nil {
				err = extractError(err, args[0])
				app.explain(err)
				return err
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("Extracted to ")+dest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cutDirs, "cut-dirs", false, "drop the leading directory of every entry")
	cmd.Flags().StringArrayVar(&remaps, "remap", nil, "rewrite entry names (PATTERN=>REPLACEMENT, repeatable)")
	return cmd
}

func extractError(err error, src string) error {
	ctx := issue.NewErrorContext().
		WithOperation("extract archive").
		WithResource(src).
		WithIssue(issue.ArchiveExtractFailedId).
		Wrap(err)
	switch {
	case errors.Is(err, archive.ErrUnsupportedFormat):
		ctx.WithSuggestion("Supported formats are .zip, .jar, .tar, .tar.gz, .tgz, .tar.zst and .tzst")
	case errors.Is(err, archive.ErrUnsafePath):
		ctx.WithSuggestion("The archive contains entries outside the destination; it may be malicious")
	case errors.Is(err, archive.ErrReservedName):
		ctx.WithSuggestion("Rename the entry with --remap; Windows reserves names like CON, NUL and AUX")
	case errors.Is(err, archive.ErrInvalidRemap):
		ctx.WithSuggestion("Check the --remap patterns; they are Go regular expressions")
	}
	return ctx.BuildError()
}
