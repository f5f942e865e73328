// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/procdrive/procdrive/pkg/command"

	"github.com/spf13/cobra"
)

func newTokenizeCommand(app *App) *cobra.Command {
	var shell bool

	cmd := &cobra.Command{
		Use:   "tokenize <line>",
		Short: "Show how a command line is split into tokens",
		Long: `Show how a command line is split into program and arguments.

Whitespace outside double quotes separates tokens. A double-quoted span is a
single token with the quotes removed. Variables are not expanded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := command.NewBuilder().AddTokenized(args[0]).Build()
			if shell {
				fmt.Fprintln(app.stdout, c.String())
				return nil
			}
			for i, tok := range c.Tokens() {
				fmt.Fprintf(app.stdout, "%s %q\n", SubtitleStyle.Render(fmt.Sprintf("%d", i)), tok)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&shell, "shell", false, "print the tokens as a shell-quoted line")
	return cmd
}
