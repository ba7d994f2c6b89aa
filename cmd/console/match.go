package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"saykit-agent/internal/model"
)

func newMatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "match <text>",
		Short: "Show which command a phrase resolves to, without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			a, m, err := opts.openSession(cmd.Context(), out)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := m.Dispatcher().Resolve(cmd.Context(), strings.Join(args, " "))
			for _, d := range res.Discarded {
				fmt.Fprintf(out, "%s %v\n", color.YellowString("discarded:"), d)
			}
			if errors.Is(err, model.ErrNoMatch) {
				fmt.Fprintln(out, "no match")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s (%s", color.GreenString("✓"), res.Command.Type(), res.Command.Confidence())
			if res.Fallback {
				fmt.Fprint(out, ", via llm")
			}
			fmt.Fprintln(out, ")")
			for _, p := range res.Command.Params() {
				fmt.Fprintf(out, "  %s = %q\n", p.Name, p.Value)
			}
			return nil
		},
	}
}
