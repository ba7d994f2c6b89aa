package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"saykit-agent/internal/model"
	"saykit-agent/internal/service/conversation"
)

const consoleHelp = `Type what you would say. Console commands:
  :listen      present the "what would you like to do" request
  :choose N    answer the active select request with option N (from 0)
  :cancel      cancel the active request
  :fail        report a recognition failure
  :status      show session state
  :quit        leave`

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start an interactive session reading utterances from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			a, m, err := opts.openSession(ctx, out)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintln(out, color.CyanString("session %s", m.ID()))
			fmt.Fprintln(out, consoleHelp)
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == ":quit" {
					return nil
				}
				if err := handleLine(cmd, m, line); err != nil {
					fmt.Fprintf(out, "%s %v\n", color.RedString("✗"), err)
				}
			}
		},
	}
}

func handleLine(cmd *cobra.Command, m *conversation.Manager, line string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	switch {
	case line == ":listen":
		_, err := m.Listen(ctx)
		return err
	case strings.HasPrefix(line, ":choose"):
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, ":choose")))
		if err != nil {
			return fmt.Errorf("usage: :choose N")
		}
		outcome, err := m.Choose(ctx, n)
		if err != nil {
			return err
		}
		printOutcome(out, &outcome)
		return nil
	case line == ":cancel":
		return m.Cancel(ctx)
	case line == ":fail":
		return m.Fail(ctx, "reported from console")
	case line == ":status":
		printStatus(out, m.Status())
		return nil
	case strings.HasPrefix(line, ":"):
		return fmt.Errorf("unknown console command %s", line)
	}

	resp, err := m.HandleText(ctx, line)
	if err != nil {
		if errors.Is(err, model.ErrNoMatch) {
			fmt.Fprintln(out, color.YellowString("(no match)"))
			return nil
		}
		return err
	}
	if resp.Command != nil {
		fmt.Fprintf(out, "%s %s\n", color.GreenString("✓"), resp.Command.String())
	}
	printOutcome(out, resp.Outcome)
	return nil
}

func printOutcome(out io.Writer, o *model.TurnOutcome) {
	if o == nil {
		return
	}
	switch {
	case o.Error != "":
		fmt.Fprintf(out, "%s %s request failed: %s\n", color.RedString("✗"), o.Kind, o.Error)
	case o.Reprompted:
		fmt.Fprintln(out, color.YellowString("(asking again)"))
	case o.Terminal:
		fmt.Fprintf(out, "%s %s request done\n", color.GreenString("✓"), o.Kind)
	}
}

func printStatus(out io.Writer, st model.SessionStatus) {
	fmt.Fprintf(out, "state: %s\n", st.RequestState)
	if st.ActiveRequest != "" {
		fmt.Fprintf(out, "active: %s (%s), queued: %d\n", st.ActiveRequest, st.ActiveKind, st.QueuedCount)
	}
	fmt.Fprintf(out, "commands: %s\n", strings.Join(st.Commands, ", "))
	if st.LastResult != nil {
		fmt.Fprintf(out, "last result: %s %v %s\n", st.LastResult.Kind, st.LastResult.Value, st.LastResult.Error)
	}
}
