package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newDiscardCmd(a *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "discard",
		Short: "Drop every queued operation",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.bootstrap(cmd.Context(), cliSource)
			if err != nil {
				return err
			}
			defer rt.shutdown()

			pending := len(rt.service.Pending())
			if pending == 0 {
				_, _ = fmt.Fprintln(color.Output, "queue is empty")
				return nil
			}
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
					fmt.Sprintf("Drop %d queued operation(s)? [y/N]: ", pending))
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(color.Output, "aborted")
					return nil
				}
			}

			dropped := rt.service.DiscardAll()
			_, _ = fmt.Fprintf(color.Output, "dropped %d operation(s)\n", dropped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	return cmd
}

// confirm reads one y/n answer, defaulting to no.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	if _, err := fmt.Fprint(out, prompt); err != nil {
		return false, fmt.Errorf("write prompt: %w", err)
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
