package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newCommitCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "Apply queued operations to the remote server",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.bootstrap(cmd.Context(), cliSource)
			if err != nil {
				return err
			}
			defer rt.shutdown()
			if err := rt.requireRemote(); err != nil {
				return err
			}

			report, err := rt.service.Commit(cmd.Context())
			if err != nil {
				return err
			}
			if report.Attempted == 0 {
				_, _ = fmt.Fprintln(color.Output, "queue is empty")
				return nil
			}

			_, _ = fmt.Fprintln(color.Output, color.GreenString("applied %d of %d operation(s)", report.Applied, report.Attempted))
			if len(report.Failed) == 0 {
				return nil
			}
			for _, failure := range report.Failed {
				_, _ = fmt.Fprintln(color.Output, color.RedString("failed: %s: %v", failure.Description, failure.Err))
			}
			return fmt.Errorf("%d operation(s) failed and stay queued", len(report.Failed))
		},
	}
}
