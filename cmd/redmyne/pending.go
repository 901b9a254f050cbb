package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

func newPendingCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List queued operations in apply order",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.bootstrap(cmd.Context(), cliSource)
			if err != nil {
				return err
			}
			defer rt.shutdown()

			ops := rt.service.Pending()
			if len(ops) == 0 {
				_, _ = fmt.Fprintln(color.Output, "queue is empty")
				return nil
			}

			bold := color.New(color.Bold)
			tbl := uitable.New()
			tbl.Separator = "  "
			tbl.AddRow(bold.Sprint("#"), bold.Sprint("Type"), bold.Sprint("Queued"), bold.Sprint("Operation"))
			for i, op := range ops {
				tbl.AddRow(i+1, string(op.Type), op.Timestamp.Format("2006-01-02 15:04"), op.Description)
			}
			_, _ = fmt.Fprintln(color.Output, tbl)
			return nil
		},
	}
}
