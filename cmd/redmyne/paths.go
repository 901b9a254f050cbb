package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vrognas/redmyne/internal/platform"
)

func newPathsCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := platform.DefaultPathsWithOptions(platform.Options{
				AppName: appName,
				DevMode: a.DevMode,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", a.DevMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "store_dir: %s\n", paths.StoreDir)
			return nil
		},
	}
}
