package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vrognas/redmyne/internal/adapters/server"
)

func newServeCmd(a *App) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local bridge and MCP endpoints over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.bootstrap(cmd.Context(), serveSource)
			if err != nil {
				return err
			}
			defer rt.shutdown()
			if err := rt.requireRemote(); err != nil {
				return err
			}

			// Persist the queue on every change, not only at shutdown, so
			// edits made over the bridge or MCP survive a crash. The save
			// runs on a background context for the same reason shutdown's
			// does.
			rt.queue.Subscribe("queue-persist", func(source string) {
				if err := rt.service.SaveQueue(context.Background()); err != nil {
					rt.logger.Error("save queued operations failed", "source", source, "err", err)
				}
			})

			if strings.TrimSpace(bind) != "" {
				rt.cfg.Server.Bind = bind
			}
			rt.logger.Info("serving",
				"bind", rt.cfg.Server.Bind,
				"api_endpoint", rt.cfg.Server.APIEndpoint,
				"mcp_endpoint", rt.cfg.Server.MCPEndpoint)

			return server.Run(cmd.Context(), server.Config{
				HTTPBind:      rt.cfg.Server.Bind,
				APIEndpoint:   rt.cfg.Server.APIEndpoint,
				MCPEndpoint:   rt.cfg.Server.MCPEndpoint,
				ServerName:    appName,
				ServerVersion: version,
			}, server.Dependencies{Timesheet: rt.service})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "listen address (host:port, overrides [server].bind)")
	return cmd
}
