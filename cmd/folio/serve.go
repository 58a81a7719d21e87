package main

import (
	"github.com/spf13/cobra"

	_ "github.com/jackzampolin/folio/docs/swagger"
	"github.com/jackzampolin/folio/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Folio server",
	Long: `Start the Folio HTTP server.

The server holds the backend credentials and exposes the generation API:
  - POST /api/generate/concepts - Write spread concepts for a topic
  - POST /api/generate/style    - Write a style guide
  - POST /api/images/start      - Submit image jobs
  - POST /api/images/check      - Poll image jobs once

Backends and models come from config.yaml and are reloaded when it changes.

Examples:
  folio serve                    # Start on the configured address
  folio serve --port 3000        # Start on custom port
  folio serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		_, mgr, err := loadConfig(logger)
		if err != nil {
			return err
		}

		cfg := mgr.Get()
		host, port := cfg.Server.Host, cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			ConfigManager: mgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to (overrides server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on (overrides server.port)")

	rootCmd.AddCommand(serveCmd)
}
