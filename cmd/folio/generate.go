package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/internal/book"
	"github.com/jackzampolin/folio/internal/generation"
	"github.com/jackzampolin/folio/internal/session"
)

var (
	genTopic   string
	genCount   int
	genQuality string
	genServer  string
	genSave    bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [topic]",
	Short: "Generate an illustrated book against a running server",
	Long: `Generate runs one full book against a running Folio server: concepts,
style guide, image submission, then polling until every spread has an
image or has failed.

Progress is logged to stderr. The finished book is printed to stdout and,
with --save, written to {home}/books/<topic>.json.

Examples:
  folio generate volcanoes
  folio generate --topic "deep sea creatures" --count 6 --quality high --save`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic := genTopic
		if len(args) > 0 {
			topic = args[0]
		}
		if strings.TrimSpace(topic) == "" {
			return fmt.Errorf("topic is required")
		}

		logger := newLogger()
		h, mgr, err := loadConfig(logger)
		if err != nil {
			return err
		}

		url := genServer
		if !cmd.Flags().Changed("server") {
			srv := mgr.Get().Server
			url = fmt.Sprintf("http://%s:%s", srv.Host, srv.Port)
		}

		backend := api.NewGenerationClient(api.NewClient(url))
		s := session.New(backend, nil, session.Options{
			Count:        genCount,
			Quality:      generation.Quality(genQuality),
			PollInterval: mgr.Get().Client.PollInterval,
			OnUpdate: func(st book.State) {
				c := st.Count()
				logger.Info("progress",
					"spreads", len(st.Spreads),
					"ready", c[book.StatusReady],
					"pending", c[book.StatusImagePending],
					"failed", c[book.StatusFailed],
				)
			},
		}, logger)
		defer s.Close()

		runErr := s.Run(cmd.Context(), topic)
		st := s.Store().Snapshot()
		if runErr != nil && len(st.Spreads) == 0 {
			return runErr
		}

		if genSave {
			path := h.BookPath(topic)
			data, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("failed to save book: %w", err)
			}
			logger.Info("book saved", "path", path)
		}

		if err := api.Output(st); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	generateCmd.Flags().StringVar(&genTopic, "topic", "", "Book topic")
	generateCmd.Flags().IntVar(&genCount, "count", 0, "Number of spreads (default: generation.default_count)")
	generateCmd.Flags().StringVar(&genQuality, "quality", string(generation.QualityLow), "Image quality: low or high")
	generateCmd.Flags().StringVar(&genServer, "server", "http://localhost:8080", "Server URL (default: from server.host and server.port)")
	generateCmd.Flags().BoolVar(&genSave, "save", false, "Save the book to the home directory")

	rootCmd.AddCommand(generateCmd)
}
