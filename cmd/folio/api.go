package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Folio server via HTTP.

These commands require a running server (folio serve).
Use --server to specify a custom server URL.

Examples:
  folio api health                          # Check server health
  folio api concepts --topic volcanoes      # Generate concepts only
  folio api images check --item a=job-123   # Poll one image job`,
}

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Image job commands",
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Embedded prompt commands",
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Configuration settings commands",
}

var llmcallsCmd = &cobra.Command{
	Use:   "llmcalls",
	Short: "LLM call history commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.SwaggerEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand((&endpoints.ConceptsEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StyleEndpoint{}).Command(getServerURL))

	imagesCmd.AddCommand((&endpoints.StartImagesEndpoint{}).Command(getServerURL))
	imagesCmd.AddCommand((&endpoints.CheckImagesEndpoint{}).Command(getServerURL))

	promptsCmd.AddCommand((&endpoints.ListPromptsEndpoint{}).Command(getServerURL))
	promptsCmd.AddCommand((&endpoints.GetPromptEndpoint{}).Command(getServerURL))

	settingsCmd.AddCommand((&endpoints.ListSettingsEndpoint{}).Command(getServerURL))
	settingsCmd.AddCommand((&endpoints.GetSettingEndpoint{}).Command(getServerURL))

	llmcallsCmd.AddCommand((&endpoints.ListLLMCallsEndpoint{}).Command(getServerURL))
	llmcallsCmd.AddCommand((&endpoints.GetLLMCallEndpoint{}).Command(getServerURL))
	llmcallsCmd.AddCommand((&endpoints.LLMCallCountsEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(imagesCmd)
	apiCmd.AddCommand(promptsCmd)
	apiCmd.AddCommand(settingsCmd)
	apiCmd.AddCommand(llmcallsCmd)
	rootCmd.AddCommand(apiCmd)
}
