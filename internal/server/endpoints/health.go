package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/internal/generation"
	"github.com/jackzampolin/folio/internal/providers"
	"github.com/jackzampolin/folio/internal/svcctx"
)

// HealthResponse is the response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Health check
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server     string                                 `json:"server"`
	Backends   []string                               `json:"backends"`
	RateLimits map[string]providers.RateLimiterStatus `json:"rate_limits,omitempty"`
	Models     *generation.Config                     `json:"models,omitempty"`
	ConfigFile string                                 `json:"config_file,omitempty"`
}

// rateLimited is implemented by backends that expose their limiter.
type rateLimited interface {
	RateLimiterStatus() providers.RateLimiterStatus
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Server status
//	@Description	Registered backends, rate limiter state and the active model table
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Server: "running", Backends: []string{}}

	if registry := svcctx.RegistryFrom(r.Context()); registry != nil {
		resp.Backends = registry.List()
		resp.RateLimits = make(map[string]providers.RateLimiterStatus)
		for _, name := range resp.Backends {
			client, err := registry.Get(name)
			if err != nil {
				continue
			}
			if rl, ok := client.(rateLimited); ok {
				resp.RateLimits[name] = rl.RateLimiterStatus()
			}
		}
	}
	if svc := svcctx.GenerationFrom(r.Context()); svc != nil {
		cfg := svc.Config()
		resp.Models = &cfg
	}
	if mgr := svcctx.ConfigManagerFrom(r.Context()); mgr != nil {
		resp.ConfigFile = mgr.ConfigFile()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
