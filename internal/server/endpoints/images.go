package endpoints

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/internal/generation"
)

// StartImagesEndpoint handles POST /api/images/start.
type StartImagesEndpoint struct{}

func (e *StartImagesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", api.PathImagesStart, e.handler
}

func (e *StartImagesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Start image predictions
//	@Description	Submit one image job per item and return immediately. Items that fail to submit are listed in failed; the rest still start.
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Param			request	body		generation.StartRequest	true	"Items and quality (low or high)"
//	@Success		200		{object}	generation.StartResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/images/start [post]
func (e *StartImagesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req generation.StartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	svc := generationService(w, r)
	if svc == nil {
		return
	}

	resp, err := svc.StartImagePredictions(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *StartImagesEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		items   []string
		quality string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start image predictions",
		Example: `  folio api images start --quality high \
    --item lava="Magma Rivers, topic: volcanoes. Glowing flows at dusk"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := generation.StartRequest{Quality: generation.Quality(quality)}
			for _, raw := range items {
				id, prompt, err := splitPair(raw)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, generation.StartItem{ConceptID: id, Prompt: prompt})
			}

			gc := api.NewGenerationClient(api.NewClient(getServerURL()))
			resp, err := gc.StartImagePredictions(cmd.Context(), req)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringArrayVar(&items, "item", nil, "conceptId=prompt (repeatable)")
	cmd.Flags().StringVar(&quality, "quality", string(generation.QualityLow), "Image quality: low or high")
	cmd.MarkFlagRequired("item")
	return cmd
}

// CheckImagesEndpoint handles POST /api/images/check.
type CheckImagesEndpoint struct{}

func (e *CheckImagesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", api.PathImagesCheck, e.handler
}

func (e *CheckImagesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Check image predictions
//	@Description	Poll each job once and classify it as completed, pending or failed. Nothing is stored server side.
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Param			request	body		generation.CheckRequest	true	"Handles returned by start"
//	@Success		200		{object}	generation.CheckResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/images/check [post]
func (e *CheckImagesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req generation.CheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	svc := generationService(w, r)
	if svc == nil {
		return
	}

	resp, err := svc.CheckImagePredictions(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *CheckImagesEndpoint) Command(getServerURL func() string) *cobra.Command {
	var items []string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check image predictions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req generation.CheckRequest
			for _, raw := range items {
				id, jobID, err := splitPair(raw)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, generation.Handle{ConceptID: id, JobID: jobID})
			}

			gc := api.NewGenerationClient(api.NewClient(getServerURL()))
			resp, err := gc.CheckImagePredictions(cmd.Context(), req)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringArrayVar(&items, "item", nil, "conceptId=jobId (repeatable)")
	cmd.MarkFlagRequired("item")
	return cmd
}

// splitPair splits "key=value" at the first '='.
func splitPair(raw string) (string, string, error) {
	k, v, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return "", "", fmt.Errorf("invalid item %q: want key=value", raw)
	}
	return strings.TrimSpace(k), v, nil
}
