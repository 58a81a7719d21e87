package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/internal/generation"
)

// ConceptsEndpoint handles POST /api/generate/concepts.
type ConceptsEndpoint struct{}

func (e *ConceptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", api.PathConcepts, e.handler
}

func (e *ConceptsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Generate concepts
//	@Description	Generate titled one-paragraph concepts for a topic. Blocks until the text job finishes (up to 90s).
//	@Tags			generate
//	@Accept			json
//	@Produce		json
//	@Param			request	body		generation.ConceptsRequest	true	"Topic and concept count (default 12, max 100)"
//	@Success		200		{object}	generation.ConceptsResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Failure		504		{object}	ErrorResponse
//	@Router			/api/generate/concepts [post]
func (e *ConceptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req generation.ConceptsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	svc := generationService(w, r)
	if svc == nil {
		return
	}

	resp, err := svc.GenerateConcepts(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ConceptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req generation.ConceptsRequest
	cmd := &cobra.Command{
		Use:   "concepts",
		Short: "Generate concepts for a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			gc := api.NewGenerationClient(api.NewClient(getServerURL()))
			resp, err := gc.GenerateConcepts(cmd.Context(), req)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&req.Topic, "topic", "", "Book topic")
	cmd.Flags().IntVar(&req.Count, "count", 0, "Number of concepts (server default when 0)")
	cmd.MarkFlagRequired("topic")
	return cmd
}

// StyleEndpoint handles POST /api/generate/style.
type StyleEndpoint struct{}

func (e *StyleEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", api.PathStyle, e.handler
}

func (e *StyleEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Generate a style guide
//	@Description	Generate a visual style guide for a topic, optionally informed by concept titles. Blocks up to 60s.
//	@Tags			generate
//	@Accept			json
//	@Produce		json
//	@Param			request	body		generation.StyleRequest	true	"Topic and optional concept titles"
//	@Success		200		{object}	generation.StyleResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Failure		504		{object}	ErrorResponse
//	@Router			/api/generate/style [post]
func (e *StyleEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req generation.StyleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	svc := generationService(w, r)
	if svc == nil {
		return
	}

	resp, err := svc.GenerateStyleGuide(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *StyleEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req generation.StyleRequest
	cmd := &cobra.Command{
		Use:   "style",
		Short: "Generate a style guide for a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			gc := api.NewGenerationClient(api.NewClient(getServerURL()))
			resp, err := gc.GenerateStyleGuide(cmd.Context(), req)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&req.Topic, "topic", "", "Book topic")
	cmd.Flags().StringArrayVar(&req.ConceptTitles, "title", nil, "Concept title (repeatable)")
	cmd.MarkFlagRequired("topic")
	return cmd
}
