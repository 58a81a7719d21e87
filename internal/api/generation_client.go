package api

import (
	"context"

	"github.com/jackzampolin/folio/internal/generation"
)

// Paths of the generation RPCs.
const (
	PathConcepts    = "/api/generate/concepts"
	PathStyle       = "/api/generate/style"
	PathImagesStart = "/api/images/start"
	PathImagesCheck = "/api/images/check"
)

// GenerationClient calls the generation RPCs of a running server. It has the
// same method set as *generation.Service, so a session can drive either.
type GenerationClient struct {
	client *Client
}

// NewGenerationClient wraps c.
func NewGenerationClient(c *Client) *GenerationClient {
	return &GenerationClient{client: c}
}

func (g *GenerationClient) GenerateConcepts(ctx context.Context, req generation.ConceptsRequest) (*generation.ConceptsResponse, error) {
	var resp generation.ConceptsResponse
	if err := g.client.Post(ctx, PathConcepts, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *GenerationClient) GenerateStyleGuide(ctx context.Context, req generation.StyleRequest) (*generation.StyleResponse, error) {
	var resp generation.StyleResponse
	if err := g.client.Post(ctx, PathStyle, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *GenerationClient) StartImagePredictions(ctx context.Context, req generation.StartRequest) (*generation.StartResponse, error) {
	var resp generation.StartResponse
	if err := g.client.Post(ctx, PathImagesStart, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *GenerationClient) CheckImagePredictions(ctx context.Context, req generation.CheckRequest) (*generation.CheckResponse, error) {
	var resp generation.CheckResponse
	if err := g.client.Post(ctx, PathImagesCheck, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
