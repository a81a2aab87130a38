// Package gemini implements the embedding provider on top of the Google
// GenAI API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultModel = "gemini-embedding-001"

// Provider wraps the Google GenAI client behind the embedding interface.
type Provider struct {
	client    *genai.Client
	modelName string
	dim       int
}

// New creates a Provider configured for the Gemini API backend. The
// requested dimension is passed through as output dimensionality so vectors
// stay comparable with the deterministic fallback.
func New(ctx context.Context, apiKey, model string, dim int) (*Provider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	return &Provider{client: client, modelName: model, dim: dim}, nil
}

func (p *Provider) Dimension() int { return p.dim }

// Embed requests a single embedding from the Gemini API.
func (p *Provider) Embed(ctx context.Context, text string) ([]float64, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("gemini provider is not initialized")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return make([]float64, p.dim), nil
	}

	dim := int32(p.dim)
	resp, err := p.client.Models.EmbedContent(ctx, p.modelName,
		genai.Text(text),
		&genai.EmbedContentConfig{OutputDimensionality: &dim},
	)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("gemini api returned empty embedding")
	}

	values := resp.Embeddings[0].Values
	if len(values) != p.dim {
		return nil, fmt.Errorf("gemini api returned %d-dimensional embedding, want %d", len(values), p.dim)
	}

	v := make([]float64, len(values))
	for i, x := range values {
		v[i] = float64(x)
	}
	return v, nil
}

// Model returns the configured model name.
func (p *Provider) Model() string {
	if p == nil {
		return ""
	}
	return p.modelName
}
