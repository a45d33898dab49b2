package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "text-embedding-3-small"

// OpenAIConfig configures an OpenAI-compatible /embeddings endpoint such as
// OpenAI itself or a local Ollama server.
type OpenAIConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
}

// embeddingsClient is the subset of the go-openai client used here.
type embeddingsClient interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings API.
type OpenAIEmbedder struct {
	client embeddingsClient
	model  string
	dim    int
}

// NewOpenAIEmbedder creates an embedder for cfg. Dimension is required.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		dim:    cfg.Dimension,
	}, nil
}

// Dimension returns the expected vector length.
func (o *OpenAIEmbedder) Dimension() int { return o.dim }

// Model returns the configured model name.
func (o *OpenAIEmbedder) Model() string { return o.model }

// Embed requests one embedding and normalizes it. The returned length is
// whatever the server produced; callers check it against Dimension.
func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(o.model),
		Input: []string{text},
	}
	// Only the text-embedding-3 family accepts a requested size.
	if strings.HasPrefix(o.model, "text-embedding-3") {
		req.Dimensions = o.dim
	}

	resp, err := o.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	copy(vec, resp.Data[0].Embedding)
	return Normalize(vec), nil
}
