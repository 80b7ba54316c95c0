package adapter

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"

	"github.com/engramlabs/engram/pkg/model"
	"github.com/engramlabs/engram/pkg/utils/backoff"
)

// EmbedMode selects how the provider weights the vector. Query and document
// embeddings may differ, but the dimensionality is the same for both modes.
type EmbedMode string

const (
	EmbedModeDocument EmbedMode = "RETRIEVAL_DOCUMENT"
	EmbedModeQuery    EmbedMode = "RETRIEVAL_QUERY"
)

// Embedder converts text into fixed-length vectors of Dimension() elements.
type Embedder interface {
	Embed(ctx context.Context, text string, mode EmbedMode) ([]float32, error)

	// EmbedMany embeds a batch of texts, preserving input order. Identical
	// texts within one batch are embedded once.
	EmbedMany(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error)

	Dimension() int
}

// GeminiClient implements Embedder using the Gemini embedding API.
type GeminiClient struct {
	client         *genai.Client
	embeddingModel string
	dimension      int32
	policy         *backoff.Policy
}

type GeminiOption func(*GeminiClient)

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = model
	}
}

func WithEmbeddingDimension(dim int) GeminiOption {
	return func(g *GeminiClient) {
		g.dimension = int32(dim)
	}
}

func WithEmbeddingRetryPolicy(p *backoff.Policy) GeminiOption {
	return func(g *GeminiClient) {
		g.policy = p
	}
}

// NewGemini creates a new Gemini embedding client backed by Vertex AI.
func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:         client,
		embeddingModel: "gemini-embedding-001",
		dimension:      1536,
		policy:         backoff.Default(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *GeminiClient) Dimension() int {
	return int(g.dimension)
}

func (g *GeminiClient) Embed(ctx context.Context, text string, mode EmbedMode) ([]float32, error) {
	vectors, err := g.EmbedMany(ctx, []string{text}, mode)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (g *GeminiClient) EmbedMany(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Deduplicate identical texts so one batch never embeds the same content twice
	unique := make([]string, 0, len(texts))
	index := make(map[string]int, len(texts))
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, goerr.Wrap(model.ErrInvalidInput, "text to embed is empty")
		}
		if _, ok := index[text]; ok {
			continue
		}
		index[text] = len(unique)
		unique = append(unique, text)
	}

	contents := make([]*genai.Content, 0, len(unique))
	for _, text := range unique {
		contents = append(contents, genai.Text(text)...)
	}

	config := &genai.EmbedContentConfig{
		TaskType:             string(mode),
		OutputDimensionality: genai.Ptr(g.dimension),
	}

	resp, err := backoff.Do(ctx, g.policy, func() (*genai.EmbedContentResponse, error) {
		resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, config)
		if err != nil {
			return nil, classifyGenAIError(err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, goerr.Wrap(model.ErrEmbeddingUnavailable, "embedding request failed",
			goerr.V("model", g.embeddingModel), goerr.V("cause", err.Error()))
	}

	if len(resp.Embeddings) != len(unique) {
		return nil, goerr.Wrap(model.ErrMalformedResponse, "embedding count mismatch",
			goerr.V("want", len(unique)), goerr.V("got", len(resp.Embeddings)))
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		emb := resp.Embeddings[index[text]]
		if emb == nil || len(emb.Values) != int(g.dimension) {
			return nil, goerr.Wrap(model.ErrMalformedResponse, "unexpected embedding dimension",
				goerr.V("want", g.dimension))
		}
		out[i] = emb.Values
	}

	return out, nil
}

// classifyGenAIError marks client-side API errors as permanent so the retry
// loop stops immediately. Rate limits and server errors stay retryable.
func classifyGenAIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != 429 {
			return backoff.Permanent(err)
		}
	}
	return err
}
