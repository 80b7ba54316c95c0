// Package mock provides deterministic in-process implementations of the
// external collaborators for tests and local experiments.
package mock

import (
	"bytes"
	"context"
	"hash/fnv"
	"io"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/m-mizutani/goerr/v2"

	"github.com/engramlabs/engram/pkg/adapter"
	"github.com/engramlabs/engram/pkg/model"
)

// Embedder generates deterministic bag-of-words embeddings: each token is
// hashed into one dimension, so texts sharing words have positive cosine
// similarity. Useful for asserting retrieval behavior without a provider.
type Embedder struct {
	dim int

	// FailOn makes Embed fail for any text containing the substring,
	// simulating a provider outage for specific items.
	FailOn string
}

func NewEmbedder(dim int) *Embedder {
	if dim <= 0 {
		dim = 64
	}
	return &Embedder{dim: dim}
}

func (e *Embedder) Dimension() int {
	return e.dim
}

func (e *Embedder) Embed(ctx context.Context, text string, mode adapter.EmbedMode) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "text to embed is empty")
	}
	if e.FailOn != "" && strings.Contains(text, e.FailOn) {
		return nil, goerr.Wrap(model.ErrEmbeddingUnavailable, "mock embedder failure", goerr.V("text", text))
	}

	vec := make([]float32, e.dim)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[int(h.Sum32())%e.dim]++
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = float32(math.Sqrt(float64(norm)))
		for i := range vec {
			vec[i] /= norm
		}
	}

	return vec, nil
}

func (e *Embedder) EmbedMany(ctx context.Context, texts []string, mode adapter.EmbedMode) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text, mode)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Agent is a canned agent collaborator.
type Agent struct {
	Blocks   []*model.MemoryBlock
	Messages []*model.AgentMessage
	Reply    string

	// FetchErr is returned by the read operations when set.
	FetchErr error
}

func (a *Agent) CreateAgent(ctx context.Context, input *adapter.CreateAgentInput) (*model.AgentConfig, error) {
	return &model.AgentConfig{AgentID: "mock-agent", AgentName: input.Name}, nil
}

func (a *Agent) GetMemoryBlocks(ctx context.Context, agentID string) ([]*model.MemoryBlock, error) {
	if a.FetchErr != nil {
		return nil, a.FetchErr
	}
	return a.Blocks, nil
}

func (a *Agent) GetMessages(ctx context.Context, agentID string, limit int) ([]*model.AgentMessage, error) {
	if a.FetchErr != nil {
		return nil, a.FetchErr
	}
	if limit > 0 && len(a.Messages) > limit {
		return a.Messages[:limit], nil
	}
	return a.Messages, nil
}

func (a *Agent) Send(ctx context.Context, agentID, prompt string) (string, error) {
	if a.Reply == "" {
		return "mock reply", nil
	}
	return a.Reply, nil
}

// Storage keeps snapshot objects in memory.
type Storage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewStorage() *Storage {
	return &Storage{objects: make(map[string][]byte)}
}

type storageWriter struct {
	bytes.Buffer
	store *Storage
	key   string
}

func (w *storageWriter) Close() error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.objects[w.key] = w.Bytes()
	return nil
}

func (s *Storage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	return &storageWriter{store: s, key: key}, nil
}

func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, goerr.New("object not found", goerr.V("key", key))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
