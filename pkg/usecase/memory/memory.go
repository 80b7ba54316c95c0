// Package memory implements the retrieval engine: inserting text as embedded
// records and searching them by semantic similarity, with a text fallback when
// the vector index is not available.
package memory

import (
	"github.com/engramlabs/engram/pkg/adapter"
	"github.com/engramlabs/engram/pkg/repository"
)

const (
	// Vector search over-fetches by this factor before truncating to topK,
	// which improves recall on approximate indexes.
	defaultOverFetch = 10

	// How many recent records the text fallback scans
	defaultFallbackScanLimit = 512
)

// UseCase provides the memory insert and search operations
type UseCase struct {
	repo     repository.Repository
	embedder adapter.Embedder

	overFetch         int
	fallbackScanLimit int
}

type Option func(*UseCase)

func WithOverFetch(factor int) Option {
	return func(uc *UseCase) {
		uc.overFetch = factor
	}
}

func WithFallbackScanLimit(limit int) Option {
	return func(uc *UseCase) {
		uc.fallbackScanLimit = limit
	}
}

// New creates a new memory use case
func New(repo repository.Repository, embedder adapter.Embedder, opts ...Option) *UseCase {
	uc := &UseCase{
		repo:              repo,
		embedder:          embedder,
		overFetch:         defaultOverFetch,
		fallbackScanLimit: defaultFallbackScanLimit,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
