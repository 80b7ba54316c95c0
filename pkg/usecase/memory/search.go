package memory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/engramlabs/engram/pkg/adapter"
	"github.com/engramlabs/engram/pkg/model"
	"github.com/engramlabs/engram/pkg/repository"
	"github.com/engramlabs/engram/pkg/utils/logging"
)

// SearchOutput carries search results together with retrieval diagnostics.
// Fallback is true when text matching served the query because the vector
// index was unavailable.
type SearchOutput struct {
	Results  []*model.SearchResult
	Fallback bool
	Elapsed  time.Duration
}

// Search embeds the query and retrieves the topK most similar records. When
// the vector index is not provisioned it degrades to a term-overlap scan over
// recent records instead of failing.
func (uc *UseCase) Search(ctx context.Context, query string, topK int) (*SearchOutput, error) {
	if strings.TrimSpace(query) == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "search query is empty")
	}
	if topK < 1 {
		return nil, goerr.Wrap(model.ErrInvalidInput, "topK must be at least 1", goerr.V("topK", topK))
	}

	start := time.Now()

	embedding, err := uc.embedder.Embed(ctx, query, adapter.EmbedModeQuery)
	if err != nil {
		return nil, err
	}

	results, err := uc.repo.SearchSimilar(ctx, embedding, topK*uc.overFetch)
	if err != nil {
		if !errors.Is(err, model.ErrIndexUnavailable) {
			return nil, err
		}

		logging.From(ctx).Warn("vector index unavailable, falling back to text search",
			"query", query,
		)

		fallback, err := uc.textFallback(ctx, query)
		if err != nil {
			return nil, err
		}
		if len(fallback) > topK {
			fallback = fallback[:topK]
		}
		return &SearchOutput{
			Results:  fallback,
			Fallback: true,
			Elapsed:  time.Since(start),
		}, nil
	}

	if len(results) > topK {
		results = results[:topK]
	}

	return &SearchOutput{
		Results: results,
		Elapsed: time.Since(start),
	}, nil
}

// textFallback scores recent records by term overlap with the query. Scores
// are not comparable to cosine similarity; they only order the fallback set.
func (uc *UseCase) textFallback(ctx context.Context, query string) ([]*model.SearchResult, error) {
	records, err := uc.repo.ListRecent(ctx, uc.fallbackScanLimit)
	if err != nil {
		return nil, err
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	var results []*model.SearchResult
	for _, record := range records {
		text := strings.ToLower(record.Text)
		matched := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		results = append(results, &model.SearchResult{
			Record: record,
			Score:  float64(matched) / float64(len(terms)),
		})
	}

	repository.SortResults(results)
	return results, nil
}
