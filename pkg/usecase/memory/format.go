package memory

import (
	"fmt"
	"strings"

	"github.com/engramlabs/engram/pkg/model"
)

// FormatForPrompt renders search results as a numbered block for inclusion in
// an agent prompt. An empty result set renders to an empty string so callers
// can append the block unconditionally.
func FormatForPrompt(results []*model.SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Relevant memories:\n")
	for i, r := range results {
		source := r.Record.Metadata[model.MetaSource]
		if source == "" {
			source = "unknown"
		}
		fmt.Fprintf(&sb, "%d. [score: %.3f] [source: %s] %s\n", i+1, r.Score, source, r.Record.Text)
	}
	return sb.String()
}

// Summary aggregates retrieval activity across a session.
type Summary struct {
	Queries    int
	MemoryHits int
	HitRate    float64
}

// Summarize computes session retrieval statistics. HitRate is zero when no
// queries ran.
func Summarize(queries, memoryHits int) *Summary {
	s := &Summary{
		Queries:    queries,
		MemoryHits: memoryHits,
	}
	if queries > 0 {
		s.HitRate = float64(memoryHits) / float64(queries)
	}
	return s
}

func (s *Summary) String() string {
	return fmt.Sprintf("queries: %d, memory hits: %d, hit rate: %.0f%%",
		s.Queries, s.MemoryHits, s.HitRate*100)
}
