package repository

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/engramlabs/engram/pkg/model"
)

// Memory implements Repository in process. It backs local mode and tests;
// WithoutVectorSearch simulates a store whose vector index is not provisioned
// so the fallback path can be exercised.
type Memory struct {
	mu           sync.RWMutex
	records      []*model.MemoryRecord
	cursors      map[string][]string
	vectorSearch bool
}

type MemoryOption func(*Memory)

// WithoutVectorSearch makes SearchSimilar fail with ErrIndexUnavailable.
func WithoutVectorSearch() MemoryOption {
	return func(m *Memory) {
		m.vectorSearch = false
	}
}

// NewMemory creates a new in-process repository
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		cursors:      make(map[string][]string),
		vectorSearch: true,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Memory) PutRecord(ctx context.Context, record *model.MemoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *Memory) GetRecord(ctx context.Context, id model.MemoryID) (*model.MemoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, record := range m.records {
		if record.ID == id {
			return record, nil
		}
	}
	return nil, goerr.New("memory record not found", goerr.V("id", id))
}

func (m *Memory) ListRecent(ctx context.Context, limit int) ([]*model.MemoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*model.MemoryRecord, len(m.records))
	copy(records, m.records)

	results := make([]*model.SearchResult, 0, len(records))
	for _, record := range records {
		results = append(results, &model.SearchResult{Record: record})
	}
	SortResults(results)

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	out := make([]*model.MemoryRecord, 0, len(results))
	for _, r := range results {
		out = append(out, r.Record)
	}
	return out, nil
}

func (m *Memory) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]*model.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.vectorSearch {
		return nil, goerr.Wrap(model.ErrIndexUnavailable, "vector search is not provisioned")
	}

	var results []*model.SearchResult
	for _, record := range m.records {
		if len(record.Embedding) != len(embedding) {
			continue
		}
		results = append(results, &model.SearchResult{
			Record: record,
			Score:  cosineSimilarity(embedding, record.Embedding),
		})
	}

	SortResults(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *Memory) CountBySource(ctx context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, record := range m.records {
		source := record.Metadata[model.MetaSource]
		if source == "" {
			source = "unknown"
		}
		counts[source]++
	}
	return counts, nil
}

func (m *Memory) EnsureVectorIndex(ctx context.Context, dimension int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectorSearch = true
	return nil
}

func (m *Memory) GetCursor(ctx context.Context, agentID string) (*model.SyncCursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fingerprints := make([]string, len(m.cursors[agentID]))
	copy(fingerprints, m.cursors[agentID])

	return &model.SyncCursor{
		AgentID:      agentID,
		Fingerprints: fingerprints,
		UpdatedAt:    time.Now(),
	}, nil
}

func (m *Memory) MarkSynced(ctx context.Context, agentID string, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, fp := range m.cursors[agentID] {
		if fp == fingerprint {
			return nil
		}
	}
	m.cursors[agentID] = append(m.cursors[agentID], fingerprint)
	return nil
}

func cosineSimilarity(a []float32, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
