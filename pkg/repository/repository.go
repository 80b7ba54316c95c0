package repository

import (
	"context"
	"sort"

	"github.com/engramlabs/engram/pkg/model"
)

// Repository defines the persistence contract for the memory engine. Records
// are append-only: nothing ever updates or deletes a stored record.
type Repository interface {
	// PutRecord saves a memory record. The record becomes visible to readers
	// only after the full write, embedding included, completes.
	PutRecord(ctx context.Context, record *model.MemoryRecord) error

	// GetRecord retrieves a record by ID
	GetRecord(ctx context.Context, id model.MemoryID) (*model.MemoryRecord, error)

	// ListRecent retrieves up to limit records ordered by CreatedAt descending
	ListRecent(ctx context.Context, limit int) ([]*model.MemoryRecord, error)

	// SearchSimilar performs vector search and returns results ordered by
	// descending similarity. It fails with model.ErrIndexUnavailable when the
	// vector index is not provisioned.
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]*model.SearchResult, error)

	// CountBySource returns record counts grouped by the "source" metadata key
	CountBySource(ctx context.Context) (map[string]int, error)

	// EnsureVectorIndex creates the vector index if absent. Calling it when an
	// equivalent index already exists is a no-op, never an error.
	EnsureVectorIndex(ctx context.Context, dimension int) error

	// GetCursor loads the sync cursor for an agent, empty if none exists yet
	GetCursor(ctx context.Context, agentID string) (*model.SyncCursor, error)

	// MarkSynced records a fingerprint in the agent's sync cursor. It must be
	// called only after the corresponding insert is durable.
	MarkSynced(ctx context.Context, agentID string, fingerprint string) error
}

// SortResults orders results by descending score, breaking ties by CreatedAt
// descending so the most recent record wins.
func SortResults(results []*model.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.CreatedAt.After(results[j].Record.CreatedAt)
	})
}
