package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/engramlabs/engram/pkg/model"
	"github.com/engramlabs/engram/pkg/repository"
)

func newRecord(text, source string, embedding []float32, createdAt time.Time) *model.MemoryRecord {
	return &model.MemoryRecord{
		ID:        model.NewMemoryID(),
		Text:      text,
		Embedding: embedding,
		Metadata:  map[string]string{model.MetaSource: source},
		CreatedAt: createdAt,
	}
}

func TestMemoryPutGet(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	record := newRecord("user prefers dark mode", model.SourceChat, []float32{1, 0, 0}, time.Now())
	gt.NoError(t, repo.PutRecord(ctx, record))

	got, err := repo.GetRecord(ctx, record.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.Text, "user prefers dark mode")
	gt.Equal(t, got.Metadata[model.MetaSource], model.SourceChat)

	_, err = repo.GetRecord(ctx, model.NewMemoryID())
	gt.Error(t, err)
}

func TestMemoryListRecent(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	base := time.Now()
	for i := 0; i < 5; i++ {
		r := newRecord("note", model.SourceManual, []float32{1}, base.Add(time.Duration(i)*time.Minute))
		gt.NoError(t, repo.PutRecord(ctx, r))
	}

	records, err := repo.ListRecent(ctx, 3)
	gt.NoError(t, err)
	gt.A(t, records).Length(3)

	// Newest first
	for i := 1; i < len(records); i++ {
		if records[i].CreatedAt.After(records[i-1].CreatedAt) {
			t.Errorf("records not ordered by CreatedAt descending at %d", i)
		}
	}
}

func TestMemorySearchSimilar(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	now := time.Now()
	gt.NoError(t, repo.PutRecord(ctx, newRecord("exact", model.SourceChat, []float32{1, 0}, now)))
	gt.NoError(t, repo.PutRecord(ctx, newRecord("orthogonal", model.SourceChat, []float32{0, 1}, now)))
	gt.NoError(t, repo.PutRecord(ctx, newRecord("diagonal", model.SourceChat, []float32{1, 1}, now)))

	results, err := repo.SearchSimilar(ctx, []float32{1, 0}, 10)
	gt.NoError(t, err)
	gt.A(t, results).Length(3)
	gt.Equal(t, results[0].Record.Text, "exact")
	gt.Equal(t, results[1].Record.Text, "diagonal")
	gt.Equal(t, results[2].Record.Text, "orthogonal")
	gt.Equal(t, results[0].Score, 1.0)
}

func TestMemorySearchTieBreak(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	older := newRecord("older", model.SourceChat, []float32{1, 0}, time.Now().Add(-time.Hour))
	newer := newRecord("newer", model.SourceChat, []float32{1, 0}, time.Now())
	gt.NoError(t, repo.PutRecord(ctx, older))
	gt.NoError(t, repo.PutRecord(ctx, newer))

	results, err := repo.SearchSimilar(ctx, []float32{1, 0}, 10)
	gt.NoError(t, err)
	gt.A(t, results).Length(2)
	gt.Equal(t, results[0].Record.Text, "newer")
}

func TestMemoryWithoutVectorSearch(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory(repository.WithoutVectorSearch())

	gt.NoError(t, repo.PutRecord(ctx, newRecord("note", model.SourceChat, []float32{1}, time.Now())))

	_, err := repo.SearchSimilar(ctx, []float32{1}, 10)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrIndexUnavailable))

	// EnsureVectorIndex provisions the index
	gt.NoError(t, repo.EnsureVectorIndex(ctx, 1))
	results, err := repo.SearchSimilar(ctx, []float32{1}, 10)
	gt.NoError(t, err)
	gt.A(t, results).Length(1)
}

func TestMemoryCountBySource(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	now := time.Now()
	gt.NoError(t, repo.PutRecord(ctx, newRecord("a", model.SourceChat, []float32{1}, now)))
	gt.NoError(t, repo.PutRecord(ctx, newRecord("b", model.SourceChat, []float32{1}, now)))
	gt.NoError(t, repo.PutRecord(ctx, newRecord("c", model.SourceWebSearch, []float32{1}, now)))

	counts, err := repo.CountBySource(ctx)
	gt.NoError(t, err)
	gt.Equal(t, counts[model.SourceChat], 2)
	gt.Equal(t, counts[model.SourceWebSearch], 1)
}

func TestMemoryCursor(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	cursor, err := repo.GetCursor(ctx, "agent-1")
	gt.NoError(t, err)
	gt.A(t, cursor.Fingerprints).Length(0)

	gt.NoError(t, repo.MarkSynced(ctx, "agent-1", "fp1"))
	gt.NoError(t, repo.MarkSynced(ctx, "agent-1", "fp2"))
	gt.NoError(t, repo.MarkSynced(ctx, "agent-1", "fp1")) // idempotent

	cursor, err = repo.GetCursor(ctx, "agent-1")
	gt.NoError(t, err)
	gt.A(t, cursor.Fingerprints).Length(2)

	seen := cursor.Set()
	_, ok := seen["fp1"]
	gt.True(t, ok)
	_, ok = seen["fp2"]
	gt.True(t, ok)

	// Cursors are isolated per agent
	other, err := repo.GetCursor(ctx, "agent-2")
	gt.NoError(t, err)
	gt.A(t, other.Fingerprints).Length(0)
}
