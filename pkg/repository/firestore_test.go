package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/engramlabs/engram/pkg/model"
	"github.com/engramlabs/engram/pkg/repository"
)

func setupFirestore(t *testing.T) *repository.Firestore {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	ctx := context.Background()
	repo, err := repository.New(ctx, projectID, databaseID,
		repository.WithCollection("memories_test"))
	gt.NoError(t, err)

	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})

	return repo
}

func TestFirestorePutGet(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	record := &model.MemoryRecord{
		ID:        model.NewMemoryID(),
		Text:      "integration test record",
		Embedding: []float32{0.1, 0.2, 0.3},
		Metadata: map[string]string{
			model.MetaSource: model.SourceManual,
		},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	gt.NoError(t, repo.PutRecord(ctx, record))

	got, err := repo.GetRecord(ctx, record.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.Text, record.Text)
	gt.Equal(t, got.Metadata[model.MetaSource], model.SourceManual)
	gt.A(t, got.Embedding).Length(3)
}

func TestFirestoreListRecent(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		record := &model.MemoryRecord{
			ID:        model.NewMemoryID(),
			Text:      "list test record",
			Embedding: []float32{0.1, 0.2, 0.3},
			Metadata:  map[string]string{model.MetaSource: model.SourceManual},
			CreatedAt: time.Now().UTC(),
		}
		gt.NoError(t, repo.PutRecord(ctx, record))
	}

	records, err := repo.ListRecent(ctx, 2)
	gt.NoError(t, err)
	gt.A(t, records).Length(2)
}

func TestFirestoreCursor(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	agentID := "test-agent-" + string(model.NewMemoryID())

	cursor, err := repo.GetCursor(ctx, agentID)
	gt.NoError(t, err)
	gt.A(t, cursor.Fingerprints).Length(0)

	gt.NoError(t, repo.MarkSynced(ctx, agentID, "fp-a"))
	gt.NoError(t, repo.MarkSynced(ctx, agentID, "fp-b"))
	gt.NoError(t, repo.MarkSynced(ctx, agentID, "fp-a"))

	cursor, err = repo.GetCursor(ctx, agentID)
	gt.NoError(t, err)
	gt.A(t, cursor.Fingerprints).Length(2)
}

func TestFirestoreEnsureVectorIndex(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	// Creating the same index twice must succeed both times
	gt.NoError(t, repo.EnsureVectorIndex(ctx, 3))
	gt.NoError(t, repo.EnsureVectorIndex(ctx, 3))
}
