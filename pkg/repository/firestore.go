package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firestoreadmin "cloud.google.com/go/firestore/apiv1/admin"
	"cloud.google.com/go/firestore/apiv1/admin/adminpb"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/engramlabs/engram/pkg/model"
)

const (
	defaultCollection       = "memories"
	defaultCursorCollection = "sync_cursors"

	embeddingField = "embedding"
	distanceField  = "vector_distance"
)

// Firestore implements Repository using Firestore with its native vector
// search. The vector index is managed through the Firestore admin API.
type Firestore struct {
	client           *firestore.Client
	projectID        string
	databaseID       string
	collection       string
	cursorCollection string
}

type FirestoreOption func(*Firestore)

func WithCollection(name string) FirestoreOption {
	return func(f *Firestore) {
		f.collection = name
	}
}

// New creates a new Firestore repository
func New(ctx context.Context, projectID, databaseID string, opts ...FirestoreOption) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	f := &Firestore{
		client:           client,
		projectID:        projectID,
		databaseID:       databaseID,
		collection:       defaultCollection,
		cursorCollection: defaultCursorCollection,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Close releases the underlying client.
func (f *Firestore) Close() error {
	return f.client.Close()
}

type memoryDoc struct {
	ID        string             `firestore:"id"`
	Text      string             `firestore:"text"`
	Embedding firestore.Vector32 `firestore:"embedding"`
	Metadata  map[string]string  `firestore:"metadata"`
	CreatedAt time.Time          `firestore:"created_at"`
}

func toDoc(record *model.MemoryRecord) *memoryDoc {
	return &memoryDoc{
		ID:        string(record.ID),
		Text:      record.Text,
		Embedding: record.Embedding,
		Metadata:  record.Metadata,
		CreatedAt: record.CreatedAt,
	}
}

func (d *memoryDoc) toModel() *model.MemoryRecord {
	return &model.MemoryRecord{
		ID:        model.MemoryID(d.ID),
		Text:      d.Text,
		Embedding: d.Embedding,
		Metadata:  d.Metadata,
		CreatedAt: d.CreatedAt,
	}
}

func (f *Firestore) PutRecord(ctx context.Context, record *model.MemoryRecord) error {
	doc := f.client.Collection(f.collection).Doc(string(record.ID))
	if _, err := doc.Set(ctx, toDoc(record)); err != nil {
		return goerr.Wrap(model.ErrStorageFailure, "failed to write memory record",
			goerr.V("id", record.ID), goerr.V("cause", err.Error()))
	}
	return nil
}

func (f *Firestore) GetRecord(ctx context.Context, id model.MemoryID) (*model.MemoryRecord, error) {
	snap, err := f.client.Collection(f.collection).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.New("memory record not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(model.ErrStorageFailure, "failed to get memory record",
			goerr.V("id", id), goerr.V("cause", err.Error()))
	}

	var doc memoryDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode memory record", goerr.V("id", id))
	}

	return doc.toModel(), nil
}

func (f *Firestore) ListRecent(ctx context.Context, limit int) ([]*model.MemoryRecord, error) {
	iter := f.client.Collection(f.collection).
		OrderBy("created_at", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var records []*model.MemoryRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(model.ErrStorageFailure, "failed to list memory records",
				goerr.V("cause", err.Error()))
		}

		var doc memoryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory record")
		}
		records = append(records, doc.toModel())
	}

	return records, nil
}

func (f *Firestore) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]*model.SearchResult, error) {
	query := f.client.Collection(f.collection).FindNearest(
		embeddingField,
		firestore.Vector32(embedding),
		limit,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: distanceField},
	)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var results []*model.SearchResult
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			// FailedPrecondition means the vector index is not provisioned
			if status.Code(err) == codes.FailedPrecondition {
				return nil, goerr.Wrap(model.ErrIndexUnavailable, "vector search requires an index",
					goerr.V("collection", f.collection), goerr.V("cause", err.Error()))
			}
			return nil, goerr.Wrap(model.ErrStorageFailure, "vector search failed",
				goerr.V("cause", err.Error()))
		}

		var doc memoryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory record")
		}

		// Cosine distance is in [0, 2]; similarity = 1 - distance
		score := 0.0
		if raw, err := snap.DataAt(distanceField); err == nil {
			if distance, ok := raw.(float64); ok {
				score = 1.0 - distance
			}
		}

		results = append(results, &model.SearchResult{Record: doc.toModel(), Score: score})
	}

	SortResults(results)
	return results, nil
}

func (f *Firestore) CountBySource(ctx context.Context) (map[string]int, error) {
	iter := f.client.Collection(f.collection).Select("metadata").Documents(ctx)
	defer iter.Stop()

	counts := make(map[string]int)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(model.ErrStorageFailure, "failed to scan memory records",
				goerr.V("cause", err.Error()))
		}

		var doc memoryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory record")
		}

		source := doc.Metadata[model.MetaSource]
		if source == "" {
			source = "unknown"
		}
		counts[source]++
	}

	return counts, nil
}

// EnsureVectorIndex submits a flat vector index build for the embedding
// field. The build runs asynchronously on the Firestore side; an already
// existing equivalent index is not an error.
func (f *Firestore) EnsureVectorIndex(ctx context.Context, dimension int) error {
	admin, err := firestoreadmin.NewFirestoreAdminClient(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to create firestore admin client")
	}
	defer admin.Close()

	parent := fmt.Sprintf("projects/%s/databases/%s/collectionGroups/%s",
		f.projectID, f.databaseID, f.collection)

	_, err = admin.CreateIndex(ctx, &adminpb.CreateIndexRequest{
		Parent: parent,
		Index: &adminpb.Index{
			QueryScope: adminpb.Index_COLLECTION,
			Fields: []*adminpb.Index_IndexField{
				{
					FieldPath: embeddingField,
					ValueMode: &adminpb.Index_IndexField_VectorConfig_{
						VectorConfig: &adminpb.Index_IndexField_VectorConfig{
							Dimension: int32(dimension),
							Type: &adminpb.Index_IndexField_VectorConfig_Flat{
								Flat: &adminpb.Index_IndexField_VectorConfig_FlatIndex{},
							},
						},
					},
				},
			},
		},
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return goerr.Wrap(err, "failed to create vector index",
			goerr.V("parent", parent), goerr.V("dimension", dimension))
	}

	return nil
}

type cursorDoc struct {
	AgentID      string    `firestore:"agent_id"`
	Fingerprints []string  `firestore:"fingerprints"`
	UpdatedAt    time.Time `firestore:"updated_at"`
}

func (f *Firestore) GetCursor(ctx context.Context, agentID string) (*model.SyncCursor, error) {
	snap, err := f.client.Collection(f.cursorCollection).Doc(agentID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return &model.SyncCursor{AgentID: agentID}, nil
		}
		return nil, goerr.Wrap(model.ErrStorageFailure, "failed to load sync cursor",
			goerr.V("agent_id", agentID), goerr.V("cause", err.Error()))
	}

	var doc cursorDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode sync cursor", goerr.V("agent_id", agentID))
	}

	return &model.SyncCursor{
		AgentID:      agentID,
		Fingerprints: doc.Fingerprints,
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}

func (f *Firestore) MarkSynced(ctx context.Context, agentID string, fingerprint string) error {
	doc := f.client.Collection(f.cursorCollection).Doc(agentID)
	_, err := doc.Set(ctx, map[string]any{
		"agent_id":     agentID,
		"fingerprints": firestore.ArrayUnion(fingerprint),
		"updated_at":   firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return goerr.Wrap(model.ErrStorageFailure, "failed to update sync cursor",
			goerr.V("agent_id", agentID), goerr.V("cause", err.Error()))
	}
	return nil
}
