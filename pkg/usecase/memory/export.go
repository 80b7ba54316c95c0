package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/engramlabs/engram/pkg/adapter"
	"github.com/engramlabs/engram/pkg/utils/logging"
)

type exportRow struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// Export writes up to limit recent records to storage as JSON Lines.
// Embeddings are omitted: the snapshot is for inspection and re-import, and
// re-import re-embeds the text anyway.
func (uc *UseCase) Export(ctx context.Context, storage adapter.Storage, key string, limit int) (int, error) {
	records, err := uc.repo.ListRecent(ctx, limit)
	if err != nil {
		return 0, err
	}

	w, err := storage.Put(ctx, key)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to open export object", goerr.V("key", key))
	}

	enc := json.NewEncoder(w)
	for _, record := range records {
		row := &exportRow{
			ID:        string(record.ID),
			Text:      record.Text,
			Metadata:  record.Metadata,
			CreatedAt: record.CreatedAt,
		}
		if err := enc.Encode(row); err != nil {
			_ = w.Close()
			return 0, goerr.Wrap(err, "failed to encode export row", goerr.V("id", record.ID))
		}
	}

	if err := w.Close(); err != nil {
		return 0, goerr.Wrap(err, "failed to finalize export object", goerr.V("key", key))
	}

	logging.From(ctx).Info("exported memory snapshot", "key", key, "records", len(records))

	return len(records), nil
}
