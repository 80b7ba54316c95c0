package memory

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/engramlabs/engram/pkg/adapter"
	"github.com/engramlabs/engram/pkg/model"
	"github.com/engramlabs/engram/pkg/utils/logging"
)

// Insert embeds text in document mode and stores it as a new memory record.
// The record is durable when Insert returns: a crash after return never loses
// it, a crash before return never leaves a record without its embedding.
func (uc *UseCase) Insert(ctx context.Context, text string, metadata map[string]string) (*model.MemoryRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "memory text is empty")
	}

	embedding, err := uc.embedder.Embed(ctx, text, adapter.EmbedModeDocument)
	if err != nil {
		return nil, err
	}
	if len(embedding) != uc.embedder.Dimension() {
		return nil, goerr.Wrap(model.ErrMalformedResponse, "embedding dimension mismatch",
			goerr.V("want", uc.embedder.Dimension()), goerr.V("got", len(embedding)))
	}

	if metadata == nil {
		metadata = map[string]string{}
	}

	record := &model.MemoryRecord{
		ID:        model.NewMemoryID(),
		Text:      text,
		Embedding: embedding,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	if err := uc.repo.PutRecord(ctx, record); err != nil {
		return nil, err
	}

	logging.From(ctx).Debug("inserted memory record",
		"id", record.ID,
		"source", metadata[model.MetaSource],
	)

	return record, nil
}
