package adapter_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/engramlabs/engram/pkg/adapter"
	"github.com/engramlabs/engram/pkg/model"
)

func setupGemini(t *testing.T) *adapter.GeminiClient {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT not set, skipping integration test")
	}

	location := os.Getenv("TEST_GEMINI_LOCATION")
	if location == "" {
		location = "us-central1"
	}

	client, err := adapter.NewGemini(context.Background(), projectID, location,
		adapter.WithEmbeddingDimension(256))
	gt.NoError(t, err)
	return client
}

func TestGeminiEmbed(t *testing.T) {
	client := setupGemini(t)
	ctx := context.Background()

	vec, err := client.Embed(ctx, "the user works on quantum finance models", adapter.EmbedModeDocument)
	gt.NoError(t, err)
	gt.A(t, vec).Length(client.Dimension())
}

func TestGeminiEmbedMany(t *testing.T) {
	client := setupGemini(t)
	ctx := context.Background()

	texts := []string{"first memory", "second memory", "first memory"}
	vectors, err := client.EmbedMany(ctx, texts, adapter.EmbedModeDocument)
	gt.NoError(t, err)
	gt.A(t, vectors).Length(3)

	// Identical inputs yield identical vectors
	gt.Equal(t, vectors[0], vectors[2])
}

func TestGeminiEmbedEmptyText(t *testing.T) {
	client := setupGemini(t)

	_, err := client.Embed(context.Background(), "  ", adapter.EmbedModeQuery)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrInvalidInput))
}
