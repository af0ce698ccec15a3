package reembed

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/sakina/ai/mock"
	"github.com/poiesic/sakina/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		BatchSize:      3,
		ReportInterval: 3,
		MaxAttempts:    2,
		RetryDelay:     time.Millisecond,
	}
}

func TestReembedder_Run(t *testing.T) {
	repo := setupTestDB(t)
	addChunks(t, repo, "doc", 10)
	ctx := context.Background()

	var buf bytes.Buffer
	embedder := mock.NewMockEmbedder().WithEmbedTextsFunc(unnormalized)
	processed, err := NewReembedder(repo, embedder, testConfig(), &buf).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, processed)

	// 10 chunks in batches of 3
	assert.Equal(t, 4, embedder.CallCount())

	err = repo.ForEachChunk(ctx, func(chunk *core.EvidenceChunk) error {
		assert.InDeltaSlice(t, []float32{1.0 / 3, 2.0 / 3, 2.0 / 3}, chunk.Vector, 1e-6)
		return nil
	})
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Starting reembedding of 10 chunks")
	assert.Contains(t, output, "Reembedding complete")
}

func TestReembedder_EmptyStore(t *testing.T) {
	repo := setupTestDB(t)

	var buf bytes.Buffer
	embedder := mock.NewMockEmbedder()
	processed, err := NewReembedder(repo, embedder, nil, &buf).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, processed)
	assert.Zero(t, embedder.CallCount())
	assert.Contains(t, buf.String(), "No chunks found")
}

func TestReembedder_StopsOnFailedBatch(t *testing.T) {
	repo := setupTestDB(t)
	addChunks(t, repo, "doc", 7)

	calls := 0
	embedder := mock.NewMockEmbedder().WithEmbedTextsFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("quota exceeded")
		}
		return unnormalized(ctx, texts)
	})

	var buf bytes.Buffer
	processed, err := NewReembedder(repo, embedder, testConfig(), &buf).Run(context.Background())
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Equal(t, 3, processed)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, DefaultBatchSize, config.BatchSize)
	assert.Equal(t, 3, config.MaxAttempts)
	assert.Positive(t, config.RetryDelay)
}
