package reembed

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/sakina/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unnormalized returns vectors of magnitude 3 for every text.
func unnormalized(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{1.0, 2.0, 2.0}
	}
	return result, nil
}

func TestBatchProcessor_Process(t *testing.T) {
	repo := setupTestDB(t)
	addChunks(t, repo, "doc", 2)
	ctx := context.Background()

	chunks, err := repo.ListDocumentChunks(ctx, "doc")
	require.NoError(t, err)
	sequences := []uint64{chunks[0].Sequence, chunks[1].Sequence}

	embedder := mock.NewMockEmbedder().WithEmbedTextsFunc(unnormalized)
	processor := NewBatchProcessor(repo, embedder, 3, time.Millisecond)
	require.NoError(t, processor.Process(ctx, chunks))

	updated, err := repo.ListDocumentChunks(ctx, "doc")
	require.NoError(t, err)
	for i, chunk := range updated {
		assert.InDeltaSlice(t, []float32{1.0 / 3, 2.0 / 3, 2.0 / 3}, chunk.Vector, 1e-6)
		assert.Equal(t, sequences[i], chunk.Sequence)
	}
	assert.Equal(t, []string{"Topic 0\nbody", "Topic 1\nbody"}, embedder.Texts())
}

func TestBatchProcessor_Empty(t *testing.T) {
	repo := setupTestDB(t)
	embedder := mock.NewMockEmbedder()

	require.NoError(t, NewBatchProcessor(repo, embedder, 3, time.Millisecond).Process(context.Background(), nil))
	assert.Zero(t, embedder.CallCount())
}

func TestBatchProcessor_RetriesTransientFailure(t *testing.T) {
	repo := setupTestDB(t)
	addChunks(t, repo, "doc", 1)
	ctx := context.Background()

	var calls atomic.Int32
	embedder := mock.NewMockEmbedder().WithEmbedTextsFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("temporary")
		}
		return unnormalized(ctx, texts)
	})

	chunks, err := repo.ListDocumentChunks(ctx, "doc")
	require.NoError(t, err)
	require.NoError(t, NewBatchProcessor(repo, embedder, 3, time.Millisecond).Process(ctx, chunks))
	assert.Equal(t, int32(2), calls.Load())
}

func TestBatchProcessor_Errors(t *testing.T) {
	tests := []struct {
		name    string
		embed   func(ctx context.Context, texts []string) ([][]float32, error)
		wantErr string
	}{
		{
			name: "persistent failure",
			embed: func(ctx context.Context, texts []string) ([][]float32, error) {
				return nil, errors.New("provider down")
			},
			wantErr: "provider down",
		},
		{
			name: "count mismatch",
			embed: func(ctx context.Context, texts []string) ([][]float32, error) {
				return [][]float32{{1}}, nil
			},
			wantErr: "embedding count mismatch",
		},
		{
			name: "empty vector",
			embed: func(ctx context.Context, texts []string) ([][]float32, error) {
				return make([][]float32, len(texts)), nil
			},
			wantErr: "no vector",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := setupTestDB(t)
			addChunks(t, repo, "doc", 2)
			ctx := context.Background()

			chunks, err := repo.ListDocumentChunks(ctx, "doc")
			require.NoError(t, err)

			embedder := mock.NewMockEmbedder().WithEmbedTextsFunc(tt.embed)
			err = NewBatchProcessor(repo, embedder, 2, time.Millisecond).Process(ctx, chunks)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		expected []float32
	}{
		{"unit vector remains unchanged", []float32{1, 0, 0}, []float32{1, 0, 0}},
		{"scale non-unit vector", []float32{3, 4}, []float32{0.6, 0.8}},
		{"negative values", []float32{-1, 1}, []float32{float32(-1 / math.Sqrt2), float32(1 / math.Sqrt2)}},
		{"zero vector", []float32{0, 0}, []float32{0, 0}},
		{"empty", []float32{}, []float32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeVector(tt.input)
			require.Len(t, got, len(tt.expected))
			assert.InDeltaSlice(t, tt.expected, got, 1e-6)
		})
	}
}
