package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/sakina/core"
	"github.com/poiesic/sakina/storage"
	"github.com/poiesic/sakina/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) storage.ChunkRepository {
	t.Helper()
	chunkRepo, qaRepo, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		qaRepo.Close()
		chunkRepo.Close()
		backend.Close()
	})
	return chunkRepo
}

func addChunks(t *testing.T, repo storage.ChunkRepository, docID string, n int) {
	t.Helper()
	chunks := make([]*core.EvidenceChunk, n)
	for i := range chunks {
		chunks[i] = &core.EvidenceChunk{
			TopicName:        fmt.Sprintf("Topic %d", i),
			SearchText:       fmt.Sprintf("Topic %d\nbody", i),
			SourceDocumentID: docID,
			ChunkIndex:       i,
			Vector:           []float32{1, 0},
		}
	}
	require.NoError(t, repo.UpsertChunks(context.Background(), chunks...))
}

func TestChunkIterator_Batches(t *testing.T) {
	tests := []struct {
		name      string
		chunks    int
		batchSize int
		want      []int
	}{
		{"empty store", 0, 3, nil},
		{"exact multiple", 6, 3, []int{3, 3}},
		{"remainder", 7, 3, []int{3, 3, 1}},
		{"default batch size", 5, 0, []int{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := setupTestDB(t)
			addChunks(t, repo, "doc", tt.chunks)

			var sizes []int
			err := NewChunkIterator(repo, tt.batchSize).ForEach(context.Background(), func(chunks []*core.EvidenceChunk) error {
				sizes = append(sizes, len(chunks))
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sizes)
		})
	}
}

func TestChunkIterator_KeyOrder(t *testing.T) {
	repo := setupTestDB(t)
	addChunks(t, repo, "b-doc", 2)
	addChunks(t, repo, "a-doc", 2)

	var keys []string
	err := NewChunkIterator(repo, 3).ForEach(context.Background(), func(chunks []*core.EvidenceChunk) error {
		for _, c := range chunks {
			keys = append(keys, c.Key().String())
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a-doc#0", "a-doc#1", "b-doc#0", "b-doc#1"}, keys)
}

func TestChunkIterator_StopsOnError(t *testing.T) {
	repo := setupTestDB(t)
	addChunks(t, repo, "doc", 5)

	boom := errors.New("boom")
	calls := 0
	err := NewChunkIterator(repo, 2).ForEach(context.Background(), func(chunks []*core.EvidenceChunk) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestChunkIterator_Cancelled(t *testing.T) {
	repo := setupTestDB(t)
	addChunks(t, repo, "doc", 4)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := NewChunkIterator(repo, 2).ForEach(ctx, func(chunks []*core.EvidenceChunk) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
