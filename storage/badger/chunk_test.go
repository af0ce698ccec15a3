package badger

import (
	"context"
	"testing"

	"github.com/poiesic/sakina/core"
	"github.com/poiesic/sakina/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunkRepo(t *testing.T) storage.ChunkRepository {
	t.Helper()
	chunkRepo, qaRepo, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		qaRepo.Close()
		chunkRepo.Close()
		backend.Close()
	})
	return chunkRepo
}

func testChunk(docID string, index int, vector []float32) *core.EvidenceChunk {
	return &core.EvidenceChunk{
		TopicName:      "Topic",
		SearchText:     "Topic body",
		DisclosureText: `"Verily, with hardship comes ease." [Quran 94:6]`,
		EvidenceItems: []core.EvidenceItem{
			{Type: core.EvidenceTypeScripture, Text: "Verily, with hardship comes ease.", Reference: "Quran 94:6"},
		},
		SourceDocumentID: docID,
		ChunkIndex:       index,
		Vector:           vector,
	}
}

func TestUpsertChunks_AssignsSequence(t *testing.T) {
	repo := newTestChunkRepo(t)
	ctx := context.Background()

	first := testChunk("doc", 0, []float32{1, 0})
	second := testChunk("doc", 1, []float32{0, 1})
	require.NoError(t, repo.UpsertChunks(ctx, first, second))

	assert.NotZero(t, first.Sequence)
	assert.Greater(t, second.Sequence, first.Sequence)
	assert.False(t, first.InsertedAt.IsZero())
	assert.Equal(t, first.InsertedAt, first.UpdatedAt)

	got, err := repo.GetChunk(ctx, second.Key())
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestUpsertChunks_ReplaceKeepsSequence(t *testing.T) {
	repo := newTestChunkRepo(t)
	ctx := context.Background()

	original := testChunk("doc", 0, []float32{1, 0})
	require.NoError(t, repo.UpsertChunks(ctx, original))

	replacement := testChunk("doc", 0, []float32{0, 1})
	replacement.TopicName = "Renamed"
	require.NoError(t, repo.UpsertChunks(ctx, replacement))

	assert.Equal(t, original.Sequence, replacement.Sequence)
	assert.Equal(t, original.InsertedAt, replacement.InsertedAt)

	got, err := repo.GetChunk(ctx, original.Key())
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.TopicName)

	count, err := repo.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpsertChunks_Invalid(t *testing.T) {
	repo := newTestChunkRepo(t)

	err := repo.UpsertChunks(context.Background(), testChunk("", 0, nil))
	assert.ErrorIs(t, err, core.ErrInvalidChunk)
}

func TestGetChunk_NotFound(t *testing.T) {
	repo := newTestChunkRepo(t)

	_, err := repo.GetChunk(context.Background(), core.ChunkKey{DocumentID: "doc", Index: 9})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentChunks_Namespaced(t *testing.T) {
	repo := newTestChunkRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertChunks(ctx,
		testChunk("doc", 1, nil),
		testChunk("doc", 0, nil),
		testChunk("doc-2", 0, nil),
		testChunk("doc", 2, nil),
	))

	chunks, err := repo.ListDocumentChunks(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, "doc", chunk.SourceDocumentID)
		assert.Equal(t, i, chunk.ChunkIndex)
	}

	deleted, err := repo.DeleteDocumentChunks(ctx, "doc", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	chunks, err = repo.ListDocumentChunks(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].ChunkIndex)

	other, err := repo.ListDocumentChunks(ctx, "doc-2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestDeleteChunks(t *testing.T) {
	repo := newTestChunkRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertChunks(ctx,
		testChunk("doc", 0, nil),
		testChunk("doc", 1, nil),
		testChunk("doc-2", 1, nil),
	))

	deleted, err := repo.DeleteChunks(ctx,
		core.ChunkKey{DocumentID: "doc", Index: 1},
		core.ChunkKey{DocumentID: "doc", Index: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = repo.GetChunk(ctx, core.ChunkKey{DocumentID: "doc", Index: 1})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = repo.GetChunk(ctx, core.ChunkKey{DocumentID: "doc", Index: 0})
	assert.NoError(t, err)
	_, err = repo.GetChunk(ctx, core.ChunkKey{DocumentID: "doc-2", Index: 1})
	assert.NoError(t, err)

	deleted, err = repo.DeleteChunks(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	_, err = repo.DeleteChunks(ctx, core.ChunkKey{DocumentID: ""})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestListChunkKeys(t *testing.T) {
	repo := newTestChunkRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertChunks(ctx, testChunk("b", 0, nil), testChunk("a", 1, nil), testChunk("a", 0, nil)))

	keys, err := repo.ListChunkKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.ChunkKey{
		{DocumentID: "a", Index: 0},
		{DocumentID: "a", Index: 1},
		{DocumentID: "b", Index: 0},
	}, keys)

	visited := 0
	err = repo.ForEachChunk(ctx, func(chunk *core.EvidenceChunk) error {
		visited++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, visited)
}

func TestQuery(t *testing.T) {
	repo := newTestChunkRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertChunks(ctx,
		testChunk("doc", 0, []float32{0, 0, 1}), // orthogonal
		testChunk("doc", 1, []float32{1, 0, 0}), // identical
		testChunk("doc", 2, []float32{3, 1, 0}), // close, not normalized
		testChunk("doc", 3, nil),                // not embedded
		testChunk("doc", 4, []float32{1, 0}),    // wrong dimension
	))

	results, err := repo.Query(ctx, []float32{1, 0, 0}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "doc#1", results[0].SourceID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, core.SourceKindChunk, results[0].SourceKind)
	assert.Equal(t, results[0].Score, results[0].Breakdown.Vector)
	assert.Equal(t, "Topic", results[0].Title)
	require.Len(t, results[0].Citations, 1)
	assert.Equal(t, "Quran 94:6", results[0].Citations[0].Reference)

	assert.Equal(t, "doc#2", results[1].SourceID)
	assert.InDelta(t, 3/3.1622776601683795, results[1].Score, 1e-6)
}

func TestQuery_TiesPreferEarlierInsertion(t *testing.T) {
	repo := newTestChunkRepo(t)
	ctx := context.Background()

	// Inserted in reverse key order so key order and insertion order differ
	require.NoError(t, repo.UpsertChunks(ctx, testChunk("z-doc", 0, []float32{1, 0})))
	require.NoError(t, repo.UpsertChunks(ctx, testChunk("a-doc", 0, []float32{2, 0})))

	results, err := repo.Query(ctx, []float32{1, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "z-doc#0", results[0].SourceID)
}

func TestQuery_NegativeSimilarityClamped(t *testing.T) {
	repo := newTestChunkRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertChunks(ctx, testChunk("doc", 0, []float32{-1, 0})))

	results, err := repo.Query(ctx, []float32{1, 0}, 5, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Score)
}

func TestQuery_InvalidArguments(t *testing.T) {
	repo := newTestChunkRepo(t)
	ctx := context.Background()

	_, err := repo.Query(ctx, []float32{1}, 0, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = repo.Query(ctx, []float32{0, 0}, 3, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestQuery_CancelledContext(t *testing.T) {
	repo := newTestChunkRepo(t)
	require.NoError(t, repo.UpsertChunks(context.Background(), testChunk("doc", 0, []float32{1})))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Query(ctx, []float32{1}, 1, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
