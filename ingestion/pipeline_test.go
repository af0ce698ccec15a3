package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/sakina/ai/mock"
	"github.com/poiesic/sakina/core"
	"github.com/poiesic/sakina/storage"
	"github.com/poiesic/sakina/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threeTopics = `# Sadness (Huzn)
Grief visits every heart.

Evidence:
"Verily, with hardship comes ease." [Quran 94:6]

# Anxiety (Qalaq)
Worry about tomorrow.

Evidence:
"Truly, in the remembrance of Allah do hearts find rest." [Quran 13:28]

# Anger (Ghadab)
Anger clouds judgement.

Evidence:
The Prophet said: "Do not become angry." (Bukhari 6116)
`

type testStores struct {
	chunks  storage.ChunkRepository
	reports storage.ReportRepository
}

func setupTestRepositories(t *testing.T) testStores {
	t.Helper()
	chunkRepo, qaRepo, reportRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		qaRepo.Close()
		chunkRepo.Close()
		backend.Close()
	})
	return testStores{chunks: chunkRepo, reports: reportRepo}
}

func newTestPipeline(t *testing.T, stores testStores, embedder *mock.MockEmbedder, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{
		WithPoolSize(2),
		WithRetryDelay(time.Millisecond),
		WithReportRepository(stores.reports),
	}, opts...)
	p, err := NewPipeline(stores.chunks, mock.NewMockProviderWithEmbedder(embedder), opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestNewPipeline_Validation(t *testing.T) {
	stores := setupTestRepositories(t)

	_, err := NewPipeline(nil, mock.NewMockProvider())
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	_, err = NewPipeline(stores.chunks, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
}

func TestNewPipeline_PoolSize(t *testing.T) {
	stores := setupTestRepositories(t)

	p := newTestPipeline(t, stores, mock.NewMockEmbedder(), WithPoolSize(0))
	assert.Equal(t, 1, p.PoolSize())
}

func TestIngest_StoresEveryChunk(t *testing.T) {
	stores := setupTestRepositories(t)
	embedder := mock.NewMockEmbedder()
	p := newTestPipeline(t, stores, embedder)
	ctx := context.Background()

	report, err := p.Ingest(ctx, threeTopics, "handbook", nil)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "handbook", report.DocumentID)
	assert.Equal(t, 3, report.ChunksTotal)
	assert.Equal(t, 3, report.ChunksCreated)
	assert.Zero(t, report.ChunksFailed)
	assert.False(t, report.Resubmission)
	assert.Equal(t, 3, embedder.CallCount())

	chunks, err := stores.chunks.ListDocumentChunks(ctx, "handbook")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Sadness", chunks[0].TopicName)
	assert.Equal(t, mock.DeterministicVector(chunks[0].SearchText, mock.DefaultDimension), chunks[0].Vector)

	saved, err := p.LastReport(ctx, "handbook")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, report.RunID, saved.RunID)
}

func TestIngest_InvalidDocumentID(t *testing.T) {
	stores := setupTestRepositories(t)
	p := newTestPipeline(t, stores, mock.NewMockEmbedder())

	_, err := p.Ingest(context.Background(), threeTopics, "", nil)
	assert.ErrorIs(t, err, core.ErrEmptyDocumentID)
}

func TestIngest_FailedChunksAreReported(t *testing.T) {
	stores := setupTestRepositories(t)
	embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		if strings.HasPrefix(text, "Anxiety") {
			return nil, errors.New("provider unavailable")
		}
		return mock.DeterministicVector(text, 8), nil
	})
	p := newTestPipeline(t, stores, embedder, WithMaxAttempts(2))
	ctx := context.Background()

	report, err := p.Ingest(ctx, threeTopics, "handbook", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, report.ChunksCreated)
	assert.Equal(t, 1, report.ChunksFailed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Failures[0].Index)
	assert.Equal(t, 2, report.Failures[0].Attempts)
	assert.Contains(t, report.Failures[0].Error, "provider unavailable")
	assert.Equal(t, []int{1}, report.FailedIndices())

	// 2 successes + 2 attempts for the failing chunk
	assert.Equal(t, 4, embedder.CallCount())

	_, err = stores.chunks.GetChunk(ctx, core.ChunkKey{DocumentID: "handbook", Index: 1})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIngest_TransientFailureRetried(t *testing.T) {
	stores := setupTestRepositories(t)
	var failures atomic.Int32
	embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		if strings.HasPrefix(text, "Anger") && failures.Add(1) == 1 {
			return nil, errors.New("timeout")
		}
		return mock.DeterministicVector(text, 8), nil
	})
	p := newTestPipeline(t, stores, embedder)

	report, err := p.Ingest(context.Background(), threeTopics, "handbook", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, report.ChunksCreated)
	assert.Empty(t, report.Failures)
}

func TestResubmit_OnlyFailedIndices(t *testing.T) {
	stores := setupTestRepositories(t)
	var broken atomic.Bool
	broken.Store(true)
	embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		if broken.Load() && strings.HasPrefix(text, "Anger") {
			return nil, errors.New("provider unavailable")
		}
		return mock.DeterministicVector(text, 8), nil
	})
	p := newTestPipeline(t, stores, embedder, WithMaxAttempts(1))
	ctx := context.Background()

	first, err := p.Ingest(ctx, threeTopics, "handbook", nil)
	require.NoError(t, err)
	require.Equal(t, []int{2}, first.FailedIndices())

	broken.Store(false)
	embedder.Reset()
	embedder.WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return mock.DeterministicVector(text, 8), nil
	})

	second, err := p.Resubmit(ctx, threeTopics, "handbook", first.FailedIndices(), nil)
	require.NoError(t, err)
	assert.True(t, second.Resubmission)
	assert.Equal(t, 3, second.ChunksTotal)
	assert.Equal(t, 1, second.ChunksCreated)
	assert.Empty(t, second.Failures)
	assert.Equal(t, 1, embedder.CallCount())
	assert.True(t, strings.HasPrefix(embedder.Texts()[0], "Anger"))

	count, err := stores.chunks.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	saved, err := p.LastReport(ctx, "handbook")
	require.NoError(t, err)
	assert.Equal(t, second.RunID, saved.RunID)
}

func TestResubmit_InvalidIndices(t *testing.T) {
	stores := setupTestRepositories(t)
	p := newTestPipeline(t, stores, mock.NewMockEmbedder())
	ctx := context.Background()

	_, err := p.Resubmit(ctx, threeTopics, "handbook", nil, nil)
	assert.ErrorIs(t, err, ErrNothingToResubmit)

	_, err = p.Resubmit(ctx, threeTopics, "handbook", []int{0, 3}, nil)
	assert.ErrorIs(t, err, ErrChunkIndexOutOfRange)
}

func TestIngest_SupersedesLongerVersion(t *testing.T) {
	stores := setupTestRepositories(t)
	p := newTestPipeline(t, stores, mock.NewMockEmbedder())
	ctx := context.Background()

	_, err := p.Ingest(ctx, threeTopics, "handbook", nil)
	require.NoError(t, err)

	shorter := threeTopics[:strings.Index(threeTopics, "# Anxiety")]
	report, err := p.Ingest(ctx, shorter, "handbook", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ChunksCreated)

	chunks, err := stores.chunks.ListDocumentChunks(ctx, "handbook")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Sadness", chunks[0].TopicName)
}

func TestIngest_FailedChunkStaleVersion(t *testing.T) {
	var failAnxiety atomic.Bool
	embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		if failAnxiety.Load() && strings.HasPrefix(text, "Anxiety") {
			return nil, errors.New("provider unavailable")
		}
		return mock.DeterministicVector(text, 8), nil
	})
	key := core.ChunkKey{DocumentID: "handbook", Index: 1}

	tests := []struct {
		name      string
		reingest  string
		wantStale bool
	}{
		{"changed content is removed", strings.Replace(threeTopics, "Worry about tomorrow.", "Worry about the future.", 1), true},
		{"unchanged content is kept", threeTopics, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := setupTestRepositories(t)
			p := newTestPipeline(t, stores, embedder, WithMaxAttempts(1))
			ctx := context.Background()

			failAnxiety.Store(false)
			_, err := p.Ingest(ctx, threeTopics, "handbook", nil)
			require.NoError(t, err)

			failAnxiety.Store(true)
			report, err := p.Ingest(ctx, tt.reingest, "handbook", nil)
			require.NoError(t, err)
			require.Equal(t, []int{1}, report.FailedIndices())

			chunk, err := stores.chunks.GetChunk(ctx, key)
			if tt.wantStale {
				assert.ErrorIs(t, err, storage.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, chunk.SearchText, "Worry about tomorrow.")
		})
	}
}

func TestIngest_DocumentsAreNamespaced(t *testing.T) {
	stores := setupTestRepositories(t)
	p := newTestPipeline(t, stores, mock.NewMockEmbedder())
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []string{"doc-a", "doc-b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Ingest(ctx, threeTopics, id, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, id := range []string{"doc-a", "doc-b"} {
		chunks, err := stores.chunks.ListDocumentChunks(ctx, id)
		require.NoError(t, err)
		assert.Len(t, chunks, 3, id)
	}
}

func TestIngest_BoundedConcurrency(t *testing.T) {
	stores := setupTestRepositories(t)
	var active, peak atomic.Int32
	embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return mock.DeterministicVector(text, 8), nil
	})
	p := newTestPipeline(t, stores, embedder)

	var doc strings.Builder
	for _, topic := range []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot"} {
		doc.WriteString("# " + topic + "\nBody text.\n\n")
	}

	report, err := p.Ingest(context.Background(), doc.String(), "handbook", nil)
	require.NoError(t, err)
	assert.Equal(t, 6, report.ChunksCreated)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestIngest_Progress(t *testing.T) {
	stores := setupTestRepositories(t)
	p := newTestPipeline(t, stores, mock.NewMockEmbedder(), WithProgressInterval(2))

	type call struct{ processed, total int }
	var calls []call
	_, err := p.Ingest(context.Background(), threeTopics, "handbook", func(processed, total int, eta float64) {
		assert.GreaterOrEqual(t, eta, 0.0)
		calls = append(calls, call{processed, total})
	})
	require.NoError(t, err)

	assert.Equal(t, []call{{2, 3}, {3, 3}}, calls)
}

func TestIngest_CancelledContext(t *testing.T) {
	stores := setupTestRepositories(t)
	p := newTestPipeline(t, stores, mock.NewMockEmbedder())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := p.Ingest(ctx, threeTopics, "handbook", nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 3, report.ChunksFailed)
}

func TestChunks_Preview(t *testing.T) {
	stores := setupTestRepositories(t)
	embedder := mock.NewMockEmbedder()
	p := newTestPipeline(t, stores, embedder)

	chunks := p.Chunks(threeTopics, "handbook")
	assert.Len(t, chunks, 3)
	assert.Zero(t, embedder.CallCount())
}
