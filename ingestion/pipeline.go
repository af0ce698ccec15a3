// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/sakina/ai"
	"github.com/poiesic/sakina/core"
	"github.com/poiesic/sakina/evidence"
	"github.com/poiesic/sakina/storage"
)

const (
	defaultMaxAttempts      = 3
	defaultRetryDelay       = 500 * time.Millisecond
	defaultProgressInterval = 10
)

// Pipeline turns source documents into embedded, stored evidence chunks.
// Chunks are embedded by a fixed-size worker pool, which bounds the number
// of concurrent calls to the embedding service across all runs sharing the
// pipeline.
type Pipeline struct {
	chunkRepository  storage.ChunkRepository
	reportRepository storage.ReportRepository
	chunker          *evidence.Chunker
	pool             *ants.Pool
	embeddingProc    processor
	maxAttempts      int
	retryDelay       time.Duration
	progressInterval int
	logger           *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithMaxAttempts sets how many times a chunk is tried before it is
// recorded as failed. Default is 3.
func WithMaxAttempts(attempts int) Option {
	return func(p *Pipeline) error {
		if attempts < 1 {
			attempts = 1
		}
		p.maxAttempts = attempts
		return nil
	}
}

// WithRetryDelay sets the base backoff delay between attempts.
// Default is 500ms.
func WithRetryDelay(delay time.Duration) Option {
	return func(p *Pipeline) error {
		p.retryDelay = max(delay, 0)
		return nil
	}
}

// WithProgressInterval sets how many chunks are processed between progress
// callbacks. Default is 10.
func WithProgressInterval(interval int) Option {
	return func(p *Pipeline) error {
		if interval < 1 {
			interval = 1
		}
		p.progressInterval = interval
		return nil
	}
}

// WithReportRepository persists the report of every run.
func WithReportRepository(repository storage.ReportRepository) Option {
	return func(p *Pipeline) error {
		p.reportRepository = repository
		return nil
	}
}

// WithChunker sets the chunker used to split documents.
func WithChunker(chunker *evidence.Chunker) Option {
	return func(p *Pipeline) error {
		if chunker != nil {
			p.chunker = chunker
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	chunkRepository storage.ChunkRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if chunkRepository == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		chunkRepository:  chunkRepository,
		pool:             pool,
		maxAttempts:      defaultMaxAttempts,
		retryDelay:       defaultRetryDelay,
		progressInterval: defaultProgressInterval,
		logger:           slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	p.logger = p.logger.With("component", "ingestion")
	if p.chunker == nil {
		p.chunker = evidence.NewChunker(evidence.WithChunkerLogger(p.logger))
	}

	// Create the processor after options are applied so it gets final config
	embeddingProc, err := newEmbeddingProcessor(chunkRepository, provider.Embedder(), p.maxAttempts, p.retryDelay, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.embeddingProc = embeddingProc

	return p, nil
}

// PoolSize returns the number of workers embedding chunks.
func (p *Pipeline) PoolSize() int {
	return p.pool.Cap()
}

// Chunks splits a document the same way Ingest does without embedding or
// storing anything.
func (p *Pipeline) Chunks(documentText, documentID string) []core.EvidenceChunk {
	return p.chunker.CreateChunks(documentText, documentID)
}

// Ingest chunks a document, then embeds and stores every chunk.
//
// A chunk that still fails after the configured attempts is recorded in the
// report and the run continues. Chunks left over from an earlier, longer
// version of the document are removed, as are earlier versions of failed
// chunks whose content has since changed. The returned error is non-nil only
// when the document ID is invalid or ctx ends before the run completes; in
// the latter case the partial report is returned too.
func (p *Pipeline) Ingest(ctx context.Context, documentText, documentID string, onProgress ProgressFunc) (*core.IngestionReport, error) {
	if err := core.ValidateDocumentID(documentID); err != nil {
		return nil, err
	}

	chunks := p.chunker.CreateChunks(documentText, documentID)
	report, err := p.run(ctx, chunks, documentID, false, onProgress)
	if err != nil {
		return report, err
	}

	// Supersede chunks from a previous, longer version of the document
	deleted, err := p.chunkRepository.DeleteDocumentChunks(ctx, documentID, len(chunks))
	if err != nil {
		p.logger.Error("error removing superseded chunks", "document", documentID, "err", err)
	} else if deleted > 0 {
		p.logger.Info("removed superseded chunks", "document", documentID, "chunks", deleted)
	}
	p.removeStaleChunks(ctx, chunks, report.Failures)

	p.saveReport(ctx, report)
	return report, nil
}

// removeStaleChunks deletes stored chunks at failed indices when they hold an
// earlier version of the content, so outdated text cannot be matched until
// the index is resubmitted. An unchanged earlier version is kept.
func (p *Pipeline) removeStaleChunks(ctx context.Context, chunks []core.EvidenceChunk, failures []core.ChunkFailure) {
	var stale []core.ChunkKey
	for _, f := range failures {
		fresh := chunks[f.Index]
		stored, err := p.chunkRepository.GetChunk(ctx, fresh.Key())
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				p.logger.Error("error reading chunk", "chunk", fresh.Key(), "err", err)
			}
			continue
		}
		if stored.SearchText != fresh.SearchText || stored.DisclosureText != fresh.DisclosureText {
			stale = append(stale, fresh.Key())
		}
	}
	if len(stale) == 0 {
		return
	}

	deleted, err := p.chunkRepository.DeleteChunks(ctx, stale...)
	if err != nil {
		p.logger.Error("error removing stale chunks", "document", chunks[0].SourceDocumentID, "err", err)
		return
	}
	p.logger.Info("removed stale versions of failed chunks", "document", chunks[0].SourceDocumentID, "chunks", deleted)
}

// Resubmit re-chunks a document and processes only the given chunk indices,
// typically the failures of an earlier run. Other stored chunks of the
// document are left untouched.
func (p *Pipeline) Resubmit(ctx context.Context, documentText, documentID string, indices []int, onProgress ProgressFunc) (*core.IngestionReport, error) {
	if err := core.ValidateDocumentID(documentID); err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, ErrNothingToResubmit
	}

	chunks := p.chunker.CreateChunks(documentText, documentID)

	wanted := slices.Clone(indices)
	slices.Sort(wanted)
	wanted = slices.Compact(wanted)

	selected := make([]core.EvidenceChunk, 0, len(wanted))
	for _, index := range wanted {
		if index < 0 || index >= len(chunks) {
			return nil, fmt.Errorf("%w: %d (document has %d chunks)", ErrChunkIndexOutOfRange, index, len(chunks))
		}
		selected = append(selected, chunks[index])
	}

	report, err := p.run(ctx, selected, documentID, true, onProgress)
	if err != nil {
		return report, err
	}
	report.ChunksTotal = len(chunks)

	p.saveReport(ctx, report)
	return report, nil
}

// run processes chunks on the worker pool and builds the report.
func (p *Pipeline) run(ctx context.Context, chunks []core.EvidenceChunk, documentID string, resubmission bool, onProgress ProgressFunc) (*core.IngestionReport, error) {
	report := &core.IngestionReport{
		RunID:        uuid.NewString(),
		DocumentID:   documentID,
		ChunksTotal:  len(chunks),
		Resubmission: resubmission,
		StartedAt:    time.Now().UTC(),
	}
	logger := p.logger.With("document", documentID, "run", report.RunID)
	logger.Info("ingesting document", "chunks", len(chunks), "resubmission", resubmission, "workers", p.pool.Cap())

	tracker := newProgressTracker(len(chunks), p.progressInterval, onProgress)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	record := func(index, attempts int, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Failures = append(report.Failures, core.ChunkFailure{
				Index:    index,
				Attempts: attempts,
				Error:    err.Error(),
			})
		} else {
			report.ChunksCreated++
		}
	}

	for i := range chunks {
		chunk := &chunks[i]
		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			attempts, err := p.embeddingProc.process(ctx, chunk)
			record(chunk.ChunkIndex, attempts, err)
			tracker.done()
		})
		if submitErr != nil {
			wg.Done()
			record(chunk.ChunkIndex, 0, fmt.Errorf("submitting chunk: %w", submitErr))
			tracker.done()
		}
	}
	wg.Wait()

	slices.SortFunc(report.Failures, func(a, b core.ChunkFailure) int {
		return cmp.Compare(a.Index, b.Index)
	})
	report.ChunksFailed = len(report.Failures)
	report.FinishedAt = time.Now().UTC()

	logger.Info("ingestion finished",
		"created", report.ChunksCreated,
		"failed", report.ChunksFailed,
		"elapsed", report.FinishedAt.Sub(report.StartedAt))

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("ingestion interrupted: %w", err)
	}
	return report, nil
}

func (p *Pipeline) saveReport(ctx context.Context, report *core.IngestionReport) {
	if p.reportRepository == nil {
		return
	}
	if err := p.reportRepository.SaveReport(ctx, report); err != nil {
		p.logger.Error("error saving ingestion report", "document", report.DocumentID, "err", err)
	}
}

// LastReport returns the most recent persisted report for a document, or
// nil when there is none or no report repository is configured.
func (p *Pipeline) LastReport(ctx context.Context, documentID string) (*core.IngestionReport, error) {
	if p.reportRepository == nil {
		return nil, nil
	}
	return p.reportRepository.LoadReport(ctx, documentID)
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
