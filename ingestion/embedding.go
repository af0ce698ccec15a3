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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/sakina/ai"
	"github.com/poiesic/sakina/core"
	"github.com/poiesic/sakina/storage"
)

// embeddingProcessor embeds a chunk's search text and upserts it into the
// chunk repository, retrying with backoff.
type embeddingProcessor struct {
	chunkRepository storage.ChunkRepository
	embedder        ai.Embedder
	maxAttempts     int
	retryDelay      time.Duration
	logger          *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(chunkRepository storage.ChunkRepository, embedder ai.Embedder, maxAttempts int, retryDelay time.Duration, logger *slog.Logger) (processor, error) {
	if chunkRepository == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		chunkRepository: chunkRepository,
		embedder:        embedder,
		maxAttempts:     maxAttempts,
		retryDelay:      retryDelay,
		logger:          logger.With("processor", "embeddings"),
	}, nil
}

// process embeds and stores one chunk. A vector obtained on an earlier
// attempt is reused when only the store write failed.
func (ep *embeddingProcessor) process(ctx context.Context, chunk *core.EvidenceChunk) (int, error) {
	var vector []float32
	attempts, err := ai.RetryWithBackoff(ctx, func(ctx context.Context) error {
		if vector == nil {
			v, err := ep.embedder.EmbedText(ctx, chunk.SearchText)
			if err != nil {
				return fmt.Errorf("embedding chunk: %w", err)
			}
			if len(v) == 0 {
				return ai.ErrEmptyEmbedding
			}
			vector = v
		}
		chunk.Vector = vector
		if err := ep.chunkRepository.UpsertChunks(ctx, chunk); err != nil {
			return fmt.Errorf("storing chunk: %w", err)
		}
		return nil
	}, ep.maxAttempts, ep.retryDelay)

	if err != nil {
		ep.logger.Warn("chunk failed", "chunk", chunk.Key(), "attempts", attempts, "err", err)
		return attempts, err
	}
	ep.logger.Debug("chunk stored", "chunk", chunk.Key(), "attempts", attempts)
	return attempts, nil
}
