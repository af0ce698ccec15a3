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


package reembed

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/poiesic/sakina/ai"
	"github.com/poiesic/sakina/core"
	"github.com/poiesic/sakina/storage"
)

// BatchProcessor handles embedding generation and storage for chunk batches.
type BatchProcessor struct {
	repo           storage.ChunkRepository
	embedder       ai.Embedder
	maxAttempts    int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxAttempts: maximum number of attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.ChunkRepository, embedder ai.Embedder, maxAttempts int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxAttempts:    maxAttempts,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds the search text of every chunk in one call and stores the
// unit-length vectors.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.EvidenceChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.SearchText
	}

	var embeddings [][]float32
	attempts, err := ai.RetryWithBackoff(ctx, func(ctx context.Context) error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxAttempts, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", attempts, err)
	}

	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(embeddings))
	}

	for i, chunk := range chunks {
		if len(embeddings[i]) == 0 {
			return fmt.Errorf("chunk %s: %w", chunk.Key(), ai.ErrEmptyEmbedding)
		}
		chunk.Vector = normalizeVector(embeddings[i])
	}

	if err := bp.repo.UpsertChunks(ctx, chunks...); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}

	return nil
}

// normalizeVector scales v to unit length. A zero vector is returned as a
// zero vector of the same length.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}

	result := make([]float32, len(v))
	if sum == 0 {
		return result
	}
	scale := 1 / math.Sqrt(sum)
	for i, f := range v {
		result[i] = float32(float64(f) * scale)
	}
	return result
}
