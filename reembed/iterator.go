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

	"github.com/poiesic/sakina/core"
	"github.com/poiesic/sakina/storage"
)

const (
	// DefaultBatchSize is the default number of chunks to fetch in each batch
	DefaultBatchSize = 32
)

// ChunkIterator iterates over all stored chunks in batches.
// The set of keys is captured up front, so chunks rewritten while iterating
// are neither skipped nor visited twice.
type ChunkIterator struct {
	repo      storage.ChunkRepository
	batchSize int
}

// NewChunkIterator creates a new chunk iterator.
// batchSize: number of chunks to fetch in each batch (must be > 0)
func NewChunkIterator(repo storage.ChunkRepository, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ChunkIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each batch of chunks in key order.
// Iteration stops on first error from fn or when all chunks are processed.
// Context cancellation is checked between batches.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func([]*core.EvidenceChunk) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	keys, err := it.repo.ListChunkKeys(ctx)
	if err != nil {
		return err
	}

	for start := 0; start < len(keys); start += it.batchSize {
		end := min(start+it.batchSize, len(keys))

		batch := make([]*core.EvidenceChunk, 0, end-start)
		for _, key := range keys[start:end] {
			chunk, err := it.repo.GetChunk(ctx, key)
			if err != nil {
				return err
			}
			batch = append(batch, chunk)
		}

		if err := fn(batch); err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
