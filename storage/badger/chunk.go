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


package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/sakina/core"
	"github.com/poiesic/sakina/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
// Similarity search is a brute-force cosine scan over every stored vector.
type ChunkRepository struct {
	backend *Backend
	seq     *badger.Sequence
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (storage.ChunkRepository, error) {
	return newChunkRepository(backend)
}

func newChunkRepository(backend *Backend) (*ChunkRepository, error) {
	seq, err := backend.GetSequence(chunkSeq)
	if err != nil {
		return nil, err
	}
	return &ChunkRepository{
		backend: backend,
		seq:     seq,
	}, nil
}

// Close releases the sequence.
func (r *ChunkRepository) Close() error {
	return r.seq.Release()
}

// UpsertChunks inserts or replaces chunks by key.
func (r *ChunkRepository) UpsertChunks(ctx context.Context, chunks ...*core.EvidenceChunk) error {
	for _, chunk := range chunks {
		if err := core.ValidateEvidenceChunk(chunk); err != nil {
			return err
		}
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, chunk := range chunks {
			key := makeChunkKey(chunk.Key())

			old, err := readChunk(tx, key)
			if err != nil {
				return err
			}
			if old != nil {
				chunk.Sequence = old.Sequence
				chunk.InsertedAt = old.InsertedAt
			} else {
				if chunk.Sequence, err = nextSequence(r.seq); err != nil {
					return err
				}
				chunk.InsertedAt = now
			}
			chunk.UpdatedAt = now

			if err := tx.Set(key, storage.MarshalEvidenceChunk(chunk)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetChunk retrieves a single chunk.
func (r *ChunkRepository) GetChunk(ctx context.Context, key core.ChunkKey) (*core.EvidenceChunk, error) {
	var chunk *core.EvidenceChunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		chunk, err = readChunk(tx, makeChunkKey(key))
		if err != nil {
			return err
		}
		if chunk == nil {
			return fmt.Errorf("%w: chunk %s", storage.ErrNotFound, key)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// ListDocumentChunks returns a document's chunks ordered by index.
func (r *ChunkRepository) ListDocumentChunks(ctx context.Context, documentID string) ([]*core.EvidenceChunk, error) {
	if err := core.ValidateDocumentID(documentID); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}

	var chunks []*core.EvidenceChunk
	err := r.scan(ctx, makeDocumentChunkPrefix(documentID), func(chunk *core.EvidenceChunk) error {
		chunks = append(chunks, chunk)
		return nil
	})
	return chunks, err
}

// DeleteDocumentChunks removes a document's chunks with index >= fromIndex.
func (r *ChunkRepository) DeleteDocumentChunks(ctx context.Context, documentID string, fromIndex int) (int, error) {
	if err := core.ValidateDocumentID(documentID); err != nil {
		return 0, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	if fromIndex < 0 {
		fromIndex = 0
	}

	deleted := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeDocumentChunkPrefix(documentID)
		iter := tx.NewIterator(opts)

		var keys [][]byte
		start := makeChunkKey(core.ChunkKey{DocumentID: documentID, Index: fromIndex})
		for iter.Seek(start); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		deleted = len(keys)
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// DeleteChunks removes the chunks with the given keys. Missing keys are
// ignored. Returns how many chunks were removed.
func (r *ChunkRepository) DeleteChunks(ctx context.Context, keys ...core.ChunkKey) (int, error) {
	for _, key := range keys {
		if err := core.ValidateDocumentID(key.DocumentID); err != nil {
			return 0, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}

	deleted := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range keys {
			k := makeChunkKey(key)
			if _, err := tx.Get(k); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			if err := tx.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// ForEachChunk calls fn for every stored chunk in key order.
func (r *ChunkRepository) ForEachChunk(ctx context.Context, fn func(chunk *core.EvidenceChunk) error) error {
	return r.scan(ctx, []byte(chunkPrefix), fn)
}

// ListChunkKeys returns the key of every stored chunk in key order.
func (r *ChunkRepository) ListChunkKeys(ctx context.Context) ([]core.ChunkKey, error) {
	var keys []core.ChunkKey
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(chunkPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key, err := parseChunkKey(iter.Item().Key())
			if err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return nil
	}, false)
	return keys, err
}

// CountChunks returns the number of stored chunks.
func (r *ChunkRepository) CountChunks(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(chunkPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

type scoredChunk struct {
	chunk *core.EvidenceChunk
	score float64
}

// Query returns the chunks most similar to vector.
func (r *ChunkRepository) Query(ctx context.Context, vector []float32, topK int, minScore float64) ([]core.MatchCandidate, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", storage.ErrInvalidQuery, topK)
	}
	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", storage.ErrInvalidQuery)
	}

	var hits []scoredChunk
	err := r.scan(ctx, []byte(chunkPrefix), func(chunk *core.EvidenceChunk) error {
		// Chunks whose embedding failed or came from another model are skipped
		if len(chunk.Vector) != len(vector) {
			return nil
		}
		score, ok := cosine(vector, queryNorm, chunk.Vector)
		if !ok || score < minScore {
			return nil
		}
		hits = append(hits, scoredChunk{chunk: chunk, score: score})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(hits, func(a, b scoredChunk) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.chunk.Sequence, b.chunk.Sequence)
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	candidates := make([]core.MatchCandidate, len(hits))
	for i, hit := range hits {
		candidates[i] = hit.chunk.Candidate(hit.score)
	}
	return candidates, nil
}

// scan calls fn for every chunk under prefix.
func (r *ChunkRepository) scan(ctx context.Context, prefix []byte, fn func(chunk *core.EvidenceChunk) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var chunk *core.EvidenceChunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalEvidenceChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(chunk); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// readChunk reads a chunk within a transaction.
// Returns nil, nil if the chunk does not exist.
func readChunk(tx *badger.Txn, key []byte) (*core.EvidenceChunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var chunk *core.EvidenceChunk
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		chunk, unmarshalErr = storage.UnmarshalEvidenceChunk(val)
		return unmarshalErr
	})
	return chunk, err
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine returns the cosine similarity of a and b clamped to [0,1].
// It reports false when b has zero length.
func cosine(a []float32, aNorm float64, b []float32) (float64, bool) {
	bNorm := norm(b)
	if bNorm == 0 {
		return 0, false
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	score := dot / (aNorm * bNorm)
	return max(0, min(1, score)), true
}
