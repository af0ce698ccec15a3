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


package storage

import (
	"context"

	"github.com/poiesic/sakina/core"
)

// VectorIndex answers nearest-neighbour queries over chunk embeddings.
type VectorIndex interface {
	// Query returns up to topK chunk candidates whose cosine similarity to
	// vector is at least minScore, ordered by score descending. Equal scores
	// are ordered by insertion, earliest first. Chunks without a vector are
	// never returned.
	Query(ctx context.Context, vector []float32, topK int, minScore float64) ([]core.MatchCandidate, error)
}

// ChunkRepository stores evidence chunks and their embeddings.
// Chunks are identified by core.ChunkKey, so different documents never
// collide.
type ChunkRepository interface {
	VectorIndex

	// UpsertChunks inserts or replaces chunks by key.
	// A new chunk gets the next insertion sequence and InsertedAt; a replaced
	// chunk keeps both and gets a fresh UpdatedAt.
	UpsertChunks(ctx context.Context, chunks ...*core.EvidenceChunk) error

	// GetChunk retrieves a single chunk.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, key core.ChunkKey) (*core.EvidenceChunk, error)

	// ListDocumentChunks returns a document's chunks ordered by index.
	ListDocumentChunks(ctx context.Context, documentID string) ([]*core.EvidenceChunk, error)

	// DeleteDocumentChunks removes a document's chunks with index >= fromIndex
	// and returns how many were removed.
	DeleteDocumentChunks(ctx context.Context, documentID string, fromIndex int) (int, error)

	// DeleteChunks removes the chunks with the given keys, ignoring missing
	// ones, and returns how many were removed.
	DeleteChunks(ctx context.Context, keys ...core.ChunkKey) (int, error)

	// ForEachChunk calls fn for every stored chunk in key order. Iteration
	// stops at the first error, which is returned.
	ForEachChunk(ctx context.Context, fn func(chunk *core.EvidenceChunk) error) error

	// ListChunkKeys returns the key of every stored chunk in key order.
	ListChunkKeys(ctx context.Context) ([]core.ChunkKey, error)

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)

	// Close releases the repository's resources.
	Close() error
}

// QARepository stores the curated Q&A set.
type QARepository interface {
	// AddQAEntries stores entries. Entries with Id 0 get an ID derived from
	// their question. Entries whose ID already exists are skipped.
	// Returns the entries that were added, with Sequence and InsertedAt set.
	AddQAEntries(ctx context.Context, entries ...*core.QAEntry) ([]*core.QAEntry, error)

	// GetQAEntry retrieves a single entry.
	// Returns ErrNotFound if the entry doesn't exist.
	GetQAEntry(ctx context.Context, id core.ID) (*core.QAEntry, error)

	// ListQAEntries returns every entry in insertion order.
	ListQAEntries(ctx context.Context) ([]core.QAEntry, error)

	// Close releases the repository's resources.
	Close() error
}

// ReportRepository persists the latest ingestion report per document.
type ReportRepository interface {
	// SaveReport stores report, replacing any previous one for the document.
	SaveReport(ctx context.Context, report *core.IngestionReport) error

	// LoadReport retrieves the latest report for a document.
	// Returns nil, nil if no report exists.
	LoadReport(ctx context.Context, documentID string) (*core.IngestionReport, error)
}
