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


// Package storage defines the persistence layer for sakina.
//
// Repositories are declared here as interfaces so the ingestion pipeline,
// the query engine and the re-embedding tool never depend on a concrete
// backend. The badger subpackage provides the only implementation.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces:
//
//	chunks, err := badger.NewChunkRepository(backend)  // returns storage.ChunkRepository
//
// Internal helpers inside the badger package may return concrete types.
//
// # Repositories
//
//   - ChunkRepository: evidence chunks keyed by (document id, chunk index),
//     including the VectorIndex used by the query engine
//   - QARepository: the curated question/answer set in insertion order
//   - ReportRepository: the latest ingestion report per document
//
// # Serialization
//
// Records are encoded with mus-go. Each record starts with a format
// version so older databases fail loudly instead of decoding garbage.
//
// Use in tests with in-memory storage:
//
//	repos, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer repos.Close()
package storage
