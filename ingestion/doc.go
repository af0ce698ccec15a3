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


// Package ingestion builds the searchable corpus from source documents.
//
// A Pipeline splits a document into topic chunks with the evidence chunker,
// then embeds and stores each chunk on a bounded ants worker pool. Failures
// are retried with exponential backoff and, if they persist, recorded per
// chunk in a core.IngestionReport so the caller can resubmit only the
// failed indices:
//
//	report, err := pipeline.Ingest(ctx, text, "handbook", onProgress)
//	...
//	report, err = pipeline.Resubmit(ctx, text, "handbook", report.FailedIndices(), onProgress)
//
// Chunk keys are namespaced by document ID, so concurrent runs over
// different documents never overwrite each other.
package ingestion
