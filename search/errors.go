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


package search

import "errors"

var (
	// ErrQARepositoryRequired is returned when a Q&A repository is not provided.
	ErrQARepositoryRequired = errors.New("qa repository required")

	// ErrVectorIndexRequired is returned when a vector index is not provided.
	ErrVectorIndexRequired = errors.New("vector index required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmbeddingUnavailable marks a query whose embedding could not be
	// generated. The query falls back to heuristic matching.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrIndexUnavailable marks a query whose vector index lookup failed.
	// The query falls back to heuristic matching.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrCorpusUnavailable marks a query whose Q&A set could not be read.
	ErrCorpusUnavailable = errors.New("qa corpus unavailable")

	// ErrStageTimeout marks a stage that did not finish before the deadline.
	ErrStageTimeout = errors.New("stage did not finish before the deadline")
)
