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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidChunk indicates an EvidenceChunk failed validation.
	ErrInvalidChunk = errors.New("invalid evidence chunk")

	// ErrInvalidQAEntry indicates a QAEntry failed validation.
	ErrInvalidQAEntry = errors.New("invalid qa entry")

	// ErrInvalidEvidenceItem indicates an EvidenceItem failed validation.
	ErrInvalidEvidenceItem = errors.New("invalid evidence item")

	// ErrEmptyTopic indicates the chunk topic name is empty.
	ErrEmptyTopic = errors.New("topic name cannot be empty")

	// ErrEmptyDocumentID indicates the source document ID is empty.
	ErrEmptyDocumentID = errors.New("source document id cannot be empty")

	// ErrInvalidDocumentID indicates a document ID containing a NUL byte.
	ErrInvalidDocumentID = errors.New("source document id cannot contain NUL")

	// ErrNegativeChunkIndex indicates a chunk index below zero.
	ErrNegativeChunkIndex = errors.New("chunk index cannot be negative")

	// ErrEmptyQuestion indicates the QA question is empty.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrEmptyAnswer indicates the QA answer is empty.
	ErrEmptyAnswer = errors.New("answer cannot be empty")

	// ErrEmptyContent indicates an evidence item has no quotation text.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidEvidenceType indicates an unknown EvidenceType value.
	ErrInvalidEvidenceType = errors.New("invalid evidence type")

	// ErrInvalidTier indicates an unknown tier name.
	ErrInvalidTier = errors.New("invalid tier")
)
