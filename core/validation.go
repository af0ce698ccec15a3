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

import (
	"fmt"
	"strings"
)

// ValidateEvidenceChunk validates an EvidenceChunk according to domain rules.
//
// Validation rules:
//   - TopicName must not be empty
//   - SourceDocumentID must not be empty
//   - ChunkIndex must not be negative
//   - every EvidenceItem must be valid
//
// NOT validated (populated by ingestion):
//   - Vector (empty until embedded)
//   - Sequence (assigned by the store)
func ValidateEvidenceChunk(chunk *EvidenceChunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if strings.TrimSpace(chunk.TopicName) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyTopic)
	}
	if err := ValidateDocumentID(chunk.SourceDocumentID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, err)
	}
	if chunk.ChunkIndex < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrNegativeChunkIndex)
	}
	for i, item := range chunk.EvidenceItems {
		if err := ValidateEvidenceItem(item); err != nil {
			return fmt.Errorf("%w: item %d: %w", ErrInvalidChunk, i, err)
		}
	}
	return nil
}

// ValidateDocumentID checks that id can namespace chunk keys.
func ValidateDocumentID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyDocumentID
	}
	if strings.ContainsRune(id, 0) {
		return ErrInvalidDocumentID
	}
	return nil
}

// ValidateEvidenceItem validates a parsed citation.
func ValidateEvidenceItem(item EvidenceItem) error {
	switch item.Type {
	case EvidenceTypeScripture, EvidenceTypeTradition, EvidenceTypeScholarQuote:
	default:
		return fmt.Errorf("%w: %w: value %d", ErrInvalidEvidenceItem, ErrInvalidEvidenceType, item.Type)
	}
	if strings.TrimSpace(item.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEvidenceItem, ErrEmptyContent)
	}
	return nil
}

// ValidateQAEntry validates a QAEntry according to domain rules.
// An Id of 0 is valid; the store derives one from the question.
func ValidateQAEntry(entry *QAEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidQAEntry)
	}
	if strings.TrimSpace(entry.Question) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQAEntry, ErrEmptyQuestion)
	}
	if strings.TrimSpace(entry.Answer) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQAEntry, ErrEmptyAnswer)
	}
	return nil
}
