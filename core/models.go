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
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for curated entries.
// It is generated using content-based hashing or supplied by the curator.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// EvidenceType classifies a single citation.
type EvidenceType int

const (
	// EvidenceTypeScripture is a quotation with a book/verse reference.
	EvidenceTypeScripture EvidenceType = iota + 1
	// EvidenceTypeTradition is a quotation with a hadith collection reference.
	EvidenceTypeTradition
	// EvidenceTypeScholarQuote is a quotation attributed to a named scholar.
	EvidenceTypeScholarQuote
)

func (t EvidenceType) String() string {
	switch t {
	case EvidenceTypeScripture:
		return "scripture"
	case EvidenceTypeTradition:
		return "tradition"
	case EvidenceTypeScholarQuote:
		return "scholar-quote"
	default:
		return fmt.Sprintf("evidence-type(%d)", int(t))
	}
}

// EvidenceItem is one parsed citation. It is never mutated after parsing.
type EvidenceItem struct {
	Type        EvidenceType
	Text        string // quotation body without surrounding quote marks
	Reference   string // free-form citation, e.g. "Quran 13:28"
	ScholarName string // only set for scholar quotes
}

// Render formats the item as it is disclosed to users: the verbatim
// quotation followed by its inline reference.
func (e EvidenceItem) Render() string {
	var sb strings.Builder
	if e.ScholarName != "" {
		sb.WriteString(e.ScholarName)
		sb.WriteString(": ")
	}
	sb.WriteString(`"`)
	sb.WriteString(e.Text)
	sb.WriteString(`"`)
	if e.Reference != "" && e.Reference != e.ScholarName {
		sb.WriteString(" [")
		sb.WriteString(e.Reference)
		sb.WriteString("]")
	}
	return sb.String()
}

// ChunkKey identifies a chunk. Keys are namespaced by source document so
// concurrent ingestion of different documents never collides.
type ChunkKey struct {
	DocumentID string
	Index      int
}

func (k ChunkKey) String() string {
	return fmt.Sprintf("%s#%d", k.DocumentID, k.Index)
}

// EvidenceChunk is one topic-scoped unit of a source document.
//
// SearchText is used only for embedding and matching and must never reach
// a user. DisclosureText holds only rendered EvidenceItems.
type EvidenceChunk struct {
	TopicName        string
	LocalizedName    string
	SearchText       string
	DisclosureText   string
	EvidenceItems    []EvidenceItem
	SourceDocumentID string
	ChunkIndex       int
	Vector           []float32 // Embedding of SearchText (populated during ingestion)
	Sequence         uint64    // Insertion order assigned by the store
	InsertedAt       time.Time
	UpdatedAt        time.Time
}

// Key returns the namespaced identity of the chunk.
func (c *EvidenceChunk) Key() ChunkKey {
	return ChunkKey{DocumentID: c.SourceDocumentID, Index: c.ChunkIndex}
}

// Candidate converts the chunk into a match candidate disclosing its
// evidence items.
func (c *EvidenceChunk) Candidate(score float64) MatchCandidate {
	citations := make([]Citation, len(c.EvidenceItems))
	for i, item := range c.EvidenceItems {
		citations[i] = CitationFromEvidence(item)
	}
	return MatchCandidate{
		SourceKind:        SourceKindChunk,
		SourceID:          c.Key().String(),
		Score:             score,
		Breakdown:         ScoreBreakdown{Vector: score},
		DisclosurePayload: c.DisclosureText,
		Citations:         citations,
		Title:             c.TopicName,
	}
}

// QAEntry is one curated question/answer pair.
type QAEntry struct {
	Id         ID
	Question   string
	Answer     string
	EmotionTag string
	Sequence   uint64 // Insertion order assigned by the store
	InsertedAt time.Time
}

// SourceKind tells where a match candidate came from.
type SourceKind int

const (
	// SourceKindQA is the curated Q&A set scanned by the heuristic matcher.
	SourceKindQA SourceKind = iota + 1
	// SourceKindChunk is the vector index of document chunks.
	SourceKindChunk
)

func (k SourceKind) String() string {
	switch k {
	case SourceKindQA:
		return "qa"
	case SourceKindChunk:
		return "chunk"
	default:
		return fmt.Sprintf("source-kind(%d)", int(k))
	}
}

// ScoreBreakdown keeps the component scores behind a candidate's score.
type ScoreBreakdown struct {
	Exact         bool
	Concept       float64
	ConceptActive bool
	Phrase        float64
	PhraseActive  bool
	WordOverlap   float64
	Vector        float64 // cosine similarity, chunk candidates only
}

// CitationTypeQA is the citation type of a disclosed Q&A answer. Evidence
// citations use the EvidenceType name.
const CitationTypeQA = "qa-answer"

// Citation is one piece of disclosed evidence.
type Citation struct {
	Type        string
	Text        string
	Reference   string
	ScholarName string
}

// Render formats the citation the same way EvidenceItem.Render does.
func (c Citation) Render() string {
	return EvidenceItem{Text: c.Text, Reference: c.Reference, ScholarName: c.ScholarName}.Render()
}

// CitationFromEvidence converts a parsed evidence item to a citation.
func CitationFromEvidence(item EvidenceItem) Citation {
	return Citation{
		Type:        item.Type.String(),
		Text:        item.Text,
		Reference:   item.Reference,
		ScholarName: item.ScholarName,
	}
}

// MatchCandidate is a transient per-query scoring result.
type MatchCandidate struct {
	SourceKind        SourceKind
	SourceID          string
	Score             float64 // always within [0,1]
	Breakdown         ScoreBreakdown
	DisclosurePayload string
	Citations         []Citation
	Title             string // QA question or chunk topic
	EmotionTag        string
}

// Tier is a confidence band. Higher values are more confident.
type Tier int

const (
	TierNoDirectMatch Tier = iota + 1
	TierGeneralGuidance
	TierRelatedTheme
	TierPerfectMatch
)

func (t Tier) String() string {
	switch t {
	case TierPerfectMatch:
		return "perfect_match"
	case TierRelatedTheme:
		return "related_theme"
	case TierGeneralGuidance:
		return "general_guidance"
	case TierNoDirectMatch:
		return "no_direct_match"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier maps a tier name back to its value.
func ParseTier(name string) (Tier, error) {
	for _, t := range []Tier{TierPerfectMatch, TierRelatedTheme, TierGeneralGuidance, TierNoDirectMatch} {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTier, name)
}

// CitationResult is the classified outcome of a query.
type CitationResult struct {
	Tier               Tier
	Candidate          *MatchCandidate // nil when there was nothing to match against
	AlwaysShowDocument bool
	Label              string // disclosure wording for the tier
}

// ChunkFailure records a chunk that could not be embedded or stored.
type ChunkFailure struct {
	Index    int
	Attempts int
	Error    string
}

// IngestionReport summarizes one ingestion run of a document.
type IngestionReport struct {
	RunID         string
	DocumentID    string
	ChunksTotal   int // chunks produced by the chunker
	ChunksCreated int
	ChunksFailed  int
	Failures      []ChunkFailure // ordered by Index
	Resubmission  bool           // true when only previously failed chunks were processed
	StartedAt     time.Time
	FinishedAt    time.Time
}

// FailedIndices returns the indices of the failed chunks in ascending order.
func (r *IngestionReport) FailedIndices() []int {
	indices := make([]int, len(r.Failures))
	for i, f := range r.Failures {
		indices[i] = f.Index
	}
	return indices
}
