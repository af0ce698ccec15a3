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


package evidence

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/sakina/core"
)

// DefaultDocumentTopic is the topic name used when a document has no
// recognizable topic headings.
const DefaultDocumentTopic = "General"

// Chunker splits source documents into topic-keyed EvidenceChunks.
// It is a pure transformation over its input and safe for concurrent use.
type Chunker struct {
	documentTopic string
	logger        *slog.Logger
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithDocumentTopic sets the placeholder topic for documents without headings.
func WithDocumentTopic(topic string) ChunkerOption {
	return func(c *Chunker) {
		if strings.TrimSpace(topic) != "" {
			c.documentTopic = topic
		}
	}
}

// WithChunkerLogger sets a custom logger.
// Default is slog.Default().
func WithChunkerLogger(logger *slog.Logger) ChunkerOption {
	return func(c *Chunker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChunker creates a Chunker.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		documentTopic: DefaultDocumentTopic,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "evidence-chunker")
	return c
}

// topicSection is a span of document lines belonging to one topic.
type topicSection struct {
	title    string
	strength topicStrength
	start    int // first body line (after the heading)
	end      int // exclusive
}

// CreateChunks splits documentText into one chunk per topic section.
// If no topic boundaries are found, a single chunk covering the whole
// document is returned under the placeholder topic.
func (c *Chunker) CreateChunks(documentText, sourceDocumentID string) []core.EvidenceChunk {
	lines := strings.Split(strings.ReplaceAll(documentText, "\r\n", "\n"), "\n")
	sections := findTopicSections(lines)

	if len(sections) == 0 {
		c.logger.Debug("no topic boundaries found", "document", sourceDocumentID)
		sections = []topicSection{{title: c.documentTopic, start: 0, end: len(lines)}}
	}

	chunks := make([]core.EvidenceChunk, 0, len(sections))
	for i, section := range sections {
		body := strings.TrimSpace(strings.Join(lines[section.start:section.end], "\n"))
		chunks = append(chunks, c.buildChunk(section.title, body, sourceDocumentID, i))
	}

	c.logger.Debug("created chunks", "document", sourceDocumentID, "chunks", len(chunks))
	return chunks
}

func (c *Chunker) buildChunk(title, body, sourceDocumentID string, index int) core.EvidenceChunk {
	topic, localized := splitTitle(title)

	items, err := ParseSection(body, topic)
	if err != nil {
		c.logger.Debug("topic has no evidence items", "document", sourceDocumentID, "topic", topic, "err", err)
		items = nil
	}

	treatment := treatmentSentences(body)
	items = withoutTreatmentContent(items, treatment)
	disclosure := renderDisclosure(items)

	if err := verifyDisclosure(disclosure, treatment); err != nil {
		c.logger.Error("dropping disclosure for chunk", "document", sourceDocumentID, "topic", topic, "err", err)
		items = nil
		disclosure = ""
	}

	searchParts := []string{topic}
	if localized != "" {
		searchParts = append(searchParts, localized)
	}
	searchParts = append(searchParts, body)

	return core.EvidenceChunk{
		TopicName:        topic,
		LocalizedName:    localized,
		SearchText:       strings.Join(searchParts, "\n"),
		DisclosureText:   disclosure,
		EvidenceItems:    items,
		SourceDocumentID: sourceDocumentID,
		ChunkIndex:       index,
	}
}

// findTopicSections locates topic headings. Numbered headings are accepted
// only when their span contains at least one subsection heading, so numbered
// list items inside a topic do not split it.
func findTopicSections(lines []string) []topicSection {
	var candidates []topicSection
	for i, line := range lines {
		strength, title := classifyTopic(line)
		if strength == topicNone || title == "" {
			continue
		}
		candidates = append(candidates, topicSection{title: title, strength: strength, start: i + 1})
	}

	var accepted []topicSection
	for i, cand := range candidates {
		end := len(lines)
		if i+1 < len(candidates) {
			end = candidates[i+1].start - 1
		}
		if cand.strength == topicWeak && !hasSubsection(lines[cand.start:end]) {
			continue
		}
		accepted = append(accepted, cand)
	}

	for i := range accepted {
		if i+1 < len(accepted) {
			accepted[i].end = accepted[i+1].start - 1
		} else {
			accepted[i].end = len(lines)
		}
	}
	return accepted
}

func hasSubsection(lines []string) bool {
	for _, line := range lines {
		if kind, _ := classifySubsection(line); kind != subsectionNone && kind != subsectionOther {
			return true
		}
	}
	return false
}

// treatmentSentences returns every sentence of the section's treatment and
// academic treatment subsections.
func treatmentSentences(body string) []string {
	var sentences []string
	var current []string
	inTreatment := false

	flush := func() {
		if len(current) > 0 {
			sentences = append(sentences, splitSentences(joinQuotedLines(strings.Join(current, "\n")))...)
		}
		current = nil
	}

	for _, line := range strings.Split(body, "\n") {
		kind, rest := classifySubsection(line)
		if kind != subsectionNone {
			flush()
			inTreatment = kind == subsectionTreatment
			if inTreatment && rest != "" {
				current = append(current, rest)
			}
			continue
		}
		if inTreatment {
			current = append(current, line)
		}
	}
	flush()

	for i := range sentences {
		sentences[i] = bulletPrefix.ReplaceAllString(sentences[i], "")
	}
	return sentences
}

// withoutTreatmentContent drops items whose rendering would repeat a
// treatment sentence verbatim.
func withoutTreatmentContent(items []core.EvidenceItem, treatment []string) []core.EvidenceItem {
	if len(treatment) == 0 {
		return items
	}
	kept := items[:0:0]
	for _, item := range items {
		if containsAny(item.Render(), treatment) == "" {
			kept = append(kept, item)
		}
	}
	return kept
}

func renderDisclosure(items []core.EvidenceItem) string {
	rendered := make([]string, len(items))
	for i, item := range items {
		rendered[i] = item.Render()
	}
	return strings.Join(rendered, "\n")
}

// verifyDisclosure is the post-condition for disclosure isolation.
func verifyDisclosure(disclosure string, treatment []string) error {
	if leaked := containsAny(disclosure, treatment); leaked != "" {
		return fmt.Errorf("%w: %q", ErrDisclosureLeak, leaked)
	}
	return nil
}

// containsAny returns the first needle found in s, or "" when none is.
func containsAny(s string, needles []string) string {
	if s == "" {
		return ""
	}
	for _, n := range needles {
		n = strings.TrimSpace(n)
		if n != "" && strings.Contains(s, n) {
			return n
		}
	}
	return ""
}
