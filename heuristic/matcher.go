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


package heuristic

import (
	"strconv"
	"strings"
	"sync"

	"github.com/poiesic/sakina/core"
)

// compiledGroup holds a group's phrases in normalized, space-padded form.
type compiledGroup struct {
	name    string
	phrases []string
}

// Matcher scores text similarity. It is immutable after construction and
// safe for concurrent use.
type Matcher struct {
	norm     normalizer
	weights  Weights
	concepts []compiledGroup
	phrases  []compiledGroup
	emotions []compiledGroup
}

// NewMatcher compiles tables into a Matcher.
func NewMatcher(tables *Tables) (*Matcher, error) {
	if tables == nil {
		return nil, ErrTablesRequired
	}
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	m := &Matcher{
		norm:    newNormalizer(tables.Contractions),
		weights: tables.Weights,
	}
	m.concepts = m.compile(tables.ConceptGroups)
	m.phrases = m.compile(tables.PhraseGroups)
	m.emotions = m.compile(tables.Emotions)
	return m, nil
}

var defaultMatcher = sync.OnceValue(func() *Matcher {
	m, err := NewMatcher(DefaultTables())
	if err != nil {
		panic(err)
	}
	return m
})

// DefaultMatcher returns a shared Matcher built from the embedded tables.
func DefaultMatcher() *Matcher {
	return defaultMatcher()
}

func (m *Matcher) compile(groups []Group) []compiledGroup {
	out := make([]compiledGroup, 0, len(groups))
	for _, g := range groups {
		cg := compiledGroup{name: g.Name}
		for _, p := range g.Phrases {
			if n := m.norm.normalize(p); n != "" {
				cg.phrases = append(cg.phrases, padded(n))
			}
		}
		out = append(out, cg)
	}
	return out
}

// Normalize applies the matcher's text normalization.
func (m *Matcher) Normalize(s string) string {
	return m.norm.normalize(s)
}

// Score returns the similarity of a and b in [0,1]. Empty input scores 0.
func (m *Matcher) Score(a, b string) float64 {
	score, _ := m.Breakdown(a, b)
	return score
}

// Breakdown returns the score of a and b together with its components.
func (m *Matcher) Breakdown(a, b string) (float64, core.ScoreBreakdown) {
	return m.scoreNormalized(m.norm.normalize(a), m.norm.normalize(b))
}

func (m *Matcher) scoreNormalized(na, nb string) (float64, core.ScoreBreakdown) {
	if na == "" || nb == "" {
		return 0, core.ScoreBreakdown{}
	}
	if na == nb {
		return 1, core.ScoreBreakdown{
			Exact:         true,
			Concept:       1,
			ConceptActive: true,
			Phrase:        1,
			PhraseActive:  true,
			WordOverlap:   1,
		}
	}

	pa, pb := padded(na), padded(nb)
	var bd core.ScoreBreakdown
	bd.Concept, bd.ConceptActive = groupScore(m.concepts, pa, pb)
	bd.Phrase, bd.PhraseActive = groupScore(m.phrases, pa, pb)
	bd.WordOverlap = wordOverlap(na, nb)

	var total, weight float64
	if bd.ConceptActive {
		total += m.weights.Concept * bd.Concept
		weight += m.weights.Concept
	}
	if bd.PhraseActive {
		total += m.weights.Phrase * bd.Phrase
		weight += m.weights.Phrase
	}
	total += m.weights.WordOverlap * bd.WordOverlap
	weight += m.weights.WordOverlap

	if weight == 0 {
		return 0, bd
	}
	return clamp(total / weight), bd
}

// groupScore is the share of touched groups that both texts touch. A group
// is touched when either text contains one of its phrases. The component is
// inactive when no group is touched.
func groupScore(groups []compiledGroup, pa, pb string) (float64, bool) {
	matched, touched := 0, 0
	for _, g := range groups {
		inA, inB := containsPhrase(pa, g.phrases), containsPhrase(pb, g.phrases)
		if inA || inB {
			touched++
		}
		if inA && inB {
			matched++
		}
	}
	if touched == 0 {
		return 0, false
	}
	return float64(matched) / float64(touched), true
}

func containsPhrase(paddedText string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(paddedText, p) {
			return true
		}
	}
	return false
}

func wordOverlap(na, nb string) float64 {
	wa, wb := wordSet(na), wordSet(nb)
	common := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			common++
		}
	}
	larger := max(len(wa), len(wb))
	if larger == 0 {
		return 0
	}
	return float64(common) / float64(larger)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// BestQAMatch scans entries linearly and returns the best scoring one.
// Earlier entries win ties. ok is false when nothing scores above zero.
func (m *Matcher) BestQAMatch(query string, entries []core.QAEntry) (candidate core.MatchCandidate, ok bool) {
	nq := m.norm.normalize(query)
	if nq == "" {
		return core.MatchCandidate{}, false
	}

	best := -1
	var bestScore float64
	var bestBreakdown core.ScoreBreakdown
	for i := range entries {
		score, bd := m.scoreNormalized(nq, m.norm.normalize(entries[i].Question))
		if score > bestScore {
			best, bestScore, bestBreakdown = i, score, bd
		}
	}
	if best < 0 {
		return core.MatchCandidate{}, false
	}
	return QACandidate(entries[best], bestScore, bestBreakdown), true
}

// QACandidate builds the match candidate for a Q&A entry. The answer is the
// disclosed payload.
func QACandidate(entry core.QAEntry, score float64, bd core.ScoreBreakdown) core.MatchCandidate {
	id := strconv.FormatUint(uint64(entry.Id), 10)
	return core.MatchCandidate{
		SourceKind:        core.SourceKindQA,
		SourceID:          id,
		Score:             score,
		Breakdown:         bd,
		DisclosurePayload: entry.Answer,
		Citations: []core.Citation{{
			Type:      core.CitationTypeQA,
			Text:      entry.Answer,
			Reference: "Q&A " + id,
		}},
		Title:      entry.Question,
		EmotionTag: entry.EmotionTag,
	}
}

// DetectEmotion returns the first emotion whose keywords occur in text,
// or "" when none do.
func (m *Matcher) DetectEmotion(text string) string {
	p := padded(m.norm.normalize(text))
	for _, e := range m.emotions {
		if containsPhrase(p, e.phrases) {
			return e.name
		}
	}
	return ""
}
