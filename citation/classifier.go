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


// Package citation maps match candidates to confidence tiers and decides
// how the winning match is disclosed.
package citation

import (
	"errors"
	"fmt"
	"math"

	"github.com/poiesic/sakina/core"
)

// Tier band lower bounds. Bands are half-open: [PerfectMatchScore, 1],
// [RelatedThemeScore, PerfectMatchScore), and so on.
const (
	PerfectMatchScore    = 0.95
	RelatedThemeScore    = 0.80
	GeneralGuidanceScore = 0.65
)

// Disclosure labels.
const (
	LabelDirectMatch          = "Direct match"
	LabelRelatedTheme         = "Related theme"
	LabelGeneralGuidance      = "General guidance"
	LabelBestAvailable        = "Best available match"
	LabelNoMatch              = "No matching evidence"
	LabelBelowDisclosureFloor = "Match withheld"
)

// ErrInvalidDisclosureScore is returned for a disclosure floor outside [0,1].
var ErrInvalidDisclosureScore = errors.New("minimum disclosure score must be within [0,1]")

// Classifier selects the winning candidate and assigns its tier.
type Classifier struct {
	minDisclosureScore float64
}

// Option configures a Classifier.
type Option func(*Classifier) error

// WithMinDisclosureScore withholds matches scoring below score. The default
// of 0 discloses any match that exists.
func WithMinDisclosureScore(score float64) Option {
	return func(c *Classifier) error {
		if math.IsNaN(score) || score < 0 || score > 1 {
			return fmt.Errorf("%w: %v", ErrInvalidDisclosureScore, score)
		}
		c.minDisclosureScore = score
		return nil
	}
}

// NewClassifier creates a Classifier.
func NewClassifier(opts ...Option) (*Classifier, error) {
	c := &Classifier{}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MinDisclosureScore returns the configured disclosure floor.
func (c *Classifier) MinDisclosureScore() float64 {
	return c.minDisclosureScore
}

// Classify picks the highest scoring candidate, preferring Q&A candidates on
// ties, and maps its score to a tier. Candidates scoring zero or less are
// ignored. With nothing left the result has no candidate and discloses
// nothing.
func (c *Classifier) Classify(candidates []core.MatchCandidate) core.CitationResult {
	var best *core.MatchCandidate
	for i := range candidates {
		cand := &candidates[i]
		if !(cand.Score > 0) {
			continue
		}
		if best == nil || beats(cand, best) {
			best = cand
		}
	}

	if best == nil {
		return core.CitationResult{
			Tier:  core.TierNoDirectMatch,
			Label: LabelNoMatch,
		}
	}

	winner := *best
	winner.Score = math.Min(winner.Score, 1)
	tier := TierForScore(winner.Score)
	show := winner.Score >= c.minDisclosureScore

	label := TierLabel(tier)
	if !show {
		label = LabelBelowDisclosureFloor
	}
	return core.CitationResult{
		Tier:               tier,
		Candidate:          &winner,
		AlwaysShowDocument: show,
		Label:              label,
	}
}

func beats(a, b *core.MatchCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.SourceKind == core.SourceKindQA && b.SourceKind != core.SourceKindQA
}

// TierForScore maps a score to its tier band.
func TierForScore(score float64) core.Tier {
	switch {
	case score >= PerfectMatchScore:
		return core.TierPerfectMatch
	case score >= RelatedThemeScore:
		return core.TierRelatedTheme
	case score >= GeneralGuidanceScore:
		return core.TierGeneralGuidance
	default:
		return core.TierNoDirectMatch
	}
}

// TierLabel returns the disclosure wording for a tier.
func TierLabel(tier core.Tier) string {
	switch tier {
	case core.TierPerfectMatch:
		return LabelDirectMatch
	case core.TierRelatedTheme:
		return LabelRelatedTheme
	case core.TierGeneralGuidance:
		return LabelGeneralGuidance
	default:
		return LabelBestAvailable
	}
}
