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


package response

import (
	"fmt"
	"strings"

	"github.com/poiesic/sakina/core"
	"github.com/poiesic/sakina/heuristic"
)

// EmotionDetector names the emotion expressed in a message, or returns "".
type EmotionDetector interface {
	DetectEmotion(text string) string
}

// Reply is an assembled response.
type Reply struct {
	Text       string
	Citations  []core.Citation
	Tier       core.Tier
	TemplateID string
	Words      int
}

// Assembler renders classified results into replies. It has no side effects
// and is safe for concurrent use.
type Assembler struct {
	band         WordBand
	defaultState string
	states       map[string]string
	tiers        map[core.Tier][]compiledVariant
	noMatch      []compiledVariant
	emotions     EmotionDetector
}

type assemblerConfig struct {
	templates *Templates
	band      *WordBand
	emotions  EmotionDetector
}

// Option configures an Assembler.
type Option func(*assemblerConfig)

// WithTemplates replaces the embedded template set.
func WithTemplates(t *Templates) Option {
	return func(c *assemblerConfig) {
		c.templates = t
	}
}

// WithWordBand overrides the template set's word band.
func WithWordBand(band WordBand) Option {
	return func(c *assemblerConfig) {
		c.band = &band
	}
}

// WithEmotionDetector sets how the user's state is read from the message
// when the match carries no emotion tag.
// Default is heuristic.DefaultMatcher().
func WithEmotionDetector(d EmotionDetector) Option {
	return func(c *assemblerConfig) {
		c.emotions = d
	}
}

// NewAssembler creates an Assembler.
func NewAssembler(opts ...Option) (*Assembler, error) {
	cfg := &assemblerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.templates == nil {
		cfg.templates = DefaultTemplates()
	}
	if cfg.emotions == nil {
		cfg.emotions = heuristic.DefaultMatcher()
	}
	if err := cfg.templates.Validate(); err != nil {
		return nil, err
	}

	a := &Assembler{
		band:         cfg.templates.WordBand,
		defaultState: cfg.templates.DefaultState,
		states:       cfg.templates.States,
		tiers:        make(map[core.Tier][]compiledVariant, len(allTiers)),
		emotions:     cfg.emotions,
	}
	if cfg.band != nil {
		if cfg.band.Min < 0 || cfg.band.Max <= 0 || cfg.band.Max < cfg.band.Min {
			return nil, fmt.Errorf("%w: bad word band %d-%d", ErrInvalidTemplates, cfg.band.Min, cfg.band.Max)
		}
		a.band = *cfg.band
	}
	if a.defaultState == "" {
		a.defaultState = "going through something difficult"
	}

	for _, tier := range allTiers {
		variants, err := compileVariants(cfg.templates.Tiers[tier.String()])
		if err != nil {
			return nil, err
		}
		a.tiers[tier] = variants
	}
	noMatch, err := compileVariants(cfg.templates.NoMatch)
	if err != nil {
		return nil, err
	}
	a.noMatch = noMatch
	return a, nil
}

// WordBand returns the band replies must fit.
func (a *Assembler) WordBand() WordBand {
	return a.band
}

type templateData struct {
	State     string
	Label     string
	Title     string
	Citations []core.Citation
}

// Assemble renders the reply for result. Variants are tried longest first;
// if none fits the word band with every citation they are retried with only
// the first citation. When nothing fits, the rendering closest to the band
// is returned together with ErrOutsideWordBand.
func (a *Assembler) Assemble(result core.CitationResult, userMessage string) (Reply, error) {
	data := templateData{
		State: a.state(result, userMessage),
		Label: result.Label,
	}

	variants := a.noMatch
	disclose := result.Candidate != nil && result.AlwaysShowDocument
	if disclose {
		variants = a.tiers[result.Tier]
		if len(variants) == 0 {
			variants = a.tiers[core.TierNoDirectMatch]
		}
		data.Title = result.Candidate.Title
		data.Citations = disclosedCitations(result.Candidate)
	}

	attempts := [][]core.Citation{data.Citations}
	if len(data.Citations) > 1 {
		attempts = append(attempts, data.Citations[:1])
	}

	var best Reply
	bestDistance := -1
	for _, citations := range attempts {
		data.Citations = citations
		for _, v := range variants {
			text, err := render(v, data)
			if err != nil {
				return Reply{}, err
			}
			reply := Reply{
				Text:       text,
				Citations:  citations,
				Tier:       result.Tier,
				TemplateID: v.id,
				Words:      len(strings.Fields(text)),
			}
			if a.band.Contains(reply.Words) {
				return reply, nil
			}
			if d := a.band.distance(reply.Words); bestDistance < 0 || d < bestDistance {
				best, bestDistance = reply, d
			}
		}
	}

	return best, fmt.Errorf("%w: %d words, want %d-%d", ErrOutsideWordBand, best.Words, a.band.Min, a.band.Max)
}

func (a *Assembler) state(result core.CitationResult, userMessage string) string {
	emotion := ""
	if result.Candidate != nil {
		emotion = result.Candidate.EmotionTag
	}
	if _, ok := a.states[emotion]; !ok {
		emotion = a.emotions.DetectEmotion(userMessage)
	}
	if s, ok := a.states[emotion]; ok {
		return s
	}
	return a.defaultState
}

// disclosedCitations returns the candidate's citations, falling back to its
// disclosure payload as a single excerpt.
func disclosedCitations(c *core.MatchCandidate) []core.Citation {
	if len(c.Citations) > 0 {
		return c.Citations
	}
	if strings.TrimSpace(c.DisclosurePayload) == "" {
		return nil
	}
	return []core.Citation{{
		Type:      "excerpt",
		Text:      c.DisclosurePayload,
		Reference: c.Title,
	}}
}

func render(v compiledVariant, data templateData) (string, error) {
	var sb strings.Builder
	if err := v.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", v.id, err)
	}
	return tidy(sb.String()), nil
}

// tidy trims every line and collapses runs of blank lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
