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
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"

	"github.com/poiesic/sakina/core"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplatesYAML []byte

// WordBand bounds the length of an assembled response, in words.
type WordBand struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Contains reports whether n words fit in the band.
func (b WordBand) Contains(n int) bool {
	return n >= b.Min && n <= b.Max
}

// distance is how many words n is outside the band.
func (b WordBand) distance(n int) int {
	switch {
	case n < b.Min:
		return b.Min - n
	case n > b.Max:
		return n - b.Max
	default:
		return 0
	}
}

// Variant is one rendering of a tier, identified by ID.
type Variant struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
}

// Templates is the full template set.
type Templates struct {
	WordBand     WordBand             `yaml:"word_band"`
	DefaultState string               `yaml:"default_state"`
	States       map[string]string    `yaml:"states"`
	Tiers        map[string][]Variant `yaml:"tiers"`
	NoMatch      []Variant            `yaml:"no_match"`
}

var defaultTemplates = sync.OnceValues(func() (*Templates, error) {
	return ParseTemplates(defaultTemplatesYAML)
})

// DefaultTemplates returns the embedded template set.
func DefaultTemplates() *Templates {
	t, err := defaultTemplates()
	if err != nil {
		panic(fmt.Sprintf("embedded response templates: %v", err))
	}
	return t
}

// ParseTemplates decodes and validates a YAML template set.
func ParseTemplates(data []byte) (*Templates, error) {
	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplates, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadTemplates reads a YAML template set from path.
func LoadTemplates(path string) (*Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}
	t, err := ParseTemplates(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Validate checks that every tier has at least one variant and that the
// word band is usable.
func (t *Templates) Validate() error {
	if t.WordBand.Min < 0 || t.WordBand.Max <= 0 || t.WordBand.Max < t.WordBand.Min {
		return fmt.Errorf("%w: bad word band %d-%d", ErrInvalidTemplates, t.WordBand.Min, t.WordBand.Max)
	}
	for _, tier := range allTiers {
		if len(t.Tiers[tier.String()]) == 0 {
			return fmt.Errorf("%w: no variants for tier %s", ErrInvalidTemplates, tier)
		}
	}
	if len(t.NoMatch) == 0 {
		return fmt.Errorf("%w: no no_match variants", ErrInvalidTemplates)
	}
	return nil
}

var allTiers = []core.Tier{
	core.TierPerfectMatch,
	core.TierRelatedTheme,
	core.TierGeneralGuidance,
	core.TierNoDirectMatch,
}

// compiledVariant is a parsed Variant.
type compiledVariant struct {
	id   string
	tmpl *template.Template
}

var funcs = template.FuncMap{
	"cite": func(c core.Citation) string { return c.Render() },
}

func compileVariants(variants []Variant) ([]compiledVariant, error) {
	out := make([]compiledVariant, 0, len(variants))
	for i, v := range variants {
		if strings.TrimSpace(v.ID) == "" {
			return nil, fmt.Errorf("%w: variant %d has no id", ErrInvalidTemplates, i)
		}
		tmpl, err := template.New(v.ID).Funcs(funcs).Option("missingkey=error").Parse(v.Text)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTemplates, v.ID, err)
		}
		out = append(out, compiledVariant{id: v.ID, tmpl: tmpl})
	}
	return out, nil
}
