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
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTablesYAML []byte

// Group is a named list of phrases. A text touches a group when it
// contains any of the group's phrases.
type Group struct {
	Name    string   `yaml:"name"`
	Phrases []string `yaml:"phrases"`
}

// Weights are the relative weights of the score components.
type Weights struct {
	Concept     float64 `yaml:"concept"`
	Phrase      float64 `yaml:"phrase"`
	WordOverlap float64 `yaml:"word_overlap"`
}

// Tables is the matcher vocabulary.
type Tables struct {
	Weights       Weights           `yaml:"weights"`
	Contractions  map[string]string `yaml:"contractions"`
	ConceptGroups []Group           `yaml:"concept_groups"`
	PhraseGroups  []Group           `yaml:"phrase_groups"`
	Emotions      []Group           `yaml:"emotions"`
}

var defaultTables = sync.OnceValues(func() (*Tables, error) {
	return ParseTables(defaultTablesYAML)
})

// DefaultTables returns a copy of the embedded vocabulary.
func DefaultTables() *Tables {
	t, err := defaultTables()
	if err != nil {
		panic(fmt.Sprintf("embedded heuristic tables: %v", err))
	}
	return t.clone()
}

// ParseTables decodes and validates a YAML vocabulary.
func ParseTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTables, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadTables reads a YAML file on top of the embedded defaults. Lists present
// in the file replace the defaults; contractions are merged key by key.
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables: %w", err)
	}
	t := DefaultTables()
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTables, path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Validate checks weights and group definitions.
func (t *Tables) Validate() error {
	w := t.Weights
	if w.Concept < 0 || w.Phrase < 0 || w.WordOverlap < 0 {
		return fmt.Errorf("%w: weights must not be negative", ErrInvalidTables)
	}
	if w.Concept+w.Phrase+w.WordOverlap <= 0 {
		return fmt.Errorf("%w: weights must not all be zero", ErrInvalidTables)
	}
	for _, section := range []struct {
		name   string
		groups []Group
	}{
		{"concept_groups", t.ConceptGroups},
		{"phrase_groups", t.PhraseGroups},
		{"emotions", t.Emotions},
	} {
		seen := make(map[string]bool, len(section.groups))
		for i, g := range section.groups {
			if strings.TrimSpace(g.Name) == "" {
				return fmt.Errorf("%w: %s[%d] has no name", ErrInvalidTables, section.name, i)
			}
			if seen[g.Name] {
				return fmt.Errorf("%w: %s has duplicate group %q", ErrInvalidTables, section.name, g.Name)
			}
			seen[g.Name] = true
			if len(g.Phrases) == 0 {
				return fmt.Errorf("%w: %s group %q has no phrases", ErrInvalidTables, section.name, g.Name)
			}
		}
	}
	return nil
}

func (t *Tables) clone() *Tables {
	c := &Tables{
		Weights:       t.Weights,
		Contractions:  make(map[string]string, len(t.Contractions)),
		ConceptGroups: cloneGroups(t.ConceptGroups),
		PhraseGroups:  cloneGroups(t.PhraseGroups),
		Emotions:      cloneGroups(t.Emotions),
	}
	for k, v := range t.Contractions {
		c.Contractions[k] = v
	}
	return c
}

func cloneGroups(groups []Group) []Group {
	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = Group{Name: g.Name, Phrases: append([]string(nil), g.Phrases...)}
	}
	return out
}
