package heuristic

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTables(t *testing.T) {
	tables := DefaultTables()

	assert.Equal(t, Weights{Concept: 0.4, Phrase: 0.3, WordOverlap: 0.3}, tables.Weights)
	assert.Equal(t, "i am", tables.Contractions["i'm"])
	assert.NotEmpty(t, tables.ConceptGroups)
	assert.NotEmpty(t, tables.PhraseGroups)
	assert.NotEmpty(t, tables.Emotions)

	// Callers get their own copy.
	tables.ConceptGroups[0].Phrases[0] = "changed"
	assert.NotEqual(t, "changed", DefaultTables().ConceptGroups[0].Phrases[0])
}

func TestLoadTables_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	data := []byte(`
contractions:
  "y'all": "you all"
concept_groups:
  - name: gratitude
    phrases: ["grateful", "thankful"]
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	tables, err := LoadTables(path)
	require.NoError(t, err)

	require.Len(t, tables.ConceptGroups, 1)
	assert.Equal(t, "gratitude", tables.ConceptGroups[0].Name)
	assert.Equal(t, "you all", tables.Contractions["y'all"])
	assert.Equal(t, "i am", tables.Contractions["i'm"])
	assert.Equal(t, DefaultTables().PhraseGroups, tables.PhraseGroups)

	m, err := NewMatcher(tables)
	require.NoError(t, err)
	_, bd := m.Breakdown("I am grateful today", "so thankful for this")
	assert.True(t, bd.ConceptActive)
	assert.Equal(t, 1.0, bd.Concept)
}

func TestLoadTables_Errors(t *testing.T) {
	_, err := LoadTables(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	tests := []struct {
		name string
		yaml string
	}{
		{name: "malformed", yaml: "weights: [1, 2"},
		{name: "negative weight", yaml: "weights: {concept: -1, phrase: 0.3, word_overlap: 0.3}"},
		{name: "zero weights", yaml: "weights: {concept: 0, phrase: 0, word_overlap: 0}"},
		{name: "unnamed group", yaml: "concept_groups: [{phrases: [a]}]"},
		{name: "empty group", yaml: "phrase_groups: [{name: x, phrases: []}]"},
		{name: "duplicate group", yaml: "emotions: [{name: x, phrases: [a]}, {name: x, phrases: [b]}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tables.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))
			_, err := LoadTables(path)
			assert.ErrorIs(t, err, ErrInvalidTables)
		})
	}
}

func TestParseTables(t *testing.T) {
	tables, err := ParseTables([]byte("weights: {concept: 1, phrase: 0, word_overlap: 0}"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, tables.Weights.Concept)

	_, err = ParseTables([]byte("weights: [1, 2"))
	assert.ErrorIs(t, err, ErrInvalidTables)
}
