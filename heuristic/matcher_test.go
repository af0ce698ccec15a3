package heuristic

import (
	"testing"

	"github.com/poiesic/sakina/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	m := DefaultMatcher()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "contractions and punctuation", in: "I’m here, don't worry!", want: "i am here do not worry"},
		{name: "whitespace", in: "  Too   many\tspaces\n", want: "too many spaces"},
		{name: "cannot", in: "I can't sleep", want: "i cannot sleep"},
		{name: "empty", in: "?!", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Normalize(tt.in))
		})
	}
}

func TestScore_Properties(t *testing.T) {
	m := DefaultMatcher()
	inputs := []string{
		"What dhikr can i recite when i am feeling sad?",
		"I feel like nothing I do is ever good enough",
		"I feel like I'm not good enough no matter what I do",
		"I am so angry at my brother",
		"I can't sleep because I'm always worried",
		"the cat sat on the mat",
		"",
		"...",
	}

	for _, a := range inputs {
		if m.Normalize(a) != "" {
			assert.Equal(t, 1.0, m.Score(a, a), "idempotence for %q", a)
		}
		for _, b := range inputs {
			s := m.Score(a, b)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
			assert.Equal(t, s, m.Score(b, a), "symmetry for %q / %q", a, b)
		}
	}
}

func TestScore_EmptyInput(t *testing.T) {
	m := DefaultMatcher()
	assert.Equal(t, 0.0, m.Score("", "anything"))
	assert.Equal(t, 0.0, m.Score("", ""))
	assert.Equal(t, 0.0, m.Score("!!!", "!!!"))
}

func TestScore_ExactMatchShortCircuit(t *testing.T) {
	m := DefaultMatcher()
	score, bd := m.Breakdown("What dhikr can i recite when i am feeling sad?", "what dhikr can I recite when I'm feeling sad")
	assert.Equal(t, 1.0, score)
	assert.True(t, bd.Exact)
}

func TestScore_ConceptAndEffortGroups(t *testing.T) {
	m := DefaultMatcher()
	score, bd := m.Breakdown(
		"I feel like nothing I do is ever good enough",
		"I feel like I'm not good enough no matter what I do",
	)

	assert.False(t, bd.Exact)
	assert.True(t, bd.ConceptActive)
	assert.Equal(t, 1.0, bd.Concept)
	assert.True(t, bd.PhraseActive)
	assert.Equal(t, 1.0, bd.Phrase)
	assert.InDelta(t, 6.0/11.0, bd.WordOverlap, 1e-9)
	assert.InDelta(t, 0.4+0.3+0.3*6.0/11.0, score, 1e-9)
	assert.GreaterOrEqual(t, score, 0.65)
}

func TestScore_InactiveComponentsAreNotPenalized(t *testing.T) {
	m := DefaultMatcher()
	score, bd := m.Breakdown("the cat sat", "the dog sat")

	assert.False(t, bd.ConceptActive)
	assert.False(t, bd.PhraseActive)
	assert.InDelta(t, 2.0/3.0, score, 1e-9)
}

func TestScore_DifferentConcepts(t *testing.T) {
	m := DefaultMatcher()
	score, bd := m.Breakdown("I am so sad", "I am so angry")

	assert.True(t, bd.ConceptActive)
	assert.Equal(t, 0.0, bd.Concept)
	assert.False(t, bd.PhraseActive)
	assert.InDelta(t, 0.75, bd.WordOverlap, 1e-9)
	assert.InDelta(t, 0.3*0.75/0.7, score, 1e-9)
}

func TestScore_PhrasesMatchWholeWords(t *testing.T) {
	m := DefaultMatcher()
	// "sadder" must not touch the sadness group through "sad".
	_, bd := m.Breakdown("a sadder tale", "a longer tale")
	assert.False(t, bd.ConceptActive)
}

func TestBestQAMatch(t *testing.T) {
	m := DefaultMatcher()
	entries := []core.QAEntry{
		{Id: 1, Question: "How do I deal with anger?", Answer: "Sit down when angry.", EmotionTag: "angry"},
		{Id: 2, Question: "What dhikr can i recite when i am feeling sad?", Answer: "Recite the dua of distress.", EmotionTag: "sad"},
		{Id: 3, Question: "I feel lonely at night", Answer: "Allah is near."},
	}

	candidate, ok := m.BestQAMatch("What dhikr can i recite when i am feeling sad?", entries)
	require.True(t, ok)
	assert.Equal(t, core.SourceKindQA, candidate.SourceKind)
	assert.Equal(t, "2", candidate.SourceID)
	assert.Equal(t, 1.0, candidate.Score)
	assert.Equal(t, "Recite the dua of distress.", candidate.DisclosurePayload)
	assert.Equal(t, "sad", candidate.EmotionTag)
	require.Len(t, candidate.Citations, 1)
	assert.Equal(t, core.CitationTypeQA, candidate.Citations[0].Type)
}

func TestBestQAMatch_FirstInsertedWinsTies(t *testing.T) {
	m := DefaultMatcher()
	entries := []core.QAEntry{
		{Id: 10, Question: "I feel sad", Answer: "first"},
		{Id: 20, Question: "I feel sad", Answer: "second"},
	}

	for i := 0; i < 5; i++ {
		candidate, ok := m.BestQAMatch("i feel sad", entries)
		require.True(t, ok)
		assert.Equal(t, "10", candidate.SourceID)
	}
}

func TestBestQAMatch_None(t *testing.T) {
	m := DefaultMatcher()

	_, ok := m.BestQAMatch("anything", nil)
	assert.False(t, ok)

	_, ok = m.BestQAMatch("zebra", []core.QAEntry{{Id: 1, Question: "mountain"}})
	assert.False(t, ok)

	_, ok = m.BestQAMatch("   ", []core.QAEntry{{Id: 1, Question: "mountain"}})
	assert.False(t, ok)
}

func TestDetectEmotion(t *testing.T) {
	m := DefaultMatcher()
	assert.Equal(t, "sad", m.DetectEmotion("I have been feeling so down lately"))
	assert.Equal(t, "anxious", m.DetectEmotion("I'm worried about my exams"))
	assert.Equal(t, "", m.DetectEmotion("hello there"))
}

func TestNewMatcher_RequiresTables(t *testing.T) {
	_, err := NewMatcher(nil)
	assert.ErrorIs(t, err, ErrTablesRequired)
}
