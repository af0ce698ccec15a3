package evidence

import (
	"strings"
	"testing"

	"github.com/poiesic/sakina/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoTopicHandbook = `Introduction to the handbook.

# Sadness (Huzn)

Symptoms:
- Heaviness in the chest.

Evidence:
Allah says: "Verily, with hardship comes ease." [Quran 94:6]
Ibn al-Qayyim said: "In the heart there is a sadness that nothing removes except joy in knowing Allah."

Treatment:
- Recite the morning remembrances daily.
- Sit with righteous company.

# Anxiety – Qalaq

Evidence:
The Prophet ﷺ said: "No fatigue, nor disease, nor sorrow befalls a Muslim except that Allah expiates some of his sins." (Sahih Bukhari 5641)

Academic Treatment:
Write down each worry and answer it with a verse.
`

func TestChunker_TwoTopics(t *testing.T) {
	chunks := NewChunker().CreateChunks(twoTopicHandbook, "handbook")
	require.Len(t, chunks, 2)

	sadness := chunks[0]
	assert.Equal(t, "Sadness", sadness.TopicName)
	assert.Equal(t, "Huzn", sadness.LocalizedName)
	assert.Equal(t, "handbook", sadness.SourceDocumentID)
	assert.Equal(t, 0, sadness.ChunkIndex)
	require.Len(t, sadness.EvidenceItems, 2)
	assert.Equal(t, core.EvidenceTypeScripture, sadness.EvidenceItems[0].Type)
	assert.Equal(t, core.EvidenceTypeScholarQuote, sadness.EvidenceItems[1].Type)

	anxiety := chunks[1]
	assert.Equal(t, "Anxiety", anxiety.TopicName)
	assert.Equal(t, "Qalaq", anxiety.LocalizedName)
	assert.Equal(t, 1, anxiety.ChunkIndex)
	require.Len(t, anxiety.EvidenceItems, 1)
	assert.Equal(t, core.EvidenceTypeTradition, anxiety.EvidenceItems[0].Type)
	assert.Equal(t, "Sahih Bukhari 5641", anxiety.EvidenceItems[0].Reference)
}

func TestChunker_SearchTextCoversWholeSection(t *testing.T) {
	chunks := NewChunker().CreateChunks(twoTopicHandbook, "handbook")
	require.Len(t, chunks, 2)

	search := chunks[0].SearchText
	assert.True(t, strings.HasPrefix(search, "Sadness\nHuzn\n"))
	assert.Contains(t, search, "Heaviness in the chest.")
	assert.Contains(t, search, "Verily, with hardship comes ease.")
	assert.Contains(t, search, "Sit with righteous company.")
	assert.NotContains(t, search, "Introduction to the handbook.")
	assert.NotContains(t, search, "Qalaq")
}

func TestChunker_DisclosureIsolation(t *testing.T) {
	chunks := NewChunker().CreateChunks(twoTopicHandbook, "handbook")
	require.Len(t, chunks, 2)

	treatment := []string{
		"Recite the morning remembrances daily.",
		"Sit with righteous company.",
		"Write down each worry and answer it with a verse.",
		"Heaviness in the chest.",
	}
	for _, chunk := range chunks {
		require.NotEmpty(t, chunk.DisclosureText)
		for _, sentence := range treatment {
			assert.NotContains(t, chunk.DisclosureText, sentence, "chunk %s", chunk.TopicName)
		}
	}

	assert.Equal(t,
		`"Verily, with hardship comes ease." [Quran 94:6]`+"\n"+
			`Ibn al-Qayyim: "In the heart there is a sadness that nothing removes except joy in knowing Allah."`,
		chunks[0].DisclosureText)
}

func TestChunker_DropsItemsRepeatedInTreatment(t *testing.T) {
	doc := `# Anger

Evidence:
"Do not become angry." (Sahih Bukhari 6116)
"Whoever restrains his anger, Allah will fill his heart with contentment." (Musnad Ahmad 3017)

Treatment:
Do not become angry.
`
	chunks := NewChunker().CreateChunks(doc, "anger")
	require.Len(t, chunks, 1)
	require.Len(t, chunks[0].EvidenceItems, 1)
	assert.Equal(t, "Whoever restrains his anger, Allah will fill his heart with contentment.", chunks[0].EvidenceItems[0].Text)
	assert.NotContains(t, chunks[0].DisclosureText, "Do not become angry.")
}

func TestChunker_NumberedTopicsNeedSubsections(t *testing.T) {
	doc := `1. Sadness
Evidence:
"Indeed, Allah is with the patient." (2:153)
Treatment:
1. Make dua
2. Read Quran
2. Anger
Evidence:
"Do not become angry." (Sahih Bukhari 6116)
`
	chunks := NewChunker().CreateChunks(doc, "numbered")
	require.Len(t, chunks, 2)
	assert.Equal(t, "Sadness", chunks[0].TopicName)
	assert.Contains(t, chunks[0].SearchText, "Read Quran")
	assert.Equal(t, "Anger", chunks[1].TopicName)
	assert.Len(t, chunks[0].EvidenceItems, 1)
	assert.Len(t, chunks[1].EvidenceItems, 1)
}

func TestChunker_CapitalizedTopics(t *testing.T) {
	doc := `SADNESS (HUZN)
Evidence:
"Verily, with hardship comes ease." [94:6]
LONELINESS
Evidence:
"And He is with you wherever you are." [57:4]
`
	chunks := NewChunker().CreateChunks(doc, "caps")
	require.Len(t, chunks, 2)
	assert.Equal(t, "Sadness", chunks[0].TopicName)
	assert.Equal(t, "Huzn", chunks[0].LocalizedName)
	assert.Equal(t, "Loneliness", chunks[1].TopicName)
}

func TestChunker_NoBoundaries(t *testing.T) {
	doc := "just a paragraph of notes with no headings at all.\nanother line of notes."

	chunks := NewChunker().CreateChunks(doc, "notes")
	require.Len(t, chunks, 1)
	assert.Equal(t, DefaultDocumentTopic, chunks[0].TopicName)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Contains(t, chunks[0].SearchText, "another line of notes.")
	assert.Empty(t, chunks[0].EvidenceItems)
	assert.Empty(t, chunks[0].DisclosureText)

	custom := NewChunker(WithDocumentTopic("Whole Document")).CreateChunks(doc, "notes")
	require.Len(t, custom, 1)
	assert.Equal(t, "Whole Document", custom[0].TopicName)
}

func TestChunker_TopicWithoutEvidence(t *testing.T) {
	doc := `# Fear
Symptoms:
- Trembling.
Treatment:
- Seek refuge.
`
	chunks := NewChunker().CreateChunks(doc, "fear")
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].EvidenceItems)
	assert.Empty(t, chunks[0].DisclosureText)
	assert.Contains(t, chunks[0].SearchText, "Trembling.")
}
