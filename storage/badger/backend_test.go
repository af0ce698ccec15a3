package badger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/sakina/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_PathIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := OpenBackend(path, false)
	assert.ErrorContains(t, err, "is not a directory")
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
}

func TestNextSequence_SkipsZero(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	seq, err := backend.GetSequence("testseq")
	require.NoError(t, err)
	defer seq.Release()

	first, err := nextSequence(seq)
	require.NoError(t, err)
	second, err := nextSequence(seq)
	require.NoError(t, err)

	assert.NotZero(t, first)
	assert.Greater(t, second, first)
}

func TestChunkKeys(t *testing.T) {
	tests := []struct {
		name string
		key  core.ChunkKey
	}{
		{"simple", core.ChunkKey{DocumentID: "handbook", Index: 0}},
		{"large index", core.ChunkKey{DocumentID: "handbook", Index: 70000}},
		{"id with separators", core.ChunkKey{DocumentID: "a:b/c#d", Index: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := parseChunkKey(makeChunkKey(tt.key))
			require.NoError(t, err)
			assert.Equal(t, tt.key, parsed)
		})
	}
}

func TestChunkKeys_OrderByIndex(t *testing.T) {
	a := makeChunkKey(core.ChunkKey{DocumentID: "doc", Index: 2})
	b := makeChunkKey(core.ChunkKey{DocumentID: "doc", Index: 10})
	assert.Less(t, string(a), string(b))
}

func TestChunkKeys_DocumentPrefixesDoNotOverlap(t *testing.T) {
	key := makeChunkKey(core.ChunkKey{DocumentID: "doc-2", Index: 0})
	assert.NotContains(t, string(key), string(makeDocumentChunkPrefix("doc")))
}

func TestParseChunkKey_Malformed(t *testing.T) {
	_, err := parseChunkKey([]byte("evchunk:short"))
	assert.Error(t, err)

	_, err = parseChunkKey([]byte("other:doc"))
	assert.Error(t, err)
}
