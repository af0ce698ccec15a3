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


package badger

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/poiesic/sakina/core"
)

const (
	chunkPrefix        = "evchunk:"
	chunkSeq           = "evchunkseq"
	qaEntryPrefix      = "qaentry:"
	qaEntryOrderPrefix = "qaorder:"
	qaEntrySeq         = "qaentryseq"
	reportPrefix       = "ingestreport:"
)

// makeDocumentChunkPrefix generates the key prefix shared by all chunks of
// a document. Format: prefix:documentID\x00
// Document IDs never contain NUL, so one document's prefix is never a
// prefix of another's.
func makeDocumentChunkPrefix(documentID string) []byte {
	buf := make([]byte, 0, len(chunkPrefix)+len(documentID)+1)
	buf = append(buf, chunkPrefix...)
	buf = append(buf, documentID...)
	return append(buf, 0)
}

// makeChunkKey generates a key for a chunk.
// Format: prefix:documentID\x00index
// The index is written in BigEndian order so a document's chunks sort by index.
func makeChunkKey(key core.ChunkKey) []byte {
	buf := makeDocumentChunkPrefix(key.DocumentID)
	return binary.BigEndian.AppendUint64(buf, uint64(key.Index))
}

// parseChunkKey is the inverse of makeChunkKey.
func parseChunkKey(key []byte) (core.ChunkKey, error) {
	rest, ok := bytes.CutPrefix(key, []byte(chunkPrefix))
	if !ok || len(rest) < 9 || rest[len(rest)-9] != 0 {
		return core.ChunkKey{}, fmt.Errorf("malformed chunk key %q", key)
	}
	return core.ChunkKey{
		DocumentID: string(rest[:len(rest)-9]),
		Index:      int(binary.BigEndian.Uint64(rest[len(rest)-8:])),
	}, nil
}

// makeQAEntryKey generates a key for a QA entry by ID.
func makeQAEntryKey(id core.ID) []byte {
	buf := make([]byte, 0, len(qaEntryPrefix)+8)
	buf = append(buf, qaEntryPrefix...)
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// makeQAEntryOrderKey generates a key for the insertion order index.
// Format: prefix:sequence
func makeQAEntryOrderKey(sequence uint64) []byte {
	buf := make([]byte, 0, len(qaEntryOrderPrefix)+8)
	buf = append(buf, qaEntryOrderPrefix...)
	return binary.BigEndian.AppendUint64(buf, sequence)
}

// makeReportKey generates a key for a document's latest ingestion report.
func makeReportKey(documentID string) []byte {
	return []byte(reportPrefix + documentID)
}
