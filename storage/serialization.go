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


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/sakina/core"
)

// Record format version. It is written first so the layout can evolve.
const formatVersion = 1

// Serializers for the persisted domain types. They follow the mus.Serializer
// contract and are safe for concurrent use.
var (
	EvidenceItemMUS    mus.Serializer[core.EvidenceItem]    = evidenceItemSer{}
	EvidenceChunkMUS   mus.Serializer[core.EvidenceChunk]   = evidenceChunkSer{}
	QAEntryMUS         mus.Serializer[core.QAEntry]         = qaEntrySer{}
	ChunkFailureMUS    mus.Serializer[core.ChunkFailure]    = chunkFailureSer{}
	IngestionReportMUS mus.Serializer[core.IngestionReport] = ingestionReportSer{}
)

// encoder accumulates marshalled fields into a buffer sized by Size.
type encoder struct {
	bs []byte
	n  int
}

func put[T any](e *encoder, s mus.Serializer[T], v T) {
	e.n += s.Marshal(v, e.bs[e.n:])
}

// decoder reads fields until the first error.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func get[T any](d *decoder, s mus.Serializer[T]) (v T) {
	if d.err != nil {
		return v
	}
	var n int
	v, n, d.err = s.Unmarshal(d.bs[d.n:])
	d.n += n
	return v
}

// length reads a slice length and rejects values the remaining input
// cannot hold.
func (d *decoder) length(minElemSize int) int {
	l := get(d, varint.Int)
	if d.err != nil {
		return 0
	}
	if l < 0 || l*minElemSize > len(d.bs)-d.n {
		d.err = fmt.Errorf("%w: length %d", ErrTruncatedData, l)
		return 0
	}
	return l
}

func (d *decoder) version() {
	v := get(d, varint.Int)
	if d.err == nil && v != formatVersion {
		d.err = fmt.Errorf("%w: unknown format version %d", ErrSerializationFailed, v)
	}
}

func timeToNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func nanosToTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func skipWith[T any](s mus.Serializer[T], bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type evidenceItemSer struct{}

func (evidenceItemSer) Marshal(v core.EvidenceItem, bs []byte) (n int) {
	e := &encoder{bs: bs}
	put(e, varint.Int, int(v.Type))
	put(e, ord.String, v.Text)
	put(e, ord.String, v.Reference)
	put(e, ord.String, v.ScholarName)
	return e.n
}

func (evidenceItemSer) Unmarshal(bs []byte) (v core.EvidenceItem, n int, err error) {
	d := &decoder{bs: bs}
	v.Type = core.EvidenceType(get(d, varint.Int))
	v.Text = get(d, ord.String)
	v.Reference = get(d, ord.String)
	v.ScholarName = get(d, ord.String)
	return v, d.n, d.err
}

func (evidenceItemSer) Size(v core.EvidenceItem) (size int) {
	return varint.Int.Size(int(v.Type)) +
		ord.String.Size(v.Text) +
		ord.String.Size(v.Reference) +
		ord.String.Size(v.ScholarName)
}

func (s evidenceItemSer) Skip(bs []byte) (n int, err error) {
	return skipWith[core.EvidenceItem](s, bs)
}

type evidenceChunkSer struct{}

func (evidenceChunkSer) Marshal(v core.EvidenceChunk, bs []byte) (n int) {
	e := &encoder{bs: bs}
	put(e, varint.Int, formatVersion)
	put(e, ord.String, v.TopicName)
	put(e, ord.String, v.LocalizedName)
	put(e, ord.String, v.SearchText)
	put(e, ord.String, v.DisclosureText)
	put(e, varint.Int, len(v.EvidenceItems))
	for _, item := range v.EvidenceItems {
		put(e, EvidenceItemMUS, item)
	}
	put(e, ord.String, v.SourceDocumentID)
	put(e, varint.Int, v.ChunkIndex)
	put(e, varint.Int, len(v.Vector))
	for _, f := range v.Vector {
		put(e, raw.Float32, f)
	}
	put(e, varint.Uint64, v.Sequence)
	put(e, varint.Int64, timeToNanos(v.InsertedAt))
	put(e, varint.Int64, timeToNanos(v.UpdatedAt))
	return e.n
}

func (evidenceChunkSer) Unmarshal(bs []byte) (v core.EvidenceChunk, n int, err error) {
	d := &decoder{bs: bs}
	d.version()
	v.TopicName = get(d, ord.String)
	v.LocalizedName = get(d, ord.String)
	v.SearchText = get(d, ord.String)
	v.DisclosureText = get(d, ord.String)
	if l := d.length(1); l > 0 {
		v.EvidenceItems = make([]core.EvidenceItem, l)
		for i := range v.EvidenceItems {
			v.EvidenceItems[i] = get(d, EvidenceItemMUS)
		}
	}
	v.SourceDocumentID = get(d, ord.String)
	v.ChunkIndex = get(d, varint.Int)
	if l := d.length(4); l > 0 {
		v.Vector = make([]float32, l)
		for i := range v.Vector {
			v.Vector[i] = get(d, raw.Float32)
		}
	}
	v.Sequence = get(d, varint.Uint64)
	v.InsertedAt = nanosToTime(get(d, varint.Int64))
	v.UpdatedAt = nanosToTime(get(d, varint.Int64))
	return v, d.n, d.err
}

func (evidenceChunkSer) Size(v core.EvidenceChunk) (size int) {
	size = varint.Int.Size(formatVersion) +
		ord.String.Size(v.TopicName) +
		ord.String.Size(v.LocalizedName) +
		ord.String.Size(v.SearchText) +
		ord.String.Size(v.DisclosureText) +
		varint.Int.Size(len(v.EvidenceItems))
	for _, item := range v.EvidenceItems {
		size += EvidenceItemMUS.Size(item)
	}
	size += ord.String.Size(v.SourceDocumentID) +
		varint.Int.Size(v.ChunkIndex) +
		varint.Int.Size(len(v.Vector))
	for _, f := range v.Vector {
		size += raw.Float32.Size(f)
	}
	return size +
		varint.Uint64.Size(v.Sequence) +
		varint.Int64.Size(timeToNanos(v.InsertedAt)) +
		varint.Int64.Size(timeToNanos(v.UpdatedAt))
}

func (s evidenceChunkSer) Skip(bs []byte) (n int, err error) {
	return skipWith[core.EvidenceChunk](s, bs)
}

type qaEntrySer struct{}

func (qaEntrySer) Marshal(v core.QAEntry, bs []byte) (n int) {
	e := &encoder{bs: bs}
	put(e, varint.Int, formatVersion)
	put(e, varint.Uint64, uint64(v.Id))
	put(e, ord.String, v.Question)
	put(e, ord.String, v.Answer)
	put(e, ord.String, v.EmotionTag)
	put(e, varint.Uint64, v.Sequence)
	put(e, varint.Int64, timeToNanos(v.InsertedAt))
	return e.n
}

func (qaEntrySer) Unmarshal(bs []byte) (v core.QAEntry, n int, err error) {
	d := &decoder{bs: bs}
	d.version()
	v.Id = core.ID(get(d, varint.Uint64))
	v.Question = get(d, ord.String)
	v.Answer = get(d, ord.String)
	v.EmotionTag = get(d, ord.String)
	v.Sequence = get(d, varint.Uint64)
	v.InsertedAt = nanosToTime(get(d, varint.Int64))
	return v, d.n, d.err
}

func (qaEntrySer) Size(v core.QAEntry) (size int) {
	return varint.Int.Size(formatVersion) +
		varint.Uint64.Size(uint64(v.Id)) +
		ord.String.Size(v.Question) +
		ord.String.Size(v.Answer) +
		ord.String.Size(v.EmotionTag) +
		varint.Uint64.Size(v.Sequence) +
		varint.Int64.Size(timeToNanos(v.InsertedAt))
}

func (s qaEntrySer) Skip(bs []byte) (n int, err error) {
	return skipWith[core.QAEntry](s, bs)
}

type chunkFailureSer struct{}

func (chunkFailureSer) Marshal(v core.ChunkFailure, bs []byte) (n int) {
	e := &encoder{bs: bs}
	put(e, varint.Int, v.Index)
	put(e, varint.Int, v.Attempts)
	put(e, ord.String, v.Error)
	return e.n
}

func (chunkFailureSer) Unmarshal(bs []byte) (v core.ChunkFailure, n int, err error) {
	d := &decoder{bs: bs}
	v.Index = get(d, varint.Int)
	v.Attempts = get(d, varint.Int)
	v.Error = get(d, ord.String)
	return v, d.n, d.err
}

func (chunkFailureSer) Size(v core.ChunkFailure) (size int) {
	return varint.Int.Size(v.Index) + varint.Int.Size(v.Attempts) + ord.String.Size(v.Error)
}

func (s chunkFailureSer) Skip(bs []byte) (n int, err error) {
	return skipWith[core.ChunkFailure](s, bs)
}

type ingestionReportSer struct{}

func (ingestionReportSer) Marshal(v core.IngestionReport, bs []byte) (n int) {
	e := &encoder{bs: bs}
	put(e, varint.Int, formatVersion)
	put(e, ord.String, v.RunID)
	put(e, ord.String, v.DocumentID)
	put(e, varint.Int, v.ChunksTotal)
	put(e, varint.Int, v.ChunksCreated)
	put(e, varint.Int, v.ChunksFailed)
	put(e, varint.Int, len(v.Failures))
	for _, f := range v.Failures {
		put(e, ChunkFailureMUS, f)
	}
	put(e, ord.Bool, v.Resubmission)
	put(e, varint.Int64, timeToNanos(v.StartedAt))
	put(e, varint.Int64, timeToNanos(v.FinishedAt))
	return e.n
}

func (ingestionReportSer) Unmarshal(bs []byte) (v core.IngestionReport, n int, err error) {
	d := &decoder{bs: bs}
	d.version()
	v.RunID = get(d, ord.String)
	v.DocumentID = get(d, ord.String)
	v.ChunksTotal = get(d, varint.Int)
	v.ChunksCreated = get(d, varint.Int)
	v.ChunksFailed = get(d, varint.Int)
	if l := d.length(3); l > 0 {
		v.Failures = make([]core.ChunkFailure, l)
		for i := range v.Failures {
			v.Failures[i] = get(d, ChunkFailureMUS)
		}
	}
	v.Resubmission = get(d, ord.Bool)
	v.StartedAt = nanosToTime(get(d, varint.Int64))
	v.FinishedAt = nanosToTime(get(d, varint.Int64))
	return v, d.n, d.err
}

func (ingestionReportSer) Size(v core.IngestionReport) (size int) {
	size = varint.Int.Size(formatVersion) +
		ord.String.Size(v.RunID) +
		ord.String.Size(v.DocumentID) +
		varint.Int.Size(v.ChunksTotal) +
		varint.Int.Size(v.ChunksCreated) +
		varint.Int.Size(v.ChunksFailed) +
		varint.Int.Size(len(v.Failures))
	for _, f := range v.Failures {
		size += ChunkFailureMUS.Size(f)
	}
	return size +
		ord.Bool.Size(v.Resubmission) +
		varint.Int64.Size(timeToNanos(v.StartedAt)) +
		varint.Int64.Size(timeToNanos(v.FinishedAt))
}

func (s ingestionReportSer) Skip(bs []byte) (n int, err error) {
	return skipWith[core.IngestionReport](s, bs)
}

func marshal[T any](s mus.Serializer[T], v T) []byte {
	buf := make([]byte, s.Size(v))
	s.Marshal(v, buf)
	return buf
}

func unmarshal[T any](s mus.Serializer[T], data []byte) (*T, error) {
	v, _, err := s.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &v, nil
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	return marshal(varint.Uint64, uint64(id))
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(id), nil
}

// MarshalEvidenceChunk serializes an EvidenceChunk to bytes.
func MarshalEvidenceChunk(chunk *core.EvidenceChunk) []byte {
	return marshal(EvidenceChunkMUS, *chunk)
}

// UnmarshalEvidenceChunk deserializes an EvidenceChunk from bytes.
func UnmarshalEvidenceChunk(data []byte) (*core.EvidenceChunk, error) {
	return unmarshal(EvidenceChunkMUS, data)
}

// MarshalQAEntry serializes a QAEntry to bytes.
func MarshalQAEntry(entry *core.QAEntry) []byte {
	return marshal(QAEntryMUS, *entry)
}

// UnmarshalQAEntry deserializes a QAEntry from bytes.
func UnmarshalQAEntry(data []byte) (*core.QAEntry, error) {
	return unmarshal(QAEntryMUS, data)
}

// MarshalIngestionReport serializes an IngestionReport to bytes.
func MarshalIngestionReport(report *core.IngestionReport) []byte {
	return marshal(IngestionReportMUS, *report)
}

// UnmarshalIngestionReport deserializes an IngestionReport from bytes.
func UnmarshalIngestionReport(data []byte) (*core.IngestionReport, error) {
	return unmarshal(IngestionReportMUS, data)
}
