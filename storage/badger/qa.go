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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/sakina/core"
	"github.com/poiesic/sakina/storage"
)

// QARepository implements storage.QARepository for BadgerDB.
// Entries are stored by ID with a secondary index on insertion sequence, so
// listing preserves the order the curator added them in.
type QARepository struct {
	backend *Backend
	seq     *badger.Sequence
}

var _ storage.QARepository = (*QARepository)(nil)

// NewQARepository creates a new QARepository.
func NewQARepository(backend *Backend) (storage.QARepository, error) {
	seq, err := backend.GetSequence(qaEntrySeq)
	if err != nil {
		return nil, err
	}
	return &QARepository{
		backend: backend,
		seq:     seq,
	}, nil
}

// Close releases the sequence.
func (r *QARepository) Close() error {
	return r.seq.Release()
}

// AddQAEntries stores entries, skipping IDs that already exist.
func (r *QARepository) AddQAEntries(ctx context.Context, entries ...*core.QAEntry) ([]*core.QAEntry, error) {
	for _, entry := range entries {
		if err := core.ValidateQAEntry(entry); err != nil {
			return nil, err
		}
	}

	var added []*core.QAEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, entry := range entries {
			if entry.Id == 0 {
				entry.Id = core.IDFromContent(entry.Question)
			}

			key := makeQAEntryKey(entry.Id)
			_, err := tx.Get(key)
			if err == nil {
				continue
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			if entry.Sequence, err = nextSequence(r.seq); err != nil {
				return err
			}
			entry.InsertedAt = now

			if err := tx.Set(key, storage.MarshalQAEntry(entry)); err != nil {
				return err
			}
			if err := tx.Set(makeQAEntryOrderKey(entry.Sequence), storage.MarshalID(entry.Id)); err != nil {
				return err
			}
			added = append(added, entry)
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return added, nil
}

// GetQAEntry retrieves a single entry.
func (r *QARepository) GetQAEntry(ctx context.Context, id core.ID) (*core.QAEntry, error) {
	var entry *core.QAEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		entry, err = readQAEntry(tx, id)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListQAEntries returns every entry in insertion order.
func (r *QARepository) ListQAEntries(ctx context.Context) ([]core.QAEntry, error) {
	var entries []core.QAEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(qaEntryOrderPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}

			entry, err := readQAEntry(tx, id)
			if err != nil {
				return err
			}
			entries = append(entries, *entry)
		}
		return nil
	}, false)
	return entries, err
}

// readQAEntry reads an entry within a transaction.
func readQAEntry(tx *badger.Txn, id core.ID) (*core.QAEntry, error) {
	item, err := tx.Get(makeQAEntryKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: qa entry %d", storage.ErrNotFound, id)
		}
		return nil, err
	}

	var entry *core.QAEntry
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		entry, unmarshalErr = storage.UnmarshalQAEntry(val)
		return unmarshalErr
	})
	return entry, err
}
