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

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/sakina/core"
	"github.com/poiesic/sakina/storage"
)

// ReportRepository implements storage.ReportRepository for BadgerDB.
type ReportRepository struct {
	backend *Backend
}

var _ storage.ReportRepository = (*ReportRepository)(nil)

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(backend *Backend) storage.ReportRepository {
	return &ReportRepository{
		backend: backend,
	}
}

// SaveReport persists the latest report for a document.
func (r *ReportRepository) SaveReport(ctx context.Context, report *core.IngestionReport) error {
	if err := core.ValidateDocumentID(report.DocumentID); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeReportKey(report.DocumentID)
		value := storage.MarshalIngestionReport(report)
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadReport retrieves the latest report for a document.
// Returns nil, nil if no report exists.
func (r *ReportRepository) LoadReport(ctx context.Context, documentID string) (*core.IngestionReport, error) {
	var report *core.IngestionReport
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeReportKey(documentID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			report, unmarshalErr = storage.UnmarshalIngestionReport(val)
			return unmarshalErr
		})
	}, false)

	return report, err
}
