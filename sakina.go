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


package sakina

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/sakina/ai"
	"github.com/poiesic/sakina/ai/openai"
	"github.com/poiesic/sakina/core"
	"github.com/poiesic/sakina/ingestion"
	"github.com/poiesic/sakina/reembed"
	"github.com/poiesic/sakina/search"
	"github.com/poiesic/sakina/storage"
	"github.com/poiesic/sakina/storage/badger"
	"gopkg.in/yaml.v3"
)

type Database struct {
	backend    *badger.Backend
	chunkRepo  storage.ChunkRepository
	qaRepo     storage.QARepository
	reportRepo storage.ReportRepository
	provider   ai.AIProvider
	logger     *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	inMemory bool
}

// WithAIConfig sets the embedding service configuration used to build the
// default OpenAI-compatible provider.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithProvider supplies a ready-made provider. The database takes ownership
// and closes it on Close.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithInMemory keeps the store in memory. The file path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	// Apply options
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(), // Default if not provided
	}
	for _, opt := range opts {
		opt(options)
	}
	// Open backend
	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	chunkRepo, err := badger.NewChunkRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	qaRepo, err := badger.NewQARepository(backend)
	if err != nil {
		chunkRepo.Close()
		backend.Close()
		return nil, err
	}

	reportRepo := badger.NewReportRepository(backend)

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			qaRepo.Close()
			chunkRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Database{
		backend:    backend,
		chunkRepo:  chunkRepo,
		qaRepo:     qaRepo,
		reportRepo: reportRepo,
		provider:   provider,
		logger:     slog.Default().With("component", "database"),
	}, nil
}

func (db *Database) Close() error {
	// Close AI provider first
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	if err := db.qaRepo.Close(); err != nil {
		db.logger.Error("error closing qa repository", "err", err)
		return err
	}
	if err := db.chunkRepo.Close(); err != nil {
		db.logger.Error("error closing chunk repository", "err", err)
		return err
	}

	// Close backend
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) ChunkRepository() storage.ChunkRepository {
	return db.chunkRepo
}

func (db *Database) QARepository() storage.QARepository {
	return db.qaRepo
}

func (db *Database) ReportRepository() storage.ReportRepository {
	return db.reportRepo
}

// NewIngestionPipeline creates a pipeline that writes chunks and reports to
// this database. Caller must Release the pipeline.
func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	opts = append([]ingestion.Option{ingestion.WithReportRepository(db.reportRepo)}, opts...)
	return ingestion.NewPipeline(db.chunkRepo, db.provider, opts...)
}

func (db *Database) NewEngine(opts ...search.Option) (*search.Engine, error) {
	return search.NewEngine(db.qaRepo, db.chunkRepo, db.provider, opts...)
}

func (db *Database) NewReembedder(config *reembed.Config, progress io.Writer) *reembed.Reembedder {
	return reembed.NewReembedder(db.chunkRepo, db.provider.Embedder(), config, progress)
}

// qaRecord is the on-disk shape of one curated Q&A pair.
type qaRecord struct {
	ID         uint64 `yaml:"id,omitempty"`
	Question   string `yaml:"question"`
	Answer     string `yaml:"answer"`
	EmotionTag string `yaml:"emotion_tag,omitempty"`
}

// ParseQAEntries decodes a YAML list of Q&A pairs. Entries without an id get
// one derived from their question when stored.
func ParseQAEntries(r io.Reader) ([]*core.QAEntry, error) {
	var records []qaRecord
	if err := yaml.NewDecoder(r).Decode(&records); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode qa entries: %w", err)
	}

	entries := make([]*core.QAEntry, 0, len(records))
	for i, rec := range records {
		entry := &core.QAEntry{
			Id:         core.ID(rec.ID),
			Question:   rec.Question,
			Answer:     rec.Answer,
			EmotionTag: rec.EmotionTag,
		}
		if err := core.ValidateQAEntry(entry); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ImportQA reads a YAML Q&A file and stores its entries. Entries whose id is
// already present are skipped. Returns the number of entries added.
func (db *Database) ImportQA(ctx context.Context, r io.Reader) (int, error) {
	entries, err := ParseQAEntries(r)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	added, err := db.qaRepo.AddQAEntries(ctx, entries...)
	if err != nil {
		return 0, err
	}
	db.logger.Info("imported qa entries", "read", len(entries), "added", len(added))
	return len(added), nil
}
