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


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/sakina"
	"github.com/poiesic/sakina/ai"
	"github.com/poiesic/sakina/citation"
	"github.com/poiesic/sakina/core"
	"github.com/poiesic/sakina/evidence"
	"github.com/poiesic/sakina/heuristic"
	"github.com/poiesic/sakina/ingestion"
	"github.com/poiesic/sakina/reembed"
	"github.com/poiesic/sakina/response"
	"github.com/poiesic/sakina/search"
	"github.com/urfave/cli/v2"
)

func main() {
	// Environment must be populated before flags are parsed
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "sakina",
		Usage: "Evidence-grounded answers with cited sources",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				Value:   "./sakina_db",
				EnvVars: []string{"SAKINA_DB"},
			},
			&cli.StringFlag{
				Name:    "embedding-host",
				Usage:   "Embedding service host URL",
				Value:   "http://localhost:11434/v1",
				EnvVars: []string{"SAKINA_EMBEDDING_HOST"},
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				Value:   "embeddinggemma",
				EnvVars: []string{"SAKINA_EMBEDDING_MODEL"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key for the embedding service",
				EnvVars: []string{"SAKINA_API_KEY"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Chunk, embed and store an evidence document",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the document text",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "doc-id",
						Usage: "Source document ID (defaults to the file name without extension)",
					},
					&cli.BoolFlag{
						Name:  "only-failed",
						Usage: "Only resubmit chunks that failed in the last run",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent embedding workers (0 = half the CPUs)",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per chunk",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 500 * time.Millisecond,
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Answer a message from the stored corpus",
				ArgsUsage: "<message>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Retrieval deadline",
						Value: 3 * time.Second,
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Maximum chunk candidates from the vector index",
						Value: 5,
					},
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Minimum cosine similarity for chunk candidates",
						Value: 0.60,
					},
					&cli.Float64Flag{
						Name:  "min-disclosure-score",
						Usage: "Withhold citations for matches scoring below this",
					},
					&cli.StringFlag{
						Name:  "tables",
						Usage: "YAML file with matcher tables",
					},
					&cli.StringFlag{
						Name:  "templates",
						Usage: "YAML file with response templates",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print retrieval stages and match metadata",
					},
				},
			},
			{
				Name:   "import-qa",
				Usage:  "Import curated question and answer pairs from YAML",
				Action: importQACommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the YAML file",
						Required: true,
					},
				},
			},
			{
				Name:   "chunks",
				Usage:  "Preview how a document is chunked without storing it",
				Action: chunksCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the document text",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "topic",
						Usage: "Topic name for documents without headings",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all stored chunks with the configured model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: reembed.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

func aiConfig(c *cli.Context) (*ai.Config, error) {
	cfg := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithAPIKey(c.String("api-key")),
	)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return cfg, nil
}

func openDatabase(c *cli.Context) (*sakina.Database, error) {
	dbPath := c.String("db")
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	cfg, err := aiConfig(c)
	if err != nil {
		return nil, err
	}
	db, err := sakina.NewDatabase(dbPath, sakina.WithAIConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func documentID(c *cli.Context) string {
	if id := c.String("doc-id"); id != "" {
		return id
	}
	base := filepath.Base(c.String("file"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	if c.Int("max-retries") <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}
	text, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	docID := documentID(c)

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := []ingestion.Option{
		ingestion.WithMaxAttempts(c.Int("max-retries")),
		ingestion.WithRetryDelay(c.Duration("retry-delay")),
	}
	if workers := c.Int("workers"); workers > 0 {
		opts = append(opts, ingestion.WithPoolSize(workers))
	}
	pipeline, err := db.NewIngestionPipeline(opts...)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	onProgress := func(processed, total int, eta float64) {
		fmt.Fprintf(os.Stderr, "\r%d/%d chunks - eta %.1fs", processed, total, eta)
		if processed == total {
			fmt.Fprintln(os.Stderr)
		}
	}

	var report *core.IngestionReport
	if c.Bool("only-failed") {
		last, err := pipeline.LastReport(ctx, docID)
		if err != nil {
			return fmt.Errorf("failed to load last report: %w", err)
		}
		if last == nil || len(last.Failures) == 0 {
			fmt.Fprintf(os.Stderr, "No failed chunks recorded for %s\n", docID)
			return nil
		}
		report, err = pipeline.Resubmit(ctx, string(text), docID, last.FailedIndices(), onProgress)
		if err != nil {
			return fmt.Errorf("resubmission failed: %w", err)
		}
	} else {
		report, err = pipeline.Ingest(ctx, string(text), docID, onProgress)
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
	}

	printReport(report)
	if report.ChunksFailed > 0 {
		return fmt.Errorf("%d chunks failed; rerun with --only-failed", report.ChunksFailed)
	}
	return nil
}

func printReport(report *core.IngestionReport) {
	fmt.Printf("Run %s for %s\n", report.RunID, report.DocumentID)
	fmt.Printf("  chunks: %d  created: %d  failed: %d  elapsed: %s\n",
		report.ChunksTotal, report.ChunksCreated, report.ChunksFailed,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	for _, f := range report.Failures {
		fmt.Printf("  chunk %d after %d attempts: %s\n", f.Index, f.Attempts, f.Error)
	}
}

func queryCommand(c *cli.Context) error {
	ctx := context.Background()

	message := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if message == "" {
		return fmt.Errorf("a message is required")
	}

	opts, err := engineOptions(c)
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	engine, err := db.NewEngine(opts...)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	resp, err := engine.Query(ctx, message)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	fmt.Println(resp.Text)
	if c.Bool("verbose") {
		printMetadata(resp)
	}
	return nil
}

func engineOptions(c *cli.Context) ([]search.Option, error) {
	opts := []search.Option{
		search.WithTimeout(c.Duration("timeout")),
		search.WithTopK(c.Int("top-k")),
		search.WithMinScore(c.Float64("min-score")),
	}
	if c.Bool("verbose") {
		opts = append(opts, search.WithMonitor(&stageMonitor{start: time.Now()}))
	}

	classifier, err := citation.NewClassifier(citation.WithMinDisclosureScore(c.Float64("min-disclosure-score")))
	if err != nil {
		return nil, err
	}
	opts = append(opts, search.WithClassifier(classifier))

	matcher := heuristic.DefaultMatcher()
	if path := c.String("tables"); path != "" {
		tables, err := heuristic.LoadTables(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load tables: %w", err)
		}
		if matcher, err = heuristic.NewMatcher(tables); err != nil {
			return nil, err
		}
		opts = append(opts, search.WithMatcher(matcher))
	}
	if path := c.String("templates"); path != "" {
		templates, err := response.LoadTemplates(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load templates: %w", err)
		}
		assembler, err := response.NewAssembler(response.WithTemplates(templates), response.WithEmotionDetector(matcher))
		if err != nil {
			return nil, err
		}
		opts = append(opts, search.WithAssembler(assembler))
	}
	return opts, nil
}

func printMetadata(resp *search.Response) {
	m := resp.Metadata
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "request:   %s (%s)\n", m.RequestID, m.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "tier:      %s [%s] via %s\n", resp.Tier, m.Label, resp.TemplateID)
	fmt.Fprintf(os.Stderr, "candidates: qa=%d chunks=%d\n", m.QACandidates, m.ChunkCandidates)
	if m.SourceID != "" {
		fmt.Fprintf(os.Stderr, "source:    %s score=%.3f disclosed=%t\n", m.SourceID, m.Score, m.Disclosed)
	}
	fmt.Fprintf(os.Stderr, "words:     %d (within band: %t)\n", m.Words, m.WithinWordBand)
	if m.EmbeddingDegraded || m.IndexDegraded || m.CorpusDegraded || m.TimedOut {
		fmt.Fprintf(os.Stderr, "degraded:  embedding=%t index=%t corpus=%t timeout=%t\n",
			m.EmbeddingDegraded, m.IndexDegraded, m.CorpusDegraded, m.TimedOut)
	}
}

func importQACommand(c *cli.Context) error {
	ctx := context.Background()

	f, err := os.Open(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to open qa file: %w", err)
	}
	defer f.Close()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	added, err := db.ImportQA(ctx, f)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Printf("Imported %d entries\n", added)
	return nil
}

func chunksCommand(c *cli.Context) error {
	text, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	var opts []evidence.ChunkerOption
	if topic := c.String("topic"); topic != "" {
		opts = append(opts, evidence.WithDocumentTopic(topic))
	}
	chunks := evidence.NewChunker(opts...).CreateChunks(string(text), documentID(c))

	for _, chunk := range chunks {
		name := chunk.TopicName
		if chunk.LocalizedName != "" {
			name = fmt.Sprintf("%s (%s)", chunk.TopicName, chunk.LocalizedName)
		}
		fmt.Printf("[%d] %s: %d evidence items\n", chunk.ChunkIndex, name, len(chunk.EvidenceItems))
		if chunk.DisclosureText != "" {
			for _, line := range strings.Split(chunk.DisclosureText, "\n") {
				fmt.Printf("    %s\n", line)
			}
		}
	}
	fmt.Printf("%d chunks\n", len(chunks))
	return nil
}

func reembedCommand(c *cli.Context) error {
	ctx := context.Background()

	config := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxAttempts:    c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	// Validate config
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxAttempts <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	processed, err := db.NewReembedder(config, os.Stderr).Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("reembedding failed after %d chunks: %w", processed, err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
