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


package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/sakina/ai"
	"github.com/poiesic/sakina/citation"
	"github.com/poiesic/sakina/core"
	"github.com/poiesic/sakina/heuristic"
	"github.com/poiesic/sakina/response"
	"github.com/poiesic/sakina/storage"
)

const (
	defaultTimeout  = 3 * time.Second
	defaultTopK     = 5
	defaultMinScore = 0.60
)

// Response is the rendered answer to a user message.
type Response struct {
	Text       string
	Citations  []core.Citation
	Tier       core.Tier
	TemplateID string
	Metadata   MatchMetadata
}

// MatchMetadata describes how a response was produced.
type MatchMetadata struct {
	RequestID       string
	QACandidates    int // 1 when the heuristic scan found a match
	ChunkCandidates int
	// Degradation flags. Any of them means the answer was built from a
	// subset of the corpus.
	EmbeddingDegraded bool
	IndexDegraded     bool
	CorpusDegraded    bool
	TimedOut          bool

	Source    core.SourceKind // zero when nothing matched
	SourceID  string
	Score     float64
	Breakdown core.ScoreBreakdown
	Label     string
	Disclosed bool

	Words          int
	WithinWordBand bool
	Elapsed        time.Duration
}

// Engine answers user messages from the curated Q&A set and the chunk
// vector index.
type Engine struct {
	qaRepository storage.QARepository
	index        storage.VectorIndex
	embedder     ai.Embedder
	matcher      *heuristic.Matcher
	classifier   *citation.Classifier
	assembler    *response.Assembler
	monitor      SearchMonitor
	timeout      time.Duration
	topK         int
	minScore     float64
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithTimeout bounds how long a query waits for its sub-scans.
// Default is 3s.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", timeout)
		}
		e.timeout = timeout
		return nil
	}
}

// WithTopK sets how many chunk candidates the vector index returns.
// Default is 5.
func WithTopK(topK int) Option {
	return func(e *Engine) error {
		if topK < 1 {
			return fmt.Errorf("topK must be positive, got %d", topK)
		}
		e.topK = topK
		return nil
	}
}

// WithMinScore sets the vector similarity floor. Default is 0.60.
func WithMinScore(score float64) Option {
	return func(e *Engine) error {
		if score < 0 || score > 1 {
			return fmt.Errorf("min score must be within [0,1], got %v", score)
		}
		e.minScore = score
		return nil
	}
}

// WithMonitor sets the monitor used by Query.
func WithMonitor(monitor SearchMonitor) Option {
	return func(e *Engine) error {
		e.monitor = monitor
		return nil
	}
}

// WithMatcher replaces the heuristic matcher.
func WithMatcher(matcher *heuristic.Matcher) Option {
	return func(e *Engine) error {
		e.matcher = matcher
		return nil
	}
}

// WithClassifier replaces the citation classifier.
func WithClassifier(classifier *citation.Classifier) Option {
	return func(e *Engine) error {
		e.classifier = classifier
		return nil
	}
}

// WithAssembler replaces the response assembler.
func WithAssembler(assembler *response.Assembler) Option {
	return func(e *Engine) error {
		e.assembler = assembler
		return nil
	}
}

// NewEngine creates a new query engine.
func NewEngine(
	qaRepository storage.QARepository,
	index storage.VectorIndex,
	provider ai.AIProvider,
	opts ...Option,
) (*Engine, error) {
	if qaRepository == nil {
		return nil, ErrQARepositoryRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	e := &Engine{
		qaRepository: qaRepository,
		index:        index,
		embedder:     provider.Embedder(),
		timeout:      defaultTimeout,
		topK:         defaultTopK,
		minScore:     defaultMinScore,
		logger:       slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if e.matcher == nil {
		e.matcher = heuristic.DefaultMatcher()
	}
	if e.classifier == nil {
		classifier, err := citation.NewClassifier()
		if err != nil {
			return nil, err
		}
		e.classifier = classifier
	}
	if e.assembler == nil {
		assembler, err := response.NewAssembler(response.WithEmotionDetector(e.matcher))
		if err != nil {
			return nil, err
		}
		e.assembler = assembler
	}
	e.logger = e.logger.With("component", "search-engine")

	return e, nil
}

// Query answers a user message.
func (e *Engine) Query(ctx context.Context, userMessage string) (*Response, error) {
	return e.QueryWithMonitor(ctx, userMessage, e.monitor)
}

type heuristicResult struct {
	candidate *core.MatchCandidate
	err       error
}

type vectorResult struct {
	candidates []core.MatchCandidate
	err        error
}

// Sub-steps of the vector stage, tracked so a deadline can be attributed.
const (
	vectorStageEmbedding int32 = iota
	vectorStageIndex
)

// QueryWithMonitor answers a user message, reporting each stage to monitor.
//
// The heuristic Q&A scan and the vector query run concurrently. If the
// deadline passes before both finish, the answer is built from whatever
// has arrived. Embedding, index and timeout failures never fail the query;
// they are recorded in the response metadata. The only errors returned
// come from rendering the reply.
func (e *Engine) QueryWithMonitor(ctx context.Context, userMessage string, monitor SearchMonitor) (*Response, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	started := time.Now()
	meta := MatchMetadata{RequestID: uuid.NewString()}
	logger := e.logger.With("request", meta.RequestID)

	monitor.Start(meta.RequestID, userMessage)

	var candidates []core.MatchCandidate
	if strings.TrimSpace(userMessage) != "" {
		candidates = e.collect(ctx, userMessage, &meta, monitor, logger)
	}

	result := e.classifier.Classify(candidates)
	monitor.AfterClassification(result)

	meta.Label = result.Label
	meta.Disclosed = result.Candidate != nil && result.AlwaysShowDocument
	if result.Candidate != nil {
		meta.Source = result.Candidate.SourceKind
		meta.SourceID = result.Candidate.SourceID
		meta.Score = result.Candidate.Score
		meta.Breakdown = result.Candidate.Breakdown
	}

	reply, err := e.assembler.Assemble(result, userMessage)
	switch {
	case err == nil:
		meta.WithinWordBand = true
	case errors.Is(err, response.ErrOutsideWordBand):
		logger.Warn("reply outside word band", "template", reply.TemplateID, "words", reply.Words, "err", err)
	default:
		logger.Error("error assembling reply", "err", err)
		return nil, err
	}

	meta.Words = reply.Words
	meta.Elapsed = time.Since(started)
	resp := &Response{
		Text:       reply.Text,
		Citations:  reply.Citations,
		Tier:       reply.Tier,
		TemplateID: reply.TemplateID,
		Metadata:   meta,
	}

	logger.Debug("query answered",
		"tier", resp.Tier,
		"source", meta.Source,
		"score", meta.Score,
		"degraded", meta.EmbeddingDegraded || meta.IndexDegraded || meta.CorpusDegraded,
		"elapsed", meta.Elapsed)
	monitor.Finish(resp)
	return resp, nil
}

// collect runs both sub-scans under the engine deadline and merges their
// candidates.
func (e *Engine) collect(ctx context.Context, userMessage string, meta *MatchMetadata, monitor SearchMonitor, logger *slog.Logger) []core.MatchCandidate {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// Buffered so stragglers can finish after the deadline without blocking
	heuristicCh := make(chan heuristicResult, 1)
	vectorCh := make(chan vectorResult, 1)
	var vectorStage atomic.Int32
	go func() { heuristicCh <- e.scanQA(ctx, userMessage) }()
	go func() { vectorCh <- e.queryIndex(ctx, userMessage, &vectorStage) }()

	var candidates []core.MatchCandidate
	heuristicDone, vectorDone := false, false
	for !heuristicDone || !vectorDone {
		select {
		case res := <-heuristicCh:
			heuristicDone = true
			if res.err != nil {
				meta.CorpusDegraded = true
				logger.Warn("heuristic scan degraded", "err", res.err)
			}
			if res.candidate != nil {
				meta.QACandidates = 1
				candidates = append(candidates, *res.candidate)
			}
			monitor.AfterHeuristicScan(res.candidate, res.err)

		case res := <-vectorCh:
			vectorDone = true
			if res.err != nil {
				meta.EmbeddingDegraded = errors.Is(res.err, ErrEmbeddingUnavailable)
				meta.IndexDegraded = errors.Is(res.err, ErrIndexUnavailable)
				logger.Warn("vector query degraded, using heuristic matches only", "err", res.err)
			}
			meta.ChunkCandidates = len(res.candidates)
			candidates = append(candidates, res.candidates...)
			monitor.AfterVectorQuery(res.candidates, res.err)

		case <-ctx.Done():
			meta.TimedOut = true
			err := fmt.Errorf("%w: %w", ErrStageTimeout, ctx.Err())
			if !heuristicDone {
				heuristicDone = true
				meta.CorpusDegraded = true
				monitor.AfterHeuristicScan(nil, err)
			}
			if !vectorDone {
				vectorDone = true
				if vectorStage.Load() == vectorStageIndex {
					meta.IndexDegraded = true
					err = fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
				} else {
					meta.EmbeddingDegraded = true
					err = fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
				}
				monitor.AfterVectorQuery(nil, err)
			}
			logger.Warn("query deadline passed, answering with available candidates", "candidates", len(candidates))
		}
	}
	return candidates
}

// scanQA finds the best heuristic match in the Q&A set.
func (e *Engine) scanQA(ctx context.Context, userMessage string) heuristicResult {
	entries, err := e.qaRepository.ListQAEntries(ctx)
	if err != nil {
		return heuristicResult{err: fmt.Errorf("%w: %w", ErrCorpusUnavailable, err)}
	}
	candidate, ok := e.matcher.BestQAMatch(userMessage, entries)
	if !ok {
		return heuristicResult{}
	}
	return heuristicResult{candidate: &candidate}
}

// queryIndex embeds the message and queries the vector index. stage is
// advanced to vectorStageIndex once the embedding is available.
func (e *Engine) queryIndex(ctx context.Context, userMessage string, stage *atomic.Int32) vectorResult {
	if e.embedder == nil {
		return vectorResult{err: fmt.Errorf("%w: no embedder configured", ErrEmbeddingUnavailable)}
	}
	vector, err := e.embedder.EmbedText(ctx, userMessage)
	if err == nil && len(vector) == 0 {
		err = ai.ErrEmptyEmbedding
	}
	if err != nil {
		return vectorResult{err: fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)}
	}

	stage.Store(vectorStageIndex)
	candidates, err := e.index.Query(ctx, vector, e.topK, e.minScore)
	if err != nil {
		return vectorResult{err: fmt.Errorf("%w: %w", ErrIndexUnavailable, err)}
	}
	return vectorResult{candidates: candidates}
}
