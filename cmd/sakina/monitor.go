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
	"fmt"
	"io"
	"os"
	"time"

	"github.com/poiesic/sakina/core"
	"github.com/poiesic/sakina/search"
)

// stageMonitor prints each retrieval stage as it completes.
type stageMonitor struct {
	start time.Time
	out   io.Writer
}

var _ search.SearchMonitor = (*stageMonitor)(nil)

func (m *stageMonitor) writer() io.Writer {
	if m.out == nil {
		return os.Stderr
	}
	return m.out
}

func (m *stageMonitor) stage(format string, args ...any) {
	elapsed := time.Since(m.start).Round(time.Millisecond)
	fmt.Fprintf(m.writer(), "[%6s] "+format+"\n", append([]any{elapsed}, args...)...)
}

func (m *stageMonitor) Start(requestID, query string) {
	m.start = time.Now()
	m.stage("request %s: %q", requestID, query)
}

func (m *stageMonitor) AfterHeuristicScan(best *core.MatchCandidate, err error) {
	switch {
	case err != nil:
		m.stage("qa scan failed: %v", err)
	case best == nil:
		m.stage("qa scan: no match")
	default:
		m.stage("qa scan: %s score=%.3f", best.SourceID, best.Score)
	}
}

func (m *stageMonitor) AfterVectorQuery(candidates []core.MatchCandidate, err error) {
	if err != nil {
		m.stage("vector query failed: %v", err)
		return
	}
	m.stage("vector query: %d candidates", len(candidates))
	for _, c := range candidates {
		m.stage("  %s score=%.3f", c.SourceID, c.Score)
	}
}

func (m *stageMonitor) AfterClassification(result core.CitationResult) {
	m.stage("classified: %s (%s)", result.Tier, result.Label)
}

func (m *stageMonitor) Finish(resp *search.Response) {
	m.stage("assembled %s, %d words", resp.TemplateID, resp.Metadata.Words)
}
