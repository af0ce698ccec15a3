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

import "github.com/poiesic/sakina/core"

// SearchMonitor receives callbacks at each stage of a query. All callbacks
// for one query are made from the calling goroutine, in order.
type SearchMonitor interface {
	Start(requestID, query string)
	// AfterHeuristicScan reports the best Q&A candidate, if any. err is set
	// when the scan could not run or did not finish in time.
	AfterHeuristicScan(candidate *core.MatchCandidate, err error)
	// AfterVectorQuery reports the chunk candidates. err is set when the
	// query degraded to heuristic-only matching.
	AfterVectorQuery(candidates []core.MatchCandidate, err error)
	AfterClassification(result core.CitationResult)
	Finish(response *Response)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string)                                  {}
func (n *noopMonitor) AfterHeuristicScan(_ *core.MatchCandidate, _ error) {}
func (n *noopMonitor) AfterVectorQuery(_ []core.MatchCandidate, _ error)  {}
func (n *noopMonitor) AfterClassification(_ core.CitationResult)          {}
func (n *noopMonitor) Finish(_ *Response)                                 {}
