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


// Package search answers user messages from the curated corpus.
//
// The Engine runs two sub-scans concurrently for every query:
//   - a heuristic scan of the Q&A set (phrase, concept and word overlap)
//   - a vector query of the chunk index using the message embedding
//
// Both candidate sets are merged, the citation classifier picks the winner
// and assigns a confidence tier, and the response assembler renders the
// reply. A failing or slow embedding service or index degrades the query to
// heuristic-only matching instead of failing it; the response metadata
// records what happened.
package search
