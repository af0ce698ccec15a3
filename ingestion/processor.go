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


package ingestion

import (
	"context"

	"github.com/poiesic/sakina/core"
)

// processor is an internal interface for processing evidence chunks.
// Implementations enrich and store one chunk at a time so the pipeline can
// record failures per chunk.
type processor interface {
	// process handles a single chunk and reports how many attempts it took.
	process(ctx context.Context, chunk *core.EvidenceChunk) (attempts int, err error)
}
