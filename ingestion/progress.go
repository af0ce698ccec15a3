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
	"sync"
	"time"
)

// ProgressFunc receives ingestion progress. etaSeconds estimates the time
// left from the average time per processed chunk so far.
type ProgressFunc func(processed, total int, etaSeconds float64)

// progressTracker counts processed chunks and reports every interval
// chunks and once at the end. Calls to the callback are serialized.
type progressTracker struct {
	mu         sync.Mutex
	total      int
	processed  int
	interval   int
	started    time.Time
	onProgress ProgressFunc
}

func newProgressTracker(total, interval int, onProgress ProgressFunc) *progressTracker {
	return &progressTracker{
		total:      total,
		interval:   interval,
		started:    time.Now(),
		onProgress: onProgress,
	}
}

// done marks one chunk processed.
func (pt *progressTracker) done() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.processed++
	if pt.onProgress == nil {
		return
	}
	if pt.processed%pt.interval != 0 && pt.processed != pt.total {
		return
	}
	pt.onProgress(pt.processed, pt.total, pt.eta())
}

func (pt *progressTracker) eta() float64 {
	if pt.processed == 0 || pt.processed >= pt.total {
		return 0
	}
	perChunk := time.Since(pt.started).Seconds() / float64(pt.processed)
	return perChunk * float64(pt.total-pt.processed)
}
