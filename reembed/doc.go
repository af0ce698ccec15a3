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


// Package reembed regenerates the embedding of every stored evidence chunk,
// for example after switching to a new embedding model.
//
// Chunks are read in batches, embedded with one EmbedTexts call per batch
// (retried with exponential backoff), normalized to unit length and written
// back in place. Chunk identity, insertion order and disclosure content are
// left untouched.
package reembed
