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


package evidence

import "errors"

var (
	// ErrNoEvidenceSection is returned when a section has no evidence heading.
	// Callers recover by treating the section as having no evidence items.
	ErrNoEvidenceSection = errors.New("no evidence section found")

	// ErrDisclosureLeak is returned when disclosure text contains a sentence
	// copied from a treatment subsection.
	ErrDisclosureLeak = errors.New("disclosure text contains treatment content")
)
