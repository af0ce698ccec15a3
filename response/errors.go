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


package response

import "errors"

var (
	// ErrOutsideWordBand is returned when no variant renders within the
	// configured word band. The closest rendering is returned alongside it.
	ErrOutsideWordBand = errors.New("response outside word band")

	// ErrInvalidTemplates is returned when a template set fails validation.
	ErrInvalidTemplates = errors.New("invalid response templates")
)
