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


package heuristic

import "errors"

var (
	// ErrInvalidTables is returned when a vocabulary table fails validation.
	ErrInvalidTables = errors.New("invalid heuristic tables")

	// ErrTablesRequired is returned when a matcher is built without tables.
	ErrTablesRequired = errors.New("heuristic tables are required")
)
