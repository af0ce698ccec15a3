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

import (
	"strings"
	"unicode"
)

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "`", "'")

// normalizer lower-cases text, expands contractions, strips punctuation and
// collapses whitespace.
type normalizer struct {
	contractions map[string]string
}

func newNormalizer(contractions map[string]string) normalizer {
	table := make(map[string]string, len(contractions))
	for k, v := range contractions {
		table[strings.ToLower(apostrophes.Replace(k))] = strings.ToLower(v)
	}
	return normalizer{contractions: table}
}

func (n normalizer) normalize(s string) string {
	s = apostrophes.Replace(strings.ToLower(s))

	fields := strings.Fields(s)
	for i, f := range fields {
		word := strings.TrimFunc(f, func(r rune) bool { return !isWordRune(r) && r != '\'' })
		word = strings.Trim(word, "'")
		if expanded, ok := n.contractions[word]; ok {
			fields[i] = expanded
		}
	}

	var sb strings.Builder
	for _, r := range strings.Join(fields, " ") {
		if isWordRune(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// wordSet returns the distinct words of normalized text.
func wordSet(normalized string) map[string]struct{} {
	words := strings.Fields(normalized)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// padded surrounds normalized text with spaces so phrase lookups only match
// whole words.
func padded(normalized string) string {
	return " " + normalized + " "
}
