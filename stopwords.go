// Copyright 2025 Agentic World, LLC (Sherin Thomas)
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

package scopecrawl

import (
	_ "embed"
	"fmt"
	"io"
	"strings"
)

//go:embed stopwords.txt
var defaultStopwords string

// DefaultStopwords returns a fresh copy of the built-in English stop-word list.
// Contractions are included both whole and as the fragments Tokenize produces.
func DefaultStopwords() map[string]struct{} {
	return ParseStopwords(defaultStopwords)
}

// ParseStopwords reads a comma or newline separated word list
func ParseStopwords(list string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r' || r == '\t' || r == ' '
	}) {
		words[strings.ToLower(w)] = struct{}{}
	}
	return words
}

// LoadStopwords reads a stop-word list from r
func LoadStopwords(r io.Reader) (map[string]struct{}, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read stop words: %w", err)
	}
	return ParseStopwords(string(data)), nil
}
