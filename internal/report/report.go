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

// Package report renders crawl results for people and for other tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/agentberlin/scopecrawl"
	"github.com/agentberlin/scopecrawl/storage"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// FromSnapshot rebuilds the report of a saved crawl without running it
func FromSnapshot(cfg *scopecrawl.Config, snap *storage.Snapshot, topN int) (*scopecrawl.Report, error) {
	state := scopecrawl.NewCrawlState(cfg)
	if err := state.Restore(snap); err != nil {
		return nil, err
	}
	return state.Report(topN), nil
}

// Write renders r to w in the given format
func Write(w io.Writer, r *scopecrawl.Report, format string) error {
	switch format {
	case FormatText, "":
		return writeText(w, r)
	case FormatJSON:
		return writeJSON(w, r)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteFile renders r to path, creating parent directories as needed
func WriteFile(path string, r *scopecrawl.Report, format string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %v", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, r, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeText(w io.Writer, r *scopecrawl.Report) error {
	ew := &errWriter{w: w}

	ew.printf("Number of unique pages found:\n%d\n", r.UniquePages)
	ew.printf("\nLongest page found:\n%s\n", r.Longest.URL)
	ew.printf("%d words present\n", r.Longest.WordCount)

	ew.printf("\nMost common words:\n")
	for _, wc := range r.TopWords {
		ew.printf("%s, %d\n", wc.Word, wc.Count)
	}

	ew.printf("\nSubdomains found:\n")
	for _, sc := range r.Subdomains {
		ew.printf("%s, %d\n", sc.Host, sc.Count)
	}

	if len(r.Diagnostics) > 0 {
		ew.printf("\nCrawl diagnostics:\n")
		for _, name := range sortedNames(r.Diagnostics) {
			ew.printf("%s, %d\n", name, r.Diagnostics[name])
		}
	}
	if r.Pending > 0 {
		ew.printf("\nCrawl incomplete: %d URLs pending of %d seen\n", r.Pending, r.Seen)
	}
	return ew.err
}

type jsonReport struct {
	RunID       string           `json:"runId"`
	GeneratedAt string           `json:"generatedAt"`
	UniquePages int64            `json:"uniquePages"`
	Longest     jsonLongest      `json:"longestPage"`
	TopWords    []jsonCount      `json:"topWords"`
	Subdomains  []jsonCount      `json:"subdomains"`
	Diagnostics map[string]int64 `json:"diagnostics"`
	Pending     int              `json:"pending"`
	Seen        int              `json:"seen"`
	Complete    bool             `json:"complete"`
}

type jsonLongest struct {
	URL       string `json:"url"`
	WordCount int    `json:"wordCount"`
}

type jsonCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

func writeJSON(w io.Writer, r *scopecrawl.Report) error {
	out := jsonReport{
		RunID:       r.RunID,
		GeneratedAt: time.Now().Format(time.RFC3339),
		UniquePages: r.UniquePages,
		Longest:     jsonLongest{URL: r.Longest.URL, WordCount: r.Longest.WordCount},
		TopWords:    make([]jsonCount, 0, len(r.TopWords)),
		Subdomains:  make([]jsonCount, 0, len(r.Subdomains)),
		Diagnostics: r.Diagnostics,
		Pending:     r.Pending,
		Seen:        r.Seen,
		Complete:    r.Pending == 0,
	}
	for _, wc := range r.TopWords {
		out.TopWords = append(out.TopWords, jsonCount{Key: wc.Word, Count: wc.Count})
	}
	for _, sc := range r.Subdomains {
		out.Subdomains = append(out.Subdomains, jsonCount{Key: sc.Host, Count: sc.Count})
	}
	if out.Diagnostics == nil {
		out.Diagnostics = map[string]int64{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func sortedNames(m map[string]int64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// errWriter keeps the first write error so callers check once
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
