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

package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentberlin/scopecrawl"
	"github.com/agentberlin/scopecrawl/storage"
)

func sampleReport() *scopecrawl.Report {
	return &scopecrawl.Report{
		RunID:       "run-1",
		UniquePages: 12,
		Longest:     scopecrawl.LongestPage{URL: "https://www.ics.uci.edu/about/", WordCount: 812},
		TopWords: []scopecrawl.WordCount{
			{Word: "research", Count: 40},
			{Word: "students", Count: 31},
		},
		Subdomains: []scopecrawl.SubdomainCount{
			{Host: "vision.ics.uci.edu", Count: 3},
			{Host: "www.ics.uci.edu", Count: 9},
		},
		Diagnostics: map[string]int64{
			scopecrawl.DiagPagesFetched:   14,
			scopecrawl.DiagExactDuplicate: 2,
		},
	}
}

func TestWriteText(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, Write(&buf, sampleReport(), FormatText))

	want := `Number of unique pages found:
12

Longest page found:
https://www.ics.uci.edu/about/
812 words present

Most common words:
research, 40
students, 31

Subdomains found:
vision.ics.uci.edu, 3
www.ics.uci.edu, 9

Crawl diagnostics:
exact_duplicate, 2
pages_fetched, 14
`
	assert.Equal(t, want, buf.String())
}

func TestWriteTextIncomplete(t *testing.T) {
	r := sampleReport()
	r.Diagnostics = nil
	r.Pending = 4
	r.Seen = 20

	var buf strings.Builder
	require.NoError(t, Write(&buf, r, ""))
	assert.NotContains(t, buf.String(), "Crawl diagnostics")
	assert.True(t, strings.HasSuffix(buf.String(), "\nCrawl incomplete: 4 URLs pending of 20 seen\n"))
}

func TestWriteJSON(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, Write(&buf, sampleReport(), FormatJSON))

	var got jsonReport
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, int64(12), got.UniquePages)
	assert.Equal(t, 812, got.Longest.WordCount)
	assert.Equal(t, []jsonCount{{Key: "research", Count: 40}, {Key: "students", Count: 31}}, got.TopWords)
	assert.Equal(t, "www.ics.uci.edu", got.Subdomains[1].Key)
	assert.True(t, got.Complete)
	assert.NotEmpty(t, got.GeneratedAt)
}

func TestWriteJSONEmptyReport(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, Write(&buf, &scopecrawl.Report{}, FormatJSON))
	assert.Contains(t, buf.String(), `"topWords": []`)
	assert.Contains(t, buf.String(), `"diagnostics": {}`)
}

func TestWriteUnknownFormat(t *testing.T) {
	err := Write(&strings.Builder{}, sampleReport(), "xml")
	assert.ErrorContains(t, err, `unknown report format "xml"`)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.txt")
	require.NoError(t, WriteFile(path, sampleReport(), FormatText))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Number of unique pages found:\n12\n"))
}

func TestFromSnapshot(t *testing.T) {
	snap := &storage.Snapshot{
		Version:     storage.SnapshotVersion,
		RunID:       "saved-run",
		Seen:        []string{"https://www.ics.uci.edu/", "https://www.ics.uci.edu/a"},
		Pending:     []storage.Entry{{URL: "https://www.ics.uci.edu/a", Depth: 1}},
		UniquePages: 1,
		Words:       map[string]int64{"informatics": 5, "faculty": 9, "lab": 5},
		Subdomains:  map[string]int64{"www.ics.uci.edu": 1},
		Longest:     storage.LongestPage{URL: "https://www.ics.uci.edu/", WordCount: 19, Sequence: 1},
		Sequence:    1,
	}

	r, err := FromSnapshot(scopecrawl.NewDefaultConfig(), snap, 1)
	require.NoError(t, err)
	assert.Equal(t, "saved-run", r.RunID)
	assert.Equal(t, 1, r.Pending)
	assert.Equal(t, 2, r.Seen)
	assert.Equal(t, []scopecrawl.WordCount{{Word: "faculty", Count: 9}}, r.TopWords)

	snap.Version = 99
	_, err = FromSnapshot(scopecrawl.NewDefaultConfig(), snap, 1)
	assert.ErrorIs(t, err, scopecrawl.ErrCheckpointCorrupt)
}
