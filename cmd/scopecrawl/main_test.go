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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentberlin/scopecrawl"
)

const testConfig = `
seeds:
  - https://www.ics.uci.edu/
politeness:
  delay: 0
  respect_robots: false
fetch:
  parallelism: 1
retry:
  backoff: 1ms
  max_backoff: 5ms
dedup:
  near_duplicate_distance: 0
aggregate:
  min_words: 0
  min_unique_ratio: 0
checkpoint:
  path: state/crawl.ckpt
`

func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scopecrawl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig+extra), 0o644))
	return path
}

func testSite() *scopecrawl.MockTransport {
	mock := scopecrawl.NewMockTransport()
	mock.RegisterHTML("https://www.ics.uci.edu/", `<html><body>
		<p>informatics research students faculty</p>
		<a href="/about">About</a>
		<a href="https://vision.ics.uci.edu/">Vision</a>
		<a href="https://www.example.com/">Elsewhere</a>
	</body></html>`)
	mock.RegisterHTML("https://www.ics.uci.edu/about", `<html><body>
		<p>about the school history research</p>
	</body></html>`)
	mock.RegisterHTML("https://vision.ics.uci.edu/", `<html><body>
		<p>computer vision laboratory research</p>
	</body></html>`)
	return mock
}

func newTestEnv(stdout io.Writer, mock *scopecrawl.MockTransport) *env {
	e := &env{ctx: context.Background(), stdout: stdout, stderr: io.Discard}
	if mock != nil {
		e.transport = mock
	}
	return e
}

func TestCrawlThenReport(t *testing.T) {
	cfgPath := writeTestConfig(t, "")
	g := &Globals{Config: cfgPath}

	var crawled strings.Builder
	require.NoError(t, (&CrawlCmd{}).Run(g, newTestEnv(&crawled, testSite())))

	out := crawled.String()
	assert.True(t, strings.HasPrefix(out, "Number of unique pages found:\n3\n"), out)
	assert.Contains(t, out, "\nSubdomains found:\nvision.ics.uci.edu, 1\nwww.ics.uci.edu, 2\n")
	assert.Contains(t, out, "research, 3\n")
	assert.FileExists(t, filepath.Join(filepath.Dir(cfgPath), "state", "crawl.ckpt"))

	var reported strings.Builder
	require.NoError(t, (&ReportCmd{}).Run(g, newTestEnv(&reported, nil)))
	assert.Equal(t, out, reported.String())
}

func TestCrawlWritesReportFile(t *testing.T) {
	cfgPath := writeTestConfig(t, "")
	output := filepath.Join(t.TempDir(), "report.json")

	var stdout strings.Builder
	cmd := &CrawlCmd{Output: output, Format: "json", MaxPages: 1}
	require.NoError(t, cmd.Run(&Globals{Config: cfgPath}, newTestEnv(&stdout, testSite())))
	assert.Empty(t, stdout.String())

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"uniquePages": 1`)
	assert.Contains(t, string(data), `"complete": false`)
}

func TestCrawlRecordsRuns(t *testing.T) {
	cfgPath := writeTestConfig(t, "")
	db := filepath.Join(t.TempDir(), "crawl.db")
	g := &Globals{Config: cfgPath}

	require.NoError(t, (&CrawlCmd{SQLite: db, MaxPages: 2}).Run(g, newTestEnv(io.Discard, testSite())))
	require.NoError(t, (&CrawlCmd{SQLite: db}).Run(g, newTestEnv(io.Discard, testSite())))

	var listed strings.Builder
	require.NoError(t, (&RunsCmd{SQLite: db}).Run(g, newTestEnv(&listed, nil)))
	lines := strings.Split(strings.TrimSpace(listed.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[2], "completed")
	assert.Contains(t, lines[3], "stopped")

	var reported strings.Builder
	require.NoError(t, (&ReportCmd{SQLite: db}).Run(g, newTestEnv(&reported, nil)))
	assert.True(t, strings.HasPrefix(reported.String(), "Number of unique pages found:\n3\n"))
}

func TestCrawlWithoutSeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("checkpoint:\n  path: \"\"\n"), 0o644))

	err := (&CrawlCmd{}).Run(&Globals{Config: path}, newTestEnv(io.Discard, scopecrawl.NewMockTransport()))
	assert.ErrorIs(t, err, scopecrawl.ErrNoSeeds)
}

func TestReportWithoutCheckpoint(t *testing.T) {
	cfgPath := writeTestConfig(t, "")
	err := (&ReportCmd{}).Run(&Globals{Config: cfgPath}, newTestEnv(io.Discard, nil))
	assert.ErrorContains(t, err, "no checkpoint found")
}

func TestParseFlags(t *testing.T) {
	var c cli
	parser, err := kong.New(&c, kong.Vars{"version": version}, kong.Exit(func(int) {}))
	require.NoError(t, err)

	kctx, err := parser.Parse([]string{
		"--log-level", "debug",
		"crawl", "--max-pages", "25", "--deadline", "90s", "-p", "3", "--reset",
		"https://www.ics.uci.edu/", "https://www.stat.uci.edu/",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(kctx.Command(), "crawl"))
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 25, c.Crawl.MaxPages)
	assert.Equal(t, 90*time.Second, c.Crawl.Deadline)
	assert.Equal(t, 3, c.Crawl.Parallelism)
	assert.True(t, c.Crawl.Reset)
	assert.Equal(t, []string{"https://www.ics.uci.edu/", "https://www.stat.uci.edu/"}, c.Crawl.Seeds)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		start, end int64
		want       string
	}{
		{100, 0, "-"},
		{100, 145, "45s"},
		{100, 100 + 125, "2m5s"},
		{0, 2*3600 + 60*7, "2h7m"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.start, tt.end))
		})
	}
}
