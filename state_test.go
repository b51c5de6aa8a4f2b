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
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentberlin/scopecrawl/storage"
)

func populatedState(t *testing.T) *CrawlState {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.NearDuplicateDistance = 3
	s := NewCrawlState(cfg)

	s.Commit(func() {
		s.Frontier.Enqueue("https://www.ics.uci.edu/", 0, "")
		s.Frontier.Enqueue("https://www.ics.uci.edu/about", 1, "https://www.ics.uci.edu/")
		s.Frontier.Enqueue("https://vision.ics.uci.edu/", 1, "https://www.ics.uci.edu/")
		s.Traps.Observe("https://www.ics.uci.edu/about")
		s.Traps.Observe("https://www.ics.uci.edu/events?page=2")
	})

	entry, err := s.Frontier.Dequeue(time.Now())
	require.NoError(t, err)

	s.Commit(func() {
		tokens := Tokenize("Information and computer sciences research at UC Irvine")
		s.Fingerprints.CheckAndAdd(Fingerprint("page one"), SimHash(s.Aggregator.ContentWords(tokens)))
		s.Aggregator.Record(PageRecord{URL: entry.URL, WordCount: len(tokens)}, tokens)
		s.Diagnostics.apply(diagDelta{DiagPagesFetched: 1, DiagRetry: 2})
		s.Frontier.Done(entry, time.Now())
	})
	return s
}

func TestCrawlStateSnapshotRestore(t *testing.T) {
	src := populatedState(t)
	snap := src.Snapshot()
	require.NoError(t, snap.Validate())
	assert.Equal(t, storage.SnapshotVersion, snap.Version)
	assert.Len(t, snap.Pending, 2)
	assert.Len(t, snap.Seen, 3)

	dst := NewCrawlState(NewDefaultConfig())
	require.NoError(t, dst.Restore(snap))

	assert.Equal(t, src.Report(10), dst.Report(10))
	assert.Equal(t, src.RunID, dst.RunID)
	assert.Equal(t, src.Traps.HostCount("www.ics.uci.edu"), dst.Traps.HostCount("www.ics.uci.edu"))
	assert.True(t, dst.Fingerprints.Contains(Fingerprint("page one")))
	assert.False(t, dst.Frontier.Enqueue("https://vision.ics.uci.edu/", 0, ""))
}

func TestCrawlStateSnapshotThroughFileStore(t *testing.T) {
	src := populatedState(t)
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "crawl.ckpt"))
	require.NoError(t, store.Save(src.Snapshot()))

	loaded, err := store.Load()
	require.NoError(t, err)

	dst := NewCrawlState(NewDefaultConfig())
	require.NoError(t, dst.Restore(loaded))

	want := src.Report(0)
	got := dst.Report(0)
	assert.Equal(t, want.UniquePages, got.UniquePages)
	assert.Equal(t, want.Longest, got.Longest)
	assert.Equal(t, want.TopWords, got.TopWords)
	assert.Equal(t, want.Subdomains, got.Subdomains)
	assert.Equal(t, want.Diagnostics, got.Diagnostics)
	assert.Equal(t, want.Pending, got.Pending)
	assert.Equal(t, want.Seen, got.Seen)
}

func TestCrawlStateSnapshotIncludesInFlight(t *testing.T) {
	s := NewCrawlState(NewDefaultConfig())
	s.Frontier.Enqueue("https://www.ics.uci.edu/", 0, "")
	_, err := s.Frontier.Dequeue(time.Now())
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap.Pending, 1)
	assert.Equal(t, "https://www.ics.uci.edu/", snap.Pending[0].URL)
	assert.Equal(t, 1, s.Report(0).Pending)
}

func TestCrawlStateRestoreRejectsInvalid(t *testing.T) {
	s := NewCrawlState(NewDefaultConfig())

	err := s.Restore(&storage.Snapshot{Version: 99})
	assert.ErrorIs(t, err, ErrCheckpointCorrupt)

	err = s.Restore(&storage.Snapshot{
		Version: storage.SnapshotVersion,
		Pending: []storage.Entry{{URL: "https://www.ics.uci.edu/orphan"}},
	})
	assert.ErrorIs(t, err, ErrCheckpointCorrupt)
	assert.Equal(t, 0, s.Frontier.SeenCount())
}

func TestCrawlStateSnapshotWaitsForCommit(t *testing.T) {
	s := NewCrawlState(NewDefaultConfig())

	started := make(chan struct{})
	release := make(chan struct{})
	var committed atomic.Bool
	go s.Commit(func() {
		close(started)
		<-release
		s.Frontier.Enqueue("https://www.ics.uci.edu/", 0, "")
		s.Aggregator.Record(PageRecord{URL: "https://www.ics.uci.edu/", WordCount: 1}, nil)
		committed.Store(true)
	})
	<-started

	done := make(chan *storage.Snapshot)
	go func() { done <- s.Snapshot() }()

	select {
	case <-done:
		t.Fatal("snapshot taken while a commit was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	snap := <-done
	assert.True(t, committed.Load())
	assert.Equal(t, int64(1), snap.UniquePages)
	assert.Len(t, snap.Pending, 1)
}
