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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentberlin/scopecrawl/storage"
)

// CrawlState owns everything a crawl accumulates and is the unit of
// checkpointing. Workers apply the effects of one processed page inside
// Commit; Snapshot excludes commits, so a checkpoint never holds half a page.
type CrawlState struct {
	RunID        string
	Frontier     *Frontier
	Fingerprints *FingerprintSet
	Aggregator   *Aggregator
	Traps        *TrapDetector
	Diagnostics  *Diagnostics

	commit sync.RWMutex
}

// NewCrawlState builds empty state from cfg
func NewCrawlState(cfg *Config) *CrawlState {
	return &CrawlState{
		RunID:        uuid.NewString(),
		Frontier:     NewFrontier(cfg.PolitenessDelay),
		Fingerprints: NewFingerprintSet(cfg.NearDuplicateDistance),
		Aggregator:   NewAggregator(cfg.RootDomain, cfg.Stopwords),
		Traps:        NewTrapDetector(cfg.Traps),
		Diagnostics:  NewDiagnostics(),
	}
}

// Commit runs fn as one atomic unit with respect to Snapshot. Commits run
// concurrently with each other.
func (s *CrawlState) Commit(fn func()) {
	s.commit.RLock()
	defer s.commit.RUnlock()
	fn()
}

// Snapshot captures the state between commits. Entries dequeued but not yet
// committed are written back as pending.
func (s *CrawlState) Snapshot() *storage.Snapshot {
	s.commit.Lock()
	defer s.commit.Unlock()

	snap := &storage.Snapshot{
		Version: storage.SnapshotVersion,
		RunID:   s.RunID,
		SavedAt: time.Now().UTC(),
	}
	snap.Seen, snap.Pending, snap.Hosts = s.Frontier.export()
	snap.Fingerprints, snap.SimHashes = s.Fingerprints.export()

	agg := s.Aggregator.export()
	snap.UniquePages = agg.uniquePages
	snap.Words = agg.words
	snap.Subdomains = agg.subdomains
	snap.Sequence = agg.sequence
	snap.Longest = storage.LongestPage{
		URL:       agg.longest.URL,
		WordCount: agg.longest.WordCount,
		Sequence:  agg.longest.Sequence,
	}

	snap.HostCounts, snap.QueryVariants = s.Traps.export()
	snap.Diagnostics = s.Diagnostics.Snapshot()
	return snap
}

// Restore replaces the state with a loaded snapshot
func (s *CrawlState) Restore(snap *storage.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrCheckpointCorrupt, err)
	}

	s.commit.Lock()
	defer s.commit.Unlock()

	if snap.RunID != "" {
		s.RunID = snap.RunID
	}
	s.Frontier.restore(snap.Seen, snap.Pending, snap.Hosts)
	s.Fingerprints.restore(snap.Fingerprints, snap.SimHashes)
	s.Aggregator.restore(aggregateState{
		uniquePages: snap.UniquePages,
		words:       snap.Words,
		subdomains:  snap.Subdomains,
		sequence:    snap.Sequence,
		longest: LongestPage{
			URL:       snap.Longest.URL,
			WordCount: snap.Longest.WordCount,
			Sequence:  snap.Longest.Sequence,
		},
	})
	s.Traps.restore(snap.HostCounts, snap.QueryVariants)
	s.Diagnostics.restore(snap.Diagnostics)
	return nil
}

// Report is the read-only view of a crawl's results
type Report struct {
	RunID       string
	UniquePages int64
	Longest     LongestPage
	TopWords    []WordCount
	Subdomains  []SubdomainCount
	Diagnostics map[string]int64
	Pending     int
	Seen        int
}

// Report builds the result view with the topN most frequent words
func (s *CrawlState) Report(topN int) *Report {
	s.commit.Lock()
	defer s.commit.Unlock()

	return &Report{
		RunID:       s.RunID,
		UniquePages: s.Aggregator.UniquePages(),
		Longest:     s.Aggregator.Longest(),
		TopWords:    s.Aggregator.TopWords(topN),
		Subdomains:  s.Aggregator.Subdomains(),
		Diagnostics: s.Diagnostics.Snapshot(),
		Pending:     s.Frontier.Len() + s.Frontier.InFlight(),
		Seen:        s.Frontier.SeenCount(),
	}
}
