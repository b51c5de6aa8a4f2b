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

package store

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/agentberlin/scopecrawl/storage"
)

const checkpointID = 1

var _ storage.Store = (*Store)(nil)

// Save implements storage.Store. The previous checkpoint is replaced inside
// one transaction, so a failed save leaves it intact.
func (s *Store) Save(snap *storage.Snapshot) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := clearTables(tx); err != nil {
			return err
		}

		meta := CheckpointMeta{
			ID:              checkpointID,
			Version:         snap.Version,
			RunID:           snap.RunID,
			SavedAt:         snap.SavedAt.UnixNano(),
			UniquePages:     snap.UniquePages,
			LongestURL:      snap.Longest.URL,
			LongestWords:    snap.Longest.WordCount,
			LongestSequence: int64(snap.Longest.Sequence),
			Sequence:        int64(snap.Sequence),
		}
		if err := tx.Create(&meta).Error; err != nil {
			return err
		}

		seen := make([]SeenURL, len(snap.Seen))
		for i, u := range snap.Seen {
			seen[i] = SeenURL{URL: u}
		}
		if err := insertBatches(tx, seen); err != nil {
			return err
		}
		if err := insertBatches(tx, queueRows(snap.Pending)); err != nil {
			return err
		}

		hosts := make([]HostClock, len(snap.Hosts))
		for i, h := range snap.Hosts {
			var last int64
			if !h.LastFetch.IsZero() {
				last = h.LastFetch.UnixNano()
			}
			hosts[i] = HostClock{Host: h.Host, LastFetch: last}
		}
		if err := insertBatches(tx, hosts); err != nil {
			return err
		}

		prints := make([]ContentFingerprint, 0, len(snap.Fingerprints)+len(snap.SimHashes))
		for i, fp := range snap.Fingerprints {
			prints = append(prints, ContentFingerprint{Kind: FingerprintExact, Position: i, Value: int64(fp)})
		}
		for i, sim := range snap.SimHashes {
			prints = append(prints, ContentFingerprint{Kind: FingerprintSim, Position: i, Value: int64(sim)})
		}
		if err := insertBatches(tx, prints); err != nil {
			return err
		}

		words := make([]WordTally, 0, len(snap.Words))
		for _, w := range sortedKeys(snap.Words) {
			words = append(words, WordTally{Word: w, Count: snap.Words[w]})
		}
		if err := insertBatches(tx, words); err != nil {
			return err
		}

		subdomains := make([]SubdomainTally, 0, len(snap.Subdomains))
		for _, h := range sortedKeys(snap.Subdomains) {
			subdomains = append(subdomains, SubdomainTally{Host: h, Count: snap.Subdomains[h]})
		}
		if err := insertBatches(tx, subdomains); err != nil {
			return err
		}

		counters := make([]HostCounter, 0, len(snap.HostCounts))
		for _, h := range sortedKeys(snap.HostCounts) {
			counters = append(counters, HostCounter{Host: h, Count: snap.HostCounts[h]})
		}
		if err := insertBatches(tx, counters); err != nil {
			return err
		}

		var variants []QueryVariant
		for key, hashes := range snap.QueryVariants {
			for _, h := range hashes {
				variants = append(variants, QueryVariant{Key: key, Hash: int64(h)})
			}
		}
		if err := insertBatches(tx, variants); err != nil {
			return err
		}

		diags := make([]DiagnosticCounter, 0, len(snap.Diagnostics))
		for _, name := range sortedKeys(snap.Diagnostics) {
			diags = append(diags, DiagnosticCounter{Name: name, Count: snap.Diagnostics[name]})
		}
		return insertBatches(tx, diags)
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load implements storage.Store
func (s *Store) Load() (*storage.Snapshot, error) {
	var meta CheckpointMeta
	if err := s.db.First(&meta, checkpointID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNoCheckpoint
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	snap := &storage.Snapshot{
		Version:     meta.Version,
		RunID:       meta.RunID,
		SavedAt:     time.Unix(0, meta.SavedAt).UTC(),
		UniquePages: meta.UniquePages,
		Sequence:    uint64(meta.Sequence),
		Longest: storage.LongestPage{
			URL:       meta.LongestURL,
			WordCount: meta.LongestWords,
			Sequence:  uint64(meta.LongestSequence),
		},
		Words:         make(map[string]int64),
		Subdomains:    make(map[string]int64),
		HostCounts:    make(map[string]int64),
		QueryVariants: make(map[string][]uint64),
		Diagnostics:   make(map[string]int64),
	}

	var err error
	if snap.Seen, err = loadSeen(s.db); err != nil {
		return nil, fmt.Errorf("failed to load seen urls: %w", err)
	}
	if snap.Pending, err = loadQueue(s.db); err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	var hosts []HostClock
	if err := s.db.Order("host ASC").Find(&hosts).Error; err != nil {
		return nil, fmt.Errorf("failed to load host clocks: %w", err)
	}
	for _, h := range hosts {
		hs := storage.HostState{Host: h.Host}
		if h.LastFetch != 0 {
			hs.LastFetch = time.Unix(0, h.LastFetch).UTC()
		}
		snap.Hosts = append(snap.Hosts, hs)
	}

	var prints []ContentFingerprint
	if err := s.db.Order("kind ASC, position ASC").Find(&prints).Error; err != nil {
		return nil, fmt.Errorf("failed to load fingerprints: %w", err)
	}
	for _, p := range prints {
		switch p.Kind {
		case FingerprintExact:
			snap.Fingerprints = append(snap.Fingerprints, uint64(p.Value))
		case FingerprintSim:
			snap.SimHashes = append(snap.SimHashes, uint64(p.Value))
		default:
			return nil, fmt.Errorf("%w: unknown fingerprint kind %q", storage.ErrCorrupt, p.Kind)
		}
	}

	var words []WordTally
	if err := s.db.Find(&words).Error; err != nil {
		return nil, fmt.Errorf("failed to load word counts: %w", err)
	}
	for _, w := range words {
		snap.Words[w.Word] = w.Count
	}

	var subdomains []SubdomainTally
	if err := s.db.Find(&subdomains).Error; err != nil {
		return nil, fmt.Errorf("failed to load subdomain counts: %w", err)
	}
	for _, sd := range subdomains {
		snap.Subdomains[sd.Host] = sd.Count
	}

	var counters []HostCounter
	if err := s.db.Find(&counters).Error; err != nil {
		return nil, fmt.Errorf("failed to load host counters: %w", err)
	}
	for _, c := range counters {
		snap.HostCounts[c.Host] = c.Count
	}

	var variants []QueryVariant
	if err := s.db.Order("id ASC").Find(&variants).Error; err != nil {
		return nil, fmt.Errorf("failed to load query variants: %w", err)
	}
	for _, v := range variants {
		snap.QueryVariants[v.Key] = append(snap.QueryVariants[v.Key], uint64(v.Hash))
	}

	var diags []DiagnosticCounter
	if err := s.db.Find(&diags).Error; err != nil {
		return nil, fmt.Errorf("failed to load diagnostics: %w", err)
	}
	for _, d := range diags {
		snap.Diagnostics[d.Name] = d.Count
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Clear implements storage.Store. Run history is kept.
func (s *Store) Clear() error {
	if err := s.db.Transaction(clearTables); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}

func clearTables(tx *gorm.DB) error {
	for _, model := range checkpointTables {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
