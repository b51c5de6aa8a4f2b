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

package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// SnapshotVersion is the layout version written by this package. Loading a
// snapshot with any other version fails with ErrCorrupt.
const SnapshotVersion = 1

var (
	// ErrNoCheckpoint is returned by Load when no checkpoint has been saved
	ErrNoCheckpoint = errors.New("no checkpoint found")
	// ErrCorrupt is returned by Load when a checkpoint exists but is unreadable
	ErrCorrupt = errors.New("checkpoint corrupt")
)

// Store is a checkpoint backend. Save must be atomic: a crash during Save
// leaves the previously saved snapshot intact.
type Store interface {
	// Save replaces the stored checkpoint with s
	Save(s *Snapshot) error
	// Load returns the stored checkpoint, ErrNoCheckpoint, or an error wrapping ErrCorrupt
	Load() (*Snapshot, error)
	// Clear removes any stored checkpoint
	Clear() error
}

// Entry is a pending frontier entry
type Entry struct {
	URL            string
	Depth          int
	DiscoveredFrom string
}

// HostState is the politeness clock of one host
type HostState struct {
	Host      string
	LastFetch time.Time
}

// LongestPage mirrors the aggregator's longest page record
type LongestPage struct {
	URL       string
	WordCount int
	Sequence  uint64
}

// Snapshot is the full serialized crawl state
type Snapshot struct {
	Version int
	RunID   string
	SavedAt time.Time

	// frontier
	Seen    []string
	Pending []Entry
	Hosts   []HostState

	// dedup
	Fingerprints []uint64
	SimHashes    []uint64

	// aggregates
	UniquePages int64
	Longest     LongestPage
	Sequence    uint64
	Words       map[string]int64
	Subdomains  map[string]int64

	// trap counters
	HostCounts    map[string]int64
	QueryVariants map[string][]uint64

	Diagnostics map[string]int64
}

// Validate checks the invariants a loaded snapshot must satisfy
func (s *Snapshot) Validate() error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorrupt, s.Version)
	}
	seen := make(map[string]struct{}, len(s.Seen))
	for _, u := range s.Seen {
		seen[u] = struct{}{}
	}
	for _, e := range s.Pending {
		if _, ok := seen[e.URL]; !ok {
			return fmt.Errorf("%w: pending URL %q missing from seen set", ErrCorrupt, e.URL)
		}
	}
	return nil
}

// InMemoryStorage keeps the checkpoint in memory. Snapshots are stored in
// encoded form, so later changes to a saved Snapshot do not leak into it.
type InMemoryStorage struct {
	lock  sync.RWMutex
	data  []byte
	saves int
}

// NewInMemoryStorage returns an empty in-memory store
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{}
}

// Save implements Store.Save()
func (s *InMemoryStorage) Save(snap *Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	s.lock.Lock()
	s.data = data
	s.saves++
	s.lock.Unlock()
	return nil
}

// Load implements Store.Load()
func (s *InMemoryStorage) Load() (*Snapshot, error) {
	s.lock.RLock()
	data := s.data
	s.lock.RUnlock()

	if data == nil {
		return nil, ErrNoCheckpoint
	}
	return Decode(data)
}

// Clear implements Store.Clear()
func (s *InMemoryStorage) Clear() error {
	s.lock.Lock()
	s.data = nil
	s.lock.Unlock()
	return nil
}

// Saves returns how many times Save succeeded
func (s *InMemoryStorage) Saves() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.saves
}
