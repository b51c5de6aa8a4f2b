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
	"math/bits"
	"regexp"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Patterns for text that changes on every render of an otherwise identical page
var (
	timestampPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})`),
		regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`),
		regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4} \d{1,2}:\d{2}(?::\d{2})? (?:AM|PM)`),
		regexp.MustCompile(`(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2},?\s+\d{4}\s+\d{1,2}:\d{2}`),
	}

	relativeTimePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\d+\s+(?:second|minute|hour|day|week|month|year)s?\s+ago`),
		regexp.MustCompile(`(?i)(?:just\s+now|moments?\s+ago)`),
	}

	sessionIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:session|request|trace)[-_]?id[:=]\s*["']?[a-f0-9-]{8,}["']?`),
		regexp.MustCompile(`(?i)csrf[-_]?token[:=]\s*["']?[a-zA-Z0-9+/=]{16,}["']?`),
	}
)

// DupKind is the result of a FingerprintSet lookup
type DupKind int

const (
	DupNone DupKind = iota
	DupExact
	DupNear
)

func (k DupKind) String() string {
	switch k {
	case DupExact:
		return "exact"
	case DupNear:
		return "near"
	default:
		return "none"
	}
}

// NormalizeText strips render-time noise (timestamps, relative times, session
// ids), collapses whitespace and lower-cases the text
func NormalizeText(text string) string {
	for _, patterns := range [][]*regexp.Regexp{timestampPatterns, relativeTimePatterns, sessionIDPatterns} {
		for _, re := range patterns {
			text = re.ReplaceAllString(text, " ")
		}
	}
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Fingerprint returns the exact-duplicate fingerprint of a page's visible text
func Fingerprint(text string) uint64 {
	return xxhash.Sum64String(NormalizeText(text))
}

// SimHash computes a 64-bit simhash where every word is a feature weighted by
// its frequency. Similar word bags give hashes with a small Hamming distance.
func SimHash(words []string) uint64 {
	if len(words) == 0 {
		return 0
	}
	var v [64]int
	for _, w := range words {
		h := xxhash.Sum64String(w)
		for i := 0; i < 64; i++ {
			if h&(1<<uint(i)) != 0 {
				v[i]++
			} else {
				v[i]--
			}
		}
	}
	var out uint64
	for i := 0; i < 64; i++ {
		if v[i] > 0 {
			out |= 1 << uint(i)
		}
	}
	return out
}

// HammingDistance returns the number of differing bits
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// FingerprintSet records the fingerprints of every accepted page.
// CheckAndAdd is atomic, so two workers racing on identical content admit
// exactly one of them.
type FingerprintSet struct {
	mu       sync.Mutex
	exact    map[uint64]struct{}
	distance int
	near     *simhashIndex
	sims     []uint64
}

// NewFingerprintSet creates an empty set. nearDistance > 0 enables
// near-duplicate detection at that Hamming distance.
func NewFingerprintSet(nearDistance int) *FingerprintSet {
	s := &FingerprintSet{
		exact:    make(map[uint64]struct{}),
		distance: nearDistance,
	}
	if nearDistance > 0 {
		s.near = newSimhashIndex(nearDistance)
	}
	return s
}

// Contains reports whether an exact fingerprint has been recorded
func (s *FingerprintSet) Contains(fp uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.exact[fp]
	return ok
}

// CheckAndAdd classifies a page and records it when it is new.
// Duplicates are not recorded.
func (s *FingerprintSet) CheckAndAdd(fp, sim uint64) DupKind {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.exact[fp]; ok {
		return DupExact
	}
	if s.near != nil && s.near.hasNear(sim) {
		return DupNear
	}

	s.exact[fp] = struct{}{}
	if s.near != nil {
		s.near.add(sim)
		s.sims = append(s.sims, sim)
	}
	return DupNone
}

// Len returns the number of recorded pages
func (s *FingerprintSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.exact)
}

func (s *FingerprintSet) export() (exact []uint64, sims []uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exact = make([]uint64, 0, len(s.exact))
	for fp := range s.exact {
		exact = append(exact, fp)
	}
	sims = append([]uint64(nil), s.sims...)
	return exact, sims
}

func (s *FingerprintSet) restore(exact, sims []uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exact = make(map[uint64]struct{}, len(exact))
	for _, fp := range exact {
		s.exact[fp] = struct{}{}
	}
	s.sims = nil
	if s.distance > 0 {
		s.near = newSimhashIndex(s.distance)
		for _, sim := range sims {
			s.near.add(sim)
			s.sims = append(s.sims, sim)
		}
	}
}

// simhashIndex finds hashes within a Hamming distance k without a full scan.
// The 64 bits are split into k+1 blocks; two hashes within distance k agree
// exactly on at least one block, so only hashes sharing a block are compared.
type simhashIndex struct {
	k       int
	offsets []uint
	widths  []uint
	buckets []map[uint64][]uint64
}

func newSimhashIndex(k int) *simhashIndex {
	blocks := k + 1
	if blocks > 64 {
		blocks = 64
	}
	idx := &simhashIndex{k: k, buckets: make([]map[uint64][]uint64, blocks)}
	base, extra := 64/blocks, 64%blocks
	var off uint
	for i := 0; i < blocks; i++ {
		w := uint(base)
		if i < extra {
			w++
		}
		idx.offsets = append(idx.offsets, off)
		idx.widths = append(idx.widths, w)
		idx.buckets[i] = make(map[uint64][]uint64)
		off += w
	}
	return idx
}

func (idx *simhashIndex) block(h uint64, i int) uint64 {
	w := idx.widths[i]
	if w >= 64 {
		return h
	}
	return (h >> idx.offsets[i]) & (1<<w - 1)
}

func (idx *simhashIndex) hasNear(h uint64) bool {
	for i := range idx.buckets {
		for _, candidate := range idx.buckets[i][idx.block(h, i)] {
			if HammingDistance(h, candidate) <= idx.k {
				return true
			}
		}
	}
	return false
}

func (idx *simhashIndex) add(h uint64) {
	for i := range idx.buckets {
		key := idx.block(h, i)
		idx.buckets[i][key] = append(idx.buckets[i][key], h)
	}
}
