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
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// TrapReason names the heuristic that rejected a URL
type TrapReason string

const (
	TrapNone            TrapReason = ""
	TrapPathDepth       TrapReason = "path_depth"
	TrapRepeatedSegment TrapReason = "repeated_segment"
	TrapHostLimit       TrapReason = "host_limit"
	TrapQueryVariants   TrapReason = "query_variants"
)

// TrapConfig holds the trap ceilings. A zero value disables that check.
type TrapConfig struct {
	MaxPathDepth      int
	MaxSegmentRepeats int
	MaxURLsPerHost    int
	MaxQueryVariants  int
}

// DefaultTrapConfig returns the ceilings used by the CLI
func DefaultTrapConfig() TrapConfig {
	return TrapConfig{
		MaxPathDepth:      12,
		MaxSegmentRepeats: 2,
		MaxURLsPerHost:    20000,
		MaxQueryVariants:  50,
	}
}

// TrapDetector flags URLs that look like infinite URL spaces: calendars,
// session-id loops, repeated path segments, endless query permutations.
// It keeps only counters: per host enqueue counts and, per host+path, a capped
// set of query-string hashes.
type TrapDetector struct {
	cfg TrapConfig

	mu            sync.Mutex
	hostCounts    map[string]int64
	queryVariants map[string]map[uint64]struct{}
}

// NewTrapDetector creates a detector with empty history
func NewTrapDetector(cfg TrapConfig) *TrapDetector {
	return &TrapDetector{
		cfg:           cfg,
		hostCounts:    make(map[string]int64),
		queryVariants: make(map[string]map[uint64]struct{}),
	}
}

// IsTrap reports whether rawURL should be rejected given the history observed so far
func (d *TrapDetector) IsTrap(rawURL string) (bool, TrapReason) {
	reason := d.Check(rawURL)
	return reason != TrapNone, reason
}

// Check returns the first heuristic that rejects rawURL, or TrapNone.
// It does not record anything; call Observe once the URL is enqueued.
func (d *TrapDetector) Check(rawURL string) TrapReason {
	u, err := url.Parse(rawURL)
	if err != nil {
		return TrapNone
	}

	segments := pathSegments(u.Path)
	if d.cfg.MaxPathDepth > 0 && len(segments) > d.cfg.MaxPathDepth {
		return TrapPathDepth
	}
	if d.cfg.MaxSegmentRepeats > 0 && maxSegmentRepeat(segments) > d.cfg.MaxSegmentRepeats {
		return TrapRepeatedSegment
	}

	host := strings.ToLower(u.Host)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cfg.MaxURLsPerHost > 0 && d.hostCounts[host] >= int64(d.cfg.MaxURLsPerHost) {
		return TrapHostLimit
	}
	if d.cfg.MaxQueryVariants > 0 && u.RawQuery != "" {
		variants := d.queryVariants[variantKey(host, u.Path)]
		if _, known := variants[xxhash.Sum64String(u.RawQuery)]; !known && len(variants) >= d.cfg.MaxQueryVariants {
			return TrapQueryVariants
		}
	}
	return TrapNone
}

// Observe records that rawURL was accepted into the frontier
func (d *TrapDetector) Observe(rawURL string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	host := strings.ToLower(u.Host)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.hostCounts[host]++
	if u.RawQuery == "" {
		return
	}
	key := variantKey(host, u.Path)
	variants := d.queryVariants[key]
	if variants == nil {
		variants = make(map[uint64]struct{})
		d.queryVariants[key] = variants
	}
	// the set only needs to grow up to the ceiling
	if d.cfg.MaxQueryVariants <= 0 || len(variants) < d.cfg.MaxQueryVariants {
		variants[xxhash.Sum64String(u.RawQuery)] = struct{}{}
	}
}

// HostCount returns how many URLs of host were accepted
func (d *TrapDetector) HostCount(host string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hostCounts[strings.ToLower(host)]
}

func (d *TrapDetector) export() (map[string]int64, map[string][]uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	hosts := make(map[string]int64, len(d.hostCounts))
	for k, v := range d.hostCounts {
		hosts[k] = v
	}
	variants := make(map[string][]uint64, len(d.queryVariants))
	for k, set := range d.queryVariants {
		hashes := make([]uint64, 0, len(set))
		for h := range set {
			hashes = append(hashes, h)
		}
		sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
		variants[k] = hashes
	}
	return hosts, variants
}

func (d *TrapDetector) restore(hosts map[string]int64, variants map[string][]uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.hostCounts = make(map[string]int64, len(hosts))
	for k, v := range hosts {
		d.hostCounts[k] = v
	}
	d.queryVariants = make(map[string]map[uint64]struct{}, len(variants))
	for k, hashes := range variants {
		set := make(map[uint64]struct{}, len(hashes))
		for _, h := range hashes {
			set[h] = struct{}{}
		}
		d.queryVariants[k] = set
	}
}

func variantKey(host, path string) string {
	return host + strings.TrimRight(path, "/")
}

func pathSegments(p string) []string {
	var segments []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func maxSegmentRepeat(segments []string) int {
	counts := make(map[string]int, len(segments))
	highest := 0
	for _, s := range segments {
		counts[s]++
		if counts[s] > highest {
			highest = counts[s]
		}
	}
	return highest
}
