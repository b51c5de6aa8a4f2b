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
	"sort"
	"sync"
)

// Diagnostic counter names. They are stable because they are persisted in
// checkpoints and printed in reports.
const (
	DiagMalformedURL       = "malformed_url"
	DiagOutOfScope         = "out_of_scope"
	DiagDepthLimited       = "depth_limited"
	DiagNetworkFailure     = "network_failure"
	DiagRetry              = "retry"
	DiagHTTPClientError    = "http_4xx"
	DiagHTTPServerError    = "http_5xx"
	DiagHTTPOther          = "http_other"
	DiagParseError         = "parse_error"
	DiagRobotsBlocked      = "robots_blocked"
	DiagRedirectOutOfScope = "redirect_out_of_scope"
	DiagRedirectDuplicate  = "redirect_duplicate"
	DiagRedirectLoop       = "redirect_loop"
	DiagExactDuplicate     = "exact_duplicate"
	DiagNearDuplicate      = "near_duplicate"
	DiagLowInformation     = "low_information"
	DiagPagesFetched       = "pages_fetched"
	DiagCheckpointFailure  = "checkpoint_failure"
	diagTrapPrefix         = "trap_"
)

// Diagnostics holds the non-fatal error counters of a crawl
type Diagnostics struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewDiagnostics returns an empty counter set
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{counts: make(map[string]int64)}
}

// Inc increments the named counter by one
func (d *Diagnostics) Inc(name string) {
	d.Add(name, 1)
}

// Add increments the named counter by n
func (d *Diagnostics) Add(name string, n int64) {
	if n == 0 {
		return
	}
	d.mu.Lock()
	d.counts[name] += n
	d.mu.Unlock()
}

// Get returns the current value of a counter
func (d *Diagnostics) Get(name string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[name]
}

// Snapshot returns a copy of all counters
func (d *Diagnostics) Snapshot() map[string]int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int64, len(d.counts))
	for k, v := range d.counts {
		out[k] = v
	}
	return out
}

// Names returns counter names in sorted order
func (d *Diagnostics) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.counts))
	for k := range d.counts {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (d *Diagnostics) restore(counts map[string]int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts = make(map[string]int64, len(counts))
	for k, v := range counts {
		d.counts[k] = v
	}
}

// diagDelta collects counter increments for one unit of work so they can be
// applied together with the rest of the unit's effects.
type diagDelta map[string]int64

func (d diagDelta) inc(name string) {
	d[name]++
}

func (d *Diagnostics) apply(delta diagDelta) {
	if len(delta) == 0 {
		return
	}
	d.mu.Lock()
	for k, v := range delta {
		d.counts[k] += v
	}
	d.mu.Unlock()
}
