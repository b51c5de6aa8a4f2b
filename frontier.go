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
	"container/heap"
	"sort"
	"sync"
	"time"

	"github.com/agentberlin/scopecrawl/storage"
)

// FrontierEntry is one URL waiting to be fetched
type FrontierEntry struct {
	URL            string
	Depth          int
	DiscoveredFrom string
}

type hostQueue struct {
	host      string
	entries   []FrontierEntry
	readyAt   time.Time
	lastFetch time.Time
	busy      bool
	index     int // position in readyHeap, -1 when absent
}

// readyHeap orders hosts with pending work and no in-flight entry by the
// time they become eligible again
type readyHeap []*hostQueue

func (h readyHeap) Len() int { return len(h) }

func (h readyHeap) Less(i, j int) bool {
	if h[i].readyAt.Equal(h[j].readyAt) {
		return h[i].host < h[j].host
	}
	return h[i].readyAt.Before(h[j].readyAt)
}

func (h readyHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *readyHeap) Push(x any) {
	q := x.(*hostQueue)
	q.index = len(*h)
	*h = append(*h, q)
}

func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	q := old[n-1]
	old[n-1] = nil
	q.index = -1
	*h = old[:n-1]
	return q
}

// Frontier is the set of URLs discovered but not yet fetched, together with
// the seen-set and per-host politeness state. All methods are safe for
// concurrent use; Enqueue is an atomic insert-if-absent on the seen-set.
type Frontier struct {
	delay time.Duration

	mu       sync.Mutex
	seen     map[string]struct{}
	hosts    map[string]*hostQueue
	ready    readyHeap
	pending  int
	inFlight map[string]FrontierEntry
	changed  chan struct{}
}

// NewFrontier creates an empty frontier. delay is the minimum time between
// the completion of one fetch and the start of the next on the same host.
func NewFrontier(delay time.Duration) *Frontier {
	return &Frontier{
		delay:    delay,
		seen:     make(map[string]struct{}),
		hosts:    make(map[string]*hostQueue),
		inFlight: make(map[string]FrontierEntry),
		changed:  make(chan struct{}),
	}
}

// Enqueue adds url when it has never been seen. It returns false, without
// changing anything, for a URL already in the seen-set.
func (f *Frontier) Enqueue(url string, depth int, from string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[url]; ok {
		return false
	}
	f.seen[url] = struct{}{}
	f.pushLocked(FrontierEntry{URL: url, Depth: depth, DiscoveredFrom: from}, false)
	f.notifyLocked()
	return true
}

// MarkSeen claims url in the seen-set without scheduling it. It returns false
// when the URL was already seen.
func (f *Frontier) MarkSeen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[url]; ok {
		return false
	}
	f.seen[url] = struct{}{}
	return true
}

// IsSeen reports whether url has ever been enqueued or claimed
func (f *Frontier) IsSeen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[url]
	return ok
}

// Dequeue returns the next entry whose host is eligible at now. It never
// blocks: ErrFrontierEmpty means the crawl is exhausted, *CooldownError means
// work remains but no host may be contacted yet.
func (f *Frontier) Dequeue(now time.Time) (FrontierEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pending == 0 {
		if len(f.inFlight) == 0 {
			return FrontierEntry{}, ErrFrontierEmpty
		}
		return FrontierEntry{}, &CooldownError{}
	}
	if len(f.ready) == 0 {
		return FrontierEntry{}, &CooldownError{}
	}

	q := f.ready[0]
	if q.readyAt.After(now) {
		return FrontierEntry{}, &CooldownError{Until: q.readyAt}
	}
	heap.Pop(&f.ready)

	entry := q.entries[0]
	q.entries[0] = FrontierEntry{}
	q.entries = q.entries[1:]
	q.busy = true
	q.lastFetch = now
	f.pending--
	f.inFlight[entry.URL] = entry
	return entry, nil
}

// Done marks a dequeued entry as finished. The host becomes eligible again
// one politeness delay after now.
func (f *Frontier) Done(entry FrontierEntry, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.inFlight[entry.URL]; !ok {
		return
	}
	delete(f.inFlight, entry.URL)

	q := f.hosts[hostOf(entry.URL)]
	if q == nil {
		return
	}
	q.busy = false
	q.lastFetch = now
	q.readyAt = now.Add(f.delay)
	if len(q.entries) > 0 && q.index < 0 {
		heap.Push(&f.ready, q)
	}
	f.notifyLocked()
}

// Release puts a dequeued entry back at the head of its host queue without
// touching the host's politeness clock. Used when a worker stops before it
// could process the entry.
func (f *Frontier) Release(entry FrontierEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.inFlight[entry.URL]; !ok {
		return
	}
	delete(f.inFlight, entry.URL)
	f.pushLocked(entry, true)

	if q := f.hosts[hostOf(entry.URL)]; q != nil {
		q.busy = false
		if q.index >= 0 {
			heap.Fix(&f.ready, q.index)
		} else {
			heap.Push(&f.ready, q)
		}
	}
	f.notifyLocked()
}

// Changes returns a channel closed on the next Enqueue, Done or Release.
// Obtain it before calling Dequeue so no wake-up is missed.
func (f *Frontier) Changes() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changed
}

// Len returns the number of pending entries, excluding in-flight ones
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

// InFlight returns the number of dequeued entries not yet Done
func (f *Frontier) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inFlight)
}

// SeenCount returns the size of the seen-set
func (f *Frontier) SeenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func (f *Frontier) pushLocked(entry FrontierEntry, front bool) {
	host := hostOf(entry.URL)
	q := f.hosts[host]
	if q == nil {
		q = &hostQueue{host: host, index: -1}
		f.hosts[host] = q
	}
	if front {
		q.entries = append([]FrontierEntry{entry}, q.entries...)
	} else {
		q.entries = append(q.entries, entry)
	}
	f.pending++
	if !q.busy && q.index < 0 {
		heap.Push(&f.ready, q)
	}
}

func (f *Frontier) notifyLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}

// export returns the seen-set, the pending entries with in-flight entries
// re-pended at the head of their host, and host politeness state
func (f *Frontier) export() ([]string, []storage.Entry, []storage.HostState) {
	f.mu.Lock()
	defer f.mu.Unlock()

	seen := make([]string, 0, len(f.seen))
	for u := range f.seen {
		seen = append(seen, u)
	}
	sort.Strings(seen)

	flight := make(map[string][]FrontierEntry)
	for _, e := range f.inFlight {
		h := hostOf(e.URL)
		flight[h] = append(flight[h], e)
	}

	names := make([]string, 0, len(f.hosts))
	for h := range f.hosts {
		names = append(names, h)
	}
	sort.Strings(names)

	var pending []storage.Entry
	hosts := make([]storage.HostState, 0, len(names))
	for _, h := range names {
		q := f.hosts[h]
		hosts = append(hosts, storage.HostState{Host: h, LastFetch: q.lastFetch})

		inflight := flight[h]
		sort.Slice(inflight, func(i, j int) bool { return inflight[i].URL < inflight[j].URL })
		for _, e := range append(inflight, q.entries...) {
			pending = append(pending, storage.Entry{URL: e.URL, Depth: e.Depth, DiscoveredFrom: e.DiscoveredFrom})
		}
	}
	return seen, pending, hosts
}

func (f *Frontier) restore(seen []string, pending []storage.Entry, hosts []storage.HostState) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seen = make(map[string]struct{}, len(seen))
	f.hosts = make(map[string]*hostQueue)
	f.ready = nil
	f.pending = 0
	f.inFlight = make(map[string]FrontierEntry)

	for _, u := range seen {
		f.seen[u] = struct{}{}
	}
	for _, hs := range hosts {
		f.hosts[hs.Host] = &hostQueue{
			host:      hs.Host,
			lastFetch: hs.LastFetch,
			readyAt:   readyAfter(hs.LastFetch, f.delay),
			index:     -1,
		}
	}
	for _, e := range pending {
		f.seen[e.URL] = struct{}{}
		f.pushLocked(FrontierEntry{URL: e.URL, Depth: e.Depth, DiscoveredFrom: e.DiscoveredFrom}, false)
	}
	f.notifyLocked()
}

func readyAfter(lastFetch time.Time, delay time.Duration) time.Time {
	if lastFetch.IsZero() {
		return time.Time{}
	}
	return lastFetch.Add(delay)
}
