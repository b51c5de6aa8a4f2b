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
	"strings"
	"sync"
	"time"
	"unicode"
)

// PageRecord is the outcome of successfully processing one fetched page
type PageRecord struct {
	URL            string
	FetchTime      time.Time
	StatusCode     int
	WordCount      int
	Fingerprint    uint64
	SimHash        uint64
	LowInformation bool
}

// LongestPage is the page with the highest word count seen so far.
// Sequence is the arrival order of that page; ties keep the earliest arrival.
type LongestPage struct {
	URL       string
	WordCount int
	Sequence  uint64
}

// WordCount is one row of the word frequency table
type WordCount struct {
	Word  string
	Count int64
}

// SubdomainCount is one row of the subdomain table
type SubdomainCount struct {
	Host  string
	Count int64
}

// Aggregator accumulates the crawl statistics. Record is commutative over
// pages except for the longest-page tie-break, which uses arrival order.
type Aggregator struct {
	rootDomain string
	stopwords  map[string]struct{}

	mu          sync.Mutex
	uniquePages int64
	words       map[string]int64
	subdomains  map[string]int64
	longest     LongestPage
	sequence    uint64
}

// NewAggregator creates an aggregator counting subdomains of rootDomain and
// ignoring stopwords in the word table. A nil stopwords map uses DefaultStopwords.
func NewAggregator(rootDomain string, stopwords map[string]struct{}) *Aggregator {
	if stopwords == nil {
		stopwords = DefaultStopwords()
	}
	return &Aggregator{
		rootDomain: strings.ToLower(strings.Trim(rootDomain, ".")),
		stopwords:  stopwords,
		words:      make(map[string]int64),
		subdomains: make(map[string]int64),
	}
}

// Tokenize splits text into lower-cased runs of letters and digits of at least
// two characters
func Tokenize(text string) []string {
	var tokens []string
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(f)) < 2 {
			continue
		}
		tokens = append(tokens, strings.ToLower(f))
	}
	return tokens
}

// IsStopword reports whether w is excluded from the word table
func (a *Aggregator) IsStopword(w string) bool {
	_, ok := a.stopwords[w]
	return ok
}

// ContentWords returns the tokens that are not stop-words
func (a *Aggregator) ContentWords(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !a.IsStopword(t) {
			out = append(out, t)
		}
	}
	return out
}

// Record adds a unique page. tokens are the page's tokens as produced by
// Tokenize; stop-words among them are skipped. A low-information page only
// counts towards the unique page total.
func (a *Aggregator) Record(page PageRecord, tokens []string) {
	host := hostnameOf(page.URL)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.uniquePages++
	a.sequence++
	if page.LowInformation {
		return
	}

	for _, t := range tokens {
		if _, stop := a.stopwords[t]; stop {
			continue
		}
		a.words[t]++
	}

	if page.WordCount > a.longest.WordCount {
		a.longest = LongestPage{URL: page.URL, WordCount: page.WordCount, Sequence: a.sequence}
	}
	a.countSubdomainLocked(host)
}

// RecordSubdomain counts a page towards the subdomain table only
func (a *Aggregator) RecordSubdomain(url string) {
	host := hostnameOf(url)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.countSubdomainLocked(host)
}

func (a *Aggregator) countSubdomainLocked(host string) {
	if host == "" || a.rootDomain == "" {
		return
	}
	if host == a.rootDomain || strings.HasSuffix(host, "."+a.rootDomain) {
		a.subdomains[host]++
	}
}

// UniquePages returns the number of recorded pages
func (a *Aggregator) UniquePages() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.uniquePages
}

// Longest returns the longest page recorded so far
func (a *Aggregator) Longest() LongestPage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.longest
}

// TopWords returns the n most frequent words, highest count first and ties
// broken alphabetically. n <= 0 returns every word.
func (a *Aggregator) TopWords(n int) []WordCount {
	a.mu.Lock()
	out := make([]WordCount, 0, len(a.words))
	for w, c := range a.words {
		out = append(out, WordCount{Word: w, Count: c})
	}
	a.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Subdomains returns the subdomain table sorted by host
func (a *Aggregator) Subdomains() []SubdomainCount {
	a.mu.Lock()
	out := make([]SubdomainCount, 0, len(a.subdomains))
	for h, c := range a.subdomains {
		out = append(out, SubdomainCount{Host: h, Count: c})
	}
	a.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out
}

type aggregateState struct {
	uniquePages int64
	words       map[string]int64
	subdomains  map[string]int64
	longest     LongestPage
	sequence    uint64
}

func (a *Aggregator) export() aggregateState {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := aggregateState{
		uniquePages: a.uniquePages,
		words:       make(map[string]int64, len(a.words)),
		subdomains:  make(map[string]int64, len(a.subdomains)),
		longest:     a.longest,
		sequence:    a.sequence,
	}
	for k, v := range a.words {
		st.words[k] = v
	}
	for k, v := range a.subdomains {
		st.subdomains[k] = v
	}
	return st
}

func (a *Aggregator) restore(st aggregateState) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.uniquePages = st.uniquePages
	a.longest = st.longest
	a.sequence = st.sequence
	a.words = make(map[string]int64, len(st.words))
	for k, v := range st.words {
		a.words[k] = v
	}
	a.subdomains = make(map[string]int64, len(st.subdomains))
	for k, v := range st.subdomains {
		a.subdomains[k] = v
	}
}
