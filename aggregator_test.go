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
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"case folding", "Informatics ICS", []string{"informatics", "ics"}},
		{"single characters dropped", "a b cs 1 42", []string{"cs", "42"}},
		{"apostrophes split", "don't stop", []string{"don", "stop"}},
		{"punctuation", "hello,world...end", []string{"hello", "world", "end"}},
		{"unicode letters", "Café naïve", []string{"café", "naïve"}},
		{"mixed alnum", "cs121 2024", []string{"cs121", "2024"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.text))
		})
	}
}

func TestAggregatorTopWordsSkipsStopwords(t *testing.T) {
	a := NewAggregator("ics.uci.edu", nil)
	a.Record(PageRecord{URL: "https://www.ics.uci.edu/a", WordCount: 7},
		Tokenize("the research and the research group of informatics"))

	words := a.TopWords(0)
	require.Len(t, words, 3)
	assert.Equal(t, WordCount{Word: "research", Count: 2}, words[0])
	assert.Equal(t, WordCount{Word: "group", Count: 1}, words[1])
	assert.Equal(t, WordCount{Word: "informatics", Count: 1}, words[2])
}

func TestAggregatorTopWordsLimit(t *testing.T) {
	a := NewAggregator("ics.uci.edu", map[string]struct{}{})
	a.Record(PageRecord{URL: "https://www.ics.uci.edu/", WordCount: 6},
		[]string{"zz", "yy", "yy", "xx", "xx", "xx"})

	assert.Equal(t, []WordCount{{"xx", 3}, {"yy", 2}}, a.TopWords(2))
	assert.Len(t, a.TopWords(50), 3)
}

func TestAggregatorLongestPageTieKeepsFirst(t *testing.T) {
	a := NewAggregator("ics.uci.edu", nil)
	a.Record(PageRecord{URL: "https://www.ics.uci.edu/short", WordCount: 10}, nil)
	a.Record(PageRecord{URL: "https://www.ics.uci.edu/first", WordCount: 40}, nil)
	a.Record(PageRecord{URL: "https://www.ics.uci.edu/second", WordCount: 40}, nil)

	longest := a.Longest()
	assert.Equal(t, "https://www.ics.uci.edu/first", longest.URL)
	assert.Equal(t, 40, longest.WordCount)
	assert.Equal(t, uint64(2), longest.Sequence)
}

func TestAggregatorSubdomains(t *testing.T) {
	a := NewAggregator("ics.uci.edu", nil)
	for _, u := range []string{
		"https://www.ics.uci.edu/a",
		"https://www.ics.uci.edu/b",
		"https://vision.ics.uci.edu/",
		"https://ics.uci.edu/",
		"https://www.cs.uci.edu/x",
		"https://physics.uci.edu/",
		"https://WWW.ICS.UCI.EDU:8443/c",
	} {
		a.Record(PageRecord{URL: u, WordCount: 1}, nil)
	}

	assert.Equal(t, []SubdomainCount{
		{Host: "ics.uci.edu", Count: 1},
		{Host: "vision.ics.uci.edu", Count: 1},
		{Host: "www.ics.uci.edu", Count: 3},
	}, a.Subdomains())
	assert.Equal(t, int64(7), a.UniquePages())
}

func TestAggregatorLowInformationCountsOnlyAsUnique(t *testing.T) {
	a := NewAggregator("ics.uci.edu", nil)
	a.Record(PageRecord{URL: "https://www.ics.uci.edu/thin", WordCount: 500, LowInformation: true},
		Tokenize("login login login"))

	assert.Equal(t, int64(1), a.UniquePages())
	assert.Empty(t, a.TopWords(0))
	assert.Empty(t, a.Subdomains())
	assert.Equal(t, 0, a.Longest().WordCount)
}

func TestAggregatorRecordSubdomain(t *testing.T) {
	a := NewAggregator("ics.uci.edu", nil)
	a.RecordSubdomain("https://www.ics.uci.edu/near-copy")
	assert.Equal(t, int64(0), a.UniquePages())
	assert.Equal(t, []SubdomainCount{{Host: "www.ics.uci.edu", Count: 1}}, a.Subdomains())
}

func TestAggregatorOrderIndependent(t *testing.T) {
	type page struct {
		rec    PageRecord
		tokens []string
	}
	var pages []page
	for i := 0; i < 40; i++ {
		host := []string{"www", "vision", "archive", "wics"}[i%4]
		text := strings.Repeat("crawler index ", i%5+1) + "page" + strings.Repeat(" data", i%3)
		tokens := Tokenize(text)
		pages = append(pages, page{
			rec:    PageRecord{URL: "https://" + host + ".ics.uci.edu/p" + string(rune('a'+i%26)) + strings.Repeat("x", i), WordCount: len(tokens) + i},
			tokens: tokens,
		})
	}

	run := func(order []int, concurrent bool) *Aggregator {
		a := NewAggregator("ics.uci.edu", nil)
		var wg sync.WaitGroup
		for _, idx := range order {
			p := pages[idx]
			if concurrent {
				wg.Add(1)
				go func() {
					defer wg.Done()
					a.Record(p.rec, p.tokens)
				}()
				continue
			}
			a.Record(p.rec, p.tokens)
		}
		wg.Wait()
		return a
	}

	order := make([]int, len(pages))
	for i := range order {
		order[i] = i
	}
	base := run(order, false)

	rng := rand.New(rand.NewSource(7))
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	shuffled := run(order, true)

	assert.Equal(t, base.UniquePages(), shuffled.UniquePages())
	assert.Equal(t, base.TopWords(0), shuffled.TopWords(0))
	assert.Equal(t, base.Subdomains(), shuffled.Subdomains())
	// the highest word count is unique, so arrival order cannot matter
	assert.Equal(t, base.Longest().URL, shuffled.Longest().URL)
}

func TestAggregatorExportRestore(t *testing.T) {
	a := NewAggregator("ics.uci.edu", nil)
	a.Record(PageRecord{URL: "https://www.ics.uci.edu/a", WordCount: 12}, Tokenize("machine learning research"))
	a.RecordSubdomain("https://vision.ics.uci.edu/")

	b := NewAggregator("ics.uci.edu", nil)
	b.restore(a.export())

	assert.Equal(t, a.UniquePages(), b.UniquePages())
	assert.Equal(t, a.Longest(), b.Longest())
	assert.Equal(t, a.TopWords(0), b.TopWords(0))
	assert.Equal(t, a.Subdomains(), b.Subdomains())

	// restored state is a copy
	b.Record(PageRecord{URL: "https://www.ics.uci.edu/b", WordCount: 1}, Tokenize("research"))
	assert.Equal(t, int64(1), a.TopWords(1)[0].Count)
}

func TestStopwordsLoading(t *testing.T) {
	words, err := LoadStopwords(strings.NewReader("Alpha, beta\ngamma"))
	require.NoError(t, err)
	assert.Len(t, words, 3)
	assert.Contains(t, words, "alpha")

	defaults := DefaultStopwords()
	assert.Contains(t, defaults, "the")
	assert.Contains(t, defaults, "don")
	assert.NotContains(t, defaults, "research")
}
