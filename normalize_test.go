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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer(DefaultVolatileParams)

	tests := []struct {
		name    string
		raw     string
		base    string
		want    string
		wantErr error
	}{
		{name: "drops fragment", raw: "https://www.ics.uci.edu/about#team", want: "https://www.ics.uci.edu/about"},
		{name: "lower-cases scheme and host", raw: "HTTPS://WWW.ICS.UCI.EDU/About", want: "https://www.ics.uci.edu/About"},
		{name: "drops default http port", raw: "http://www.ics.uci.edu:80/a", want: "http://www.ics.uci.edu/a"},
		{name: "drops default https port", raw: "https://www.ics.uci.edu:443/a", want: "https://www.ics.uci.edu/a"},
		{name: "keeps other ports", raw: "http://www.ics.uci.edu:8080/a", want: "http://www.ics.uci.edu:8080/a"},
		{name: "root path", raw: "https://www.ics.uci.edu", want: "https://www.ics.uci.edu/"},
		{name: "trailing slash removed", raw: "https://www.ics.uci.edu/about/", want: "https://www.ics.uci.edu/about"},
		{name: "dot segments", raw: "https://www.ics.uci.edu/a/./b/../c", want: "https://www.ics.uci.edu/a/c"},
		{name: "sorted query", raw: "https://www.ics.uci.edu/s?b=2&a=1", want: "https://www.ics.uci.edu/s?a=1&b=2"},
		{name: "volatile params removed", raw: "https://www.ics.uci.edu/s?utm_source=x&q=go&fbclid=abc&UTM_Medium=y", want: "https://www.ics.uci.edu/s?q=go"},
		{name: "empty query dropped", raw: "https://www.ics.uci.edu/s?", want: "https://www.ics.uci.edu/s"},
		{name: "only volatile params", raw: "https://www.ics.uci.edu/s?share=twitter", want: "https://www.ics.uci.edu/s"},
		{name: "relative to base", raw: "../people", base: "https://www.ics.uci.edu/about/staff", want: "https://www.ics.uci.edu/people"},
		{name: "absolute path relative", raw: "/about", base: "http://www.ics.uci.edu/", want: "http://www.ics.uci.edu/about"},
		{name: "protocol relative", raw: "//www.cs.uci.edu/x", base: "https://www.ics.uci.edu/", want: "https://www.cs.uci.edu/x"},
		{name: "surrounding whitespace", raw: "  https://www.ics.uci.edu/a  ", want: "https://www.ics.uci.edu/a"},
		{name: "empty", raw: "", wantErr: ErrMalformedURL},
		{name: "relative without base", raw: "/about", wantErr: ErrMalformedURL},
		{name: "bad port", raw: "http://www.ics.uci.edu:99999999/", wantErr: ErrMalformedURL},
		{name: "mailto", raw: "mailto:someone@uci.edu", wantErr: ErrUnsupportedScheme},
		{name: "javascript", raw: "javascript:void(0)", base: "https://www.ics.uci.edu/", wantErr: ErrUnsupportedScheme},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(tt.raw, tt.base)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewNormalizer(DefaultVolatileParams)

	inputs := []string{
		"https://WWW.ICS.UCI.EDU:443/a/b/../c/?z=1&a=2&utm_campaign=x#frag",
		"http://www.ics.uci.edu/",
		"http://www.ics.uci.edu/path with space/",
		"http://www.ics.uci.edu/a%2Fb?q=%20x",
		"http://www.ics.uci.edu/100%/done",
		"http://www.ics.uci.edu/~eppstein/pix/",
		"http://www.ics.uci.edu/a|b^c",
		"http://[::1]:8080/x/",
		"https://www.ics.uci.edu/s?b&a=&a=1",
		"https://www.ics.uci.edu//double//slash//",
	}
	for _, in := range inputs {
		once, err := n.Normalize(in, "")
		require.NoError(t, err, in)
		twice, err := n.Normalize(once, "")
		require.NoError(t, err, once)
		assert.Equal(t, once, twice, in)
	}
}

func TestNormalizeCustomVolatileParams(t *testing.T) {
	n := NewNormalizer([]string{"session*", "ref"})
	got, err := n.Normalize("https://www.ics.uci.edu/?sessionToken=1&ref=home&id=7", "")
	require.NoError(t, err)
	assert.Equal(t, "https://www.ics.uci.edu/?id=7", got)
}
