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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title> Department of Informatics </title>
  <style>body { color: red }</style>
</head>
<body>
  <nav><a href="/">Home</a> | <a href="people/">People</a></nav>
  <h1>Research</h1><p>Machine<b>learning</b> and <i>databases</i>.</p>
  <script>var tracking = "should not appear";</script>
  <!-- hidden comment -->
  <a href="#top">Top</a>
  <a href="mailto:office@ics.uci.edu">Mail</a>
  <a href="javascript:void(0)">Menu</a>
  <a href="https://www.cs.uci.edu/x#section">CS</a>
  <a href="/">Home again</a>
  <a href="">Empty</a>
</body>
</html>`

func TestHTMLParserExtractsTextAndLinks(t *testing.T) {
	p := &HTMLParser{}
	page, err := p.Parse([]byte(samplePage), "text/html; charset=utf-8", "https://www.ics.uci.edu/dept/index.html")
	require.NoError(t, err)

	assert.Equal(t, "Department of Informatics", page.Title)
	assert.Equal(t, "Home | People Research Machine learning and databases . Top Mail Menu CS Home again Empty", page.Text)
	assert.NotContains(t, page.Text, "tracking")
	assert.NotContains(t, page.Text, "hidden")

	assert.Equal(t, []string{
		"https://www.ics.uci.edu/",
		"https://www.ics.uci.edu/dept/people/",
		"https://www.cs.uci.edu/x",
	}, page.Links)
}

func TestHTMLParserBaseHref(t *testing.T) {
	html := `<html><head><base href="https://vision.ics.uci.edu/lab/"></head>
<body><a href="members">Members</a></body></html>`

	page, err := (&HTMLParser{}).Parse([]byte(html), "text/html", "https://www.ics.uci.edu/")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://vision.ics.uci.edu/lab/members"}, page.Links)
}

func TestHTMLParserRequireAnchorText(t *testing.T) {
	html := `<html><body><a href="/a">A page</a><a href="/b"><img src="b.png"></a></body></html>`

	page, err := (&HTMLParser{RequireAnchorText: true}).Parse([]byte(html), "text/html", "https://www.ics.uci.edu/")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.ics.uci.edu/a"}, page.Links)

	page, err = (&HTMLParser{}).Parse([]byte(html), "text/html", "https://www.ics.uci.edu/")
	require.NoError(t, err)
	assert.Len(t, page.Links, 2)
}

func TestHTMLParserErrors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
	}{
		{"pdf", "%PDF-1.4", "application/pdf"},
		{"image", "\x89PNG", "image/png"},
		{"empty body", "<html><head><title>x</title></head><body>  </body></html>", "text/html"},
		{"empty document", "", "text/html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&HTMLParser{}).Parse([]byte(tt.body), tt.contentType, "https://www.ics.uci.edu/f")
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "got %v", err)
			assert.Equal(t, "https://www.ics.uci.edu/f", parseErr.URL)
		})
	}
}

func TestHTMLParserMissingContentTypeIsHTML(t *testing.T) {
	page, err := (&HTMLParser{}).Parse([]byte("<p>plain paragraph</p>"), "", "https://www.ics.uci.edu/")
	require.NoError(t, err)
	assert.Equal(t, "plain paragraph", page.Text)
	assert.Empty(t, page.Links)
}
