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
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParsedPage is the crawl-relevant content of an HTML document
type ParsedPage struct {
	Title string
	// Text is the visible body text, whitespace collapsed
	Text string
	// Links are absolute URLs in document order, without duplicates
	Links []string
}

// Parser turns a response body into text and outbound links
type Parser interface {
	Parse(body []byte, contentType string, baseURL string) (*ParsedPage, error)
}

// HTMLParser is the goquery based Parser
type HTMLParser struct {
	// RequireAnchorText skips anchors with no visible text
	RequireAnchorText bool
}

// skippedElements never contribute visible text
const skippedElements = "script, style, noscript, template, head, title, meta"

// Parse implements Parser. Bodies whose content type is neither text nor HTML,
// and documents without a <body>, fail with *ParseError.
func (p *HTMLParser) Parse(body []byte, contentType string, baseURL string) (*ParsedPage, error) {
	if !isHTMLContentType(contentType) {
		return nil, &ParseError{URL: baseURL, Reason: "unsupported content type " + contentType}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: baseURL, Reason: "invalid HTML", Err: err}
	}

	// html.Parse always synthesizes a <body>; an empty one means there is no content
	bodySel := doc.Find("body").First()
	if bodySel.Length() == 0 || (bodySel.Children().Length() == 0 && strings.TrimSpace(bodySel.Text()) == "") {
		return nil, &ParseError{URL: baseURL, Reason: "document has no body"}
	}

	base := baseURL
	if href, found := doc.Find("base[href]").Attr("href"); found {
		if resolved, err := resolveHref(strings.TrimSpace(href), baseURL); err == nil {
			base = resolved
		}
	}

	page := &ParsedPage{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Links: p.extractLinks(bodySel, base),
	}
	bodySel.Find(skippedElements).Remove()
	page.Text = extractText(bodySel)
	return page, nil
}

func (p *HTMLParser) extractLinks(sel *goquery.Selection, base string) []string {
	seen := make(map[string]struct{})
	var links []string

	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
			return
		}
		if p.RequireAnchorText && strings.TrimSpace(a.Text()) == "" {
			return
		}

		abs, err := resolveHref(href, base)
		if err != nil {
			// keep the raw value so the pipeline can count it as malformed
			abs = href
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}

// extractText walks the selection and joins text nodes with spaces so words in
// adjacent elements never run together
func extractText(selection *goquery.Selection) string {
	var parts []string

	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, child *goquery.Selection) {
			switch goquery.NodeName(child) {
			case "#text":
				if t := strings.TrimSpace(child.Text()); t != "" {
					parts = append(parts, t)
				}
			case "#comment", "script", "style", "noscript", "template":
			default:
				walk(child)
			}
		})
	}
	walk(selection)

	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func isHTMLContentType(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "html") || strings.HasPrefix(ct, "text/")
}
