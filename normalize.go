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
	"fmt"
	"net/url"
	"sort"
	"strings"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

var urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

// DefaultVolatileParams are query parameters that do not change the page a URL
// points at. A trailing "*" matches any parameter with that prefix.
var DefaultVolatileParams = []string{
	"utm_*",
	"fbclid",
	"gclid",
	"sessionid",
	"sid",
	"phpsessid",
	"jsessionid",
	"share",
	"replytocom",
	"ical",
	"outlook-ical",
}

// Normalizer maps textual URLs to the canonical form used as frontier and
// seen-set keys. It is immutable and safe for concurrent use.
type Normalizer struct {
	volatile map[string]struct{}
	prefixes []string
}

// NewNormalizer returns a Normalizer that strips the given volatile query parameters.
// Parameter names are matched case-insensitively.
func NewNormalizer(volatileParams []string) *Normalizer {
	n := &Normalizer{volatile: make(map[string]struct{}, len(volatileParams))}
	for _, p := range volatileParams {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, "*") {
			n.prefixes = append(n.prefixes, strings.TrimSuffix(p, "*"))
			continue
		}
		n.volatile[p] = struct{}{}
	}
	return n
}

// Normalize resolves raw against base (which may be empty for absolute URLs)
// and returns the canonical URL. The fragment is dropped, scheme and host are
// lower-cased, default ports removed, dot segments collapsed, volatile query
// parameters removed and the rest sorted, and a trailing slash on a non-root
// path removed. Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(raw, base string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty URL", ErrMalformedURL)
	}

	href, err := resolveHref(raw, base)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformedURL, raw, err)
	}

	u, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformedURL, raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", fmt.Errorf("%w: %q: missing host", ErrMalformedURL, raw)
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}

	p := u.EscapedPath()
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		p = "/"
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(p)
	if q := n.normalizeQuery(u.RawQuery); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	return b.String(), nil
}

// normalizeQuery drops volatile and empty parameters and sorts the rest by
// key then value. The raw encoding of each pair is preserved.
func (n *Normalizer) normalizeQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	type pair struct {
		key string
		raw string
	}
	var pairs []pair
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		rawKey, _, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			key = rawKey
		}
		if n.isVolatile(key) {
			continue
		}
		pairs = append(pairs, pair{key: key, raw: part})
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].raw < pairs[j].raw
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.raw
	}
	return strings.Join(parts, "&")
}

func (n *Normalizer) isVolatile(key string) bool {
	key = strings.ToLower(key)
	if _, ok := n.volatile[key]; ok {
		return true
	}
	for _, prefix := range n.prefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// resolveHref parses raw, relative to base when base is set, and returns the
// serialized URL without its fragment.
func resolveHref(raw, base string) (string, error) {
	if base == "" {
		u, err := urlParser.Parse(raw)
		if err != nil {
			return "", err
		}
		return u.Href(true), nil
	}
	u, err := urlParser.ParseRef(base, raw)
	if err != nil {
		return "", err
	}
	return u.Href(true), nil
}

// hostOf returns the lower-cased host (with port) of a normalized URL, or ""
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// hostnameOf returns the lower-cased host name without port, or ""
func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
